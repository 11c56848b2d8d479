package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/embq/liftkit/internal/metrics"
	"github.com/embq/liftkit/internal/scenario"
)

func sampleResult() *scenario.Result {
	return &scenario.Result{
		Scenario: "bench",
		Dt:       0.005,
		Duration: 1.0,
		Samples: []metrics.Sample{
			{T: 0.0, Angle: -0.1, Setpoint: -0.1, Desired: 0.2, Power: 0.0},
			{T: 0.005, Angle: -0.09, Setpoint: -0.08, Desired: 0.2, Power: 0.4, InPosition: true, Calibrated: true, Enabled: true},
		},
		Metrics:    map[string]float64{"rms_error_rad": 0.02},
		LoadChecks: []bool{true},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runID, err := st.Save("physical", sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(runID, "bench_") {
		t.Errorf("expected run id prefixed with scenario name, got %s", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.Scenario != "bench" || meta.Profile != "physical" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["rms_error_rad"] != 0.02 {
		t.Errorf("expected metric preserved, got %v", meta.Metrics)
	}
	if len(meta.LoadChecks) != 1 || !meta.LoadChecks[0] {
		t.Errorf("expected load check preserved, got %v", meta.LoadChecks)
	}

	samples, err := st.LoadSeries(runID)
	if err != nil {
		t.Fatalf("load series: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[1].Power != 0.4 || !samples[1].InPosition || samples[0].InPosition {
		t.Errorf("samples did not round trip: %+v", samples)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if _, err := st.Save("physical", sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.Save("simulation", sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runID, err := st.Save("physical", sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, runID, "metadata.json")); err != nil {
		t.Error("metadata.json not created")
	}
	if _, err := os.Stat(filepath.Join(dir, runID, "series.csv")); err != nil {
		t.Error("series.csv not created")
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	runID, err := st.Save("physical", sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("export: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if data.ID != runID || len(data.Samples) != 2 {
		t.Errorf("unexpected export %s with %d samples", data.ID, len(data.Samples))
	}
}
