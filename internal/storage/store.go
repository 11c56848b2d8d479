// Package storage persists scenario runs as a directory per run:
// metadata.json for the summary and series.csv for the per-tick
// samples.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/embq/liftkit/internal/das"
	"github.com/embq/liftkit/internal/metrics"
	"github.com/embq/liftkit/internal/scenario"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Profile    string             `json:"profile"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Metrics    map[string]float64 `json:"metrics"`
	Events     []das.Event        `json:"events,omitempty"`
	LoadChecks []bool             `json:"load_checks,omitempty"`
}

var seriesHeader = []string{
	"time", "angle", "setpoint", "desired", "speed", "power",
	"in_position", "calibrated", "enabled", "bracing",
}

// Save writes one run and returns its id.
func (s *Store) Save(profile string, res *scenario.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", res.Scenario, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scenario:   res.Scenario,
		Timestamp:  time.Now(),
		Profile:    profile,
		Dt:         res.Dt,
		Duration:   res.Duration,
		Metrics:    res.Metrics,
		Events:     res.Events,
		LoadChecks: res.LoadChecks,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "series.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(seriesHeader); err != nil {
		return "", err
	}
	for _, sm := range res.Samples {
		row := []string{
			strconv.FormatFloat(sm.T, 'f', 6, 64),
			strconv.FormatFloat(sm.Angle, 'f', 6, 64),
			strconv.FormatFloat(sm.Setpoint, 'f', 6, 64),
			strconv.FormatFloat(sm.Desired, 'f', 6, 64),
			strconv.FormatFloat(sm.Speed, 'f', 6, 64),
			strconv.FormatFloat(sm.Power, 'f', 6, 64),
			boolField(sm.InPosition),
			boolField(sm.Calibrated),
			boolField(sm.Enabled),
			boolField(sm.Bracing),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries reads back the per-tick samples of a run.
func (s *Store) LoadSeries(runID string) ([]metrics.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.Sample{}, nil
	}

	samples := make([]metrics.Sample, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(seriesHeader) {
			continue
		}
		fs := make([]float64, 6)
		ok := true
		for i := range fs {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				ok = false
				break
			}
			fs[i] = v
		}
		if !ok {
			continue
		}
		samples = append(samples, metrics.Sample{
			T:          fs[0],
			Angle:      fs[1],
			Setpoint:   fs[2],
			Desired:    fs[3],
			Speed:      fs[4],
			Power:      fs[5],
			InPosition: rec[6] == "1",
			Calibrated: rec[7] == "1",
			Enabled:    rec[8] == "1",
			Bracing:    rec[9] == "1",
		})
	}

	return samples, nil
}
