package scenario

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/metrics"
)

func TestValidateRejectsUnknownAction(t *testing.T) {
	s := &Scenario{
		Name:     "bad",
		Duration: 1,
		Steps:    []Step{{At: 0, Action: "teleport"}},
	}
	if err := s.Validate(); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestValidateRejectsStepPastDuration(t *testing.T) {
	s := &Scenario{
		Name:     "late",
		Duration: 1,
		Steps:    []Step{{At: 2, Action: "stop"}},
	}
	if err := s.Validate(); err == nil {
		t.Error("expected error for step past duration")
	}
}

func TestPresetsAreValid(t *testing.T) {
	for name, s := range Presets {
		if err := s.Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := Save(path, Presets["carry"]); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "carry" || len(loaded.Steps) != len(Presets["carry"].Steps) {
		t.Errorf("expected carry scenario back, got %+v", loaded)
	}
}

func TestRunnerStartupScenario(t *testing.T) {
	r := NewRunner(config.DefaultConfig(), nil)
	res, err := r.Run(context.Background(), Presets["startup"])
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	dt := float64(lift.ControlDT)
	if want := int(6/dt + 0.5); len(res.Samples) != want {
		t.Errorf("expected %d samples, got %d", want, len(res.Samples))
	}

	last := res.Samples[len(res.Samples)-1]
	if !last.Calibrated {
		t.Error("expected calibrated at end of startup scenario")
	}
	if !last.InPosition {
		t.Error("expected in position at end of startup scenario")
	}
	wantAngle := lift.HeightToAngleRad(lift.HeightHighDockMM)
	if err := math.Abs(last.Angle - wantAngle); err > lift.AngleTolRad {
		t.Errorf("angle error %.4f at end of startup scenario", err)
	}

	if len(res.Metrics) == 0 {
		t.Error("expected metrics recorded")
	}
	if res.Metrics["settle_time_s"] < 0 {
		t.Error("expected scenario to settle")
	}
	if len(res.Calibrated) < 2 {
		t.Errorf("expected calibration start and completion notes, got %d", len(res.Calibrated))
	}
}

func TestRunnerCarryScenarioDetectsLoad(t *testing.T) {
	r := NewRunner(config.DefaultConfig(), nil)
	res, err := r.Run(context.Background(), Presets["carry"])
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.LoadChecks) != 1 || !res.LoadChecks[0] {
		t.Errorf("expected one positive load check, got %v", res.LoadChecks)
	}
}

func TestRunnerChargerScenarioGatesMotor(t *testing.T) {
	r := NewRunner(config.DefaultConfig(), nil)
	res, err := r.Run(context.Background(), Presets["charger"])
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	at := func(sec float64) int { return int(sec / lift.ControlDT) }
	if res.Samples[at(3.5)].Enabled {
		t.Error("expected motor disabled while docked")
	}
	if !res.Samples[len(res.Samples)-1].Enabled {
		t.Error("expected motor re-enabled after undocking")
	}
}

func TestRunnerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(config.DefaultConfig(), nil)
	if _, err := r.Run(ctx, Presets["startup"]); err == nil {
		t.Error("expected context error")
	}
}

func TestRunnerStreamsSamples(t *testing.T) {
	r := NewRunner(config.DefaultConfig(), nil)
	seen := 0
	r.OnSample = func(metrics.Sample) { seen++ }
	if _, err := r.Run(context.Background(), Presets["charger"]); err != nil {
		t.Fatalf("run: %v", err)
	}
	if seen == 0 {
		t.Error("expected streamed samples")
	}
}
