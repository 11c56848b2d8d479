package metrics

import (
	"math"
	"testing"
)

func TestRMSError(t *testing.T) {
	m := NewRMSError()
	m.Observe(Sample{Angle: 1.0, Setpoint: 0.0})
	m.Observe(Sample{Angle: 0.0, Setpoint: 1.0})
	if v := m.Value(); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("expected rms error 1.0, got %f", v)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestOvershootPastTarget(t *testing.T) {
	m := NewOvershoot()
	m.Observe(Sample{Angle: 0.0, Desired: 1.0})
	m.Observe(Sample{Angle: 0.8, Desired: 1.0})
	m.Observe(Sample{Angle: 1.15, Desired: 1.0})
	m.Observe(Sample{Angle: 0.95, Desired: 1.0})
	if v := m.Value(); math.Abs(v-0.15) > 1e-9 {
		t.Errorf("expected overshoot 0.15, got %f", v)
	}
}

func TestOvershootReLatchesOnNewCommand(t *testing.T) {
	m := NewOvershoot()
	m.Observe(Sample{Angle: 0.0, Desired: 1.0})
	m.Observe(Sample{Angle: 1.2, Desired: 1.0})
	m.Observe(Sample{Angle: 1.2, Desired: 0.5})
	m.Observe(Sample{Angle: 0.2, Desired: 0.5})
	if v := m.Value(); math.Abs(v-0.3) > 1e-9 {
		t.Errorf("expected overshoot 0.3, got %f", v)
	}
}

func TestOvershootNeverNegative(t *testing.T) {
	m := NewOvershoot()
	m.Observe(Sample{Angle: 0.0, Desired: 1.0})
	m.Observe(Sample{Angle: 0.9, Desired: 1.0})
	if v := m.Value(); v != 0 {
		t.Errorf("expected zero overshoot for undershooting run, got %f", v)
	}
}

func TestSettleTimeFinalStretch(t *testing.T) {
	m := NewSettleTime()
	m.Observe(Sample{T: 0.0, InPosition: true})
	m.Observe(Sample{T: 0.5, InPosition: false})
	m.Observe(Sample{T: 1.0, InPosition: true})
	m.Observe(Sample{T: 1.5, InPosition: true})
	if v := m.Value(); v != 1.0 {
		t.Errorf("expected settle time 1.0, got %f", v)
	}
}

func TestSettleTimeNeverSettled(t *testing.T) {
	m := NewSettleTime()
	m.Observe(Sample{T: 1.0, InPosition: false})
	if v := m.Value(); v != -1 {
		t.Errorf("expected -1 for unsettled run, got %f", v)
	}
}

func TestControlEffortMeanAbsPower(t *testing.T) {
	m := NewControlEffort()
	m.Observe(Sample{Power: 0.5})
	m.Observe(Sample{Power: -1.0})
	if v := m.Value(); math.Abs(v-0.75) > 1e-9 {
		t.Errorf("expected effort 0.75, got %f", v)
	}
}

func TestSaturationDuty(t *testing.T) {
	m := NewSaturationDuty()
	m.Observe(Sample{Power: 1.0})
	m.Observe(Sample{Power: -1.0})
	m.Observe(Sample{Power: 0.3})
	m.Observe(Sample{Power: 0.0})
	if v := m.Value(); math.Abs(v-0.5) > 1e-9 {
		t.Errorf("expected duty 0.5, got %f", v)
	}
}

func TestStandardSetNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Standard() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric name %q", m.Name())
		}
		seen[m.Name()] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 standard metrics, got %d", len(seen))
	}
}
