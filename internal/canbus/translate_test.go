package canbus

import (
	"math"
	"testing"

	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/plant"
)

func calibratedController(t *testing.T) (*plant.Plant, *lift.Controller) {
	t.Helper()
	p := plant.New(plant.DefaultParams(), lift.MinAngleRad)
	c := lift.New(p, p, nil, lift.PhysicalProfile())
	c.StartCalibrationRoutine(false, lift.ReasonStartup)
	p.RunMS(c, 3000)
	if !c.IsCalibrated() {
		t.Fatal("calibration did not complete")
	}
	return p, c
}

func TestApplySetHeightCommand(t *testing.T) {
	_, c := calibratedController(t)

	Apply(c, Command{Op: OpSetHeight, A: int16(lift.HeightCarryMM * 10), B: 2000, C: 200})
	if got := c.DesiredHeightMM(); math.Abs(got-lift.HeightCarryMM) > 0.5 {
		t.Errorf("expected desired height %.1f, got %.1f", lift.HeightCarryMM, got)
	}
}

func TestApplyBraceAndStop(t *testing.T) {
	_, c := calibratedController(t)

	Apply(c, Command{Op: OpBrace})
	if !c.IsBracing() {
		t.Error("expected bracing after brace command")
	}
	Apply(c, Command{Op: OpDisable})
	if c.IsEnabled() {
		t.Error("expected disabled after disable command")
	}
}

func TestSnapshotFlags(t *testing.T) {
	_, c := calibratedController(t)

	s := Snapshot(c, 7)
	if s.Flags&FlagCalibrated == 0 {
		t.Error("expected calibrated flag")
	}
	if s.Flags&FlagEnabled == 0 {
		t.Error("expected enabled flag")
	}
	if s.Flags&FlagBracing != 0 {
		t.Error("unexpected bracing flag")
	}
	if s.Seq != 7 {
		t.Errorf("expected seq 7, got %d", s.Seq)
	}

	wantMrad := int16(lift.MinAngleRad * 1000)
	if s.AngleMrad != wantMrad {
		t.Errorf("expected angle %d mrad, got %d", wantMrad, s.AngleMrad)
	}
}
