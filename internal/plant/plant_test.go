package plant

import (
	"math"
	"testing"

	"github.com/embq/liftkit/internal/lift"
)

func TestUnpoweredEmptyLiftHoldsAngle(t *testing.T) {
	start := lift.MaxAngleRad - 0.2
	p := New(DefaultParams(), start)
	for i := 0; i < 2000; i++ {
		p.Tick()
	}
	if p.AngleRad() != start {
		t.Errorf("expected stiction to hold angle %.4f, got %.4f", start, p.AngleRad())
	}
	if math.Abs(p.VelocityRadPerSec()) > 1e-9 {
		t.Errorf("expected lift at rest, got velocity %.6f", p.VelocityRadPerSec())
	}
}

func TestUnpoweredLoadedLiftDroops(t *testing.T) {
	start := lift.MaxAngleRad - 0.2
	p := New(DefaultParams(), start)
	p.SetCarryingLoad(true)
	for i := 0; i < 2000; i++ {
		p.Tick()
	}
	if p.AngleRad() >= start-0.01 {
		t.Errorf("expected loaded lift to droop from %.4f, got %.4f", start, p.AngleRad())
	}
}

func TestFullPowerRaisesToHighStop(t *testing.T) {
	p := New(DefaultParams(), lift.MinAngleRad)
	p.MotorSetPower(lift.MotorLift, 1.0)
	for i := 0; i < 2000; i++ {
		p.Tick()
	}
	if p.AngleRad() != lift.MaxAngleRad {
		t.Errorf("expected lift at high stop %.4f, got %.4f", lift.MaxAngleRad, p.AngleRad())
	}
}

func TestHardStopsClampTravel(t *testing.T) {
	p := New(DefaultParams(), lift.MinAngleRad)
	p.MotorSetPower(lift.MotorLift, -1.0)
	for i := 0; i < 500; i++ {
		p.Tick()
		if p.AngleRad() < lift.MinAngleRad {
			t.Fatalf("angle %.4f below low stop", p.AngleRad())
		}
	}
}

func TestEncoderResetZeroesPosition(t *testing.T) {
	p := New(DefaultParams(), lift.MaxAngleRad)
	if p.MotorPosition(lift.MotorLift) == 0 {
		t.Fatal("expected nonzero encoder before reset")
	}
	p.SetEncoderInvalid(true)
	p.MotorResetPosition(lift.MotorLift)
	if p.MotorPosition(lift.MotorLift) != 0 {
		t.Errorf("expected zero encoder after reset, got %.4f", p.MotorPosition(lift.MotorLift))
	}
	if p.EncoderInvalid(lift.MotorLift) {
		t.Error("expected encoder valid after reset")
	}
}

func TestDisturbanceOvercomesCalibPower(t *testing.T) {
	params := DefaultParams()
	p := New(params, lift.MinAngleRad)
	p.MotorSetPower(lift.MotorLift, params.CalibPower)
	p.SetDisturbance(0.4)
	for i := 0; i < 400; i++ {
		p.Tick()
	}
	if p.AngleRad() < lift.MinAngleRad+0.1 {
		t.Errorf("expected disturbance to lift the arm, angle %.4f", p.AngleRad())
	}
}

func TestCarryingIncreasesHoldDemand(t *testing.T) {
	params := DefaultParams()
	p := New(params, 0)
	// Power that balances the unloaded gravity torque at angle zero.
	holdPower := params.GravityTorqueNm / params.MotorTorqueNm
	p.MotorSetPower(lift.MotorLift, holdPower)
	p.SetCarryingLoad(true)
	for i := 0; i < 200; i++ {
		p.Tick()
	}
	if p.AngleRad() >= 0 {
		t.Errorf("expected loaded lift to droop below start, angle %.4f", p.AngleRad())
	}
}

func TestTimestampAdvancesPerTick(t *testing.T) {
	p := New(DefaultParams(), lift.MinAngleRad)
	p.Tick()
	p.Tick()
	if got := p.TimestampMS(); got != 2*lift.ControlDTMS {
		t.Errorf("expected timestamp %d, got %d", 2*lift.ControlDTMS, got)
	}
}
