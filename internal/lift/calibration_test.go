package lift

import (
	"math"
	"testing"
)

func TestStartupCalibrationSequence(t *testing.T) {
	r := newRig()
	if r.ctrl.IsCalibrated() {
		t.Fatal("controller must start uncalibrated")
	}

	r.hal.pos = 0.3 // arbitrary encoder accumulation before calibration
	r.ctrl.StartCalibrationRoutine(false, ReasonStartup)
	if !r.ctrl.IsCalibrating() {
		t.Fatal("expected calibration in progress")
	}

	// State machine must walk LoweringLift -> WaitingForStop ->
	// SettingCurrentAngle -> Complete -> Idle exactly once, staying
	// uncalibrated until Complete.
	seen := map[calState]int{calLowerLift: 1}
	prev := r.ctrl.calState
	r.hal.speed = 0
	for i := 0; i < 400 && r.ctrl.IsCalibrating(); i++ {
		r.tick()
		if r.ctrl.calState != prev {
			seen[r.ctrl.calState]++
			prev = r.ctrl.calState
		}
		if !r.ctrl.IsCalibrated() && r.ctrl.calState == calIdle {
			t.Fatal("reached idle without completing calibration")
		}
	}

	if !r.ctrl.IsCalibrated() {
		t.Fatal("calibration did not complete")
	}
	for _, st := range []calState{calWaitForStop, calSetCurrentAngle, calIdle} {
		if seen[st] != 1 {
			t.Errorf("state %d visited %d times, expected once", st, seen[st])
		}
	}

	// Angle reference snapped to the low hard stop, encoder reset.
	if got := r.ctrl.AngleRad(); math.Abs(got-MinAngleRad) > 1e-9 {
		t.Errorf("expected angle %f after calibration, got %f", MinAngleRad, got)
	}
	if r.hal.resets != 1 {
		t.Errorf("expected one encoder reset, got %d", r.hal.resets)
	}
	if r.hal.lastPower != 0 {
		t.Errorf("expected zero power after calibration, got %f", r.hal.lastPower)
	}

	// Started and finished notifications.
	if len(r.notifier.calibrations) != 2 {
		t.Fatalf("expected 2 calibration notifications, got %d", len(r.notifier.calibrations))
	}
	if !r.notifier.calibrations[0].calibrating || r.notifier.calibrations[1].calibrating {
		t.Error("expected calibrating=true then calibrating=false")
	}
}

func TestCalibrationLowersThenWaitsForStop(t *testing.T) {
	r := newRig()
	r.ctrl.StartCalibrationRoutine(false, ReasonStartup)

	// While the joint keeps moving the stop dwell must keep resetting.
	r.hal.speed = -2.0
	r.tick()
	if r.hal.lastPower != r.hal.calibPower {
		t.Errorf("expected calibration power %f, got %f", r.hal.calibPower, r.hal.lastPower)
	}
	r.runMS(2000)
	if r.ctrl.IsCalibrated() {
		t.Fatal("calibration completed while the joint was still moving")
	}

	r.hal.speed = 0
	r.runMS(1500)
	if !r.ctrl.IsCalibrated() {
		t.Fatal("calibration did not complete after the joint stopped")
	}
}

func TestFirstCalibrationTamperRestarts(t *testing.T) {
	r := newRig()
	r.ctrl.StartCalibrationRoutine(false, ReasonStartup)
	r.hal.speed = 0
	r.run(10)

	// Lift the arm well above the lowest angle seen and hold it there.
	r.hal.pos += DegToRad(15)
	r.run(calibTamperCountThresh + 2)

	if r.ctrl.IsCalibrated() {
		t.Fatal("first calibration must restart on tamper, not abort")
	}
	if !r.ctrl.IsCalibrating() {
		t.Fatal("calibration should still be in progress after restart")
	}

	// Let it finish from the raised position.
	r.runMS(1000)
	if !r.ctrl.IsCalibrated() {
		t.Fatal("restarted calibration did not complete")
	}
	if got := r.ctrl.AngleRad(); math.Abs(got-MinAngleRad) > 1e-9 {
		t.Errorf("restarted calibration must still zero to the hard stop, got %f", got)
	}
}

func TestLaterCalibrationTamperAbortsPreservingReference(t *testing.T) {
	r := newRig()
	r.calibrate(t)

	r.ctrl.StartCalibrationRoutine(false, ReasonCommanded)
	r.run(10)

	raised := r.ctrl.AngleRad() + DegToRad(15)
	r.snapTo(raised)
	r.run(calibTamperCountThresh + 3)

	if !r.ctrl.IsCalibrated() {
		t.Fatal("tampered recalibration must abort to Complete")
	}
	// The old calibration is preserved: the current angle is frozen as
	// its own reference instead of being snapped to the hard stop.
	if got := r.ctrl.AngleRad(); math.Abs(got-raised) > 1e-6 {
		t.Errorf("expected preserved angle %f, got %f", raised, got)
	}
	if got := r.ctrl.DesiredAngleRad(); math.Abs(got-raised) > 1e-6 {
		t.Errorf("expected setpoint re-latched at %f, got %f", raised, got)
	}
}

func TestClearCalibrationDisablesAngleControl(t *testing.T) {
	r := newRig()
	r.calibrate(t)

	r.ctrl.ClearCalibration()
	if r.ctrl.IsCalibrated() {
		t.Fatal("expected uncalibrated state")
	}

	// With calibration cleared and no routine running, Update must not
	// drive the motor.
	r.hal.lastPower = 0
	r.ctrl.SetDesiredAngle(MaxAngleRad, 2.0, 100.0, true)
	r.run(50)
	if r.hal.lastPower != 0 {
		t.Errorf("uncalibrated controller commanded power %f", r.hal.lastPower)
	}
}

func TestCalibrationReportsTelemetry(t *testing.T) {
	r := newRig()
	r.calibrate(t) // startup: no DAS event expected

	mem := attachMemorySink(r.ctrl)

	r.snapTo(MinAngleRad + DegToRad(5))
	r.run(1)
	r.ctrl.StartCalibrationRoutine(true, ReasonCommanded)
	r.hal.speed = 0
	r.runMS(1000)
	if !r.ctrl.IsCalibrated() {
		t.Fatal("recalibration did not complete")
	}

	events := mem.Named("lift_motor_calibrated")
	if len(events) != 1 {
		t.Fatalf("expected 1 telemetry event, got %d", len(events))
	}
	e := events[0]
	if e.Str["reason"] != "Commanded" {
		t.Errorf("unexpected reason %q", e.Str["reason"])
	}
	// The joint sat ~5 degrees above the hard stop before recalibrating.
	if e.Int["error_mdeg"] < 4000 || e.Int["error_mdeg"] > 6000 {
		t.Errorf("expected ~5000 millidegrees of error, got %d", e.Int["error_mdeg"])
	}
}
