package canbus

import "github.com/embq/liftkit/internal/lift"

// Snapshot reduces the controller state to one state frame payload.
func Snapshot(c *lift.Controller, seq uint8) State {
	var flags uint8
	if c.IsCalibrated() {
		flags |= FlagCalibrated
	}
	if c.IsCalibrating() {
		flags |= FlagCalibrating
	}
	if c.IsInPosition() {
		flags |= FlagInPosition
	}
	if c.IsEnabled() {
		flags |= FlagEnabled
	}
	if c.IsBracing() {
		flags |= FlagBracing
	}
	if c.IsEncoderInvalid() {
		flags |= FlagEncoderInvalid
	}
	return State{
		AngleMrad:   int16(c.AngleRad() * 1000),
		SpeedMradPS: int16(c.AngularVelocity() * 1000),
		PowerPM:     int16(c.Power() * 1000),
		Flags:       flags,
		Seq:         seq,
	}
}

// Apply executes a decoded command against the controller. Must be
// called from the control tick goroutine.
func Apply(c *lift.Controller, cmd Command) {
	speed := float64(cmd.B) / 1000
	accel := float64(cmd.C) * 0.1

	switch cmd.Op {
	case OpSetAngle:
		c.SetDesiredAngle(float64(cmd.A)/1000, speed, accel, true)
	case OpSetHeight:
		c.SetDesiredHeight(float64(cmd.A)/10, speed, accel, true)
	case OpSetVelocity:
		c.SetAngularVelocity(float64(cmd.A)/1000, accel)
	case OpStop:
		c.Stop()
	case OpEnable:
		c.Enable()
	case OpDisable:
		c.Disable(cmd.A != 0)
	case OpBrace:
		c.Brace()
	case OpUnbrace:
		c.Unbrace()
	case OpCalibrate:
		c.StartCalibrationRoutine(false, lift.ReasonCommanded)
	}
}
