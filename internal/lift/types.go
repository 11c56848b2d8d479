// Package lift implements the closed-loop lift motor controller: a PID
// position controller fed by a velocity profile generator, with a
// hard-stop calibration state machine, motor burnout protection,
// brace-for-impact handling and charger-aware enable supervision, all
// driven by a fixed-period Update tick.
package lift

// MotorID identifies a motor on the robot.
type MotorID int

const (
	MotorLift MotorID = iota
	MotorHead
	MotorLeftWheel
	MotorRightWheel
)

func (m MotorID) String() string {
	switch m {
	case MotorLift:
		return "lift"
	case MotorHead:
		return "head"
	case MotorLeftWheel:
		return "left_wheel"
	case MotorRightWheel:
		return "right_wheel"
	default:
		return "unknown"
	}
}

// CalibrationReason records why a calibration was started, carried in
// notifications and telemetry.
type CalibrationReason int

const (
	ReasonStartup CalibrationReason = iota
	ReasonCommanded
	ReasonBurnoutProtection
	ReasonEncoderInvalid
	ReasonPlaypen
)

func (r CalibrationReason) String() string {
	switch r {
	case ReasonStartup:
		return "Startup"
	case ReasonCommanded:
		return "Commanded"
	case ReasonBurnoutProtection:
		return "BurnoutProtection"
	case ReasonEncoderInvalid:
		return "EncoderInvalid"
	case ReasonPlaypen:
		return "Playpen"
	default:
		return "Unknown"
	}
}

// HAL is the hardware boundary the controller drives. All calls are
// non-blocking register-style reads/writes; MotorPosition is a relative
// encoder accumulator that only the HAL may reset.
type HAL interface {
	// TimestampMS returns milliseconds from a monotonic clock. It is
	// read once per tick.
	TimestampMS() uint32
	MotorPosition(m MotorID) float64
	MotorSpeed(m MotorID) float64
	MotorSetPower(m MotorID, power float64)
	MotorResetPosition(m MotorID)
	// MotorCalibPower returns the fixed power used to drive the joint
	// against its low hard stop during calibration.
	MotorCalibPower(m MotorID) float64
	OnCharger() bool
	EncoderInvalid(m MotorID) bool
}

// Sensors are the sibling-subsystem predicates the controller queries.
type Sensors interface {
	HeldInHand() bool
	CliffDetected() bool
	CarryingLoad() bool
}

// Notifier receives controller state-change notifications destined for
// the messaging layer.
type Notifier interface {
	MotorCalibration(m MotorID, calibrating, autoStarted bool)
	MotorAutoEnabled(m MotorID, enabled bool)
}
