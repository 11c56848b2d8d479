package lift

import (
	"log/slog"
	"math"

	"github.com/embq/liftkit/internal/das"
	"github.com/embq/liftkit/internal/vpg"
)

// Controller owns all state for one physical lift joint. It is not
// safe for concurrent use: Update and every command/query must be
// called from the goroutine driving the control tick.
type Controller struct {
	hal      HAL
	sensors  Sensors
	notifier Notifier
	log      *slog.Logger
	rec      *das.Recorder

	kp          float64
	ki          float64
	kd          float64
	maxErrorSum float64
	deadbandRad float64

	// Power above this sustained for burnoutTimeThreshMS triggers
	// protection. Recomputed by SetGains.
	burnoutPowerThresh float64

	currentAngle     float64
	desiredAngle     float64
	currDesiredAngle float64
	prevAngleError   float64
	angleErrorSum    float64
	prevHalPos       float64
	radSpeed         float64
	power            float64

	maxSpeedRad float64
	accelRad    float64
	profile     vpg.Generator

	inPosition         bool
	lastInPositionMS   uint32
	potentialBurnoutMS uint32

	calState          calState
	isCalibrated      bool
	firstCalibration  bool
	calibrationReason CalibrationReason
	lastMovedMS       uint32
	calibLowAngle     float64
	calibTamperCount  int

	enabled            bool
	enabledExternally  bool
	enableAtMS         uint32

	bracing        bool
	unbraceStartMS uint32

	checkForLoadArmed    bool
	checkingForLoadMS    uint32
	checkingForLoadAngle float64
	checkForLoadCallback func(hasLoad bool)

	encoderInvalidSinceMS uint32
}

// New returns a controller for the lift joint. The notifier may be nil
// when no messaging layer is attached.
func New(hal HAL, sensors Sensors, notifier Notifier, profile Profile) *Controller {
	c := &Controller{
		hal:              hal,
		sensors:          sensors,
		notifier:         notifier,
		log:              slog.Default(),
		deadbandRad:      profile.EncoderDeadbandRad,
		maxSpeedRad:      math.Pi,
		accelRad:         MaxLiftAccelRadPerSec2,
		inPosition:       true,
		enabled:          true,
		firstCalibration: true,
	}
	c.SetGains(profile.Kp, profile.Ki, profile.Kd, profile.MaxErrorSum)
	c.prevHalPos = hal.MotorPosition(MotorLift)
	return c
}

// SetLogger replaces the controller's logger.
func (c *Controller) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// SetTelemetry attaches a DAS recorder for analytics events.
func (c *Controller) SetTelemetry(r *das.Recorder) { c.rec = r }

// SetGains replaces the PID gains and integral clamp, and refreshes the
// burnout power threshold derived from them.
func (c *Controller) SetGains(kp, ki, kd, maxErrorSum float64) {
	c.kp = kp
	c.ki = ki
	c.kd = kd
	c.maxErrorSum = maxErrorSum
	c.burnoutPowerThresh = ki*maxErrorSum + kp*AngleTolRad
	c.log.Info("lift gains set", "kp", kp, "ki", ki, "kd", kd, "maxErrorSum", maxErrorSum)
}

func (c *Controller) setPower(power float64) {
	c.power = power
	c.hal.MotorSetPower(MotorLift, power)
}

func (c *Controller) resetAnglePosition(angle float64) {
	c.currentAngle = angle
	c.desiredAngle = angle
	c.currDesiredAngle = angle
}

func (c *Controller) enableInternal() {
	if !c.enabled {
		c.enabled = true
		c.enableAtMS = 0
		c.resetAnglePosition(c.currentAngle)
	}
}

// Enable turns the motor on and marks it externally enabled so charger
// gating may auto-restore it later.
func (c *Controller) Enable() {
	c.enabledExternally = true
	c.enableInternal()
}

func (c *Controller) disableInternal(autoReEnable bool) {
	if c.enabled {
		c.enabled = false
		c.inPosition = true
		c.prevAngleError = 0
		c.angleErrorSum = 0
		if !c.IsCalibrating() {
			c.setPower(0)
		}
		c.potentialBurnoutMS = 0
		c.bracing = false
	}
	c.enableAtMS = 0
	if autoReEnable {
		c.enableAtMS = c.hal.TimestampMS() + reenableTimeoutMS
	}
}

// Disable turns the motor off. With autoReEnable the supervisor
// re-enables it once the joint has been still for the re-enable
// timeout.
func (c *Controller) Disable(autoReEnable bool) {
	c.enabledExternally = false
	c.disableInternal(autoReEnable)
}

func (c *Controller) IsCalibrated() bool  { return c.isCalibrated }
func (c *Controller) IsCalibrating() bool { return c.calState != calIdle }

// ClearCalibration invalidates the angle reference; angle-based control
// stays off until the next calibration completes.
func (c *Controller) ClearCalibration() { c.isCalibrated = false }

func (c *Controller) IsMoving() bool {
	return math.Abs(c.radSpeed) > maxLiftConsideredStoppedRadPerSec
}

func (c *Controller) IsInPosition() bool { return c.inPosition }
func (c *Controller) IsBracing() bool    { return c.bracing }
func (c *Controller) IsEnabled() bool    { return c.enabled }

func (c *Controller) IsEncoderInvalid() bool { return c.encoderInvalidSinceMS > 0 }

// SetEncoderInvalid latches the encoder-invalid condition, normally
// reported by the HAL.
func (c *Controller) SetEncoderInvalid() {
	c.encoderInvalidSinceMS = c.hal.TimestampMS()
}

func (c *Controller) AngleRad() float64        { return c.currentAngle }
func (c *Controller) HeightMM() float64        { return AngleToHeightMM(c.currentAngle) }
func (c *Controller) DesiredAngleRad() float64 { return c.desiredAngle }

// SetpointRad returns the instantaneous profile output the PID tracks,
// which lags DesiredAngleRad until the motion completes.
func (c *Controller) SetpointRad() float64 { return c.currDesiredAngle }
func (c *Controller) DesiredHeightMM() float64 { return AngleToHeightMM(c.desiredAngle) }
func (c *Controller) AngularVelocity() float64 { return c.radSpeed }
func (c *Controller) Power() float64           { return c.power }

func (c *Controller) CalibrationReason() CalibrationReason { return c.calibrationReason }

func (c *Controller) setMaxSpeedAndAccel(speedRadPerSec, accelRadPerSec2 float64) {
	c.maxSpeedRad = math.Abs(speedRadPerSec)
	c.accelRad = math.Abs(accelRadPerSec2)

	if c.maxSpeedRad < 1e-9 {
		c.maxSpeedRad = MaxLiftSpeedRadPerSec
	}
	if c.accelRad < 1e-9 {
		c.accelRad = MaxLiftAccelRadPerSec2
	}

	c.maxSpeedRad = clamp(c.maxSpeedRad, 0, MaxLiftSpeedRadPerSec)
	c.accelRad = clamp(c.accelRad, 0, MaxLiftAccelRadPerSec2)
}

func (c *Controller) setDesiredAngleInternal(angleRad, accStartFrac, accEndFrac, durationSec, speedRadPerSec, accelRadPerSec2 float64, useProfile bool) {
	// A motion commanded while docked re-enables the motor, as long as
	// it wasn't disabled externally.
	if c.hal.OnCharger() && c.enabledExternally {
		c.enableInternal()
	}

	if !c.enabled || c.bracing {
		return
	}

	c.setMaxSpeedAndAccel(speedRadPerSec, accelRadPerSec2)

	newDesired := clamp(angleRad, MinAngleRad, MaxAngleRad)

	if c.inPosition &&
		newDesired == c.desiredAngle &&
		math.Abs(c.desiredAngle-c.currentAngle) < AngleTolRad {
		return
	}
	c.desiredAngle = newDesired

	startSpeed := c.radSpeed
	startAngle := c.currDesiredAngle
	if c.inPosition {
		// Small short motions can be overpowered by the unwinding of
		// accumulated error and not render consistently.
		c.angleErrorSum = 0
	}

	c.lastInPositionMS = 0
	c.inPosition = false

	armed := false
	if durationSec > 0 {
		armed = c.profile.StartFixedDuration(startSpeed, startAngle, accStartFrac*durationSec,
			c.desiredAngle, accEndFrac*durationSec,
			MaxLiftSpeedRadPerSec, MaxLiftAccelRadPerSec2,
			durationSec, ControlDT)
		if !armed {
			c.log.Info("fixed-duration profile infeasible, falling back",
				"startVel", startSpeed, "startPos", startAngle,
				"endPos", c.desiredAngle, "duration", durationSec)
		}
	}
	if !armed {
		speed := c.maxSpeedRad
		accel := c.accelRad
		if !useProfile {
			// Effectively a step command.
			speed = 1e6
			accel = 1e6
		}
		c.profile.Start(startSpeed, startAngle, speed, accel, 0, c.desiredAngle, ControlDT)
	}
}

// SetDesiredAngle commands the joint to angleRad, clamped to the travel
// limits, through a trapezoidal profile bounded by the given speed and
// acceleration. With useProfile false the setpoint jumps directly.
func (c *Controller) SetDesiredAngle(angleRad, speedRadPerSec, accelRadPerSec2 float64, useProfile bool) {
	c.setDesiredAngleInternal(angleRad, defaultStartAccelFrac, defaultEndAccelFrac, 0,
		speedRadPerSec, accelRadPerSec2, useProfile)
}

// SetDesiredAngleByDuration commands a move that completes in
// durationSec, spending the given fractions of it accelerating and
// decelerating. Falls back to an unconstrained profile when the
// duration is infeasible.
func (c *Controller) SetDesiredAngleByDuration(angleRad, accStartFrac, accEndFrac, durationSec float64) {
	c.setDesiredAngleInternal(angleRad, accStartFrac, accEndFrac, durationSec,
		MaxLiftSpeedRadPerSec, MaxLiftAccelRadPerSec2, true)
}

// SetDesiredHeight commands the gripper to heightMM.
func (c *Controller) SetDesiredHeight(heightMM, speedRadPerSec, accelRadPerSec2 float64, useProfile bool) {
	c.SetDesiredAngle(HeightToAngleRad(heightMM), speedRadPerSec, accelRadPerSec2, useProfile)
}

// SetDesiredHeightByDuration commands the gripper to heightMM over a
// fixed duration.
func (c *Controller) SetDesiredHeightByDuration(heightMM, accStartFrac, accEndFrac, durationSec float64) {
	c.SetDesiredAngleByDuration(HeightToAngleRad(heightMM), accStartFrac, accEndFrac, durationSec)
}

// SetAngularVelocity drives the joint toward a travel limit at the
// requested speed, or stops immediately when the speed is zero.
func (c *Controller) SetAngularVelocity(speedRadPerSec, accelRadPerSec2 float64) {
	useProfile := true
	var target float64
	switch {
	case speedRadPerSec > 0:
		target = MaxAngleRad
	case speedRadPerSec < 0:
		target = MinAngleRad
	default:
		target = c.currentAngle
		useProfile = false
	}
	c.SetDesiredAngle(target, speedRadPerSec, accelRadPerSec2, useProfile)
}

// Stop halts the joint at its current angle.
func (c *Controller) Stop() {
	c.SetAngularVelocity(0, 0)
}

// Brace drops the lift at a strong fixed power to protect the hardware
// during an impact. Desired-angle commands are ignored until the
// unbrace settle period completes.
func (c *Controller) Brace() {
	c.log.Info("lift bracing")
	c.setPower(bracingPower)
	c.bracing = true
	c.unbraceStartMS = 0
}

// Unbrace zeros power and starts the settle period, after which the
// current angle is re-latched as the setpoint and control resumes.
func (c *Controller) Unbrace() {
	c.log.Info("lift unbracing")
	c.setPower(0)
	c.unbraceStartMS = c.hal.TimestampMS()
}

// CheckForLoad arms a one-shot check for an object resting on the lift:
// once in position and still, power is cut and gravity-induced droop
// within the timeout means a load is present. The result is delivered
// through the callback.
func (c *Controller) CheckForLoad(callback func(hasLoad bool)) {
	c.checkForLoadArmed = true
	c.checkingForLoadMS = 0
	c.checkForLoadCallback = callback
}

func (c *Controller) poseAndSpeedFilterUpdate() {
	halPos := c.hal.MotorPosition(MotorLift)
	c.currentAngle += halPos - c.prevHalPos
	c.prevHalPos = halPos

	measured := c.hal.MotorSpeed(MotorLift)
	c.radSpeed = measured*(1-speedFilteringCoeff) + c.radSpeed*speedFilteringCoeff
}

// Check for conditions that could lead to motor burnout. If the joint
// was in position, someone is resisting the motor: go limp until they
// stop. If it was not in position it is probably miscalibrated and
// pushing a hard limit: recalibrate. Returns true when a protective
// action was taken this tick.
func (c *Controller) motorBurnoutProtection(now uint32) bool {
	if math.Abs(c.power) < c.burnoutPowerThresh {
		c.potentialBurnoutMS = 0
		return false
	}

	if c.potentialBurnoutMS == 0 {
		c.potentialBurnoutMS = now
	} else if now-c.potentialBurnoutMS > burnoutTimeThreshMS {
		if c.IsInPosition() || c.sensors.HeldInHand() || c.sensors.CliffDetected() {
			c.log.Info("lift burnout protection: going limp")
			if c.notifier != nil {
				c.notifier.MotorAutoEnabled(MotorLift, false)
			}
			c.disableInternal(true)
		} else {
			c.log.Info("lift burnout protection: recalibrating")
			c.StartCalibrationRoutine(true, ReasonBurnoutProtection)
		}
		return true
	}

	return false
}

// Update runs one control tick: filter update, calibration, enable
// gating, burnout/brace handling, load check, profile step and PID
// power computation. It must be called every ControlDT seconds.
func (c *Controller) Update() {
	now := c.hal.TimestampMS()

	c.poseAndSpeedFilterUpdate()

	c.calibrationUpdate(now)

	if c.hal.EncoderInvalid(MotorLift) && c.encoderInvalidSinceMS == 0 {
		c.encoderInvalidSinceMS = now
	}

	if !c.isCalibrated {
		return
	}

	// A latched invalid encoder means the angle reference can no longer
	// be trusted: recalibrate before resuming angle control.
	if c.enabled && c.encoderInvalidSinceMS > 0 {
		c.StartCalibrationRoutine(true, ReasonEncoderInvalid)
		return
	}

	// Disable the motor while parked on the charger; re-enable once off
	// unless burnout protection owns a pending re-enable deadline.
	if c.inPosition && c.hal.OnCharger() {
		c.disableInternal(false)
	} else if c.enabledExternally && c.enableAtMS == 0 {
		c.enableInternal()
	}

	if !c.enabled {
		if c.enableAtMS == 0 {
			return
		}
		// Never re-enable a moving joint; push the deadline forward.
		if c.IsMoving() {
			c.enableAtMS = now + reenableTimeoutMS
			return
		}
		if now >= c.enableAtMS {
			if c.notifier != nil {
				c.notifier.MotorAutoEnabled(MotorLift, true)
			}
			c.enableInternal()
		} else {
			return
		}
	}

	if c.bracing || c.motorBurnoutProtection(now) {
		if c.unbraceStartMS > 0 && now-c.unbraceStartMS > unbracePeriodMS {
			c.log.Info("lift unbrace complete")
			c.unbraceStartMS = 0
			c.resetAnglePosition(c.currentAngle)
			c.prevAngleError = 0
			c.angleErrorSum = 0
			c.bracing = false
		}
		return
	}

	if c.checkingForLoadMS > 0 {
		switch {
		case now > c.checkingForLoadMS+checkingForLoadTimeoutMS:
			c.log.Info("lift load check: no load")
			c.finishLoadCheck(false)
		case c.currentAngle < c.checkingForLoadAngle-checkingForLoadAngleDiffThresh:
			c.log.Info("lift load check: load detected", "ms", now-c.checkingForLoadMS)
			c.finishLoadCheck(true)
		default:
			// Motor stays unpowered while checking.
			c.setPower(0)
			return
		}
	}

	if c.currDesiredAngle != c.desiredAngle {
		_, c.currDesiredAngle = c.profile.Step()
	}

	angleError := c.currDesiredAngle - c.currentAngle
	if c.deadbandRad > 0 && math.Abs(angleError) < c.deadbandRad {
		angleError = 0
	}

	powerP := c.kp * angleError
	powerD := c.kd * (angleError - c.prevAngleError) * ControlDT
	powerI := c.ki * c.angleErrorSum
	c.power = powerP + powerD + powerI

	// Remove the D term when both angles sit inside a limit band.
	if c.inNoDTermBand() {
		c.power -= powerD
	}

	if math.Abs(angleError) < AngleTolRad && c.desiredAngle == c.currDesiredAngle {
		// Tracking the final desired angle. Decay the integral sum while
		// applied power exceeds the in-position ceiling.
		maxPower := maxPowerInPosition
		if c.sensors.CarryingLoad() {
			maxPower = maxPowerInPositionWhileCarrying
		}
		if math.Abs(c.power) > maxPower {
			decay := angleErrorSumDecayStep
			if c.power < 0 {
				decay = -decay
			}
			c.angleErrorSum -= decay
		} else if c.checkForLoadArmed && !c.IsMoving() {
			c.checkingForLoadMS = now
			c.checkingForLoadAngle = c.currentAngle
			c.checkForLoadArmed = false
			c.log.Info("lift load check started", "ms", now)
			c.power = 0
		}

		if c.lastInPositionMS == 0 {
			c.lastInPositionMS = now
		} else if now-c.lastInPositionMS > inPositionTimeMS {
			c.inPosition = true
		}
	} else {
		c.lastInPositionMS = 0
		// Integral error only accumulates while not in position.
		c.angleErrorSum += angleError
	}

	c.angleErrorSum = clamp(c.angleErrorSum, -c.maxErrorSum, c.maxErrorSum)
	c.prevAngleError = angleError

	c.setPower(clamp(c.power, -1, 1))
}

func (c *Controller) inNoDTermBand() bool {
	lowLo, lowHi := MinAngleRad, MinAngleRad+noDTermBandRad
	highLo, highHi := MaxAngleRad-noDTermBandRad, MaxAngleRad

	inLow := c.currentAngle >= lowLo && c.currentAngle <= lowHi &&
		c.currDesiredAngle >= lowLo && c.currDesiredAngle <= lowHi
	inHigh := c.currentAngle >= highLo && c.currentAngle <= highHi &&
		c.currDesiredAngle >= highLo && c.currDesiredAngle <= highHi
	return inLow || inHigh
}

func (c *Controller) finishLoadCheck(hasLoad bool) {
	c.checkForLoadArmed = false
	c.checkingForLoadMS = 0
	if c.checkForLoadCallback != nil {
		cb := c.checkForLoadCallback
		c.checkForLoadCallback = nil
		cb(hasLoad)
	}
}
