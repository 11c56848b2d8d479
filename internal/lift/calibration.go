package lift

import "github.com/embq/liftkit/internal/das"

// calState enumerates the calibration sequence. Transitions only move
// forward, except that tamper detection during the very first
// calibration restarts the sequence.
type calState int

const (
	calIdle calState = iota
	calLowerLift
	calWaitForStop
	calSetCurrentAngle
	calComplete
)

// StartCalibrationRoutine begins driving the lift against its low hard
// stop to re-zero the angle reference. Calibration never fails outward:
// it either completes or restarts, observable only through
// IsCalibrating.
func (c *Controller) StartCalibrationRoutine(autoStarted bool, reason CalibrationReason) {
	c.calibrationReason = reason
	c.calState = calLowerLift
	c.isCalibrated = false
	c.inPosition = false
	c.potentialBurnoutMS = 0
	c.angleErrorSum = 0
	c.log.Info("lift calibration started", "reason", reason.String(), "auto", autoStarted)
	if c.notifier != nil {
		c.notifier.MotorCalibration(MotorLift, true, autoStarted)
	}
}

func (c *Controller) onMotorCalibrated(now uint32) {
	prevAngle := c.currentAngle
	c.resetAnglePosition(MinAngleRad)

	// How badly out of calibration was the motor?
	angleErrorDeg := RadToDeg(prevAngle - c.currentAngle)
	c.log.Info("lift calibrated",
		"reason", c.calibrationReason.String(),
		"errorDeg", angleErrorDeg)

	var uncalibratedMS uint32
	if c.encoderInvalidSinceMS > 0 {
		uncalibratedMS = now - c.encoderInvalidSinceMS
	}
	// Not reported for normal startup calibrations.
	if c.calibrationReason != ReasonStartup && c.rec != nil {
		c.rec.Record("lift_motor_calibrated",
			das.Str("reason", c.calibrationReason.String()),
			das.Int("error_mdeg", int64(1000*angleErrorDeg)),
			das.Int("uncalibrated_ms", int64(uncalibratedMS)))
	}
}

func (c *Controller) calibrationUpdate(now uint32) {
	if c.isCalibrated {
		return
	}

	// A step may request immediate re-evaluation so that setting the
	// angle reference and completing happen in the same tick.
	for c.calibrationStep(now) {
	}

	// Tamper detection: the lift moving up while being driven down
	// means someone is messing with it.
	if c.IsCalibrating() {
		if c.calibLowAngle > c.currentAngle {
			c.calibLowAngle = c.currentAngle
		}

		if c.currentAngle-c.calibLowAngle > calibTamperRiseRad {
			// Must persist for several ticks to ignore the lift bouncing
			// against the lower limit.
			c.calibTamperCount++
			if c.calibTamperCount >= calibTamperCountThresh {
				if c.firstCalibration {
					c.log.Warn("lift calibration restarting, someone is messing with the lift",
						"lowDeg", RadToDeg(c.calibLowAngle), "currDeg", RadToDeg(c.currentAngle))
					c.calState = calLowerLift
				} else {
					c.log.Info("lift calibration aborted, someone is messing with the lift",
						"lowDeg", RadToDeg(c.calibLowAngle), "currDeg", RadToDeg(c.currentAngle))
					// Maintain the current calibration.
					c.resetAnglePosition(c.currentAngle)
					c.calState = calComplete
				}
			}
		} else {
			c.calibTamperCount = 0
		}
	}
}

// calibrationStep advances the state machine one transition. Returning
// true requests another step within the same tick.
func (c *Controller) calibrationStep(now uint32) bool {
	switch c.calState {
	case calIdle:
		return false

	case calLowerLift:
		c.setPower(c.hal.MotorCalibPower(MotorLift))
		c.lastMovedMS = now
		c.calibLowAngle = c.currentAngle
		c.calibTamperCount = 0
		c.calState = calWaitForStop
		return false

	case calWaitForStop:
		if c.IsMoving() {
			c.lastMovedMS = now
			return false
		}
		if now-c.lastMovedMS > liftStopTimeMS {
			c.setPower(0)
			// Timestamp reused by the next state to wait for the motor
			// to relax.
			c.lastMovedMS = now
			c.calState = calSetCurrentAngle
		}
		return false

	case calSetCurrentAngle:
		if now-c.lastMovedMS > liftRelaxTimeMS {
			c.onMotorCalibrated(now)
			c.hal.MotorResetPosition(MotorLift)
			c.prevHalPos = c.hal.MotorPosition(MotorLift)
			c.calState = calComplete
			return true
		}
		return false

	case calComplete:
		c.setPower(0)
		if c.notifier != nil {
			c.notifier.MotorCalibration(MotorLift, false, false)
		}
		c.isCalibrated = true
		c.firstCalibration = false
		c.calState = calIdle
		c.inPosition = true
		c.encoderInvalidSinceMS = 0
		return false
	}
	return false
}
