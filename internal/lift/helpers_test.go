package lift

import (
	"testing"

	"github.com/embq/liftkit/internal/das"
)

// fakeHAL is a scripted hardware layer: tests move the encoder and
// report speeds directly.
type fakeHAL struct {
	timeMS         uint32
	pos            float64
	speed          float64
	lastPower      float64
	calibPower     float64
	onCharger      bool
	encoderInvalid bool
	resets         int
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{calibPower: -0.4}
}

func (h *fakeHAL) TimestampMS() uint32                { return h.timeMS }
func (h *fakeHAL) MotorPosition(MotorID) float64      { return h.pos }
func (h *fakeHAL) MotorSpeed(MotorID) float64         { return h.speed }
func (h *fakeHAL) MotorSetPower(_ MotorID, p float64) { h.lastPower = p }
func (h *fakeHAL) MotorCalibPower(MotorID) float64    { return h.calibPower }
func (h *fakeHAL) OnCharger() bool                    { return h.onCharger }
func (h *fakeHAL) EncoderInvalid(MotorID) bool        { return h.encoderInvalid }

func (h *fakeHAL) MotorResetPosition(MotorID) {
	h.pos = 0
	h.resets++
	h.encoderInvalid = false
}

type fakeSensors struct {
	held     bool
	cliff    bool
	carrying bool
}

func (s *fakeSensors) HeldInHand() bool    { return s.held }
func (s *fakeSensors) CliffDetected() bool { return s.cliff }
func (s *fakeSensors) CarryingLoad() bool  { return s.carrying }

type calibrationNote struct {
	calibrating bool
	autoStarted bool
}

type autoEnableNote struct {
	enabled bool
}

// recordingNotifier captures outbound notifications.
type recordingNotifier struct {
	calibrations []calibrationNote
	autoEnables  []autoEnableNote
}

func (n *recordingNotifier) MotorCalibration(_ MotorID, calibrating, autoStarted bool) {
	n.calibrations = append(n.calibrations, calibrationNote{calibrating, autoStarted})
}

func (n *recordingNotifier) MotorAutoEnabled(_ MotorID, enabled bool) {
	n.autoEnables = append(n.autoEnables, autoEnableNote{enabled})
}

type rig struct {
	hal      *fakeHAL
	sensors  *fakeSensors
	notifier *recordingNotifier
	ctrl     *Controller
}

func newRig() *rig {
	hal := newFakeHAL()
	sensors := &fakeSensors{}
	notifier := &recordingNotifier{}
	ctrl := New(hal, sensors, notifier, PhysicalProfile())
	return &rig{hal: hal, sensors: sensors, notifier: notifier, ctrl: ctrl}
}

// tick advances time by one control period and runs one Update.
func (r *rig) tick() {
	r.hal.timeMS += ControlDTMS
	r.ctrl.Update()
}

func (r *rig) run(ticks int) {
	for i := 0; i < ticks; i++ {
		r.tick()
	}
}

// runMS advances at least the given wall time.
func (r *rig) runMS(ms int) {
	r.run(ms/ControlDTMS + 1)
}

// calibrate drives a full calibration against a motionless joint.
func (r *rig) calibrate(t *testing.T) {
	t.Helper()
	r.hal.speed = 0
	r.ctrl.StartCalibrationRoutine(false, ReasonStartup)
	r.runMS(1000)
	if !r.ctrl.IsCalibrated() {
		t.Fatal("calibration did not complete")
	}
}

// snapTo teleports the fake joint so the controller observes the given
// angle on the next tick.
func (r *rig) snapTo(angle float64) {
	r.hal.pos += angle - r.ctrl.currentAngle
}

func attachMemorySink(c *Controller) *das.MemorySink {
	mem := &das.MemorySink{}
	c.SetTelemetry(das.NewRecorder(mem))
	return mem
}
