// Package servohal adapts a Feetech bus servo to the controller's
// hardware interface, for running the lift loop against a bench servo
// instead of the simulated plant.
//
// The STS servos are position devices, so motor power is emulated: the
// commanded power integrates into a target position at a configured
// full-power speed, and Sync pushes it over the serial bus once per
// control tick.
package servohal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/embq/liftkit/internal/lift"
)

const (
	ticksPerRev = 4096
	radPerTick  = 2 * math.Pi / ticksPerRev
)

type Config struct {
	Port    string
	ServoID int
	Model   string

	// FullPowerSpeedRadPerSec is the joint speed emulated at power 1.
	FullPowerSpeedRadPerSec float64

	// GearRatio is servo revolutions per joint revolution.
	GearRatio float64

	CalibPower float64
}

func DefaultConfig(port string, servoID int) Config {
	return Config{
		Port:                    port,
		ServoID:                 servoID,
		Model:                   "sts3215",
		FullPowerSpeedRadPerSec: 2.0,
		GearRatio:               3.0,
		CalibPower:              -0.4,
	}
}

// HAL drives one bus servo. All methods belong to the control
// goroutine; Sync does the serial I/O for the tick.
type HAL struct {
	bus   *feetech.Bus
	servo *feetech.Servo
	cfg   Config

	start    time.Time
	lastSync time.Time

	rawTicks   int
	zeroTicks  int
	posRad     float64
	speedRad   float64
	virtualPos float64
	power      float64

	readFailures   int
	encoderInvalid bool
}

// Open connects to the bus and reads the servo's starting position.
func Open(ctx context.Context, cfg Config) (*HAL, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", cfg.Port, err)
	}

	model, ok := feetech.GetModel(cfg.Model)
	if !ok {
		bus.Close()
		return nil, fmt.Errorf("unknown servo model %q", cfg.Model)
	}
	servo := feetech.NewServo(bus, cfg.ServoID, model)
	pos, err := servo.Position(ctx)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("read servo %d: %w", cfg.ServoID, err)
	}
	if err := servo.Enable(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable servo %d: %w", cfg.ServoID, err)
	}

	h := &HAL{
		bus:      bus,
		servo:    servo,
		cfg:      cfg,
		start:    time.Now(),
		lastSync: time.Now(),
		rawTicks: pos,
	}
	h.virtualPos = h.ticksToRad(pos)
	h.posRad = h.virtualPos
	return h, nil
}

func (h *HAL) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.servo.Disable(ctx)
	return h.bus.Close()
}

func (h *HAL) ticksToRad(ticks int) float64 {
	return float64(ticks-h.zeroTicks) * radPerTick / h.cfg.GearRatio
}

func (h *HAL) radToTicks(rad float64) int {
	ticks := h.zeroTicks + int(rad*h.cfg.GearRatio/radPerTick)
	if ticks < 0 {
		ticks = 0
	}
	if ticks > ticksPerRev-1 {
		ticks = ticksPerRev - 1
	}
	return ticks
}

// Sync reads the joint position and pushes the integrated power
// command. Call once per control tick, before Update.
func (h *HAL) Sync(ctx context.Context) error {
	now := time.Now()
	dt := now.Sub(h.lastSync).Seconds()
	h.lastSync = now
	if dt <= 0 || dt > 0.1 {
		dt = lift.ControlDT
	}

	pos, err := h.servo.Position(ctx)
	if err != nil {
		// A flaky read is tolerated; a run of them means the encoder
		// can no longer be trusted.
		h.readFailures++
		if h.readFailures >= 5 {
			h.encoderInvalid = true
		}
		return fmt.Errorf("read servo %d: %w", h.cfg.ServoID, err)
	}
	h.readFailures = 0
	h.rawTicks = pos

	prev := h.posRad
	h.posRad = h.ticksToRad(pos)
	h.speedRad = (h.posRad - prev) / dt

	h.virtualPos += h.power * h.cfg.FullPowerSpeedRadPerSec * dt
	if err := h.servo.SetPosition(ctx, h.radToTicks(h.virtualPos)); err != nil {
		return fmt.Errorf("write servo %d: %w", h.cfg.ServoID, err)
	}
	return nil
}

func (h *HAL) TimestampMS() uint32 {
	return uint32(time.Since(h.start).Milliseconds())
}

func (h *HAL) MotorPosition(lift.MotorID) float64 { return h.posRad }
func (h *HAL) MotorSpeed(lift.MotorID) float64    { return h.speedRad }

func (h *HAL) MotorSetPower(_ lift.MotorID, power float64) { h.power = power }

func (h *HAL) MotorResetPosition(lift.MotorID) {
	h.zeroTicks = h.rawTicks
	h.posRad = 0
	h.virtualPos = 0
	h.encoderInvalid = false
}

func (h *HAL) MotorCalibPower(lift.MotorID) float64 { return h.cfg.CalibPower }

func (h *HAL) OnCharger() bool { return false }

func (h *HAL) EncoderInvalid(lift.MotorID) bool { return h.encoderInvalid }

// StaticSensors satisfies the sensor interface for bench setups with
// no body sensors attached.
type StaticSensors struct {
	Held     bool
	Cliff    bool
	Carrying bool
}

func (s StaticSensors) HeldInHand() bool    { return s.Held }
func (s StaticSensors) CliffDetected() bool { return s.Cliff }
func (s StaticSensors) CarryingLoad() bool  { return s.Carrying }

// Scan lists the servos answering on a port.
func Scan(ctx context.Context, port string, lo, hi int) ([]feetech.FoundServo, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", port, err)
	}
	defer bus.Close()

	return bus.Scan(ctx, lo, hi)
}
