// Package plant simulates a single lift joint: a geared DC motor
// driving an arm against gravity, viscous friction and hard travel
// stops. It implements the controller's hardware and sensor interfaces
// so the full control loop can run without a robot.
package plant

import (
	"math"

	"github.com/embq/liftkit/internal/lift"
)

// Params describe the simulated joint.
type Params struct {
	// InertiaKgM2 is the reflected inertia at the lift shoulder.
	InertiaKgM2 float64 `yaml:"inertia_kg_m2"`

	// MotorTorqueNm is the stall torque at full power.
	MotorTorqueNm float64 `yaml:"motor_torque_nm"`

	// GravityTorqueNm is the gravity load at horizontal arm; the
	// effective load scales with cos(angle).
	GravityTorqueNm float64 `yaml:"gravity_torque_nm"`

	// CarryTorqueNm is the extra horizontal-arm gravity load while
	// carrying an object.
	CarryTorqueNm float64 `yaml:"carry_torque_nm"`

	// ViscousNmPerRadPerSec is the speed-proportional friction.
	ViscousNmPerRadPerSec float64 `yaml:"viscous_nm_per_rad_per_sec"`

	// StictionNm is the Coulomb friction in the gear train. It exceeds
	// the unloaded gravity torque, so an unpowered empty lift holds its
	// angle while a loaded one droops.
	StictionNm float64 `yaml:"stiction_nm"`

	// CalibPower is the open-loop power used to drive the lift against
	// the low stop during calibration.
	CalibPower float64 `yaml:"calib_power"`

	// Substeps per control tick for the integrator.
	Substeps int `yaml:"substeps"`
}

// DefaultParams returns a joint that the physical gains hold in
// position well under the in-position power ceilings.
func DefaultParams() Params {
	return Params{
		InertiaKgM2:           0.002,
		MotorTorqueNm:         0.5,
		GravityTorqueNm:       0.03,
		CarryTorqueNm:         0.05,
		ViscousNmPerRadPerSec: 0.02,
		StictionNm:            0.04,
		CalibPower:            -0.4,
		Substeps:              5,
	}
}

// Plant holds the joint state between ticks. Not safe for concurrent
// use; Tick and the interface methods belong to the control goroutine.
type Plant struct {
	params Params

	timeMS uint32
	angle  float64
	vel    float64
	power  float64

	// Encoder zero offset set by MotorResetPosition.
	encoderZero float64

	disturbanceNm  float64
	onCharger      bool
	held           bool
	cliff          bool
	carrying       bool
	encoderInvalid bool
}

var (
	_ lift.HAL     = (*Plant)(nil)
	_ lift.Sensors = (*Plant)(nil)
)

// New returns a plant resting at the given angle.
func New(params Params, startAngle float64) *Plant {
	if params.Substeps <= 0 {
		params.Substeps = 1
	}
	return &Plant{
		params: params,
		angle:  clampAngle(startAngle),
	}
}

func clampAngle(a float64) float64 {
	if a < lift.MinAngleRad {
		return lift.MinAngleRad
	}
	if a > lift.MaxAngleRad {
		return lift.MaxAngleRad
	}
	return a
}

// Tick advances the simulation by one control period.
func (p *Plant) Tick() {
	p.timeMS += lift.ControlDTMS

	dt := lift.ControlDT / float64(p.params.Substeps)
	for i := 0; i < p.params.Substeps; i++ {
		gravity := p.params.GravityTorqueNm
		if p.carrying {
			gravity += p.params.CarryTorqueNm
		}
		torque := p.params.MotorTorqueNm*p.power -
			gravity*math.Cos(p.angle) -
			p.params.ViscousNmPerRadPerSec*p.vel +
			p.disturbanceNm

		if p.vel == 0 && math.Abs(torque) <= p.params.StictionNm {
			continue
		}
		if p.vel > 0 {
			torque -= p.params.StictionNm
		} else if p.vel < 0 {
			torque += p.params.StictionNm
		} else if torque > 0 {
			torque -= p.params.StictionNm
		} else {
			torque += p.params.StictionNm
		}

		newVel := p.vel + torque/p.params.InertiaKgM2*dt
		// Friction stops the joint, it never reverses it.
		if p.vel != 0 && newVel*p.vel < 0 {
			newVel = 0
		}
		p.vel = newVel
		p.angle += p.vel * dt

		// Rigid hard stops at the travel limits.
		if p.angle <= lift.MinAngleRad {
			p.angle = lift.MinAngleRad
			if p.vel < 0 {
				p.vel = 0
			}
		}
		if p.angle >= lift.MaxAngleRad {
			p.angle = lift.MaxAngleRad
			if p.vel > 0 {
				p.vel = 0
			}
		}
	}
}

// Run advances the simulation and the controller together for n ticks.
func (p *Plant) Run(c *lift.Controller, n int) {
	for i := 0; i < n; i++ {
		p.Tick()
		c.Update()
	}
}

// RunMS advances at least ms of simulated time.
func (p *Plant) RunMS(c *lift.Controller, ms int) {
	p.Run(c, ms/lift.ControlDTMS+1)
}

// AngleRad returns the true joint angle, independent of calibration.
func (p *Plant) AngleRad() float64 { return p.angle }

// VelocityRadPerSec returns the true joint velocity.
func (p *Plant) VelocityRadPerSec() float64 { return p.vel }

// SetDisturbance applies a constant external torque, e.g. a hand
// pushing the lift. Zero clears it.
func (p *Plant) SetDisturbance(torqueNm float64) { p.disturbanceNm = torqueNm }

func (p *Plant) SetOnCharger(v bool)      { p.onCharger = v }
func (p *Plant) SetHeldInHand(v bool)     { p.held = v }
func (p *Plant) SetCliffDetected(v bool)  { p.cliff = v }
func (p *Plant) SetCarryingLoad(v bool)   { p.carrying = v }
func (p *Plant) SetEncoderInvalid(v bool) { p.encoderInvalid = v }

func (p *Plant) TimestampMS() uint32 { return p.timeMS }

func (p *Plant) MotorPosition(lift.MotorID) float64 { return p.angle - p.encoderZero }

func (p *Plant) MotorSpeed(lift.MotorID) float64 { return p.vel }

func (p *Plant) MotorSetPower(_ lift.MotorID, power float64) { p.power = power }

func (p *Plant) MotorResetPosition(lift.MotorID) {
	p.encoderZero = p.angle
	p.encoderInvalid = false
}

func (p *Plant) MotorCalibPower(lift.MotorID) float64 { return p.params.CalibPower }

func (p *Plant) OnCharger() bool { return p.onCharger }

func (p *Plant) EncoderInvalid(lift.MotorID) bool { return p.encoderInvalid }

func (p *Plant) HeldInHand() bool    { return p.held }
func (p *Plant) CliffDetected() bool { return p.cliff }
func (p *Plant) CarryingLoad() bool  { return p.carrying }
