package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/das"
	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/messages"
	"github.com/embq/liftkit/internal/metrics"
	"github.com/embq/liftkit/internal/plant"
)

// Result is everything one scenario run produced.
type Result struct {
	Scenario   string
	Dt         float64
	Duration   float64
	Samples    []metrics.Sample
	Metrics    map[string]float64
	Events     []das.Event
	Calibrated []messages.Calibration
	LoadChecks []bool
}

// Runner wires a plant and controller together and plays a scenario
// against them at the fixed control rate.
type Runner struct {
	cfg *config.Config
	log *slog.Logger

	// OnSample, when set, observes every sample as it is produced.
	OnSample func(metrics.Sample)

	// Sinks receive controller events in addition to the in-memory
	// sink the result is built from.
	Sinks []das.Sink
}

func NewRunner(cfg *config.Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// Run plays the scenario to completion or context cancellation.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	p := plant.New(r.cfg.Plant, r.cfg.StartAngleRad())
	notes := &messages.Recorder{}
	c := lift.New(p, p, notes, r.cfg.LiftProfile())
	c.SetLogger(r.log)

	events := &das.MemorySink{}
	sinks := append([]das.Sink{events}, r.Sinks...)
	c.SetTelemetry(das.NewRecorder(sinks...))

	res := &Result{
		Scenario: s.Name,
		Dt:       lift.ControlDT,
		Duration: s.Duration,
		Metrics:  map[string]float64{},
	}

	standard := metrics.Standard()
	steps := s.sortedSteps()
	next := 0
	ticks := int(s.Duration/lift.ControlDT + 0.5)

	for i := 0; i < ticks; i++ {
		if i%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		t := float64(i) * lift.ControlDT
		for next < len(steps) && steps[next].At <= t {
			r.apply(steps[next], p, c, res)
			next++
		}

		p.Tick()
		c.Update()

		sample := metrics.Sample{
			T:          t,
			Angle:      c.AngleRad(),
			Setpoint:   c.SetpointRad(),
			Desired:    c.DesiredAngleRad(),
			Speed:      c.AngularVelocity(),
			Power:      c.Power(),
			InPosition: c.IsInPosition(),
			Calibrated: c.IsCalibrated(),
			Enabled:    c.IsEnabled(),
			Bracing:    c.IsBracing(),
		}
		res.Samples = append(res.Samples, sample)
		for _, m := range standard {
			m.Observe(sample)
		}
		if r.OnSample != nil {
			r.OnSample(sample)
		}
	}

	for _, m := range standard {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Events = events.Events()
	res.Calibrated = notes.Calibrations()
	return res, nil
}

func (r *Runner) apply(step Step, p *plant.Plant, c *lift.Controller, res *Result) {
	speed := step.Speed
	if speed == 0 {
		speed = 2.0
	}
	accel := step.Accel
	if accel == 0 {
		accel = 20.0
	}

	switch step.Action {
	case "calibrate":
		c.StartCalibrationRoutine(false, lift.ReasonCommanded)
	case "clear_calibration":
		c.ClearCalibration()
	case "set_height":
		if step.MoveDuration > 0 {
			c.SetDesiredHeightByDuration(step.HeightMM, 0.25, 0.25, step.MoveDuration)
		} else {
			c.SetDesiredHeight(step.HeightMM, speed, accel, true)
		}
	case "set_angle":
		angle := lift.MinAngleRad + lift.DegToRad(step.AngleDeg)
		if step.MoveDuration > 0 {
			c.SetDesiredAngleByDuration(angle, 0.25, 0.25, step.MoveDuration)
		} else {
			c.SetDesiredAngle(angle, speed, accel, true)
		}
	case "set_velocity":
		c.SetAngularVelocity(step.Speed, accel)
	case "stop":
		c.Stop()
	case "enable":
		c.Enable()
	case "disable":
		c.Disable(step.On)
	case "brace":
		c.Brace()
	case "unbrace":
		c.Unbrace()
	case "check_load":
		c.CheckForLoad(func(hasLoad bool) {
			res.LoadChecks = append(res.LoadChecks, hasLoad)
		})
	case "disturb":
		p.SetDisturbance(step.TorqueNm)
	case "charger":
		p.SetOnCharger(step.On)
	case "held":
		p.SetHeldInHand(step.On)
	case "cliff":
		p.SetCliffDetected(step.On)
	case "carry":
		p.SetCarryingLoad(step.On)
	case "encoder_invalid":
		p.SetEncoderInvalid(step.On)
	case "set_gains":
		c.SetGains(step.Kp, step.Ki, step.Kd, step.MaxErrorSum)
	default:
		// Validate rejects unknown actions before the run starts.
		panic(fmt.Sprintf("unhandled action %q", step.Action))
	}
}
