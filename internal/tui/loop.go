// Package tui is the interactive bench console: a live control loop
// over the simulated joint with charts and keyboard commands.
package tui

import (
	"context"
	"time"

	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/plant"
)

// State is one published snapshot of the loop.
type State struct {
	T        float64
	Angle    float64
	Setpoint float64
	Desired  float64
	Speed    float64
	Power    float64
	HeightMM float64

	InPosition  bool
	Calibrated  bool
	Calibrating bool
	Enabled     bool
	Bracing     bool

	OnCharger bool
	Held      bool
	Carrying  bool

	// LoadResult holds the last load check outcome, empty before the
	// first check completes.
	LoadResult string
}

// Command mutates the plant or controller from inside the loop tick.
type Command func(*plant.Plant, *lift.Controller)

// Loop owns the plant and controller and runs them at the control rate
// on the wall clock. The UI talks to it only through channels.
type Loop struct {
	cfg      *config.Config
	commands chan Command
	states   chan State

	onCharger bool
	held      bool
	carrying  bool
	loadNote  string
}

func NewLoop(cfg *config.Config) *Loop {
	return &Loop{
		cfg:      cfg,
		commands: make(chan Command, 16),
		states:   make(chan State, 1),
	}
}

func (l *Loop) States() <-chan State { return l.states }

// Send queues a command for the next tick.
func (l *Loop) Send(cmd Command) {
	select {
	case l.commands <- cmd:
	default:
	}
}

// Run ticks until the context ends. Publishes a state snapshot every
// few ticks, dropping stale ones if the UI lags.
func (l *Loop) Run(ctx context.Context) {
	p := plant.New(l.cfg.Plant, l.cfg.StartAngleRad())
	c := lift.New(p, p, nil, l.cfg.LiftProfile())
	c.StartCalibrationRoutine(true, lift.ReasonStartup)

	ticker := time.NewTicker(time.Duration(lift.ControlDT * float64(time.Second)))
	defer ticker.Stop()

	const publishEvery = 8
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for applied := true; applied; {
			select {
			case cmd := <-l.commands:
				cmd(p, c)
			default:
				applied = false
			}
		}

		p.Tick()
		c.Update()

		tick++
		if tick%publishEvery != 0 {
			continue
		}

		s := State{
			T:           float64(tick) * lift.ControlDT,
			Angle:       c.AngleRad(),
			Setpoint:    c.SetpointRad(),
			Desired:     c.DesiredAngleRad(),
			Speed:       c.AngularVelocity(),
			Power:       c.Power(),
			HeightMM:    c.HeightMM(),
			InPosition:  c.IsInPosition(),
			Calibrated:  c.IsCalibrated(),
			Calibrating: c.IsCalibrating(),
			Enabled:     c.IsEnabled(),
			Bracing:     c.IsBracing(),
			OnCharger:   l.onCharger,
			Held:        l.held,
			Carrying:    l.carrying,
			LoadResult:  l.loadNote,
		}

		select {
		case l.states <- s:
		default:
			// Drop the stale snapshot and publish the fresh one.
			select {
			case <-l.states:
			default:
			}
			select {
			case l.states <- s:
			default:
			}
		}
	}
}

// The flag commands remember their state so the UI can display it.

func (l *Loop) ToggleCharger() {
	l.Send(func(p *plant.Plant, _ *lift.Controller) {
		l.onCharger = !l.onCharger
		p.SetOnCharger(l.onCharger)
	})
}

func (l *Loop) ToggleHeld() {
	l.Send(func(p *plant.Plant, _ *lift.Controller) {
		l.held = !l.held
		p.SetHeldInHand(l.held)
	})
}

func (l *Loop) ToggleCarrying() {
	l.Send(func(p *plant.Plant, _ *lift.Controller) {
		l.carrying = !l.carrying
		p.SetCarryingLoad(l.carrying)
	})
}

func (l *Loop) CheckForLoad() {
	l.Send(func(_ *plant.Plant, c *lift.Controller) {
		l.loadNote = "checking..."
		c.CheckForLoad(func(hasLoad bool) {
			if hasLoad {
				l.loadNote = "load detected"
			} else {
				l.loadNote = "no load"
			}
		})
	})
}
