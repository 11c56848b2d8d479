// Package vpg generates time-parameterized velocity profiles for joint
// motion. A Generator produces one position/velocity sample per control
// tick, either following a feasible trapezoidal profile bounded by max
// speed and acceleration, or fitting a profile to an exact duration.
package vpg

import "math"

type mode int

const (
	modeIdle mode = iota
	modeSeek
	modeTimed
)

// Generator holds the state of a single in-flight motion profile. It is
// re-armed with Start or StartFixedDuration every time a new goal is
// commanded, and advanced once per tick with Step. After the profile
// ends, Step keeps returning the goal position at the end velocity.
type Generator struct {
	m    mode
	dt   float64
	done bool

	pos, vel float64
	endPos   float64
	endVel   float64
	maxSpeed float64
	accel    float64

	// fixed-duration profile
	t, ta, tc, td, duration float64
	startPos, startVel      float64
	cruiseVel, a1, a2       float64
}

// Start arms an unconstrained-duration profile from the current
// position and velocity to endPos. It always succeeds: a start velocity
// pointing away from the goal is braked first, and moves too short to
// reach cruise speed degrade to a triangular profile.
func (g *Generator) Start(startVel, startPos, maxSpeed, accel, endVel, endPos, dt float64) {
	g.m = modeSeek
	g.dt = dt
	g.done = false
	g.pos = startPos
	g.vel = startVel
	g.endPos = endPos
	g.endVel = math.Abs(endVel)
	g.maxSpeed = math.Abs(maxSpeed)
	g.accel = math.Abs(accel)
	if g.accel == 0 {
		g.accel = 1
	}
}

// StartFixedDuration arms a profile that reaches endPos in exactly
// duration seconds, ramping for accStartDur at the start and accEndDur
// at the end. It returns false when no such profile exists within the
// speed and acceleration bounds; the caller is expected to fall back to
// Start.
func (g *Generator) StartFixedDuration(startVel, startPos, accStartDur, endPos, accEndDur, maxSpeed, maxAccel, duration, dt float64) bool {
	if duration <= 0 {
		return false
	}
	ta := math.Max(accStartDur, dt)
	td := math.Max(accEndDur, dt)
	tc := duration - ta - td
	if tc < 0 {
		return false
	}

	// Cruise velocity that makes the ramp/cruise/ramp areas sum to the
	// commanded displacement.
	dist := endPos - startPos
	vc := (dist - startVel*ta/2) / (ta/2 + tc + td/2)
	if math.Abs(vc) > math.Abs(maxSpeed) {
		return false
	}
	a1 := (vc - startVel) / ta
	a2 := -vc / td
	if math.Abs(a1) > math.Abs(maxAccel) || math.Abs(a2) > math.Abs(maxAccel) {
		return false
	}

	g.m = modeTimed
	g.dt = dt
	g.done = false
	g.t = 0
	g.ta = ta
	g.tc = tc
	g.td = td
	g.duration = duration
	g.startPos = startPos
	g.startVel = startVel
	g.cruiseVel = vc
	g.a1 = a1
	g.a2 = a2
	g.endPos = endPos
	g.endVel = 0
	g.pos = startPos
	g.vel = startVel
	return true
}

// Step advances the profile by one tick and returns the new velocity
// and position setpoint.
func (g *Generator) Step() (vel, pos float64) {
	switch g.m {
	case modeSeek:
		return g.stepSeek()
	case modeTimed:
		return g.stepTimed()
	default:
		return 0, g.pos
	}
}

func (g *Generator) stepSeek() (float64, float64) {
	if g.done {
		return g.vel, g.pos
	}

	d := g.endPos - g.pos
	dir := 1.0
	if d < 0 {
		dir = -1.0
	}

	// Decelerate once the remaining distance is within the stopping
	// distance at the current velocity, otherwise head for cruise speed.
	stopDist := (g.vel*g.vel - g.endVel*g.endVel) / (2 * g.accel)
	target := dir * g.maxSpeed
	if g.vel*dir >= 0 && stopDist >= math.Abs(d) {
		target = dir * g.endVel
	}

	dv := g.accel * g.dt
	if g.vel < target {
		g.vel = math.Min(g.vel+dv, target)
	} else {
		g.vel = math.Max(g.vel-dv, target)
	}
	g.pos += g.vel * g.dt

	crossed := (d >= 0 && g.pos >= g.endPos) || (d < 0 && g.pos <= g.endPos)
	if crossed || (math.Abs(g.endPos-g.pos) < 1e-9 && math.Abs(g.vel) <= dv) {
		g.pos = g.endPos
		g.vel = dir * g.endVel
		g.done = true
	}
	return g.vel, g.pos
}

func (g *Generator) stepTimed() (float64, float64) {
	if g.done {
		return 0, g.endPos
	}
	g.t += g.dt
	t := g.t

	switch {
	case t >= g.duration:
		g.vel = 0
		g.pos = g.endPos
		g.done = true
	case t < g.ta:
		g.vel = g.startVel + g.a1*t
		g.pos = g.startPos + g.startVel*t + 0.5*g.a1*t*t
	case t < g.ta+g.tc:
		u := t - g.ta
		g.vel = g.cruiseVel
		g.pos = g.posAfterRamp() + g.cruiseVel*u
	default:
		u := t - g.ta - g.tc
		g.vel = g.cruiseVel + g.a2*u
		g.pos = g.posAfterRamp() + g.cruiseVel*g.tc + g.cruiseVel*u + 0.5*g.a2*u*u
	}
	return g.vel, g.pos
}

func (g *Generator) posAfterRamp() float64 {
	return g.startPos + g.startVel*g.ta + 0.5*g.a1*g.ta*g.ta
}

// TargetReached reports whether the profile has delivered its final
// sample.
func (g *Generator) TargetReached() bool { return g.done }

// TargetPos returns the goal position of the armed profile.
func (g *Generator) TargetPos() float64 { return g.endPos }
