package metrics

import "math"

// RMSError is the root-mean-square tracking error between the measured
// angle and the profile setpoint.
type RMSError struct {
	name    string
	sumSq   float64
	samples int
}

func NewRMSError() *RMSError {
	return &RMSError{name: "rms_error_rad"}
}

func (m *RMSError) Name() string { return m.name }

func (m *RMSError) Observe(s Sample) {
	err := s.Angle - s.Setpoint
	m.sumSq += err * err
	m.samples++
}

func (m *RMSError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *RMSError) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// Overshoot is the largest excursion past the commanded angle, in the
// direction of travel. Re-latches whenever the command changes.
type Overshoot struct {
	name      string
	desired   float64
	direction float64
	latched   bool
	max       float64
}

func NewOvershoot() *Overshoot {
	return &Overshoot{name: "overshoot_rad"}
}

func (m *Overshoot) Name() string { return m.name }

func (m *Overshoot) Observe(s Sample) {
	if !m.latched || s.Desired != m.desired {
		m.desired = s.Desired
		m.latched = true
		m.direction = 0
		if s.Desired > s.Angle {
			m.direction = 1
		} else if s.Desired < s.Angle {
			m.direction = -1
		}
		return
	}
	if excess := (s.Angle - m.desired) * m.direction; excess > m.max {
		m.max = excess
	}
}

func (m *Overshoot) Value() float64 { return m.max }

func (m *Overshoot) Reset() {
	m.latched = false
	m.max = 0
}

// SettleTime is the time at which the controller entered its final
// uninterrupted in-position stretch. -1 when it never settled.
type SettleTime struct {
	name    string
	settled float64
	have    bool
}

func NewSettleTime() *SettleTime {
	return &SettleTime{name: "settle_time_s"}
}

func (m *SettleTime) Name() string { return m.name }

func (m *SettleTime) Observe(s Sample) {
	if !s.InPosition {
		m.have = false
		return
	}
	if !m.have {
		m.settled = s.T
		m.have = true
	}
}

func (m *SettleTime) Value() float64 {
	if !m.have {
		return -1
	}
	return m.settled
}

func (m *SettleTime) Reset() {
	m.settled = 0
	m.have = false
}

// ControlEffort is the mean absolute motor power over the run.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{name: "control_effort"}
}

func (m *ControlEffort) Name() string { return m.name }

func (m *ControlEffort) Observe(s Sample) {
	m.sum += math.Abs(s.Power)
	m.samples++
}

func (m *ControlEffort) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *ControlEffort) Reset() {
	m.sum = 0
	m.samples = 0
}

// SaturationDuty is the fraction of ticks spent at full power, an
// early-warning proxy for burnout protection trips.
type SaturationDuty struct {
	name      string
	saturated int
	samples   int
}

func NewSaturationDuty() *SaturationDuty {
	return &SaturationDuty{name: "saturation_duty"}
}

func (m *SaturationDuty) Name() string { return m.name }

func (m *SaturationDuty) Observe(s Sample) {
	if math.Abs(s.Power) >= 0.999 {
		m.saturated++
	}
	m.samples++
}

func (m *SaturationDuty) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.saturated) / float64(m.samples)
}

func (m *SaturationDuty) Reset() {
	m.saturated = 0
	m.samples = 0
}
