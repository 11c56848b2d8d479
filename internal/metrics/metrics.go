// Package metrics computes scalar summaries of a control run from the
// per-tick sample stream.
package metrics

// Sample is one control tick worth of observable state.
type Sample struct {
	// T is simulated time in seconds.
	T float64

	// Angle is the measured joint angle, Setpoint the profile output
	// for this tick and Desired the final commanded angle.
	Angle    float64
	Setpoint float64
	Desired  float64

	Speed float64
	Power float64

	InPosition bool
	Calibrated bool
	Enabled    bool
	Bracing    bool
}

// Metric accumulates over a run and reduces to one value.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metric set recorded for every run.
func Standard() []Metric {
	return []Metric{
		NewRMSError(),
		NewOvershoot(),
		NewSettleTime(),
		NewControlEffort(),
		NewSaturationDuty(),
	}
}
