// Package messages carries controller notifications to whoever needs
// them: logs, tests or an RPC layer.
package messages

import (
	"log/slog"
	"sync"

	"github.com/embq/liftkit/internal/lift"
)

// Nop discards all notifications.
type Nop struct{}

func (Nop) MotorCalibration(lift.MotorID, bool, bool) {}
func (Nop) MotorAutoEnabled(lift.MotorID, bool)       {}

// SlogNotifier writes notifications to a structured logger.
type SlogNotifier struct {
	Log *slog.Logger
}

func NewSlogNotifier(log *slog.Logger) *SlogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &SlogNotifier{Log: log}
}

func (n *SlogNotifier) MotorCalibration(m lift.MotorID, calibrating, autoStarted bool) {
	n.Log.Info("motor calibration",
		"motor", m.String(), "calibrating", calibrating, "auto", autoStarted)
}

func (n *SlogNotifier) MotorAutoEnabled(m lift.MotorID, enabled bool) {
	n.Log.Info("motor auto enabled", "motor", m.String(), "enabled", enabled)
}

// FanOut forwards each notification to every wrapped notifier.
type FanOut []lift.Notifier

func (f FanOut) MotorCalibration(m lift.MotorID, calibrating, autoStarted bool) {
	for _, n := range f {
		n.MotorCalibration(m, calibrating, autoStarted)
	}
}

func (f FanOut) MotorAutoEnabled(m lift.MotorID, enabled bool) {
	for _, n := range f {
		n.MotorAutoEnabled(m, enabled)
	}
}

// Calibration is one captured calibration notification.
type Calibration struct {
	Motor       lift.MotorID
	Calibrating bool
	AutoStarted bool
}

// AutoEnable is one captured auto-enable notification.
type AutoEnable struct {
	Motor   lift.MotorID
	Enabled bool
}

// Recorder captures notifications for later inspection. Safe for
// concurrent use.
type Recorder struct {
	mu           sync.Mutex
	calibrations []Calibration
	autoEnables  []AutoEnable
}

func (r *Recorder) MotorCalibration(m lift.MotorID, calibrating, autoStarted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrations = append(r.calibrations, Calibration{m, calibrating, autoStarted})
}

func (r *Recorder) MotorAutoEnabled(m lift.MotorID, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoEnables = append(r.autoEnables, AutoEnable{m, enabled})
}

func (r *Recorder) Calibrations() []Calibration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Calibration(nil), r.calibrations...)
}

func (r *Recorder) AutoEnables() []AutoEnable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AutoEnable(nil), r.autoEnables...)
}
