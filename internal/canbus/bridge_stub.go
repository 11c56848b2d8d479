//go:build !linux && !darwin

package canbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/embq/liftkit/internal/lift"
)

// Bridge is unavailable without SocketCAN support.
type Bridge struct{}

var errUnsupported = errors.New("canbus: socketcan is not supported on this platform")

func NewBridge(context.Context, string, *slog.Logger) (*Bridge, error) {
	return nil, errUnsupported
}

func (b *Bridge) Close() error { return errUnsupported }

func (b *Bridge) Run(context.Context, func() State, chan<- Command, time.Duration) error {
	return errUnsupported
}

func (b *Bridge) Notifier(context.Context) *Notifier { return &Notifier{} }

// Notifier is a no-op without SocketCAN support.
type Notifier struct{}

func (n *Notifier) MotorCalibration(lift.MotorID, bool, bool) {}
func (n *Notifier) MotorAutoEnabled(lift.MotorID, bool)       {}
