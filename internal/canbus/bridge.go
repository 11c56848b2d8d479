//go:build linux || darwin

package canbus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.einride.tech/can/pkg/socketcan"

	"github.com/embq/liftkit/internal/lift"
)

// Bridge connects the controller to a SocketCAN interface: it
// broadcasts state frames at a fixed rate and feeds decoded commands
// back through a channel owned by the control loop.
type Bridge struct {
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver
	log  *slog.Logger
}

func NewBridge(ctx context.Context, iface string, log *slog.Logger) (*Bridge, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &Bridge{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
		rx:   socketcan.NewReceiver(conn),
		log:  log,
	}, nil
}

func (b *Bridge) Close() error {
	return b.conn.Close()
}

// Run broadcasts snapshots from source every interval and delivers
// inbound commands to the commands channel until the context ends.
func (b *Bridge) Run(ctx context.Context, source func() State, commands chan<- Command, interval time.Duration) error {
	go b.receive(ctx, commands)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.tx.TransmitFrame(ctx, EncodeState(source())); err != nil {
				return fmt.Errorf("transmit state: %w", err)
			}
		}
	}
}

// Notifier returns a lift.Notifier that forwards controller events as
// notification frames on the bridge's bus.
func (b *Bridge) Notifier(ctx context.Context) *Notifier {
	return &Notifier{ctx: ctx, tx: b.tx, log: b.log}
}

type Notifier struct {
	ctx context.Context
	tx  *socketcan.Transmitter
	log *slog.Logger
}

func (n *Notifier) MotorCalibration(m lift.MotorID, calibrating, autoStarted bool) {
	n.send(Notification{Kind: NotifyCalibration, Motor: uint8(m), On: calibrating, Auto: autoStarted})
}

func (n *Notifier) MotorAutoEnabled(m lift.MotorID, enabled bool) {
	n.send(Notification{Kind: NotifyAutoEnable, Motor: uint8(m), On: enabled})
}

func (n *Notifier) send(msg Notification) {
	if err := n.tx.TransmitFrame(n.ctx, EncodeNotification(msg)); err != nil {
		n.log.Warn("dropping notification frame", "err", err)
	}
}

func (b *Bridge) receive(ctx context.Context, commands chan<- Command) {
	for b.rx.Receive() {
		frame := b.rx.Frame()
		if frame.ID != CommandFrameID {
			continue
		}
		cmd, err := DecodeCommand(frame)
		if err != nil {
			b.log.Warn("dropping malformed command frame", "err", err)
			continue
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}
