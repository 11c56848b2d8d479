// Package canbus exposes the lift controller on a CAN bus: a periodic
// state frame and asynchronous notification frames out, command frames
// in.
package canbus

import (
	"encoding/binary"
	"fmt"

	"go.einride.tech/can"
)

// Frame IDs on the bench bus.
const (
	StateFrameID   uint32 = 0x2A0
	CommandFrameID uint32 = 0x2A1
	NotifyFrameID  uint32 = 0x2A2
)

// State frame flag bits.
const (
	FlagCalibrated = 1 << iota
	FlagCalibrating
	FlagInPosition
	FlagEnabled
	FlagBracing
	FlagEncoderInvalid
)

// State is the periodic status broadcast. Angles are milliradians,
// speed milliradians per second, power per-mille of full scale.
type State struct {
	AngleMrad   int16
	SpeedMradPS int16
	PowerPM     int16
	Flags       uint8
	Seq         uint8
}

// Command opcodes.
const (
	OpSetAngle uint8 = iota + 1
	OpSetHeight
	OpSetVelocity
	OpStop
	OpEnable
	OpDisable
	OpBrace
	OpUnbrace
	OpCalibrate
)

// Command is one inbound request. A is the primary argument (target
// milliradians, height tenths of a millimetre or speed mrad/s), B the
// speed bound mrad/s and C the acceleration bound in 0.1 rad/s².
type Command struct {
	Op uint8
	A  int16
	B  int16
	C  int16
}

func EncodeState(s State) can.Frame {
	var f can.Frame
	f.ID = StateFrameID
	f.Length = 8
	binary.BigEndian.PutUint16(f.Data[0:2], uint16(s.AngleMrad))
	binary.BigEndian.PutUint16(f.Data[2:4], uint16(s.SpeedMradPS))
	binary.BigEndian.PutUint16(f.Data[4:6], uint16(s.PowerPM))
	f.Data[6] = s.Flags
	f.Data[7] = s.Seq
	return f
}

func DecodeState(f can.Frame) (State, error) {
	if f.ID != StateFrameID {
		return State{}, fmt.Errorf("frame 0x%X is not a state frame", f.ID)
	}
	if f.Length < 8 {
		return State{}, fmt.Errorf("state frame too short: %d bytes", f.Length)
	}
	return State{
		AngleMrad:   int16(binary.BigEndian.Uint16(f.Data[0:2])),
		SpeedMradPS: int16(binary.BigEndian.Uint16(f.Data[2:4])),
		PowerPM:     int16(binary.BigEndian.Uint16(f.Data[4:6])),
		Flags:       f.Data[6],
		Seq:         f.Data[7],
	}, nil
}

func EncodeCommand(c Command) can.Frame {
	var f can.Frame
	f.ID = CommandFrameID
	f.Length = 7
	f.Data[0] = c.Op
	binary.BigEndian.PutUint16(f.Data[1:3], uint16(c.A))
	binary.BigEndian.PutUint16(f.Data[3:5], uint16(c.B))
	binary.BigEndian.PutUint16(f.Data[5:7], uint16(c.C))
	return f
}

func DecodeCommand(f can.Frame) (Command, error) {
	if f.ID != CommandFrameID {
		return Command{}, fmt.Errorf("frame 0x%X is not a command frame", f.ID)
	}
	if f.Length < 7 {
		return Command{}, fmt.Errorf("command frame too short: %d bytes", f.Length)
	}
	c := Command{
		Op: f.Data[0],
		A:  int16(binary.BigEndian.Uint16(f.Data[1:3])),
		B:  int16(binary.BigEndian.Uint16(f.Data[3:5])),
		C:  int16(binary.BigEndian.Uint16(f.Data[5:7])),
	}
	if c.Op == 0 || c.Op > OpCalibrate {
		return Command{}, fmt.Errorf("unknown opcode %d", c.Op)
	}
	return c, nil
}

// Notification kinds.
const (
	NotifyCalibration uint8 = iota + 1
	NotifyAutoEnable
)

// Notification is an asynchronous event frame: calibration state edges
// and supervisor auto enable/disable.
type Notification struct {
	Kind  uint8
	Motor uint8
	On    bool // calibrating, or enabled
	Auto  bool // calibration was auto-started
}

func EncodeNotification(n Notification) can.Frame {
	var f can.Frame
	f.ID = NotifyFrameID
	f.Length = 4
	f.Data[0] = n.Kind
	f.Data[1] = n.Motor
	if n.On {
		f.Data[2] = 1
	}
	if n.Auto {
		f.Data[3] = 1
	}
	return f
}

func DecodeNotification(f can.Frame) (Notification, error) {
	if f.ID != NotifyFrameID {
		return Notification{}, fmt.Errorf("frame 0x%X is not a notification frame", f.ID)
	}
	if f.Length < 4 {
		return Notification{}, fmt.Errorf("notification frame too short: %d bytes", f.Length)
	}
	n := Notification{
		Kind:  f.Data[0],
		Motor: f.Data[1],
		On:    f.Data[2] != 0,
		Auto:  f.Data[3] != 0,
	}
	if n.Kind == 0 || n.Kind > NotifyAutoEnable {
		return Notification{}, fmt.Errorf("unknown notification kind %d", n.Kind)
	}
	return n, nil
}
