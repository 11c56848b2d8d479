package canbus

import (
	"testing"

	"go.einride.tech/can"
)

func TestStateRoundTrip(t *testing.T) {
	in := State{
		AngleMrad:   -198,
		SpeedMradPS: 1500,
		PowerPM:     -800,
		Flags:       FlagCalibrated | FlagEnabled,
		Seq:         42,
	}
	out, err := DecodeState(EncodeState(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	in := Command{Op: OpSetHeight, A: 920, B: 2000, C: 200}
	out, err := DecodeCommand(EncodeCommand(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestDecodeRejectsWrongID(t *testing.T) {
	f := EncodeCommand(Command{Op: OpStop})
	if _, err := DecodeState(f); err == nil {
		t.Error("expected error decoding command frame as state")
	}

	f = EncodeState(State{})
	if _, err := DecodeCommand(f); err == nil {
		t.Error("expected error decoding state frame as command")
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	f := can.Frame{ID: CommandFrameID, Length: 2}
	if _, err := DecodeCommand(f); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	f := EncodeCommand(Command{Op: OpCalibrate})
	f.Data[0] = 0xEE
	if _, err := DecodeCommand(f); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	in := Notification{Kind: NotifyCalibration, Motor: 0, On: true, Auto: true}
	out, err := DecodeNotification(EncodeNotification(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestDecodeNotificationRejectsUnknownKind(t *testing.T) {
	f := can.Frame{ID: NotifyFrameID, Length: 4}
	f.Data[0] = 99
	if _, err := DecodeNotification(f); err == nil {
		t.Error("expected error for unknown notification kind")
	}
}
