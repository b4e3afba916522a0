package inputreport

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
)

func centeredCalibration() Calibration {
	axis := calibration.Axis{Center: 0x800, Max: 0x700, Min: 0x700}
	stick := calibration.Stick{X: axis, Y: axis}
	return Calibration{Left: stick, Right: stick}
}

// buildFrame constructs a 60-byte frame per spec.md §4.5's byte layout.
func buildFrame(t *testing.T, timeVal, buttons uint32, leftX, leftY, rightX, rightY uint16) []byte {
	t.Helper()
	f := make([]byte, FrameLen)
	f[0], f[1], f[2], f[3] = byte(timeVal), byte(timeVal>>8), byte(timeVal>>16), byte(timeVal>>24)
	f[4], f[5], f[6], f[7] = byte(buttons), byte(buttons>>8), byte(buttons>>16), byte(buttons>>24)
	left := codec.PackStick(leftX, leftY)
	copy(f[10:13], left[:])
	right := codec.PackStick(rightX, rightY)
	copy(f[13:16], right[:])
	return f
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode(make([]byte, 10), buttonmap.EncodingBLE, calibration.Profile{}, centeredCalibration())
	if err == nil {
		t.Fatal("expected ErrFrameTooShort")
	}
}

func TestDecodeReferenceFrame(t *testing.T) {
	// S3: time=0x01020304, buttons=A only, left=(0x800,0x800), right centered.
	frame := buildFrame(t, 0x01020304, uint32(buttonmap.BLEButtonA), 0x800, 0x800, 0x800, 0x800)

	profile := calibration.Profile{Deadzone: 50}
	snap, err := Decode(frame, buttonmap.EncodingBLE, profile, centeredCalibration())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Time != 0x01020304 {
		t.Fatalf("got time %#x", snap.Time)
	}
	if snap.Buttons != buttonmap.BLEButtonA {
		t.Fatalf("got buttons %#x, want A-only", snap.Buttons)
	}
	if snap.LeftStickX != 0 || snap.LeftStickY != 0 || snap.RightStickX != 0 || snap.RightStickY != 0 {
		t.Fatalf("expected centered sticks, got left=(%f,%f) right=(%f,%f)",
			snap.LeftStickX, snap.LeftStickY, snap.RightStickX, snap.RightStickY)
	}
	if snap.BatteryVoltageV != 0 {
		t.Fatalf("expected zero battery voltage, got %f", snap.BatteryVoltageV)
	}
}

func TestDecodeMotionFields(t *testing.T) {
	frame := buildFrame(t, 0, 0, 0x800, 0x800, 0x800, 0x800)
	// accelerometer x at offset 48..50, little-endian signed.
	frame[48], frame[49] = 0x01, 0x00
	frame[50], frame[51] = 0xFF, 0xFF // -1

	snap, err := Decode(frame, buttonmap.EncodingBLE, calibration.Profile{}, centeredCalibration())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Accelerometer[0] != 1 {
		t.Fatalf("got accel.x=%d, want 1", snap.Accelerometer[0])
	}
	if snap.Accelerometer[1] != -1 {
		t.Fatalf("got accel.y=%d, want -1", snap.Accelerometer[1])
	}
}
