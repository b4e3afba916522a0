// Package inputreport decodes the 60-byte input frame shared by both link
// layers into a typed snapshot, applying stick calibration in the process.
// Byte offsets are grounded on spec.md §4.5 and cross-checked against the
// teacher driver's hidinput.go parseReport, which decodes the same logical
// fields at different offsets for its narrower USB-only report.
package inputreport

import (
	"errors"
	"fmt"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
)

// FrameLen is the minimum valid input frame length; shorter frames are
// rejected with ErrFrameTooShort before any field is decoded.
const FrameLen = 60

// ErrFrameTooShort is returned by Decode for frames under FrameLen bytes.
var ErrFrameTooShort = errors.New("inputreport: frame too short")

// Snapshot is one decoded input frame (spec.md §3 "Input snapshot").
type Snapshot struct {
	Time uint32

	Buttons buttonmap.SwitchButton

	LeftStickX, LeftStickY   float64
	RightStickX, RightStickY float64

	MouseX, MouseY           uint16
	MouseRoughness           uint16
	MouseDistance            uint16

	Magnetometer [3]int16

	BatteryVoltageV  float64
	BatteryCurrentMA float64

	TemperatureC float64

	Accelerometer [3]int16
	Gyroscope     [3]int16
}

// Calibration bundles the two sticks' calibration, read once at connect
// time from controller memory (spec.md §3 "Stick calibration").
type Calibration struct {
	Left, Right calibration.Stick
}

// Decode parses a raw frame into a Snapshot, applying cal to the raw stick
// samples. enc selects which bit table resolves the buttons field.
func Decode(raw []byte, enc buttonmap.Encoding, profile calibration.Profile, cal Calibration) (Snapshot, error) {
	if len(raw) < FrameLen {
		return Snapshot{}, fmt.Errorf("%w: got %d bytes, want >= %d", ErrFrameTooShort, len(raw), FrameLen)
	}

	var s Snapshot
	s.Time = uint32(codec.DecodeU(raw[0:4]))
	s.Buttons = buttonmap.SwitchButton(codec.DecodeU(raw[4:8]))
	// offset 8, width 2: reserved

	lx, ly := codec.UnpackStick([3]byte{raw[10], raw[11], raw[12]})
	rx, ry := codec.UnpackStick([3]byte{raw[13], raw[14], raw[15]})
	s.LeftStickX, s.LeftStickY = profile.ApplyStick(int(lx), int(ly), cal.Left)
	s.RightStickX, s.RightStickY = profile.ApplyStick(int(rx), int(ry), cal.Right)

	s.MouseX = uint16(codec.DecodeU(raw[16:18]))
	s.MouseY = uint16(codec.DecodeU(raw[18:20]))
	s.MouseRoughness = uint16(codec.DecodeU(raw[20:22]))
	s.MouseDistance = uint16(codec.DecodeU(raw[22:24]))
	// offset 24, width 1: reserved

	s.Magnetometer = [3]int16{
		int16(codec.DecodeS(raw[25:27])),
		int16(codec.DecodeS(raw[27:29])),
		int16(codec.DecodeS(raw[29:31])),
	}

	s.BatteryVoltageV = float64(codec.DecodeU(raw[31:33])) / 1000.0
	s.BatteryCurrentMA = float64(codec.DecodeU(raw[33:35])) / 100.0
	// offset 35, width 11: reserved

	s.TemperatureC = 25.0 + float64(codec.DecodeU(raw[46:48]))/127.0

	s.Accelerometer = [3]int16{
		int16(codec.DecodeS(raw[48:50])),
		int16(codec.DecodeS(raw[50:52])),
		int16(codec.DecodeS(raw[52:54])),
	}
	s.Gyroscope = [3]int16{
		int16(codec.DecodeS(raw[54:56])),
		int16(codec.DecodeS(raw[56:58])),
		int16(codec.DecodeS(raw[58:60])),
	}

	return s, nil
}
