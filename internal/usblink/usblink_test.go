package usblink

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/device"
)

func TestParseControllerInfoTooShort(t *testing.T) {
	id := device.ParseControllerInfo(make([]byte, 4))
	if id.Serial != "" || id.VendorID != 0 {
		t.Fatal("expected zero-value identity for short info buffer")
	}
}

func TestParseControllerInfoFields(t *testing.T) {
	info := make([]byte, 0x40)
	copy(info[2:16], []byte("XW00012345678\x00\x00"))
	info[18], info[19] = 0x7E, 0x05 // vendor 0x057E
	info[20], info[21] = 0x69, 0x20 // product 0x2069
	info[25], info[26], info[27] = 0x11, 0x22, 0x33
	info[28], info[29], info[30] = 0x44, 0x55, 0x66

	id := device.ParseControllerInfo(info)
	if id.VendorID != 0x057E {
		t.Fatalf("got vendor %#x", id.VendorID)
	}
	if id.ProductID != 0x2069 {
		t.Fatalf("got product %#x", id.ProductID)
	}
	if id.ColorBody != [3]byte{0x11, 0x22, 0x33} {
		t.Fatalf("got body color %v", id.ColorBody)
	}
	if id.ColorButtons != [3]byte{0x44, 0x55, 0x66} {
		t.Fatalf("got buttons color %v", id.ColorButtons)
	}
}

func TestParseStickCalibrationRoundTrip(t *testing.T) {
	maxB := codec.PackStick(0x0F00, 0x0E00)
	centerB := codec.PackStick(0x0800, 0x0810)
	minB := codec.PackStick(0x0100, 0x0200)

	data := make([]byte, 9)
	copy(data[0:3], maxB[:])
	copy(data[3:6], centerB[:])
	copy(data[6:9], minB[:])

	stick := device.ParseStickCalibration(data)
	if stick.X.Center != 0x0800 || stick.Y.Center != 0x0810 {
		t.Fatalf("got center %+v", stick)
	}
	if stick.X.Max != 0x0F00 || stick.Y.Max != 0x0E00 {
		t.Fatalf("got max %+v", stick)
	}
	if stick.X.Min != 0x0100 || stick.Y.Min != 0x0200 {
		t.Fatalf("got min %+v", stick)
	}
}
