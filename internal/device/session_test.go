package device

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/codec"
)

func TestVibrationCharFor(t *testing.T) {
	cases := map[Kind]string{
		KindJoyConLeft:     CharVibrationLeft,
		KindJoyConRight:    CharVibrationRight,
		KindProController2: CharVibrationPro,
		KindGameCube:       CharVibrationPro,
	}
	for kind, want := range cases {
		if got := VibrationCharFor(kind); got != want {
			t.Fatalf("kind %v: got %s, want %s", kind, got, want)
		}
	}
}

func TestParseControllerInfoShort(t *testing.T) {
	id := ParseControllerInfo(make([]byte, 4))
	if id.Serial != "" {
		t.Fatalf("expected zero value, got %+v", id)
	}
}

func TestParseControllerInfoFull(t *testing.T) {
	info := make([]byte, 0x40)
	copy(info[2:16], []byte("SERIAL1234567\x00"))
	info[18], info[19] = 0x7E, 0x05
	info[20], info[21] = 0x69, 0x20
	info[25], info[26], info[27] = 1, 2, 3

	id := ParseControllerInfo(info)
	if id.VendorID != NintendoVendorID {
		t.Fatalf("got vendor %#x", id.VendorID)
	}
	if id.ProductID != ProductProController2 {
		t.Fatalf("got product %#x", id.ProductID)
	}
	if id.ColorBody != [3]byte{1, 2, 3} {
		t.Fatalf("got body color %v", id.ColorBody)
	}
}

func TestParseStickCalibration(t *testing.T) {
	// data[0:3]=center, data[3:6]=max, data[6:9]=min, matching
	// original_source/controller.py's data[0:3]/data[3:6]/data[6:9] layout.
	var data [9]byte
	center := codec.PackStick(0x800, 0x800)
	max := codec.PackStick(0xFFF, 0xFFF)
	min := codec.PackStick(0, 0)
	copy(data[0:3], center[:])
	copy(data[3:6], max[:])
	copy(data[6:9], min[:])

	stick := ParseStickCalibration(data[:])
	if stick.X.Max != 0xFFF || stick.Y.Max != 0xFFF {
		t.Fatalf("got max %+v", stick)
	}
	if stick.X.Center != 0x800 || stick.Y.Center != 0x800 {
		t.Fatalf("got center %+v", stick)
	}
	if stick.X.Min != 0 || stick.Y.Min != 0 {
		t.Fatalf("got min %+v", stick)
	}
}
