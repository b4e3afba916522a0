package codec

import "testing"

func TestDecodeU(t *testing.T) {
	if got := DecodeU([]byte{0x04, 0x03, 0x02, 0x01}); got != 0x01020304 {
		t.Fatalf("got %#x", got)
	}
}

func TestDecodeS(t *testing.T) {
	if got := DecodeS([]byte{0xFF, 0xFF}); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
	if got := DecodeS([]byte{0x01, 0x00}); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestStickRoundTrip(t *testing.T) {
	for x := uint16(0); x < 4096; x += 137 {
		for y := uint16(0); y < 4096; y += 211 {
			packed := PackStick(x, y)
			gx, gy := UnpackStick(packed)
			if gx != x || gy != y {
				t.Fatalf("round trip failed: in=(%d,%d) out=(%d,%d)", x, y, gx, gy)
			}
		}
	}
}

func TestReverseBitsInvolution(t *testing.T) {
	for n := uint8(0); n < 16; n++ {
		if got := ReverseBits(ReverseBits(n, 4), 4); got != n {
			t.Fatalf("reverse_bits(reverse_bits(%d)) = %d", n, got)
		}
	}
}

func TestReverseBitsKnownValue(t *testing.T) {
	// Player 3 LED pattern 0x07 mirrors to 0x0E in the low nibble (S4 in spec).
	if got := ReverseBits(0x07, 4); got != 0x0E {
		t.Fatalf("got %#x, want 0x0e", got)
	}
}

func TestLoopingDiff16(t *testing.T) {
	cases := []struct{ a, b uint16 }{
		{0, 0}, {0, 1}, {65535, 0}, {0, 65535}, {30000, 40000}, {40000, 30000},
	}
	for _, c := range cases {
		diff := LoopingDiff16(c.a, c.b)
		if diff < -32768 || diff > 32767 {
			diff32 := diff
			t.Fatalf("diff out of range: %d", diff32)
		}
		sum := (uint32(c.a) + uint32(uint32(int32(diff)))) % 65536
		if uint16(sum) != c.b {
			t.Fatalf("a=%d b=%d diff=%d: (a+diff)%%65536=%d want %d", c.a, c.b, diff, sum, c.b)
		}
	}
}

func TestParseMAC48(t *testing.T) {
	v, err := ParseMAC48("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xaabbccddeeff {
		t.Fatalf("got %#x", v)
	}
	if _, err := ParseMAC48("not-a-mac"); err == nil {
		t.Fatal("expected error")
	}
}
