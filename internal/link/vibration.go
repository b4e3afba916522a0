package link

// Vibration is a two-band rumble frame: low-frequency and high-frequency
// amplitude/tone pairs, packed little-endian into 5 bytes per spec.md §3/§8.
type Vibration struct {
	LowFreq   uint16 // 9 bits
	LowTone   bool
	LowAmp    uint16 // 10 bits
	HighFreq  uint16 // 9 bits
	HighTone  bool
	HighAmp   uint16 // 10 bits
}

// Bytes packs the frame into 5 little-endian bytes:
// lf_freq | tone<<9 | lf_amp<<10 | hf_freq<<20 | hf_tone<<29 | hf_amp<<30.
func (v Vibration) Bytes() [5]byte {
	var packed uint64
	packed |= uint64(v.LowFreq & 0x1FF)
	if v.LowTone {
		packed |= 1 << 9
	}
	packed |= uint64(v.LowAmp&0x3FF) << 10
	packed |= uint64(v.HighFreq&0x1FF) << 20
	if v.HighTone {
		packed |= 1 << 29
	}
	packed |= uint64(v.HighAmp&0x3FF) << 30

	var b [5]byte
	for i := range b {
		b[i] = byte(packed >> (8 * uint(i)))
	}
	return b
}

// DecodeVibration is the inverse of Bytes, used by tests to check the
// packing round-trips (spec.md §8 invariant 1).
func DecodeVibration(b [5]byte) Vibration {
	var packed uint64
	for i, x := range b {
		packed |= uint64(x) << (8 * uint(i))
	}
	return Vibration{
		LowFreq:  uint16(packed & 0x1FF),
		LowTone:  packed&(1<<9) != 0,
		LowAmp:   uint16((packed >> 10) & 0x3FF),
		HighFreq: uint16((packed >> 20) & 0x1FF),
		HighTone: packed&(1<<29) != 0,
		HighAmp:  uint16((packed >> 30) & 0x3FF),
	}
}

// neutralFreq is the fixed carrier frequency code used by the rumble pump;
// only amplitude varies with requested motor strength (spec.md §4.8).
const neutralFreq = 0x60

// FromAmplitudes builds a Vibration frame from the pump's computed
// low/high-band amplitudes, tone disabled and frequency fixed, per
// virtual_controller.py's vibration_callback.
func FromAmplitudes(lowAmp, highAmp uint16) Vibration {
	return Vibration{LowFreq: neutralFreq, LowAmp: lowAmp, HighFreq: neutralFreq, HighAmp: highAmp}
}
