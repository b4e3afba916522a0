// Package calibration applies per-axis deadzone and center/min/max scaling
// to raw stick samples, the way the teacher driver's normalizeAxis does for
// a single fixed controller, generalized to the per-device StickCalibration
// values read from controller memory at connect time.
package calibration

import "math"

// Axis holds one axis's calibration: the raw center value and the raw
// magnitudes of the positive and negative extents (added/subtracted from
// center, never absolute coordinates).
//
// Invariant: Min and Max are magnitudes, so both must be > 0 for Apply to
// behave sanely; a zero extent collapses that half of the range to the
// deadzone boundary.
type Axis struct {
	Center int
	Max    int // positive extent magnitude
	Min    int // negative extent magnitude
}

// Stick bundles the X/Y calibration for one analog stick, read once from
// controller memory (factory or user calibration block) and never mutated
// afterward.
type Stick struct {
	X, Y Axis
}

// Profile is the deadzone shared across all axes, read once from config.
type Profile struct {
	Deadzone int
}

// Apply scales a raw sample into [-1.0, 1.0] using the axis's calibration
// and the profile's deadzone, per spec.md's calibration law: non-decreasing
// in raw, crosses zero only inside the deadzone, saturates at +/-1.0.
func (p Profile) Apply(raw int, a Axis) float64 {
	signed := raw - a.Center
	if signed > p.Deadzone {
		if a.Max == 0 {
			return 1.0
		}
		return math.Min(float64(signed)/float64(a.Max), 1.0)
	}
	if signed < -p.Deadzone {
		if a.Min == 0 {
			return -1.0
		}
		return -math.Min(float64(-signed)/float64(a.Min), 1.0)
	}
	return 0.0
}

// ApplyStick calibrates both axes of a stick sample at once.
func (p Profile) ApplyStick(rawX, rawY int, s Stick) (x, y float64) {
	return p.Apply(rawX, s.X), p.Apply(rawY, s.Y)
}
