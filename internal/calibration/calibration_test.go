package calibration

import "testing"

func TestApplyMonotonic(t *testing.T) {
	p := Profile{Deadzone: 50}
	a := Axis{Center: 2048, Max: 2000, Min: 2000}

	prev := -2.0
	for raw := 0; raw <= 4095; raw += 17 {
		v := p.Apply(raw, a)
		if v < prev {
			t.Fatalf("apply not monotonic: raw=%d v=%f prev=%f", raw, v, prev)
		}
		if v < -1.0 || v > 1.0 {
			t.Fatalf("apply out of range: raw=%d v=%f", raw, v)
		}
		prev = v
	}
}

func TestApplyDeadzone(t *testing.T) {
	p := Profile{Deadzone: 50}
	a := Axis{Center: 2048, Max: 2000, Min: 2000}

	if v := p.Apply(2048, a); v != 0 {
		t.Fatalf("center should be zero, got %f", v)
	}
	if v := p.Apply(2048+49, a); v != 0 {
		t.Fatalf("inside deadzone should be zero, got %f", v)
	}
	if v := p.Apply(2048+2000, a); v != 1.0 {
		t.Fatalf("max extent should saturate to 1.0, got %f", v)
	}
	if v := p.Apply(2048-2000, a); v != -1.0 {
		t.Fatalf("min extent should saturate to -1.0, got %f", v)
	}
}

func TestApplySaturatesBeyondExtent(t *testing.T) {
	p := Profile{Deadzone: 0}
	a := Axis{Center: 100, Max: 50, Min: 50}
	if v := p.Apply(1000, a); v != 1.0 {
		t.Fatalf("should saturate at 1.0, got %f", v)
	}
	if v := p.Apply(-1000, a); v != -1.0 {
		t.Fatalf("should saturate at -1.0, got %f", v)
	}
}
