package mouse

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
)

type fakeSink struct {
	moves   [][2]int
	scrolls []int
	buttons map[Button]bool
}

func newFakeSink() *fakeSink { return &fakeSink{buttons: map[Button]bool{}} }

func (f *fakeSink) Move(dx, dy int)                   { f.moves = append(f.moves, [2]int{dx, dy}) }
func (f *fakeSink) Scroll(amount int)                  { f.scrolls = append(f.scrolls, amount) }
func (f *fakeSink) SetButton(b Button, pressed bool)   { f.buttons[b] = pressed }

func testConfig() Config {
	return Config{
		Enabled:           true,
		Sensitivity:       1.0,
		ScrollSensitivity: 1.0,
		RightJoyCon: ButtonConfig{
			Left:   buttonmap.BLEButtonA,
			Middle: buttonmap.BLEButtonB,
			Right:  buttonmap.BLEButtonX,
		},
	}
}

func TestMouseGatingOutOfRangeDistance(t *testing.T) {
	// S6: mouse_distance=1500 (> 1000) leaves mouse mode; no cursor move,
	// buttons pass through unchanged.
	sink := newFakeSink()
	s := New(testConfig(), device.KindJoyConRight, sink)

	snap := inputreport.Snapshot{MouseDistance: 1500, MouseRoughness: 10, Buttons: buttonmap.BLEButtonA}
	out := s.Apply(snap)

	if len(sink.moves) != 0 {
		t.Fatalf("expected no cursor moves, got %v", sink.moves)
	}
	if out.Buttons&buttonmap.BLEButtonA == 0 {
		t.Fatal("expected A to reach the virtual pad unchanged when out of mouse range")
	}
}

func TestMouseGatingInRangeMovesAndSuppressesButtons(t *testing.T) {
	// S6: mouse_distance=500 (valid) moves the cursor by delta and consumes
	// the three configured buttons.
	sink := newFakeSink()
	s := New(testConfig(), device.KindJoyConRight, sink)

	first := inputreport.Snapshot{
		MouseX: 100, MouseY: 100, MouseDistance: 500, MouseRoughness: 10,
		Buttons: buttonmap.BLEButtonA,
	}
	out := s.Apply(first)
	if out.Buttons&buttonmap.BLEButtonA != 0 {
		t.Fatal("expected the configured mouse button to be stripped from the first active frame")
	}
	if len(sink.moves) != 0 {
		t.Fatal("expected no move on the first frame entering mouse mode (no previous sample yet)")
	}

	second := inputreport.Snapshot{
		MouseX: 110, MouseY: 90, MouseDistance: 500, MouseRoughness: 10,
		Buttons: buttonmap.BLEButtonA,
	}
	s.Apply(second)
	if len(sink.moves) != 1 {
		t.Fatalf("expected exactly one move on the second frame, got %d", len(sink.moves))
	}
	if sink.moves[0] != [2]int{10, -10} {
		t.Fatalf("got delta %v, want (10,-10)", sink.moves[0])
	}
	if !sink.buttons[ButtonLeft] {
		t.Fatal("expected the left mouse button to have been pressed")
	}
}

func TestMouseScrollFromStickSuppressesStick(t *testing.T) {
	sink := newFakeSink()
	s := New(testConfig(), device.KindJoyConRight, sink)

	s.Apply(inputreport.Snapshot{MouseX: 1, MouseY: 1, MouseDistance: 500, MouseRoughness: 10})

	out := s.Apply(inputreport.Snapshot{
		MouseX: 1, MouseY: 1, MouseDistance: 500, MouseRoughness: 10,
		RightStickY: 0.5,
	})
	if len(sink.scrolls) != 1 {
		t.Fatalf("expected one scroll event, got %d", len(sink.scrolls))
	}
	if sink.scrolls[0] != 30 {
		t.Fatalf("got scroll %d, want 30 (0.5*60*1.0)", sink.scrolls[0])
	}
	if out.RightStickX != 0 || out.RightStickY != 0 {
		t.Fatal("expected the scroll-source stick to be suppressed from the virtual pad")
	}
}

func TestMouseScrollBelowThresholdIsIgnored(t *testing.T) {
	sink := newFakeSink()
	s := New(testConfig(), device.KindJoyConRight, sink)

	s.Apply(inputreport.Snapshot{MouseX: 1, MouseY: 1, MouseDistance: 500, MouseRoughness: 10})
	s.Apply(inputreport.Snapshot{MouseX: 1, MouseY: 1, MouseDistance: 500, MouseRoughness: 10, RightStickY: 0.1})

	if len(sink.scrolls) != 0 {
		t.Fatalf("expected no scroll below the 0.2 threshold, got %v", sink.scrolls)
	}
}

func TestMouseDisabledPassesThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	sink := newFakeSink()
	s := New(cfg, device.KindJoyConRight, sink)

	snap := inputreport.Snapshot{MouseDistance: 500, MouseRoughness: 10, Buttons: buttonmap.BLEButtonA}
	out := s.Apply(snap)
	if out.Buttons&buttonmap.BLEButtonA == 0 {
		t.Fatal("expected pass-through when mouse is disabled")
	}
}

func TestMouseRoughnessGating(t *testing.T) {
	sink := newFakeSink()
	s := New(testConfig(), device.KindJoyConRight, sink)

	out := s.Apply(inputreport.Snapshot{MouseDistance: 500, MouseRoughness: 5000, Buttons: buttonmap.BLEButtonA})
	if out.Buttons&buttonmap.BLEButtonA == 0 {
		t.Fatal("expected roughness >= 4000 to leave mouse mode inactive")
	}
}
