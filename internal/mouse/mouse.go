// Package mouse synthesizes cursor-move, scroll, and click events from a
// Joy-Con's optical mouse sensor, adapted from original_source/controller.py's
// simulate_mouse: gate on mouse_distance/mouse_roughness, diff the wrapped
// 16-bit position with codec.LoopingDiff16, derive scroll from the unused
// vertical stick axis, and suppress the three configured buttons plus the
// scroll-source stick from the stream that reaches the virtual pad.
package mouse

import (
	"math"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
)

// Sink receives synthesized mouse events; the only non-goal boundary spec.md
// §2 names for this subsystem ("OS mouse-input injection") lives on the
// other side of this interface.
type Sink interface {
	Move(dx, dy int)
	Scroll(amount int)
	SetButton(button Button, pressed bool)
}

// Button names the three mouse buttons a Joy-Con can synthesize.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// distanceMax and roughnessMax bound the window in which mouse_distance and
// mouse_roughness are treated as a valid optical-tracking sample (spec.md
// §4.9 / §8 S6; empirical constants per spec.md's Open Questions, kept
// configurable rather than hardcoded at the call site).
const (
	distanceMax  = 1000
	roughnessMax = 4000
)

// ButtonConfig names the three Switch buttons a Joy-Con maps to mouse
// clicks (spec.md §6 "mouse.buttons.{left_joycon,right_joycon}").
type ButtonConfig struct {
	Left, Middle, Right buttonmap.SwitchButton
}

// Config holds the mouse subsystem's configuration (spec.md §6).
type Config struct {
	Enabled           bool
	Sensitivity       float64
	ScrollSensitivity float64
	LeftJoyCon        ButtonConfig
	RightJoyCon       ButtonConfig
}

// Synthesizer tracks one Joy-Con's mouse state across updates. One
// Synthesizer per physical session that might enter mouse mode.
type Synthesizer struct {
	cfg  Config
	kind device.Kind
	sink Sink

	tracking     bool
	prevX, prevY uint16
	prevButtons  [3]bool
}

// New constructs a Synthesizer for one Joy-Con session.
func New(cfg Config, kind device.Kind, sink Sink) *Synthesizer {
	return &Synthesizer{cfg: cfg, kind: kind, sink: sink}
}

// consumedMask is the bitwise-OR of the three configured mouse buttons for
// this Joy-Con's side, used to strip them from the button stream that
// reaches the virtual pad.
func (s *Synthesizer) consumedMask() buttonmap.SwitchButton {
	bc := s.cfg.RightJoyCon
	if s.kind == device.KindJoyConLeft {
		bc = s.cfg.LeftJoyCon
	}
	return bc.Left | bc.Middle | bc.Right
}

// Apply folds mouse synthesis into snap in place: when mouse mode is active
// it emits cursor/scroll/click events to the sink, strips the consumed
// buttons and the scroll-source stick's vertical axis from snap, and
// returns the (possibly mutated) snapshot. Non-Joy-Con kinds and a disabled
// config pass snap through unchanged.
func (s *Synthesizer) Apply(snap inputreport.Snapshot) inputreport.Snapshot {
	if !s.cfg.Enabled || !s.kind.IsJoyCon() {
		return snap
	}

	active := snap.MouseDistance != 0 && snap.MouseDistance < distanceMax && snap.MouseRoughness < roughnessMax
	if !active {
		s.tracking = false
		return snap
	}

	bc := s.cfg.RightJoyCon
	if s.kind == device.KindJoyConLeft {
		bc = s.cfg.LeftJoyCon
	}
	lb := snap.Buttons&bc.Left != 0
	mb := snap.Buttons&bc.Middle != 0
	rb := snap.Buttons&bc.Right != 0

	snap.Buttons &^= s.consumedMask()

	if s.tracking {
		dx := codec.LoopingDiff16(s.prevX, snap.MouseX)
		dy := codec.LoopingDiff16(s.prevY, snap.MouseY)
		if dx != 0 || dy != 0 {
			s.sink.Move(int(float64(dx)*s.cfg.Sensitivity), int(float64(dy)*s.cfg.Sensitivity))
		}

		s.emitButtonEdge(ButtonLeft, lb, s.prevButtons[0])
		s.emitButtonEdge(ButtonMiddle, mb, s.prevButtons[1])
		s.emitButtonEdge(ButtonRight, rb, s.prevButtons[2])

		var scrollValue float64
		if s.kind == device.KindJoyConRight {
			scrollValue = snap.RightStickY
			snap.RightStickX, snap.RightStickY = 0, 0
		} else {
			scrollValue = snap.LeftStickY
			snap.LeftStickX, snap.LeftStickY = 0, 0
		}
		if math.Abs(scrollValue) > 0.2 {
			s.sink.Scroll(int(scrollValue * 60 * s.cfg.ScrollSensitivity))
		}
	}

	s.prevX, s.prevY = snap.MouseX, snap.MouseY
	s.prevButtons = [3]bool{lb, mb, rb}
	s.tracking = true

	return snap
}

func (s *Synthesizer) emitButtonEdge(button Button, now, was bool) {
	if now != was {
		s.sink.SetButton(button, now)
	}
}
