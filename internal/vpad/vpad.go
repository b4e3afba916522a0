// Package vpad aggregates one or two device sessions sharing a slot into a
// single virtual-pad report: merging dual Joy-Con button state, rotating a
// lone Joy-Con's stick into the sideways-held convention, remapping Switch
// buttons to the configured target vocabulary, and permuting the motion
// axes. Grounded on original_source/virtual_controller.py's
// input_report_callback, generalized off its single DS4-only vgamepad call
// to a Mode-parametrized report the teacher-style uinput sink consumes.
package vpad

import (
	"sync"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
)

// Report is the fully resolved virtual-pad frame, ready for a uinput-style
// sink to translate into OS input events. Only the fields matching Mode are
// meaningful: X360Buttons for ModeX360, DS4Buttons/Dpad for ModeDS4.
type Report struct {
	Mode        buttonmap.Mode
	X360Buttons buttonmap.TargetButton
	DS4Buttons  buttonmap.DS4Button
	Dpad        buttonmap.DpadDirection
	LT, RT      bool

	// LX, LY, RX, RY are in [-1, 1], positive X right and positive Y up.
	LX, LY, RX, RY float64

	// Accelerometer and Gyroscope carry the DS4-convention-permuted motion
	// samples (original axis x,z,-y), forwarded only when motion_controls
	// is enabled.
	Accelerometer [3]int32
	Gyroscope     [3]int32
}

// Composition names which button map and stick-routing rule a slot uses,
// mirroring is_single()/is_single_joycon_left()/is_single_joycon_right() in
// original_source/virtual_controller.py.
type Composition int

const (
	CompositionDual Composition = iota
	CompositionSingleLeft
	CompositionSingleRight
	CompositionProCon
)

// CompositionFor derives the Composition from a slot's session kinds, the
// way discovery.Admission reports them.
func CompositionFor(kinds []device.Kind) Composition {
	if len(kinds) == 2 {
		return CompositionDual
	}
	switch kinds[0] {
	case device.KindJoyConLeft:
		return CompositionSingleLeft
	case device.KindJoyConRight:
		return CompositionSingleRight
	default:
		return CompositionProCon
	}
}

// Aggregator holds the merge state for one virtual-pad slot. One
// Aggregator is created per discovery.Admission and fed every snapshot
// from its member sessions.
type Aggregator struct {
	table       buttonmap.Table
	composition Composition

	mu          sync.Mutex
	leftButtons buttonmap.SwitchButton
	rightButtons buttonmap.SwitchButton
	leftStickX, leftStickY   float64
	rightStickX, rightStickY float64
	accel, gyro [3]int32
}

// New constructs an Aggregator using the button table already resolved for
// this composition (config.ButtonTables picks dual/single_l/single_r/procon
// per spec.md §6).
func New(table buttonmap.Table, composition Composition) *Aggregator {
	return &Aggregator{table: table, composition: composition}
}

// Update folds one member session's decoded snapshot into the aggregate and
// returns the fully resolved Report to emit.
func (a *Aggregator) Update(mode buttonmap.Mode, kind device.Kind, snap inputreport.Snapshot) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.composition {
	case CompositionDual:
		if kind == device.KindJoyConLeft {
			a.leftButtons = snap.Buttons
			a.leftStickX, a.leftStickY = snap.LeftStickX, snap.LeftStickY
		} else {
			a.rightButtons = snap.Buttons
			a.rightStickX, a.rightStickY = snap.RightStickX, snap.RightStickY
		}
	case CompositionSingleLeft:
		a.leftButtons = snap.Buttons
		// Sideways mapping (spec.md §9 design note, §8 S5 by symmetry):
		// a lone left Joy-Con's stick rotates onto the shared left-stick
		// output as (-y, x).
		a.leftStickX = -snap.LeftStickY
		a.leftStickY = snap.LeftStickX
	case CompositionSingleRight:
		a.rightButtons = snap.Buttons
		// S5: a lone right Joy-Con reporting right_stick=(1,0) must emit
		// left-stick=(0,-1); the rotation is (y, -x).
		a.leftStickX = snap.RightStickY
		a.leftStickY = -snap.RightStickX
	default: // CompositionProCon
		a.leftButtons = snap.Buttons
		a.leftStickX, a.leftStickY = snap.LeftStickX, snap.LeftStickY
		a.rightStickX, a.rightStickY = snap.RightStickX, snap.RightStickY
	}

	// Motion axis permutation (x, z, -y), matching virtual_controller.py's
	// wAccelY=accel[2], wAccelZ=-accel[1] (and the same for gyro).
	a.accel = [3]int32{
		int32(snap.Accelerometer[0]), int32(snap.Accelerometer[2]), -int32(snap.Accelerometer[1]),
	}
	a.gyro = [3]int32{
		int32(snap.Gyroscope[0]), int32(snap.Gyroscope[2]), -int32(snap.Gyroscope[1]),
	}

	merged := a.leftButtons | a.rightButtons

	r := Report{
		Mode: mode,
		LX:   a.leftStickX, LY: a.leftStickY,
		RX: a.rightStickX, RY: a.rightStickY,
		Accelerometer: a.accel,
		Gyroscope:     a.gyro,
	}
	if mode == buttonmap.ModeDS4 {
		r.DS4Buttons, r.Dpad, r.LT, r.RT = a.table.ConvertDS4(merged)
	} else {
		r.X360Buttons, r.LT, r.RT = a.table.ConvertX360(merged)
	}
	return r
}
