// Package buttonmap resolves Switch-button names to link-layer bit positions
// and to a configured target vocabulary (Xbox 360 or DualShock 4 buttons),
// mirroring what original_source/config.py's Config class does with
// SWITCH_BUTTONS/XB_BUTTONS, generalized to two link-layer encodings and two
// target report formats.
//
// Neither retrieved original_source file actually defines the SWITCH_BUTTONS
// bit table it imports, and spec.md references a "§6.1" bit-position table
// that is not present in the distilled text. The bit assignments below are
// therefore a documented construction, not a transcription: see DESIGN.md's
// Open Question section for the reasoning.
package buttonmap

import "fmt"

// SwitchButton is a bitmask over one of the two link-layer button encodings.
type SwitchButton uint32

// BLE link-layer bit positions, assigned in the name order spec.md §6 lists
// them, packed across three bytes the way the command/input frame groups
// buttons (right-hand byte, left-hand byte, shared/SL-SR byte).
const (
	BLEButtonY SwitchButton = 1 << iota
	BLEButtonX
	BLEButtonB
	BLEButtonA
	BLEButtonSRR
	BLEButtonSLR
	BLEButtonR
	BLEButtonZR
	BLEButtonMinus
	BLEButtonPlus
	BLEButtonRStick
	BLEButtonLStick
	BLEButtonHome
	BLEButtonCapture
	BLEButtonC
	BLEButtonDown
	BLEButtonUp
	BLEButtonRight
	BLEButtonLeft
	BLEButtonSRL
	BLEButtonSLL
	BLEButtonL
	BLEButtonZL
	BLEButtonGL
	BLEButtonGR
)

// BLEButtonNames maps the spec's canonical Switch-button names to their BLE
// bit position, in declaration order.
var BLEButtonNames = map[string]SwitchButton{
	"Y": BLEButtonY, "X": BLEButtonX, "B": BLEButtonB, "A": BLEButtonA,
	"SR_R": BLEButtonSRR, "SL_R": BLEButtonSLR, "R": BLEButtonR, "ZR": BLEButtonZR,
	"MINUS": BLEButtonMinus, "PLUS": BLEButtonPlus, "R_STK": BLEButtonRStick, "L_STK": BLEButtonLStick,
	"HOME": BLEButtonHome, "CAPT": BLEButtonCapture, "C": BLEButtonC,
	"DOWN": BLEButtonDown, "UP": BLEButtonUp, "RIGHT": BLEButtonRight, "LEFT": BLEButtonLeft,
	"SR_L": BLEButtonSRL, "SL_L": BLEButtonSLL, "L": BLEButtonL, "ZL": BLEButtonZL,
	"GL": BLEButtonGL, "GR": BLEButtonGR,
}

// The USB Pro Controller 2 path (original_source/procon2_usb.py) feeds the
// exact same ControllerInputData-equivalent decoder used for BLE; the wired
// HID report is identical to the GATT input-report value except for one
// leading report-ID byte. So despite spec.md describing "two link-layer
// encodings", the button bit semantics are shared — only the frame's base
// offset differs per transport. USBButtonNames is kept as a distinct name
// for API clarity at call sites (inputreport.Decode takes an Encoding to
// decide whether to skip that leading byte), but its bit values are the
// BLE ones.
var USBButtonNames = BLEButtonNames

// USBButton* are aliases to the corresponding BLEButton* bit, named for
// readability at USB-transport call sites.
const (
	USBButtonY      = BLEButtonY
	USBButtonX      = BLEButtonX
	USBButtonB      = BLEButtonB
	USBButtonA      = BLEButtonA
	USBButtonR      = BLEButtonR
	USBButtonZR     = BLEButtonZR
	USBButtonMinus  = BLEButtonMinus
	USBButtonPlus   = BLEButtonPlus
	USBButtonRStick = BLEButtonRStick
	USBButtonLStick = BLEButtonLStick
	USBButtonHome   = BLEButtonHome
	USBButtonCapture = BLEButtonCapture
	USBButtonDown   = BLEButtonDown
	USBButtonUp     = BLEButtonUp
	USBButtonRight  = BLEButtonRight
	USBButtonLeft   = BLEButtonLeft
	USBButtonL      = BLEButtonL
	USBButtonZL     = BLEButtonZL
	USBButtonGL     = BLEButtonGL
	USBButtonGR     = BLEButtonGR
)

// Encoding selects how a session's raw frame is sliced before the shared
// bit table is applied: USB frames carry one extra leading report-ID byte
// that BLE's GATT notification value does not.
type Encoding int

const (
	EncodingBLE Encoding = iota
	EncodingUSB
)

// NamesFor returns the bit-position table for the given encoding. Both
// encodings currently share one table; see USBButtonNames.
func NamesFor(enc Encoding) map[string]SwitchButton {
	return BLEButtonNames
}

// TargetButton is a bit in the Xbox 360 XInput report's wButtons field,
// matching sanjay900-VIIPER's device/xbox360 constant layout.
type TargetButton uint16

const (
	TargetDPadUp TargetButton = 1 << iota
	TargetDPadDown
	TargetDPadLeft
	TargetDPadRight
	TargetStart
	TargetBack
	TargetLStick
	TargetRStick
	TargetLB
	TargetRB
	TargetGuide
	_ // reserved, matches XInput's unused bit 11
	TargetA
	TargetB
	TargetX
	TargetY
)

// XBButtonNames mirrors original_source/config.py's XB_BUTTONS dict.
var XBButtonNames = map[string]TargetButton{
	"UP": TargetDPadUp, "DOWN": TargetDPadDown, "LEFT": TargetDPadLeft, "RIGHT": TargetDPadRight,
	"START": TargetStart, "BACK": TargetBack, "L_STK": TargetLStick, "R_STK": TargetRStick,
	"LB": TargetLB, "RB": TargetRB, "GUIDE": TargetGuide,
	"A": TargetA, "B": TargetB, "X": TargetX, "Y": TargetY,
}

// DS4Button is a bit in a DualShock4 report's bSpecial/wButtons fields; the
// D-pad is not one of these bits, it's a separate 3-bit hat encoded by Hat.
type DS4Button uint16

const (
	DS4Start DS4Button = 1 << iota
	DS4Touchpad
	DS4LStick
	DS4RStick
	DS4Share
	DS4LB
	DS4RB
	DS4Guide
	DS4A
	DS4B
	DS4X
	DS4Y
)

// DS4ButtonNames is the DS4 half of spec.md's target-button vocabulary table.
var DS4ButtonNames = map[string]DS4Button{
	"START": DS4Start, "TOUCHPAD": DS4Touchpad, "L_STK": DS4LStick, "R_STK": DS4RStick,
	"SHARE": DS4Share, "LB": DS4LB, "RB": DS4RB, "GUIDE": DS4Guide,
	"A": DS4A, "B": DS4B, "X": DS4X, "Y": DS4Y,
}

// dpadNames are the only target strings valid for a DS4 D-pad entry.
var dpadNames = map[string]DpadDirection{
	"UP": DpadNorth, "DOWN": DpadSouth, "LEFT": DpadWest, "RIGHT": DpadEast,
}

// hatTable maps the set of simultaneously pressed D-pad directions (as a
// 4-bit mask: up=1,down=2,left=4,right=8) to the DS4 3-bit hat encoding, a
// 9-entry table (8 octants + centered) per spec.md §4.7.
var hatTable = [16]DpadDirection{
	DpadCentered,  // none
	DpadNorth,     // up
	DpadSouth,     // down
	DpadCentered,  // up+down: contradictory, treat as centered
	DpadWest,      // left
	DpadNorthWest, // up+left
	DpadSouthWest, // down+left
	DpadWest,      // up+down+left: degenerate, keep left
	DpadEast,      // right
	DpadNorthEast, // up+right
	DpadSouthEast, // down+right
	DpadEast,      // up+down+right: degenerate, keep right
	DpadCentered,  // left+right: contradictory, treat as centered
	DpadNorth,     // up+left+right: degenerate, keep up
	DpadSouth,     // down+left+right: degenerate, keep down
	DpadCentered,  // all four
}

// Hat resolves a set of pressed D-pad directions to the DS4 hat encoding.
func Hat(up, down, left, right bool) DpadDirection {
	var mask int
	if up {
		mask |= 1
	}
	if down {
		mask |= 2
	}
	if left {
		mask |= 4
	}
	if right {
		mask |= 8
	}
	return hatTable[mask]
}

// DpadDirection is one of the 8 DS4 hat-switch directions plus centered,
// matching the teacher-pack's DualShock4 report convention.
type DpadDirection uint8

const (
	DpadNorth DpadDirection = iota
	DpadNorthEast
	DpadEast
	DpadSouthEast
	DpadSouth
	DpadSouthWest
	DpadWest
	DpadNorthWest
	DpadCentered
)

// Mode selects the virtual-pad target report format, fixed per build
// (spec.md §4.7: "behavior parametrized, not conditional on runtime state").
type Mode int

const (
	ModeX360 Mode = iota
	ModeDS4
)

// entry is one configured button mapping: a target button (in whichever
// vocabulary matches the table's Mode), a trigger axis (LT/RT), or (DS4
// only) a D-pad direction.
type entry struct {
	x360    TargetButton
	ds4     DS4Button
	dpad    DpadDirection
	hasDpad bool
	isLT    bool
	isRT    bool
}

// Table is a fully resolved button map for one controller role
// (dual_joycons, single_joycon_l, single_joycon_r, or procon), built once at
// config-parse time from a name->target string map.
type Table struct {
	encoding Encoding
	mode     Mode
	entries  map[SwitchButton]entry
}

// ErrUnknownSwitchButton and ErrUnknownTarget mirror config.py's raise on an
// unrecognized button/target name.
var (
	ErrUnknownSwitchButton = fmt.Errorf("buttonmap: unknown switch button name")
	ErrUnknownTarget       = fmt.Errorf("buttonmap: unknown target button name")
)

// Build resolves a raw name->target mapping (as loaded from config) into a
// Table. target must be a name from the mode's target vocabulary, "LT",
// "RT", or (DS4 only) one of UP/DOWN/LEFT/RIGHT.
func Build(enc Encoding, mode Mode, raw map[string]string) (Table, error) {
	names := NamesFor(enc)
	t := Table{encoding: enc, mode: mode, entries: make(map[SwitchButton]entry, len(raw))}
	for name, target := range raw {
		bit, ok := names[name]
		if !ok {
			return Table{}, fmt.Errorf("%w: %q", ErrUnknownSwitchButton, name)
		}
		switch target {
		case "LT":
			t.entries[bit] = entry{isLT: true}
			continue
		case "RT":
			t.entries[bit] = entry{isRT: true}
			continue
		}
		if mode == ModeDS4 {
			if dir, ok := dpadNames[target]; ok {
				t.entries[bit] = entry{dpad: dir, hasDpad: true}
				continue
			}
			db, ok := DS4ButtonNames[target]
			if !ok {
				return Table{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
			}
			t.entries[bit] = entry{ds4: db}
			continue
		}
		tb, ok := XBButtonNames[target]
		if !ok {
			return Table{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
		}
		t.entries[bit] = entry{x360: tb}
	}
	return t, nil
}

// ConvertX360 maps a raw Switch-button bitmask to a resolved X360 button
// mask plus left/right trigger booleans, the way config.py's
// convert_buttons does. Only valid for a ModeX360 table.
func (t Table) ConvertX360(buttons SwitchButton) (target TargetButton, lt, rt bool) {
	for bit, e := range t.entries {
		if buttons&bit == 0 {
			continue
		}
		switch {
		case e.isLT:
			lt = true
		case e.isRT:
			rt = true
		default:
			target |= e.x360
		}
	}
	return target, lt, rt
}

// ConvertDS4 maps a raw Switch-button bitmask to a resolved DS4 button mask,
// a D-pad hat, and left/right trigger booleans. Only valid for a ModeDS4
// table. When multiple configured buttons claim the D-pad, all pressed
// directions are combined before the 9-entry hat lookup, per spec.md §4.7.
func (t Table) ConvertDS4(buttons SwitchButton) (target DS4Button, hat DpadDirection, lt, rt bool) {
	var up, down, left, right bool
	for bit, e := range t.entries {
		if buttons&bit == 0 {
			continue
		}
		switch {
		case e.isLT:
			lt = true
		case e.isRT:
			rt = true
		case e.hasDpad:
			switch e.dpad {
			case DpadNorth:
				up = true
			case DpadSouth:
				down = true
			case DpadWest:
				left = true
			case DpadEast:
				right = true
			}
		default:
			target |= e.ds4
		}
	}
	return target, Hat(up, down, left, right), lt, rt
}
