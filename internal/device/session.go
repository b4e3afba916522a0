// Package device defines the transport-agnostic session contract both the
// BLE and USB backends implement, mirroring spec.md §4.4's operation table.
package device

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
	"github.com/rexisp/switch2gamepad/internal/link"
)

// Kind identifies which physical device a session represents.
type Kind int

const (
	KindJoyConLeft Kind = iota
	KindJoyConRight
	KindProController2
	KindGameCube
)

// IsJoyCon reports whether this kind is a left or right Joy-Con 2 (as
// opposed to the Pro Controller 2 or GameCube controller, which never
// combine with a sibling).
func (k Kind) IsJoyCon() bool {
	return k == KindJoyConLeft || k == KindJoyConRight
}

// State is the session lifecycle, per spec.md §4.4: New -> Connecting ->
// Ready -> Closed. Input notifications only flow in Ready.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateReady
	StateClosed
)

// Memory addresses and read-lengths, reproduced verbatim from spec.md §4.4/§6.
const (
	AddressControllerInfo    = 0x00013000
	ControllerInfoLen        = 0x40
	AddressCalibrationLeft   = 0x0130A8
	AddressCalibrationRight  = 0x0130E8
	AddressUserCalibLeft     = 0x1FC042
	AddressUserCalibRight    = 0x1FC062
	CalibrationReadLen       = 0x0B
	MaxMemoryReadLen         = 0x4F
)

// Feature bits for EnableFeatures (spec.md §4.4/§6).
const (
	FeatureMotion       uint32 = 0x04
	FeatureVibration    uint32 = 0x20
	FeatureMouse        uint32 = 0x10
	FeatureMagnetometer uint32 = 0x80
)

// Command/subcommand IDs shared by both transports (spec.md §6,
// original_source/controller.py and procon2_usb.py).
const (
	CmdLEDs              = 0x09
	SubLEDsSetPlayer     = 0x07
	CmdMemory            = 0x02
	SubMemoryRead        = 0x04
	CmdVibration         = 0x0A
	SubVibrationPreset   = 0x02
	CmdPair              = 0x15
	SubPairSetMAC        = 0x01
	SubPairLTK1          = 0x04
	SubPairLTK2          = 0x02
	SubPairFinish        = 0x03
	CmdFeature           = 0x0C
	SubFeatureInit       = 0x02
	SubFeatureEnable     = 0x04
)

// LEDPattern maps a 1..8 player number to the fixed Switch LED bit pattern
// (spec.md §4.4/§6).
var LEDPattern = map[int]byte{
	1: 0x01, 2: 0x03, 3: 0x07, 4: 0x0F, 5: 0x09, 6: 0x05, 7: 0x0D, 8: 0x06,
}

// GATT characteristic UUIDs (spec.md §6); external identity, reproduced verbatim.
const (
	CharInputReport     = "ab7de9be-89fe-49ad-828f-118f09df7fd2"
	CharCommandWrite    = "649d4ac9-8eb7-4e6c-af44-1ea54fe5f005"
	CharCommandResponse = "c765a961-d9d8-4d36-a20a-5315b111836a"
	CharVibrationRight  = "fa19b0fb-cd1f-46a7-84a1-bbb09e00c149"
	CharVibrationLeft   = "289326cb-a471-485d-a8f4-240c14f18241"
	CharVibrationPro    = "cc483f51-9258-427d-a939-630c31f72b05"
)

// AdvertisementManufacturerID and the Nintendo vendor/product identity
// embedded in the manufacturer-specific advertisement payload (spec.md §6).
const (
	AdvertisementManufacturerID uint16 = 0x0553
	NintendoVendorID            uint16 = 0x057E
	ProductJoyConRight           uint16 = 0x2066
	ProductJoyConLeft            uint16 = 0x2067
	ProductProController2       uint16 = 0x2069
	ProductGameCube              uint16 = 0x2073
)

// LTK1 and LTK2 are the fixed 17-byte secrets the proprietary pairing
// command exchanges, reproduced verbatim from spec.md §6.
var (
	LTK1 = [17]byte{0x00, 0xEA, 0xBD, 0x47, 0x13, 0x89, 0x35, 0x42, 0xC6, 0x79, 0xEE, 0x07, 0xF2, 0x53, 0x2C, 0x6C, 0x31}
	LTK2 = [17]byte{0x00, 0x40, 0xB0, 0x8A, 0x5F, 0xCD, 0x1F, 0x9B, 0x41, 0x12, 0x5C, 0xAC, 0xC6, 0x3F, 0x38, 0xA0, 0x73}
)

// VibrationCharFor returns the vibration-write characteristic UUID for a
// given device kind, since each physical form factor exposes its own
// (spec.md §6).
func VibrationCharFor(k Kind) string {
	switch k {
	case KindJoyConLeft:
		return CharVibrationLeft
	case KindJoyConRight:
		return CharVibrationRight
	default:
		return CharVibrationPro
	}
}

// Identity is the immutable device-identity record read from controller
// memory at connect time (spec.md §3 "Device identity").
type Identity struct {
	Serial    string
	VendorID  uint16
	ProductID uint16
	ColorBody [3]byte
	ColorButtons [3]byte
	ColorGripL   [3]byte
	ColorGripR   [3]byte
}

// ParseControllerInfo decodes the 0x40-byte controller-info block read from
// AddressControllerInfo, shared by both transports (spec.md §6).
func ParseControllerInfo(info []byte) Identity {
	var id Identity
	if len(info) < 0x25 {
		return id
	}
	id.Serial = string(info[2:16])
	id.VendorID = binary.LittleEndian.Uint16(info[18:20])
	id.ProductID = binary.LittleEndian.Uint16(info[20:22])
	if len(info) >= 0x25 {
		copy(id.ColorBody[:], info[25:28])
	}
	if len(info) >= 0x28 {
		copy(id.ColorButtons[:], info[28:31])
	}
	if len(info) >= 0x31 {
		copy(id.ColorGripL[:], info[31:34])
	}
	if len(info) >= 0x34 {
		copy(id.ColorGripR[:], info[34:37])
	}
	return id
}

// ParseStickCalibration decodes three packed (x,y) triples: center, max
// extent, min extent, matching original_source/controller.py's
// StickCalibrationData (data[0:3]=center, data[3:6]=max, data[6:9]=min).
// Shared by both transports.
func ParseStickCalibration(data []byte) calibration.Stick {
	centerX, centerY := codec.UnpackStick([3]byte{data[0], data[1], data[2]})
	maxX, maxY := codec.UnpackStick([3]byte{data[3], data[4], data[5]})
	minX, minY := codec.UnpackStick([3]byte{data[6], data[7], data[8]})
	return calibration.Stick{
		X: calibration.Axis{Center: int(centerX), Max: int(maxX), Min: int(minX)},
		Y: calibration.Axis{Center: int(centerY), Max: int(maxY), Min: int(minY)},
	}
}

// Sentinel errors matching spec.md §7's contract-violation error kinds.
var (
	ErrAlreadyConnected      = errors.New("device: already connected")
	ErrCapacityExceeded      = errors.New("device: capacity exceeded")
	ErrIncompatibleCombination = errors.New("device: incompatible controller combination")
)

// Session is the public operation set spec.md §4.4 specifies, implemented
// independently by the BLE and USB backends over a shared link.Channel.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error

	Kind() Kind
	State() State
	Identity() Identity
	Encoding() buttonmap.Encoding

	// SideButtonsPressed reports whether SL/SR were held during the connect
	// handshake, used by discovery to decide combine-eligibility.
	SideButtonsPressed() bool

	SetLEDs(ctx context.Context, player int, reversed bool) error
	PlayPreset(ctx context.Context, preset byte) error
	ReadMemory(ctx context.Context, addr uint32, length byte) ([]byte, error)
	EnableFeatures(ctx context.Context, mask uint32) error
	Pair(ctx context.Context) error
	SetVibration(ctx context.Context, v link.Vibration) error

	// OnInput registers the callback invoked with each decoded input
	// snapshot. Only one callback is supported at a time.
	OnInput(cb func(inputreport.Snapshot))

	// DisconnectCallback registers the callback invoked once, when the
	// transport observes the device go away (spec.md §4.6 "On disconnect").
	DisconnectCallback(cb func(Session))
}
