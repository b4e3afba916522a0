// Package uinput drives a Linux /dev/uinput virtual gamepad, adapted from
// the teacher driver's NewVirtualGamepad/VirtualGamepad/writeEvent code:
// same ioctl sequence and raw input_event struct, generalized from one
// fixed Pro Controller button set to whichever target vocabulary
// (buttonmap.Mode) the configured virtual pad uses.
package uinput

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/vpad"
)

const (
	uiSetEvBit  = 0x40045564
	uiSetKeyBit = 0x40045565
	uiSetAbsBit = 0x40045567
	uiDevSetup  = 0x405c5503
	uiDevCreate = 0x5501
	uiDevDestroy = 0x5502
	uiAbsSetup  = 0x401c5504

	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	btnSouth    = 0x130
	btnEast     = 0x131
	btnNorth    = 0x133
	btnWest     = 0x134
	btnTL       = 0x136
	btnTR       = 0x137
	btnTL2      = 0x138
	btnTR2      = 0x139
	btnSelect   = 0x13a
	btnStart    = 0x13b
	btnMode     = 0x13c
	btnThumbL   = 0x13d
	btnThumbR   = 0x13e
	btnDpadUp   = 0x220
	btnDpadDown = 0x221
	btnDpadLeft = 0x222
	btnDpadRight = 0x223

	absX  = 0x00
	absY  = 0x01
	absRX = 0x03
	absRY = 0x04

	busUSB = 0x03

	driverName  = "Switch 2 Virtual Gamepad"
	vendorID    = 0x057E
	productID   = 0x2069
)

type inputEvent struct {
	time      syscall.Timeval
	typ, code uint16
	value     int32
}
type inputID struct {
	bustype, vendor, product, version uint16
}
type inputAbsinfo struct {
	value, min, max, fuzz, flat, resolution int32
}
type uinputAbsSetup struct {
	code uint16
	_    [2]byte
	info inputAbsinfo
	_    [4]byte
}
type uinputSetup struct {
	id           inputID
	name         [80]byte
	ffEffectsMax uint32
	absinfo      [0x40]uinputAbsSetup
}

func ioctl(fd, request, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, request, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// Pad is one /dev/uinput virtual gamepad node, one per player slot.
type Pad struct {
	mu   sync.Mutex
	file *os.File
	mode buttonmap.Mode
}

// New opens /dev/uinput and registers a virtual gamepad exposing the
// button/axis set for the given mode, named with its player number.
func New(playerNum int, mode buttonmap.Mode) (*Pad, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput: open /dev/uinput: %w", err)
	}

	if err := ioctl(f.Fd(), uiSetEvBit, uintptr(evKey)); err != nil {
		f.Close()
		return nil, err
	}
	if err := ioctl(f.Fd(), uiSetEvBit, uintptr(evAbs)); err != nil {
		f.Close()
		return nil, err
	}
	if err := ioctl(f.Fd(), uiSetEvBit, uintptr(evSyn)); err != nil {
		f.Close()
		return nil, err
	}

	buttons := []uint16{
		btnSouth, btnEast, btnNorth, btnWest,
		btnTL, btnTR, btnTL2, btnTR2,
		btnSelect, btnStart, btnMode,
		btnThumbL, btnThumbR,
	}
	if mode == buttonmap.ModeX360 {
		buttons = append(buttons, btnDpadUp, btnDpadDown, btnDpadLeft, btnDpadRight)
	}
	for _, btn := range buttons {
		if err := ioctl(f.Fd(), uiSetKeyBit, uintptr(btn)); err != nil {
			f.Close()
			return nil, err
		}
	}

	axes := []uint16{absX, absY, absRX, absRY}
	for _, ax := range axes {
		if err := ioctl(f.Fd(), uiSetAbsBit, uintptr(ax)); err != nil {
			f.Close()
			return nil, err
		}
	}

	var setup uinputSetup
	name := fmt.Sprintf("%s (Player %d)", driverName, playerNum)
	copy(setup.name[:], name)
	setup.id.bustype = busUSB
	setup.id.vendor = vendorID
	setup.id.product = productID
	setup.id.version = 1

	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("uinput: UI_DEV_SETUP: %w", errno)
	}

	for _, ax := range axes {
		absSetup := uinputAbsSetup{
			code: ax,
			info: inputAbsinfo{min: -32768, max: 32767, fuzz: 16, flat: 128},
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiAbsSetup, uintptr(unsafe.Pointer(&absSetup))); errno != 0 {
			f.Close()
			return nil, fmt.Errorf("uinput: UI_ABS_SETUP: %w", errno)
		}
	}

	if err := ioctl(f.Fd(), uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput: UI_DEV_CREATE: %w", err)
	}

	return &Pad{file: f, mode: mode}, nil
}

// Emit translates a vpad.Report into evdev key/abs events and syncs.
func (p *Pad) Emit(r vpad.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Mode == buttonmap.ModeDS4 {
		p.emitButton(btnSouth, r.DS4Buttons&buttonmap.DS4A != 0)
		p.emitButton(btnEast, r.DS4Buttons&buttonmap.DS4B != 0)
		p.emitButton(btnNorth, r.DS4Buttons&buttonmap.DS4X != 0)
		p.emitButton(btnWest, r.DS4Buttons&buttonmap.DS4Y != 0)
		p.emitButton(btnTL, r.DS4Buttons&buttonmap.DS4LB != 0)
		p.emitButton(btnTR, r.DS4Buttons&buttonmap.DS4RB != 0)
		p.emitButton(btnTL2, r.LT)
		p.emitButton(btnTR2, r.RT)
		p.emitButton(btnSelect, r.DS4Buttons&buttonmap.DS4Share != 0)
		p.emitButton(btnStart, r.DS4Buttons&buttonmap.DS4Start != 0)
		p.emitButton(btnMode, r.DS4Buttons&buttonmap.DS4Guide != 0)
		p.emitButton(btnThumbL, r.DS4Buttons&buttonmap.DS4LStick != 0)
		p.emitButton(btnThumbR, r.DS4Buttons&buttonmap.DS4RStick != 0)
		p.emitDpadFromHat(r.Dpad)
	} else {
		p.emitButton(btnSouth, r.X360Buttons&buttonmap.TargetA != 0)
		p.emitButton(btnEast, r.X360Buttons&buttonmap.TargetB != 0)
		p.emitButton(btnNorth, r.X360Buttons&buttonmap.TargetX != 0)
		p.emitButton(btnWest, r.X360Buttons&buttonmap.TargetY != 0)
		p.emitButton(btnTL, r.X360Buttons&buttonmap.TargetLB != 0)
		p.emitButton(btnTR, r.X360Buttons&buttonmap.TargetRB != 0)
		p.emitButton(btnTL2, r.LT)
		p.emitButton(btnTR2, r.RT)
		p.emitButton(btnSelect, r.X360Buttons&buttonmap.TargetBack != 0)
		p.emitButton(btnStart, r.X360Buttons&buttonmap.TargetStart != 0)
		p.emitButton(btnMode, r.X360Buttons&buttonmap.TargetGuide != 0)
		p.emitButton(btnThumbL, r.X360Buttons&buttonmap.TargetLStick != 0)
		p.emitButton(btnThumbR, r.X360Buttons&buttonmap.TargetRStick != 0)
		p.emitButton(btnDpadUp, r.X360Buttons&buttonmap.TargetDPadUp != 0)
		p.emitButton(btnDpadDown, r.X360Buttons&buttonmap.TargetDPadDown != 0)
		p.emitButton(btnDpadLeft, r.X360Buttons&buttonmap.TargetDPadLeft != 0)
		p.emitButton(btnDpadRight, r.X360Buttons&buttonmap.TargetDPadRight != 0)
	}

	p.emitAxis(absX, r.LX)
	p.emitAxis(absY, -r.LY)
	p.emitAxis(absRX, r.RX)
	p.emitAxis(absRY, -r.RY)

	p.writeEvent(evSyn, 0, 0)
	return nil
}

// emitDpadFromHat fakes a D-pad hat with the four discrete key codes, since
// a uinput evdev gamepad has no native 3-bit hat switch; the DS4 OS-facing
// identity is reserved for a future real USB-gadget sink.
func (p *Pad) emitDpadFromHat(dir buttonmap.DpadDirection) {
	up := dir == buttonmap.DpadNorth || dir == buttonmap.DpadNorthEast || dir == buttonmap.DpadNorthWest
	down := dir == buttonmap.DpadSouth || dir == buttonmap.DpadSouthEast || dir == buttonmap.DpadSouthWest
	left := dir == buttonmap.DpadWest || dir == buttonmap.DpadNorthWest || dir == buttonmap.DpadSouthWest
	right := dir == buttonmap.DpadEast || dir == buttonmap.DpadNorthEast || dir == buttonmap.DpadSouthEast
	p.emitButton(btnDpadUp, up)
	p.emitButton(btnDpadDown, down)
	p.emitButton(btnDpadLeft, left)
	p.emitButton(btnDpadRight, right)
}

func (p *Pad) emitButton(code uint16, pressed bool) {
	val := int32(0)
	if pressed {
		val = 1
	}
	p.writeEvent(evKey, code, val)
}

func (p *Pad) emitAxis(code uint16, value float64) {
	p.writeEvent(evAbs, code, int32(value*32767))
}

func (p *Pad) writeEvent(typ, code uint16, value int32) {
	var tv syscall.Timeval
	syscall.Gettimeofday(&tv)
	event := inputEvent{time: tv, typ: typ, code: code, value: value}
	buf := (*(*[unsafe.Sizeof(event)]byte)(unsafe.Pointer(&event)))[:]
	syscall.Write(int(p.file.Fd()), buf)
}

// Close tears down the uinput device.
func (p *Pad) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	ioctl(p.file.Fd(), uiDevDestroy, 0)
	err := p.file.Close()
	p.file = nil
	return err
}
