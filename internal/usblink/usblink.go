// Package usblink implements the wired Pro Controller 2 session backend
// over USB bulk endpoints for commands and a hidraw node for input frames,
// adapted from the teacher driver's controller.go/hidraw.go/hidinput.go,
// generalized from its own bespoke output-report protocol to the unified
// command-channel protocol original_source/procon2_usb.py shows the wired
// Pro Controller 2 actually speaks (same framing as BLE, over bulk
// endpoints instead of GATT).
package usblink

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
	"github.com/rexisp/switch2gamepad/internal/link"
)

// VendorID and InterfaceNumber match the teacher driver's constants; the
// Pro Controller 2 (and NSO GameCube controller, sharing the same wired
// profile) are the only USB-capable devices in scope.
const (
	VendorID       = 0x057E
	InterfaceNumber = 1
)

// usbWriter adapts a gousb.OutEndpoint to link.Writer.
type usbWriter struct {
	ep *gousb.OutEndpoint
}

func (w *usbWriter) Write(ctx context.Context, frame []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := w.ep.Write(frame)
	return err
}

// Session is the USB Pro Controller 2 device.Session implementation.
type Session struct {
	kind   device.Kind
	dev    *gousb.Device
	iface  *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
	hidraw *os.File

	channel *link.Channel

	// adapterAddr resolves the local Bluetooth/USB-host adapter address used
	// during pairing. Querying it is a non-goal of this system (spec.md §1);
	// callers inject a resolver (e.g. a sysfs/hci lookup) at construction.
	adapterAddr func() (uint64, error)

	profile calibration.Profile
	cal     inputreport.Calibration

	mu           sync.Mutex
	state        device.State
	identity     device.Identity
	sideButtons  bool
	vibSeq       uint32
	onInput      func(inputreport.Snapshot)
	onDisconnect func(device.Session)

	stop chan struct{}
}

// New claims configNum/ifaceNum on an already-opened gousb.Device and
// resolves its hidraw node, adapting NewController/claimInterface.
func New(dev *gousb.Device, configNum, ifaceNum int, kind device.Kind, profile calibration.Profile, adapterAddr func() (uint64, error)) (*Session, error) {
	cfg, err := dev.Config(configNum)
	if err != nil {
		return nil, fmt.Errorf("usblink: open config %d: %w", configNum, err)
	}
	intf, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("usblink: claim interface %d: %w", ifaceNum, err)
	}

	var epOut *gousb.OutEndpoint
	var epIn *gousb.InEndpoint
	for _, e := range intf.Setting.Endpoints {
		if e.Direction == gousb.EndpointDirectionOut && e.TransferType == gousb.TransferTypeBulk {
			if epOut, err = intf.OutEndpoint(e.Number); err != nil {
				intf.Close()
				return nil, fmt.Errorf("usblink: out endpoint: %w", err)
			}
		}
		if e.Direction == gousb.EndpointDirectionIn && e.TransferType == gousb.TransferTypeBulk {
			if epIn, err = intf.InEndpoint(e.Number); err != nil {
				intf.Close()
				return nil, fmt.Errorf("usblink: in endpoint: %w", err)
			}
		}
	}
	if epOut == nil || epIn == nil {
		intf.Close()
		return nil, fmt.Errorf("usblink: bulk endpoints not found")
	}

	path, err := hidrawForUSB(int(dev.Desc.Bus), int(dev.Desc.Address))
	if err != nil {
		intf.Close()
		return nil, fmt.Errorf("usblink: %w", err)
	}
	hidraw, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		intf.Close()
		return nil, fmt.Errorf("usblink: open %s: %w", path, err)
	}

	s := &Session{
		kind:    kind,
		dev:     dev,
		iface:   intf,
		epOut:   epOut,
		epIn:    epIn,
		hidraw:  hidraw,
		channel:     link.NewChannel(&usbWriter{ep: epOut}, 500*time.Millisecond),
		adapterAddr: adapterAddr,
		profile:     profile,
		state:       device.StateNew,
		stop:        make(chan struct{}),
	}
	return s, nil
}

func (s *Session) Kind() device.Kind                { return s.kind }
func (s *Session) Encoding() buttonmap.Encoding      { return buttonmap.EncodingUSB }
func (s *Session) State() device.State              { s.mu.Lock(); defer s.mu.Unlock(); return s.state }
func (s *Session) Identity() device.Identity         { s.mu.Lock(); defer s.mu.Unlock(); return s.identity }
func (s *Session) SideButtonsPressed() bool          { s.mu.Lock(); defer s.mu.Unlock(); return s.sideButtons }

func (s *Session) OnInput(cb func(inputreport.Snapshot)) {
	s.mu.Lock()
	s.onInput = cb
	s.mu.Unlock()
}

func (s *Session) DisconnectCallback(cb func(device.Session)) {
	s.mu.Lock()
	s.onDisconnect = cb
	s.mu.Unlock()
}

// Connect claims the transport, reads identity and calibration, subscribes
// to command responses and input frames, per spec.md §4.4 connect().
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != device.StateNew {
		s.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	s.state = device.StateConnecting
	s.mu.Unlock()

	go s.readResponses()

	info, err := s.ReadMemory(ctx, device.AddressControllerInfo, device.ControllerInfoLen)
	if err != nil {
		return fmt.Errorf("usblink: read controller info: %w", err)
	}
	identity := device.ParseControllerInfo(info)

	left, err := s.readCalibration(ctx, device.AddressUserCalibLeft, device.AddressCalibrationLeft)
	if err != nil {
		return fmt.Errorf("usblink: read left calibration: %w", err)
	}
	right, err := s.readCalibration(ctx, device.AddressUserCalibRight, device.AddressCalibrationRight)
	if err != nil {
		return fmt.Errorf("usblink: read right calibration: %w", err)
	}

	s.mu.Lock()
	s.identity = identity
	s.cal = inputreport.Calibration{Left: left, Right: right}
	s.state = device.StateReady
	s.mu.Unlock()

	go s.readInputFrames()
	return nil
}

// readCalibration reads the user calibration slot, falling back to the
// factory slot when the user slot's leading 3 bytes are 0xFFFFFF
// (spec.md §4.4 connect()).
func (s *Session) readCalibration(ctx context.Context, userAddr, factoryAddr uint32) (calibration.Stick, error) {
	data, err := s.ReadMemory(ctx, userAddr, device.CalibrationReadLen)
	if err != nil {
		return calibration.Stick{}, err
	}
	if codec.DecodeU(data[:3]) == 0xFFFFFF {
		data, err = s.ReadMemory(ctx, factoryAddr, device.CalibrationReadLen)
		if err != nil {
			return calibration.Stick{}, err
		}
	}
	return device.ParseStickCalibration(data), nil
}

func (s *Session) SetLEDs(ctx context.Context, player int, reversed bool) error {
	if player > 8 {
		player = 8
	}
	pattern, ok := device.LEDPattern[player]
	if !ok {
		pattern = device.LEDPattern[1]
	}
	if reversed {
		pattern = codec.ReverseBits(pattern, 4)
	}
	payload := make([]byte, 4)
	payload[0] = pattern
	_, err := s.channel.Send(ctx, device.CmdLEDs, device.SubLEDsSetPlayer, payload)
	return err
}

func (s *Session) PlayPreset(ctx context.Context, preset byte) error {
	_, err := s.channel.Send(ctx, device.CmdVibration, device.SubVibrationPreset, []byte{preset})
	return err
}

func (s *Session) ReadMemory(ctx context.Context, addr uint32, length byte) ([]byte, error) {
	if length > device.MaxMemoryReadLen {
		return nil, fmt.Errorf("usblink: read length %d exceeds max %d", length, device.MaxMemoryReadLen)
	}
	payload := make([]byte, 8)
	payload[0] = length
	payload[1] = 0x7E
	binary.LittleEndian.PutUint32(payload[4:8], addr)

	resp, err := s.channel.Send(ctx, device.CmdMemory, device.SubMemoryRead, payload)
	if err != nil {
		return nil, err
	}
	if len(resp) < 8 || resp[0] != length || uint32(codec.DecodeU(resp[4:8])) != addr {
		return nil, fmt.Errorf("%w: memory read echo mismatch", link.ErrUnexpectedResponse)
	}
	return resp[8:], nil
}

func (s *Session) EnableFeatures(ctx context.Context, mask uint32) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, mask)
	if _, err := s.channel.Send(ctx, device.CmdFeature, device.SubFeatureInit, payload); err != nil {
		return err
	}
	_, err := s.channel.Send(ctx, device.CmdFeature, device.SubFeatureEnable, payload)
	return err
}

// Pair sends the local adapter MAC twice (original comments speculate the
// device expects two adapter addresses; preserved verbatim per spec.md §9
// open question (c)), then both LTK halves, then the finish byte.
func (s *Session) Pair(ctx context.Context) error {
	localMAC, err := s.adapterAddr()
	if err != nil {
		return fmt.Errorf("usblink: resolve adapter address: %w", err)
	}
	mac := make([]byte, 6)
	for i := 0; i < 6; i++ {
		mac[i] = byte(localMAC >> (8 * uint(i)))
	}
	payload := append([]byte{0x00, 0x02}, mac...)
	payload = append(payload, mac...)
	if _, err := s.channel.Send(ctx, device.CmdPair, device.SubPairSetMAC, payload); err != nil {
		return err
	}
	if _, err := s.channel.Send(ctx, device.CmdPair, device.SubPairLTK1, device.LTK1[:]); err != nil {
		return err
	}
	if _, err := s.channel.Send(ctx, device.CmdPair, device.SubPairLTK2, device.LTK2[:]); err != nil {
		return err
	}
	_, err := s.channel.Send(ctx, device.CmdPair, device.SubPairFinish, []byte{0x00})
	return err
}

func (s *Session) SetVibration(ctx context.Context, v link.Vibration) error {
	frame := v.Bytes()
	seq := s.nextVibSeq()
	payload := make([]byte, 17)
	payload[0] = 0x00
	payload[1] = 0x50 | (seq & 0x0F)
	copy(payload[2:], frame[:])
	return (&usbWriter{ep: s.epOut}).Write(ctx, payload)
}

// nextVibSeq returns the next vibration packet id, incrementing per call
// per original_source/controller.py's vibration_packet_id counter.
func (s *Session) nextVibSeq() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := byte(s.vibSeq)
	s.vibSeq++
	return seq
}

func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == device.StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = device.StateClosed
	cb := s.onDisconnect
	s.mu.Unlock()

	close(s.stop)
	s.channel.Close()
	if s.iface != nil {
		s.iface.Close()
	}
	if s.hidraw != nil {
		s.hidraw.Close()
	}
	if cb != nil {
		cb(s)
	}
	return nil
}

// readResponses continuously reads the command bulk-IN endpoint and
// delivers each payload to the channel, so Channel.Send's reply arrives
// asynchronously just as it would over a BLE notify stream.
func (s *Session) readResponses() {
	buf := make([]byte, 64)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		n, err := s.epIn.Read(buf)
		if err != nil {
			return
		}
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			s.channel.Deliver(cp)
		}
	}
}

// readInputFrames polls the hidraw node for 60-byte input reports, the way
// procon2_usb.py's hid.device().read(64) loop feeds ControllerInputData.
func (s *Session) readInputFrames() {
	buf := make([]byte, 64)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		n, err := s.hidraw.Read(buf)
		if err != nil {
			return
		}
		if n < 1 {
			continue
		}
		snap, err := inputreport.Decode(buf[1:n], buttonmap.EncodingUSB, s.profile, s.cal)
		if err != nil {
			continue
		}
		s.mu.Lock()
		cb := s.onInput
		s.mu.Unlock()
		if cb != nil {
			cb(snap)
		}
	}
}
