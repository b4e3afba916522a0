// Package blelink implements the Bluetooth LE session backend for Joy-Con 2
// and Pro Controller 2 wireless pairing, adapted from the teacher driver's
// controller.go/hidraw.go shape (claim transport, spawn a reader goroutine,
// feed a command channel) but speaking GATT via tinygo.org/x/bluetooth
// instead of USB bulk endpoints, per spec.md §6's characteristic table.
package blelink

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
	"github.com/rexisp/switch2gamepad/internal/link"
)

// charWriter adapts a notify-less GATT characteristic write to link.Writer.
type charWriter struct {
	char bluetooth.DeviceCharacteristic
}

func (w *charWriter) Write(ctx context.Context, frame []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := w.char.WriteWithoutResponse(frame)
	return err
}

// Session is the BLE device.Session implementation, one per paired
// Joy-Con 2 or Pro Controller 2.
type Session struct {
	kind   device.Kind
	dev    bluetooth.Device
	cmdOut bluetooth.DeviceCharacteristic
	cmdIn  bluetooth.DeviceCharacteristic
	input  bluetooth.DeviceCharacteristic
	vib    bluetooth.DeviceCharacteristic

	channel *link.Channel

	// adapterAddr resolves the local Bluetooth adapter address used during
	// pairing. Querying it is a non-goal of this system (spec.md §1);
	// callers inject a resolver at construction.
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
}

// New wraps an already-connected bluetooth.Device. Discovery of the
// advertisement and the initial Connect() call are the caller's
// responsibility (internal/discovery owns the scan loop).
func New(dev bluetooth.Device, kind device.Kind, profile calibration.Profile, sideButtons bool, adapterAddr func() (uint64, error)) *Session {
	return &Session{
		kind:        kind,
		dev:         dev,
		profile:     profile,
		sideButtons: sideButtons,
		adapterAddr: adapterAddr,
		state:       device.StateNew,
	}
}

func (s *Session) Kind() device.Kind           { return s.kind }
func (s *Session) Encoding() buttonmap.Encoding { return buttonmap.EncodingBLE }
func (s *Session) State() device.State         { s.mu.Lock(); defer s.mu.Unlock(); return s.state }
func (s *Session) Identity() device.Identity   { s.mu.Lock(); defer s.mu.Unlock(); return s.identity }
func (s *Session) SideButtonsPressed() bool    { s.mu.Lock(); defer s.mu.Unlock(); return s.sideButtons }

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

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("blelink: invalid built-in UUID %q: %v", s, err))
	}
	return u
}

// Connect discovers the controller's GATT characteristics, subscribes to
// the input-report and command-response notify characteristics, then reads
// identity and calibration, per spec.md §4.4 connect().
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != device.StateNew {
		s.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	s.state = device.StateConnecting
	s.mu.Unlock()

	vibUUID := device.VibrationCharFor(s.kind)
	wanted := []bluetooth.UUID{
		mustUUID(device.CharInputReport),
		mustUUID(device.CharCommandWrite),
		mustUUID(device.CharCommandResponse),
		mustUUID(vibUUID),
	}

	services, err := s.dev.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("blelink: discover services: %w", err)
	}

	found := make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic)
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(wanted)
		if err != nil {
			continue
		}
		for _, c := range chars {
			found[c.UUID()] = c
		}
	}
	for _, u := range wanted {
		if _, ok := found[u]; !ok {
			return fmt.Errorf("blelink: %w: characteristic %s not found", link.ErrTransportClosed, u.String())
		}
	}

	s.input = found[mustUUID(device.CharInputReport)]
	s.cmdOut = found[mustUUID(device.CharCommandWrite)]
	s.cmdIn = found[mustUUID(device.CharCommandResponse)]
	s.vib = found[mustUUID(vibUUID)]

	s.channel = link.NewChannel(&charWriter{char: s.cmdOut}, 500*time.Millisecond)

	if err := s.cmdIn.EnableNotifications(func(buf []byte) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		s.channel.Deliver(cp)
	}); err != nil {
		return fmt.Errorf("blelink: enable command notifications: %w", err)
	}

	info, err := s.ReadMemory(ctx, device.AddressControllerInfo, device.ControllerInfoLen)
	if err != nil {
		return fmt.Errorf("blelink: read controller info: %w", err)
	}
	identity := device.ParseControllerInfo(info)

	left, err := s.readCalibration(ctx, device.AddressUserCalibLeft, device.AddressCalibrationLeft)
	if err != nil {
		return fmt.Errorf("blelink: read left calibration: %w", err)
	}
	right, err := s.readCalibration(ctx, device.AddressUserCalibRight, device.AddressCalibrationRight)
	if err != nil {
		return fmt.Errorf("blelink: read right calibration: %w", err)
	}

	s.mu.Lock()
	s.identity = identity
	s.cal = inputreport.Calibration{Left: left, Right: right}
	s.state = device.StateReady
	s.mu.Unlock()

	if err := s.input.EnableNotifications(func(buf []byte) {
		snap, err := inputreport.Decode(buf, buttonmap.EncodingBLE, s.profile, s.cal)
		if err != nil {
			return
		}
		s.mu.Lock()
		cb := s.onInput
		s.mu.Unlock()
		if cb != nil {
			cb(snap)
		}
	}); err != nil {
		return fmt.Errorf("blelink: enable input notifications: %w", err)
	}

	return nil
}

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
		return nil, fmt.Errorf("blelink: read length %d exceeds max %d", length, device.MaxMemoryReadLen)
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
		return fmt.Errorf("blelink: resolve adapter address: %w", err)
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
	_, err = s.channel.Send(ctx, device.CmdPair, device.SubPairFinish, []byte{0x00})
	return err
}

// SetVibration writes the packed 5-byte frame directly to the vibration
// characteristic, bypassing the command channel: spec.md §4.4 describes
// this as a raw write, not a command/response exchange.
func (s *Session) SetVibration(ctx context.Context, v link.Vibration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	frame := v.Bytes()
	seq := s.nextVibSeq()
	payload := make([]byte, 17)
	payload[0] = 0x00
	payload[1] = 0x50 | (seq & 0x0F)
	copy(payload[2:], frame[:])
	_, err := s.vib.WriteWithoutResponse(payload)
	return err
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

	if s.channel != nil {
		s.channel.Close()
	}
	err := s.dev.Disconnect()
	if cb != nil {
		cb(s)
	}
	return err
}
