// Package rumble drives the vibration pump for one virtual-pad slot: an
// epoch-cancelable loop that writes an amplitude frame to every member
// session every ~20ms, adapted from the teacher driver's
// HapticPlayer.Play ticker+goroutine+done-channel shape but generalized
// from a fixed demo pattern to a caller-driven amplitude, matching
// original_source/virtual_controller.py's vibration_callback.
package rumble

import (
	"context"
	"sync"
	"time"

	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/link"
)

// interval is the pump's send cadence, matching vibration_callback's
// asyncio.sleep(0.02).
const interval = 20 * time.Millisecond

// maxCycles bounds a single request's loop length (spec.md §9 "Rumble pump
// cancellation": "a global cap (~500 cycles) guards against leaked loops").
const maxCycles = 500

// Pump drives the rumble motors of one or two sessions sharing a virtual
// pad (a combined dual-Joy-Con pair, or a single device).
type Pump struct {
	mu       sync.Mutex
	sessions []device.Session
	epoch    uint64
}

// New constructs a Pump over the sessions backing one virtual-pad slot.
func New(sessions []device.Session) *Pump {
	return &Pump{sessions: append([]device.Session(nil), sessions...)}
}

// SetMotors requests a new amplitude, computed from two 0..255 motor
// strengths the way vibration_callback does: lf_amp=800*large/256,
// hf_amp=800*small/256. A zero/zero request cancels any running loop and
// sends one stop frame instead of starting a new loop.
func (p *Pump) SetMotors(ctx context.Context, large, small byte) error {
	p.mu.Lock()
	p.epoch++
	myEpoch := p.epoch
	sessions := append([]device.Session(nil), p.sessions...)
	p.mu.Unlock()

	lowAmp := uint16(800 * uint32(large) / 256)
	highAmp := uint16(800 * uint32(small) / 256)
	frame := link.FromAmplitudes(lowAmp, highAmp)

	if large == 0 && small == 0 {
		return writeAll(ctx, sessions, frame)
	}

	go p.loop(myEpoch, sessions, frame)
	return nil
}

func (p *Pump) loop(myEpoch uint64, sessions []device.Session, frame link.Vibration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	writeAll(ctx, sessions, frame)

	for i := 1; i < maxCycles; i++ {
		<-ticker.C

		p.mu.Lock()
		current := p.epoch
		p.mu.Unlock()
		if current != myEpoch {
			return
		}

		writeAll(ctx, sessions, frame)
	}
}

func writeAll(ctx context.Context, sessions []device.Session, frame link.Vibration) error {
	var wg sync.WaitGroup
	errs := make([]error, len(sessions))
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s device.Session) {
			defer wg.Done()
			errs[i] = s.SetVibration(ctx, frame)
		}(i, s)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop cancels any running loop and sends a single stop frame, for use on
// disconnect/shutdown.
func (p *Pump) Stop(ctx context.Context) error {
	return p.SetMotors(ctx, 0, 0)
}
