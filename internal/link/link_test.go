package link

import (
	"context"
	"testing"
	"time"
)

func TestVibrationRoundTrip(t *testing.T) {
	cases := []Vibration{
		{},
		{LowFreq: 0x1FF, LowTone: true, LowAmp: 0x3FF, HighFreq: 0x1FF, HighTone: true, HighAmp: 0x3FF},
		{LowFreq: 0x60, LowAmp: 200, HighFreq: 0x60, HighAmp: 50},
	}
	for _, v := range cases {
		got := DecodeVibration(v.Bytes())
		if got != v {
			t.Fatalf("round trip mismatch: in=%+v out=%+v", v, got)
		}
	}
}

func TestVibrationBytesLength(t *testing.T) {
	b := Vibration{}.Bytes()
	if len(b) != 5 {
		t.Fatalf("got %d bytes, want 5", len(b))
	}
}

func TestBuildCommandLayout(t *testing.T) {
	frame := BuildCommand(0x09, 0x07, []byte{0xAA, 0xBB})
	want := []byte{0x09, 0x91, 0x01, 0x07, 0x00, 0x02, 0x00, 0x00, 0xAA, 0xBB}
	if len(frame) != len(want) {
		t.Fatalf("got len %d, want %d", len(frame), len(want))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, frame[i], want[i])
		}
	}
}

func TestValidateResponse(t *testing.T) {
	if err := ValidateResponse(0x09, []byte{0x09, 0x01, 0x00}); err != nil {
		t.Fatal(err)
	}
	if err := ValidateResponse(0x09, []byte{0x0A, 0x01}); err == nil {
		t.Fatal("expected error for mismatched cmd echo")
	}
	if err := ValidateResponse(0x09, []byte{0x09, 0x00}); err == nil {
		t.Fatal("expected error for bad ack byte")
	}
}

type fakeWriter struct {
	written chan []byte
}

func (f *fakeWriter) Write(ctx context.Context, frame []byte) error {
	f.written <- frame
	return nil
}

func TestChannelSendDeliver(t *testing.T) {
	w := &fakeWriter{written: make(chan []byte, 1)}
	ch := NewChannel(w, 200*time.Millisecond)

	go func() {
		frame := <-w.written
		ch.Deliver([]byte{frame[0], 0x01, 0xCC})
	}()

	resp, err := ch.Send(context.Background(), 0x09, 0x07, []byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp) != 3 || resp[2] != 0xCC {
		t.Fatalf("unexpected response: %x", resp)
	}
}

func TestChannelRejectsConcurrentSend(t *testing.T) {
	w := &fakeWriter{written: make(chan []byte, 4)}
	ch := NewChannel(w, 5*time.Second)

	done := make(chan struct{})
	go func() {
		_, _ = ch.Send(context.Background(), 0x09, 0x07, nil)
		close(done)
	}()
	<-w.written // first send has been written, is now outstanding

	_, err := ch.Send(context.Background(), 0x0A, 0x02, nil)
	if err != ErrCommandInFlight {
		t.Fatalf("got %v, want ErrCommandInFlight", err)
	}

	ch.Deliver([]byte{0x09, 0x01})
	<-done
}

func TestChannelTimeout(t *testing.T) {
	w := &fakeWriter{written: make(chan []byte, 1)}
	ch := NewChannel(w, 20*time.Millisecond)
	_, err := ch.Send(context.Background(), 0x09, 0x07, nil)
	if err != ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestChannelClosed(t *testing.T) {
	w := &fakeWriter{written: make(chan []byte, 1)}
	ch := NewChannel(w, time.Second)
	ch.Close()
	_, err := ch.Send(context.Background(), 0x09, 0x07, nil)
	if err != ErrTransportClosed {
		t.Fatalf("got %v, want ErrTransportClosed", err)
	}
}
