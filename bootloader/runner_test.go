package bootloader

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mame82/cdcboot/protocol"
)

// scriptedTransport hands out a fixed input and records everything sent.
type scriptedTransport struct {
	in       []byte
	sent     []byte
	flushed  []byte
	services int
	disabled bool
}

func (s *scriptedTransport) Init() error { return nil }

func (s *scriptedTransport) Poll() (byte, bool) {
	if len(s.in) == 0 {
		return 0, false
	}
	b := s.in[0]
	s.in = s.in[1:]
	return b, true
}

func (s *scriptedTransport) Send(b byte) { s.sent = append(s.sent, b) }
func (s *scriptedTransport) Flush()      { s.flushed = append([]byte(nil), s.sent...) }
func (s *scriptedTransport) Service()    { s.services++ }
func (s *scriptedTransport) Disable()    { s.disabled = true }

type fakeHardware struct {
	recordingFlash
	countingLED

	t         *scriptedTransport
	enabled   bool
	events    []string
	handedOff bool
}

func (h *fakeHardware) Disable() {
	h.enabled = false
	h.events = append(h.events, "disable")
}

func (h *fakeHardware) Enable() {
	h.enabled = true
	h.events = append(h.events, "enable")
}

func (h *fakeHardware) Init() error {
	h.events = append(h.events, "init")
	return nil
}

func (h *fakeHardware) LED() Indicator       { return &h.countingLED }
func (h *fakeHardware) Transport() Transport { return h.t }

func (h *fakeHardware) EnterMainFirmware() {
	h.handedOff = true
	h.t.Disable()
}

func TestRunnerHandOff(t *testing.T) {
	tr := &scriptedTransport{in: []byte{
		byte(protocol.GetBootloaderState),
		0x42,
		byte(protocol.EnterProgrammer),
		byte(protocol.EnterBootloader),
	}}
	hw := &fakeHardware{t: tr}

	r := NewRunner(hw, 4)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !hw.handedOff {
		t.Fatal("application was not entered")
	}
	want := []byte{
		byte(protocol.CommandReplyOK), byte(protocol.BootloaderStateInBootloader),
		byte(protocol.CommandReplyInvalid),
		byte(protocol.CommandReplyOK),
	}
	if !bytes.Equal(tr.sent, want) {
		t.Fatalf("sent % x, want % x", tr.sent, want)
	}
	if !bytes.Equal(tr.flushed, want) {
		t.Fatalf("flushed % x before hand-off, want % x", tr.flushed, want)
	}
	if len(tr.in) != 1 {
		t.Fatalf("bytes after the hand-off were consumed")
	}
	if got := hw.events; len(got) < 3 || got[0] != "disable" || got[1] != "init" || got[len(got)-1] != "enable" {
		t.Fatalf("boot sequence %v", got)
	}
	if hw.offs == 0 {
		t.Fatal("LED was not switched off during boot")
	}
}

func TestRunnerServicesTransportEveryIteration(t *testing.T) {
	tr := &scriptedTransport{in: []byte{byte(protocol.EnterBootloader), byte(protocol.EnterBootloader)}}
	hw := &fakeHardware{t: tr}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewRunner(hw, 4).Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run returned %v", err)
	}
	if tr.services < 2 {
		t.Fatalf("transport serviced %d times", tr.services)
	}
	if !bytes.Equal(tr.sent, []byte{0, 0}) {
		t.Fatalf("sent % x", tr.sent)
	}
}
