package bootloader

import (
	"fmt"

	"github.com/mame82/cdcboot/protocol"
	log "github.com/sirupsen/logrus"
)

type State byte

const (
	WaitingForCommand State = iota
	WritingFirmware
)

func (s State) String() string {
	switch s {
	case WaitingForCommand:
		return "WAITING FOR COMMAND"
	case WritingFirmware:
		return "WRITING FIRMWARE"
	}
	return fmt.Sprintf("Unknown state %d", byte(s))
}

// ChunkClosed is the PosInChunk value while no chunk is being received.
const ChunkClosed = -1

// Cursor tracks where the current write session is.
type Cursor struct {
	// PosInChunk is the next byte position inside the chunk buffer, or
	// ChunkClosed.
	PosInChunk int
	// Index is the zero based slot of the next chunk to commit.
	Index int
}

func (c Cursor) String() string {
	if c.PosInChunk == ChunkClosed {
		return fmt.Sprintf("chunk %d (closed)", c.Index)
	}
	return fmt.Sprintf("chunk %d @ %d", c.Index, c.PosInChunk)
}

// Response is the outcome of a single handled byte.
type Response struct {
	// Replies holds the bytes to send back, in order. Zero, one or two bytes.
	Replies []byte
	// HandOff is set when the caller has to flush the transport and enter the
	// application image. It is terminal.
	HandOff bool
}

// Observer gets notified about every byte the engine handled, with the state
// before and after it.
type Observer interface {
	ByteHandled(in byte, from, to State, resp Response)
	ChunkCommitted(index int, ok bool)
}

// Engine interprets the bootloader protocol. It owns the session state and
// the only chunk buffer; it is not safe for concurrent use.
type Engine struct {
	flash    FlashWriter
	led      Indicator
	capacity int
	observer Observer
	log      *log.Entry

	state  State
	cursor Cursor
	chunk  [protocol.ChunkSize]byte
}

type EngineOption func(*Engine)

// WithIndicator lets the engine drive the status LED.
func WithIndicator(led Indicator) EngineOption {
	return func(e *Engine) {
		e.led = led
	}
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

func WithLogger(l *log.Entry) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine returns an engine committing chunks through flash. capacity is
// the number of 1 KB chunks available for the application image.
func NewEngine(flash FlashWriter, capacity int, opts ...EngineOption) *Engine {
	if flash == nil {
		panic("flash writer cannot be nil")
	}
	if capacity < 0 {
		capacity = 0
	}

	e := &Engine{
		flash:    flash,
		led:      nopIndicator{},
		capacity: capacity,
		log:      log.WithField("component", "engine"),
		state:    WaitingForCommand,
		cursor:   Cursor{PosInChunk: ChunkClosed},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) Cursor() Cursor {
	return e.cursor
}

func (e *Engine) Capacity() int {
	return e.capacity
}

// HandleByte consumes one protocol byte.
func (e *Engine) HandleByte(b byte) (resp Response) {
	state := e.state
	switch state {
	case WaitingForCommand:
		resp = e.handleCommand(protocol.Command(b))
	case WritingFirmware:
		resp = e.handleWrite(b)
	}

	if e.observer != nil {
		e.observer.ByteHandled(b, state, e.state, resp)
	}
	return resp
}

func (e *Engine) handleCommand(cmd protocol.Command) Response {
	switch cmd {
	case protocol.GetBootloaderState:
		e.setState(WaitingForCommand)
		return reply(byte(protocol.CommandReplyOK), byte(protocol.BootloaderStateInBootloader))
	case protocol.EnterBootloader:
		e.setState(WaitingForCommand)
		return reply(byte(protocol.CommandReplyOK))
	case protocol.EnterProgrammer:
		e.log.Info("Hand-off to application requested")
		return Response{Replies: []byte{byte(protocol.CommandReplyOK)}, HandOff: true}
	case protocol.BootloaderEraseAndWriteProgram:
		e.cursor = Cursor{PosInChunk: ChunkClosed, Index: 0}
		e.setState(WritingFirmware)
		return reply(byte(protocol.CommandReplyOK))
	}

	e.log.WithField("command", cmd).Debug("Rejecting command")
	e.setState(WaitingForCommand)
	return reply(byte(protocol.CommandReplyInvalid))
}

func (e *Engine) handleWrite(b byte) Response {
	if e.cursor.PosInChunk == ChunkClosed {
		return e.handleWriteRequest(protocol.WriteRequest(b))
	}

	e.chunk[e.cursor.PosInChunk] = b
	e.cursor.PosInChunk++
	if e.cursor.PosInChunk < protocol.ChunkSize {
		return Response{}
	}

	e.led.Toggle()

	offset := uint32(e.cursor.Index) * protocol.ChunkSize
	ok := e.flash.WriteFlash(e.chunk[:], offset)
	if e.observer != nil {
		e.observer.ChunkCommitted(e.cursor.Index, ok)
	}
	if !ok {
		e.log.WithFields(log.Fields{"chunk": e.cursor.Index, "offset": fmt.Sprintf("%#x", offset)}).Warn("Flash write failed, aborting session")
		e.setState(WaitingForCommand)
		return reply(byte(protocol.BootloaderWriteError))
	}

	e.log.WithField("chunk", e.cursor.Index).Debug("Chunk committed")
	e.cursor.Index++
	e.cursor.PosInChunk = ChunkClosed
	return reply(byte(protocol.BootloaderWriteOK))
}

func (e *Engine) handleWriteRequest(req protocol.WriteRequest) Response {
	switch req {
	case protocol.ComputerBootloaderWriteMore:
		if e.cursor.Index >= e.capacity {
			e.log.WithField("capacity", e.capacity).Warn("No room for another chunk, aborting session")
			e.setState(WaitingForCommand)
			return reply(byte(protocol.BootloaderWriteError))
		}
		e.cursor.PosInChunk = 0
		return reply(byte(protocol.BootloaderWriteOK))
	case protocol.ComputerBootloaderFinish:
		e.led.Off()
		e.log.WithField("chunks", e.cursor.Index).Info("Write session finished")
		e.setState(WaitingForCommand)
		return reply(byte(protocol.BootloaderWriteOK))
	case protocol.ComputerBootloaderCancel:
		e.led.Off()
		e.log.WithField("chunks", e.cursor.Index).Info("Write session cancelled")
		e.setState(WaitingForCommand)
		return reply(byte(protocol.BootloaderWriteConfirmCancel))
	}

	// unknown bytes between chunks are dropped without an answer
	return Response{}
}

func (e *Engine) setState(s State) {
	if s != e.state {
		e.log.WithFields(log.Fields{"from": e.state, "to": s}).Debug("State change")
	}
	e.state = s
}

func reply(b ...byte) Response {
	return Response{Replies: b}
}

type nopIndicator struct{}

func (nopIndicator) Init()   {}
func (nopIndicator) On()     {}
func (nopIndicator) Off()    {}
func (nopIndicator) Toggle() {}
