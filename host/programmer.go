// Package host is the computer side of the bootloader protocol.
package host

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/mame82/cdcboot/firmware"
	"github.com/mame82/cdcboot/protocol"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Second

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type readTimeouter interface {
	SetReadTimeout(t time.Duration) error
}

// Programmer talks to a bootloader over a byte stream, a serial port or a
// TCP connection to the simulator.
type Programmer struct {
	rw       io.ReadWriter
	timeout  time.Duration
	progress func(done, total int)
	log      *log.Entry
}

type Option func(*Programmer)

// WithTimeout bounds the wait for every single reply byte.
func WithTimeout(d time.Duration) Option {
	return func(p *Programmer) {
		p.timeout = d
	}
}

// WithProgress is called after every committed chunk.
func WithProgress(f func(done, total int)) Option {
	return func(p *Programmer) {
		p.progress = f
	}
}

func WithLogger(l *log.Entry) Option {
	return func(p *Programmer) {
		p.log = l
	}
}

func New(rw io.ReadWriter, opts ...Option) *Programmer {
	p := &Programmer{
		rw:      rw,
		timeout: DefaultTimeout,
		log:     log.WithField("component", "programmer"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if rt, ok := rw.(readTimeouter); ok {
		if err := rt.SetReadTimeout(p.timeout); err != nil {
			p.log.WithError(err).Warn("Could not set read timeout")
		}
	}
	return p
}

// GetState asks the device which mode it is in.
func (p *Programmer) GetState() (protocol.StateReply, error) {
	if err := p.command(protocol.GetBootloaderState); err != nil {
		return 0, err
	}
	b, err := p.readByte()
	if err != nil {
		return 0, errors.Wrap(err, "read bootloader state")
	}
	state := protocol.StateReply(b)
	p.log.WithField("state", state).Debug("Device state")
	return state, nil
}

func (p *Programmer) EnterBootloader() error {
	return p.command(protocol.EnterBootloader)
}

// EnterProgrammer starts the application. The device detaches after the
// reply.
func (p *Programmer) EnterProgrammer() error {
	return p.command(protocol.EnterProgrammer)
}

// WriteFirmware transfers img chunk by chunk. Cancelling ctx between chunks
// cancels the session on the device and returns ErrCancelled.
func (p *Programmer) WriteFirmware(ctx context.Context, img *firmware.Image) error {
	total := img.Chunks()
	p.log.WithField("image", img).Info("Writing firmware")

	if err := p.command(protocol.BootloaderEraseAndWriteProgram); err != nil {
		return err
	}

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			if err := p.Cancel(); err != nil {
				return errors.Wrap(err, "cancel write session")
			}
			return ErrCancelled
		}

		reply, err := p.writeRequest(protocol.ComputerBootloaderWriteMore)
		if err != nil {
			return errors.Wrapf(err, "chunk %d", i)
		}
		switch reply {
		case protocol.BootloaderWriteOK:
		case protocol.BootloaderWriteError:
			return errors.Wrapf(ErrCapacity, "chunk %d of %d", i, total)
		default:
			return &ReplyError{Step: "write more", Got: byte(reply)}
		}

		if err := p.write(img.Chunk(i)); err != nil {
			return errors.Wrapf(err, "chunk %d", i)
		}
		b, err := p.readByte()
		if err != nil {
			return errors.Wrapf(err, "chunk %d", i)
		}
		switch protocol.WriteReply(b) {
		case protocol.BootloaderWriteOK:
		case protocol.BootloaderWriteError:
			return &ChunkError{Index: i}
		default:
			return &ReplyError{Step: "chunk data", Got: b}
		}

		p.log.WithField("chunk", i).Debug("Chunk written")
		if p.progress != nil {
			p.progress(i+1, total)
		}
	}

	reply, err := p.writeRequest(protocol.ComputerBootloaderFinish)
	if err != nil {
		return errors.Wrap(err, "finish")
	}
	if reply != protocol.BootloaderWriteOK {
		return &ReplyError{Step: "finish", Got: byte(reply)}
	}
	p.log.WithField("chunks", total).Info("Firmware written")
	return nil
}

// Cancel ends an open write session between chunks.
func (p *Programmer) Cancel() error {
	reply, err := p.writeRequest(protocol.ComputerBootloaderCancel)
	if err != nil {
		return err
	}
	if reply != protocol.BootloaderWriteConfirmCancel {
		return &ReplyError{Step: "cancel", Got: byte(reply)}
	}
	p.log.Info("Write session cancelled")
	return nil
}

func (p *Programmer) command(cmd protocol.Command) error {
	if err := p.write([]byte{byte(cmd)}); err != nil {
		return errors.Wrapf(err, "send %s", cmd)
	}
	b, err := p.readByte()
	if err != nil {
		return errors.Wrapf(err, "reply to %s", cmd)
	}
	if protocol.Reply(b) != protocol.CommandReplyOK {
		return &ReplyError{Step: cmd.String(), Got: b}
	}
	return nil
}

func (p *Programmer) writeRequest(req protocol.WriteRequest) (protocol.WriteReply, error) {
	if err := p.write([]byte{byte(req)}); err != nil {
		return 0, errors.Wrapf(err, "send %s", req)
	}
	b, err := p.readByte()
	if err != nil {
		return 0, errors.Wrapf(err, "reply to %s", req)
	}
	return protocol.WriteReply(b), nil
}

func (p *Programmer) write(data []byte) error {
	_, err := p.rw.Write(data)
	return err
}

func (p *Programmer) readByte() (byte, error) {
	if rd, ok := p.rw.(readDeadliner); ok {
		if err := rd.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
			return 0, errors.Wrap(err, "set read deadline")
		}
	}

	var buf [1]byte
	n, err := p.rw.Read(buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, ErrTimeout
		}
		return 0, err
	}
	// serial ports report a timeout as an empty read
	if n == 0 {
		return 0, ErrTimeout
	}
	return buf[0], nil
}
