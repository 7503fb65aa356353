package sim

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const rxBufferSize = 4096

// DefaultIdle is how long Service waits for host data before returning.
const DefaultIdle = time.Millisecond

// Transport is a virtual serial port on top of a TCP listener, one host at a
// time. The accept and reader goroutines only feed channels, everything the
// bootloader loop sees happens inside Poll, Send, Flush and Service.
type Transport struct {
	ln   net.Listener
	idle time.Duration

	conns chan net.Conn
	rx    chan byte

	conn    net.Conn
	gone    chan struct{}
	tx      []byte
	peek    byte
	hasPeek bool
	idler   *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// Listen opens a TCP virtual serial port on addr.
func Listen(addr string) (*Transport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	return NewTransport(ln), nil
}

// NewTransport serves host connections accepted on ln.
func NewTransport(ln net.Listener) *Transport {
	return &Transport{
		ln:    ln,
		idle:  DefaultIdle,
		conns: make(chan net.Conn),
		rx:    make(chan byte, rxBufferSize),
		done:  make(chan struct{}),
	}
}

// Addr is the address hosts connect to.
func (t *Transport) Addr() net.Addr {
	return t.ln.Addr()
}

// Init starts accepting hosts. It corresponds to bringing up the USB device.
func (t *Transport) Init() error {
	t.idler = time.NewTimer(t.idle)
	go t.acceptLoop()
	log.WithField("addr", t.ln.Addr()).Info("Virtual serial port listening")
	return nil
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-t.done:
			default:
				log.WithError(err).Error("Accept failed")
			}
			return
		}
		select {
		case t.conns <- conn:
		case <-t.done:
			conn.Close()
			return
		}
	}
}

func (t *Transport) rcvLoop(conn net.Conn, gone chan<- struct{}) {
	defer close(gone)
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			select {
			case t.rx <- b:
			case <-t.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Poll returns the next host byte, if one is pending.
func (t *Transport) Poll() (byte, bool) {
	if t.hasPeek {
		t.hasPeek = false
		return t.peek, true
	}
	select {
	case b := <-t.rx:
		return b, true
	default:
		return 0, false
	}
}

// Send queues b for the host. Queued bytes go out on the next Service or Flush.
func (t *Transport) Send(b byte) {
	t.tx = append(t.tx, b)
}

// Flush pushes all queued bytes to the host.
func (t *Transport) Flush() {
	if len(t.tx) == 0 {
		return
	}
	if t.conn == nil {
		log.WithField("bytes", len(t.tx)).Debug("No host connected, dropping replies")
		t.tx = t.tx[:0]
		return
	}
	if _, err := t.conn.Write(t.tx); err != nil {
		log.WithError(err).Warn("Host write failed, dropping connection")
		t.dropConn()
	}
	t.tx = t.tx[:0]
}

// Service does the periodic transport housekeeping: it adopts new hosts,
// notices disconnects and sends queued replies. If there is no host data it
// idles for a moment instead of letting the caller spin.
func (t *Transport) Service() {
	if t.gone != nil {
		select {
		case <-t.gone:
			log.WithField("remote", t.conn.RemoteAddr()).Info("Host disconnected")
			t.dropConn()
		default:
		}
	}

	if t.conn == nil {
		select {
		case conn := <-t.conns:
			t.adopt(conn)
		default:
		}
	}

	t.Flush()

	if t.hasPeek {
		return
	}
	if !t.idler.Stop() {
		select {
		case <-t.idler.C:
		default:
		}
	}
	t.idler.Reset(t.idle)
	select {
	case b := <-t.rx:
		t.peek, t.hasPeek = b, true
	case <-t.idler.C:
	case <-t.done:
	}
}

func (t *Transport) adopt(conn net.Conn) {
	log.WithField("remote", conn.RemoteAddr()).Info("Host connected")
	t.conn = conn
	t.gone = make(chan struct{})
	go t.rcvLoop(conn, t.gone)
}

func (t *Transport) dropConn() {
	if t.conn == nil {
		return
	}
	t.conn.Close()
	t.conn = nil
	t.gone = nil
}

// Disable detaches from the host: the listener and any connection are
// closed. The transport cannot be used afterwards.
func (t *Transport) Disable() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.ln.Close()
		t.dropConn()
		log.Info("Virtual serial port detached")
	})
}
