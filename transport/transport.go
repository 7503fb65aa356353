// Package transport opens the byte stream the host programmer talks over: a
// CDC serial port, the raw USB bulk endpoints of the device, or a TCP
// connection to the simulator.
package transport

import (
	"io"
	"net"
	"time"

	"github.com/mame82/cdcboot/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrNoDevice = errors.New("no bootloader device configured")

// Open connects according to h: a named serial port, a simulator address or
// a USB VID/PID pair, in that order. A VID/PID pair is looked up among the
// serial ports first and opened as raw USB device if the system has no
// serial driver bound to it.
func Open(h config.Host) (io.ReadWriteCloser, error) {
	switch {
	case h.Port != "":
		return OpenSerial(h.Port, h.Baud)
	case h.Address != "":
		return DialTCP(h.Address, h.Timeout)
	case h.USBVID != 0:
		name, err := FindSerial(h.USBVID, h.USBPID)
		if err == nil {
			return OpenSerial(name, h.Baud)
		}
		log.WithError(err).Debug("No serial port for device, trying raw USB")
		dev, err := OpenUSB(h.USBVID, h.USBPID)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	return nil, ErrNoDevice
}

// DialTCP connects to a simulated device.
func DialTCP(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}
	log.WithField("addr", addr).Info("Connected to simulator")
	return conn, nil
}
