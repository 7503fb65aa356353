package transport

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// OpenSerial opens a CDC serial port. The line settings are ignored by the
// device, DTR is asserted since some host stacks hold back data without it.
func OpenSerial(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	if err := port.SetDTR(true); err != nil {
		log.WithError(err).Debug("Could not assert DTR")
	}
	log.WithField("port", name).Info("Serial port opened")
	return port, nil
}

// FindSerial returns the serial port belonging to the USB device vid:pid.
func FindSerial(vid, pid uint16) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", errors.Wrap(err, "enumerate serial ports")
	}
	for _, p := range ports {
		log.WithFields(log.Fields{"port": p.Name, "usb": p.IsUSB, "vid": p.VID, "pid": p.PID}).Debug("Serial port")
		if matchesUSB(p, vid, pid) {
			return p.Name, nil
		}
	}
	return "", errors.Errorf("no serial port for USB device %04x:%04x", vid, pid)
}

func matchesUSB(p *enumerator.PortDetails, vid, pid uint16) bool {
	return p.IsUSB &&
		strings.EqualFold(p.VID, fmt.Sprintf("%04x", vid)) &&
		strings.EqualFold(p.PID, fmt.Sprintf("%04x", pid))
}
