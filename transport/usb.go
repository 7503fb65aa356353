package transport

import (
	"context"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	cdcRequestSetControlLineState = 0x22
	cdcControlLineDTR             = 1 << 0
	cdcControlLineRTS             = 1 << 1
)

var errDeadline = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "read deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// USBDevice talks to the CDC data interface of the device through libusb,
// bypassing the operating system's serial driver.
type USBDevice struct {
	UsbCtx    *gousb.Context
	Dev       *gousb.Device
	Config    *gousb.Config
	IfaceComm *gousb.Interface
	IfaceData *gousb.Interface
	EpIn      *gousb.InEndpoint
	EpOut     *gousb.OutEndpoint

	rcvQueue chan []byte
	pending  []byte
	deadline time.Time
	cancel   context.CancelFunc
	ctx      context.Context
}

// OpenUSB opens the device vid:pid and claims its CDC interfaces.
func OpenUSB(vid, pid uint16) (res *USBDevice, err error) {
	res = &USBDevice{}
	res.UsbCtx = gousb.NewContext()

	res.Dev, err = res.UsbCtx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil || res.Dev == nil {
		res.Close()
		if err == nil {
			err = errors.Errorf("USB device %04x:%04x not found", vid, pid)
		}
		return nil, errors.Wrap(err, "open USB device")
	}
	res.Dev.SetAutoDetach(true)

	res.Config, err = res.Dev.Config(1)
	if err != nil {
		res.Close()
		return nil, errors.Wrap(err, "retrieve config 1 of USB device")
	}
	log.WithField("config", res.Config.Desc.String()).Debug("Using USB config")

Outer:
	for _, ifaceDesc := range res.Config.Desc.Interfaces {
		for _, ifaceSettings := range ifaceDesc.AltSettings {
			switch ifaceSettings.Class {
			case gousb.ClassComm:
				if res.IfaceComm != nil {
					continue
				}
				res.IfaceComm, err = res.Config.Interface(ifaceSettings.Number, ifaceSettings.Alternate)
				if err != nil {
					res.Close()
					return nil, errors.Wrap(err, "claim CDC communication interface")
				}
			case gousb.ClassData:
				var in, out *gousb.EndpointDesc
				for _, epDesc := range ifaceSettings.Endpoints {
					epDesc := epDesc
					if epDesc.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if epDesc.Direction == gousb.EndpointDirectionIn {
						in = &epDesc
					} else {
						out = &epDesc
					}
				}
				if in == nil || out == nil {
					continue
				}
				res.IfaceData, err = res.Config.Interface(ifaceSettings.Number, ifaceSettings.Alternate)
				if err != nil {
					res.Close()
					return nil, errors.Wrap(err, "claim CDC data interface")
				}
				if res.EpIn, err = res.IfaceData.InEndpoint(in.Number); err != nil {
					res.Close()
					return nil, errors.Wrap(err, "open bulk IN endpoint")
				}
				if res.EpOut, err = res.IfaceData.OutEndpoint(out.Number); err != nil {
					res.Close()
					return nil, errors.Wrap(err, "open bulk OUT endpoint")
				}
				break Outer
			}
		}
	}

	if res.EpIn == nil || res.EpOut == nil {
		res.Close()
		return nil, errors.New("couldn't find CDC data endpoints")
	}
	log.WithFields(log.Fields{"in": res.EpIn.String(), "out": res.EpOut.String()}).Info("USB CDC device opened")

	if res.IfaceComm != nil {
		_, err := res.Dev.Control(
			0x21, //host to device, class, interface
			cdcRequestSetControlLineState,
			cdcControlLineDTR|cdcControlLineRTS,
			uint16(res.IfaceComm.Setting.Number),
			nil,
		)
		if err != nil {
			log.WithError(err).Debug("SET_CONTROL_LINE_STATE failed")
		}
	}

	res.rcvQueue = make(chan []byte, 16)
	res.ctx, res.cancel = context.WithCancel(context.Background())
	go res.rcvLoop()

	return res, nil
}

func (u *USBDevice) rcvLoop() {
	buf := make([]byte, u.EpIn.Desc.MaxPacketSize)

	for {
		n, err := u.EpIn.ReadContext(u.ctx, buf)
		if err != nil {
			break
		}
		if n == 0 {
			continue
		}
		select {
		case u.rcvQueue <- append([]byte(nil), buf[:n]...):
		case <-u.ctx.Done():
		}
	}

	close(u.rcvQueue)
}

// SetReadDeadline bounds the following reads. A zero time disables it.
func (u *USBDevice) SetReadDeadline(t time.Time) error {
	u.deadline = t
	return nil
}

func (u *USBDevice) Read(p []byte) (int, error) {
	if len(u.pending) == 0 {
		ctx := u.ctx
		if !u.deadline.IsZero() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, u.deadline)
			defer cancel()
		}

		select {
		case data, ok := <-u.rcvQueue:
			if !ok {
				return 0, errors.New("USB device closed")
			}
			u.pending = data
		case <-ctx.Done():
			return 0, errDeadline
		}
	}

	n := copy(p, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

func (u *USBDevice) Write(p []byte) (int, error) {
	n, err := u.EpOut.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "bulk write")
	}
	return n, nil
}

func (u *USBDevice) Close() error {
	if u.cancel != nil {
		u.cancel()
	}

	if u.IfaceData != nil {
		u.IfaceData.Close()
	}

	if u.IfaceComm != nil {
		u.IfaceComm.Close()
	}

	if u.Config != nil {
		u.Config.Close()
	}

	if u.Dev != nil {
		u.Dev.SetAutoDetach(false)
		u.Dev.Close()
	}

	if u.UsbCtx != nil {
		u.UsbCtx.Close()
	}
	return nil
}
