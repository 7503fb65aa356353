// Package sim is a simulated bootloader device: the flash hardware of a
// target, a status LED and a TCP virtual serial port a host can connect to.
package sim

import (
	"sync"
	"time"

	"github.com/mame82/cdcboot/bootloader"
	"github.com/mame82/cdcboot/firmware"
	"github.com/mame82/cdcboot/target"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Settle delays of the hand-off sequence.
const (
	DefaultSettleBefore = time.Second
	DefaultSettleAfter  = 2 * time.Second
)

// Device implements bootloader.Hardware for a simulated target.
type Device struct {
	sim       *target.Simulation
	transport *Transport
	led       *LED
	log       *log.Entry

	flashFile    string
	settleBefore time.Duration
	settleAfter  time.Duration

	mu      sync.Mutex
	booted  bool
	bootCRC uint16
}

type Option func(*Device)

// WithFlashFile persists program memory to path. It is loaded on Init and
// saved after every committed chunk and on hand-off.
func WithFlashFile(path string) Option {
	return func(d *Device) {
		d.flashFile = path
	}
}

// WithSettle sets the delays before detaching from the host and before
// starting the application.
func WithSettle(before, after time.Duration) Option {
	return func(d *Device) {
		d.settleBefore = before
		d.settleAfter = after
	}
}

func NewDevice(td *target.Definition, t *Transport, opts ...Option) *Device {
	d := &Device{
		sim:          td.Simulate(),
		transport:    t,
		led:          &LED{},
		log:          log.WithField("target", td.Name),
		settleBefore: DefaultSettleBefore,
		settleAfter:  DefaultSettleAfter,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Simulation() *target.Simulation {
	return d.sim
}

func (d *Device) Disable() {
	d.sim.IRQ.Disable()
}

func (d *Device) Enable() {
	d.sim.IRQ.Enable()
}

func (d *Device) LED() bootloader.Indicator {
	return d.led
}

func (d *Device) Transport() bootloader.Transport {
	return d.transport
}

// Init loads the backing file and moves the interrupt vectors to the boot
// section.
func (d *Device) Init() error {
	if d.flashFile != "" {
		if err := d.sim.Memory.Load(d.flashFile); err != nil {
			return errors.Wrap(err, "load program memory")
		}
		d.log.WithField("file", d.flashFile).Info("Program memory loaded")
	}
	d.log.Debug("Interrupt vectors moved to boot section")
	return nil
}

// WriteFlash commits a chunk through the target's programmer. Controller
// operations dropped as violations fail the chunk even if the programmer
// itself saw no error.
func (d *Device) WriteFlash(buf []byte, offset uint32) bool {
	before := len(d.sim.Violations())
	if !d.sim.Writer.WriteFlash(buf, offset) {
		return false
	}
	if v := d.sim.Violations(); len(v) > before {
		d.log.WithFields(log.Fields{"offset": offset, "violations": v[before:]}).Error("Flash controller dropped operations")
		return false
	}
	if err := d.persist(); err != nil {
		d.log.WithError(err).Error("Persisting program memory failed")
	}
	return true
}

func (d *Device) persist() error {
	if d.flashFile == "" {
		return nil
	}
	return d.sim.Memory.Save(d.flashFile)
}

// EnterMainFirmware runs the hand-off sequence: give the host time to read
// the last reply, detach, restore the application's vectors and start it.
func (d *Device) EnterMainFirmware() {
	time.Sleep(d.settleBefore)
	d.Disable()
	d.transport.Disable()
	d.log.Debug("Interrupt vectors moved to application section")
	time.Sleep(d.settleAfter)

	if err := d.persist(); err != nil {
		d.log.WithError(err).Error("Persisting program memory failed")
	}

	crc := firmware.CRC(d.sim.Memory.Bytes())
	d.mu.Lock()
	d.booted = true
	d.bootCRC = crc
	d.mu.Unlock()
	d.log.WithField("crc", crc).Infof("Application started (CRC %#04x)", crc)
}

// Booted reports whether the application has been entered, and the CRC of
// the program memory it was started from.
func (d *Device) Booted() (bool, uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.booted, d.bootCRC
}

// Violations lists flash controller misuse seen so far.
func (d *Device) Violations() []string {
	return d.sim.Violations()
}
