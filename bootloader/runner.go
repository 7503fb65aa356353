package bootloader

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Runner is the bootloader main loop. It wires an Engine to a Hardware
// surface.
type Runner struct {
	hw     Hardware
	engine *Engine
}

// NewRunner builds the engine for hw. capacity is the number of 1 KB chunks
// of the target.
func NewRunner(hw Hardware, capacity int, opts ...EngineOption) *Runner {
	opts = append([]EngineOption{WithIndicator(hw.LED())}, opts...)
	return &Runner{
		hw:     hw,
		engine: NewEngine(hw, capacity, opts...),
	}
}

func (r *Runner) Engine() *Engine {
	return r.engine
}

// Run brings up the hardware and processes host bytes until the host asks
// for the hand-off to the application or ctx is done. After a hand-off it
// returns nil.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.boot(); err != nil {
		return err
	}

	t := r.hw.Transport()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if b, ok := t.Poll(); ok {
			if r.dispatch(t, b) {
				return nil
			}
		}

		t.Service()
	}
}

func (r *Runner) boot() error {
	r.hw.Disable()

	if err := r.hw.Init(); err != nil {
		return errors.Wrap(err, "hardware init")
	}

	led := r.hw.LED()
	led.Init()
	led.Off()

	if err := r.hw.Transport().Init(); err != nil {
		return errors.Wrap(err, "transport init")
	}
	r.hw.Enable()

	log.WithField("capacity", r.engine.Capacity()).Info("Bootloader running")
	return nil
}

// dispatch hands b to the engine and returns true once control has been
// handed to the application.
func (r *Runner) dispatch(t Transport, b byte) bool {
	resp := r.engine.HandleByte(b)
	for _, out := range resp.Replies {
		t.Send(out)
	}
	if !resp.HandOff {
		return false
	}

	// The reply has to reach the host before the transport goes away,
	// bringing it back up is the application's job.
	t.Flush()
	r.hw.EnterMainFirmware()
	return true
}
