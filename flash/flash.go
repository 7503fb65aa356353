// Package flash contains the chunk programming algorithms for the supported
// program memory hardware, together with simulated controllers and a NOR
// memory model they can run against.
package flash

import (
	"sync"

	"github.com/mame82/cdcboot/protocol"
)

// Interrupts is the global interrupt enable the programmers hold off while
// the flash controller is busy.
type Interrupts interface {
	Disable()
	Enable()
}

// IRQ is a plain interrupt enable flag, used by the simulated targets.
type IRQ struct {
	mu      sync.Mutex
	enabled bool
}

func (i *IRQ) Disable() {
	i.mu.Lock()
	i.enabled = false
	i.mu.Unlock()
}

func (i *IRQ) Enable() {
	i.mu.Lock()
	i.enabled = true
	i.mu.Unlock()
}

func (i *IRQ) Enabled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.enabled
}

// validChunk checks the shape of a WriteFlash request against a program
// memory of size bytes.
func validChunk(buf []byte, offset uint32, size int) bool {
	if len(buf) != protocol.ChunkSize {
		return false
	}
	if offset%protocol.ChunkSize != 0 {
		return false
	}
	return uint64(offset)+protocol.ChunkSize <= uint64(size)
}

// Unsupported is the writer of targets without program memory support. Every
// write fails.
type Unsupported struct{}

func (Unsupported) WriteFlash([]byte, uint32) bool {
	return false
}
