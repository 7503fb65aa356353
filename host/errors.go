package host

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCapacity is returned when the device refuses another chunk because
	// its application section is full.
	ErrCapacity  = errors.New("device has no room for another chunk")
	ErrCancelled = errors.New("write session cancelled")
	ErrTimeout   = errors.New("timeout waiting for device reply")
)

// ReplyError is an unexpected answer to a protocol step.
type ReplyError struct {
	Step string
	Got  byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: unexpected reply %#02x", e.Step, e.Got)
}

// ChunkError reports a chunk the device failed to commit to flash. The write
// session on the device is over.
type ChunkError struct {
	Index int
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: flash write failed", e.Index)
}
