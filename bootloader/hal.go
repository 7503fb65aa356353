package bootloader

// FlashWriter commits one chunk to program memory. buf is always exactly
// protocol.ChunkSize bytes and offset is chunk aligned. Implementations keep
// interrupts disabled for the whole operation and never report a partial
// commit as success.
type FlashWriter interface {
	WriteFlash(buf []byte, offset uint32) bool
}

// Interrupts controls the global interrupt enable of the target.
type Interrupts interface {
	Disable()
	Enable()
}

// Indicator is the status LED. It is purely observational.
type Indicator interface {
	Init()
	On()
	Off()
	Toggle()
}

// Transport is the virtual serial channel to the host.
type Transport interface {
	Init() error
	// Poll returns the next received byte, ok is false if nothing is
	// available right now.
	Poll() (b byte, ok bool)
	Send(b byte)
	Flush()
	// Service runs the periodic transport housekeeping. It has to be called
	// on every loop iteration.
	Service()
	Disable()
}

// Hardware is the narrow surface the bootloader needs from a target.
type Hardware interface {
	Interrupts
	FlashWriter

	Init() error
	LED() Indicator
	Transport() Transport

	// EnterMainFirmware hands control to the application image. On real
	// hardware it never returns.
	EnterMainFirmware()
}
