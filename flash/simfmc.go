package flash

import (
	"fmt"
	"sync"
)

// SimFMC emulates the register block of a command driven flash memory
// controller on top of a Memory. A triggered command stays pending for
// busyCycles reads of ISPTRG before it executes.
type SimFMC struct {
	mu sync.Mutex

	mem        *Memory
	irq        *IRQ
	busyCycles int

	ctl, addr, dat, cmd, trg uint32
	busy                     int

	// FailOn, if set, makes a command fail as if the hardware reported an
	// error.
	FailOn func(cmd, addr uint32) bool

	violations []string
}

func NewSimFMC(mem *Memory, irq *IRQ, busyCycles int) *SimFMC {
	return &SimFMC{
		mem:        mem,
		irq:        irq,
		busyCycles: busyCycles,
	}
}

func (f *SimFMC) Load(r Register) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r {
	case ISPCTL:
		return f.ctl
	case ISPADDR:
		return f.addr
	case ISPDAT:
		return f.dat
	case ISPCMD:
		return f.cmd
	case ISPTRG:
		if f.trg&TrgISPGO != 0 {
			if f.busy > 0 {
				f.busy--
			} else {
				f.execute()
				f.trg &^= TrgISPGO
			}
		}
		return f.trg
	}
	f.violate("read of %v", r)
	return 0
}

func (f *SimFMC) Store(r Register, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r != ISPTRG && f.trg&TrgISPGO != 0 {
		f.violate("write to %v while a command is pending", r)
		return
	}

	switch r {
	case ISPCTL:
		// the fail flag is write one to clear
		ff := f.ctl & CtlISPFF
		if v&CtlISPFF != 0 {
			ff = 0
		}
		f.ctl = v&^CtlISPFF | ff
	case ISPADDR:
		f.addr = v
	case ISPDAT:
		f.dat = v
	case ISPCMD:
		f.cmd = v
	case ISPTRG:
		if v&TrgISPGO == 0 {
			return
		}
		if f.trg&TrgISPGO != 0 {
			f.violate("trigger while busy")
			return
		}
		f.trg |= TrgISPGO
		f.busy = f.busyCycles
	default:
		f.violate("write of %v", r)
	}
}

// Violations lists every misuse of the controller seen so far.
func (f *SimFMC) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

func (f *SimFMC) execute() {
	if f.irq != nil && f.irq.Enabled() {
		f.violate("command %#02x at %#x with interrupts enabled", f.cmd, f.addr)
	}
	if err := f.run(); err != nil {
		f.ctl |= CtlISPFF
	}
}

func (f *SimFMC) run() error {
	if f.ctl&CtlISPEN == 0 {
		return fmt.Errorf("ISP disabled")
	}
	if f.FailOn != nil && f.FailOn(f.cmd, f.addr) {
		return fmt.Errorf("injected failure")
	}

	switch f.cmd {
	case CmdPageErase:
		if f.ctl&CtlAPUEN == 0 {
			return fmt.Errorf("APROM update disabled")
		}
		return f.mem.ErasePage(f.addr)
	case CmdProgram32:
		if f.ctl&CtlAPUEN == 0 {
			return fmt.Errorf("APROM update disabled")
		}
		if f.addr%4 != 0 {
			return ErrAlignment
		}
		word := []byte{byte(f.dat), byte(f.dat >> 8), byte(f.dat >> 16), byte(f.dat >> 24)}
		return f.mem.Program(f.addr, word)
	}
	return fmt.Errorf("unknown ISP command %#02x", f.cmd)
}

func (f *SimFMC) violate(format string, args ...interface{}) {
	f.violations = append(f.violations, fmt.Sprintf(format, args...))
}
