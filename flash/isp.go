package flash

import (
	"fmt"

	"github.com/mame82/cdcboot/protocol"
	log "github.com/sirupsen/logrus"
)

// Register is the offset of a flash memory controller register.
type Register uint32

const (
	ISPCTL  Register = 0x00
	ISPADDR Register = 0x04
	ISPDAT  Register = 0x08
	ISPCMD  Register = 0x0c
	ISPTRG  Register = 0x10
)

func (r Register) String() string {
	switch r {
	case ISPCTL:
		return "ISPCTL"
	case ISPADDR:
		return "ISPADDR"
	case ISPDAT:
		return "ISPDAT"
	case ISPCMD:
		return "ISPCMD"
	case ISPTRG:
		return "ISPTRG"
	}
	return fmt.Sprintf("Unknown register %#02x", uint32(r))
}

// ISPCTL bits
const (
	CtlISPEN uint32 = 1 << 0
	CtlBS    uint32 = 1 << 1
	CtlAPUEN uint32 = 1 << 3
	CtlISPFF uint32 = 1 << 6
)

// ISPTRG bits
const TrgISPGO uint32 = 1 << 0

// ISP commands
const (
	CmdProgram32 uint32 = 0x21
	CmdPageErase uint32 = 0x22
)

// Registers gives access to the flash memory controller register block.
type Registers interface {
	Load(r Register) uint32
	Store(r Register, v uint32)
}

// ISPProgrammer writes chunks through a command driven in-system programming
// engine: pages are erased with one command each, then the chunk is
// programmed one 32 bit word at a time. Every command is polled to completion
// and checked for the fail flag.
type ISPProgrammer struct {
	regs     Registers
	irq      Interrupts
	pageSize int
	size     int
}

// NewISPProgrammer returns a programmer for an application ROM of size bytes
// with pageSize byte erase pages.
func NewISPProgrammer(regs Registers, irq Interrupts, pageSize, size int) *ISPProgrammer {
	if pageSize <= 0 || protocol.ChunkSize%pageSize != 0 {
		panic(fmt.Sprintf("invalid ISP page size %d", pageSize))
	}
	return &ISPProgrammer{
		regs:     regs,
		irq:      irq,
		pageSize: pageSize,
		size:     size,
	}
}

func (p *ISPProgrammer) WriteFlash(buf []byte, offset uint32) bool {
	if !validChunk(buf, offset, p.size) {
		log.WithFields(log.Fields{"offset": fmt.Sprintf("%#x", offset), "len": len(buf)}).Error("Rejecting malformed flash write")
		return false
	}

	p.irq.Disable()
	defer p.irq.Enable()

	p.regs.Store(ISPCTL, p.regs.Load(ISPCTL)|CtlISPEN|CtlAPUEN)
	defer func() {
		p.regs.Store(ISPCTL, p.regs.Load(ISPCTL)&^(CtlISPEN|CtlAPUEN))
	}()

	for x := 0; x < protocol.ChunkSize; x += p.pageSize {
		if !p.exec(CmdPageErase, offset+uint32(x), 0) {
			return false
		}
	}

	for x := 0; x < protocol.ChunkSize; x += 4 {
		word := uint32(buf[x]) |
			uint32(buf[x+1])<<8 |
			uint32(buf[x+2])<<16 |
			uint32(buf[x+3])<<24
		if !p.exec(CmdProgram32, offset+uint32(x), word) {
			return false
		}
	}
	return true
}

// exec runs a single ISP command and waits for it to finish.
func (p *ISPProgrammer) exec(cmd, addr, data uint32) bool {
	p.regs.Store(ISPCMD, cmd)
	p.regs.Store(ISPADDR, addr)
	if cmd == CmdProgram32 {
		p.regs.Store(ISPDAT, data)
	}
	p.regs.Store(ISPTRG, TrgISPGO)
	for p.regs.Load(ISPTRG)&TrgISPGO != 0 {
	}

	if p.regs.Load(ISPCTL)&CtlISPFF != 0 {
		// write one to clear
		p.regs.Store(ISPCTL, p.regs.Load(ISPCTL)|CtlISPFF)
		log.WithFields(log.Fields{"cmd": fmt.Sprintf("%#02x", cmd), "addr": fmt.Sprintf("%#x", addr)}).Warn("ISP fail flag set")
		return false
	}
	return true
}
