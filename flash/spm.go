package flash

import (
	"fmt"

	"github.com/mame82/cdcboot/protocol"
	log "github.com/sirupsen/logrus"
)

// SPM is the self programming unit of a boot loader section: a page sized
// temporary buffer filled one 16 bit word at a time and committed to a
// previously erased page.
type SPM interface {
	// Busy reports an erase/write (or EEPROM access) still in progress.
	Busy() bool
	PageErase(addr uint32)
	PageFill(addr uint32, word uint16)
	PageWrite(addr uint32)
	// RWWEnable makes the application section readable again after it was
	// erased or written.
	RWWEnable()
}

// PageProgrammer writes chunks on small fixed page hardware. Every chunk is
// split into physical pages which are erased, filled and written in turn.
type PageProgrammer struct {
	spm      SPM
	irq      Interrupts
	pageSize int
	size     int
}

// NewPageProgrammer returns a programmer for an application section of size
// bytes made of pageSize byte pages.
func NewPageProgrammer(spm SPM, irq Interrupts, pageSize, size int) *PageProgrammer {
	if pageSize <= 0 || pageSize%2 != 0 || protocol.ChunkSize%pageSize != 0 {
		panic(fmt.Sprintf("invalid SPM page size %d", pageSize))
	}
	return &PageProgrammer{
		spm:      spm,
		irq:      irq,
		pageSize: pageSize,
		size:     size,
	}
}

func (p *PageProgrammer) WriteFlash(buf []byte, offset uint32) bool {
	if !validChunk(buf, offset, p.size) {
		log.WithFields(log.Fields{"offset": fmt.Sprintf("%#x", offset), "len": len(buf)}).Error("Rejecting malformed flash write")
		return false
	}

	p.irq.Disable()
	defer p.irq.Enable()

	for page := 0; page < protocol.ChunkSize/p.pageSize; page++ {
		addr := offset + uint32(page*p.pageSize)
		data := buf[page*p.pageSize : (page+1)*p.pageSize]

		p.wait()
		p.spm.PageErase(addr)

		for y := 0; y < p.pageSize; y += 2 {
			word := uint16(data[y]) | uint16(data[y+1])<<8
			p.wait()
			p.spm.PageFill(addr+uint32(y), word)
		}

		p.wait()
		p.spm.PageWrite(addr)
	}

	// the next thing to run might be the code we just wrote
	p.wait()
	p.spm.RWWEnable()
	return true
}

func (p *PageProgrammer) wait() {
	for p.spm.Busy() {
	}
}
