package flash

import (
	"fmt"
	"sync"
)

// SimSPM emulates a boot section self programming unit on top of a Memory.
// Operations issued while the unit is busy, while interrupts are enabled or
// outside of the application section are recorded as violations instead of
// being executed.
type SimSPM struct {
	mu sync.Mutex

	mem        *Memory
	irq        *IRQ
	pageSize   int
	buffer     []byte
	busyCycles int
	busy       int
	rwwBusy    bool
	violations []string
}

// NewSimSPM returns a unit writing pageSize byte pages to mem. Every erase or
// write keeps the unit busy for busyCycles calls to Busy.
func NewSimSPM(mem *Memory, irq *IRQ, pageSize, busyCycles int) *SimSPM {
	s := &SimSPM{
		mem:        mem,
		irq:        irq,
		pageSize:   pageSize,
		buffer:     make([]byte, pageSize),
		busyCycles: busyCycles,
	}
	s.clearBuffer()
	return s
}

func (s *SimSPM) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy > 0 {
		s.busy--
		return true
	}
	return false
}

func (s *SimSPM) PageErase(addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready("erase", addr) {
		return
	}
	if err := s.mem.ErasePage(s.pageBase(addr)); err != nil {
		s.violate("erase %#x: %v", addr, err)
		return
	}
	s.start()
}

func (s *SimSPM) PageFill(addr uint32, word uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready("fill", addr) {
		return
	}
	if addr%2 != 0 {
		s.violate("fill %#x: odd address", addr)
		return
	}
	i := int(addr) % s.pageSize
	s.buffer[i] = byte(word)
	s.buffer[i+1] = byte(word >> 8)
}

func (s *SimSPM) PageWrite(addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready("write", addr) {
		return
	}
	if err := s.mem.Program(s.pageBase(addr), s.buffer); err != nil {
		s.violate("write %#x: %v", addr, err)
		return
	}
	s.clearBuffer()
	s.start()
}

func (s *SimSPM) RWWEnable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready("rww enable", 0) {
		return
	}
	s.rwwBusy = false
}

// RWWEnabled reports whether the application section can be executed.
func (s *SimSPM) RWWEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.rwwBusy
}

// Violations lists every misuse of the unit seen so far.
func (s *SimSPM) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

func (s *SimSPM) ready(op string, addr uint32) bool {
	if s.busy > 0 {
		s.violate("%s %#x while busy", op, addr)
		return false
	}
	if s.irq != nil && s.irq.Enabled() {
		s.violate("%s %#x with interrupts enabled", op, addr)
		return false
	}
	return true
}

func (s *SimSPM) start() {
	s.busy = s.busyCycles
	s.rwwBusy = true
}

func (s *SimSPM) pageBase(addr uint32) uint32 {
	return addr - addr%uint32(s.pageSize)
}

func (s *SimSPM) clearBuffer() {
	for i := range s.buffer {
		s.buffer[i] = Erased
	}
}

func (s *SimSPM) violate(format string, args ...interface{}) {
	s.violations = append(s.violations, fmt.Sprintf(format, args...))
}
