package flash

import (
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrOutOfRange = errors.New("address range outside of program memory")
	ErrAlignment  = errors.New("address not aligned")
)

// Erased is the value of an erased flash cell.
const Erased = 0xff

// Memory models NOR program memory: erasing sets whole pages to 0xff,
// programming can only clear bits.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	pageSize int
}

// NewMemory returns an erased memory of size bytes with the given erase page
// size.
func NewMemory(size, pageSize int) *Memory {
	if pageSize <= 0 || size%pageSize != 0 {
		panic(fmt.Sprintf("memory size %d is not a multiple of page size %d", size, pageSize))
	}
	m := &Memory{
		data:     make([]byte, size),
		pageSize: pageSize,
	}
	for i := range m.data {
		m.data[i] = Erased
	}
	return m
}

func (m *Memory) Size() int {
	return len(m.data)
}

func (m *Memory) PageSize() int {
	return m.pageSize
}

// ErasePage erases the page starting at addr.
func (m *Memory) ErasePage(addr uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr%uint32(m.pageSize) != 0 {
		return errors.Wrapf(ErrAlignment, "erase %#x", addr)
	}
	if err := m.checkRange(addr, m.pageSize); err != nil {
		return err
	}
	page := m.data[addr : addr+uint32(m.pageSize)]
	for i := range page {
		page[i] = Erased
	}
	return nil
}

// Program ANDs data into memory at addr.
func (m *Memory) Program(addr uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRange(addr, len(data)); err != nil {
		return err
	}
	for i, b := range data {
		m.data[int(addr)+i] &= b
	}
	return nil
}

// Read copies length bytes starting at addr.
func (m *Memory) Read(addr uint32, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRange(addr, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[addr:])
	return out, nil
}

// Bytes returns a copy of the whole memory.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func (m *Memory) checkRange(addr uint32, length int) error {
	if length < 0 || uint64(addr)+uint64(length) > uint64(len(m.data)) {
		return errors.Wrapf(ErrOutOfRange, "%#x+%#x (size %#x)", addr, length, len(m.data))
	}
	return nil
}

// Load fills the memory from a backing file. A missing file leaves the memory
// erased. Shorter files are padded with erased cells.
func (m *Memory) Load(path string) error {
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read flash backing file")
	}
	if len(raw) > len(m.data) {
		return errors.Errorf("flash backing file %s has %d bytes, memory only %d", path, len(raw), len(m.data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data, raw)
	for i := len(raw); i < len(m.data); i++ {
		m.data[i] = Erased
	}
	return nil
}

// Save writes the memory content to a backing file.
func (m *Memory) Save(path string) error {
	if err := ioutil.WriteFile(path, m.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "write flash backing file")
	}
	return nil
}
