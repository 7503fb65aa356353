package flash

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestMemoryStartsErased(t *testing.T) {
	m := NewMemory(2048, 512)
	for i, b := range m.Bytes() {
		if b != Erased {
			t.Fatalf("byte %d = %#02x", i, b)
		}
	}
}

func TestMemoryProgramOnlyClearsBits(t *testing.T) {
	m := NewMemory(1024, 256)

	if err := m.Program(0x10, []byte{0x0f, 0xf0}); err != nil {
		t.Fatal(err)
	}
	if err := m.Program(0x10, []byte{0xf1, 0xff}); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Read(0x10, 2)
	if !bytes.Equal(got, []byte{0x01, 0xf0}) {
		t.Fatalf("got % x", got)
	}

	if err := m.ErasePage(0); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Read(0x10, 2)
	if !bytes.Equal(got, []byte{0xff, 0xff}) {
		t.Fatalf("after erase % x", got)
	}
}

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(1024, 256)

	tests := []struct {
		name string
		err  error
		fn   func() error
	}{
		{"erase unaligned", ErrAlignment, func() error { return m.ErasePage(0x80) }},
		{"erase past end", ErrOutOfRange, func() error { return m.ErasePage(1024) }},
		{"program past end", ErrOutOfRange, func() error { return m.Program(1020, make([]byte, 8)) }},
		{"read past end", ErrOutOfRange, func() error { _, err := m.Read(1000, 100); return err }},
	}
	for _, tt := range tests {
		if err := tt.fn(); errors.Cause(err) != tt.err {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.err)
		}
	}
}

func TestMemoryLoadSave(t *testing.T) {
	dir, err := ioutil.TempDir("", "flash")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "flash.bin")

	m := NewMemory(1024, 256)
	if err := m.Load(path); err != nil {
		t.Fatalf("loading missing file: %v", err)
	}
	m.Program(0, []byte{1, 2, 3})
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	if err := ioutil.WriteFile(path, []byte{9, 8}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(path); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Read(0, 4)
	if !bytes.Equal(got, []byte{9, 8, 0xff, 0xff}) {
		t.Fatalf("got % x", got)
	}

	if err := ioutil.WriteFile(path, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(path); err == nil {
		t.Fatal("expected error for oversized backing file")
	}
}
