package cmd

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestParseUSBID(t *testing.T) {
	tests := []struct {
		in       string
		vid, pid uint16
		ok       bool
	}{
		{"16d0:0e6e", 0x16d0, 0x0e6e, true},
		{"03EB:2FF9", 0x03eb, 0x2ff9, true},
		{"16d0", 0, 0, false},
		{"16d0:0e6e:1", 0, 0, false},
		{"xyz:0001", 0, 0, false},
		{"10000:0001", 0, 0, false},
		{"0000:0001", 0, 0, false},
	}
	for _, tt := range tests {
		vid, pid, err := parseUSBID(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("parseUSBID(%q) err = %v", tt.in, err)
			continue
		}
		if vid != tt.vid || pid != tt.pid {
			t.Errorf("parseUSBID(%q) = %04x:%04x", tt.in, vid, pid)
		}
	}
}

func TestDumpFlashBounds(t *testing.T) {
	dir, err := ioutil.TempDir("", "dump")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "flash.bin")
	if err := ioutil.WriteFile(path, make([]byte, 64), 0644); err != nil {
		t.Fatal(err)
	}

	if err := DumpFlash(path, 16, 8); err != nil {
		t.Fatal(err)
	}
	if err := DumpFlash(path, 65, 0); err == nil {
		t.Fatal("offset past the end accepted")
	}
	if err := DumpFlash(filepath.Join(dir, "missing.bin"), 0, 0); err == nil {
		t.Fatal("missing file accepted")
	}
}
