package firmware

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mame82/cdcboot/protocol"
	"github.com/pkg/errors"
)

func TestCRC(t *testing.T) {
	// CRC-16/CCITT-FALSE check value
	if got := CRC([]byte("123456789")); got != 0x29b1 {
		t.Fatalf("CRC = %#04x, want 0x29b1", got)
	}
}

func TestChunkPadding(t *testing.T) {
	raw := bytes.Repeat([]byte{0x11}, protocol.ChunkSize+3)
	img, err := ParseBin(raw)
	if err != nil {
		t.Fatal(err)
	}
	if img.Chunks() != 2 {
		t.Fatalf("Chunks() = %d, want 2", img.Chunks())
	}
	if !bytes.Equal(img.Chunk(0), raw[:protocol.ChunkSize]) {
		t.Fatal("first chunk differs from input")
	}
	last := img.Chunk(1)
	if len(last) != protocol.ChunkSize {
		t.Fatalf("last chunk has %d bytes", len(last))
	}
	if !bytes.Equal(last[:3], []byte{0x11, 0x11, 0x11}) || last[3] != 0xff || last[protocol.ChunkSize-1] != 0xff {
		t.Fatalf("last chunk not padded with 0xff: % x", last[:8])
	}
	if img.Chunk(2) != nil || img.Chunk(-1) != nil {
		t.Fatal("out of range chunk returned data")
	}
	if len(img.Padded()) != 2*protocol.ChunkSize {
		t.Fatalf("Padded() has %d bytes", len(img.Padded()))
	}
	if !img.Fits(2) || img.Fits(1) {
		t.Fatal("Fits does not match the chunk count")
	}
	if img.CRC() != CRC(img.Padded()) {
		t.Fatal("image CRC is not taken over the padded image")
	}
}

func TestEmptyImage(t *testing.T) {
	if _, err := ParseBin(nil); err == nil {
		t.Fatal("empty image accepted")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{
			name: "simple",
			in: ":0400000001020304F2\n" +
				":00000001FF\n",
			want: []byte{1, 2, 3, 4},
		},
		{
			name: "gap is erased",
			in: ":0100000011EE\n" +
				":0100030022DA\n" +
				":00000001FF\n",
			want: []byte{0x11, 0xff, 0xff, 0x22},
		},
		{
			name: "extended linear address",
			in: ":020000040000FA\n" +
				":0200000055AAFF\n" +
				":0400000500000000F7\n" +
				":00000001FF\n",
			want: []byte{0x55, 0xaa},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseHex(strings.NewReader(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(img.Data, tt.want) {
				t.Fatalf("data = % x, want % x", img.Data, tt.want)
			}
		})
	}
}

func TestParseHexRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad checksum", ":0400000001020304F3\n:00000001FF\n"},
		{"missing colon", "0400000001020304F2\n:00000001FF\n"},
		{"bad length", ":0500000001020304F1\n:00000001FF\n"},
		{"no data", ":00000001FF\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHex(strings.NewReader(tt.in)); err == nil {
				t.Fatal("invalid hex file accepted")
			}
		})
	}
}

func TestParseHexTopOfAddressSpace(t *testing.T) {
	// base 0xffff0000 plus offset 0xffff runs past the 32 bit address space
	in := ":02000004FFFFFC\n" +
		":10FFFF00000102030405060708090A0B0C0D0E0F7A\n" +
		":00000001FF\n"

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("ParseHex panicked: %v", r)
		}
	}()
	if _, err := ParseHex(strings.NewReader(in)); err == nil {
		t.Fatal("image at the top of the address space accepted")
	}
}

func TestParseHexBeyondMaxImageSize(t *testing.T) {
	in := ":020000040010EA\n" +
		":0100000011EE\n" +
		":00000001FF\n"

	_, err := ParseHex(strings.NewReader(in))
	if errors.Cause(err) != ErrImageTooLarge {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}
}

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "firmware")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	bin := filepath.Join(dir, "app.bin")
	if err := ioutil.WriteFile(bin, []byte{1, 2, 3, 4}, 0644); err != nil {
		t.Fatal(err)
	}
	hex := filepath.Join(dir, "app.HEX")
	if err := ioutil.WriteFile(hex, []byte(":0400000001020304F2\n:00000001FF\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := Load(bin)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(hex)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatalf("binary % x and hex % x differ", a.Data, b.Data)
	}

	if _, err := Load(filepath.Join(dir, "missing.bin")); err == nil {
		t.Fatal("missing file loaded")
	}
}
