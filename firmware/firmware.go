package firmware

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/mame82/cdcboot/protocol"
	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC is the CRC-16/CCITT-FALSE of data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// Image is an application image, starting at program memory address 0.
type Image struct {
	Data []byte
}

// Load reads an image from disk. Files ending in .hex, .ihx or .ihex are
// parsed as Intel HEX, everything else is taken as raw binary.
func Load(path string) (*Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihx", ".ihex":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open firmware file")
		}
		defer f.Close()
		img, err := ParseHex(f)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		return img, nil
	}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read firmware file")
	}
	return ParseBin(raw)
}

// ParseBin takes raw as the image content.
func ParseBin(raw []byte) (*Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("firmware image is empty")
	}
	return &Image{Data: append([]byte(nil), raw...)}, nil
}

func (img *Image) Size() int {
	return len(img.Data)
}

// Chunks is the number of 1 KB chunks needed to transfer the image.
func (img *Image) Chunks() int {
	return (len(img.Data) + protocol.ChunkSize - 1) / protocol.ChunkSize
}

// Chunk returns chunk i, the last one padded with erased bytes.
func (img *Image) Chunk(i int) []byte {
	start := i * protocol.ChunkSize
	if i < 0 || start >= len(img.Data) {
		return nil
	}
	end := start + protocol.ChunkSize
	if end <= len(img.Data) {
		return img.Data[start:end]
	}
	chunk := bytes.Repeat([]byte{0xff}, protocol.ChunkSize)
	copy(chunk, img.Data[start:])
	return chunk
}

// Padded returns the image as it ends up in program memory, padded to a
// whole number of chunks.
func (img *Image) Padded() []byte {
	out := make([]byte, 0, img.Chunks()*protocol.ChunkSize)
	for i := 0; i < img.Chunks(); i++ {
		out = append(out, img.Chunk(i)...)
	}
	return out
}

// CRC of the padded image, comparable with a CRC over the same range of a
// flash dump.
func (img *Image) CRC() uint16 {
	return CRC(img.Padded())
}

// Fits reports whether the image fits into capacity chunks.
func (img *Image) Fits(capacity int) bool {
	return img.Chunks() <= capacity
}

func (img *Image) String() string {
	return fmt.Sprintf("Size %#x (%d bytes) chunks: %d CRC %#04x", img.Size(), img.Size(), img.Chunks(), img.CRC())
}
