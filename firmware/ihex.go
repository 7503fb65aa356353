package firmware

import (
	"io"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// MaxImageSize bounds the address space an Intel HEX file may cover.
const MaxImageSize = 1 << 20

var ErrImageTooLarge = errors.New("image exceeds program memory address space")

// ParseHex reads an Intel HEX file. Gaps between records are filled with
// erased bytes.
func ParseHex(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, errors.Wrap(err, "parse intel hex")
	}

	var size uint64
	segments := mem.GetDataSegments()
	for _, seg := range segments {
		end := uint64(seg.Address) + uint64(len(seg.Data))
		if end > MaxImageSize {
			return nil, errors.Wrapf(ErrImageTooLarge, "segment %#x+%#x", seg.Address, len(seg.Data))
		}
		if end > size {
			size = end
		}
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = 0xff
	}
	for _, seg := range segments {
		copy(data[seg.Address:], seg.Data)
	}
	return ParseBin(data)
}
