package meta

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// A SeekTable maps each frame to its byte offset. Offsets are rebased to
// absolute file positions by Parse.
type SeekTable struct {
	// One entry per frame.
	Offsets []int64
}

// NewSeekTable parses and returns a new seek table record of the given byte
// length. Frames start on 32-bit word boundaries of the stream; the low two
// bits of an entry locate the frame within its first word.
func NewSeekTable(r io.Reader, length uint32) (table *SeekTable, err error) {
	n := int(length / 4)
	table = &SeekTable{Offsets: make([]int64, n)}
	raw := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, errors.Wrap(ErrInvalidHeader, "meta.NewSeekTable: truncated seek table")
	}
	for i, off := range raw {
		table.Offsets[i] = int64(off)
		if i > 0 && table.Offsets[i] < table.Offsets[i-1] {
			return nil, errors.Wrapf(ErrInvalidHeader, "meta.NewSeekTable: seek table not monotonic at frame %d", i)
		}
	}
	// Consume the remainder when the record length is not a whole number of
	// entries.
	if rem := int64(length % 4); rem != 0 {
		if err := discard(r, rem); err != nil {
			return nil, err
		}
	}
	return table, nil
}
