package meta

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// headerSize is the on-disk size of the header record.
const headerSize = 24

// Compression levels. The level selects the filter cascade topology of the
// frame decoder.
const (
	CompressionFast      = 1000
	CompressionNormal    = 2000
	CompressionHigh      = 3000
	CompressionExtraHigh = 4000
	CompressionInsane    = 5000
)

// Global format flags.
const (
	// Flag8Bit marks an 8 bits-per-sample stream.
	Flag8Bit = 1 << iota
	// FlagCRC marks a stream with a legacy CRC32 trailer.
	FlagCRC
	// FlagHasPeakLevel marks a stream that stores its peak level.
	FlagHasPeakLevel
	// Flag24Bit marks a 24 bits-per-sample stream.
	Flag24Bit
	// FlagHasSeekElements marks a stream that stores the seek element count.
	FlagHasSeekElements
	// FlagCreateWAVHeader marks a stream without a stored WAV header; the
	// decoder synthesizes one on extraction.
	FlagCreateWAVHeader
)

// A Header is the second record of an APE file, holding the stream
// configuration the frame decoder needs.
//
// Header format (pseudo code):
//
//	type HEADER struct {
//	   compression_level  uint16
//	   format_flags       uint16
//	   blocks_per_frame   uint32
//	   final_frame_blocks uint32
//	   total_frames       uint32
//	   bits_per_sample    uint16
//	   channels           uint16
//	   sample_rate        uint32
//	}
//
// All integer fields are little-endian.
type Header struct {
	// Compression level; one of the Compression* constants.
	CompressionLevel uint16
	// Global format flags; see the Flag* constants.
	FormatFlags uint16
	// Number of blocks in every frame but the last.
	BlocksPerFrame uint32
	// Number of blocks in the last frame.
	FinalFrameBlocks uint32
	// Total number of frames.
	TotalFrames uint32
	// Sample size in bits-per-sample.
	BitsPerSample uint16
	// Number of channels.
	NChannels uint16
	// Sample rate in Hz.
	SampleRate uint32
}

// NewHeader parses and returns a new header record.
func NewHeader(r io.Reader) (hdr *Header, err error) {
	hdr = new(Header)
	if err := binary.Read(r, binary.LittleEndian, hdr); err != nil {
		return nil, errors.Wrap(ErrInvalidHeader, "meta.NewHeader: truncated header")
	}
	return hdr, nil
}
