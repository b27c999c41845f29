// Package frame implements decoding of APE audio frames.
//
// A frame is an independently decodable unit. Decoding runs a strictly
// ordered pipeline over its byte window: range decoding of residuals, the
// adaptive filter cascade, the long-range predictor, and (for stereo) the
// channel decorrelation, each stage carrying its own state across every
// block of the frame and none across frames.
package frame

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/mewkiz/ape/internal/bits"
	"github.com/mewkiz/ape/meta"
)

// Sentinel errors reported while decoding a frame. Use errors.Is to test for
// them through wrapped context.
var (
	// ErrTruncatedFrame reports a frame byte window shorter than expected.
	ErrTruncatedFrame = errors.New("frame: truncated frame")
	// ErrCorruptBitstream reports a range decoder that ran out of window
	// before the frame's block count was reached.
	ErrCorruptBitstream = errors.New("frame: corrupt bitstream")
	// ErrCorruptFrame reports a frame inconsistent with the stream header.
	ErrCorruptFrame = errors.New("frame: corrupt frame")
)

// Frame flags mark special blocks. Most streams carry none.
const (
	// FlagLeftSilence and FlagRightSilence record encoder-side channel
	// silence. The decoder acts on them only in composition: a frame coded
	// as a single channel is silent when either bit is set, and a stereo
	// frame is silent only when both are. A lone bit on a stereo frame
	// changes nothing at decode time; both channel streams are still fully
	// coded and decoded.
	FlagLeftSilence  = 0x01
	FlagRightSilence = 0x02
	// FlagPseudoStereo marks a stereo frame coded as one channel, duplicated
	// on output.
	FlagPseudoStereo = 0x04

	flagStereoSilence = FlagLeftSilence | FlagRightSilence
	flagKnown         = FlagLeftSilence | FlagRightSilence | FlagPseudoStereo
)

// A Frame holds the decoded audio of one frame.
type Frame struct {
	// Frame number within the stream.
	Num int
	// Number of blocks decoded.
	Blocks int
	// CRC of the decoded audio as stored in the frame header.
	CRC uint32
	// Special-block flags stored in the frame header, if any.
	Flags uint32
	// BadCRC reports that the decoded audio does not match the stored CRC.
	// Decoding still completes; callers decide whether to trust the output.
	BadCRC bool
	// Samples, interleaved by block; one sample per block for mono streams,
	// left then right for stereo.
	Samples []int32
}

// A Decoder decodes the audio frames of one APE stream. Frames may be
// decoded in any order. A Decoder is not safe for concurrent use; to decode
// frames in parallel, give each goroutine its own Decoder.
type Decoder struct {
	info *meta.StreamInfo

	rc    rangeDecoder
	rice0 riceState
	rice1 riceState
	// Filter cascade stages, innermost first; one filter per channel.
	filters [][2]*nnFilter
	pred    predictor

	// Byte-swapped view of the current frame window.
	data []byte
	// Per-channel reconstruction buffers, reused across frames.
	decoded [2][]int32
}

// NewDecoder returns a decoder for streams with the given configuration.
func NewDecoder(info *meta.StreamInfo) *Decoder {
	d := &Decoder{info: info}
	for _, spec := range filterSpecs[info.CompressionLevel/1000-1] {
		d.filters = append(d.filters, [2]*nnFilter{newNNFilter(spec), newNNFilter(spec)})
	}
	d.decoded[0] = make([]int32, info.BlocksPerFrame)
	d.decoded[1] = make([]int32, info.BlocksPerFrame)
	return d
}

// reset clears all pipeline state; called at every frame boundary.
func (d *Decoder) reset() {
	d.rice0.init()
	d.rice1.init()
	for _, pair := range d.filters {
		pair[0].reset()
		pair[1].reset()
	}
	d.pred.reset()
}

// Decode decodes frame number num from its compressed byte window and
// returns the reconstructed samples, interleaved by block.
//
// The window spans whole 32-bit words as stored in the file; skip gives the
// frame's byte offset within its first word (0-3), and blocks the expected
// block count. Any trailing bytes beyond the last whole word are ignored.
func (d *Decoder) Decode(num int, win []byte, skip, blocks int) (f *Frame, err error) {
	if blocks <= 0 || blocks > int(d.info.BlocksPerFrame) {
		return nil, errors.Wrapf(ErrCorruptFrame, "frame.Decoder.Decode: frame %d: bad block count %d", num, blocks)
	}
	if skip < 0 || skip > 3 {
		return nil, errors.Wrapf(ErrCorruptFrame, "frame.Decoder.Decode: frame %d: bad word offset %d", num, skip)
	}

	// Re-view the window as big-endian 32-bit words; the copy keeps the
	// caller's buffer intact.
	d.data = append(d.data[:0], win[:len(win)&^3]...)
	bits.SwapWords(d.data)
	pos := skip

	// In-stream frame header: a CRC word whose top bit signals a flags word.
	if len(d.data) < pos+4 {
		return nil, errors.Wrapf(ErrTruncatedFrame, "frame.Decoder.Decode: frame %d: window of %d bytes", num, len(win))
	}
	f = &Frame{Num: num, Blocks: blocks}
	f.CRC = binary.BigEndian.Uint32(d.data[pos:])
	pos += 4
	if f.CRC&(1<<31) != 0 {
		f.CRC &^= 1 << 31
		if len(d.data) < pos+4 {
			return nil, errors.Wrapf(ErrTruncatedFrame, "frame.Decoder.Decode: frame %d: window of %d bytes", num, len(win))
		}
		f.Flags = binary.BigEndian.Uint32(d.data[pos:])
		pos += 4
	}
	if f.Flags&^uint32(flagKnown) != 0 {
		return nil, errors.Wrapf(ErrCorruptFrame, "frame.Decoder.Decode: frame %d: unknown frame flags %#08x", num, f.Flags)
	}

	d.reset()
	d.rc.init(d.data, pos)

	dec0 := d.decoded[0][:blocks]
	dec1 := d.decoded[1][:blocks]
	for i := range dec0 {
		dec0[i] = 0
		dec1[i] = 0
	}

	stereo := d.info.NChannels == 2
	if !stereo || f.Flags&FlagPseudoStereo != 0 {
		d.unpackMono(dec0, f.Flags)
		if stereo {
			copy(dec1, dec0)
		}
	} else {
		d.unpackStereo(dec0, dec1, f.Flags)
	}
	if d.rc.failed {
		return nil, errors.Wrapf(ErrCorruptBitstream, "frame.Decoder.Decode: frame %d: range decoder exhausted", num)
	}

	if stereo {
		f.Samples = make([]int32, 2*blocks)
		for i := range dec0 {
			f.Samples[2*i] = dec0[i]
			f.Samples[2*i+1] = dec1[i]
		}
	} else {
		f.Samples = make([]int32, blocks)
		copy(f.Samples, dec0)
	}

	f.BadCRC = pcmCRC(f.Samples, d.info.BitsPerSample)>>1 != f.CRC
	return f, nil
}

// unpackMono runs the pipeline for a frame coded as a single channel.
func (d *Decoder) unpackMono(dec0 []int32, flags uint32) {
	if flags&flagStereoSilence != 0 {
		// Either silence bit silences a single-channel frame; the
		// reconstruction buffer is already zeroed.
		return
	}
	d.entropyMono(dec0)
	d.applyFilters(dec0, nil)
	d.pred.decodeMono(dec0)
}

// unpackStereo runs the pipeline for a two-channel frame and undoes the
// channel decorrelation.
func (d *Decoder) unpackStereo(dec0, dec1 []int32, flags uint32) {
	if flags&flagStereoSilence == flagStereoSilence {
		// Only both silence bits together silence a stereo frame. A lone
		// bit leaves both coded channel streams in place, so decoding
		// proceeds normally below.
		return
	}
	d.entropyStereo(dec0, dec1)
	d.applyFilters(dec0, dec1)
	d.pred.decodeStereo(dec0, dec1)

	// Channel 0 carries the difference signal, channel 1 the mid signal.
	for i := range dec0 {
		left := dec1[i] - dec0[i]/2
		right := left + dec0[i]
		dec0[i], dec1[i] = left, right
	}
}

// pcmCRC computes the CRC-32 of the decoded audio as the encoder saw it: the
// frame's samples serialized to their original WAV form, 8-bit samples
// unsigned, wider samples little-endian. The stored CRC drops its low bit to
// make room for the flags marker, so callers compare against pcmCRC()>>1.
func pcmCRC(samples []int32, bps uint16) uint32 {
	buf := make([]byte, 0, len(samples)*int(bps)/8)
	switch bps {
	case 8:
		for _, v := range samples {
			buf = append(buf, byte(v+0x80))
		}
	case 16:
		for _, v := range samples {
			buf = append(buf, byte(v), byte(v>>8))
		}
	case 24:
		for _, v := range samples {
			buf = append(buf, byte(v), byte(v>>8), byte(v>>16))
		}
	}
	return crc32.ChecksumIEEE(buf)
}
