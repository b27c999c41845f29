// Package meta implements access to the fixed-layout records at the front of
// a Monkey's Audio (APE) file: the descriptor, the audio header and the seek
// table.
//
// The basic structure of an APE file is:
//   - optional junk (e.g. an ID3v2 tag).
//   - the four byte string "MAC ".
//   - the DESCRIPTOR record.
//   - the HEADER record.
//   - the SEEK TABLE record.
//   - the stored WAV header, unless the stream opts out.
//   - one or more audio frames.
//   - optional terminating data (e.g. an APE tag).
package meta

import (
	"io"

	"github.com/pkg/errors"
)

// Sentinel errors reported while parsing the file front. Use errors.Is to
// test for them through wrapped context.
var (
	// ErrInvalidHeader reports a missing magic, an inconsistent field or a
	// truncated record.
	ErrInvalidHeader = errors.New("meta: invalid header")
	// ErrUnsupportedVersion reports a format version below 3990.
	ErrUnsupportedVersion = errors.New("meta: unsupported format version")
	// ErrUnsupportedConfig reports a channel count, bit depth or compression
	// level the decoder does not handle.
	ErrUnsupportedConfig = errors.New("meta: unsupported configuration")
)

// Signature is present at the beginning of each APE file, after any junk.
const Signature = "MAC "

// StreamInfo contains the stream-wide fields of an APE file consumed by the
// frame decoder. It is assembled from the descriptor and header records and
// immutable for the lifetime of the stream.
type StreamInfo struct {
	// File format version times 1000 (e.g. 3990 for version 3.99).
	FormatVersion uint16
	// Compression level; one of the Compression* constants.
	CompressionLevel uint16
	// Global format flags.
	FormatFlags uint16
	// Number of blocks in every frame but the last. A block is one sample
	// per channel.
	BlocksPerFrame uint32
	// Number of blocks in the last frame.
	FinalFrameBlocks uint32
	// Total number of frames.
	TotalFrames uint32
	// Sample size in bits-per-sample; one of 8, 16 and 24.
	BitsPerSample uint16
	// Number of channels; 1 or 2.
	NChannels uint16
	// Sample rate in Hz.
	SampleRate uint32
	// Total number of blocks in the stream; derived from the frame counts.
	NBlocks uint64
	// MD5 checksum of the decoded audio data, as recorded by the encoder.
	MD5sum [16]byte
	// Absolute byte offset of the first audio frame.
	DataOffset int64
}

// Parse reads the junk, descriptor, header and seek table records from r,
// leaving r positioned at the first audio frame. The returned seek table
// holds absolute frame byte offsets.
func Parse(r io.Reader) (info *StreamInfo, table *SeekTable, err error) {
	junk, err := skipJunk(r)
	if err != nil {
		return nil, nil, err
	}
	desc, err := NewDescriptor(r)
	if err != nil {
		return nil, nil, err
	}
	if desc.Version < 3990 {
		return nil, nil, errors.Wrapf(ErrUnsupportedVersion, "meta.Parse: format version %d", desc.Version)
	}
	// The descriptor record may be longer than the fields we parse.
	if desc.DescriptorLength > descriptorSize {
		if err := discard(r, int64(desc.DescriptorLength-descriptorSize)); err != nil {
			return nil, nil, err
		}
	}
	hdr, err := NewHeader(io.LimitReader(r, int64(desc.HeaderLength)))
	if err != nil {
		return nil, nil, err
	}
	// The header record may be longer than the fields we parse.
	if desc.HeaderLength > headerSize {
		if err := discard(r, int64(desc.HeaderLength-headerSize)); err != nil {
			return nil, nil, err
		}
	}
	if err := validate(hdr); err != nil {
		return nil, nil, err
	}
	table, err = NewSeekTable(io.LimitReader(r, int64(desc.SeekTableLength)), desc.SeekTableLength)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(table.Offsets)) < uint64(hdr.TotalFrames) {
		return nil, nil, errors.Wrapf(ErrInvalidHeader, "meta.Parse: seek table has %d entries; stream has %d frames", len(table.Offsets), hdr.TotalFrames)
	}
	table.Offsets = table.Offsets[:hdr.TotalFrames]
	// Skip the stored WAV header to land on the first frame.
	if hdr.FormatFlags&FlagCreateWAVHeader == 0 {
		if err := discard(r, int64(desc.WAVHeaderLength)); err != nil {
			return nil, nil, err
		}
	}

	info = &StreamInfo{
		FormatVersion:    desc.Version,
		CompressionLevel: hdr.CompressionLevel,
		FormatFlags:      hdr.FormatFlags,
		BlocksPerFrame:   hdr.BlocksPerFrame,
		FinalFrameBlocks: hdr.FinalFrameBlocks,
		TotalFrames:      hdr.TotalFrames,
		BitsPerSample:    hdr.BitsPerSample,
		NChannels:        hdr.NChannels,
		SampleRate:       hdr.SampleRate,
		MD5sum:           desc.MD5sum,
	}
	if hdr.TotalFrames > 0 {
		info.NBlocks = uint64(hdr.TotalFrames-1)*uint64(hdr.BlocksPerFrame) + uint64(hdr.FinalFrameBlocks)
	}
	wavLen := int64(desc.WAVHeaderLength)
	if hdr.FormatFlags&FlagCreateWAVHeader != 0 {
		wavLen = 0
	}
	info.DataOffset = junk + int64(desc.DescriptorLength) + int64(desc.HeaderLength) + int64(desc.SeekTableLength) + wavLen

	// Seek table entries are relative to the start of the APE data; rebase
	// them past the junk.
	for i := range table.Offsets {
		table.Offsets[i] += junk
	}
	return info, table, nil
}

// validate rejects stream configurations outside the supported envelope.
func validate(hdr *Header) error {
	switch hdr.NChannels {
	case 1, 2:
	default:
		return errors.Wrapf(ErrUnsupportedConfig, "meta.Parse: %d channels", hdr.NChannels)
	}
	switch hdr.BitsPerSample {
	case 8, 16, 24:
	default:
		return errors.Wrapf(ErrUnsupportedConfig, "meta.Parse: %d bits-per-sample", hdr.BitsPerSample)
	}
	switch hdr.CompressionLevel {
	case CompressionFast, CompressionNormal, CompressionHigh, CompressionExtraHigh, CompressionInsane:
	default:
		return errors.Wrapf(ErrUnsupportedConfig, "meta.Parse: compression level %d", hdr.CompressionLevel)
	}
	if hdr.BlocksPerFrame == 0 {
		return errors.Wrap(ErrInvalidHeader, "meta.Parse: zero blocks per frame")
	}
	if hdr.FinalFrameBlocks > hdr.BlocksPerFrame {
		return errors.Wrapf(ErrInvalidHeader, "meta.Parse: final frame has %d blocks; frames have %d", hdr.FinalFrameBlocks, hdr.BlocksPerFrame)
	}
	if hdr.TotalFrames > 0 && hdr.FinalFrameBlocks == 0 {
		return errors.Wrap(ErrInvalidHeader, "meta.Parse: empty final frame")
	}
	return nil
}

// skipJunk consumes any junk preceding the APE signature and returns the
// number of bytes skipped. An ID3v2 tag is the only junk recognized.
func skipJunk(r io.Reader) (n int64, err error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	if string(sig[:]) == Signature {
		return 0, nil
	}
	if string(sig[:3]) != "ID3" {
		return 0, errors.Wrapf(ErrInvalidHeader, "meta.Parse: invalid signature; expected %q, got %q", Signature, sig[:])
	}
	// ID3v2 header: "ID3", version (2 bytes), flags (1 byte), syncsafe size
	// (4 bytes). The size excludes the 10-byte header itself.
	var rest [6]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	flags := rest[1]
	size := int64(rest[2]&0x7F)<<21 | int64(rest[3]&0x7F)<<14 | int64(rest[4]&0x7F)<<7 | int64(rest[5]&0x7F)
	if flags&0x10 != 0 {
		// Footer present.
		size += 10
	}
	if err := discard(r, size); err != nil {
		return 0, err
	}
	n = 10 + size
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	if string(sig[:]) != Signature {
		return 0, errors.Wrapf(ErrInvalidHeader, "meta.Parse: invalid signature after ID3v2 tag; expected %q, got %q", Signature, sig[:])
	}
	return n, nil
}

// discard consumes exactly n bytes from r.
func discard(r io.Reader, n int64) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidHeader, "meta: negative record length %d", n)
	}
	m, err := io.CopyN(io.Discard, r, n)
	if err != nil {
		if err == io.EOF && m < n {
			return errors.Wrapf(ErrInvalidHeader, "meta: record truncated; expected %d bytes, got %d", n, m)
		}
		return errors.WithStack(err)
	}
	return nil
}
