package meta

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// descriptorSize is the on-disk size of the descriptor record, including the
// four byte signature.
const descriptorSize = 52

// A Descriptor is the first record of an APE file. It locates the remaining
// records and carries the MD5 checksum of the decoded audio data.
//
// Descriptor format (pseudo code):
//
//	type DESCRIPTOR struct {
//	   id                  [4]byte // "MAC "
//	   version             uint16  // version number * 1000
//	   _                   uint16  // alignment padding
//	   descriptor_length   uint32  // allows later expansion of this record
//	   header_length       uint32
//	   seektable_length    uint32
//	   wavheader_length    uint32
//	   audiodata_length    uint32
//	   audiodata_length_hi uint32
//	   terminating_length  uint32
//	   md5                 [16]byte
//	}
//
// All integer fields are little-endian.
type Descriptor struct {
	// File format version times 1000.
	Version uint16
	// Length of the descriptor record, including the signature.
	DescriptorLength uint32
	// Length of the header record.
	HeaderLength uint32
	// Length of the seek table record.
	SeekTableLength uint32
	// Length of the stored WAV header.
	WAVHeaderLength uint32
	// Length of the audio frame data; low and high words.
	AudioDataLength     uint32
	AudioDataLengthHigh uint32
	// Length of the terminating data after the audio frames.
	TerminatingDataLength uint32
	// MD5 checksum of the decoded audio data.
	MD5sum [16]byte
}

// NewDescriptor parses and returns a new descriptor record. The four byte
// signature has already been consumed by the caller.
func NewDescriptor(r io.Reader) (desc *Descriptor, err error) {
	var raw struct {
		Version               uint16
		_                     uint16
		DescriptorLength      uint32
		HeaderLength          uint32
		SeekTableLength       uint32
		WAVHeaderLength       uint32
		AudioDataLength       uint32
		AudioDataLengthHigh   uint32
		TerminatingDataLength uint32
		MD5sum                [16]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrap(ErrInvalidHeader, "meta.NewDescriptor: truncated descriptor")
	}
	desc = &Descriptor{
		Version:               raw.Version,
		DescriptorLength:      raw.DescriptorLength,
		HeaderLength:          raw.HeaderLength,
		SeekTableLength:       raw.SeekTableLength,
		WAVHeaderLength:       raw.WAVHeaderLength,
		AudioDataLength:       raw.AudioDataLength,
		AudioDataLengthHigh:   raw.AudioDataLengthHigh,
		TerminatingDataLength: raw.TerminatingDataLength,
		MD5sum:                raw.MD5sum,
	}
	if desc.DescriptorLength < descriptorSize {
		return nil, errors.Wrapf(ErrInvalidHeader, "meta.NewDescriptor: descriptor length %d below record size %d", desc.DescriptorLength, descriptorSize)
	}
	return desc, nil
}
