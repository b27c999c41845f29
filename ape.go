// Package ape provides access to APE (Monkey's Audio) files, format version
// 3.99 and later.
//
// Decoding reproduces the reference codec's numeric behavior exactly; the
// output of a lossless stream is bit-identical to the encoder's input.
package ape

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/mewkiz/ape/frame"
	"github.com/mewkiz/ape/meta"
)

// A Stream is an APE audio stream.
type Stream struct {
	// Stream configuration, as parsed from the file front.
	Info *meta.StreamInfo
	// StrictCRC makes a frame CRC mismatch a decode error. By default a
	// mismatch only marks the decoded frame (Frame.BadCRC) and output is
	// best effort, matching the reference decoder.
	StrictCRC bool

	// Underlying byte source and optional closer (set by Open).
	r io.ReadSeeker
	c io.Closer
	// One entry per frame, built from the seek table at open.
	frames []frameRef
	dec    *frame.Decoder
	// Next frame for ParseNext.
	next int
	// Window read buffer, reused across frames.
	buf []byte
}

// A frameRef locates one frame's compressed byte window.
type frameRef struct {
	// Absolute offset of the window's first 32-bit word.
	pos int64
	// The frame's byte offset within that word.
	skip int
	// Window length in bytes.
	size int64
	// Expected block count.
	blocks int
}

// Open opens the APE file at the given path. The returned stream owns the
// file handle; call Close when done.
func Open(path string) (s *Stream, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err = New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.c = f
	return s, nil
}

// New parses the file front of the APE stream read from r and returns a
// stream positioned at its first frame.
func New(r io.ReadSeeker) (s *Stream, err error) {
	info, table, err := meta.Parse(r)
	if err != nil {
		return nil, err
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s = &Stream{Info: info, r: r, dec: frame.NewDecoder(info)}
	s.frames = make([]frameRef, info.TotalFrames)
	for i := range s.frames {
		off := table.Offsets[i]
		if off < info.DataOffset || off >= size {
			return nil, errors.Wrapf(meta.ErrInvalidHeader, "ape.New: frame %d offset %d outside audio data", i, off)
		}
		ref := frameRef{
			pos:    off &^ 3,
			skip:   int(off & 3),
			blocks: int(info.BlocksPerFrame),
		}
		if i == len(s.frames)-1 {
			ref.blocks = int(info.FinalFrameBlocks)
			ref.size = size - ref.pos
		}
		s.frames[i] = ref
		if i > 0 {
			// The previous frame's window runs to this frame's offset,
			// rounded up to a whole word.
			s.frames[i-1].size = (off - s.frames[i-1].pos + 3) &^ 3
		}
	}
	return s, nil
}

// Close closes the underlying file of the stream, if any.
func (s *Stream) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// ParseNext decodes and returns the next audio frame. It returns io.EOF
// after the last frame.
func (s *Stream) ParseNext() (f *frame.Frame, err error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f, err = s.ParseFrame(s.next)
	if err != nil {
		return nil, err
	}
	s.next++
	return f, nil
}

// ParseFrame decodes and returns frame number n. Frames are independently
// decodable, so any order works; ParseFrame does not move the position used
// by ParseNext.
func (s *Stream) ParseFrame(n int) (f *frame.Frame, err error) {
	if n < 0 || n >= len(s.frames) {
		return nil, errors.Errorf("ape.Stream.ParseFrame: frame number %d out of range [0, %d)", n, len(s.frames))
	}
	ref := s.frames[n]
	if _, err := s.r.Seek(ref.pos, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	if int64(cap(s.buf)) < ref.size {
		s.buf = make([]byte, ref.size)
	}
	win := s.buf[:ref.size]
	// A short read means the file ends inside the frame; hand the decoder
	// what is there and let it report the damage.
	m, err := io.ReadFull(s.r, win)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.WithStack(err)
	}
	f, err = s.dec.Decode(n, win[:m], ref.skip, ref.blocks)
	if err != nil {
		return nil, err
	}
	if s.StrictCRC && f.BadCRC {
		return nil, errors.Wrapf(frame.ErrCorruptFrame, "ape.Stream.ParseFrame: frame %d: CRC mismatch", n)
	}
	return f, nil
}
