package ape

import (
	"io"
)

// Samples returns an iterator over the stream's remaining interleaved
// samples, draining the stream frame by frame from its current position.
func (s *Stream) Samples() *Samples {
	return &Samples{s: s}
}

// A Samples iterator yields the decoded samples of a stream in order,
// interleaved by block. The sequence is finite and not restartable; after
// the first failure Next keeps returning false and Err reports the cause.
type Samples struct {
	s   *Stream
	buf []int32
	pos int
	err error
}

// Next returns the next sample. ok is false once the stream is exhausted or
// decoding failed; Err tells the two apart.
func (it *Samples) Next() (sample int32, ok bool) {
	for it.pos >= len(it.buf) {
		if it.err != nil {
			return 0, false
		}
		f, err := it.s.ParseNext()
		if err != nil {
			it.err = err
			return 0, false
		}
		it.buf = f.Samples
		it.pos = 0
	}
	sample = it.buf[it.pos]
	it.pos++
	return sample, true
}

// Err returns the first error encountered by Next. Exhausting the stream is
// not an error.
func (it *Samples) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}
