package frame

// This file implements the encoding mirrors of the decode pipeline. They
// exist so the tests can author frame payloads and verify that decoding
// inverts them exactly; the library itself does not encode.

import (
	"github.com/mewkiz/ape/internal/bits"
)

// A rangeEncoder is the encoding mirror of rangeDecoder. Carries are
// resolved through a pending byte and a run counter, the classic
// carry-propagating construction the decoder expects.
type rangeEncoder struct {
	out    []byte
	low    uint32
	rng    uint32
	buffer byte
	// Number of pending 0xFF bytes whose carry is still undecided.
	help int
}

func newRangeEncoder() *rangeEncoder {
	return &rangeEncoder{rng: topValue}
}

func (e *rangeEncoder) normalize() {
	for e.rng <= bottomValue {
		switch {
		case e.low < 0xFF<<23:
			e.out = append(e.out, e.buffer)
			for ; e.help > 0; e.help-- {
				e.out = append(e.out, 0xFF)
			}
			e.buffer = byte(e.low >> 23)
		case e.low&topValue != 0:
			e.out = append(e.out, e.buffer+1)
			for ; e.help > 0; e.help-- {
				e.out = append(e.out, 0x00)
			}
			e.buffer = byte(e.low >> 23)
		default:
			e.help++
		}
		e.low = e.low << 8 & (topValue - 1)
		e.rng <<= 8
	}
}

// encodeShift encodes a symbol spanning [cum, cum+freq) under a total
// frequency of 1<<shift.
func (e *rangeEncoder) encodeShift(cum, freq uint32, shift uint) {
	e.normalize()
	r := e.rng >> shift
	e.low += r * cum
	e.rng = r * freq
}

// encodeFreq encodes a symbol spanning [cum, cum+freq) under the given total
// frequency.
func (e *rangeEncoder) encodeFreq(cum, freq, tot uint32) {
	e.normalize()
	r := e.rng / tot
	e.low += r * cum
	e.rng = r * freq
}

func (e *rangeEncoder) encodeBits(x uint32, n uint) {
	e.encodeShift(x, 1, n)
}

// finish flushes the coder state and returns the byte stream. The first
// byte of the stream is the encoder's initial pending byte, which the
// decoder skips.
func (e *rangeEncoder) finish() []byte {
	for i := 0; i < 2; i++ {
		e.rng = 1
		e.normalize()
	}
	e.out = append(e.out, e.buffer)
	for ; e.help > 0; e.help-- {
		e.out = append(e.out, 0xFF)
	}
	// Slack for the decoder's normalization lookahead.
	return append(e.out, 0, 0, 0, 0)
}

// encodeValue encodes one signed residual, adapting rs the way decodeValue
// does.
func encodeValue(e *rangeEncoder, rs *riceState, v int32) {
	var x uint32
	if v > 0 {
		x = uint32(2*int64(v) - 1)
	} else {
		x = uint32(-2 * int64(v))
	}

	pivot := rs.ksum >> 5
	if pivot == 0 {
		pivot = 1
	}
	overflow := x / pivot
	base := x % pivot

	switch {
	case overflow <= 20:
		e.encodeShift(counts[overflow], countsDiff[overflow], 16)
	case overflow < modelElements-1:
		e.encodeShift(overflow+65472, 1, 16)
	default:
		e.encodeShift(modelElements-1+65472, 1, 16)
		e.encodeBits(overflow>>16, 16)
		e.encodeBits(overflow&0xFFFF, 16)
	}

	if pivot < 0x10000 {
		e.encodeFreq(base, 1, pivot)
	} else {
		hi := pivot
		var bbits uint
		for hi&^0xFFFF != 0 {
			hi >>= 1
			bbits++
		}
		e.encodeFreq(base>>bbits, 1, hi+1)
		e.encodeFreq(base&(1<<bbits-1), 1, 1<<bbits)
	}

	rs.update(x)
}

// unapply is the encoding mirror of nnFilter.apply: it turns the values the
// inverse filter should output back into the residuals that produce them,
// evolving the state identically.
func (f *nnFilter) unapply(data []int32) {
	for i, y := range data {
		delay := f.hist[f.pos-f.order : f.pos]
		adapt := f.hist[f.pos-2*f.order : f.pos-f.order]

		var acc int32
		for j, c := range f.coeffs {
			acc += int32(c) * int32(delay[j])
		}
		x := y - (((acc + 1<<(f.fracBits-1)) >> f.fracBits))
		sign := int16(bits.Sign(x))
		for j := range f.coeffs {
			f.coeffs[j] += sign * adapt[j]
		}
		data[i] = x

		res := y
		f.hist[f.pos] = bits.Clip16(res)

		ap := f.pos - f.order
		absres := uint32(res)
		if res < 0 {
			absres = -absres
		}
		if absres != 0 {
			step := int16(8)
			if uint64(absres) > 3*uint64(f.avg) {
				step = 32
			} else if absres > f.avg+f.avg/3 {
				step = 16
			}
			if res < 0 {
				step = -step
			}
			f.hist[ap] = step
		} else {
			f.hist[ap] = 0
		}
		f.avg += uint32(int32(absres-f.avg) / 16)
		f.hist[ap-1] >>= 1
		f.hist[ap-2] >>= 1
		f.hist[ap-8] >>= 1

		f.pos++
		if f.pos == len(f.hist) {
			copy(f.hist[:2*f.order], f.hist[f.pos-2*f.order:])
			f.pos = 2 * f.order
		}
	}
}

// encodeMono is the encoding mirror of predictor.decodeMono.
func (p *predictor) encodeMono(data []int32) {
	currentA := p.lastA[0]
	for i, v := range data {
		buf := p.buf[p.pos:]

		buf[delayA0] = currentA
		buf[delayA0-1] = buf[delayA0] - buf[delayA0-1]

		predA := buf[delayA0]*p.coeffsA[0][0] +
			buf[delayA0-1]*p.coeffsA[0][1] +
			buf[delayA0-2]*p.coeffsA[0][2] +
			buf[delayA0-3]*p.coeffsA[0][3]

		nextA := int64(v) - ((p.filterA[0] * 31) >> 5)
		residual := nextA - (predA >> 10)

		buf[adaptA0] = bits.Sign64(buf[delayA0])
		buf[adaptA0-1] = bits.Sign64(buf[delayA0-1])

		sign := int64(bits.Sign(int32(residual)))
		for j := range p.coeffsA[0] {
			p.coeffsA[0][j] += buf[adaptA0-j] * sign
		}

		p.advance()

		p.filterA[0] = nextA + ((p.filterA[0] * 31) >> 5)
		currentA = nextA
		data[i] = int32(residual)
	}
	p.lastA[0] = currentA
}

// encodeStereo is the encoding mirror of predictor.decodeStereo.
func (p *predictor) encodeStereo(dec0, dec1 []int32) {
	for i := range dec0 {
		dec0[i] = p.unupdate(dec0[i], 0, delayA0, delayB0, adaptA0, adaptB0)
		dec1[i] = p.unupdate(dec1[i], 1, delayA1, delayB1, adaptA1, adaptB1)
		p.advance()
	}
}

// unupdate is the encoding mirror of predictor.update.
func (p *predictor) unupdate(v int32, ch int, delayA, delayB, adaptA, adaptB int) int32 {
	buf := p.buf[p.pos:]

	buf[delayA] = p.lastA[ch]
	buf[adaptA] = bits.Sign64(buf[delayA])
	buf[delayA-1] = buf[delayA] - buf[delayA-1]
	buf[adaptA-1] = bits.Sign64(buf[delayA-1])

	predA := buf[delayA]*p.coeffsA[ch][0] +
		buf[delayA-1]*p.coeffsA[ch][1] +
		buf[delayA-2]*p.coeffsA[ch][2] +
		buf[delayA-3]*p.coeffsA[ch][3]

	buf[delayB] = p.filterA[ch^1] - ((p.filterB[ch] * 31) >> 5)
	buf[adaptB] = bits.Sign64(buf[delayB])
	buf[delayB-1] = buf[delayB] - buf[delayB-1]
	buf[adaptB-1] = bits.Sign64(buf[delayB-1])
	p.filterB[ch] = p.filterA[ch^1]

	predB := buf[delayB]*p.coeffsB[ch][0] +
		buf[delayB-1]*p.coeffsB[ch][1] +
		buf[delayB-2]*p.coeffsB[ch][2] +
		buf[delayB-3]*p.coeffsB[ch][3] +
		buf[delayB-4]*p.coeffsB[ch][4]

	lastA := int64(v) - ((p.filterA[ch] * 31) >> 5)
	decoded := lastA - ((predA + (predB >> 1)) >> 10)
	p.filterA[ch] = lastA + ((p.filterA[ch] * 31) >> 5)
	p.lastA[ch] = lastA

	sign := int64(bits.Sign(int32(decoded)))
	for j := range p.coeffsA[ch] {
		p.coeffsA[ch][j] += buf[adaptA-j] * sign
	}
	for j := range p.coeffsB[ch] {
		p.coeffsB[ch][j] += buf[adaptB-j] * sign
	}
	return int32(decoded)
}
