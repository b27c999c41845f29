package frame

import (
	"github.com/mewkiz/ape/internal/bits"
)

// historySize is the length of the sliding window shared by the filter and
// predictor histories.
const historySize = 512

// A filterSpec fixes one stage of the adaptive FIR cascade: its order and
// the fractional bits of its prediction.
type filterSpec struct {
	order    int
	fracBits uint
}

// filterSpecs maps compression level (level/1000 - 1) to its cascade,
// innermost stage first. Stages are applied in reverse: the outermost stage
// runs first on the range-decoded residual, the innermost feeds the
// predictor. The fast level has no filter stages.
var filterSpecs = [5][]filterSpec{
	nil,
	{{order: 16, fracBits: 11}},
	{{order: 64, fracBits: 11}},
	{{order: 32, fracBits: 10}, {order: 256, fracBits: 13}},
	{{order: 16, fracBits: 11}, {order: 256, fracBits: 13}, {order: 1280, fracBits: 15}},
}

// An nnFilter holds one channel's state for one cascade stage: the adaptive
// weights and a history window combining past outputs with the adaptation
// terms derived from them.
//
// hist is laid out as [adaptation terms | delay line | sliding window]; pos
// marks where the next output lands, so hist[pos-order:pos] is the delay
// line and hist[pos-2*order:pos-order] the matching adaptation terms.
type nnFilter struct {
	order    int
	fracBits uint

	coeffs []int16
	hist   []int16
	pos    int

	// Running average magnitude of the output, driving the adaptation step.
	avg uint32
}

func newNNFilter(spec filterSpec) *nnFilter {
	return &nnFilter{
		order:    spec.order,
		fracBits: spec.fracBits,
		coeffs:   make([]int16, spec.order),
		hist:     make([]int16, spec.order*2+historySize),
		pos:      spec.order * 2,
	}
}

func (f *nnFilter) reset() {
	for i := range f.coeffs {
		f.coeffs[i] = 0
	}
	for i := range f.hist {
		f.hist[i] = 0
	}
	f.pos = f.order * 2
	f.avg = 0
}

// apply runs the inverse filter over data in place: each input residual is
// summed with the prediction from past outputs, and the weights adapt on the
// sign of the input.
func (f *nnFilter) apply(data []int32) {
	for i, x := range data {
		delay := f.hist[f.pos-f.order : f.pos]
		adapt := f.hist[f.pos-2*f.order : f.pos-f.order]

		// Fixed-point dot product of weights and history, folding in the
		// sign-sign weight update. Each weight is read before it adapts.
		sign := int16(bits.Sign(x))
		var acc int32
		for j, c := range f.coeffs {
			acc += int32(c) * int32(delay[j])
			f.coeffs[j] = c + sign*adapt[j]
		}
		res := ((acc + 1<<(f.fracBits-1)) >> f.fracBits) + x
		data[i] = res
		f.hist[f.pos] = bits.Clip16(res)

		// Adaptation term for this output: a step of 8, 16 or 32 carrying
		// the output's sign, larger the further the output strays from its
		// running average.
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

		// Recent adaptation terms decay.
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

// applyFilters runs the cascade over both channels, outermost stage first.
// Channels are independent; dec1 is nil for mono frames.
func (d *Decoder) applyFilters(dec0, dec1 []int32) {
	for i := len(d.filters) - 1; i >= 0; i-- {
		d.filters[i][0].apply(dec0)
		if dec1 != nil {
			d.filters[i][1].apply(dec1)
		}
	}
}
