package frame

import (
	"github.com/mewkiz/ape/internal/bits"
)

// The predictor captures correlation at longer range than the filter
// cascade: an order-4 filter over reconstructed values and their first
// differences, plus, in stereo, an order-5 filter fed by a first-order
// difference of the opposite channel's output. All coefficients adapt by sign-sign steps driven by
// the input residual.

const (
	predictorOrder = 8
	// predictorSize is the span of live history slots per window position.
	predictorSize = 50
)

// Slot offsets of the two channels within the shared history window. Each
// channel owns a delay region for its A filter, one for its B filter, and
// matching adaptation-term regions.
const (
	delayA0 = 18 + predictorOrder*4
	delayB0 = 18 + predictorOrder*3
	delayA1 = 18 + predictorOrder*2
	delayB1 = 18 + predictorOrder
	adaptA0 = 18
	adaptA1 = 14
	adaptB0 = 10
	adaptB1 = 5
)

// initialCoeffsA seeds every frame's A filter.
var initialCoeffsA = [4]int64{360, 317, -109, 98}

// A predictor is the long-range adaptive prediction stage. One instance
// covers both channels of a frame; state is reset at every frame boundary.
type predictor struct {
	buf [historySize + predictorSize]int64
	pos int

	coeffsA [2][4]int64
	coeffsB [2][5]int64
	filterA [2]int64
	filterB [2]int64
	lastA   [2]int64
}

func (p *predictor) reset() {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.pos = 0
	for ch := 0; ch < 2; ch++ {
		p.coeffsA[ch] = initialCoeffsA
		p.coeffsB[ch] = [5]int64{}
	}
	p.filterA = [2]int64{}
	p.filterB = [2]int64{}
	p.lastA = [2]int64{}
}

// advance slides the history window one slot, folding it back to the start
// when it fills.
func (p *predictor) advance() {
	p.pos++
	if p.pos == historySize {
		copy(p.buf[:predictorSize], p.buf[p.pos:p.pos+predictorSize])
		p.pos = 0
	}
}

// decodeMono inverts the predictor over one channel in place. Mono frames
// use only the A filter.
func (p *predictor) decodeMono(data []int32) {
	currentA := p.lastA[0]
	for i, v := range data {
		buf := p.buf[p.pos:]

		buf[delayA0] = currentA
		buf[delayA0-1] = buf[delayA0] - buf[delayA0-1]

		predA := buf[delayA0]*p.coeffsA[0][0] +
			buf[delayA0-1]*p.coeffsA[0][1] +
			buf[delayA0-2]*p.coeffsA[0][2] +
			buf[delayA0-3]*p.coeffsA[0][3]

		currentA = int64(v) + (predA >> 10)

		buf[adaptA0] = bits.Sign64(buf[delayA0])
		buf[adaptA0-1] = bits.Sign64(buf[delayA0-1])

		sign := int64(bits.Sign(v))
		for j := range p.coeffsA[0] {
			p.coeffsA[0][j] += buf[adaptA0-j] * sign
		}

		p.advance()

		p.filterA[0] = currentA + ((p.filterA[0] * 31) >> 5)
		data[i] = int32(p.filterA[0])
	}
	p.lastA[0] = currentA
}

// decodeStereo inverts the predictor over both channels in place, one block
// at a time. Channel 0 is updated first, so its B filter sees channel 1's
// output from the previous block, while channel 1's B filter sees channel 0's
// output for the current block.
func (p *predictor) decodeStereo(dec0, dec1 []int32) {
	for i := range dec0 {
		dec0[i] = p.update(dec0[i], 0, delayA0, delayB0, adaptA0, adaptB0)
		dec1[i] = p.update(dec1[i], 1, delayA1, delayB1, adaptA1, adaptB1)
		p.advance()
	}
}

// update inverts one channel's prediction for one block and adapts its
// coefficients.
func (p *predictor) update(decoded int32, ch int, delayA, delayB, adaptA, adaptB int) int32 {
	buf := p.buf[p.pos:]

	buf[delayA] = p.lastA[ch]
	buf[adaptA] = bits.Sign64(buf[delayA])
	buf[delayA-1] = buf[delayA] - buf[delayA-1]
	buf[adaptA-1] = bits.Sign64(buf[delayA-1])

	predA := buf[delayA]*p.coeffsA[ch][0] +
		buf[delayA-1]*p.coeffsA[ch][1] +
		buf[delayA-2]*p.coeffsA[ch][2] +
		buf[delayA-3]*p.coeffsA[ch][3]

	// The B filter runs on a first-order difference of the opposite
	// channel's output: its latest value minus 31/32 of the one before.
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

	p.lastA[ch] = int64(decoded) + ((predA + (predB >> 1)) >> 10)
	p.filterA[ch] = p.lastA[ch] + ((p.filterA[ch] * 31) >> 5)

	sign := int64(bits.Sign(decoded))
	for j := range p.coeffsA[ch] {
		p.coeffsA[ch][j] += buf[adaptA-j] * sign
	}
	for j := range p.coeffsB[ch] {
		p.coeffsB[ch][j] += buf[adaptB-j] * sign
	}
	return int32(p.filterA[ch])
}
