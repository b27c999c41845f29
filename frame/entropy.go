package frame

// modelElements is the size of the overflow alphabet. Symbols below the
// cumulative table's reach are decoded against the table; the tail of the
// 16-bit code space maps one-to-one onto the remaining symbols, and the last
// symbol escapes to a raw 32-bit overflow.
const modelElements = 64

// counts is the fixed cumulative frequency model of the overflow alphabet;
// counts[i] is the code-space start of symbol i under a total of 1<<16.
var counts = [22]uint32{
	0, 19578, 36160, 48417, 56323, 60899, 63265, 64435, 64971, 65232,
	65351, 65416, 65447, 65466, 65476, 65482, 65485, 65488, 65490, 65491,
	65492, 65493,
}

// countsDiff[i] is the frequency of symbol i: counts[i+1] - counts[i].
var countsDiff = [21]uint32{
	19578, 16582, 12257, 7906, 4576, 2366, 1170, 536, 261, 119,
	65, 31, 19, 10, 6, 3, 3, 2, 1, 1,
	1,
}

// decodeSymbol returns the next overflow symbol.
func (rc *rangeDecoder) decodeSymbol() uint32 {
	cf := rc.decodeCulShift(16)
	if cf > 65492 {
		sym := cf - 65535 + 63
		rc.update(1, cf)
		if cf > 65535 {
			rc.failed = true
		}
		return sym
	}
	var sym uint32
	for counts[sym+1] <= cf {
		sym++
	}
	rc.update(countsDiff[sym], counts[sym])
	return sym
}

// A riceState is the adaptive magnitude estimate driving residual decoding;
// one per channel, reset at every frame boundary.
type riceState struct {
	k    uint32
	ksum uint32
}

func (rs *riceState) init() {
	rs.k = 10
	rs.ksum = (1 << 10) * 16
}

// update adapts the state after decoding the folded magnitude x.
func (rs *riceState) update(x uint32) {
	var lim uint32
	if rs.k > 0 {
		lim = 1 << (rs.k + 4)
	}
	rs.ksum += (x+1)/2 - ((rs.ksum + 16) >> 5)
	if rs.ksum < lim {
		rs.k--
	} else if rs.k < 24 && rs.ksum >= 1<<(rs.k+5) {
		rs.k++
	}
}

// decodeValue decodes one signed residual against rs. The magnitude splits
// into an overflow count of pivot-sized steps and a base below the pivot.
func (d *Decoder) decodeValue(rs *riceState) int32 {
	rc := &d.rc
	pivot := rs.ksum >> 5
	if pivot == 0 {
		pivot = 1
	}

	overflow := rc.decodeSymbol()
	if overflow == modelElements-1 {
		overflow = rc.decodeBits(16) << 16
		overflow |= rc.decodeBits(16)
	}

	var base uint32
	if pivot < 0x10000 {
		base = rc.decodeCulFreq(pivot)
		rc.update(1, base)
	} else {
		// Split the base into a high part under a total the coder can
		// represent and the remaining low bits.
		hi := pivot
		var bbits uint
		for hi&^0xFFFF != 0 {
			hi >>= 1
			bbits++
		}
		baseHi := rc.decodeCulFreq(hi + 1)
		rc.update(1, baseHi)
		baseLo := rc.decodeCulFreq(1 << bbits)
		rc.update(1, baseLo)
		base = baseHi<<bbits + baseLo
	}

	x := base + overflow*pivot
	rs.update(x)

	// Fold the unsigned magnitude to a signed residual; odd values map to
	// +(x+1)/2, even values to -x/2.
	return int32((x>>1)^((x&1)-1)) + 1
}

// entropyMono decodes one residual per block into dec0.
func (d *Decoder) entropyMono(dec0 []int32) {
	for i := range dec0 {
		dec0[i] = d.decodeValue(&d.rice0)
	}
}

// entropyStereo decodes two residuals per block, channel 0 first. Each
// channel adapts its own rice state.
func (d *Decoder) entropyStereo(dec0, dec1 []int32) {
	for i := range dec0 {
		dec0[i] = d.decodeValue(&d.rice0)
		dec1[i] = d.decodeValue(&d.rice1)
	}
}
