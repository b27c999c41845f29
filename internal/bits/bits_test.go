package bits_test

import (
	"bytes"
	"testing"

	"github.com/icza/mighty"
	"github.com/mewkiz/ape/internal/bits"
)

func TestSwapWords(t *testing.T) {
	eq := mighty.Eq(t)

	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	bits.SwapWords(buf)
	eq(true, bytes.Equal([]byte{4, 3, 2, 1, 8, 7, 6, 5}, buf))

	// Swapping twice restores the original.
	bits.SwapWords(buf)
	eq(true, bytes.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, buf))

	// Empty input is a no-op.
	bits.SwapWords(nil)
}

func TestSign(t *testing.T) {
	eq := mighty.Eq(t)

	eq(int32(0), bits.Sign(0))
	eq(int32(1), bits.Sign(1))
	eq(int32(1), bits.Sign(2147483647))
	eq(int32(-1), bits.Sign(-1))
	eq(int32(-1), bits.Sign(-2147483648))

	eq(int64(0), bits.Sign64(0))
	eq(int64(1), bits.Sign64(1<<40))
	eq(int64(-1), bits.Sign64(-1<<40))
}

func TestClip16(t *testing.T) {
	eq := mighty.Eq(t)

	eq(int16(0), bits.Clip16(0))
	eq(int16(123), bits.Clip16(123))
	eq(int16(-123), bits.Clip16(-123))
	eq(int16(32767), bits.Clip16(32767))
	eq(int16(32767), bits.Clip16(32768))
	eq(int16(32767), bits.Clip16(1<<30))
	eq(int16(-32768), bits.Clip16(-32768))
	eq(int16(-32768), bits.Clip16(-32769))
	eq(int16(-32768), bits.Clip16(-1<<30))
}
