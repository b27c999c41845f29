// Package bits provides the integer helpers shared by the APE frame decoder.
package bits

// SwapWords reverses the byte order within each 4-byte group of p, in place.
// The compressed stream of an APE frame is written through a 32-bit
// little-endian word buffer; swapping each word recovers the byte order the
// range decoder consumes. The length of p must be a multiple of 4.
func SwapWords(p []byte) {
	for i := 0; i+4 <= len(p); i += 4 {
		p[i], p[i+1], p[i+2], p[i+3] = p[i+3], p[i+2], p[i+1], p[i]
	}
}
