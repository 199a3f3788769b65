// Package checksum implements the two integrity primitives a PNG
// datastream relies on: IEEE CRC-32 over each chunk, and Adler-32
// over the decompressed zlib payload. Both are hand-rolled rather
// than delegated to a library or the standard library's hash/crc32
// and hash/adler32 packages, because computing them is part of what
// this module exists to demonstrate (see DESIGN.md).
package checksum

// crc32Polynomial is the reflected form of the IEEE 802.3 polynomial
// 0x04C11DB7 used by PNG.
const crc32Polynomial = 0xEDB88320

var crc32Table [256]uint32

func init() {
	for n := uint32(0); n < 256; n++ {
		c := n
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = crc32Polynomial ^ (c >> 1)
			} else {
				c = c >> 1
			}
		}
		crc32Table[n] = c
	}
}

// CRC32 accumulates an IEEE CRC-32 across one or more byte spans.
// The zero value is not ready to use; call NewCRC32.
type CRC32 struct {
	state uint32
}

// NewCRC32 returns a CRC-32 accumulator primed with the initial value
// required by the PNG specification.
func NewCRC32() *CRC32 {
	return &CRC32{state: 0xFFFFFFFF}
}

// Update folds bytes into the running CRC state and returns the
// receiver for chaining.
func (c *CRC32) Update(data []byte) *CRC32 {
	crc := c.state
	for _, b := range data {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}
	c.state = crc
	return c
}

// Sum32 finalizes the running CRC by applying the output XOR.
func (c *CRC32) Sum32() uint32 {
	return c.state ^ 0xFFFFFFFF
}

// Reset returns the accumulator to its initial state.
func (c *CRC32) Reset() {
	c.state = 0xFFFFFFFF
}

// ChecksumCRC32 computes the one-shot CRC-32 of a byte span.
func ChecksumCRC32(data []byte) uint32 {
	return NewCRC32().Update(data).Sum32()
}
