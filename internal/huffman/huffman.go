// Package huffman builds and decodes canonical Huffman codes the way
// DEFLATE (RFC 1951 §3.2.2) defines them: a vector of per-symbol code
// lengths determines the code assignment uniquely, with no need to
// transmit the codes themselves.
//
// Decoding follows the bit-by-bit reference algorithm from the
// specification rather than a precomputed lookup table, trading some
// speed for a direct, auditable mapping from the construction rules
// to the decode loop.
package huffman

import (
	"errors"

	"github.com/xczero/gopng/internal/bitio"
)

// MaxCodeLength is the longest code length DEFLATE permits.
const MaxCodeLength = 15

// ErrTooLong is returned when decoding would need to read past the
// longest permitted code without matching a symbol, which means the
// code table (and therefore the compressed stream) is corrupt.
var ErrTooLong = errors.New("huffman: code exceeds maximum length")

// ErrKraftViolation is returned when a set of code lengths does not
// form a valid (non-overlapling) prefix code.
var ErrKraftViolation = errors.New("huffman: code lengths do not form a valid prefix code")

// Decoder holds a canonical Huffman code table built from a vector of
// code lengths, ready to decode one symbol at a time.
type Decoder struct {
	counts          [MaxCodeLength + 1]int    // bl_count[l]: symbols with length l
	base            [MaxCodeLength + 1]uint32 // next_code[l]: first code value assigned to length l
	symbolsByLength [MaxCodeLength + 1][]int  // symbols of length l, in ascending symbol-index order
}

// Build constructs the canonical code table for the given code-length
// vector, following RFC 1951 §3.2.2 / spec component C4 steps 1-3:
//
//  1. bl_count[l] = number of symbols with length l.
//  2. next_code[1] = 0; next_code[l] = (next_code[l-1]+bl_count[l-1]) << 1.
//  3. code[i] = next_code[L[i]]++ for every symbol with L[i] > 0.
func Build(lengths []int) (*Decoder, error) {
	d := &Decoder{}
	for _, l := range lengths {
		if l < 0 || l > MaxCodeLength {
			return nil, ErrTooLong
		}
		if l > 0 {
			d.counts[l]++
		}
	}

	// Kraft's equality, checked the way RFC 1951's reference decoder
	// (and zlib's puff.c construct()) does it: walk the lengths
	// tracking how many leaf slots remain unclaimed at each depth.
	// left goes negative the moment bl_count assigns more codes at a
	// length than the tree has room for, which is exactly an
	// over-subscribed (invalid) code table.
	left := 1
	for l := 1; l <= MaxCodeLength; l++ {
		left <<= 1
		left -= d.counts[l]
		if left < 0 {
			return nil, ErrKraftViolation
		}
	}

	var code uint32
	var nextCode [MaxCodeLength + 1]uint32
	for l := 1; l <= MaxCodeLength; l++ {
		code = (code + uint32(d.counts[l-1])) << 1
		nextCode[l] = code
		d.base[l] = code
	}

	for l := 1; l <= MaxCodeLength; l++ {
		d.symbolsByLength[l] = make([]int, 0, d.counts[l])
	}
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		d.symbolsByLength[l] = append(d.symbolsByLength[l], sym)
		nextCode[l]++
	}

	return d, nil
}

// Decode reads one symbol from br, accumulating bits MSB-first in
// the code-value domain while drawing each bit LSB-first from the
// stream, per spec component C4: start code=0; for each length l from
// 1 upward, shift code left and OR in the next bit; if a symbol of
// length l owns that code value, return it.
func (d *Decoder) Decode(br *bitio.Reader) (int, error) {
	var code uint32
	for l := 1; l <= MaxCodeLength; l++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		code = (code << 1) | bit
		if d.counts[l] > 0 {
			idx := code - d.base[l]
			if idx < uint32(d.counts[l]) {
				return d.symbolsByLength[l][idx], nil
			}
		}
	}
	return 0, ErrTooLong
}
