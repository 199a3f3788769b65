// Package zlibframe implements the zlib container (RFC 1950) that
// wraps a DEFLATE stream: the 2-byte CMF/FLG header, the compressed
// payload (handed to package deflate), and the 4-byte big-endian
// Adler-32 trailer verified against package checksum's running sum
// over the decompressed bytes. This is spec component C6.
package zlibframe

import (
	"errors"

	"github.com/xczero/gopng/internal/checksum"
	"github.com/xczero/gopng/internal/deflate"
)

var (
	// ErrBadCompressionMethod is returned when the low nibble of CMF
	// is not 8 (DEFLATE).
	ErrBadCompressionMethod = errors.New("zlibframe: CMF does not specify the DEFLATE compression method")
	// ErrHeaderCheck is returned when (CMF*256+FLG) mod 31 != 0.
	ErrHeaderCheck = errors.New("zlibframe: CMF/FLG header check failed")
	// ErrPresetDictionary is returned when FDICT is set; preset
	// dictionaries are rejected outright.
	ErrPresetDictionary = errors.New("zlibframe: preset dictionary flag is set")
	// ErrTruncated is returned when the stream ends before the
	// 2-byte header or 4-byte trailer can be read.
	ErrTruncated = errors.New("zlibframe: stream truncated before zlib header/trailer")
	// ErrChecksumMismatch is returned when the trailing Adler-32
	// does not match the running checksum over the decompressed
	// bytes.
	ErrChecksumMismatch = errors.New("zlibframe: Adler-32 trailer does not match decompressed data")
)

// Inflate validates the zlib header, inflates the DEFLATE payload via
// package deflate, and verifies the Adler-32 trailer. sizeHint
// preallocates the output buffer (typically height*(1+stride) for a
// PNG IDAT stream).
func Inflate(data []byte, sizeHint int) ([]byte, error) {
	if len(data) < 6 { // 2-byte header + at least 0-byte payload + 4-byte trailer
		return nil, ErrTruncated
	}
	cmf, flg := data[0], data[1]
	if cmf&0x0F != 8 {
		return nil, ErrBadCompressionMethod
	}
	if (uint16(cmf)*256+uint16(flg))%31 != 0 {
		return nil, ErrHeaderCheck
	}
	if flg&0x20 != 0 {
		return nil, ErrPresetDictionary
	}

	trailerStart := len(data) - 4
	if trailerStart < 2 {
		return nil, ErrTruncated
	}
	payload := data[2:trailerStart]
	trailer := data[trailerStart:]

	out, err := deflate.Inflate(payload, sizeHint)
	if err != nil {
		return nil, err
	}

	wantAdler := uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])
	gotAdler := checksum.ChecksumAdler32(out)
	if gotAdler != wantAdler {
		return nil, ErrChecksumMismatch
	}
	return out, nil
}
