package png

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xczero/gopng/internal/checksum"
)

// grayscale1x1 is a minimal, hand-assembled PNG: an 8-bit grayscale
// 1x1 image with a single gray-127 pixel, carried in an IDAT holding
// one stored (uncompressed) DEFLATE block. Every length and checksum
// field was computed by hand against the algorithms this package
// implements, not produced by an external encoder.
var grayscale1x1 = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x00, 0x00, 0x00, 0x00, 0x3A, 0x7E, 0x9B, 0x55,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41, 0x54,
	0x78, 0x9C, 0x01, 0x02, 0x00, 0xFD, 0xFF, 0x00, 0x7F, 0x00, 0x81, 0x00, 0x80, 0x8E, 0x3B, 0xEF, 0x51,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
}

func TestDecodeGrayscale1x1(t *testing.T) {
	img, err := Decode(bytes.NewReader(grayscale1x1))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 1 || img.Height != 1 {
		t.Fatalf("dimensions = %dx%d, want 1x1", img.Width, img.Height)
	}
	if img.ColorType != 0 || img.BitDepth != 8 {
		t.Fatalf("colorType=%d bitDepth=%d, want 0/8", img.ColorType, img.BitDepth)
	}
	if len(img.Pix) != 1 || img.Pix[0] != 0x7F {
		t.Fatalf("Pix = %v, want [0x7F]", img.Pix)
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	bad := append([]byte(nil), grayscale1x1...)
	bad[0] = 0x00
	_, err := Decode(bytes.NewReader(bad))
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != BadSignature {
		t.Fatalf("got %v, want BadSignature", err)
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	truncated := grayscale1x1[:len(grayscale1x1)-10]
	_, err := Decode(bytes.NewReader(truncated))
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != TruncatedStream {
		t.Fatalf("got %v, want TruncatedStream", err)
	}
}

func TestDecodeRejectsFlippedIENDCRC(t *testing.T) {
	bad := append([]byte(nil), grayscale1x1...)
	bad[len(bad)-1] ^= 0xFF
	_, err := Decode(bytes.NewReader(bad))
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != ChecksumMismatch {
		t.Fatalf("got %v, want ChecksumMismatch", err)
	}
}

func TestDecodeRejectsIDATAfterIEND(t *testing.T) {
	extra := chunkBytes("IDAT", []byte{0x00})
	bad := append([]byte(nil), grayscale1x1...)
	bad = append(bad, extra...)
	_, err := Decode(bytes.NewReader(bad))
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != InvalidStructure {
		t.Fatalf("got %v, want InvalidStructure", err)
	}
}

func TestDecodeRejectsUnknownCriticalChunk(t *testing.T) {
	withUnknown := insertChunkBeforeIEND(grayscale1x1, chunkBytes("fOOB", nil))
	// "fOOB" starts with lowercase f: ancillary, must be skipped, not
	// rejected.
	img, err := Decode(bytes.NewReader(withUnknown))
	if err != nil {
		t.Fatalf("Decode with unknown ancillary chunk: %v", err)
	}
	if img.Width != 1 {
		t.Fatalf("unexpected decode result: %+v", img)
	}

	withUnknownCritical := insertChunkBeforeIEND(grayscale1x1, chunkBytes("FOOB", nil))
	_, err = Decode(bytes.NewReader(withUnknownCritical))
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != UnsupportedChunk {
		t.Fatalf("got %v, want UnsupportedChunk", err)
	}
}

func TestDecodeValidateOnlySkipsPixelUnpacking(t *testing.T) {
	img, err := DecodeWithOptions(bytes.NewReader(grayscale1x1), DecodeOptions{ValidateOnly: true})
	if err != nil {
		t.Fatalf("DecodeWithOptions: %v", err)
	}
	if img.Pix != nil {
		t.Fatalf("Pix = %v, want nil under ValidateOnly", img.Pix)
	}
	if img.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", img.Channels)
	}
}

// paletteWithMetadata is a hand-assembled 2x1 palette image (color
// type 3) carrying PLTE, gAMA, pHYs, and tEXt ancillary chunks ahead
// of a single IDAT, exercising the richer metadata and palette
// resolution paths together.
var paletteWithMetadata = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x08, 0x03, 0x00, 0x00, 0x00, 0xC3, 0xFC, 0x8F, 0xB8,
	0x00, 0x00, 0x00, 0x06, 0x50, 0x4C, 0x54, 0x45, 0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0xD2, 0x87, 0xEF, 0x71,
	0x00, 0x00, 0x00, 0x04, 0x67, 0x41, 0x4D, 0x41, 0x00, 0x00, 0xB1, 0x8F, 0x0B, 0xFC, 0x61, 0x05,
	0x00, 0x00, 0x00, 0x09, 0x70, 0x48, 0x59, 0x73, 0x00, 0x00, 0x0B, 0x13, 0x00, 0x00, 0x0B, 0x13, 0x01, 0x00, 0x9A, 0x9C, 0x18,
	0x00, 0x00, 0x00, 0x0A, 0x74, 0x45, 0x58, 0x74, 0x54, 0x69, 0x74, 0x6C, 0x65, 0x00, 0x54, 0x65, 0x73, 0x74, 0xD3, 0x55, 0x52, 0x53,
	0x00, 0x00, 0x00, 0x0E, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9C, 0x01, 0x03, 0x00, 0xFC, 0xFF, 0x00, 0x00, 0x01, 0x00, 0x04, 0x00, 0x02, 0x58, 0x60, 0x68, 0xC2,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
}

func TestDecodePaletteWithMetadata(t *testing.T) {
	img, err := Decode(bytes.NewReader(paletteWithMetadata))
	require.NoError(t, err)

	assert.EqualValues(t, 2, img.Width)
	assert.EqualValues(t, 1, img.Height)
	assert.EqualValues(t, 3, img.ColorType)
	assert.Equal(t, []RGB{{255, 0, 0}, {0, 255, 0}}, img.Palette)
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00}, img.Pix)

	require.Len(t, img.Text, 1)
	assert.Equal(t, TextRecord{Keyword: "Title", Text: "Test"}, img.Text[0])

	require.NotNil(t, img.Gamma)
	assert.EqualValues(t, 45455, img.Gamma.Gamma)

	require.NotNil(t, img.PhysicalDimensions)
	assert.EqualValues(t, 2835, img.PhysicalDimensions.PixelsPerUnitX)
	assert.EqualValues(t, 1, img.PhysicalDimensions.Unit)

	assert.Contains(t, img.Metadata, "gAMA")
	assert.Contains(t, img.Metadata, "pHYs")
	assert.Contains(t, img.Metadata, "tEXt")
}

// chunkBytes builds one length-prefixed, CRC-suffixed chunk record,
// mirroring what chunkReader.next consumes.
func chunkBytes(chunkType string, data []byte) []byte {
	buf := new(bytes.Buffer)
	length := uint32(len(data))
	buf.WriteByte(byte(length >> 24))
	buf.WriteByte(byte(length >> 16))
	buf.WriteByte(byte(length >> 8))
	buf.WriteByte(byte(length))
	buf.WriteString(chunkType)
	buf.Write(data)
	crc := checksum.NewCRC32().Update([]byte(chunkType)).Update(data).Sum32()
	buf.WriteByte(byte(crc >> 24))
	buf.WriteByte(byte(crc >> 16))
	buf.WriteByte(byte(crc >> 8))
	buf.WriteByte(byte(crc))
	return buf.Bytes()
}

// insertChunkBeforeIEND splices a chunk record into a full PNG byte
// stream immediately before its trailing 12-byte IEND chunk.
func insertChunkBeforeIEND(png []byte, chunk []byte) []byte {
	iendStart := len(png) - 12
	out := append([]byte(nil), png[:iendStart]...)
	out = append(out, chunk...)
	out = append(out, png[iendStart:]...)
	return out
}
