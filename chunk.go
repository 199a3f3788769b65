package png

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/xczero/gopng/internal/checksum"
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const maxChunkLength = 1<<31 - 1

// rawChunk is a length-validated, CRC-verified PNG chunk record: the
// type tag and payload, with the length/CRC fields already consumed
// and checked. This is spec component C7.
type rawChunk struct {
	Type string
	Data []byte
}

// isCritical reports whether a chunk type's first letter is
// uppercase, per the PNG chunk-naming convention (spec §3 "Chunk").
func isCritical(chunkType string) bool {
	return chunkType[0] >= 'A' && chunkType[0] <= 'Z'
}

// chunkReader walks a PNG byte stream, validating the 8-byte
// signature and then each chunk's declared length, type, and CRC-32.
type chunkReader struct {
	r      io.Reader
	offset int64
}

func newChunkReader(r io.Reader) *chunkReader {
	return &chunkReader{r: r}
}

func (cr *chunkReader) readSignature() error {
	var sig [8]byte
	if _, err := io.ReadFull(cr.r, sig[:]); err != nil {
		return wrapError(BadSignature, cr.offset, "", errors.WithStack(err))
	}
	cr.offset += 8
	if sig != pngSignature {
		return newError(BadSignature, 0, "", "first 8 bytes do not match the PNG signature")
	}
	return nil
}

// next reads and validates the next chunk record.
func (cr *chunkReader) next() (*rawChunk, error) {
	var header [8]byte
	if _, err := io.ReadFull(cr.r, header[:]); err != nil {
		return nil, wrapError(TruncatedStream, cr.offset, "", errors.WithStack(err))
	}
	length := binary.BigEndian.Uint32(header[:4])
	chunkType := string(header[4:8])
	startOffset := cr.offset
	cr.offset += 8

	if length > maxChunkLength {
		return nil, newError(InvalidStructure, startOffset, chunkType, "chunk length exceeds 2^31-1")
	}

	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(cr.r, data); err != nil {
			return nil, wrapError(TruncatedStream, cr.offset, chunkType, errors.WithStack(err))
		}
	}
	cr.offset += int64(length)

	var crcBytes [4]byte
	if _, err := io.ReadFull(cr.r, crcBytes[:]); err != nil {
		return nil, wrapError(TruncatedStream, cr.offset, chunkType, errors.WithStack(err))
	}
	wantCRC := binary.BigEndian.Uint32(crcBytes[:])
	cr.offset += 4

	gotCRC := checksum.NewCRC32().Update(header[4:8]).Update(data).Sum32()
	if gotCRC != wantCRC {
		return nil, newError(ChecksumMismatch, startOffset, chunkType, "chunk CRC-32 does not match")
	}

	return &rawChunk{Type: chunkType, Data: data}, nil
}
