// Package deflate implements the DEFLATE bitstream (RFC 1951): block
// dispatch, literal/length/distance decoding via package huffman, and
// LZ77 back-reference expansion. It is component C5 of the decoder.
package deflate

import (
	"errors"

	"github.com/xczero/gopng/internal/bitio"
	"github.com/xczero/gopng/internal/huffman"
)

// Sentinel errors classify the ways a DEFLATE stream can be corrupt;
// callers (package zlibframe, and ultimately package png) map these
// onto the documented error kinds.
var (
	ErrReservedBlockType  = errors.New("deflate: reserved block type (11)")
	ErrStoredLengthCheck  = errors.New("deflate: NLEN is not the one's complement of LEN")
	ErrRepeatBeforeSymbol = errors.New("deflate: length-16 repeat code used before any symbol was coded")
	ErrInvalidDistance    = errors.New("deflate: back-reference distance exceeds output produced so far")
	ErrInvalidBlockType   = errors.New("deflate: code-length repeat runs past HLIT+HDIST")
)

var (
	fixedLitDecoder  *huffman.Decoder
	fixedDistDecoder *huffman.Decoder
)

func init() {
	var err error
	fixedLitDecoder, err = huffman.Build(fixedLiteralLengths())
	if err != nil {
		panic(err) // the fixed table is a compile-time constant; a failure here is a bug
	}
	fixedDistDecoder, err = huffman.Build(fixedDistanceLengths())
	if err != nil {
		panic(err)
	}
}

// Inflate decompresses a raw DEFLATE bitstream (the payload of a zlib
// stream, after the CMF/FLG header has been stripped). sizeHint
// preallocates the output buffer's capacity; it need not be exact.
// The returned buffer doubles as DEFLATE's 32 KiB sliding window:
// back-references copy directly out of the bytes already appended to
// it, including overlapping runs.
func Inflate(data []byte, sizeHint int) ([]byte, error) {
	br := bitio.NewReader(data)
	out := make([]byte, 0, sizeHint)

	for {
		bfinal, err := br.ReadBits(1)
		if err != nil {
			return nil, err
		}
		btype, err := br.ReadBits(2)
		if err != nil {
			return nil, err
		}

		switch btype {
		case 0:
			out, err = inflateStored(br, out)
		case 1:
			out, err = inflateHuffmanBlock(br, out, fixedLitDecoder, fixedDistDecoder)
		case 2:
			var litDec, distDec *huffman.Decoder
			litDec, distDec, err = readDynamicTables(br)
			if err == nil {
				out, err = inflateHuffmanBlock(br, out, litDec, distDec)
			}
		default:
			err = ErrReservedBlockType
		}
		if err != nil {
			return nil, err
		}
		if bfinal == 1 {
			break
		}
	}
	return out, nil
}

func inflateStored(br *bitio.Reader, out []byte) ([]byte, error) {
	br.AlignToByte()
	lenBytes, err := br.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	length := uint16(lenBytes[0]) | uint16(lenBytes[1])<<8
	nlength := uint16(lenBytes[2]) | uint16(lenBytes[3])<<8
	if nlength != ^length {
		return nil, ErrStoredLengthCheck
	}
	if length == 0 {
		return out, nil
	}
	payload, err := br.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	return append(out, payload...), nil
}

// readDynamicTables reads HLIT/HDIST/HCLEN, the code-length alphabet,
// and decodes it into the literal/length and distance Huffman tables
// for a BTYPE=10 block, per RFC 1951 §3.2.7.
func readDynamicTables(br *bitio.Reader) (lit, dist *huffman.Decoder, err error) {
	hlitBits, err := br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hdistBits, err := br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hclenBits, err := br.ReadBits(4)
	if err != nil {
		return nil, nil, err
	}
	hlit := int(hlitBits) + 257
	hdist := int(hdistBits) + 1
	hclen := int(hclenBits) + 4

	clLengths := make([]int, 19)
	for i := 0; i < hclen; i++ {
		v, err := br.ReadBits(3)
		if err != nil {
			return nil, nil, err
		}
		clLengths[codeLengthOrder[i]] = int(v)
	}
	clDecoder, err := huffman.Build(clLengths)
	if err != nil {
		return nil, nil, err
	}

	total := hlit + hdist
	allLengths := make([]int, 0, total)
	var lastLength int
	for len(allLengths) < total {
		sym, err := clDecoder.Decode(br)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case sym < 16:
			allLengths = append(allLengths, sym)
			lastLength = sym
		case sym == 16:
			if len(allLengths) == 0 {
				return nil, nil, ErrRepeatBeforeSymbol
			}
			extra, err := br.ReadBits(2)
			if err != nil {
				return nil, nil, err
			}
			for i := uint32(0); i < 3+extra; i++ {
				allLengths = append(allLengths, lastLength)
			}
		case sym == 17:
			extra, err := br.ReadBits(3)
			if err != nil {
				return nil, nil, err
			}
			for i := uint32(0); i < 3+extra; i++ {
				allLengths = append(allLengths, 0)
			}
			lastLength = 0
		case sym == 18:
			extra, err := br.ReadBits(7)
			if err != nil {
				return nil, nil, err
			}
			for i := uint32(0); i < 11+extra; i++ {
				allLengths = append(allLengths, 0)
			}
			lastLength = 0
		default:
			return nil, nil, huffman.ErrTooLong
		}
	}
	if len(allLengths) != total {
		return nil, nil, ErrInvalidBlockType
	}

	lit, err = huffman.Build(allLengths[:hlit])
	if err != nil {
		return nil, nil, err
	}
	dist, err = huffman.Build(allLengths[hlit:])
	if err != nil {
		return nil, nil, err
	}
	return lit, dist, nil
}

// inflateHuffmanBlock decodes literal/length/distance symbols until
// the end-of-block marker (256), appending to out.
func inflateHuffmanBlock(br *bitio.Reader, out []byte, litDec, distDec *huffman.Decoder) ([]byte, error) {
	for {
		sym, err := litDec.Decode(br)
		if err != nil {
			return nil, err
		}
		switch {
		case sym < 256:
			out = append(out, byte(sym))
		case sym == 256:
			return out, nil
		default:
			lengthSym := sym - 257
			if lengthSym >= len(lengthBase) {
				return nil, huffman.ErrTooLong
			}
			extra, err := br.ReadBits(lengthExtraBits[lengthSym])
			if err != nil {
				return nil, err
			}
			length := lengthBase[lengthSym] + int(extra)

			distSym, err := distDec.Decode(br)
			if err != nil {
				return nil, err
			}
			if distSym >= len(distBase) {
				return nil, ErrInvalidDistance
			}
			distExtra, err := br.ReadBits(distExtraBits[distSym])
			if err != nil {
				return nil, err
			}
			distance := distBase[distSym] + int(distExtra)

			if distance > len(out) {
				return nil, ErrInvalidDistance
			}
			start := len(out) - distance
			for i := 0; i < length; i++ {
				out = append(out, out[start+i])
			}
		}
	}
}
