// Package png decodes the PNG raster image format end to end: chunk
// framing and CRC-32 (component C7), IHDR/PLTE/ancillary metadata
// (C8), zlib+DEFLATE decompression and Adler-32 verification (C6,
// delegated to internal/zlibframe), PNG filter reversal (C9), and
// bit-depth/color-type pixel unpacking (C10).
//
// Decoding is synchronous and single-threaded: one Decode call owns
// its buffers exclusively for its whole lifetime, and multiple
// decoders may run concurrently without coordination (spec §5).
package png

import (
	"bytes"
	"io"

	"github.com/xczero/gopng/internal/bitio"
	"github.com/xczero/gopng/internal/deflate"
	"github.com/xczero/gopng/internal/huffman"
	"github.com/xczero/gopng/internal/zlibframe"
)

// Image is the decoded result: a rectangular, channel-interleaved
// pixel buffer plus the structured (not pixel-affecting) ancillary
// metadata the stream carried.
type Image struct {
	Width, Height uint32
	BitDepth      uint8
	ColorType     uint8
	Channels      int
	// Pix holds row-major, channel-interleaved samples. For bit
	// depths 1/2/4/8, one byte per sample; for bit depth 16, two
	// bytes per sample, big-endian.
	Pix []byte

	Palette []RGB

	Text               []TextRecord
	CompressedText     []TextRecord
	InternationalText  []ITXTRecord
	Time               *TIMERecord
	Gamma              *GAMARecord
	PhysicalDimensions *PHYSRecord

	// Metadata mirrors the typed fields above, keyed by chunk type,
	// for callers that want to walk ancillary records generically
	// (spec §6 "Output").
	Metadata map[string]interface{}
}

// DecodeOptions configures a decode call.
type DecodeOptions struct {
	// ValidateOnly runs the full pipeline (chunk CRCs, DEFLATE,
	// Adler-32, filter reversal) but skips pixel unpacking, for
	// callers that only want to know whether a stream is well-formed
	// (SPEC_FULL.md §10).
	ValidateOnly bool
	// Logger, when non-nil, receives one line per chunk and per major
	// pipeline stage as the stream is walked.
	Logger func(format string, args ...interface{})
}

// Decode reads a PNG datastream from r and returns the decoded image.
func Decode(r io.Reader) (*Image, error) {
	return DecodeWithOptions(r, DecodeOptions{})
}

// DecodeWithOptions is Decode with the behavior in opts.
func DecodeWithOptions(r io.Reader, opts DecodeOptions) (*Image, error) {
	logf := opts.Logger
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	cr := newChunkReader(r)
	if err := cr.readSignature(); err != nil {
		return nil, err
	}
	logf("signature ok")

	dec := newDecodeState()
	for {
		rc, err := cr.next()
		if err != nil {
			return nil, err
		}
		logf("chunk %s (%d bytes) at offset %d", rc.Type, len(rc.Data), cr.offset)
		done, err := dec.consume(rc, cr.offset)
		if err != nil {
			return nil, err
		}
		if done {
			// IEND must be the last chunk: any input after it is rejected.
			var extra [1]byte
			if n, _ := io.ReadFull(cr.r, extra[:]); n > 0 {
				return nil, newError(InvalidStructure, cr.offset, "", "no chunk may follow IEND")
			}
			break
		}
	}

	if err := dec.validateComplete(cr.offset); err != nil {
		return nil, err
	}

	channels := colorTypeChannels[dec.ihdr.ColorType]
	bpp := bytesPerPixel(dec.ihdr.BitDepth, channels)
	stride := scanlineStride(dec.ihdr.BitDepth, channels, dec.ihdr.Width)
	expected := int(dec.ihdr.Height) * (1 + stride)

	idatPayload := dec.idat.Bytes()
	decompressed, err := zlibframe.Inflate(idatPayload, expected)
	if err != nil {
		return nil, mapZlibError(err, cr.offset)
	}
	logf("inflated %d bytes of IDAT to %d bytes", len(idatPayload), len(decompressed))

	if len(decompressed) != expected {
		return nil, newError(InvalidStructure, cr.offset, "IDAT", "decompressed length does not equal height*(1+stride)")
	}

	if err := reconstruct(decompressed, int(dec.ihdr.Height), stride, bpp); err != nil {
		return nil, err
	}
	logf("filter reconstruction complete")

	img := dec.buildImage()

	if opts.ValidateOnly {
		img.Channels = outputChannels(dec.ihdr.ColorType)
		return img, nil
	}

	pix, outChans, err := unpackImage(decompressed, int(dec.ihdr.Height), stride, dec.ihdr, dec.palette)
	if err != nil {
		return nil, err
	}
	img.Pix = pix
	img.Channels = outChans
	logf("unpacked %d bytes of pixel data (%d channels)", len(pix), outChans)

	return img, nil
}

// mapZlibError translates the sentinel errors from internal/zlibframe
// and the layers it delegates to (internal/deflate, internal/huffman,
// internal/bitio) into this package's *Error, matching the Kind to
// the failing layer per the twelve-kind taxonomy.
func mapZlibError(err error, offset int64) error {
	switch err {
	case zlibframe.ErrBadCompressionMethod, zlibframe.ErrHeaderCheck, zlibframe.ErrPresetDictionary, zlibframe.ErrTruncated:
		return wrapError(InvalidZlib, offset, "IDAT", err)
	case zlibframe.ErrChecksumMismatch:
		return wrapError(ChecksumMismatch, offset, "IDAT", err)
	case huffman.ErrTooLong, huffman.ErrKraftViolation:
		return wrapError(InvalidHuffman, offset, "IDAT", err)
	case deflate.ErrInvalidDistance:
		return wrapError(InvalidDistance, offset, "IDAT", err)
	case bitio.ErrUnexpectedEnd:
		return wrapError(TruncatedStream, offset, "IDAT", err)
	default:
		return wrapError(InvalidBlock, offset, "IDAT", err)
	}
}

// decodeState accumulates chunk-ordering state across the single pass
// over a PNG stream, implementing the sequencing rules of spec §4.8:
// IHDR must come first, PLTE (if present) must precede IDAT and is
// forbidden for color types 0 and 4, IDAT chunks must be contiguous,
// and IEND must be last, empty, and unique.
type decodeState struct {
	ihdr    *IHDRRecord
	palette *PLTERecord
	idat    bytes.Buffer

	sawIDAT    bool
	idatClosed bool
	sawIEND    bool

	texts []TextRecord
	ztxts []TextRecord
	itxts []ITXTRecord
	time  *TIMERecord
	gama  *GAMARecord
	phys  *PHYSRecord
}

func newDecodeState() *decodeState {
	return &decodeState{}
}

// consume applies one chunk to the decode state. It returns done=true
// once IEND has been processed, signaling the caller to stop reading.
func (d *decodeState) consume(rc *rawChunk, offset int64) (bool, error) {
	if d.sawIEND {
		return false, newError(InvalidStructure, offset, rc.Type, "no chunk may follow IEND")
	}
	if d.ihdr == nil && rc.Type != "IHDR" {
		return false, newError(InvalidStructure, offset, rc.Type, "IHDR must be the first chunk")
	}

	// Any chunk other than a continuing run of IDATs closes the IDAT
	// run, per spec §4.8 "IDAT chunks must be contiguous".
	if rc.Type != "IDAT" && d.sawIDAT {
		d.idatClosed = true
	}

	switch rc.Type {
	case "IHDR":
		if d.ihdr != nil {
			return false, newError(InvalidStructure, offset, "IHDR", "duplicate IHDR chunk")
		}
		h, err := parseIHDR(rc.Data)
		if err != nil {
			return false, err
		}
		if err := validateIHDR(h); err != nil {
			return false, err
		}
		d.ihdr = h

	case "PLTE":
		if d.ihdr == nil {
			return false, newError(InvalidStructure, offset, "PLTE", "PLTE encountered before IHDR")
		}
		if d.palette != nil {
			return false, newError(InvalidStructure, offset, "PLTE", "duplicate PLTE chunk")
		}
		if d.sawIDAT {
			return false, newError(InvalidStructure, offset, "PLTE", "PLTE must precede the first IDAT chunk")
		}
		if d.ihdr.ColorType == 0 || d.ihdr.ColorType == 4 {
			return false, newError(InvalidPalette, offset, "PLTE", "PLTE is forbidden for color types 0 and 4")
		}
		p, err := parsePLTE(rc.Data)
		if err != nil {
			return false, err
		}
		if maxEntries := 1 << d.ihdr.BitDepth; len(p.Entries) > maxEntries {
			return false, newError(InvalidPalette, offset, "PLTE", "palette has more entries than 2^bit-depth allows")
		}
		d.palette = p

	case "IDAT":
		if d.ihdr == nil {
			return false, newError(InvalidStructure, offset, "IDAT", "IDAT encountered before IHDR")
		}
		if d.idatClosed {
			return false, newError(InvalidStructure, offset, "IDAT", "IDAT chunks must be contiguous")
		}
		if d.ihdr.ColorType == 3 && d.palette == nil {
			return false, newError(InvalidPalette, offset, "IDAT", "color type 3 requires a PLTE chunk before IDAT")
		}
		d.sawIDAT = true
		d.idat.Write(rc.Data)

	case "IEND":
		if d.ihdr == nil {
			return false, newError(InvalidStructure, offset, "IEND", "IEND encountered before IHDR")
		}
		if len(rc.Data) != 0 {
			return false, newError(InvalidStructure, offset, "IEND", "IEND payload must be empty")
		}
		if !d.sawIDAT {
			return false, newError(InvalidStructure, offset, "IEND", "stream has no IDAT chunk")
		}
		d.sawIEND = true
		return true, nil

	case "tEXt":
		t, err := parseText(rc.Data)
		if err != nil {
			return false, err
		}
		d.texts = append(d.texts, *t)

	case "zTXt":
		t, err := parseZTXT(rc.Data)
		if err != nil {
			return false, err
		}
		d.ztxts = append(d.ztxts, *t)

	case "iTXt":
		t, err := parseITXT(rc.Data)
		if err != nil {
			return false, err
		}
		d.itxts = append(d.itxts, *t)

	case "tIME":
		if d.time != nil {
			return false, newError(InvalidStructure, offset, "tIME", "duplicate tIME chunk")
		}
		t, err := parseTIME(rc.Data)
		if err != nil {
			return false, err
		}
		d.time = t

	case "gAMA":
		if d.gama != nil {
			return false, newError(InvalidStructure, offset, "gAMA", "duplicate gAMA chunk")
		}
		if d.sawIDAT {
			return false, newError(InvalidStructure, offset, "gAMA", "gAMA must precede the first IDAT chunk")
		}
		g, err := parseGAMA(rc.Data)
		if err != nil {
			return false, err
		}
		d.gama = g

	case "pHYs":
		if d.phys != nil {
			return false, newError(InvalidStructure, offset, "pHYs", "duplicate pHYs chunk")
		}
		if d.sawIDAT {
			return false, newError(InvalidStructure, offset, "pHYs", "pHYs must precede the first IDAT chunk")
		}
		p, err := parsePHYS(rc.Data)
		if err != nil {
			return false, err
		}
		d.phys = p

	default:
		if isCritical(rc.Type) {
			return false, newError(UnsupportedChunk, offset, rc.Type, "unrecognized critical chunk")
		}
		// Unknown ancillary chunk: skip, per spec §4.8.
	}

	return false, nil
}

func (d *decodeState) validateComplete(offset int64) error {
	if d.ihdr == nil {
		return newError(InvalidStructure, 0, "", "stream has no IHDR chunk")
	}
	if !d.sawIEND {
		return newError(InvalidStructure, offset, "", "stream has no IEND chunk")
	}
	if d.idat.Len() == 0 {
		return newError(InvalidStructure, offset, "", "stream has no IDAT chunk")
	}
	return nil
}

func (d *decodeState) buildImage() *Image {
	img := &Image{
		Width:              d.ihdr.Width,
		Height:             d.ihdr.Height,
		BitDepth:           d.ihdr.BitDepth,
		ColorType:          d.ihdr.ColorType,
		Text:               d.texts,
		CompressedText:     d.ztxts,
		InternationalText:  d.itxts,
		Time:               d.time,
		Gamma:              d.gama,
		PhysicalDimensions: d.phys,
		Metadata:           make(map[string]interface{}),
	}
	if d.palette != nil {
		img.Palette = d.palette.Entries
	}
	if len(d.texts) > 0 {
		img.Metadata["tEXt"] = d.texts
	}
	if len(d.ztxts) > 0 {
		img.Metadata["zTXt"] = d.ztxts
	}
	if len(d.itxts) > 0 {
		img.Metadata["iTXt"] = d.itxts
	}
	if d.time != nil {
		img.Metadata["tIME"] = d.time
	}
	if d.gama != nil {
		img.Metadata["gAMA"] = d.gama
	}
	if d.phys != nil {
		img.Metadata["pHYs"] = d.phys
	}
	return img
}
