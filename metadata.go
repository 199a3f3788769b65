package png

import (
	"bytes"

	bst "github.com/mixcode/binarystruct"
	"github.com/pkg/errors"

	"github.com/xczero/gopng/internal/zlibframe"
)

// IHDRRecord is the decoded image header, spec component C8's first
// and mandatory parse target.
type IHDRRecord struct {
	Width             uint32 `binary:"uint32"`
	Height            uint32 `binary:"uint32"`
	BitDepth          uint8  `binary:"uint8"`
	ColorType         uint8  `binary:"uint8"`
	CompressionMethod uint8  `binary:"uint8"`
	FilterMethod      uint8  `binary:"uint8"`
	InterlaceMethod   uint8  `binary:"uint8"`
}

// PLTERecord is the decoded palette: one RGB triple per entry.
type PLTERecord struct {
	Entries []RGB
}

// RGB is one 8-bit-per-channel palette entry.
type RGB struct {
	R, G, B uint8
}

// TextRecord holds a tEXt or zTXt chunk's keyword/text pair after
// decompression (zTXt only), both Latin-1 per the spec.
type TextRecord struct {
	Keyword string
	Text    string
}

// ITXTRecord holds an iTXt chunk's fields, spec §3 "Ancillary
// records".
type ITXTRecord struct {
	Keyword           string
	CompressionFlag   uint8
	CompressionMethod uint8
	LanguageTag       string
	TranslatedKeyword string
	Text              string
}

// TIMERecord is the decoded tIME chunk.
type TIMERecord struct {
	Year   uint16 `binary:"uint16"`
	Month  uint8  `binary:"uint8"`
	Day    uint8  `binary:"uint8"`
	Hour   uint8  `binary:"uint8"`
	Minute uint8  `binary:"uint8"`
	Second uint8  `binary:"uint8"`
}

// GAMARecord is the decoded gAMA chunk: gamma times 100000. Parsed
// but never applied to pixel data (spec §9 "Ancillary interpretation").
type GAMARecord struct {
	Gamma uint32 `binary:"uint32"`
}

// PHYSRecord is the decoded pHYs chunk, supplemented beyond spec.md's
// enumerated ancillary set (see SPEC_FULL.md §10).
type PHYSRecord struct {
	PixelsPerUnitX uint32 `binary:"uint32"`
	PixelsPerUnitY uint32 `binary:"uint32"`
	Unit           uint8  `binary:"uint8"`
}

func parseIHDR(data []byte) (*IHDRRecord, error) {
	if len(data) != 13 {
		return nil, newError(InvalidHeader, 0, "IHDR", "IHDR payload must be exactly 13 bytes")
	}
	var rec IHDRRecord
	if _, err := bst.Read(bytes.NewReader(data), bst.BigEndian, &rec); err != nil {
		return nil, wrapError(InvalidHeader, 0, "IHDR", errors.WithStack(err))
	}
	return &rec, nil
}

// colorTypeChannels maps a valid color type to its channel count
// (spec §6, before any palette resolution).
var colorTypeChannels = map[uint8]int{0: 1, 2: 3, 3: 1, 4: 2, 6: 4}

// allowedBitDepths enumerates the accepted (color type, bit depth)
// matrix from spec §6.
var allowedBitDepths = map[uint8][]uint8{
	0: {1, 2, 4, 8, 16},
	2: {8, 16},
	3: {1, 2, 4, 8},
	4: {8, 16},
	6: {8, 16},
}

func validateIHDR(h *IHDRRecord) error {
	if h.Width == 0 || h.Width > 1<<31-1 || h.Height == 0 || h.Height > 1<<31-1 {
		return newError(InvalidHeader, 0, "IHDR", "width and height must be in [1, 2^31-1]")
	}
	if h.CompressionMethod != 0 {
		return newError(InvalidHeader, 0, "IHDR", "compression method must be 0")
	}
	if h.FilterMethod != 0 {
		return newError(InvalidHeader, 0, "IHDR", "filter method must be 0")
	}
	if h.InterlaceMethod != 0 {
		return newError(InvalidHeader, 0, "IHDR", "interlace method must be 0 (Adam7 is out of scope)")
	}
	depths, ok := allowedBitDepths[h.ColorType]
	if !ok {
		return newError(InvalidHeader, 0, "IHDR", "color type must be one of 0, 2, 3, 4, 6")
	}
	ok = false
	for _, d := range depths {
		if d == h.BitDepth {
			ok = true
			break
		}
	}
	if !ok {
		return newError(InvalidHeader, 0, "IHDR", "bit depth is not allowed for this color type")
	}
	return nil
}

func parsePLTE(data []byte) (*PLTERecord, error) {
	if len(data)%3 != 0 || len(data) == 0 {
		return nil, newError(InvalidPalette, 0, "PLTE", "palette length must be a positive multiple of 3")
	}
	n := len(data) / 3
	if n > 256 {
		return nil, newError(InvalidPalette, 0, "PLTE", "palette has more than 256 entries")
	}
	rec := &PLTERecord{Entries: make([]RGB, n)}
	for i := 0; i < n; i++ {
		rec.Entries[i] = RGB{R: data[3*i], G: data[3*i+1], B: data[3*i+2]}
	}
	return rec, nil
}

// parseText decodes a tEXt chunk: Latin-1 keyword, NUL, Latin-1 text.
// Variable-length NUL-delimited fields aren't a fit for
// binarystruct's fixed-layout tags, so this parses by hand the way
// the teacher's own chunk.go does for tEXt/zTXt (strings.Split on the
// NUL separator).
func parseText(data []byte) (*TextRecord, error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 || i == 0 || i > 79 {
		return nil, newError(InvalidStructure, 0, "tEXt", "tEXt keyword must be 1-79 bytes, NUL-terminated")
	}
	return &TextRecord{Keyword: string(data[:i]), Text: string(data[i+1:])}, nil
}

// parseZTXT decodes a zTXt chunk: Latin-1 keyword, NUL, compression
// method, zlib-compressed Latin-1 text.
func parseZTXT(data []byte) (*TextRecord, error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 || i == 0 || i > 79 {
		return nil, newError(InvalidStructure, 0, "zTXt", "zTXt keyword must be 1-79 bytes, NUL-terminated")
	}
	keyword := string(data[:i])
	if i+1 >= len(data) {
		return nil, newError(InvalidStructure, 0, "zTXt", "zTXt missing compression method byte")
	}
	method := data[i+1]
	if method != 0 {
		return nil, newError(InvalidStructure, 0, "zTXt", "zTXt compression method must be 0 (deflate)")
	}
	text, err := zlibframe.Inflate(data[i+2:], len(data))
	if err != nil {
		return nil, wrapError(InvalidZlib, 0, "zTXt", errors.WithStack(err))
	}
	return &TextRecord{Keyword: keyword, Text: string(text)}, nil
}

// parseITXT decodes an iTXt chunk per spec §3 and the iTXt policy
// added in SPEC_FULL.md §10.
func parseITXT(data []byte) (*ITXTRecord, error) {
	kwEnd := bytes.IndexByte(data, 0)
	if kwEnd < 0 || len(data) < kwEnd+3 {
		return nil, newError(InvalidStructure, 0, "iTXt", "iTXt payload too short for compression flag/method")
	}
	keyword := string(data[:kwEnd])
	compressionFlag := data[kwEnd+1]
	compressionMethod := data[kwEnd+2]

	fields := bytes.SplitN(data[kwEnd+3:], []byte{0}, 3)
	if len(fields) < 3 {
		return nil, newError(InvalidStructure, 0, "iTXt", "iTXt must have keyword, language tag, and translated keyword separated by NUL bytes")
	}
	languageTag := string(fields[0])
	translatedKeyword := string(fields[1])
	textBytes := fields[2]

	var text string
	switch compressionFlag {
	case 0:
		text = string(textBytes)
	case 1:
		if compressionMethod != 0 {
			return nil, newError(InvalidStructure, 0, "iTXt", "iTXt compression method must be 0 (deflate)")
		}
		decompressed, err := zlibframe.Inflate(textBytes, len(textBytes))
		if err != nil {
			return nil, wrapError(InvalidZlib, 0, "iTXt", errors.WithStack(err))
		}
		text = string(decompressed)
	default:
		return nil, newError(InvalidStructure, 0, "iTXt", "iTXt compression flag must be 0 or 1")
	}

	return &ITXTRecord{
		Keyword:           keyword,
		CompressionFlag:   compressionFlag,
		CompressionMethod: compressionMethod,
		LanguageTag:       languageTag,
		TranslatedKeyword: translatedKeyword,
		Text:              text,
	}, nil
}

func parseTIME(data []byte) (*TIMERecord, error) {
	if len(data) != 7 {
		return nil, newError(InvalidStructure, 0, "tIME", "tIME payload must be exactly 7 bytes")
	}
	var rec TIMERecord
	if _, err := bst.Read(bytes.NewReader(data), bst.BigEndian, &rec); err != nil {
		return nil, wrapError(InvalidStructure, 0, "tIME", errors.WithStack(err))
	}
	return &rec, nil
}

func parseGAMA(data []byte) (*GAMARecord, error) {
	if len(data) != 4 {
		return nil, newError(InvalidStructure, 0, "gAMA", "gAMA payload must be exactly 4 bytes")
	}
	var rec GAMARecord
	if _, err := bst.Read(bytes.NewReader(data), bst.BigEndian, &rec); err != nil {
		return nil, wrapError(InvalidStructure, 0, "gAMA", errors.WithStack(err))
	}
	return &rec, nil
}

func parsePHYS(data []byte) (*PHYSRecord, error) {
	if len(data) != 9 {
		return nil, newError(InvalidStructure, 0, "pHYs", "pHYs payload must be exactly 9 bytes")
	}
	var rec PHYSRecord
	if _, err := bst.Read(bytes.NewReader(data), bst.BigEndian, &rec); err != nil {
		return nil, wrapError(InvalidStructure, 0, "pHYs", errors.WithStack(err))
	}
	return &rec, nil
}
