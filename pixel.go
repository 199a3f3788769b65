package png

// outputChannels returns the channel count of the final (post-palette)
// pixel array for each color type, per spec component C10.
func outputChannels(colorType uint8) int {
	switch colorType {
	case 0:
		return 1
	case 2:
		return 3
	case 3:
		return 3 // resolved through PLTE
	case 4:
		return 2
	case 6:
		return 4
	default:
		return 0
	}
}

// unpackRow extracts `count` samples (width*channels) from one
// filter-stripped scanline, expanding sub-byte depths to one byte per
// sample. Sub-byte samples are packed MSB-first within each byte,
// with the leftmost sample in the high-order bits (spec component
// C10, bit depths 1/2/4). Bit depth 16 keeps two big-endian bytes per
// sample.
func unpackRow(row []byte, count int, bitDepth uint8) []byte {
	switch bitDepth {
	case 1, 2, 4:
		out := make([]byte, count)
		samplesPerByte := 8 / int(bitDepth)
		mask := byte(1<<bitDepth) - 1
		for i := 0; i < count; i++ {
			byteIdx := i / samplesPerByte
			posInByte := i % samplesPerByte
			shift := uint(8) - uint(bitDepth)*(uint(posInByte)+1)
			out[i] = (row[byteIdx] >> shift) & mask
		}
		return out
	case 8:
		out := make([]byte, count)
		copy(out, row[:count])
		return out
	case 16:
		out := make([]byte, count*2)
		copy(out, row[:count*2])
		return out
	default:
		return nil
	}
}

// unpackImage turns the reconstructed (unfiltered) scanlines into the
// canonical pixel array: channel-interleaved samples, big-endian for
// 16-bit, with color type 3 resolved through the palette to RGB.
func unpackImage(reconstructed []byte, height int, stride int, ihdr *IHDRRecord, palette *PLTERecord) ([]byte, int, error) {
	channels := colorTypeChannels[ihdr.ColorType]
	rowSize := 1 + stride
	samplesPerRow := channels * int(ihdr.Width)

	outChannels := outputChannels(ihdr.ColorType)
	bytesPerSample := 1
	if ihdr.BitDepth == 16 {
		bytesPerSample = 2
	}

	pix := make([]byte, 0, int(ihdr.Height)*int(ihdr.Width)*outChannels*bytesPerSample)

	for y := 0; y < height; y++ {
		rowStart := y*rowSize + 1
		row := reconstructed[rowStart : rowStart+stride]
		samples := unpackRow(row, samplesPerRow, ihdr.BitDepth)

		if ihdr.ColorType == 3 {
			if palette == nil {
				return nil, 0, newError(InvalidPalette, int64(rowStart), "PLTE", "color type 3 requires a PLTE chunk")
			}
			for _, idx := range samples {
				if int(idx) >= len(palette.Entries) {
					return nil, 0, newError(InvalidPalette, int64(rowStart), "IDAT", "palette index out of range")
				}
				e := palette.Entries[idx]
				pix = append(pix, e.R, e.G, e.B)
			}
			continue
		}

		pix = append(pix, samples...)
	}

	return pix, outChannels, nil
}
