package png

import "testing"

// TestReconstructScenario4 is end-to-end scenario 4 from the
// specification: a 2x2, 8-bit grayscale image whose first scanline
// is Sub-filtered and second is Paeth-filtered reconstructs to rows
// [10, 15] and [13, 22].
func TestReconstructScenario4(t *testing.T) {
	data := []byte{
		1, 10, 5, // filter=Sub, raw bytes 10, 5 -> 10, 10+5=15
		4, 3, 7, // filter=Paeth, raw bytes 3, 7
	}
	if err := reconstruct(data, 2, 2, 1); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	row0 := data[1:3]
	row1 := data[4:6]
	if row0[0] != 10 || row0[1] != 15 {
		t.Fatalf("row0 = %v, want [10 15]", row0)
	}
	if row1[0] != 13 || row1[1] != 22 {
		t.Fatalf("row1 = %v, want [13 22]", row1)
	}
}

func TestReconstructFilterNone(t *testing.T) {
	data := []byte{0, 1, 2, 3}
	if err := reconstruct(data, 1, 3, 1); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if data[1] != 1 || data[2] != 2 || data[3] != 3 {
		t.Fatalf("unexpected output: %v", data[1:])
	}
}

func TestReconstructInvalidFilterByte(t *testing.T) {
	data := []byte{5, 1, 2, 3}
	err := reconstruct(data, 1, 3, 1)
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != InvalidFilter {
		t.Fatalf("got %v, want InvalidFilter", err)
	}
}

func TestReconstructWrongLength(t *testing.T) {
	data := []byte{0, 1, 2}
	err := reconstruct(data, 1, 3, 1)
	pngErr, ok := err.(*Error)
	if !ok || pngErr.Kind != InvalidStructure {
		t.Fatalf("got %v, want InvalidStructure", err)
	}
}

func TestPaethTiePrefersA(t *testing.T) {
	// p = 8+11-10 = 9: a and c are both 1 away, b is 2 away.
	if got := paeth(8, 11, 10); got != 8 {
		t.Fatalf("paeth(8,11,10) = %d, want 8", got)
	}
}
