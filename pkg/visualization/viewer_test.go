package visualization

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"hsibiopsy/pkg/hsi"
)

// testCube builds a cube whose band b holds b*100 + y*width + x.
func testCube(t *testing.T, bands, height, width int) *hsi.Cube {
	t.Helper()
	data := make([]float64, bands*height*width)
	for b := 0; b < bands; b++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[b*height*width+y*width+x] = float64(b*100 + y*width + x)
			}
		}
	}
	cube, err := hsi.NewCube([]uint64{uint64(bands), uint64(height), uint64(width)}, data)
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	return cube
}

func TestNewViewer(t *testing.T) {
	cube := testCube(t, 3, 2, 2)

	if _, err := NewViewer(cube, nil); err != nil {
		t.Errorf("Expected viewer without wavelength table, got %v", err)
	}
	if _, err := NewViewer(cube, []float64{450, 550}); err == nil {
		t.Error("Expected an error for a short wavelength table")
	}
	if _, err := NewViewer(nil, nil); err == nil {
		t.Error("Expected an error for a nil cube")
	}
}

func TestNearestBand(t *testing.T) {
	wavelengths := []float64{450, 500, 550, 600, 650}

	tests := []struct {
		target float64
		want   int
	}{
		{target: 650, want: 4},
		{target: 560, want: 2},
		{target: 525, want: 1}, // tie goes to the lower band
		{target: 100, want: 0},
		{target: 900, want: 4},
	}

	for _, tc := range tests {
		if got := NearestBand(wavelengths, len(wavelengths), tc.target); got != tc.want {
			t.Errorf("NearestBand(%v) = %d, want %d", tc.target, got, tc.want)
		}
	}

	// Without a wavelength table the target is a band index.
	if got := NearestBand(nil, 5, 2); got != 2 {
		t.Errorf("Expected band 2, got %d", got)
	}
	if got := NearestBand(nil, 5, 650); got != 4 {
		t.Errorf("Expected clamped band 4, got %d", got)
	}
	if got := NearestBand(nil, 5, -3); got != 0 {
		t.Errorf("Expected clamped band 0, got %d", got)
	}
}

func TestRGB(t *testing.T) {
	cube := testCube(t, 3, 2, 2)
	viewer, err := NewViewer(cube, []float64{450, 550, 650})
	if err != nil {
		t.Fatal(err)
	}

	img, err := viewer.RGB(DefaultRed, DefaultGreen, DefaultBlue)
	if err != nil {
		t.Fatalf("RGB failed: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}

	// Every band is a ramp 0..3 after normalisation, so all channels agree.
	first := img.NRGBAAt(0, 0)
	last := img.NRGBAAt(1, 1)
	if first.R != 0 || first.G != 0 || first.B != 0 {
		t.Errorf("Expected black at (0, 0), got %v", first)
	}
	if last.R != 255 || last.G != 255 || last.B != 255 || last.A != 255 {
		t.Errorf("Expected white at (1, 1), got %v", last)
	}
	if mid := img.NRGBAAt(1, 0); mid.R != 85 {
		t.Errorf("Expected red 85 at (1, 0), got %d", mid.R)
	}
}

func TestRGBIgnoresNonFinite(t *testing.T) {
	cube := testCube(t, 1, 2, 2)
	cube.Data[0] = math.NaN()
	cube.Data[1] = math.Inf(1)

	viewer, _ := NewViewer(cube, nil)
	img, err := viewer.RGB(0, 0, 0)
	if err != nil {
		t.Fatalf("RGB failed: %v", err)
	}

	if c := img.NRGBAAt(0, 0); c.R != 0 {
		t.Errorf("Expected NaN pixel to render black, got %v", c)
	}
	if c := img.NRGBAAt(1, 0); c.R != 0 {
		t.Errorf("Expected Inf pixel to render black, got %v", c)
	}
	// Finite values 2 and 3 span the full range.
	if c := img.NRGBAAt(0, 1); c.R != 0 {
		t.Errorf("Expected minimum at (0, 1), got %v", c)
	}
	if c := img.NRGBAAt(1, 1); c.R != 255 {
		t.Errorf("Expected maximum at (1, 1), got %v", c)
	}
}

func TestExtractBand(t *testing.T) {
	cube := testCube(t, 2, 3, 3)
	viewer, _ := NewViewer(cube, nil)

	img, err := viewer.ExtractBand(1)
	if err != nil {
		t.Fatalf("ExtractBand failed: %v", err)
	}
	if img.Gray16At(0, 0).Y != 0 || img.Gray16At(2, 2).Y != 65535 {
		t.Errorf("Band not normalised: %v %v", img.Gray16At(0, 0), img.Gray16At(2, 2))
	}

	if _, err := viewer.ExtractBand(2); err == nil {
		t.Error("Expected an error for an out of range band")
	}
}

func TestExtractRegion(t *testing.T) {
	cube := testCube(t, 2, 4, 4)
	viewer, _ := NewViewer(cube, nil)

	region, err := viewer.ExtractRegion(1, 2, 2, 2)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if region.Shape() != [3]int{2, 2, 2} {
		t.Fatalf("Unexpected shape %v", region.Shape())
	}
	if got := region.At(1, 0, 0); got != cube.At(1, 1, 2) {
		t.Errorf("Expected %v, got %v", cube.At(1, 1, 2), got)
	}

	for _, bad := range [][4]int{{-1, 0, 1, 1}, {0, 0, 0, 1}, {3, 3, 2, 2}} {
		if _, err := viewer.ExtractRegion(bad[0], bad[1], bad[2], bad[3]); err == nil {
			t.Errorf("Expected an error for region %v", bad)
		}
	}
}

func TestPlotSpectra(t *testing.T) {
	cube := testCube(t, 4, 2, 2)
	viewer, _ := NewViewer(cube, []float64{450, 500, 550, 600})

	var buf bytes.Buffer
	if err := viewer.PlotSpectra(&buf, []Pixel{{Y: 0, X: 0}, {Y: 1, X: 1}}); err != nil {
		t.Fatalf("PlotSpectra failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 400 {
		t.Errorf("Unexpected chart size %v", img.Bounds())
	}

	if err := viewer.PlotSpectra(&buf, nil); err == nil {
		t.Error("Expected an error without pixels")
	}
	if err := viewer.PlotSpectra(&buf, []Pixel{{Y: 5, X: 0}}); err == nil {
		t.Error("Expected an error for a pixel outside the image")
	}
}

func TestSaveBandSequence(t *testing.T) {
	cube := testCube(t, 3, 2, 2)
	viewer, _ := NewViewer(cube, nil)

	outputDir := filepath.Join(t.TempDir(), "bands")
	if err := viewer.SaveBandSequence(outputDir); err != nil {
		t.Fatalf("SaveBandSequence failed: %v", err)
	}

	for _, name := range []string{"band_000.png", "band_001.png", "band_002.png"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestSaveImageResizes(t *testing.T) {
	cube := testCube(t, 3, 2, 2)
	viewer, _ := NewViewer(cube, nil)
	img, err := viewer.RGB(2, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "rgb.png")
	if err := SaveImage(img, filename, 8); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Errorf("Expected 8x8, got %dx%d", cfg.Width, cfg.Height)
	}
}
