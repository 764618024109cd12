// Package visualization renders hyperspectral cubes as false colour images
// and plots pixel spectra.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/floats"

	"hsibiopsy/pkg/hsi"
)

// Default channel targets in nm.
const (
	DefaultRed   = 650.0
	DefaultGreen = 550.0
	DefaultBlue  = 450.0
)

// Pixel addresses one spatial location of a cube.
type Pixel struct {
	Y, X int
}

// Viewer renders one cube. Wavelengths holds the centre wavelength of each
// band; when it is empty band indices stand in for wavelengths.
type Viewer struct {
	cube        *hsi.Cube
	wavelengths []float64
}

// NewViewer creates a viewer for cube. A non-empty wavelength table must have
// one entry per band.
func NewViewer(cube *hsi.Cube, wavelengths []float64) (*Viewer, error) {
	if cube == nil {
		return nil, fmt.Errorf("cube must not be nil")
	}
	if len(wavelengths) > 0 && len(wavelengths) != cube.Bands {
		return nil, fmt.Errorf("wavelength table has %d entries, cube has %d bands", len(wavelengths), cube.Bands)
	}
	return &Viewer{cube: cube, wavelengths: wavelengths}, nil
}

// NearestBand returns the band whose wavelength is closest to target. Ties go
// to the lower band. With an empty table target is taken as a band index and
// clamped to [0, bands).
func NearestBand(wavelengths []float64, bands int, target float64) int {
	if len(wavelengths) == 0 {
		i := int(math.Round(target))
		if i < 0 {
			return 0
		}
		if i >= bands {
			return bands - 1
		}
		return i
	}

	best := 0
	for i, w := range wavelengths {
		if math.Abs(w-target) < math.Abs(wavelengths[best]-target) {
			best = i
		}
	}
	return best
}

// Wavelength returns the x coordinate used for band b.
func (v *Viewer) Wavelength(b int) float64 {
	if len(v.wavelengths) == 0 {
		return float64(b)
	}
	return v.wavelengths[b]
}

// normalize scales values into [0, 1] by their finite minimum and maximum.
// Non-finite values map to 0, as does every value of a constant plane.
func normalize(values []float64) []float64 {
	finite := make([]float64, 0, len(values))
	for _, x := range values {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}

	out := make([]float64, len(values))
	if len(finite) == 0 {
		return out
	}

	lo, hi := floats.Min(finite), floats.Max(finite)
	if hi == lo {
		return out
	}
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}

func toByte(x float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, x)) * 255))
}

// ExtractBand renders one band as a grayscale image, min-max normalised.
func (v *Viewer) ExtractBand(band int) (*image.Gray16, error) {
	plane, err := v.cube.Band(band)
	if err != nil {
		return nil, err
	}

	scaled := normalize(plane)
	img := image.NewGray16(image.Rect(0, 0, v.cube.Width, v.cube.Height))
	for y := 0; y < v.cube.Height; y++ {
		for x := 0; x < v.cube.Width; x++ {
			value := uint16(math.Round(scaled[y*v.cube.Width+x] * 65535))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// RGB composes a false colour image from the bands nearest to the red, green
// and blue targets. Each channel is min-max normalised on its own, ignoring
// NaN and infinite values, which render black.
func (v *Viewer) RGB(red, green, blue float64) (*image.NRGBA, error) {
	var channels [3][]float64
	for i, target := range []float64{red, green, blue} {
		plane, err := v.cube.Band(NearestBand(v.wavelengths, v.cube.Bands, target))
		if err != nil {
			return nil, err
		}
		channels[i] = normalize(plane)
	}

	img := image.NewNRGBA(image.Rect(0, 0, v.cube.Width, v.cube.Height))
	for y := 0; y < v.cube.Height; y++ {
		for x := 0; x < v.cube.Width; x++ {
			i := y*v.cube.Width + x
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(channels[0][i]),
				G: toByte(channels[1][i]),
				B: toByte(channels[2][i]),
				A: 255,
			})
		}
	}
	return img, nil
}

// ExtractRegion copies a spatial window of every band into a new cube.
func (v *Viewer) ExtractRegion(startY, startX, sizeY, sizeX int) (*hsi.Cube, error) {
	if startX < 0 || startY < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startY+sizeY > v.cube.Height || startX+sizeX > v.cube.Width {
		return nil, fmt.Errorf("region extends beyond image boundaries")
	}

	region := make([]float64, 0, v.cube.Bands*sizeY*sizeX)
	for b := 0; b < v.cube.Bands; b++ {
		for y := startY; y < startY+sizeY; y++ {
			for x := startX; x < startX+sizeX; x++ {
				region = append(region, v.cube.At(b, y, x))
			}
		}
	}
	return hsi.NewCube([]uint64{uint64(v.cube.Bands), uint64(sizeY), uint64(sizeX)}, region)
}

// PlotSpectra renders the spectra of the given pixels as a PNG line chart.
// Non-finite samples are left out of their line.
func (v *Viewer) PlotSpectra(w io.Writer, pixels []Pixel) error {
	if len(pixels) == 0 {
		return fmt.Errorf("no pixels selected")
	}
	if v.cube.Bands < 2 {
		return fmt.Errorf("cannot plot a spectrum of %d band", v.cube.Bands)
	}

	xLabel := "Band"
	if len(v.wavelengths) > 0 {
		xLabel = "Wavelength (nm)"
	}

	series := make([]chart.Series, 0, len(pixels))
	var all []float64
	for _, p := range pixels {
		spectrum, err := v.cube.Spectrum(p.Y, p.X)
		if err != nil {
			return err
		}
		s := chart.ContinuousSeries{Name: fmt.Sprintf("Pixel %d,%d", p.X, p.Y)}
		for b, value := range spectrum {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			s.XValues = append(s.XValues, v.Wavelength(b))
			s.YValues = append(s.YValues, value)
		}
		if len(s.XValues) < 2 {
			return fmt.Errorf("pixel (%d, %d) has fewer than 2 finite samples", p.Y, p.X)
		}
		all = append(all, s.YValues...)
		series = append(series, s)
	}

	yAxis := chart.YAxis{Name: "Intensity"}
	// go-chart rejects a zero-height range.
	if lo, hi := floats.Min(all), floats.Max(all); lo == hi {
		yAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	graph := chart.Chart{
		Title:  "Pixel Intensity Across Channels",
		Width:  800,
		Height: 400,
		XAxis:  chart.XAxis{Name: xLabel},
		YAxis:  yAxis,
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// SaveImage writes img to filename, the format following the extension. A
// positive width resizes with nearest neighbour sampling so pixels stay sharp.
func SaveImage(img image.Image, filename string, width int) error {
	if width > 0 {
		img = imaging.Resize(img, width, 0, imaging.NearestNeighbor)
	}
	return imaging.Save(img, filename)
}

// SaveBandSequence writes every band as a PNG into outputDir.
func (v *Viewer) SaveBandSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for b := 0; b < v.cube.Bands; b++ {
		img, err := v.ExtractBand(b)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("band_%03d.png", b))
		if err := SaveImage(img, filename, 0); err != nil {
			return err
		}
	}

	return nil
}
