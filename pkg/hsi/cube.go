// Package hsi holds the in-memory hyperspectral cube and the loaders that
// read cubes from disk.
package hsi

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Cube is a hyperspectral image with shape [bands, height, width].
type Cube struct {
	// Data holds the samples in row-major order: band, then row, then column.
	Data []float64

	// Bands is the number of spectral channels
	Bands int

	// Height is the number of rows of each band image
	Height int

	// Width is the number of columns of each band image
	Width int
}

// NewCube validates shape against data and wraps them in a Cube. The cube
// takes ownership of data.
func NewCube(shape []uint64, data []float64) (*Cube, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("%w: expected rank 3 [bands, height, width], got rank %d", ErrMalformed, len(shape))
	}

	n := uint64(1)
	for i, d := range shape {
		if d == 0 {
			return nil, fmt.Errorf("%w: dimension %d is zero in shape %v", ErrMalformed, i, shape)
		}
		n *= d
	}

	if uint64(len(data)) != n {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrMalformed, shape, n, len(data))
	}

	return &Cube{
		Data:   data,
		Bands:  int(shape[0]),
		Height: int(shape[1]),
		Width:  int(shape[2]),
	}, nil
}

// Shape returns [bands, height, width].
func (c *Cube) Shape() [3]int {
	return [3]int{c.Bands, c.Height, c.Width}
}

func (c *Cube) index(band, y, x int) int {
	return band*c.Height*c.Width + y*c.Width + x
}

// At returns the value of band at pixel (y, x).
func (c *Cube) At(band, y, x int) float64 {
	return c.Data[c.index(band, y, x)]
}

// Band returns the image plane of one band as a row-major slice. The slice
// shares storage with the cube.
func (c *Cube) Band(band int) ([]float64, error) {
	if band < 0 || band >= c.Bands {
		return nil, fmt.Errorf("band %d out of range [0, %d)", band, c.Bands)
	}
	plane := c.Height * c.Width
	return c.Data[band*plane : (band+1)*plane], nil
}

// Spectrum returns a copy of the values of every band at pixel (y, x).
func (c *Cube) Spectrum(y, x int) ([]float64, error) {
	if y < 0 || y >= c.Height || x < 0 || x >= c.Width {
		return nil, fmt.Errorf("pixel (%d, %d) outside %dx%d image", y, x, c.Height, c.Width)
	}

	out := make([]float64, c.Bands)
	for b := range out {
		out[b] = c.At(b, y, x)
	}
	return out, nil
}

// Equal reports whether both cubes have the same shape and values. NaN
// compares equal to NaN so that repeated loads of the same file agree.
func (c *Cube) Equal(other *Cube) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Shape() != other.Shape() || len(c.Data) != len(other.Data) {
		return false
	}
	for i, v := range c.Data {
		w := other.Data[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// BandStats returns the mean and standard deviation of one band, ignoring
// NaN and infinite values.
func (c *Cube) BandStats(band int) (mean, std float64, err error) {
	plane, err := c.Band(band)
	if err != nil {
		return 0, 0, err
	}

	finite := finiteValues(plane)
	if len(finite) == 0 {
		return math.NaN(), math.NaN(), nil
	}
	mean, std = stat.MeanStdDev(finite, nil)
	return mean, std, nil
}

// MeanSpectrum returns the per-band mean over all finite pixels.
func (c *Cube) MeanSpectrum() []float64 {
	out := make([]float64, c.Bands)
	for b := range out {
		plane, _ := c.Band(b)
		finite := finiteValues(plane)
		if len(finite) == 0 {
			out[b] = math.NaN()
			continue
		}
		out[b] = stat.Mean(finite, nil)
	}
	return out
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}
