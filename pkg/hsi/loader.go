package hsi

import (
	"fmt"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// DefaultDataset is the name of the variable holding the reflectance cube
// inside the HyperProbe .mat files.
const DefaultDataset = "Ref_hyper"

// Loader reads a cube from a file path. Implementations must not cache:
// every call reads the file again and returns newly allocated data.
type Loader interface {
	Load(path string) (*Cube, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(path string) (*Cube, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) (*Cube, error) {
	return f(path)
}

// HDF5Loader reads cubes stored as MATLAB v7.3 files, which are HDF5 files
// with a 512 byte user block.
type HDF5Loader struct {
	// Dataset is the path of the cube inside the file. Defaults to
	// DefaultDataset when empty.
	Dataset string
}

// NewHDF5Loader returns a loader for the given dataset path.
func NewHDF5Loader(dataset string) *HDF5Loader {
	return &HDF5Loader{Dataset: dataset}
}

// Load opens path, reads the whole dataset and returns it as a Cube. All
// failures wrap ErrUnavailable.
func (l *HDF5Loader) Load(path string) (*Cube, error) {
	name := l.Dataset
	if name == "" {
		name = DefaultDataset
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	defer f.Close()

	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: dataset %q: %w", ErrUnavailable, path, name, err)
	}

	cube, err := readCube(ds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: dataset %q: %w", ErrUnavailable, path, name, err)
	}
	return cube, nil
}

// cubeDataset is the part of *hdf5.Dataset the loader reads through.
type cubeDataset interface {
	Rank() int
	Shape() []uint64
	ReadFloat64() ([]float64, error)
	ReadInt64() ([]int64, error)
}

var _ cubeDataset = (*hdf5.Dataset)(nil)

// readCube checks that ds is a [bands, height, width] array and reads it.
func readCube(ds cubeDataset) (*Cube, error) {
	if ds.Rank() != 3 {
		return nil, fmt.Errorf("%w: rank %d", ErrMalformed, ds.Rank())
	}

	data, err := readFloat64(ds)
	if err != nil {
		return nil, err
	}
	return NewCube(ds.Shape(), data)
}

// readFloat64 reads floating point data directly and falls back to an
// integer read for raw sensor counts.
func readFloat64(ds cubeDataset) ([]float64, error) {
	data, err := ds.ReadFloat64()
	if err == nil {
		return data, nil
	}

	ints, intErr := ds.ReadInt64()
	if intErr != nil {
		return nil, err
	}

	data = make([]float64, len(ints))
	for i, v := range ints {
		data[i] = float64(v)
	}
	return data, nil
}
