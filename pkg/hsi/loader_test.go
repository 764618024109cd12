package hsi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-hdf5/hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeHDF5 writes a single flat float64 dataset to a new file.
func writeHDF5(t *testing.T, path, name string, data []float64) {
	t.Helper()
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	_, err = f.Root().CreateDataset(name, data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestHDF5LoaderMissingFile(t *testing.T) {
	loader := NewHDF5Loader("")
	_, err := loader.Load(filepath.Join(t.TempDir(), "absent.mat"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHDF5LoaderNotHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HyperProbe1.1_Biopsy_S1.2.mat")
	require.NoError(t, os.WriteFile(path, []byte("MATLAB 5.0 MAT-file, not hdf5"), 0644))

	_, err := NewHDF5Loader(DefaultDataset).Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHDF5LoaderMissingDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.mat")
	writeHDF5(t, path, "other", []float64{1, 2, 3})

	_, err := NewHDF5Loader(DefaultDataset).Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHDF5LoaderWrongRank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.mat")
	writeHDF5(t, path, DefaultDataset, []float64{1, 2, 3, 4})

	_, err := NewHDF5Loader("").Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, ErrMalformed))
}

// memDataset serves a fixed array the way *hdf5.Dataset does: every read
// returns newly allocated data.
type memDataset struct {
	shape  []uint64
	floats []float64
	ints   []int64
}

func (d *memDataset) Rank() int       { return len(d.shape) }
func (d *memDataset) Shape() []uint64 { return append([]uint64(nil), d.shape...) }

func (d *memDataset) ReadFloat64() ([]float64, error) {
	if d.floats == nil {
		return nil, errors.New("datatype is not floating point")
	}
	return append([]float64(nil), d.floats...), nil
}

func (d *memDataset) ReadInt64() ([]int64, error) {
	if d.ints == nil {
		return nil, errors.New("datatype is not fixed point")
	}
	return append([]int64(nil), d.ints...), nil
}

// ramp returns 0, 1, ..., n-1.
func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestReadCubeFloat(t *testing.T) {
	ds := &memDataset{shape: []uint64{3, 2, 4}, floats: ramp(24)}

	cube, err := readCube(ds)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 4}, cube.Shape())
	assert.Equal(t, 0.0, cube.At(0, 0, 0))
	assert.Equal(t, 7.0, cube.At(0, 1, 3))
	assert.Equal(t, 13.0, cube.At(1, 1, 1))
	assert.Equal(t, 23.0, cube.At(2, 1, 3))

	spectrum, err := cube.Spectrum(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 14, 22}, spectrum)

	again, err := readCube(ds)
	require.NoError(t, err)
	assert.True(t, cube.Equal(again))
	assert.NotSame(t, cube, again)

	again.Data[0] = -1
	assert.Equal(t, 0.0, cube.At(0, 0, 0))
	assert.False(t, cube.Equal(again))
}

func TestReadCubeIntegerCounts(t *testing.T) {
	ints := make([]int64, 24)
	for i := range ints {
		ints[i] = int64(i * 100)
	}
	ds := &memDataset{shape: []uint64{3, 2, 4}, ints: ints}

	cube, err := readCube(ds)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 4}, cube.Shape())
	assert.Equal(t, 500.0, cube.At(0, 1, 1))
	assert.Equal(t, 2300.0, cube.At(2, 1, 3))
}

func TestReadCubeErrors(t *testing.T) {
	_, err := readCube(&memDataset{shape: []uint64{24}, floats: ramp(24)})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = readCube(&memDataset{shape: []uint64{3, 2, 4}, floats: ramp(23)})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = readCube(&memDataset{shape: []uint64{3, 0, 4}, floats: []float64{}})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = readCube(&memDataset{shape: []uint64{3, 2, 4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floating point")
}

func TestLoaderFunc(t *testing.T) {
	want, err := NewCube([]uint64{1, 1, 1}, []float64{7})
	require.NoError(t, err)

	var calls []string
	var loader Loader = LoaderFunc(func(path string) (*Cube, error) {
		calls = append(calls, path)
		return want, nil
	})

	got, err := loader.Load("a.mat")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, []string{"a.mat"}, calls)
}
