// Package dataset indexes a directory of hyperspectral biopsy cubes and joins
// each cube to its patient's metadata row.
//
// A Dataset is built once by Open: the data directory is scanned, file names
// are parsed into patient and field-of-view identifiers and the metadata
// table is loaded. The index and the table are read-only afterwards, so a
// Dataset may be shared between goroutines. Cubes are never cached: every
// lookup reads its file from disk and hands the caller a new array.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"hsibiopsy/pkg/hsi"
	"hsibiopsy/pkg/metadata"
)

// Sample is the value returned by every lookup. It is built fresh on each
// call and owns its cube.
type Sample struct {
	CombinedID string            `json:"combinedId"`
	PatientID  string            `json:"patientId"`
	FOV        int               `json:"fov"`
	Cube       *hsi.Cube         `json:"-"`
	Metadata   metadata.Metadata `json:"metadata"`
}

// Option configures a Dataset.
type Option func(*options)

type options struct {
	loader    hsi.Loader
	logger    *log.Logger
	locator   *Locator
	keyColumn string
}

func defaultOptions() *options {
	return &options{
		loader:    hsi.NewHDF5Loader(hsi.DefaultDataset),
		logger:    log.New(os.Stderr, "hsibiopsy: ", log.LstdFlags),
		locator:   NewLocator(),
		keyColumn: metadata.DefaultKeyColumn,
	}
}

// WithLoader replaces the HDF5 cube loader.
func WithLoader(loader hsi.Loader) Option {
	return func(o *options) {
		if loader != nil {
			o.loader = loader
		}
	}
}

// WithLogger sets the logger that receives data-quality warnings.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocator replaces the file naming grammar.
func WithLocator(locator *Locator) Option {
	return func(o *options) {
		if locator != nil {
			o.locator = locator
		}
	}
}

// WithKeyColumn sets the patient identifier column of the metadata table.
func WithKeyColumn(name string) Option {
	return func(o *options) {
		if name != "" {
			o.keyColumn = name
		}
	}
}

// Dataset is the indexed, metadata-joined collection of cubes.
type Dataset struct {
	index  *Index
	table  *metadata.Table
	loader hsi.Loader
	log    *log.Logger
}

// Open scans dataDir, loads the metadata table at metadataPath and builds
// the index. Any failure aborts construction with an error wrapping
// ErrConfiguration or ErrIndexBuild.
func Open(ctx context.Context, dataDir, metadataPath string, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	table, err := metadata.Load(ctx, metadataPath, metadata.WithKeyColumn(o.keyColumn), metadata.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	entries, err := o.locator.Locate(dataDir)
	if err != nil {
		return nil, err
	}

	index, err := NewIndex(entries)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		index:  index,
		table:  table,
		loader: o.loader,
		log:    o.logger,
	}, nil
}

// New assembles a Dataset from an already built index and table.
func New(index *Index, table *metadata.Table, opts ...Option) *Dataset {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Dataset{
		index:  index,
		table:  table,
		loader: o.loader,
		log:    o.logger,
	}
}

// Len returns the number of indexed cubes.
func (d *Dataset) Len() int {
	return d.index.Len()
}

// At loads the sample at position i, 0-based, in combined identifier order.
func (d *Dataset) At(i int) (*Sample, error) {
	e, ok := d.index.At(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, d.index.Len())
	}
	return d.load(e)
}

// ByCombinedID loads the sample with the exact combined identifier, e.g.
// "1.2_3".
func (d *Dataset) ByCombinedID(id string) (*Sample, error) {
	e, ok := d.index.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: combined id %q", ErrSampleNotFound, id)
	}
	return d.load(e)
}

// ByPatient loads every sample of a patient in ascending FOV order. A patient
// without cubes yields an empty slice and no error; use Table to tell a
// known patient from an unknown one.
func (d *Dataset) ByPatient(patientID string) ([]*Sample, error) {
	entries := d.index.Patient(metadata.NormalizeID(patientID))

	samples := make([]*Sample, 0, len(entries))
	for _, e := range entries {
		s, err := d.load(e)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// ByPatientAndFOV loads one field of view of a patient.
func (d *Dataset) ByPatientAndFOV(patientID string, fov int) (*Sample, error) {
	pid := metadata.NormalizeID(patientID)
	e, ok := d.index.PatientAndFOV(pid, fov)
	if !ok {
		return nil, fmt.Errorf("%w: patient %s FOV %d", ErrSampleNotFound, pid, fov)
	}
	return d.load(e)
}

// Entries returns the index without loading any cube.
func (d *Dataset) Entries() []Entry {
	return d.index.Entries()
}

// Index returns the read-only index.
func (d *Dataset) Index() *Index {
	return d.index
}

// Table returns the metadata table.
func (d *Dataset) Table() *metadata.Table {
	return d.table
}

// Unmatched returns the entries whose patient has no metadata row.
func (d *Dataset) Unmatched() []Entry {
	var out []Entry
	for _, e := range d.index.entries {
		if !d.table.Lookup(e.PatientID).IsPresent() {
			out = append(out, e)
		}
	}
	return out
}

// PatientsWithoutSamples returns the metadata patients that have no cube in
// the data directory, in table order.
func (d *Dataset) PatientsWithoutSamples() []string {
	var out []string
	for _, p := range d.table.PatientIDs() {
		if _, ok := d.index.byPatient[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// load reads the cube of e and joins its metadata.
func (d *Dataset) load(e Entry) (*Sample, error) {
	cube, err := d.loader.Load(e.FilePath)
	if err != nil {
		if errors.Is(err, ErrDataUnavailable) {
			return nil, fmt.Errorf("sample %s: %w", e.CombinedID, err)
		}
		return nil, fmt.Errorf("%w: sample %s: %w", ErrDataUnavailable, e.CombinedID, err)
	}
	if cube == nil {
		return nil, fmt.Errorf("%w: sample %s: loader returned no data", ErrDataUnavailable, e.CombinedID)
	}

	md := d.table.Lookup(e.PatientID)
	if !md.IsPresent() {
		d.log.Printf("Warning: no metadata row for patient %s (sample %s)\n", e.PatientID, e.CombinedID)
	}

	return &Sample{
		CombinedID: e.CombinedID,
		PatientID:  e.PatientID,
		FOV:        e.FOV,
		Cube:       cube,
		Metadata:   md,
	}, nil
}
