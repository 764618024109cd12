// Package report summarises every sample of a dataset: cube shape, metadata
// coverage and per-band statistics. Samples are read one at a time unless the
// caller asks for more workers; each worker goes through the dataset facade
// so every read is its own disk access.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"hsibiopsy/pkg/dataset"
)

// Params configures a report run.
type Params struct {
	// NumCores specifies how many samples are read concurrently. Values
	// below one read sequentially.
	NumCores int

	// Category is the metadata column copied into each summary, e.g. the
	// tumour type. Empty leaves the column blank.
	Category string
}

// SampleSummary is one line of the report.
type SampleSummary struct {
	CombinedID  string  `csv:"combined_id" json:"combined_id"`
	PatientID   string  `csv:"patient_id" json:"patient_id"`
	FOV         int     `csv:"fov" json:"fov"`
	Bands       int     `csv:"bands" json:"bands"`
	Height      int     `csv:"height" json:"height"`
	Width       int     `csv:"width" json:"width"`
	HasMetadata bool    `csv:"has_metadata" json:"has_metadata"`
	Category    string  `csv:"category" json:"category"`
	Mean        float64 `csv:"mean" json:"mean"`
	MinBandMean float64 `csv:"min_band_mean" json:"min_band_mean"`
	MaxBandMean float64 `csv:"max_band_mean" json:"max_band_mean"`
	// MeanSpectrum is serialised as a semicolon separated list in CSV.
	MeanSpectrum Spectrum `csv:"mean_spectrum" json:"mean_spectrum"`
	Error        string   `csv:"error" json:"error,omitempty"`
}

// Spectrum is a per-band vector that marshals to a single CSV field.
type Spectrum []float64

// MarshalCSV implements gocsv.TypeMarshaller.
func (s Spectrum) MarshalCSV() (string, error) {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return strings.Join(parts, ";"), nil
}

// Reporter walks a dataset with a fixed number of workers.
type Reporter struct {
	ds     *dataset.Dataset
	params Params

	results []SampleSummary
	failed  int
}

// NewReporter creates a reporter. NumCores below one is raised to one.
func NewReporter(ds *dataset.Dataset, params Params) *Reporter {
	if params.NumCores < 1 {
		params.NumCores = 1
	}
	return &Reporter{ds: ds, params: params}
}

// Process reads every sample once. Samples whose cube cannot be read are kept
// in the report with their error text; other failures abort the run.
func (r *Reporter) Process() error {
	n := r.ds.Len()
	results := make([]SampleSummary, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	numCores := r.params.NumCores
	perCore := (n + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		wg.Add(1)

		go func(coreID int) {
			defer wg.Done()

			start := coreID * perCore
			end := start + perCore
			if end > n {
				end = n
			}

			for i := start; i < end; i++ {
				results[i], errs[i] = r.summarise(i)
			}
		}(c)
	}

	wg.Wait()

	r.failed = 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, dataset.ErrDataUnavailable) {
			return fmt.Errorf("summarising sample %d: %w", i, err)
		}
		r.failed++
	}
	r.results = results
	return nil
}

func (r *Reporter) summarise(i int) (SampleSummary, error) {
	e, ok := r.ds.Index().At(i)
	if !ok {
		return SampleSummary{}, fmt.Errorf("%w: %d", dataset.ErrIndexOutOfRange, i)
	}
	out := SampleSummary{CombinedID: e.CombinedID, PatientID: e.PatientID, FOV: e.FOV}

	row, ok := r.ds.Table().Lookup(e.PatientID).Row()
	out.HasMetadata = ok
	if ok && r.params.Category != "" {
		out.Category, _ = row.Get(r.params.Category)
	}

	sample, err := r.ds.At(i)
	if err != nil {
		out.Error = err.Error()
		return out, err
	}

	cube := sample.Cube
	out.Bands, out.Height, out.Width = cube.Bands, cube.Height, cube.Width
	out.MeanSpectrum = cube.MeanSpectrum()
	out.Mean, out.MinBandMean, out.MaxBandMean = spectrumStats(out.MeanSpectrum)
	return out, nil
}

// spectrumStats returns the mean, minimum and maximum of the finite entries.
func spectrumStats(s []float64) (mean, lo, hi float64) {
	finite := make([]float64, 0, len(s))
	for _, v := range s {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return stat.Mean(finite, nil), floats.Min(finite), floats.Max(finite)
}

// Results returns the summaries in dataset order.
func (r *Reporter) Results() []SampleSummary {
	return append([]SampleSummary(nil), r.results...)
}

// Failed returns how many samples could not be read.
func (r *Reporter) Failed() int {
	return r.failed
}

// WriteCSV writes the summaries with a header row.
func (r *Reporter) WriteCSV(w io.Writer) error {
	results := r.Results()
	if results == nil {
		results = []SampleSummary{}
	}
	return gocsv.Marshal(results, w)
}
