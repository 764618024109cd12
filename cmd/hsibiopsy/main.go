package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hsibiopsy/pkg/config"
	"hsibiopsy/pkg/dataset"
	"hsibiopsy/pkg/hsi"
	"hsibiopsy/pkg/patients"
	"hsibiopsy/pkg/report"
	"hsibiopsy/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	dataDir := flag.String("data", "", "Directory of .mat cubes (overrides config and HSI_DATA_DIR)")
	metadataPath := flag.String("metadata", "", "Metadata CSV/TSV path or URL (overrides config and METADATA_CSV_PATH)")
	combinedID := flag.String("id", "", "Look up one sample by combined id, e.g. 1.2_3")
	patientID := flag.String("patient", "", "Look up every sample of a patient, e.g. S1.2 or S1_2")
	fov := flag.String("fov", "", "Restrict -patient to one field of view")
	tumorType := flag.String("type", "", "List the patients of one category")
	listTypes := flag.Bool("types", false, "List the patient categories")
	unmatched := flag.Bool("unmatched", false, "Report samples without metadata and patients without samples")
	rgbOut := flag.String("rgb", "", "Write an RGB composite of the selected sample to this file")
	rgbWidth := flag.Int("rgb-width", 0, "Resize the RGB composite to this width")
	spectrumOut := flag.String("spectrum", "", "Write a spectrum chart of the selected sample to this PNG file")
	pixelList := flag.String("px", "", "Pixels for -spectrum as y,x;y,x (default: image centre)")
	bandsDir := flag.String("bands", "", "Save every band of the selected sample as PNG into this directory")
	reportOut := flag.String("report", "", "Summarise every sample into this CSV file")
	numCores := flag.Int("cores", 1, "Number of samples read concurrently by -report (1 reads sequentially)")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *metadataPath != "" {
		cfg.Data.MetadataPath = *metadataPath
	}
	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalf("Invalid configuration: %v", err)
	}

	startTime := time.Now()
	ds, err := dataset.Open(context.Background(), cfg.Data.Dir, cfg.Data.MetadataPath,
		dataset.WithKeyColumn(cfg.Data.KeyColumn),
		dataset.WithLoader(hsi.NewHDF5Loader(cfg.Data.CubeDataset)),
	)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}

	registry, err := patients.NewRegistry(ds.Table(), cfg.Patients.CategoryColumn)
	if err != nil {
		log.Fatalf("Failed to enumerate patients: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("HYPERSPECTRAL BIOPSY DATASET")
	fmt.Println("================================")
	fmt.Printf("Data directory: %s\n", cfg.Data.Dir)
	fmt.Printf("Metadata table: %s\n", cfg.Data.MetadataPath)
	fmt.Printf("Samples: %d from %d patients\n", ds.Len(), len(ds.Index().Patients()))
	fmt.Printf("Metadata rows: %d\n", ds.Table().Len())
	fmt.Printf("Indexed in %.2f seconds\n", time.Since(startTime).Seconds())

	if *listTypes {
		fmt.Println("\nPatient categories:")
		for _, t := range registry.Types() {
			fmt.Printf("- %s (%d patients)\n", t, len(registry.ByType(t)))
		}
	}

	if *tumorType != "" {
		fmt.Printf("\nPatients of category %q:\n", *tumorType)
		for _, id := range registry.ByType(*tumorType) {
			fmt.Printf("- %s (%d samples)\n", id, len(ds.Index().Patient(id)))
		}
	}

	if *unmatched {
		printUnmatched(ds)
	}

	if *reportOut != "" {
		if err := writeReport(ds, *reportOut, *numCores, cfg.Patients.CategoryColumn); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
	}

	samples, err := selectSamples(ds, registry, *combinedID, *patientID, *fov)
	if err != nil {
		log.Fatalf("Lookup failed: %v", err)
	}

	exports := exportOptions{
		rgb:         *rgbOut,
		rgbWidth:    *rgbWidth,
		spectrum:    *spectrumOut,
		pixels:      *pixelList,
		bands:       *bandsDir,
		wavelengths: cfg.Spectral.Wavelengths,
		targets:     cfg.Spectral.RGB,
	}

	for _, s := range samples {
		printSample(s)
		if err := exports.run(s, len(samples) > 1); err != nil {
			log.Printf("Warning: export of %s failed: %v", s.CombinedID, err)
		}
	}
}

func selectSamples(ds *dataset.Dataset, registry *patients.Registry, combinedID, patientID, fov string) ([]*dataset.Sample, error) {
	switch {
	case combinedID != "":
		s, err := ds.ByCombinedID(combinedID)
		if err != nil {
			return nil, err
		}
		return []*dataset.Sample{s}, nil

	case patientID != "":
		if id, err := registry.Resolve(patientID); err == nil {
			patientID = id
		}
		if fov == "" {
			return ds.ByPatient(patientID)
		}
		n, err := dataset.ParseFOV(fov)
		if err != nil {
			return nil, err
		}
		s, err := ds.ByPatientAndFOV(patientID, n)
		if err != nil {
			return nil, err
		}
		return []*dataset.Sample{s}, nil
	}
	return nil, nil
}

func printSample(s *dataset.Sample) {
	shape := s.Cube.Shape()
	fmt.Printf("\nSample %s (patient %s, FOV %d)\n", s.CombinedID, s.PatientID, s.FOV)
	fmt.Printf("Cube: %d bands x %d x %d pixels\n", shape[0], shape[1], shape[2])

	if row, ok := s.Metadata.Row(); ok {
		for _, column := range row.Columns() {
			value, _ := row.Get(column)
			fmt.Printf("  %s: %s\n", column, value)
		}
	} else {
		fmt.Println("  metadata: <absent>")
	}

	if mean, std, err := s.Cube.BandStats(0); err == nil {
		fmt.Printf("  band 0: mean %.4f, std %.4f\n", mean, std)
	}
}

func printUnmatched(ds *dataset.Dataset) {
	fmt.Println("\nSamples without a metadata row:")
	for _, e := range ds.Unmatched() {
		fmt.Printf("- %s (%s)\n", e.CombinedID, filepath.Base(e.FilePath))
	}

	fmt.Println("\nPatients in the metadata table without samples:")
	for _, id := range ds.PatientsWithoutSamples() {
		fmt.Printf("- %s\n", id)
	}
}

func writeReport(ds *dataset.Dataset, path string, cores int, category string) error {
	fmt.Printf("\nSummarising %d samples with %d cores...\n", ds.Len(), cores)
	startTime := time.Now()

	r := report.NewReporter(ds, report.Params{NumCores: cores, Category: category})
	if err := r.Process(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Report saved to %s in %.2f seconds (%d unreadable samples)\n", path, time.Since(startTime).Seconds(), r.Failed())
	return nil
}

type exportOptions struct {
	rgb, spectrum, pixels, bands string
	rgbWidth                     int
	wavelengths                  []float64
	targets                      [3]float64
}

// run writes the requested exports of s. When several samples are selected
// the combined id is added to every file name.
func (o exportOptions) run(s *dataset.Sample, suffix bool) error {
	if o.rgb == "" && o.spectrum == "" && o.bands == "" {
		return nil
	}

	viewer, err := visualization.NewViewer(s.Cube, o.wavelengths)
	if err != nil {
		return err
	}

	name := func(path string) string {
		if !suffix {
			return path
		}
		ext := filepath.Ext(path)
		return strings.TrimSuffix(path, ext) + "_" + s.CombinedID + ext
	}

	if o.rgb != "" {
		img, err := viewer.RGB(o.targets[0], o.targets[1], o.targets[2])
		if err != nil {
			return err
		}
		if err := visualization.SaveImage(img, name(o.rgb), o.rgbWidth); err != nil {
			return err
		}
		fmt.Printf("RGB composite saved to %s\n", name(o.rgb))
	}

	if o.spectrum != "" {
		pixels, err := parsePixels(o.pixels)
		if err != nil {
			return err
		}
		if len(pixels) == 0 {
			pixels = []visualization.Pixel{{Y: s.Cube.Height / 2, X: s.Cube.Width / 2}}
		}
		f, err := os.Create(name(o.spectrum))
		if err != nil {
			return err
		}
		if err := viewer.PlotSpectra(f, pixels); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Spectrum chart saved to %s\n", name(o.spectrum))
	}

	if o.bands != "" {
		dir := o.bands
		if suffix {
			dir = filepath.Join(dir, s.CombinedID)
		}
		if err := viewer.SaveBandSequence(dir); err != nil {
			return err
		}
		fmt.Printf("Bands saved to %s\n", dir)
	}

	return nil
}

// parsePixels reads "y,x;y,x".
func parsePixels(s string) ([]visualization.Pixel, error) {
	var out []visualization.Pixel
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		yx := strings.Split(part, ",")
		if len(yx) != 2 {
			return nil, fmt.Errorf("pixel %q is not y,x", part)
		}
		y, err := strconv.Atoi(strings.TrimSpace(yx[0]))
		if err != nil {
			return nil, err
		}
		x, err := strconv.Atoi(strings.TrimSpace(yx[1]))
		if err != nil {
			return nil, err
		}
		out = append(out, visualization.Pixel{Y: y, X: x})
	}
	return out, nil
}
