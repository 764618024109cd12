// hsiserve is a read-only HTTP browser over a hyperspectral biopsy dataset.
// Every request that touches a cube reads it from disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/carbocation/pfx"

	"hsibiopsy/pkg/config"
	"hsibiopsy/pkg/dataset"
	"hsibiopsy/pkg/hsi"
	"hsibiopsy/pkg/patients"
)

// Global holds the state shared by all handlers. It is read-only once the
// server starts.
type Global struct {
	Config   *config.Config
	Dataset  *dataset.Dataset
	Registry *patients.Registry
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	dataDir := flag.String("data", "", "Directory of .mat cubes (overrides config and HSI_DATA_DIR)")
	metadataPath := flag.String("metadata", "", "Metadata CSV/TSV path or URL (overrides config and METADATA_CSV_PATH)")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	cfg.ApplyEnv()
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *metadataPath != "" {
		cfg.Data.MetadataPath = *metadataPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalln(err)
	}

	global, err := NewGlobal(context.Background(), cfg)
	if err != nil {
		log.Fatalln(err)
	}

	log.Printf("Serving %d samples from %s\n", global.Dataset.Len(), cfg.Data.Dir)
	log.Printf("Listening on http://localhost:%d\n", cfg.Server.Port)
	log.Fatalln(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port), router(global)))
}

// NewGlobal opens the dataset described by cfg.
func NewGlobal(ctx context.Context, cfg *config.Config) (*Global, error) {
	ds, err := dataset.Open(ctx, cfg.Data.Dir, cfg.Data.MetadataPath,
		dataset.WithKeyColumn(cfg.Data.KeyColumn),
		dataset.WithLoader(hsi.NewHDF5Loader(cfg.Data.CubeDataset)),
	)
	if err != nil {
		return nil, pfx.Err(err)
	}

	registry, err := patients.NewRegistry(ds.Table(), cfg.Patients.CategoryColumn)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &Global{Config: cfg, Dataset: ds, Registry: registry}, nil
}
