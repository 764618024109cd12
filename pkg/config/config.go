// Package config provides configuration loading and management for hsibiopsy.
// It handles loading configuration from YAML files, environment overrides and
// provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the data locations.
const (
	EnvDataDir      = "HSI_DATA_DIR"
	EnvMetadataPath = "METADATA_CSV_PATH"
)

// ErrIncomplete is returned by Validate when a required location is unset.
var ErrIncomplete = errors.New("incomplete configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Data locations
	Data struct {
		// Dir is the directory holding one .mat cube per patient and FOV
		Dir string `yaml:"dir"`

		// MetadataPath is the processed metadata table (CSV or TSV). It may
		// also be a URL.
		MetadataPath string `yaml:"metadataPath"`

		// KeyColumn is the patient identifier column of the metadata table
		KeyColumn string `yaml:"keyColumn"`

		// CubeDataset is the variable holding the cube inside each .mat file
		CubeDataset string `yaml:"cubeDataset"`
	} `yaml:"data"`

	// Spectral parameters
	Spectral struct {
		// Wavelengths lists the centre wavelength in nm of every band. When
		// empty, band indices are used instead.
		Wavelengths []float64 `yaml:"wavelengths"`

		// RGB are the target wavelengths for the red, green and blue channels
		RGB [3]float64 `yaml:"rgb"`
	} `yaml:"spectral"`

	// Patients enumeration parameters
	Patients struct {
		// CategoryColumn groups patients, e.g. by tumour type
		CategoryColumn string `yaml:"categoryColumn"`
	} `yaml:"patients"`

	// Server parameters
	Server struct {
		// Port is the HTTP port of the dataset browser
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.KeyColumn = "id"
	cfg.Data.CubeDataset = "Ref_hyper"

	cfg.Spectral.RGB = [3]float64{650, 550, 450}

	cfg.Patients.CategoryColumn = "type_of_tumor"

	cfg.Server.Port = 9019

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides the data locations with HSI_DATA_DIR and
// METADATA_CSV_PATH when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvMetadataPath); v != "" {
		c.Data.MetadataPath = v
	}
}

// Validate checks that both data locations are known.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("%w: data directory not set (data.dir or %s)", ErrIncomplete, EnvDataDir)
	}
	if c.Data.MetadataPath == "" {
		return fmt.Errorf("%w: metadata table not set (data.metadataPath or %s)", ErrIncomplete, EnvMetadataPath)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
