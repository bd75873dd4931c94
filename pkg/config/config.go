// Package config provides configuration loading and management for bruker2nifti.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"bruker2nifti/pkg/geometry"
	"bruker2nifti/pkg/nifti"
	"bruker2nifti/pkg/scan"
	"bruker2nifti/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Conversion parameters
	Conversion struct {
		// NiftiVersion is 1 or 2
		NiftiVersion int `yaml:"niftiVersion"`

		// QFormCode and SFormCode are written to every header
		QFormCode int `yaml:"qformCode"`
		SFormCode int `yaml:"sformCode"`

		// CorrectSlope and CorrectOffset apply VisuCoreDataSlope/VisuCoreDataOffs
		CorrectSlope  bool `yaml:"correctSlope"`
		CorrectOffset bool `yaml:"correctOffset"`

		// Compress writes .nii.gz instead of .nii
		Compress bool `yaml:"compress"`

		// NumCores is how many scans are converted in parallel, 0 for one
		// per CPU. Each scan is always converted on a single goroutine.
		NumCores int `yaml:"numCores"`
	} `yaml:"conversion"`

	// Geometry conventions
	Geometry struct {
		// Profile is "head" or "body-as-head"
		Profile string `yaml:"profile"`

		// KeepSameDet keeps the determinant sign of the scanner matrix
		KeepSameDet bool `yaml:"keepSameDet"`

		// ConsiderSubjectPosition flips the y axis for prone subjects
		// (sample upside down)
		ConsiderSubjectPosition bool `yaml:"considerSubjectPosition"`
	} `yaml:"geometry"`

	// Output parameters
	Output struct {
		// SaveHumanReadable writes parameter dumps and the summary
		SaveHumanReadable bool `yaml:"saveHumanReadable"`

		// SavePreviews writes mid-slice JPEGs of every image
		SavePreviews bool `yaml:"savePreviews"`

		// Verbose controls the level of logging output: 0 warn, 1 info, 2 debug, 3 trace
		Verbose int `yaml:"verbose"`

		// GetAcqp, GetMethod and GetReco keep the parameter maps in the output
		GetAcqp   bool `yaml:"getAcqp"`
		GetMethod bool `yaml:"getMethod"`
		GetReco   bool `yaml:"getReco"`
	} `yaml:"output"`

	// Diffusion parameters
	Diffusion struct {
		NormaliseBVectors bool `yaml:"normaliseBVectors"`
		SeparateShells    bool `yaml:"separateShells"`
		NumShells         int  `yaml:"numShells"`

		// NumInitialDirToSkip is inferred from b-values below 10 when negative
		NumInitialDirToSkip int `yaml:"numInitialDirToSkip"`
	} `yaml:"diffusion"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Conversion.NiftiVersion = 1
	cfg.Conversion.QFormCode = nifti.XformScannerAnat
	cfg.Conversion.SFormCode = nifti.XformAlignedAnat
	cfg.Conversion.Compress = true
	cfg.Conversion.NumCores = 1

	cfg.Geometry.Profile = geometry.ProfileHead.String()
	cfg.Geometry.KeepSameDet = true

	cfg.Output.SaveHumanReadable = true
	cfg.Output.Verbose = 1

	cfg.Diffusion.NormaliseBVectors = true
	cfg.Diffusion.NumShells = 3
	cfg.Diffusion.NumInitialDirToSkip = -1

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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

// Validate checks values that would otherwise fail deep inside a conversion.
func (c *Config) Validate() error {
	if c.Conversion.NiftiVersion != 1 && c.Conversion.NiftiVersion != 2 {
		return fmt.Errorf("%w: %d", nifti.ErrUnsupportedVersion, c.Conversion.NiftiVersion)
	}
	if _, err := geometry.ParseProfile(c.Geometry.Profile); err != nil {
		return err
	}
	if c.Diffusion.NumShells < 1 {
		return fmt.Errorf("numShells must be positive, got %d", c.Diffusion.NumShells)
	}
	return nil
}

// LogLevel maps Output.Verbose onto a logrus level.
func (c *Config) LogLevel() log.Level {
	switch {
	case c.Output.Verbose <= 0:
		return log.WarnLevel
	case c.Output.Verbose == 1:
		return log.InfoLevel
	case c.Output.Verbose == 2:
		return log.DebugLevel
	}
	return log.TraceLevel
}

// GeometryOptions returns the affine conventions. The profile must have
// passed Validate.
func (c *Config) GeometryOptions() geometry.Options {
	p, _ := geometry.ParseProfile(c.Geometry.Profile)
	return geometry.Options{
		Profile:                 p,
		KeepSameDet:             c.Geometry.KeepSameDet,
		ConsiderSubjectPosition: c.Geometry.ConsiderSubjectPosition,
	}
}

// ScanParams returns the assembler parameters for the scan folder dir.
func (c *Config) ScanParams(dir string) *scan.Params {
	return &scan.Params{
		ScanDir:  dir,
		Geometry: c.GeometryOptions(),
		Correction: volume.Options{
			CorrectSlope:  c.Conversion.CorrectSlope,
			CorrectOffset: c.Conversion.CorrectOffset,
		},
		GetAcqp:   c.Output.GetAcqp,
		GetMethod: c.Output.GetMethod,
		GetReco:   c.Output.GetReco,
		Diffusion: scan.DiffusionParams{
			NormaliseBVectors:   c.Diffusion.NormaliseBVectors,
			SeparateShells:      c.Diffusion.SeparateShells,
			NumShells:           c.Diffusion.NumShells,
			NumInitialDirToSkip: c.Diffusion.NumInitialDirToSkip,
		},
	}
}

// NiftiOptions returns the header options of written images.
func (c *Config) NiftiOptions() nifti.Options {
	return nifti.Options{
		Version:   c.Conversion.NiftiVersion,
		QFormCode: c.Conversion.QFormCode,
		SFormCode: c.Conversion.SFormCode,
	}
}
