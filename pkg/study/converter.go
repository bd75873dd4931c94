package study

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/pkg/config"
	"bruker2nifti/pkg/scan"
)

// ErrNoScans is returned for a folder without numbered scan folders.
var ErrNoScans = errors.New("study has no numbered scan folders, is it a ParaVision study?")

// ScanResult is the outcome of converting one scan.
type ScanResult struct {
	Scan  string
	Files []string
	Err   error

	// SkippedRecons are reconstructions that failed while the rest of the
	// scan was written
	SkippedRecons []scan.ReconError
}

// Report collects the results of a study conversion in scan order.
type Report struct {
	StudyDir  string
	OutputDir string
	Results   []ScanResult
	Elapsed   time.Duration
}

// Failed returns the scans that could not be converted.
func (r *Report) Failed() []ScanResult {
	var out []ScanResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Converter converts the scans of one study.
//
// Every scan is written to <output>/<study>/<study>_<scan>/ with files
// prefixed <study>_<scan>. A scan that fails is recorded in the report and
// does not stop the others.
type Converter struct {
	StudyDir  string
	OutputDir string

	// StudyName defaults to the cleaned subject name
	StudyName string

	// Scans are the scan folder names to convert, all by default
	Scans []string

	cfg *config.Config
}

// NewConverter checks both folders and fills in the defaults.
func NewConverter(studyDir, outputDir, studyName string, cfg *config.Config) (*Converter, error) {
	for _, dir := range []string{studyDir, outputDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("folder does not exist: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	c := &Converter{StudyDir: studyDir, OutputDir: outputDir, StudyName: studyName, cfg: cfg}

	scans, err := NewMetadata(studyDir).ListScans()
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoScans, studyDir)
	}
	c.Scans = scans

	if c.StudyName == "" {
		subject, err := NewMetadata(studyDir).ReadSubject()
		if err != nil {
			return nil, err
		}
		c.StudyName = StudyName(SubjectName(subject))
	}
	if c.StudyName == "" {
		c.StudyName = filepath.Base(filepath.Clean(studyDir))
		log.WithField("name", c.StudyName).Warn("No subject name, using the study folder name")
	}
	return c, nil
}

// SelectScans restricts the conversion to the given scan folder names.
func (c *Converter) SelectScans(scans []string) {
	if len(scans) > 0 {
		c.Scans = scans
	}
}

// writeOptions returns the per-scan output options
func writeOptions(cfg *config.Config) WriteOptions {
	return WriteOptions{
		Nifti:             cfg.NiftiOptions(),
		Compress:          cfg.Conversion.Compress,
		SaveHumanReadable: cfg.Output.SaveHumanReadable,
		SavePreviews:      cfg.Output.SavePreviews,
	}
}

// ConvertScan converts the scan folder scanDir into outDir, naming files
// after name.
func (c *Converter) ConvertScan(scanDir, outDir, name string) ([]string, error) {
	return ConvertScan(scanDir, outDir, name, c.cfg)
}

// ConvertScan assembles and writes a single scan folder. Reconstructions
// that fail are logged and left out.
func ConvertScan(scanDir, outDir, name string, cfg *config.Config) ([]string, error) {
	files, _, err := convertScan(scanDir, outDir, name, cfg)
	return files, err
}

func convertScan(scanDir, outDir, name string, cfg *config.Config) ([]string, []scan.ReconError, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bundle, err := scan.NewAssembler(cfg.ScanParams(scanDir)).Process()
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		name = "scan"
	}
	files, err := WriteBundle(bundle, outDir, name, writeOptions(cfg))
	return files, bundle.Failed, err
}

// Convert converts the selected scans, Conversion.NumCores at a time.
func (c *Converter) Convert() *Report {
	start := time.Now()
	studyOut := filepath.Join(c.OutputDir, c.StudyName)
	report := &Report{
		StudyDir:  c.StudyDir,
		OutputDir: studyOut,
		Results:   make([]ScanResult, len(c.Scans)),
	}

	log.WithFields(log.Fields{
		"study":  c.StudyDir,
		"output": studyOut,
		"scans":  len(c.Scans),
	}).Info("Study conversion started")

	numCores := c.cfg.Conversion.NumCores
	if numCores < 1 {
		numCores = runtime.NumCPU()
	}
	scansPerCore := (len(c.Scans) + numCores - 1) / numCores

	var wg sync.WaitGroup
	for core := 0; core < numCores; core++ {
		first := core * scansPerCore
		last := min(first+scansPerCore, len(c.Scans))
		if first >= last {
			break
		}

		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for i := first; i < last; i++ {
				report.Results[i] = c.convertOne(c.Scans[i], studyOut)
			}
		}(first, last)
	}
	wg.Wait()

	report.Elapsed = time.Since(start)
	if PathContainsWhitespace(c.OutputDir, c.StudyName) {
		log.Info("Output path/filename contains whitespace")
	}
	return report
}

func (c *Converter) convertOne(id, studyOut string) ScanResult {
	name := ScanFolderName(c.StudyName, id)
	logger := log.WithField("scan", id)
	logger.Info("Converting scan")

	files, skipped, err := convertScan(filepath.Join(c.StudyDir, id), filepath.Join(studyOut, name), name, c.cfg)
	if err != nil {
		logger.WithError(err).Error("Scan conversion failed")
	}
	return ScanResult{Scan: id, Files: files, Err: err, SkippedRecons: skipped}
}
