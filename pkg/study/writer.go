package study

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/pkg/dump"
	"bruker2nifti/pkg/nifti"
	"bruker2nifti/pkg/preview"
	"bruker2nifti/pkg/scan"
)

// WriteOptions controls which files are written for a bundle.
type WriteOptions struct {
	Nifti nifti.Options

	// Compress writes .nii.gz
	Compress bool

	// SaveHumanReadable writes parameter dumps, slopes and the summary
	SaveHumanReadable bool

	// SavePreviews writes mid-slice JPEGs for every image
	SavePreviews bool
}

// WriteBundle writes every image of b and its side files into outDir,
// prefixing all file names with name. It returns the written paths.
func WriteBundle(b *scan.Bundle, outDir, name string, opts WriteOptions) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}
	logger := log.WithField("output", outDir)

	var written []string
	prefix := filepath.Join(outDir, name)
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for i, r := range b.Recons {
		label := subscanLabel(i, len(b.Recons))

		for j, img := range r.Images {
			path := filepath.Join(outDir, ImageFileName(name, i, len(b.Recons), j, len(r.Images), opts.Compress))
			if err := add(path, nifti.WriteFile(path, img, opts.Nifti)); err != nil {
				return written, err
			}
			logger.WithField("file", filepath.Base(path)).Info("Image saved")

			if opts.SavePreviews {
				v, err := preview.NewViewer(img)
				if err != nil {
					logger.WithError(err).Warn("Skipping preview")
					continue
				}
				paths, err := v.SaveMidSlices(prefix + label + subvolLabel(j, len(r.Images)))
				written = append(written, paths...)
				if err != nil {
					return written, err
				}
			}
		}

		if !opts.SaveHumanReadable {
			continue
		}
		if err := add(prefix+label+"_visu_pars.txt", dump.WriteParameters(prefix+label+"_visu_pars.txt", r.VisuPars)); err != nil {
			return written, err
		}
		if r.Reco.Len() > 0 {
			if err := add(prefix+label+"_reco.txt", dump.WriteParameters(prefix+label+"_reco.txt", r.Reco)); err != nil {
				return written, err
			}
		}
		if r.Visu.HasDataSlope {
			if err := add(prefix+label+"_slope.txt", dump.WriteSlope(prefix+label+"_slope.txt", r.Visu.DataSlope)); err != nil {
				return written, err
			}
		}
	}

	if b.Diffusion != nil {
		paths, err := writeDiffusion(b.Diffusion, prefix)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	if opts.SaveHumanReadable {
		if b.Acqp.Len() > 0 {
			if err := add(prefix+"_acqp.txt", dump.WriteParameters(prefix+"_acqp.txt", b.Acqp)); err != nil {
				return written, err
			}
		}
		if b.Method.Len() > 0 {
			if err := add(prefix+"_method.txt", dump.WriteParameters(prefix+"_method.txt", b.Method)); err != nil {
				return written, err
			}
		}
		if err := add(prefix+"_summary.txt", dump.WriteSummary(prefix+"_summary.txt", b)); err != nil {
			return written, err
		}
	}
	return written, nil
}

// writeDiffusion writes the gradient tables. Shell files are only written
// when shells were separated.
func writeDiffusion(d *scan.Diffusion, prefix string) ([]string, error) {
	var written []string
	type table struct {
		path string
		fn   func(string) error
	}

	tables := []table{
		{prefix + "_DwEffBval.txt", func(p string) error { return dump.WriteVector(p, d.BVals) }},
		{prefix + "_DwGradVec.txt", func(p string) error { return dump.WriteMatrix(p, d.BVecs) }},
	}
	if len(d.Dirs) > 0 {
		tables = append(tables, table{prefix + "_DwDir.txt", func(p string) error { return dump.WriteMatrix(p, d.Dirs) }})
	}
	for k, s := range d.Shells {
		tables = append(tables,
			table{fmt.Sprintf("%s_DwEffBval_shell%d.txt", prefix, k), func(p string) error { return dump.WriteVector(p, s.BVals) }},
			table{fmt.Sprintf("%s_DwGradVec_shell%d.txt", prefix, k), func(p string) error { return dump.WriteMatrix(p, s.BVecs) }},
		)
	}

	for _, t := range tables {
		if err := t.fn(t.path); err != nil {
			return written, err
		}
		written = append(written, t.path)
	}
	return written, nil
}
