package scan

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/pkg/geometry"
	"bruker2nifti/pkg/paravision"
)

// b-values below this are treated as b0 when inferring the directions to skip
const b0Threshold = 10

// SeparateShells splits interleaved multi-shell directions: after skipping
// the first skip entries, entry i belongs to shell i mod numShells. A
// negative skip is inferred as the number of b-values below 10. Every shell
// must end up with the same number of directions.
func SeparateShells(bvals []float64, bvecs [][3]float64, numShells, skip int) ([]Shell, error) {
	if numShells < 1 {
		return nil, fmt.Errorf("number of shells must be positive, got %d", numShells)
	}
	if len(bvals) != len(bvecs) {
		return nil, fmt.Errorf("%d b-values but %d b-vectors", len(bvals), len(bvecs))
	}
	if skip < 0 {
		skip = 0
		for _, b := range bvals {
			if b < b0Threshold {
				skip++
			}
		}
	}
	if skip > len(bvals) {
		return nil, fmt.Errorf("cannot skip %d of %d directions", skip, len(bvals))
	}

	shells := make([]Shell, numShells)
	for i := skip; i < len(bvals); i++ {
		k := (i - skip) % numShells
		shells[k].BVals = append(shells[k].BVals, bvals[i])
		shells[k].BVecs = append(shells[k].BVecs, bvecs[i])
	}

	want := len(shells[0].BVals)
	for k, s := range shells {
		if len(s.BVals) != want {
			return nil, fmt.Errorf("shell %d has %d directions, shell 0 has %d", k, len(s.BVals), want)
		}
	}
	return shells, nil
}

func vectorRows(m paravision.ParameterMap, name string) ([][3]float64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return nil, false
	}
	rows, ok := v.Rows(3)
	if !ok {
		log.WithField("field", name).Warn("Diffusion vectors are not rows of 3, ignoring")
		return nil, false
	}
	out := make([][3]float64, len(rows))
	for i, r := range rows {
		copy(out[i][:], r)
	}
	return out, true
}

// extractDiffusion reads the gradient scheme from method and rotates the
// gradient vectors with the orientation of the first frame.
func (a *Assembler) extractDiffusion(method paravision.ParameterMap, vp paravision.VisuParams) (*Diffusion, error) {
	d := &Diffusion{}
	p := a.params.Diffusion

	if bvals, err := method.Floats("DwEffBval"); err == nil {
		d.BVals = bvals
	} else {
		log.WithError(err).Warn("No b-values in method")
	}

	if grad, ok := vectorRows(method, "DwGradVec"); ok {
		if len(vp.Orientation) == 0 {
			return nil, fmt.Errorf("cannot reorient b-vectors: %w", &paravision.FieldError{
				Kind: paravision.ErrMissingField, File: paravision.VisuPars, Field: "VisuCoreOrientation",
			})
		}
		rot, err := geometry.BVectorOrientation(vp.Orientation[0], vp.SubjectPosition, a.params.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to compute b-vector orientation: %w", err)
		}
		d.BVecs = geometry.ApplyReorientation(rot, grad)
		if p.NormaliseBVectors {
			d.BVecs = geometry.NormaliseBVectors(d.BVecs)
		}
	}

	if dirs, ok := vectorRows(method, "DwDir"); ok {
		d.Dirs = dirs
		if p.NormaliseBVectors {
			d.Dirs = geometry.NormaliseBVectors(dirs)
		}
	}

	if p.SeparateShells && d.BVals != nil && d.BVecs != nil {
		shells, err := SeparateShells(d.BVals, d.BVecs, p.NumShells, p.NumInitialDirToSkip)
		if err != nil {
			return nil, fmt.Errorf("failed to separate shells: %w", err)
		}
		d.Shells = shells
	}
	return d, nil
}
