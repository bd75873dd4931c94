package geometry

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"bruker2nifti/internal/models"
)

// roundDecimals suppresses floating noise left by the inversion.
const roundDecimals = 4

var (
	// swapSlicePhase exchanges the second and third image axes, turning the
	// scanner (slice, phase, read) order into (row, col, slice).
	swapSlicePhase = mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 0, 1,
		0, 1, 0,
	})

	// bodyToHead maps a quadruped body frame onto a biped head frame.
	bodyToHead = mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 0, 1,
		0, -1, 0,
	})
)

// Affine derives the voxel-to-world matrix of one (sub-)volume.
//
// orientation is a VisuCoreOrientation row (9 direction cosines, row-major),
// position a VisuCorePosition row and resolution the voxel spacing of the
// three spatial axes. The steps run in a fixed order:
//
//  1. build the scanner matrix from orientation and position
//  2. invert it and round to 4 decimals
//  3. swap image axes 2 and 3, then apply the profile remap
//  4. normalise column signs by their dominant entry
//  5. scale by the resolution
//  6. flip the anterior-posterior row for prone subjects, if requested
//  7. restore the scanner determinant sign, if requested
func Affine(orientation, position []float64, subjectPosition string, resolution []float64, opts Options) ([4][4]float64, error) {
	var out [4][4]float64

	if len(orientation) != 9 {
		return out, fmt.Errorf("orientation must have 9 direction cosines, got %d", len(orientation))
	}
	if len(position) != 3 {
		return out, fmt.Errorf("position must have 3 coordinates, got %d", len(position))
	}
	if len(resolution) != 3 {
		return out, fmt.Errorf("%w: resolution has %d entries, want 3", ErrSpatDim, len(resolution))
	}
	prone, err := checkSubjectPosition(subjectPosition)
	if err != nil {
		return out, err
	}

	scanner := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			scanner.Set(i, j, orientation[3*i+j])
		}
		scanner.Set(i, 3, position[i])
	}
	scanner.Set(3, 3, 1)

	if mat.Det(scanner) == 0 {
		return out, ErrZeroDeterminant
	}

	var inv mat.Dense
	if err := inv.Inverse(scanner); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return out, fmt.Errorf("%w: %v", ErrZeroDeterminant, err)
		}
		log.WithField("condition", float64(cond)).Warn("Scanner orientation is ill-conditioned")
	}
	inv.Apply(func(_, _ int, v float64) float64 { return roundTo(v, roundDecimals) }, &inv)

	scannerDet := mat.Det(&inv)
	if scannerDet == 0 {
		return out, ErrZeroDeterminant
	}

	var swapped mat.Dense
	swapped.Mul(inv.Slice(0, 3, 0, 3), swapSlicePhase)

	rot := &swapped
	if opts.Profile == ProfileBodyAsHead {
		var remapped mat.Dense
		remapped.Mul(bodyToHead, &swapped)
		rot = &remapped
	}

	normalizePivots(rot)

	var scaled mat.Dense
	scaled.Mul(rot, mat.NewDiagDense(3, append([]float64(nil), resolution...)))

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = scaled.At(i, j)
		}
		out[i][3] = inv.At(i, 3)
	}
	out[3][3] = 1

	if opts.ConsiderSubjectPosition && prone {
		for j := 0; j < 4; j++ {
			out[1][j] = -out[1][j]
		}
	}

	if opts.KeepSameDet {
		if d := Det3(out); math.Signbit(d) != math.Signbit(scannerDet) {
			for j := 0; j < 3; j++ {
				out[0][j] = -out[0][j]
			}
		}
	}

	log.WithFields(log.Fields{
		"profile": opts.Profile,
		"det":     Det3(out),
	}).Debug("Computed affine")
	return out, nil
}

// normalizePivots flips columns so the dominant entry of the first two
// columns is negative and that of the third is positive.
func normalizePivots(rot *mat.Dense) {
	for j := 0; j < 3; j++ {
		col := mat.Col(nil, j, rot)
		p := 0
		for i := range col {
			if math.Abs(col[i]) > math.Abs(col[p]) {
				p = i
			}
		}
		if (j < 2 && col[p] > 0) || (j == 2 && col[p] < 0) {
			for i := range col {
				rot.Set(i, j, -col[i])
			}
		}
	}
}

// Det3 returns the determinant of the rotational block of an affine.
func Det3(a [4][4]float64) float64 {
	return mat.Det(mat.NewDense(3, 3, []float64{
		a[0][0], a[0][1], a[0][2],
		a[1][0], a[1][1], a[1][2],
		a[2][0], a[2][1], a[2][2],
	}))
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// NewVolumeGeometry computes the affine and splits it into direction
// cosines and translation.
func NewVolumeGeometry(orientation, position []float64, subjectPosition string, resolution []float64, opts Options) (models.VolumeGeometry, error) {
	affine, err := Affine(orientation, position, subjectPosition, resolution, opts)
	if err != nil {
		return models.VolumeGeometry{}, err
	}

	g := models.VolumeGeometry{
		Resolution: append([]float64(nil), resolution...),
		Affine:     affine,
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.Orientation[i][j] = affine[i][j] / resolution[j]
		}
		g.Translation[i] = affine[i][3]
	}
	return g, nil
}
