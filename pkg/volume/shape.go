package volume

import (
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/paravision"
)

// PreShape is VisuCoreSize followed by the frame count when there is more
// than one frame. Samples left over form an extra trailing echo axis.
func PreShape(coreSize []int, frameCount, total int) ([]int, error) {
	if len(coreSize) == 0 {
		return nil, fmt.Errorf("%w: empty core size", ErrStructural)
	}
	shape := slices.Clone(coreSize)
	if frameCount > 1 {
		shape = append(shape, frameCount)
	}

	n := models.NumElements(shape)
	switch {
	case n <= 0:
		return nil, fmt.Errorf("%w: non-positive shape %v", ErrStructural, shape)
	case total == n:
		return shape, nil
	case total%n == 0:
		return append(shape, total/n), nil
	}
	return nil, fmt.Errorf("%w: %d samples do not fill shape %v", ErrStructural, total, shape)
}

// Reinterleave expands the frame axis of v into the frame groups declared
// in VisuFGOrderDesc, first group fastest. When a non-slice group precedes
// FG_SLICE the slice axis is moved right after the spatial axes, so that
// echoes or repetitions end up last. Samples are only reordered.
//
// TODO: verify the slice-axis move against a multi-echo fixture whose
// VisuFGOrderDesc lists FG_ECHO before FG_SLICE.
func Reinterleave(v *models.Volume, spatialRank int, groups []paravision.FrameGroup) (*models.Volume, error) {
	if len(groups) < 2 || spatialRank >= v.Rank() {
		return v, nil
	}

	lens := make([]int, len(groups))
	slice := -1
	for i, g := range groups {
		lens[i] = g.Len
		if g.Type == paravision.FGSlice && slice < 0 {
			slice = i
		}
	}
	if models.NumElements(lens) != v.Shape[spatialRank] {
		log.WithFields(log.Fields{
			"groups": lens,
			"frames": v.Shape[spatialRank],
		}).Warn("Frame groups do not match the frame count, keeping frames flat")
		return v, nil
	}

	shape := slices.Clone(v.Shape[:spatialRank])
	shape = append(shape, lens...)
	shape = append(shape, v.Shape[spatialRank+1:]...)

	out := v.Clone()
	if err := out.Reshape(shape); err != nil {
		return nil, err
	}
	if slice <= 0 {
		return out, nil
	}

	perm := make([]int, 0, len(shape))
	for i := 0; i < spatialRank; i++ {
		perm = append(perm, i)
	}
	perm = append(perm, spatialRank+slice)
	for i := spatialRank; i < len(shape); i++ {
		if i != spatialRank+slice {
			perm = append(perm, i)
		}
	}
	log.WithField("perm", perm).Debug("Moving slice axis after spatial axes")
	return out.Permute(perm)
}

// CountSubVolumes is the number of distinct orientations left after
// collapsing consecutive duplicate VisuCoreOrientation rows.
func CountSubVolumes(orientation [][]float64) int {
	n := len(EliminateConsecutiveDuplicatesFunc(orientation, func(a, b []float64) bool {
		return slices.Equal(a, b)
	}))
	if n < 1 {
		return 1
	}
	return n
}

// SplitSubVolumes cuts v into n equal parts along the slice axis (axis 2).
func SplitSubVolumes(v *models.Volume, n int) ([]*models.Volume, error) {
	if n <= 1 {
		return []*models.Volume{v}, nil
	}
	if v.Rank() < 3 {
		return nil, fmt.Errorf("%w: cannot split rank %d data into %d sub-volumes", ErrStructural, v.Rank(), n)
	}
	depth := v.Shape[2]
	if depth%n != 0 {
		return nil, fmt.Errorf("%w: %d slices do not split into %d sub-volumes", ErrStructural, depth, n)
	}

	per := depth / n
	out := make([]*models.Volume, 0, n)
	for i := 0; i < n; i++ {
		sub, err := v.Slab(2, i*per, (i+1)*per)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}
