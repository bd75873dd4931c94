package volume

import (
	"fmt"
	"math"
	"slices"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/internal/models"
)

// Operation is how a correction factor combines with a sample.
type Operation int

const (
	// Scale multiplies (VisuCoreDataSlope).
	Scale Operation = iota
	// Shift adds (VisuCoreDataOffs).
	Shift
)

func (op Operation) String() string {
	if op == Shift {
		return "offset"
	}
	return "slope"
}

// EliminateConsecutiveDuplicates collapses runs of equal values.
func EliminateConsecutiveDuplicates[T comparable](xs []T) []T {
	return slices.Compact(slices.Clone(xs))
}

// EliminateConsecutiveDuplicatesFunc collapses runs of values equal under eq.
func EliminateConsecutiveDuplicatesFunc[T any](xs []T, eq func(a, b T) bool) []T {
	return slices.CompactFunc(slices.Clone(xs), eq)
}

// Correct applies a slope or offset to v in place.
//
// A single factor applies to every sample. Longer factor lists apply one
// entry per index of a matching axis: frameAxis if its length matches, else
// the last axis for data of rank 3 or less, else the second-to-last then the
// last axis. When no axis matches, consecutive duplicate factors are
// collapsed and the match retried. A factor list containing infinity leaves
// v untouched.
func Correct(v *models.Volume, factors []float64, op Operation, frameAxis int) error {
	if len(factors) == 0 {
		return nil
	}
	for _, f := range factors {
		if math.IsInf(f, 0) {
			log.WithFields(log.Fields{
				"correction": op,
				"factors":    len(factors),
			}).Warn("Correction factors contain infinity, skipping correction")
			return nil
		}
	}

	if len(factors) == 1 {
		apply(v, op, func(int) float64 { return factors[0] })
		return nil
	}

	axis := matchingAxis(v.Shape, len(factors), frameAxis)
	if axis < 0 {
		deduped := EliminateConsecutiveDuplicates(factors)
		if len(deduped) == 1 {
			apply(v, op, func(int) float64 { return deduped[0] })
			return nil
		}
		axis = matchingAxis(v.Shape, len(deduped), frameAxis)
		if axis < 0 {
			return fmt.Errorf("%w: %d %s factors do not match data shape %v", ErrStructural, len(factors), op, v.Shape)
		}
		log.WithFields(log.Fields{
			"correction": op,
			"before":     len(factors),
			"after":      len(deduped),
		}).Debug("Matched correction factors after removing consecutive duplicates")
		factors = deduped
	}

	strides := models.Strides(v.Shape)
	stride, n := strides[axis], v.Shape[axis]
	apply(v, op, func(i int) float64 { return factors[(i/stride)%n] })
	return nil
}

func apply(v *models.Volume, op Operation, factor func(i int) float64) {
	switch op {
	case Scale:
		for i := range v.Data {
			v.Data[i] *= factor(i)
		}
	case Shift:
		for i := range v.Data {
			v.Data[i] += factor(i)
		}
	}
	v.DataType = models.Float64
}

func matchingAxis(shape []int, n, frameAxis int) int {
	if frameAxis >= 0 && frameAxis < len(shape) && shape[frameAxis] == n {
		return frameAxis
	}
	rank := len(shape)
	if rank == 0 {
		return -1
	}
	if rank >= 4 && shape[rank-2] == n {
		return rank - 2
	}
	if shape[rank-1] == n {
		return rank - 1
	}
	return -1
}
