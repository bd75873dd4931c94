package geometry

import "fmt"

// Resolution returns the voxel spacing in mm.
//
// In-plane spacing is extent[i] / size[i]. A 2D acquisition gets the first
// frame thickness appended as its through-plane spacing.
func Resolution(extent []float64, size []int, frameThickness []float64) ([]float64, error) {
	if len(extent) != len(size) {
		return nil, fmt.Errorf("%w: extent has %d entries but size has %d", ErrSpatDim, len(extent), len(size))
	}

	res := make([]float64, 0, 3)
	for i := range size {
		if size[i] <= 0 {
			return nil, fmt.Errorf("%w: non-positive matrix size %v", ErrSpatDim, size)
		}
		res = append(res, extent[i]/float64(size[i]))
	}

	switch len(size) {
	case 2:
		if len(frameThickness) == 0 {
			return nil, fmt.Errorf("%w: 2D acquisition without frame thickness", ErrSpatDim)
		}
		res = append(res, frameThickness[0])
	case 3:
	default:
		return nil, fmt.Errorf("%w: %d spatial dimensions", ErrSpatDim, len(size))
	}
	return res, nil
}
