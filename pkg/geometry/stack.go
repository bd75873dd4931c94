package geometry

import (
	"fmt"
	"math"
	"strings"
)

// positionTolerance is the displacement below which an axis is considered still.
const positionTolerance = 1e-6

var axisNames = [3]string{"x", "y", "z"}

// StackDirection reports, for each sub-volume, the axis along which the
// slice positions advance and its sign, e.g. "z+" for one sub-volume or
// "z+x-y-" for a three-plane localizer.
func StackDirection(positions [][]float64, numSubVolumes int) (string, error) {
	if len(positions) < 2 {
		return "", fmt.Errorf("stack direction needs at least 2 positions, got %d", len(positions))
	}
	if numSubVolumes < 1 || len(positions)%numSubVolumes != 0 {
		return "", fmt.Errorf("%d positions cannot be split into %d sub-volumes", len(positions), numSubVolumes)
	}
	for i, p := range positions {
		if len(p) != 3 {
			return "", fmt.Errorf("position %d has %d coordinates, want 3", i, len(p))
		}
	}

	perVolume := len(positions) / numSubVolumes
	if perVolume < 2 {
		return "", fmt.Errorf("sub-volumes of %d slice cannot define a direction", perVolume)
	}

	var sb strings.Builder
	for v := 0; v < numSubVolumes; v++ {
		first := positions[v*perVolume]
		last := positions[(v+1)*perVolume-1]

		axis := -1
		for k := 0; k < 3; k++ {
			if math.Abs(last[k]-first[k]) <= positionTolerance {
				continue
			}
			if axis >= 0 {
				return "", fmt.Errorf("sub-volume %d moves along more than one axis", v)
			}
			axis = k
		}
		if axis < 0 {
			return "", fmt.Errorf("sub-volume %d does not move along any axis", v)
		}

		sb.WriteString(axisNames[axis])
		if last[axis] > first[axis] {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String(), nil
}
