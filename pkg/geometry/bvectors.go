package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// zeroNormTolerance marks b0 directions, which normalise to the zero vector.
const zeroNormTolerance = 1e-4

// BVectorOrientation returns the pure rotation applied to diffusion
// directions: the rotational block of the affine computed with zero
// position and unit resolution.
func BVectorOrientation(orientation []float64, subjectPosition string, opts Options) ([3][3]float64, error) {
	var rot [3][3]float64
	affine, err := Affine(orientation, []float64{0, 0, 0}, subjectPosition, []float64{1, 1, 1}, opts)
	if err != nil {
		return rot, err
	}
	for i := 0; i < 3; i++ {
		copy(rot[i][:], affine[i][:3])
	}
	return rot, nil
}

// ApplyReorientation rotates every row v of vectors into m·v.
func ApplyReorientation(m [3][3]float64, vectors [][3]float64) [][3]float64 {
	if len(vectors) == 0 {
		return nil
	}
	v := mat.NewDense(len(vectors), 3, nil)
	for i, row := range vectors {
		v.SetRow(i, row[:])
	}
	rot := mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})

	var res mat.Dense
	res.Mul(v, rot.T())

	out := make([][3]float64, len(vectors))
	for i := range out {
		mat.Row(out[i][:], i, &res)
	}
	return out
}

// NormaliseBVectors scales every row to unit length. Rows whose norm is
// below 1e-4, or not a number, become the zero vector.
func NormaliseBVectors(vectors [][3]float64) [][3]float64 {
	out := make([][3]float64, len(vectors))
	for i, row := range vectors {
		n := floats.Norm(row[:], 2)
		if math.IsNaN(n) || n < zeroNormTolerance {
			continue
		}
		floats.ScaleTo(out[i][:], 1/n, row[:])
	}
	return out
}
