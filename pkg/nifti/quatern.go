package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Quatern is the qform representation of an affine.
type Quatern struct {
	B, C, D                   float64
	OffsetX, OffsetY, OffsetZ float64
	Spacing                   [3]float64
	QFac                      float64
}

// ToQuatern converts an affine into quaternion parameters, following
// nifti_mat44_to_quatern. The rotational block is orthogonalised first
// (polar decomposition), so skewed affines yield the nearest rotation.
func ToQuatern(a [4][4]float64) Quatern {
	q := Quatern{OffsetX: a[0][3], OffsetY: a[1][3], OffsetZ: a[2][3], QFac: 1}

	r := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		col := [3]float64{a[0][j], a[1][j], a[2][j]}
		n := math.Sqrt(col[0]*col[0] + col[1]*col[1] + col[2]*col[2])
		if n == 0 {
			n = 1
			col = [3]float64{}
			col[j] = 1
		}
		q.Spacing[j] = n
		for i := 0; i < 3; i++ {
			r.Set(i, j, col[i]/n)
		}
	}

	if mat.Det(r) <= 0 {
		q.QFac = -1
		for i := 0; i < 3; i++ {
			r.Set(i, 2, -r.At(i, 2))
		}
	}
	r = nearestRotation(r)

	r11, r12, r13 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r21, r22, r23 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r31, r32, r33 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	var qa, qb, qc, qd float64
	if t := r11 + r22 + r33 + 1; t > 0.5 {
		qa = 0.5 * math.Sqrt(t)
		qb = 0.25 * (r32 - r23) / qa
		qc = 0.25 * (r13 - r31) / qa
		qd = 0.25 * (r21 - r12) / qa
	} else {
		xd := 1 + r11 - (r22 + r33)
		yd := 1 + r22 - (r11 + r33)
		zd := 1 + r33 - (r11 + r22)
		switch {
		case xd > 1:
			qb = 0.5 * math.Sqrt(xd)
			qc = 0.25 * (r12 + r21) / qb
			qd = 0.25 * (r13 + r31) / qb
			qa = 0.25 * (r32 - r23) / qb
		case yd > 1:
			qc = 0.5 * math.Sqrt(yd)
			qb = 0.25 * (r12 + r21) / qc
			qd = 0.25 * (r23 + r32) / qc
			qa = 0.25 * (r13 - r31) / qc
		default:
			qd = 0.5 * math.Sqrt(zd)
			qb = 0.25 * (r13 + r31) / qd
			qc = 0.25 * (r23 + r32) / qd
			qa = 0.25 * (r21 - r12) / qd
		}
		if qa < 0 {
			qb, qc, qd = -qb, -qc, -qd
		}
	}
	q.B, q.C, q.D = qb, qc, qd
	return q
}

// nearestRotation returns U·Vᵀ from the SVD of r.
func nearestRotation(r *mat.Dense) *mat.Dense {
	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		return r
	}
	var u, v, out mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	out.Mul(&u, v.T())
	return &out
}

// Affine rebuilds the qform affine, following nifti_quatern_to_mat44.
func (q Quatern) Affine() [4][4]float64 {
	b, c, d := q.B, q.C, q.D
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		n := 1 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*n, c*n, d*n
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	xd, yd, zd := q.Spacing[0], q.Spacing[1], q.Spacing[2]*q.QFac
	return [4][4]float64{
		{(a*a + b*b - c*c - d*d) * xd, 2 * (b*c - a*d) * yd, 2 * (b*d + a*c) * zd, q.OffsetX},
		{2 * (b*c + a*d) * xd, (a*a + c*c - b*b - d*d) * yd, 2 * (c*d - a*b) * zd, q.OffsetY},
		{2 * (b*d - a*c) * xd, 2 * (c*d + a*b) * yd, (a*a + d*d - c*c - b*b) * zd, q.OffsetZ},
		{0, 0, 0, 1},
	}
}
