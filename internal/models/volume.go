package models

import (
	"fmt"
)

// DataType identifies the element type of voxel samples on disk.
type DataType int

const (
	Int32 DataType = iota
	Int16
	Uint8
	Float32
	Float64
)

// Size returns the number of bytes per element
func (d DataType) Size() int {
	switch d {
	case Int32, Float32:
		return 4
	case Int16:
		return 2
	case Uint8:
		return 1
	case Float64:
		return 8
	}
	return 0
}

func (d DataType) String() string {
	switch d {
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ByteOrder is the declared byte order of an on-disk sample buffer.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (b ByteOrder) String() string {
	if b == LittleEndian {
		return "littleEndian"
	}
	return "bigEndian"
}

// Volume is an N-dimensional voxel array.
//
// Data is stored in column-major (Fortran) order: the first index varies
// fastest. This is the order of the on-disk 2dseq buffer and of the NIfTI
// data block, so reshaping never moves samples.
type Volume struct {
	// Data holds the samples as float64 regardless of the source type
	Data []float64

	// Shape is the size of each dimension
	Shape []int

	// DataType is the element type the samples should be written as.
	// It becomes Float64 once a slope or offset correction is applied.
	DataType DataType
}

// NewVolume allocates a zero-filled volume.
func NewVolume(shape []int, dt DataType) *Volume {
	return &Volume{
		Data:     make([]float64, NumElements(shape)),
		Shape:    append([]int(nil), shape...),
		DataType: dt,
	}
}

// NumElements returns the product of the dimensions in shape.
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides returns the column-major stride of every dimension.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i, s := range shape {
		strides[i] = acc
		acc *= s
	}
	return strides
}

// Rank returns the number of dimensions
func (v *Volume) Rank() int { return len(v.Shape) }

// Index converts a multi-index into a linear offset in Data.
func (v *Volume) Index(idx ...int) int {
	off, stride := 0, 1
	for i, s := range v.Shape {
		off += idx[i] * stride
		stride *= s
	}
	return off
}

// At returns the sample at the given multi-index
func (v *Volume) At(idx ...int) float64 { return v.Data[v.Index(idx...)] }

// Reshape changes the shape without moving samples.
func (v *Volume) Reshape(shape []int) error {
	if NumElements(shape) != len(v.Data) {
		return fmt.Errorf("cannot reshape %d samples into %v", len(v.Data), shape)
	}
	v.Shape = append([]int(nil), shape...)
	return nil
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	return &Volume{
		Data:     append([]float64(nil), v.Data...),
		Shape:    append([]int(nil), v.Shape...),
		DataType: v.DataType,
	}
}

// Slab copies the index range [from, to) along axis into a new volume.
func (v *Volume) Slab(axis, from, to int) (*Volume, error) {
	if axis < 0 || axis >= len(v.Shape) {
		return nil, fmt.Errorf("axis %d out of range for shape %v", axis, v.Shape)
	}
	if from < 0 || to > v.Shape[axis] || from >= to {
		return nil, fmt.Errorf("invalid range [%d, %d) along axis %d of size %d", from, to, axis, v.Shape[axis])
	}

	shape := append([]int(nil), v.Shape...)
	shape[axis] = to - from
	out := NewVolume(shape, v.DataType)

	// inner: contiguous block below axis; outer: everything above it
	inner := 1
	for _, s := range v.Shape[:axis] {
		inner *= s
	}
	outer := 1
	for _, s := range v.Shape[axis+1:] {
		outer *= s
	}

	n := 0
	for o := 0; o < outer; o++ {
		base := o * v.Shape[axis] * inner
		start := base + from*inner
		n += copy(out.Data[n:], v.Data[start:start+(to-from)*inner])
	}
	return out, nil
}

// Permute reorders the axes: axis i of the result is axis perm[i] of v.
func (v *Volume) Permute(perm []int) (*Volume, error) {
	if len(perm) != len(v.Shape) {
		return nil, fmt.Errorf("permutation %v does not match rank %d", perm, len(v.Shape))
	}
	seen := make([]bool, len(perm))
	shape := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
		shape[i] = v.Shape[p]
	}

	out := NewVolume(shape, v.DataType)
	src := Strides(v.Shape)
	idx := make([]int, len(shape))
	for n := range out.Data {
		off := 0
		for i, p := range perm {
			off += idx[i] * src[p]
		}
		out.Data[n] = v.Data[off]

		// advance the output multi-index, first axis fastest
		for i := range idx {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// SqueezeTrailing drops trailing singleton dimensions beyond minRank.
func (v *Volume) SqueezeTrailing(minRank int) {
	for len(v.Shape) > minRank && v.Shape[len(v.Shape)-1] == 1 {
		v.Shape = v.Shape[:len(v.Shape)-1]
	}
}

// VolumeGeometry places a volume in scanner space.
type VolumeGeometry struct {
	// Resolution is the voxel spacing in mm for each spatial axis
	Resolution []float64

	// Orientation is the normalized direction cosine matrix (columns are
	// the image axes)
	Orientation [3][3]float64

	// Translation is the world position of voxel (0,0,0)
	Translation [3]float64

	// Affine maps voxel indices to world coordinates
	Affine [4][4]float64
}

// Image pairs a (sub-)volume with its geometry.
type Image struct {
	Volume   *Volume
	Geometry VolumeGeometry
}
