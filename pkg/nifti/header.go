// Package nifti writes single-file NIfTI-1 and NIfTI-2 images.
//
// Header layouts follow the official definitions,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h and
// https://nifti.nimh.nih.gov/pub/dist/doc/nifti2.h
package nifti

// Header1 is the 348-byte NIfTI-1 header.
//
// Type translation from the C header:
//
//	C     Go
//	-------------
//	int   int32
//	float float32
//	short int16
//	char  byte
type Header1 struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]byte // Unused
	UnusedDbName       [18]byte // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      byte     // Unused
	DimInfo            byte     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     byte       // Slice timing order
	XYZTUnits     byte       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]byte // Any text you like
	AuxFile [24]byte // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b param
	QuaternC float32 // Quaternion c param
	QuaternD float32 // Quaternion d param
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]byte // 'name' or meaning of data

	Magic [4]byte // "n+1\0" for single-file images
}

// Header2 is the 540-byte NIfTI-2 header.
type Header2 struct {
	SizeOfHdr     int32      // Must be 540
	Magic         [8]byte    // "n+2\0\r\n\032\n"
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	Dim           [8]int64   // Data array dimensions
	IntentP1      float64    // 1st intent parameter
	IntentP2      float64    // 2nd intent parameter
	IntentP3      float64    // 3rd intent parameter
	PixDim        [8]float64 // Grid spacing
	VoxOffset     int64      // Offset into .nii file
	SclSlope      float64    // Data scaling: slope
	SclInter      float64    // Data scaling: offset
	CalMax        float64    // Max display intensity
	CalMin        float64    // Min display intensity
	SliceDuration float64    // Time for 1 slice
	TOffset       float64    // Time axis shift
	SliceStart    int64      // First slice index
	SliceEnd      int64      // Last slice index
	Descrip       [80]byte   // Any text you like
	AuxFile       [24]byte   // Auxiliary filename
	QFormCode     int32      // NIFTI_XFORM_* code
	SFormCode     int32      // NIFTI_XFORM_* code
	QuaternB      float64    // Quaternion b param
	QuaternC      float64    // Quaternion c param
	QuaternD      float64    // Quaternion d param
	QOffsetX      float64    // Quaternion x shift
	QOffsetY      float64    // Quaternion y shift
	QOffsetZ      float64    // Quaternion z shift
	SRowX         [4]float64 // 1st row affine transform
	SRowY         [4]float64 // 2nd row affine transform
	SRowZ         [4]float64 // 3rd row affine transform
	SliceCode     int32      // Slice timing order
	XYZTUnits     int32      // Units of pixdim[1..4]
	IntentCode    int32      // NIFTI_INTENT_* code
	IntentName    [16]byte   // 'name' or meaning of data
	DimInfo       byte       // MRI slice ordering
	UnusedStr     [15]byte   // Unused
}

const (
	header1Size = 348
	header2Size = 540

	// the data block starts after the header and a 4-byte extension flag
	voxOffset1 = header1Size + 4
	voxOffset2 = header2Size + 4
)

var (
	magic1 = [4]byte{'n', '+', '1', 0}
	magic2 = [8]byte{'n', '+', '2', 0, '\r', '\n', 0x1a, '\n'}
)

// Datatype codes (NIFTI_TYPE_*)
const (
	TypeUint8   int16 = 2
	TypeInt16   int16 = 4
	TypeInt32   int16 = 8
	TypeFloat32 int16 = 16
	TypeFloat64 int16 = 64
)

// Transform codes (NIFTI_XFORM_*)
const (
	XformUnknown     = 0
	XformScannerAnat = 1
	XformAlignedAnat = 2
	XformTalairach   = 3
	XformMNI152      = 4
)

// unitsMMSec is NIFTI_UNITS_MM | NIFTI_UNITS_SEC
const unitsMMSec = 2 | 8
