package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/internal/models"
)

// ErrUnsupportedVersion is returned for a NIfTI version other than 1 or 2.
var ErrUnsupportedVersion = errors.New("unsupported NIfTI version")

// Options controls the header of a written image.
type Options struct {
	// Version is 1 or 2
	Version int

	// QFormCode and SFormCode are NIFTI_XFORM_* codes
	QFormCode int
	SFormCode int

	// Description goes into the descrip field (truncated to 79 bytes)
	Description string
}

// DefaultOptions returns NIfTI-1 with scanner qform and aligned sform.
func DefaultOptions() Options {
	return Options{Version: 1, QFormCode: XformScannerAnat, SFormCode: XformAlignedAnat}
}

// Extension returns the file extension for an image.
func Extension(compress bool) string {
	if compress {
		return ".nii.gz"
	}
	return ".nii"
}

// WriteFile writes img to path, gzip-compressed when path ends in ".gz".
func WriteFile(path string, img models.Image, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(bw)
		w = gz
	}

	if err := Encode(w, img, opts); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"path":    path,
		"version": opts.Version,
		"shape":   img.Volume.Shape,
	}).Debug("Wrote NIfTI image")
	return f.Close()
}

// Encode writes header, extension flag and data block to w, little endian.
func Encode(w io.Writer, img models.Image, opts Options) error {
	v := img.Volume
	if v == nil || len(v.Shape) == 0 || len(v.Shape) > 7 {
		return fmt.Errorf("cannot encode volume of rank %d", rankOf(v))
	}
	code, bitpix, err := typeCode(v.DataType)
	if err != nil {
		return err
	}

	var hdr any
	switch opts.Version {
	case 1:
		h, err := header1(img, opts, code, bitpix)
		if err != nil {
			return err
		}
		hdr = h
	case 2:
		hdr = header2(img, opts, code, bitpix)
	default:
		return fmt.Errorf("%w: %d (want 1 or 2)", ErrUnsupportedVersion, opts.Version)
	}

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}
	return writeData(w, v)
}

func rankOf(v *models.Volume) int {
	if v == nil {
		return 0
	}
	return len(v.Shape)
}

func typeCode(dt models.DataType) (code, bitpix int16, err error) {
	switch dt {
	case models.Uint8:
		return TypeUint8, 8, nil
	case models.Int16:
		return TypeInt16, 16, nil
	case models.Int32:
		return TypeInt32, 32, nil
	case models.Float32:
		return TypeFloat32, 32, nil
	case models.Float64:
		return TypeFloat64, 64, nil
	}
	return 0, 0, fmt.Errorf("no NIfTI datatype for %s", dt)
}

// pixdim returns pixdim[0..7]: qfac, the spatial spacing and 1 elsewhere.
func pixdim(img models.Image, q Quatern) [8]float64 {
	var p [8]float64
	p[0] = q.QFac
	for i := 1; i < 8; i++ {
		p[i] = 1
	}
	for i, r := range img.Geometry.Resolution {
		if i < 3 {
			p[i+1] = r
		}
	}
	return p
}

func header1(img models.Image, opts Options, code, bitpix int16) (*Header1, error) {
	h := &Header1{
		SizeOfHdr: header1Size,
		DataType:  code,
		BitPix:    bitpix,
		VoxOffset: voxOffset1,
		XYZTUnits: unitsMMSec,
		QFormCode: int16(opts.QFormCode),
		SFormCode: int16(opts.SFormCode),
		Magic:     magic1,
	}

	shape := img.Volume.Shape
	h.Dim[0] = int16(len(shape))
	for i := 1; i < 8; i++ {
		h.Dim[i] = 1
	}
	for i, s := range shape {
		if s > math.MaxInt16 {
			return nil, fmt.Errorf("dimension %d of size %d does not fit a NIfTI-1 header, use NIfTI-2", i, s)
		}
		h.Dim[i+1] = int16(s)
	}

	q := ToQuatern(img.Geometry.Affine)
	for i, p := range pixdim(img, q) {
		h.PixDim[i] = float32(p)
	}
	h.QuaternB, h.QuaternC, h.QuaternD = float32(q.B), float32(q.C), float32(q.D)
	h.QOffsetX, h.QOffsetY, h.QOffsetZ = float32(q.OffsetX), float32(q.OffsetY), float32(q.OffsetZ)

	a := img.Geometry.Affine
	for j := 0; j < 4; j++ {
		h.SRowX[j] = float32(a[0][j])
		h.SRowY[j] = float32(a[1][j])
		h.SRowZ[j] = float32(a[2][j])
	}
	copy(h.Descrip[:79], opts.Description)
	return h, nil
}

func header2(img models.Image, opts Options, code, bitpix int16) *Header2 {
	h := &Header2{
		SizeOfHdr: header2Size,
		Magic:     magic2,
		DataType:  code,
		BitPix:    bitpix,
		VoxOffset: voxOffset2,
		XYZTUnits: unitsMMSec,
		QFormCode: int32(opts.QFormCode),
		SFormCode: int32(opts.SFormCode),
	}

	shape := img.Volume.Shape
	h.Dim[0] = int64(len(shape))
	for i := 1; i < 8; i++ {
		h.Dim[i] = 1
	}
	for i, s := range shape {
		h.Dim[i+1] = int64(s)
	}

	q := ToQuatern(img.Geometry.Affine)
	h.PixDim = pixdim(img, q)
	h.QuaternB, h.QuaternC, h.QuaternD = q.B, q.C, q.D
	h.QOffsetX, h.QOffsetY, h.QOffsetZ = q.OffsetX, q.OffsetY, q.OffsetZ

	a := img.Geometry.Affine
	copy(h.SRowX[:], a[0][:])
	copy(h.SRowY[:], a[1][:])
	copy(h.SRowZ[:], a[2][:])
	copy(h.Descrip[:79], opts.Description)
	return h
}

// writeData encodes the samples in the volume's data type. The volume is
// already in column-major order, which is the NIfTI order.
func writeData(w io.Writer, v *models.Volume) error {
	size := v.DataType.Size()
	buf := make([]byte, size*len(v.Data))
	le := binary.LittleEndian
	for i, x := range v.Data {
		b := buf[i*size:]
		switch v.DataType {
		case models.Uint8:
			b[0] = uint8(x)
		case models.Int16:
			le.PutUint16(b, uint16(int16(x)))
		case models.Int32:
			le.PutUint32(b, uint32(int32(x)))
		case models.Float32:
			le.PutUint32(b, math.Float32bits(float32(x)))
		case models.Float64:
			le.PutUint64(b, math.Float64bits(x))
		}
	}
	_, err := w.Write(buf)
	return err
}
