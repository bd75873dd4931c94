package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/paravision"
)

var (
	// ErrStructural marks a declared shape that does not match the data.
	ErrStructural = errors.New("structural inconsistency")

	// ErrUnknownDataType is returned for a word type outside the four known codes.
	ErrUnknownDataType = errors.New("unknown data type")

	// ErrMissingData is returned when the 2dseq file does not exist.
	ErrMissingData = errors.New("missing image data")
)

// DataFile is the binary sample file of a reconstruction.
const DataFile = "2dseq"

var wordTypes = map[string]models.DataType{
	"_32BIT_SGN_INT":  models.Int32,
	"_16BIT_SGN_INT":  models.Int16,
	"_8BIT_UNSGN_INT": models.Uint8,
	"_32BIT_FLOAT":    models.Float32,
}

// ParseWordType maps a VisuCoreWordType/RECO_wordtype code to a DataType.
func ParseWordType(s string) (models.DataType, error) {
	dt, ok := wordTypes[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDataType, s)
	}
	return dt, nil
}

// ParseByteOrder maps "littleEndian" and "bigEndian". Anything else is big
// endian, the scanner default.
func ParseByteOrder(s string) models.ByteOrder {
	if s == "littleEndian" {
		return models.LittleEndian
	}
	return models.BigEndian
}

// Format resolves the sample type and byte order, preferring visu_pars and
// falling back to reco.
func Format(vp paravision.VisuParams, reco paravision.ParameterMap) (models.DataType, models.ByteOrder, error) {
	word := vp.WordType
	if word == "" {
		word = reco.TextOr("RECO_wordtype", "")
	}
	order := vp.ByteOrder
	if order == "" {
		order = reco.TextOr("RECO_byte_order", "")
	}

	dt, err := ParseWordType(word)
	if err != nil {
		return 0, 0, err
	}
	return dt, ParseByteOrder(order), nil
}

// RawBuffer is the flat, untyped content of a 2dseq file.
type RawBuffer struct {
	Bytes     []byte
	DataType  models.DataType
	ByteOrder models.ByteOrder
}

// ReadRaw loads a whole 2dseq file.
func ReadRaw(path string, dt models.DataType, order models.ByteOrder) (*RawBuffer, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingData, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewRawBuffer(b, dt, order)
}

// NewRawBuffer wraps bytes already in memory.
func NewRawBuffer(b []byte, dt models.DataType, order models.ByteOrder) (*RawBuffer, error) {
	size := dt.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataType, dt)
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %s samples", ErrStructural, len(b), dt)
	}
	return &RawBuffer{Bytes: b, DataType: dt, ByteOrder: order}, nil
}

// Len is the number of samples
func (r *RawBuffer) Len() int { return len(r.Bytes) / r.DataType.Size() }

// HostOrder returns the byte order of the running machine.
func HostOrder() models.ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return models.LittleEndian
	}
	return models.BigEndian
}

// ToHost swaps every sample in place when the declared order differs from
// the host order.
func (r *RawBuffer) ToHost() {
	if r.ByteOrder == HostOrder() {
		return
	}
	size := r.DataType.Size()
	if size > 1 {
		for off := 0; off+size <= len(r.Bytes); off += size {
			s := r.Bytes[off : off+size]
			for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
				s[i], s[j] = s[j], s[i]
			}
		}
	}
	r.ByteOrder = HostOrder()
}

// Samples converts the buffer to host order and decodes every sample.
func (r *RawBuffer) Samples() []float64 {
	r.ToHost()

	n := r.Len()
	out := make([]float64, n)
	b := r.Bytes
	ne := binary.NativeEndian
	switch r.DataType {
	case models.Int32:
		for i := range out {
			out[i] = float64(int32(ne.Uint32(b[4*i:])))
		}
	case models.Int16:
		for i := range out {
			out[i] = float64(int16(ne.Uint16(b[2*i:])))
		}
	case models.Uint8:
		for i := range out {
			out[i] = float64(b[i])
		}
	case models.Float32:
		for i := range out {
			out[i] = float64(math.Float32frombits(ne.Uint32(b[4*i:])))
		}
	case models.Float64:
		for i := range out {
			out[i] = math.Float64frombits(ne.Uint64(b[8*i:]))
		}
	}
	return out
}
