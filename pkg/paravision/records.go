package paravision

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame group types found in VisuFGOrderDesc.
const (
	FGSlice     = "FG_SLICE"
	FGEcho      = "FG_ECHO"
	FGMovie     = "FG_MOVIE"
	FGDiffusion = "FG_DIFFUSION"
	FGCycle     = "FG_CYCLE"
)

// FrameGroup is one entry of VisuFGOrderDesc, e.g. "(5, <FG_SLICE>, <>, 0, 2)".
type FrameGroup struct {
	Len       int
	Type      string
	Comment   string
	ValsStart int
	ValsCount int
}

// ParseFrameGroup decodes a single frame group descriptor.
func ParseFrameGroup(s string) (FrameGroup, error) {
	inner := strings.TrimSpace(s)
	inner = strings.TrimPrefix(inner, "(")
	inner = strings.TrimSuffix(inner, ")")
	parts := strings.Split(inner, ",")
	if len(parts) < 2 {
		return FrameGroup{}, fmt.Errorf("malformed frame group %q", s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return FrameGroup{}, fmt.Errorf("malformed frame group length in %q: %w", s, err)
	}
	fg := FrameGroup{Len: n, Type: strings.Trim(parts[1], "<>")}
	if len(parts) > 2 {
		fg.Comment = strings.Trim(parts[2], "<>")
	}
	if len(parts) > 4 {
		fg.ValsStart, _ = strconv.Atoi(parts[3])
		fg.ValsCount, _ = strconv.Atoi(parts[4])
	}
	return fg, nil
}

// VisuParams is the typed view of the visu_pars fields the converter needs.
// Optional fields are nil (slices) or flagged with a Has* boolean.
type VisuParams struct {
	// CoreSize is VisuCoreSize: matrix size of one frame (2 or 3 entries)
	CoreSize []int

	// FrameCount is VisuCoreFrameCount, 1 when absent
	FrameCount int

	// Extent is VisuCoreExtent in mm
	Extent []float64

	// FrameThickness is VisuCoreFrameThickness in mm
	FrameThickness []float64

	// WordType and ByteOrder describe the 2dseq samples
	WordType  string
	ByteOrder string

	// DataSlope and DataOffset are VisuCoreDataSlope/VisuCoreDataOffs
	DataSlope     Value
	HasDataSlope  bool
	DataOffset    Value
	HasDataOffset bool

	// Orientation holds one 9-element row per frame
	Orientation [][]float64

	// Position holds one 3-element row per frame
	Position [][]float64

	// SubjectPosition is VisuSubjectPosition (Head_Prone or Head_Supine)
	SubjectPosition string

	// SequenceName is VisuAcqSequenceName
	SequenceName string

	// FrameGroups is VisuFGOrderDesc, in storage order (first varies fastest)
	FrameGroups []FrameGroup

	// SlicePacksSlices is VisuCoreSlicePacksSlices, verbatim
	SlicePacksSlices Value
	HasSlicePacks    bool
}

// NewVisuParams extracts the typed record. VisuCoreSize is mandatory.
func NewVisuParams(m ParameterMap) (VisuParams, error) {
	var vp VisuParams
	var err error

	if vp.CoreSize, err = m.Ints("VisuCoreSize"); err != nil {
		return vp, err
	}

	vp.FrameCount = int(m.FloatOr("VisuCoreFrameCount", 1))
	if vp.FrameCount < 1 {
		vp.FrameCount = 1
	}

	vp.Extent, _ = m.Floats("VisuCoreExtent")
	vp.FrameThickness, _ = m.Floats("VisuCoreFrameThickness")
	vp.WordType = m.TextOr("VisuCoreWordType", "")
	vp.ByteOrder = m.TextOr("VisuCoreByteOrder", "")

	vp.DataSlope, vp.HasDataSlope = m.Get("VisuCoreDataSlope")
	vp.DataOffset, vp.HasDataOffset = m.Get("VisuCoreDataOffs")

	if v, ok := m.Get("VisuCoreOrientation"); ok {
		if vp.Orientation, ok = v.Rows(9); !ok {
			return vp, mistyped(VisuPars, "VisuCoreOrientation", "rows of 9 numbers", v)
		}
	}
	if v, ok := m.Get("VisuCorePosition"); ok {
		if vp.Position, ok = v.Rows(3); !ok {
			return vp, mistyped(VisuPars, "VisuCorePosition", "rows of 3 numbers", v)
		}
	}

	vp.SubjectPosition = m.TextOr("VisuSubjectPosition", "")
	vp.SequenceName = m.TextOr("VisuAcqSequenceName", "")

	if v, ok := m.Get("VisuFGOrderDesc"); ok {
		descs, _ := v.Strings()
		for _, d := range descs {
			fg, err := ParseFrameGroup(d)
			if err != nil {
				return vp, &FieldError{Kind: ErrFieldType, File: VisuPars, Field: "VisuFGOrderDesc", Msg: err.Error()}
			}
			vp.FrameGroups = append(vp.FrameGroups, fg)
		}
	}

	vp.SlicePacksSlices, vp.HasSlicePacks = m.Get("VisuCoreSlicePacksSlices")
	return vp, nil
}

// SpatialRank is the number of spatial dimensions of a frame
func (vp VisuParams) SpatialRank() int { return len(vp.CoreSize) }

// AcquisitionMethod derives a short method label such as "FLASH" or
// "DtiEpi", from method, visu_pars and acqp in that order.
func AcquisitionMethod(method, visu, acqp ParameterMap) string {
	candidates := []string{
		method.TextOr("Method", ""),
		visu.TextOr("VisuAcqSequenceName", ""),
		acqp.TextOr("ACQ_method", ""),
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		parts := strings.Split(c, ":")
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return "unknown"
}

// IsDiffusion reports whether a method label names a diffusion-weighted
// sequence (DtiEpi, DwiEpi, ...).
func IsDiffusion(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "dtiepi") || strings.Contains(l, "dwi")
}
