// Package fixture writes small synthetic ParaVision studies for tests.
package fixture

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Axial is the identity orientation of one frame.
var Axial = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Scan describes one synthetic scan with a single reconstruction.
type Scan struct {
	// Method is the method file's Method entry, e.g. "Bruker:FLASH"
	Method string

	CoreSize        []int
	FrameCount      int
	Extent          []float64
	FrameThickness  float64
	Orientation     [][]float64
	Position        [][]float64
	SubjectPosition string
	Slope           []float64

	// Data is written as little-endian int16. Nil means 1, 2, 3, ...
	Data []int16

	// MethodExtra is appended verbatim to the method file
	MethodExtra string

	// SkipVisuPars leaves out pdata/1/visu_pars
	SkipVisuPars bool
}

// Flash returns a 4x4 two-frame axial scan.
func Flash() Scan {
	return Scan{
		Method:          "Bruker:FLASH",
		CoreSize:        []int{4, 4},
		FrameCount:      2,
		Extent:          []float64{20, 20},
		FrameThickness:  0.5,
		Orientation:     [][]float64{Axial, Axial},
		Position:        [][]float64{{-10, -10, 0}, {-10, -10, 0.5}},
		SubjectPosition: "Head_Supine",
		Slope:           []float64{1, 1},
	}
}

func numbers(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func rows(rs [][]float64) string {
	var flat []float64
	for _, r := range rs {
		flat = append(flat, r...)
	}
	return numbers(flat)
}

func ints(vals []int) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

func header() string {
	return "##TITLE=Parameter List, ParaVision 6.0.1\n##JCAMPDX=4.24\n"
}

// WriteScan writes acqp, method and pdata/1 below dir.
func WriteScan(dir string, s Scan) error {
	recon := filepath.Join(dir, "pdata", "1")
	if err := os.MkdirAll(recon, 0755); err != nil {
		return err
	}

	acqp := header() +
		"##$ACQ_sw_version=<PV 6.0.1>\n" +
		"##$NR=1\n" +
		fmt.Sprintf("##$NI=%d\n", s.FrameCount) +
		"##$ACQ_n_echo_images=1\n" +
		fmt.Sprintf("##$ACQ_slice_thick=%g\n", s.FrameThickness) +
		"##$ACQ_protocol_name=( 64 )\n<T2_TurboRARE>\n" +
		"##END=\n"

	method := header() +
		fmt.Sprintf("##$Method=<%s>\n", s.Method) +
		fmt.Sprintf("##$PVM_SpatDimEnum=<%dD>\n", len(s.CoreSize)) +
		fmt.Sprintf("##$PVM_Matrix=( %d )\n%s\n", len(s.CoreSize), numbers(ints(s.CoreSize))) +
		"##$PVM_ScanTime=90500\n" +
		s.MethodExtra +
		"##END=\n"

	reco := header() +
		"##$RECO_wordtype=_16BIT_SGN_INT\n" +
		"##$RECO_byte_order=littleEndian\n" +
		"##END=\n"

	n := len(s.Orientation)
	visu := header() +
		fmt.Sprintf("##$VisuCoreFrameCount=%d\n", s.FrameCount) +
		fmt.Sprintf("##$VisuCoreDim=%d\n", len(s.CoreSize)) +
		fmt.Sprintf("##$VisuCoreSize=( %d )\n%s\n", len(s.CoreSize), numbers(ints(s.CoreSize))) +
		fmt.Sprintf("##$VisuCoreExtent=( %d )\n%s\n", len(s.Extent), numbers(s.Extent)) +
		fmt.Sprintf("##$VisuCoreFrameThickness=( 1 )\n%g\n", s.FrameThickness) +
		"##$VisuCoreWordType=_16BIT_SGN_INT\n" +
		"##$VisuCoreByteOrder=littleEndian\n" +
		fmt.Sprintf("##$VisuCoreDataSlope=( %d )\n%s\n", len(s.Slope), numbers(s.Slope)) +
		fmt.Sprintf("##$VisuCoreOrientation=( %d, 9 )\n%s\n", n, rows(s.Orientation)) +
		fmt.Sprintf("##$VisuCorePosition=( %d, 3 )\n%s\n", len(s.Position), rows(s.Position)) +
		fmt.Sprintf("##$VisuSubjectPosition=%s\n", s.SubjectPosition) +
		fmt.Sprintf("##$VisuAcqSequenceName=( 64 )\n<%s>\n", s.Method) +
		"##END=\n"

	files := map[string]string{
		filepath.Join(dir, "acqp"):    acqp,
		filepath.Join(dir, "method"):  method,
		filepath.Join(recon, "reco"): reco,
	}
	if !s.SkipVisuPars {
		files[filepath.Join(recon, "visu_pars")] = visu
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}

	data := s.Data
	if data == nil {
		total := 1
		for _, d := range s.CoreSize {
			total *= d
		}
		if s.FrameCount > 1 {
			total *= s.FrameCount
		}
		data = make([]int16, total)
		for i := range data {
			data[i] = int16(i + 1)
		}
	}
	buf := make([]byte, 2*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return os.WriteFile(filepath.Join(recon, "2dseq"), buf, 0644)
}

// WriteSubject writes a subject file for a study folder.
func WriteSubject(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	content := header() +
		fmt.Sprintf("##$SUBJECT_name_string=( 64 )\n<%s>\n", name) +
		fmt.Sprintf("##$SUBJECT_name=( 64 )\n<%s>\n", name) +
		"##$SUBJECT_id=( 64 )\n<ID001>\n" +
		"##$SUBJECT_date=( 64 )\n<2017-06-12T10:15:00>\n" +
		"##END=\n"
	return os.WriteFile(filepath.Join(dir, "subject"), []byte(content), 0644)
}
