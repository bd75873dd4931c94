package paravision

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleVisuPars = `##TITLE=Parameter List, ParaVision 6.0.1
##JCAMPDX=4.24
##DATATYPE=Parameter Values
$$ @vis= VisuCoreSize
##$VisuCoreFrameCount=2
##$VisuCoreDim=2
##$VisuCoreSize=( 2 )
4 4
##$VisuCoreExtent=( 2 )
20 20
##$VisuCoreFrameThickness=( 1 )
0.5
##$VisuCoreDataSlope=( 2 )
1.5 1.5
##$VisuCoreWordType=_32BIT_FLOAT
##$VisuCoreByteOrder=littleEndian
##$VisuCoreOrientation=( 2, 9 )
1 0 0 0 1 0 0 0 1 1 0 0 0 1 0 0 0 1
##$VisuCorePosition=( 2, 3 )
-10 -10 0
-10 -10 0.5
##$VisuSubjectPosition=Head_Prone
##$VisuAcqSequenceName=( 64 )
<FLASH (pvm)>
##$VisuFGOrderDesc=( 1 )
(2, <FG_SLICE>, <>, 0, 2)
##$VisuGroupDepVals=( 2 )
(<VisuCoreOrientation>, 0) (<VisuCorePosition>, 0)
##$PVM_SpatResol=( 2 )
0.15625 0.15625
##$VisuCoreDataOffs=( 2 )
inf inf
##$VisuStudyDate=(0.5, 1.5)
##ORIGIN=Bruker BioSpin MRI GmbH
##$$ File finished by JCAMP writer
##END=
`

func parseSample(t *testing.T) ParameterMap {
	t.Helper()
	m, err := Parse(VisuPars, strings.NewReader(sampleVisuPars))
	if err != nil {
		t.Fatalf("Failed to parse sample: %v", err)
	}
	return m
}

func TestParseDeclarationForms(t *testing.T) {
	m := parseSample(t)

	tests := []struct {
		name string
		want Value
	}{
		{"TITLE", StringValue("Parameter List, ParaVision 6.0.1")},
		{"JCAMPDX", ScalarValue(4.24)},
		{"VisuCoreFrameCount", ScalarValue(2)},
		{"VisuCoreSize", ArrayValue([]float64{4, 4}, []int{2})},
		{"VisuCoreFrameThickness", ScalarValue(0.5)},
		{"VisuCoreWordType", StringValue("_32BIT_FLOAT")},
		{"VisuCorePosition", ArrayValue([]float64{-10, -10, 0, -10, -10, 0.5}, []int{2, 3})},
		{"VisuSubjectPosition", StringValue("Head_Prone")},
		{"VisuAcqSequenceName", StringValue("FLASH (pvm)")},
		{"VisuFGOrderDesc", StringValue("(2, <FG_SLICE>, <>, 0, 2)")},
		{"VisuGroupDepVals", ListValue([]string{"(<VisuCoreOrientation>, 0)", "(<VisuCorePosition>, 0)"})},
		{"SpatResol", ArrayValue([]float64{0.15625, 0.15625}, []int{2})},
		{"VisuStudyDate", StringValue("0.5, 1.5")},
		{"ORIGIN", StringValue("Bruker BioSpin MRI GmbH")},
		{"END", StringValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Get(tt.name)
			if !ok {
				t.Fatalf("Parameter %q not found; keys: %v", tt.name, m.Keys())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parameter %q mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}

	offs, _ := m.Get("VisuCoreDataOffs")
	if !offs.HasInf() || offs.Len() != 2 {
		t.Errorf("Expected a 2-element infinity array for VisuCoreDataOffs, got %q", offs.String())
	}
}

func TestTokenizerStates(t *testing.T) {
	tok := NewTokenizer()
	tok.Feed("##$A=( 3 )")
	tok.Feed("1 2")
	tok.Feed("3")
	tok.Feed("$$ comment terminates the payload")
	tok.Feed("stray text is ignored")
	tok.Feed("##$B=( 2 )")
	tok.Feed("<x> <y>")
	decls := tok.Close()

	if len(decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d: %+v", len(decls), decls)
	}
	if decls[0].Name != "A" || decls[0].Form != FormShaped {
		t.Errorf("Unexpected first declaration: %+v", decls[0])
	}
	if diff := cmp.Diff([]int{3}, decls[0].Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ArrayValue([]float64{1, 2, 3}, []int{3}), decls[0].Value()); diff != "" {
		t.Errorf("Payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ListValue([]string{"x", "y"}), decls[1].Value()); diff != "" {
		t.Errorf("Declaration at end of input mismatch (-want +got):\n%s", diff)
	}

	// Feeding after Close is a no-op
	tok.Feed("##$C=1")
	if got := tok.Close(); len(got) != 2 {
		t.Errorf("Expected closed tokenizer to ignore input, got %d declarations", len(got))
	}
}

func TestTokenizerFallback(t *testing.T) {
	tok := NewTokenizer()
	tok.Feed("##$ODD=(<a>, <b>)")
	decls := tok.Close()
	if len(decls) != 1 || decls[0].Form != FormFallback {
		t.Fatalf("Expected one fallback declaration, got %+v", decls)
	}
	if got := decls[0].Value(); got.Str != "a  b" {
		t.Errorf("Expected loose cleanup %q, got %q", "a  b", got.Str)
	}
}

func TestReadMissingFile(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range Kinds {
		m, err := Read(kind, dir, "1")
		if err != nil {
			t.Fatalf("Read(%s) on missing file returned error: %v", kind, err)
		}
		if m.Len() != 0 || m.Present() {
			t.Errorf("Read(%s): expected empty absent map, got %d keys (present=%v)", kind, m.Len(), m.Present())
		}
		if _, err := m.Float("anything"); !errors.Is(err, ErrMissingField) {
			t.Errorf("Expected ErrMissingField from empty map, got %v", err)
		}
	}
}

func TestReadUnknownKind(t *testing.T) {
	if _, err := Read(Kind("fid"), t.TempDir(), ""); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if _, err := ParseKind("ACQP"); err != nil {
		t.Errorf("ParseKind should accept any case: %v", err)
	}
}

func TestReadResolvesReconPath(t *testing.T) {
	dir := t.TempDir()
	reconDir := filepath.Join(dir, "pdata", "2")
	if err := os.MkdirAll(reconDir, 0755); err != nil {
		t.Fatalf("Failed to create recon dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(reconDir, "visu_pars"), []byte(sampleVisuPars), 0644); err != nil {
		t.Fatalf("Failed to write visu_pars: %v", err)
	}

	m, err := Read(VisuPars, dir, "2")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !m.Present() || !m.Has("VisuCoreSize") {
		t.Fatalf("Expected parsed visu_pars from pdata/2, got keys %v", m.Keys())
	}

	vp, err := NewVisuParams(m)
	if err != nil {
		t.Fatalf("NewVisuParams failed: %v", err)
	}
	if diff := cmp.Diff([]int{4, 4}, vp.CoreSize); diff != "" {
		t.Errorf("CoreSize mismatch (-want +got):\n%s", diff)
	}
	if vp.FrameCount != 2 || len(vp.Orientation) != 2 || len(vp.Position) != 2 {
		t.Errorf("Unexpected frame data: count=%d orient=%d pos=%d", vp.FrameCount, len(vp.Orientation), len(vp.Position))
	}
	if len(vp.FrameGroups) != 1 || vp.FrameGroups[0].Type != FGSlice || vp.FrameGroups[0].Len != 2 {
		t.Errorf("Unexpected frame groups: %+v", vp.FrameGroups)
	}
}

func TestAcquisitionMethod(t *testing.T) {
	method := NewParameterMap(Method, map[string]Value{"Method": StringValue("Bruker:DtiEpi")})
	empty := NewParameterMap(Acqp, nil)
	visu := NewParameterMap(VisuPars, map[string]Value{"VisuAcqSequenceName": StringValue("FLASH (pvm)")})

	if got := AcquisitionMethod(method, visu, empty); got != "DtiEpi" {
		t.Errorf("Expected DtiEpi, got %q", got)
	}
	if got := AcquisitionMethod(empty, visu, empty); got != "FLASH (pvm)" {
		t.Errorf("Expected fallback to sequence name, got %q", got)
	}
	if got := AcquisitionMethod(empty, empty, empty); got != "unknown" {
		t.Errorf("Expected unknown, got %q", got)
	}
}

func TestIsDiffusion(t *testing.T) {
	for label, want := range map[string]bool{
		"DtiEpi":  true,
		"DwiEpi":  true,
		"FLASH":   false,
		"RARE":    false,
		"unknown": false,
	} {
		if got := IsDiffusion(label); got != want {
			t.Errorf("IsDiffusion(%q) = %v, want %v", label, got, want)
		}
	}
}
