package volume

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/paravision"
)

func sequential(shape ...int) *models.Volume {
	v := models.NewVolume(shape, models.Int16)
	for i := range v.Data {
		v.Data[i] = float64(i + 1)
	}
	return v
}

func float32Bytes(values []float32, order binary.ByteOrder) []byte {
	b := make([]byte, 4*len(values))
	for i, f := range values {
		order.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func TestParseWordType(t *testing.T) {
	for code, want := range wordTypes {
		got, err := ParseWordType(code)
		if err != nil || got != want {
			t.Errorf("ParseWordType(%q) = %v, %v; want %v", code, got, err, want)
		}
	}
	if _, err := ParseWordType("_64BIT_FLOAT"); !errors.Is(err, ErrUnknownDataType) {
		t.Errorf("Expected ErrUnknownDataType, got %v", err)
	}
	if ParseByteOrder("littleEndian") != models.LittleEndian || ParseByteOrder("") != models.BigEndian {
		t.Error("Unexpected byte order mapping")
	}
}

func TestFormatFallsBackToReco(t *testing.T) {
	reco := paravision.NewParameterMap(paravision.Reco, map[string]paravision.Value{
		"RECO_wordtype":   paravision.StringValue("_16BIT_SGN_INT"),
		"RECO_byte_order": paravision.StringValue("littleEndian"),
	})

	dt, order, err := Format(paravision.VisuParams{}, reco)
	if err != nil || dt != models.Int16 || order != models.LittleEndian {
		t.Errorf("Format from reco = %v, %v, %v", dt, order, err)
	}

	vp := paravision.VisuParams{WordType: "_32BIT_FLOAT", ByteOrder: "bigEndian"}
	dt, order, err = Format(vp, reco)
	if err != nil || dt != models.Float32 || order != models.BigEndian {
		t.Errorf("Format from visu_pars = %v, %v, %v", dt, order, err)
	}

	if _, _, err := Format(paravision.VisuParams{}, paravision.NewParameterMap(paravision.Reco, nil)); !errors.Is(err, ErrUnknownDataType) {
		t.Errorf("Expected ErrUnknownDataType without any word type, got %v", err)
	}
}

func TestRawBufferByteOrder(t *testing.T) {
	tests := []struct {
		name  string
		order models.ByteOrder
		want  float64
	}{
		{"big endian", models.BigEndian, 258},
		{"little endian", models.LittleEndian, 513},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := NewRawBuffer([]byte{0x01, 0x02, 0xff, 0xff}, models.Int16, tt.order)
			if err != nil {
				t.Fatalf("NewRawBuffer failed: %v", err)
			}
			got := raw.Samples()
			if diff := cmp.Diff([]float64{tt.want, -1}, got); diff != "" {
				t.Errorf("Samples mismatch (-want +got):\n%s", diff)
			}
			if raw.ByteOrder != HostOrder() {
				t.Errorf("Buffer should be in host order after decoding")
			}
		})
	}

	u8, _ := NewRawBuffer([]byte{0, 7, 255}, models.Uint8, models.BigEndian)
	if diff := cmp.Diff([]float64{0, 7, 255}, u8.Samples()); diff != "" {
		t.Errorf("uint8 mismatch (-want +got):\n%s", diff)
	}

	i32 := make([]byte, 4)
	binary.BigEndian.PutUint32(i32, uint32(0xfffffffe))
	r32, _ := NewRawBuffer(i32, models.Int32, models.BigEndian)
	if got := r32.Samples(); got[0] != -2 {
		t.Errorf("int32 sample = %v, want -2", got[0])
	}
}

func TestReadRaw(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadRaw(filepath.Join(dir, DataFile), models.Int16, models.LittleEndian); !errors.Is(err, ErrMissingData) {
		t.Errorf("Expected ErrMissingData, got %v", err)
	}

	path := filepath.Join(dir, DataFile)
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("Failed to write data: %v", err)
	}
	if _, err := ReadRaw(path, models.Int16, models.LittleEndian); !errors.Is(err, ErrStructural) {
		t.Errorf("Expected ErrStructural for odd byte count, got %v", err)
	}

	if err := os.WriteFile(path, float32Bytes([]float32{1.5, -2}, binary.BigEndian), 0644); err != nil {
		t.Fatalf("Failed to write data: %v", err)
	}
	raw, err := ReadRaw(path, models.Float32, models.BigEndian)
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if raw.Len() != 2 {
		t.Errorf("Expected 2 samples, got %d", raw.Len())
	}
	if diff := cmp.Diff([]float64{1.5, -2}, raw.Samples()); diff != "" {
		t.Errorf("Samples mismatch (-want +got):\n%s", diff)
	}
}

func TestPreShape(t *testing.T) {
	tests := []struct {
		name   string
		core   []int
		frames int
		total  int
		want   []int
	}{
		{"single frame", []int{4, 4}, 1, 16, []int{4, 4}},
		{"frames", []int{4, 4}, 2, 32, []int{4, 4, 2}},
		{"echo remainder", []int{4, 4}, 2, 96, []int{4, 4, 2, 3}},
		{"3D", []int{2, 3, 4}, 1, 24, []int{2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreShape(tt.core, tt.frames, tt.total)
			if err != nil {
				t.Fatalf("PreShape failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Shape mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := PreShape([]int{4, 4}, 2, 33); !errors.Is(err, ErrStructural) {
		t.Errorf("Expected ErrStructural, got %v", err)
	}
}

func TestCorrectIdentity(t *testing.T) {
	raw := sequential(3, 2, 4)
	v := raw.Clone()

	if err := Correct(v, []float64{1, 1, 1, 1}, Scale, -1); err != nil {
		t.Fatalf("Slope failed: %v", err)
	}
	if err := Correct(v, []float64{0, 0, 0, 0}, Shift, -1); err != nil {
		t.Fatalf("Offset failed: %v", err)
	}
	if diff := cmp.Diff(raw.Data, v.Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Identity correction changed data (-want +got):\n%s", diff)
	}
	if v.DataType != models.Float64 {
		t.Errorf("Corrected data should be promoted to float64, got %s", v.DataType)
	}
}

func TestCorrectScalarSlope(t *testing.T) {
	for _, s := range []float64{-2, 0.5, 3.25, 1e-3} {
		raw := sequential(2, 2, 3)
		v := raw.Clone()
		if err := Correct(v, []float64{s}, Scale, -1); err != nil {
			t.Fatalf("Correct(%v) failed: %v", s, err)
		}
		for i := range raw.Data {
			if v.Data[i] != s*raw.Data[i] {
				t.Fatalf("slope %v: sample %d = %v, want %v", s, i, v.Data[i], s*raw.Data[i])
			}
		}
	}
}

func TestCorrectPerSlice(t *testing.T) {
	raw := sequential(2, 2, 3)
	v := raw.Clone()
	slope := []float64{1, 2, 3}

	if err := Correct(v, slope, Scale, -1); err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for k := 0; k < 3; k++ {
				if got, want := v.At(x, y, k), raw.At(x, y, k)*slope[k]; got != want {
					t.Errorf("(%d,%d,%d) = %v, want %v", x, y, k, got, want)
				}
			}
		}
	}

	if err := Correct(raw.Clone(), []float64{1, 2, 3, 4}, Scale, -1); !errors.Is(err, ErrStructural) {
		t.Errorf("Expected ErrStructural for mismatched slope, got %v", err)
	}
}

func TestCorrectAxisSelection(t *testing.T) {
	tests := []struct {
		name      string
		shape     []int
		factors   int
		frameAxis int
		axis      int
	}{
		{"4D second to last", []int{2, 2, 3, 4}, 3, -1, 2},
		{"4D last", []int{2, 2, 3, 4}, 4, -1, 3},
		{"frame axis preferred", []int{2, 2, 3, 3}, 3, 3, 3},
		{"frame axis mismatch", []int{2, 2, 3, 4}, 3, 3, 2},
		{"5D", []int{2, 2, 2, 3, 5}, 3, -1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sequential(tt.shape...)
			v := raw.Clone()
			factors := make([]float64, tt.factors)
			for i := range factors {
				factors[i] = float64(10 * (i + 1))
			}
			if err := Correct(v, factors, Scale, tt.frameAxis); err != nil {
				t.Fatalf("Correct failed: %v", err)
			}
			stride := models.Strides(tt.shape)[tt.axis]
			for i := range v.Data {
				k := (i / stride) % tt.shape[tt.axis]
				if v.Data[i] != raw.Data[i]*factors[k] {
					t.Fatalf("sample %d scaled by wrong factor: got %v, want %v", i, v.Data[i], raw.Data[i]*factors[k])
				}
			}
		})
	}
}

func TestCorrectDuplicateRepair(t *testing.T) {
	raw := sequential(2, 2, 2)
	v := raw.Clone()
	if err := Correct(v, []float64{2, 2, 5, 5}, Scale, -1); err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if v.At(1, 1, 0) != 2*raw.At(1, 1, 0) || v.At(1, 1, 1) != 5*raw.At(1, 1, 1) {
		t.Errorf("Repaired factors applied incorrectly: %v", v.Data)
	}
}

func TestCorrectInfinityGuard(t *testing.T) {
	hook := test.NewGlobal()
	raw := sequential(2, 2, 3)
	for _, factors := range [][]float64{{math.Inf(1)}, {1, math.Inf(1), 2}, {math.Inf(1), math.Inf(1), math.Inf(1)}} {
		hook.Reset()
		v := raw.Clone()
		if err := Correct(v, factors, Shift, -1); err != nil {
			t.Fatalf("Infinity guard returned error: %v", err)
		}
		if diff := cmp.Diff(raw, v); diff != "" {
			t.Errorf("Infinity guard modified the volume (-want +got):\n%s", diff)
		}

		entries := hook.AllEntries()
		if len(entries) != 1 {
			t.Fatalf("Expected one log entry for %v, got %d", factors, len(entries))
		}
		if entries[0].Level != log.WarnLevel {
			t.Errorf("Expected a warning, got %s", entries[0].Level)
		}
		if got := entries[0].Data["correction"]; got != Shift {
			t.Errorf("Expected correction field %v, got %v", Shift, got)
		}
	}
	hook.Reset()
}

func TestEliminateConsecutiveDuplicates(t *testing.T) {
	in := []float64{1, 1, 2, 2, 2, 1, 3}
	if diff := cmp.Diff([]float64{1, 2, 1, 3}, EliminateConsecutiveDuplicates(in)); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 1, 2, 2, 2, 1, 3}, in); diff != "" {
		t.Errorf("Input was modified (-want +got):\n%s", diff)
	}
}

func TestSubVolumes(t *testing.T) {
	axial := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	sagittal := []float64{0, 1, 0, 0, 0, -1, -1, 0, 0}
	coronal := []float64{1, 0, 0, 0, 0, 1, 0, -1, 0}

	if n := CountSubVolumes([][]float64{axial, axial}); n != 1 {
		t.Errorf("Expected 1 sub-volume, got %d", n)
	}
	orientation := [][]float64{axial, axial, sagittal, sagittal, coronal, coronal}
	if n := CountSubVolumes(orientation); n != 3 {
		t.Errorf("Expected 3 sub-volumes, got %d", n)
	}
	if n := CountSubVolumes(nil); n != 1 {
		t.Errorf("Expected 1 sub-volume without orientation, got %d", n)
	}

	v := sequential(2, 2, 6)
	subs, err := SplitSubVolumes(v, 3)
	if err != nil {
		t.Fatalf("SplitSubVolumes failed: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("Expected 3 sub-volumes, got %d", len(subs))
	}
	for i, sub := range subs {
		if diff := cmp.Diff([]int{2, 2, 2}, sub.Shape); diff != "" {
			t.Errorf("Sub-volume %d shape mismatch (-want +got):\n%s", i, diff)
		}
		if got, want := sub.At(0, 0, 0), v.At(0, 0, 2*i); got != want {
			t.Errorf("Sub-volume %d starts at %v, want %v", i, got, want)
		}
	}

	if _, err := SplitSubVolumes(v, 4); !errors.Is(err, ErrStructural) {
		t.Errorf("Expected ErrStructural for uneven split, got %v", err)
	}
}

func TestReinterleave(t *testing.T) {
	echoFirst := []paravision.FrameGroup{
		{Len: 2, Type: paravision.FGEcho},
		{Len: 3, Type: paravision.FGSlice},
	}
	v := sequential(2, 1, 6)
	out, err := Reinterleave(v, 2, echoFirst)
	if err != nil {
		t.Fatalf("Reinterleave failed: %v", err)
	}
	if diff := cmp.Diff([]int{2, 1, 3, 2}, out.Shape); diff != "" {
		t.Fatalf("Shape mismatch (-want +got):\n%s", diff)
	}
	for x := 0; x < 2; x++ {
		for s := 0; s < 3; s++ {
			for e := 0; e < 2; e++ {
				if got, want := out.At(x, 0, s, e), v.At(x, 0, e+2*s); got != want {
					t.Errorf("(%d,0,%d,%d) = %v, want %v", x, s, e, got, want)
				}
			}
		}
	}

	sliceFirst := []paravision.FrameGroup{
		{Len: 3, Type: paravision.FGSlice},
		{Len: 2, Type: paravision.FGMovie},
	}
	out, err = Reinterleave(v, 2, sliceFirst)
	if err != nil {
		t.Fatalf("Reinterleave failed: %v", err)
	}
	if diff := cmp.Diff(v.Data, out.Data); diff != "" {
		t.Errorf("Slice-first groups should not move samples (-want +got):\n%s", diff)
	}

	mismatch := []paravision.FrameGroup{{Len: 4, Type: paravision.FGEcho}, {Len: 2, Type: paravision.FGSlice}}
	out, err = Reinterleave(v, 2, mismatch)
	if err != nil || out != v {
		t.Errorf("Mismatched groups should leave the volume as is, got %v, %v", out.Shape, err)
	}
}

func TestReshapeAndCorrectEndToEnd(t *testing.T) {
	values := make([]float32, 32)
	for i := range values {
		values[i] = float32(i)
	}
	axial := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	vp := paravision.VisuParams{
		CoreSize:     []int{4, 4},
		FrameCount:   2,
		Orientation:  [][]float64{axial, axial},
		DataSlope:    paravision.ScalarValue(1),
		HasDataSlope: true,
	}
	empty := paravision.NewParameterMap(paravision.Acqp, nil)

	raw, err := NewRawBuffer(float32Bytes(values, binary.LittleEndian), models.Float32, models.LittleEndian)
	if err != nil {
		t.Fatalf("NewRawBuffer failed: %v", err)
	}
	v, err := ReshapeAndCorrect(raw, vp, empty, empty, Options{CorrectSlope: true})
	if err != nil {
		t.Fatalf("ReshapeAndCorrect failed: %v", err)
	}
	if diff := cmp.Diff([]int{4, 4, 2}, v.Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	for i, f := range values {
		if v.Data[i] != float64(f) {
			t.Fatalf("Sample %d = %v, want %v", i, v.Data[i], f)
		}
	}
	if n := CountSubVolumes(vp.Orientation); n != 1 {
		t.Errorf("Expected a single sub-volume, got %d", n)
	}
}

func TestReshapeAndCorrectDiffusion(t *testing.T) {
	vp := paravision.VisuParams{
		CoreSize:     []int{2, 2},
		FrameCount:   1,
		DataSlope:    paravision.ScalarValue(2),
		HasDataSlope: true,
	}
	method := paravision.NewParameterMap(paravision.Method, map[string]paravision.Value{
		"Method": paravision.StringValue("Bruker:DtiEpi"),
	})
	acqp := paravision.NewParameterMap(paravision.Acqp, nil)

	raw, _ := NewRawBuffer([]byte{1, 2, 3, 4}, models.Uint8, models.BigEndian)
	v, err := ReshapeAndCorrect(raw, vp, acqp, method, Options{CorrectSlope: true, CorrectOffset: true})
	if err != nil {
		t.Fatalf("ReshapeAndCorrect failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4}, v.Data); diff != "" {
		t.Errorf("Diffusion data was corrected (-want +got):\n%s", diff)
	}
	if v.DataType != models.Uint8 {
		t.Errorf("Diffusion data should keep its type, got %s", v.DataType)
	}

	plain := paravision.NewParameterMap(paravision.Method, nil)
	raw, _ = NewRawBuffer([]byte{1, 2, 3, 4}, models.Uint8, models.BigEndian)
	v, err = ReshapeAndCorrect(raw, vp, acqp, plain, Options{CorrectSlope: true})
	if err != nil {
		t.Fatalf("ReshapeAndCorrect failed: %v", err)
	}
	if diff := cmp.Diff([]float64{2, 4, 6, 8}, v.Data); diff != "" {
		t.Errorf("Slope not applied (-want +got):\n%s", diff)
	}
}
