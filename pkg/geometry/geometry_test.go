package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

var identity = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

func TestResolution(t *testing.T) {
	tests := []struct {
		name      string
		extent    []float64
		size      []int
		thickness []float64
		want      []float64
		wantErr   error
	}{
		{"2D with thickness", []float64{20, 20}, []int{4, 4}, []float64{0.5, 0.5}, []float64{5, 5, 0.5}, nil},
		{"3D", []float64{10, 20, 30}, []int{10, 10, 10}, nil, []float64{1, 2, 3}, nil},
		{"2D without thickness", []float64{20, 20}, []int{4, 4}, nil, nil, ErrSpatDim},
		{"1D", []float64{10}, []int{10}, nil, nil, ErrSpatDim},
		{"mismatched", []float64{10, 10}, []int{10, 10, 10}, nil, nil, ErrSpatDim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolution(tt.extent, tt.size, tt.thickness)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Resolution mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAffineConventions(t *testing.T) {
	pos := []float64{1, 2, 3}
	res := []float64{0.1, 0.2, 0.5}

	tests := []struct {
		name    string
		subject string
		opts    Options
		want    [4][4]float64
	}{
		{
			name:    "head supine keeps determinant",
			subject: HeadSupine,
			opts:    DefaultOptions(),
			want: [4][4]float64{
				{0.1, 0, 0, -1},
				{0, 0, 0.5, -2},
				{0, -0.2, 0, -3},
				{0, 0, 0, 1},
			},
		},
		{
			name:    "determinant not enforced",
			subject: HeadSupine,
			opts:    Options{Profile: ProfileHead},
			want: [4][4]float64{
				{-0.1, 0, 0, -1},
				{0, 0, 0.5, -2},
				{0, -0.2, 0, -3},
				{0, 0, 0, 1},
			},
		},
		{
			name:    "prone ignored by default",
			subject: HeadProne,
			opts:    DefaultOptions(),
			want: [4][4]float64{
				{0.1, 0, 0, -1},
				{0, 0, 0.5, -2},
				{0, -0.2, 0, -3},
				{0, 0, 0, 1},
			},
		},
		{
			name:    "prone considered",
			subject: HeadProne,
			opts:    Options{Profile: ProfileHead, KeepSameDet: true, ConsiderSubjectPosition: true},
			want: [4][4]float64{
				{-0.1, 0, 0, -1},
				{0, 0, -0.5, 2},
				{0, -0.2, 0, -3},
				{0, 0, 0, 1},
			},
		},
		{
			name:    "body as head",
			subject: HeadSupine,
			opts:    Options{Profile: ProfileBodyAsHead, KeepSameDet: true},
			want: [4][4]float64{
				{-0.1, 0, 0, -1},
				{0, -0.2, 0, -2},
				{0, 0, 0.5, -3},
				{0, 0, 0, 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Affine(identity, pos, tt.subject, res, tt.opts)
			if err != nil {
				t.Fatalf("Affine failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Affine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func det3x3(o []float64) float64 {
	return o[0]*(o[4]*o[8]-o[5]*o[7]) - o[1]*(o[3]*o[8]-o[5]*o[6]) + o[2]*(o[3]*o[7]-o[4]*o[6])
}

func TestAffineKeepsDeterminantSign(t *testing.T) {
	c, s := math.Cos(math.Pi/6), math.Sin(math.Pi/6)
	orientations := map[string][]float64{
		"identity":      identity,
		"swap xy":       {0, 1, 0, 1, 0, 0, 0, 0, 1},
		"flip z":        {1, 0, 0, 0, 1, 0, 0, 0, -1},
		"rotated":       {c, -s, 0, s, c, 0, 0, 0, 1},
		"rotated flip":  {c, s, 0, s, -c, 0, 0, 0, 1},
		"sagittal":      {0, 0, 1, 1, 0, 0, 0, 1, 0},
		"coronal mixed": {1, 0, 0, 0, 0, -1, 0, 1, 0},
	}
	optionSets := []Options{
		{Profile: ProfileHead, KeepSameDet: true},
		{Profile: ProfileHead, KeepSameDet: true, ConsiderSubjectPosition: true},
		{Profile: ProfileBodyAsHead, KeepSameDet: true},
		{Profile: ProfileBodyAsHead, KeepSameDet: true, ConsiderSubjectPosition: true},
	}

	for name, o := range orientations {
		for _, opts := range optionSets {
			for _, subject := range []string{HeadProne, HeadSupine} {
				aff, err := Affine(o, []float64{-4, 7.5, 12}, subject, []float64{0.3, 0.3, 1}, opts)
				if err != nil {
					t.Fatalf("%s %v %s: %v", name, opts, subject, err)
				}
				if math.Signbit(Det3(aff)) != math.Signbit(det3x3(o)) {
					t.Errorf("%s %+v %s: det sign %v differs from scanner %v", name, opts, subject, Det3(aff), det3x3(o))
				}
			}
		}
	}
}

func TestAffineErrors(t *testing.T) {
	res := []float64{1, 1, 1}
	zero := []float64{0, 0, 0}

	if _, err := Affine(make([]float64, 9), zero, HeadSupine, res, DefaultOptions()); !errors.Is(err, ErrZeroDeterminant) {
		t.Errorf("Expected ErrZeroDeterminant, got %v", err)
	}
	for _, subject := range []string{"", "Foot_Supine", "head_prone"} {
		if _, err := Affine(identity, zero, subject, res, DefaultOptions()); !errors.Is(err, ErrSubjectPosition) {
			t.Errorf("Subject %q: expected ErrSubjectPosition, got %v", subject, err)
		}
	}
	if _, err := Affine(identity, zero, HeadSupine, []float64{1, 1}, DefaultOptions()); !errors.Is(err, ErrSpatDim) {
		t.Errorf("Expected ErrSpatDim for 2-element resolution, got %v", err)
	}
}

func TestNewVolumeGeometry(t *testing.T) {
	g, err := NewVolumeGeometry(identity, []float64{1, 2, 3}, HeadSupine, []float64{0.1, 0.2, 0.5}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewVolumeGeometry failed: %v", err)
	}
	wantOrientation := [3][3]float64{{1, 0, 0}, {0, 0, 1}, {0, -1, 0}}
	if diff := cmp.Diff(wantOrientation, g.Orientation, approx); diff != "" {
		t.Errorf("Orientation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([3]float64{-1, -2, -3}, g.Translation, approx); diff != "" {
		t.Errorf("Translation mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProfile(t *testing.T) {
	for in, want := range map[string]Profile{"": ProfileHead, "head": ProfileHead, "Body-As-Head": ProfileBodyAsHead} {
		got, err := ParseProfile(in)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseProfile("quadruped"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestStackDirection(t *testing.T) {
	positions := [][]float64{
		{0, 0, 0}, {0, 0, 1},
		{1, 0, 0}, {0, 0, 0},
		{0, 2, 0}, {0, 1, 0},
	}
	got, err := StackDirection(positions, 3)
	if err != nil {
		t.Fatalf("StackDirection failed: %v", err)
	}
	if got != "z+x-y-" {
		t.Errorf("Expected z+x-y-, got %q", got)
	}

	single, err := StackDirection(positions[:2], 1)
	if err != nil || single != "z+" {
		t.Errorf("Expected z+, got %q (%v)", single, err)
	}

	bad := []struct {
		name      string
		positions [][]float64
		n         int
	}{
		{"too few", positions[:1], 1},
		{"indivisible", positions[:3], 2},
		{"short row", [][]float64{{0, 0}, {0, 1}}, 1},
		{"oblique", [][]float64{{0, 0, 0}, {1, 1, 0}}, 1},
		{"still", [][]float64{{0, 0, 0}, {0, 0, 0}}, 1},
	}
	for _, tt := range bad {
		if _, err := StackDirection(tt.positions, tt.n); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestBVectorOrientation(t *testing.T) {
	rot, err := BVectorOrientation(identity, HeadSupine, DefaultOptions())
	if err != nil {
		t.Fatalf("BVectorOrientation failed: %v", err)
	}
	want := [3][3]float64{{1, 0, 0}, {0, 0, 1}, {0, -1, 0}}
	if diff := cmp.Diff(want, rot, approx); diff != "" {
		t.Errorf("Rotation mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyReorientation(t *testing.T) {
	rotZ := [3][3]float64{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	got := ApplyReorientation(rotZ, [][3]float64{{1, 0, 0}, {0, 0, 2}, {1, 1, 0}})
	want := [][3]float64{{0, 1, 0}, {0, 0, 2}, {-1, 1, 0}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("Reorientation mismatch (-want +got):\n%s", diff)
	}
	if got := ApplyReorientation(rotZ, nil); got != nil {
		t.Errorf("Expected nil for no vectors, got %v", got)
	}
}

func TestNormaliseBVectors(t *testing.T) {
	in := [][3]float64{{3, 4, 0}, {0, 0, 0}, {1e-5, 0, 0}, {math.NaN(), 0, 0}, {0, 0, -2}}
	want := [][3]float64{{0.6, 0.8, 0}, {0, 0, 0}, {0, 0, 0}, {0, 0, 0}, {0, 0, -1}}

	once := NormaliseBVectors(in)
	if diff := cmp.Diff(want, once, approx); diff != "" {
		t.Errorf("Normalised mismatch (-want +got):\n%s", diff)
	}
	twice := NormaliseBVectors(once)
	if diff := cmp.Diff(once, twice, approx); diff != "" {
		t.Errorf("Normalisation is not idempotent (-once +twice):\n%s", diff)
	}
	for i, row := range twice {
		for _, v := range row {
			if math.IsNaN(v) {
				t.Errorf("Row %d contains NaN: %v", i, row)
			}
		}
	}
}
