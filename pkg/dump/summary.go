package dump

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/scan"
)

// Stats are the voxel statistics of one image
type Stats struct {
	Voxels int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// ComputeStats summarises the samples of v. An empty volume gives zero Stats.
func ComputeStats(v *models.Volume) Stats {
	if v == nil || len(v.Data) == 0 {
		return Stats{}
	}
	s := Stats{
		Voxels: len(v.Data),
		Min:    floats.Min(v.Data),
		Max:    floats.Max(v.Data),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(v.Data, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

// EncodeSummary writes the scan summary: method, the selected acquisition
// fields and per-image shape and statistics.
func EncodeSummary(w io.Writer, b *scan.Bundle) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Method = %s\n", b.AcquisitionMethod)
	for _, f := range b.Summary {
		p.Fprintf(w, "%s = %s\n", f.Name, f.Value.String())
	}

	for i, r := range b.Recons {
		if r.StackDirection != "" {
			p.Fprintf(w, "\nrecon %s stack direction = %s\n", r.ID, r.StackDirection)
		}
		for j, img := range r.Images {
			st := ComputeStats(img.Volume)
			p.Fprintf(w, "\nsubscan %d, sub-volume %d (pdata/%s)\n", i, j, r.ID)
			p.Fprintf(w, "  shape = %v\n", img.Volume.Shape)
			p.Fprintf(w, "  dataType = %s\n", img.Volume.DataType)
			p.Fprintf(w, "  resolution = %v\n", img.Geometry.Resolution)
			p.Fprintf(w, "  voxels = %d\n", st.Voxels)
			p.Fprintf(w, "  min = %g, max = %g\n", st.Min, st.Max)
			p.Fprintf(w, "  mean = %.4f, std = %.4f\n", st.Mean, st.StdDev)
		}
	}

	for _, f := range b.Failed {
		p.Fprintf(w, "\npdata/%s skipped: %v\n", f.ID, f.Err)
	}

	if d := b.Diffusion; d != nil {
		p.Fprintf(w, "\ndiffusion directions = %d\n", len(d.BVals))
		p.Fprintf(w, "shells = %d\n", len(d.Shells))
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteSummary writes the scan summary of b to path.
func WriteSummary(path string, b *scan.Bundle) error {
	return writeFile(path, func(w *bufio.Writer) error {
		return EncodeSummary(w, b)
	})
}

// FormatScanTime renders a duration in milliseconds as h:mm:ss.
func FormatScanTime(ms float64) string {
	total := int(math.Round(ms / 1000))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}
