// Package preview renders JPEG snapshots of converted volumes.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"bruker2nifti/internal/models"
)

// Axes lists the slicing axes in output order
var Axes = []string{"x", "y", "z"}

// Viewer extracts slices from the first 3D frame of an image.
type Viewer struct {
	// volumeData holds the first frame, column-major
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// spacing is the voxel size in mm along x, y and z
	spacing [3]float64

	// intensity window used to map samples to gray levels
	low, high float64
}

// NewViewer creates a viewer for img. Volumes of rank 2 are treated as a
// single slice; dimensions beyond the third select their first frame.
func NewViewer(img models.Image) (*Viewer, error) {
	v := img.Volume
	if v == nil || v.Rank() < 2 {
		return nil, fmt.Errorf("cannot preview a volume of rank %d", rankOf(v))
	}

	vw := &Viewer{width: v.Shape[0], height: v.Shape[1], depth: 1, spacing: [3]float64{1, 1, 1}}
	if v.Rank() > 2 {
		vw.depth = v.Shape[2]
	}
	for i, r := range img.Geometry.Resolution {
		if i < 3 && r > 0 {
			vw.spacing[i] = r
		}
	}

	n := vw.width * vw.height * vw.depth
	if n == 0 || n > len(v.Data) {
		return nil, fmt.Errorf("volume shape %v does not match %d samples", v.Shape, len(v.Data))
	}
	vw.volumeData = v.Data[:n]
	vw.low = floats.Min(vw.volumeData)
	vw.high = floats.Max(vw.volumeData)
	return vw, nil
}

func rankOf(v *models.Volume) int {
	if v == nil {
		return 0
	}
	return v.Rank()
}

// gray maps a sample into the viewer's intensity window.
func (v *Viewer) gray(x float64) color.Gray16 {
	if v.high <= v.low {
		return color.Gray16{}
	}
	t := (x - v.low) / (v.high - v.low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice at position along axis "x", "y" or "z".
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				idx := z*v.width*v.height + y*v.width + position
				img.SetGray16(z, v.height-1-y, v.gray(v.volumeData[idx]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				idx := z*v.width*v.height + position*v.width + x
				img.SetGray16(x, v.depth-1-z, v.gray(v.volumeData[idx]))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				idx := position*v.width*v.height + y*v.width + x
				img.SetGray16(x, v.height-1-y, v.gray(v.volumeData[idx]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// pixelSpacing returns the physical size of a pixel of a slice along axis
func (v *Viewer) pixelSpacing(axis string) (dx, dy float64) {
	switch axis {
	case "x", "X":
		return v.spacing[2], v.spacing[1]
	case "y", "Y":
		return v.spacing[0], v.spacing[2]
	}
	return v.spacing[0], v.spacing[1]
}

// MidSlice extracts the central slice along axis and rescales it so that
// pixels are square in physical units. The larger side is kept.
func (v *Viewer) MidSlice(axis string) (image.Image, error) {
	var n int
	switch axis {
	case "x", "X":
		n = v.width
	case "y", "Y":
		n = v.height
	default:
		n = v.depth
	}
	img, err := v.ExtractSlice(axis, n/2)
	if err != nil {
		return nil, err
	}

	dx, dy := v.pixelSpacing(axis)
	b := img.Bounds()
	w, h := float64(b.Dx())*dx, float64(b.Dy())*dy
	scale := float64(max(b.Dx(), b.Dy())) / math.Max(w, h)
	target := image.Rect(0, 0, max(1, int(math.Round(w*scale))), max(1, int(math.Round(h*scale))))
	if target.Eq(b) {
		return img, nil
	}

	out := image.NewGray16(target)
	draw.ApproxBiLinear.Scale(out, target, img, b, draw.Over, nil)
	return out, nil
}

// SaveSlice saves an image as a JPEG
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return err
	}
	return file.Close()
}

// SaveMidSlices writes <prefix>_x.jpg, <prefix>_y.jpg and <prefix>_z.jpg
// and returns the written paths.
func (v *Viewer) SaveMidSlices(prefix string) ([]string, error) {
	var paths []string
	for _, axis := range Axes {
		img, err := v.MidSlice(axis)
		if err != nil {
			return paths, err
		}
		filename := fmt.Sprintf("%s_%s.jpg", prefix, axis)
		if err := v.SaveSlice(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	log.WithField("prefix", prefix).Debug("Saved previews")
	return paths, nil
}
