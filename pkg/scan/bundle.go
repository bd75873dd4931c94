package scan

import (
	"fmt"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/paravision"
)

// Recon is one converted reconstruction (pdata/<id>) of a scan.
type Recon struct {
	// ID is the pdata folder name
	ID string

	// Reco and VisuPars are the parameter maps of this reconstruction.
	// Reco is empty unless requested.
	Reco     paravision.ParameterMap
	VisuPars paravision.ParameterMap

	// Visu is the typed view of VisuPars
	Visu paravision.VisuParams

	// Images holds one entry per independently oriented sub-volume
	Images []models.Image

	// StackDirection is e.g. "z+" or "z+x-y-", empty when it cannot be derived
	StackDirection string
}

// ReconError records a reconstruction that could not be converted.
type ReconError struct {
	ID  string
	Err error
}

func (e *ReconError) Error() string {
	return fmt.Sprintf("failed to assemble reconstruction %s: %v", e.ID, e.Err)
}

func (e *ReconError) Unwrap() error {
	return e.Err
}

// Shell groups the diffusion directions acquired at one b-value.
type Shell struct {
	BVals []float64
	BVecs [][3]float64
}

// Diffusion holds the gradient scheme of a diffusion-weighted scan.
type Diffusion struct {
	// BVals is DwEffBval
	BVals []float64

	// BVecs is DwGradVec rotated into image space and, if requested, normalised
	BVecs [][3]float64

	// Dirs is DwDir, normalised if requested
	Dirs [][3]float64

	// Shells is set when shell separation was requested
	Shells []Shell
}

// Bundle is everything needed to write one scan: its images with geometry
// and the parameter maps they came from. acqp and method are empty maps
// unless requested.
type Bundle struct {
	ScanDir string
	Acqp    paravision.ParameterMap
	Method  paravision.ParameterMap
	Recons  []Recon

	// Failed lists the reconstructions left out of Recons
	Failed []ReconError

	// AcquisitionMethod is a short label such as "FLASH" or "DtiEpi"
	AcquisitionMethod string

	// Diffusion is nil for non-diffusion scans
	Diffusion *Diffusion

	// Summary lists selected acquisition fields. It is filled whether or
	// not the full maps were requested.
	Summary []SummaryField
}

// NumImages counts the sub-volumes over all reconstructions
func (b *Bundle) NumImages() int {
	n := 0
	for _, r := range b.Recons {
		n += len(r.Images)
	}
	return n
}
