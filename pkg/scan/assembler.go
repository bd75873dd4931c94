package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/geometry"
	"bruker2nifti/pkg/paravision"
	"bruker2nifti/pkg/volume"
)

// ErrMissingVisuPars is returned for a reconstruction without visu_pars.
var ErrMissingVisuPars = errors.New("missing visu_pars")

// DiffusionParams controls the b-vector outputs of diffusion scans.
type DiffusionParams struct {
	// NormaliseBVectors scales gradient directions to unit length
	NormaliseBVectors bool

	// SeparateShells splits b-values and b-vectors per shell
	SeparateShells bool

	// NumShells is the number of interleaved shells
	NumShells int

	// NumInitialDirToSkip is the number of leading b0 directions. A negative
	// value infers it from the b-values.
	NumInitialDirToSkip int
}

// Params holds the conversion parameters of one scan.
type Params struct {
	// ScanDir is the numbered scan folder inside a study
	ScanDir string

	// Geometry selects the affine conventions
	Geometry geometry.Options

	// Correction selects slope and offset correction
	Correction volume.Options

	// GetAcqp, GetMethod and GetReco keep the corresponding parameter maps
	// in the bundle. The files are read regardless when the conversion
	// needs them.
	GetAcqp   bool
	GetMethod bool
	GetReco   bool

	// Diffusion controls the b-vector outputs
	Diffusion DiffusionParams
}

// Assembler turns one scan folder into a Bundle.
//
// Each reconstruction below pdata is processed in turn:
// 1. Reading reco and visu_pars
// 2. Reading and reshaping the 2dseq samples
// 3. Splitting independently oriented sub-volumes
// 4. Computing the geometry of every sub-volume
// Diffusion scans additionally get their gradient scheme extracted.
// A reconstruction that fails is recorded in Bundle.Failed and the others
// are still converted.
type Assembler struct {
	params *Params
}

// NewAssembler creates an assembler for the given parameters
func NewAssembler(params *Params) *Assembler {
	return &Assembler{params: params}
}

// Process assembles every reconstruction of the scan. It fails only when
// no reconstruction could be assembled.
func (a *Assembler) Process() (*Bundle, error) {
	info, err := os.Stat(a.params.ScanDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", a.params.ScanDir)
	}
	logger := log.WithField("scan", a.params.ScanDir)

	acqp, err := paravision.Read(paravision.Acqp, a.params.ScanDir, "")
	if err != nil {
		return nil, err
	}
	method, err := paravision.Read(paravision.Method, a.params.ScanDir, "")
	if err != nil {
		return nil, err
	}

	recons, err := paravision.ListRecons(a.params.ScanDir)
	if err != nil {
		return nil, err
	}
	if len(recons) == 0 {
		return nil, fmt.Errorf("no reconstructions in %s", filepath.Join(a.params.ScanDir, "pdata"))
	}

	bundle := &Bundle{ScanDir: a.params.ScanDir}
	for _, id := range recons {
		reconLogger := logger.WithField("recon", id)
		reconLogger.Info("Assembling reconstruction")
		r, err := a.AssembleRecon(id, acqp, method)
		if err != nil {
			reconLogger.WithError(err).Warn("Skipping reconstruction")
			bundle.Failed = append(bundle.Failed, ReconError{ID: id, Err: err})
			continue
		}
		bundle.Recons = append(bundle.Recons, *r)
	}
	if len(bundle.Recons) == 0 {
		errs := make([]error, len(bundle.Failed))
		for i := range bundle.Failed {
			errs[i] = &bundle.Failed[i]
		}
		return nil, errors.Join(errs...)
	}

	first := bundle.Recons[0]
	bundle.AcquisitionMethod = paravision.AcquisitionMethod(method, first.VisuPars, acqp)

	if paravision.IsDiffusion(bundle.AcquisitionMethod) {
		logger.Info("Extracting diffusion gradient scheme")
		d, err := a.extractDiffusion(method, first.Visu)
		if err != nil {
			return nil, err
		}
		bundle.Diffusion = d
	}

	bundle.Summary = summarize(acqp, method, bundle.Recons)

	if a.params.GetAcqp {
		bundle.Acqp = acqp
	} else {
		bundle.Acqp = paravision.NewParameterMap(paravision.Acqp, nil)
	}
	if a.params.GetMethod {
		bundle.Method = method
	} else {
		bundle.Method = paravision.NewParameterMap(paravision.Method, nil)
	}
	return bundle, nil
}

// AssembleRecon converts pdata/<id>. acqp and method may be empty.
func (a *Assembler) AssembleRecon(id string, acqp, method paravision.ParameterMap) (*Recon, error) {
	reco, err := paravision.Read(paravision.Reco, a.params.ScanDir, id)
	if err != nil {
		return nil, err
	}
	visuMap, err := paravision.Read(paravision.VisuPars, a.params.ScanDir, id)
	if err != nil {
		return nil, err
	}
	if !visuMap.Present() {
		return nil, fmt.Errorf("%w: %s", ErrMissingVisuPars, visuMap.Path())
	}
	vp, err := paravision.NewVisuParams(visuMap)
	if err != nil {
		return nil, err
	}

	dt, order, err := volume.Format(vp, reco)
	if err != nil {
		return nil, err
	}
	raw, err := volume.ReadRaw(filepath.Join(a.params.ScanDir, "pdata", id, volume.DataFile), dt, order)
	if err != nil {
		return nil, err
	}
	vol, err := volume.ReshapeAndCorrect(raw, vp, acqp, method, a.params.Correction)
	if err != nil {
		return nil, err
	}

	res, err := geometry.Resolution(vp.Extent, vp.CoreSize, vp.FrameThickness)
	if err != nil {
		return nil, err
	}
	if len(vp.Orientation) == 0 || len(vp.Position) == 0 {
		return nil, &paravision.FieldError{
			Kind:  paravision.ErrMissingField,
			File:  paravision.VisuPars,
			Field: "VisuCoreOrientation/VisuCorePosition",
		}
	}

	n := volume.CountSubVolumes(vp.Orientation)
	subs, err := volume.SplitSubVolumes(vol, n)
	if err != nil {
		return nil, err
	}

	// frames per sub-volume, used to find each sub-volume's first frame
	per := len(vp.Orientation) / n
	r := &Recon{ID: id, VisuPars: visuMap, Visu: vp}
	for i, sub := range subs {
		frame := i * per
		if frame >= len(vp.Position) {
			return nil, fmt.Errorf("%w: no position for frame %d", volume.ErrStructural, frame)
		}
		g, err := geometry.NewVolumeGeometry(vp.Orientation[frame], vp.Position[frame], vp.SubjectPosition, res, a.params.Geometry)
		if err != nil {
			return nil, fmt.Errorf("sub-volume %d: %w", i, err)
		}
		r.Images = append(r.Images, models.Image{Volume: sub, Geometry: g})
	}

	if len(vp.Position) > 1 && vp.SpatialRank() == 2 {
		if dir, err := geometry.StackDirection(vp.Position, n); err == nil {
			r.StackDirection = dir
		} else {
			log.WithError(err).Debug("Could not derive stack direction")
		}
	}

	if a.params.GetReco {
		r.Reco = reco
	} else {
		r.Reco = paravision.NewParameterMap(paravision.Reco, nil)
	}

	log.WithFields(log.Fields{
		"recon":      id,
		"shape":      vol.Shape,
		"subVolumes": len(r.Images),
		"dataType":   vol.DataType,
	}).Debug("Reconstruction assembled")
	return r, nil
}
