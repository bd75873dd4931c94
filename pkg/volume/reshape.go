package volume

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"bruker2nifti/internal/models"
	"bruker2nifti/pkg/paravision"
)

// Options selects the intensity corrections.
type Options struct {
	CorrectSlope  bool
	CorrectOffset bool
}

// ReshapeAndCorrect turns a raw 2dseq buffer into a volume: host byte order,
// pre-shape from visu_pars, slope then offset, and frame-group expansion.
// Diffusion data is never corrected. acqp and method may be empty.
func ReshapeAndCorrect(raw *RawBuffer, vp paravision.VisuParams, acqp, method paravision.ParameterMap, opts Options) (*models.Volume, error) {
	samples := raw.Samples()

	shape, err := PreShape(vp.CoreSize, vp.FrameCount, len(samples))
	if err != nil {
		return nil, err
	}
	v := &models.Volume{Data: samples, Shape: shape, DataType: raw.DataType}

	frameRank := len(vp.CoreSize)
	if vp.FrameCount > 1 {
		frameRank++
	}
	if len(shape) > frameRank {
		fields := log.Fields{"echoes": shape[len(shape)-1], "shape": shape}
		if declared, err := acqp.Float("ACQ_n_echo_images"); err == nil {
			fields["declared"] = int(declared)
		}
		log.WithFields(fields).Debug("Inferred trailing echo axis")
	}

	if paravision.IsDiffusion(method.TextOr("Method", "")) || paravision.IsDiffusion(vp.SequenceName) {
		if opts.CorrectSlope || opts.CorrectOffset {
			log.Info("Diffusion-weighted data, slope and offset correction disabled")
		}
		opts = Options{}
	}

	frameAxis := -1
	if vp.FrameCount > 1 {
		frameAxis = len(vp.CoreSize)
	}

	if opts.CorrectSlope && vp.HasDataSlope {
		if err := correctWith(v, vp.DataSlope, "VisuCoreDataSlope", Scale, frameAxis); err != nil {
			return nil, err
		}
	}
	if opts.CorrectOffset && vp.HasDataOffset {
		if err := correctWith(v, vp.DataOffset, "VisuCoreDataOffs", Shift, frameAxis); err != nil {
			return nil, err
		}
	}

	return Reinterleave(v, len(vp.CoreSize), vp.FrameGroups)
}

func correctWith(v *models.Volume, factor paravision.Value, field string, op Operation, frameAxis int) error {
	factors, ok := factor.Floats()
	if !ok {
		return &paravision.FieldError{
			Kind:  paravision.ErrFieldType,
			File:  paravision.VisuPars,
			Field: field,
			Msg:   fmt.Sprintf("want numbers, got %s", factor.Type),
		}
	}
	if err := Correct(v, factors, op, frameAxis); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
