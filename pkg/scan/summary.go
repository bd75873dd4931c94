package scan

import (
	"fmt"

	"bruker2nifti/pkg/paravision"
)

// SummaryField is one entry of the human readable scan summary.
type SummaryField struct {
	Name  string
	Value paravision.Value
}

var (
	acqpSummaryFields   = []string{"ACQ_sw_version", "NR", "NI", "ACQ_n_echo_images", "ACQ_slice_thick"}
	methodSummaryFields = []string{"SpatDimEnum", "Matrix", "SpatResol"}
)

// summarize collects the summary fields present in acqp, method and each
// reconstruction's visu_pars. Missing fields are skipped.
func summarize(acqp, method paravision.ParameterMap, recons []Recon) []SummaryField {
	var out []SummaryField
	add := func(name string, m paravision.ParameterMap, key string) {
		if v, ok := m.Get(key); ok {
			out = append(out, SummaryField{Name: name, Value: v})
		}
	}

	for _, k := range acqpSummaryFields {
		add(k, acqp, k)
	}
	for _, k := range methodSummaryFields {
		add(k, method, k)
	}
	for i, r := range recons {
		prefix := fmt.Sprintf("subscan_%d.", i)
		if len(recons) == 1 {
			prefix = ""
		}
		for _, k := range []string{"VisuCoreDataSlope", "VisuCoreSize", "VisuCoreOrientation", "VisuCorePosition", "VisuCoreSlicePacksSlices"} {
			add(prefix+k, r.VisuPars, k)
		}
	}
	return out
}
