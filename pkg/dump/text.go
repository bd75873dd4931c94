// Package dump writes the human readable side files of a conversion:
// parameter maps, diffusion tables, slopes and a scan summary.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"bruker2nifti/pkg/paravision"
)

// numberFormat is used for every delimited numeric table
const numberFormat = "%.14f"

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// EncodeParameters writes one "key = value" line per parameter, sorted by key.
func EncodeParameters(w io.Writer, m paravision.ParameterMap) error {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if _, err := fmt.Fprintf(w, "%s = %s\n", k, v.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteParameters writes m to path as sorted "key = value" lines.
func WriteParameters(path string, m paravision.ParameterMap) error {
	return writeFile(path, func(w *bufio.Writer) error {
		return EncodeParameters(w, m)
	})
}

// EncodeVector writes one number per line.
func EncodeVector(w io.Writer, v []float64) error {
	for _, x := range v {
		if _, err := fmt.Fprintf(w, numberFormat+"\n", x); err != nil {
			return err
		}
	}
	return nil
}

// WriteVector writes v to path, one number per line.
func WriteVector(path string, v []float64) error {
	return writeFile(path, func(w *bufio.Writer) error {
		return EncodeVector(w, v)
	})
}

// EncodeMatrix writes one space-delimited row per line.
func EncodeMatrix(w io.Writer, rows [][3]float64) error {
	for _, r := range rows {
		parts := make([]string, len(r))
		for i, x := range r {
			parts[i] = fmt.Sprintf(numberFormat, x)
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteMatrix writes rows to path.
func WriteMatrix(path string, rows [][3]float64) error {
	return writeFile(path, func(w *bufio.Writer) error {
		return EncodeMatrix(w, rows)
	})
}

// WriteSlope writes VisuCoreDataSlope one factor per line.
func WriteSlope(path string, slope paravision.Value) error {
	fs, ok := slope.Floats()
	if !ok {
		return fmt.Errorf("slope is not numeric: %s", slope.String())
	}
	return WriteVector(path, fs)
}
