package paravision

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ListScans returns the numeric sub-directories of a study, in numeric order.
func ListScans(studyDir string) ([]string, error) {
	return listNumeric(studyDir)
}

// ListRecons returns the numeric sub-directories of a scan's pdata folder.
func ListRecons(scanDir string) ([]string, error) {
	return listNumeric(filepath.Join(scanDir, "pdata"))
}

func listNumeric(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(e.Name()); err == nil && n >= 0 {
			names = append(names, e.Name())
		}
	}

	sort.Slice(names, func(i, j int) bool {
		a, _ := strconv.Atoi(names[i])
		b, _ := strconv.Atoi(names[j])
		return a < b
	})
	return names, nil
}
