package study

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"bruker2nifti/pkg/nifti"
)

// StudyName derives a folder-safe study name from the subject name: spaces
// become underscores and everything else that is not a letter or digit is
// dropped.
func StudyName(subjectName string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(subjectName) {
		switch {
		case r == ' ' || r == '_':
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

var scanListSeparator = regexp.MustCompile(`[^\d]+`)

// ParseScanList splits a comma, space or tab separated list of scan numbers.
func ParseScanList(s string) []string {
	var out []string
	for _, p := range scanListSeparator.Split(s, -1) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ScanFolderName is the output folder of one scan: <study>_<scan>.
func ScanFolderName(studyName, scan string) string {
	return studyName + "_" + scan
}

// subscanLabel is empty for single-reconstruction scans.
func subscanLabel(i, n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf("_subscan_%d", i)
}

// subvolLabel is empty for images without embedded sub-volumes.
func subvolLabel(j, n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf("_subvol_%d", j)
}

// ImageFileName names the NIfTI file of sub-volume j of reconstruction i.
func ImageFileName(name string, i, numRecons, j, numSubVolumes int, compress bool) string {
	return name + subscanLabel(i, numRecons) + subvolLabel(j, numSubVolumes) + nifti.Extension(compress)
}

// PathContainsWhitespace reports whether any of the path elements contains
// whitespace.
func PathContainsWhitespace(elems ...string) bool {
	for _, e := range elems {
		if strings.IndexFunc(e, unicode.IsSpace) >= 0 {
			return true
		}
	}
	return false
}

// sortNumeric sorts numeric folder names by value.
func sortNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
}
