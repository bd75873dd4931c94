package paravision

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Kind names one of the fixed parameter files.
type Kind string

const (
	Acqp     Kind = "acqp"
	Method   Kind = "method"
	Reco     Kind = "reco"
	VisuPars Kind = "visu_pars"
	Subject  Kind = "subject"
)

// Kinds lists every supported parameter file kind
var Kinds = []Kind{Acqp, Method, Reco, VisuPars, Subject}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want acqp, method, reco, visu_pars or subject)", ErrUnknownKind, s)
}

// FilePath resolves where a kind lives below dataPath. reco and visu_pars
// live in pdata/<reconID>; the others sit directly in dataPath, which is the
// scan folder for acqp/method and the study folder for subject.
func FilePath(kind Kind, dataPath, reconID string) (string, error) {
	switch kind {
	case Acqp, Method, Subject:
		return filepath.Join(dataPath, string(kind)), nil
	case Reco, VisuPars:
		if reconID == "" {
			reconID = "1"
		}
		return filepath.Join(dataPath, "pdata", reconID, string(kind)), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
}

// Read parses the parameter file of the given kind below dataPath.
//
// A missing file is not an error: the returned map is empty, reports
// Present() == false, and a warning is logged.
func Read(kind Kind, dataPath, reconID string) (ParameterMap, error) {
	path, err := FilePath(kind, dataPath, reconID)
	if err != nil {
		return ParameterMap{}, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithFields(log.Fields{
			"kind": kind,
			"path": path,
		}).Warn("Parameter file does not exist")
		return emptyMap(kind, path), nil
	}
	if err != nil {
		return ParameterMap{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(kind, f)
	if err != nil {
		return ParameterMap{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	m.path = path
	return m, nil
}

// Parse reads declarations from r.
func Parse(kind Kind, r io.Reader) (ParameterMap, error) {
	lines, err := readLines(r)
	if err != nil {
		return ParameterMap{}, err
	}

	tok := NewTokenizer()
	for _, line := range lines {
		tok.Feed(line)
	}

	values := make(map[string]Value)
	for _, d := range tok.Close() {
		values[d.Name] = d.Value()
		log.WithFields(log.Fields{
			"kind": kind,
			"name": d.Name,
			"form": d.Form,
			"line": d.Line,
		}).Trace("Parsed declaration")
	}

	m := NewParameterMap(kind, nil)
	m.values = values
	return m, nil
}

// readLines extracts the whole line list so the caller can release the file.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
