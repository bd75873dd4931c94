// Package study converts whole ParaVision studies and reads their metadata.
package study

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bruker2nifti/pkg/dump"
	"bruker2nifti/pkg/paravision"
)

// ReconMetadata holds the parameter files of one reconstruction.
type ReconMetadata struct {
	Reco     paravision.ParameterMap
	VisuPars paravision.ParameterMap
}

// ScanMetadata holds the parameter files of one scan and its reconstructions,
// keyed by pdata folder name.
type ScanMetadata struct {
	Acqp   paravision.ParameterMap
	Method paravision.ParameterMap
	Recons map[string]ReconMetadata
}

// Metadata reads the parameter files of a study without converting images.
// The study path is not checked until something is read.
type Metadata struct {
	StudyDir string

	// Subject and Scans are filled by ParseSubject and ParseScans
	Subject paravision.ParameterMap
	Scans   map[string]ScanMetadata
}

// NewMetadata creates a metadata reader for studyDir
func NewMetadata(studyDir string) *Metadata {
	return &Metadata{StudyDir: studyDir}
}

// ParseSubject reads the subject file and stores it.
func (m *Metadata) ParseSubject() error {
	s, err := m.ReadSubject()
	if err != nil {
		return err
	}
	m.Subject = s
	return nil
}

// ParseScans reads every scan and stores the result.
func (m *Metadata) ParseScans() error {
	s, err := m.ReadScans()
	if err != nil {
		return err
	}
	m.Scans = s
	return nil
}

// ReadSubject returns the study's subject file.
func (m *Metadata) ReadSubject() (paravision.ParameterMap, error) {
	return paravision.Read(paravision.Subject, m.StudyDir, "")
}

// ReadScans returns the metadata of every scan of the study.
func (m *Metadata) ReadScans() (map[string]ScanMetadata, error) {
	ids, err := m.ListScans()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ScanMetadata, len(ids))
	for _, id := range ids {
		s, err := m.ReadScan(id)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", id, err)
		}
		out[id] = s
	}
	return out, nil
}

// ReadScan returns acqp, method and the reconstructions of one scan.
func (m *Metadata) ReadScan(scan string) (ScanMetadata, error) {
	var s ScanMetadata
	var err error
	dir := filepath.Join(m.StudyDir, scan)

	if s.Acqp, err = paravision.Read(paravision.Acqp, dir, ""); err != nil {
		return s, err
	}
	if s.Method, err = paravision.Read(paravision.Method, dir, ""); err != nil {
		return s, err
	}
	s.Recons, err = m.ReadRecons(scan)
	return s, err
}

// ReadRecons returns every reconstruction of a scan.
func (m *Metadata) ReadRecons(scan string) (map[string]ReconMetadata, error) {
	ids, err := m.ListRecons(scan)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ReconMetadata, len(ids))
	for _, id := range ids {
		r, err := m.ReadRecon(scan, id)
		if err != nil {
			return nil, fmt.Errorf("recon %s: %w", id, err)
		}
		out[id] = r
	}
	return out, nil
}

// ReadRecon returns reco and visu_pars of scan/pdata/recon.
func (m *Metadata) ReadRecon(scan, recon string) (ReconMetadata, error) {
	var r ReconMetadata
	var err error
	dir := filepath.Join(m.StudyDir, scan)

	if r.Reco, err = paravision.Read(paravision.Reco, dir, recon); err != nil {
		return r, err
	}
	r.VisuPars, err = paravision.Read(paravision.VisuPars, dir, recon)
	return r, err
}

// ListScans returns the numbered scan folders in numeric order.
func (m *Metadata) ListScans() ([]string, error) {
	return paravision.ListScans(m.StudyDir)
}

// ListRecons returns the numbered reconstruction folders of a scan.
func (m *Metadata) ListRecons(scan string) ([]string, error) {
	return paravision.ListRecons(filepath.Join(m.StudyDir, scan))
}

// ScanInfo is one row of a study listing.
type ScanInfo struct {
	ID       string
	Protocol string
	Method   string
	ScanTime string
}

// SubjectName returns SUBJECT_name_string, falling back to SUBJECT_name.
func SubjectName(subject paravision.ParameterMap) string {
	if name := subject.TextOr("SUBJECT_name_string", ""); name != "" {
		return name
	}
	return subject.TextOr("SUBJECT_name", "")
}

var studyDateLayouts = []string{
	"2006-01-02T15:04:05,000-0700",
	"2006-01-02T15:04:05,000",
	"2006-01-02T15:04:05",
}

// StudyDate formats SUBJECT_date as "2006-01-02 15:04". Unparseable dates
// are returned verbatim.
func StudyDate(subject paravision.ParameterMap) string {
	raw := strings.TrimSpace(subject.TextOr("SUBJECT_date", ""))
	for _, layout := range studyDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return raw
}

// Listing summarises every parsed scan. ParseScans must have been called.
func (m *Metadata) Listing() []ScanInfo {
	ids := make([]string, 0, len(m.Scans))
	for id := range m.Scans {
		ids = append(ids, id)
	}
	sortNumeric(ids)

	out := make([]ScanInfo, 0, len(ids))
	for _, id := range ids {
		s := m.Scans[id]
		info := ScanInfo{
			ID:       id,
			Protocol: s.Acqp.TextOr("ACQ_protocol_name", "unknown"),
			Method:   s.Acqp.TextOr("ACQ_method", s.Method.TextOr("Method", "unknown")),
			ScanTime: "unknown",
		}
		if ms, err := s.Method.Float("ScanTime"); err == nil {
			info.ScanTime = dump.FormatScanTime(ms)
		}
		out = append(out, info)
	}
	return out
}
