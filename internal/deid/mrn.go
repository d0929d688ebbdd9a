package deid

import (
	"fmt"
	"path/filepath"
	"strings"

	dcm "ecg-deid/internal/dicom"
)

// MRNSource selects where a report's MRN comes from.
type MRNSource string

const (
	// MRNFromDirectory uses the name of the report's parent folder.
	MRNFromDirectory MRNSource = "dir"
	// MRNFromField reads the "ID:" field printed on the report.
	MRNFromField MRNSource = "field"
	// MRNFromDICOM uses the PatientID of a DICOM report and the parent
	// folder for plain PDFs.
	MRNFromDICOM MRNSource = "dicom"
)

// MRNSources lists the accepted sources.
var MRNSources = []MRNSource{MRNFromDirectory, MRNFromField, MRNFromDICOM}

// ParseMRNSource validates a source name.
func ParseMRNSource(s string) (MRNSource, error) {
	for _, src := range MRNSources {
		if string(src) == strings.ToLower(strings.TrimSpace(s)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown MRN source %q (want dir, field or dicom)", s)
}

func directoryMRN(path string) string {
	return filepath.Base(filepath.Dir(path))
}

func normalizeMRN(id string) string {
	return strings.TrimLeft(strings.TrimSpace(id), "0")
}

// previewMRN resolves the MRN without rendering. It returns "" for the field
// source, which needs the rendered report.
func previewMRN(path string, source MRNSource) (string, error) {
	switch source {
	case MRNFromField:
		return "", nil
	case MRNFromDICOM:
		if dcm.DetectKind(path) == dcm.KindDICOM {
			ds, err := dcm.ReadDicom(path)
			if err != nil {
				return "", err
			}
			if id := normalizeMRN(ds.GetPatientID()); id != "" {
				return id, nil
			}
		}
	}
	return directoryMRN(path), nil
}
