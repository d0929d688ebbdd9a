package dicom

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DicomExtensions are common DICOM file extensions
var DicomExtensions = map[string]bool{".dcm": true, ".dicom": true}

// ReportExtensions are rendered report extensions
var ReportExtensions = map[string]bool{".pdf": true}

// ExcludedNames are filenames to skip
var ExcludedNames = map[string]bool{
	"DICOMDIR":                true,
	".ecg-deid-progress.json": true,
	".DS_Store":               true,
	"Thumbs.db":               true,
	"desktop.ini":             true,
	".env":                    true,
}

// ExcludedExtensions are file extensions that are never reports
var ExcludedExtensions = map[string]bool{
	".svg":  true,
	".csv":  true,
	".txt":  true,
	".log":  true,
	".toml": true,
	".json": true,
	".md":   true,
	".xml":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tmp":  true,
	".zip":  true,
	".exe":  true,
}

// ExcludedDirs are directory names to skip entirely
var ExcludedDirs = map[string]bool{
	".git":              true,
	"Deidentified_ECGs": true,
	"__pycache__":       true,
	".venv":             true,
}

// Kind is the container of an input report.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindDICOM
)

// DetectKind classifies a file by extension, then by DICOM magic bytes.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ReportExtensions[ext]:
		return KindPDF
	case DicomExtensions[ext]:
		return KindDICOM
	case ExcludedExtensions[ext]:
		return KindUnknown
	case hasDicomMagicBytes(path):
		return KindDICOM
	}
	return KindUnknown
}

// FindReports finds all PDF and DICOM reports under inputPath. Directories in
// skip (for example the output folder) are not entered.
func FindReports(inputPath string, recursive bool, skip ...string) ([]string, error) {
	var files []string

	skipAbs := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipAbs[abs] = true
		}
	}

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			if path == inputPath {
				return nil
			}
			if ExcludedDirs[info.Name()] || !recursive {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && skipAbs[abs] {
				return filepath.SkipDir
			}
			return nil
		}

		if ExcludedNames[info.Name()] || strings.HasPrefix(info.Name(), ".ecg-deid-") {
			return nil
		}

		if DetectKind(path) != KindUnknown {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.Walk(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasDicomMagicBytes checks if a file has the DICOM magic bytes ("DICM" at offset 128)
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}
	return string(header[128:132]) == "DICM"
}
