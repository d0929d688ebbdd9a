package dicom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Encapsulated document attributes (PS3.3 C.24.2).
var (
	TagEncapsulatedDocument = tag.Tag{Group: 0x0042, Element: 0x0011}
	TagMIMETypeOfDocument   = tag.Tag{Group: 0x0042, Element: 0x0012}
)

// PDFMimeType is the MIME type of an Encapsulated PDF report.
const PDFMimeType = "application/pdf"

// ErrNotEncapsulatedPDF is returned for DICOM objects that carry no PDF.
var ErrNotEncapsulatedPDF = errors.New("not an Encapsulated PDF")

// Dataset wraps a DICOM dataset for easier access
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadDicom reads a DICOM file and returns the dataset.
func ReadDicom(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// GetString returns a string value for a tag, or empty string if not found.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// GetBytes returns the raw bytes of a tag, or nil if not found.
func (d *Dataset) GetBytes(t tag.Tag) []byte {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil
	}
	b, _ := elem.Value.GetValue().([]byte)
	return b
}

// GetPatientID returns the patient ID, the MRN of the report.
func (d *Dataset) GetPatientID() string {
	return d.GetString(tag.PatientID)
}

// GetMIMEType returns the MIME type of the encapsulated document.
func (d *Dataset) GetMIMEType() string {
	return d.GetString(TagMIMETypeOfDocument)
}

// PDF returns the encapsulated PDF payload without trailing padding.
func (d *Dataset) PDF() ([]byte, error) {
	if mime := d.GetMIMEType(); mime != "" && !strings.EqualFold(mime, PDFMimeType) {
		return nil, fmt.Errorf("%w: MIME type %s", ErrNotEncapsulatedPDF, mime)
	}
	doc := d.GetBytes(TagEncapsulatedDocument)
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: no encapsulated document", ErrNotEncapsulatedPDF)
	}
	// odd-length payloads are padded to even length with a NUL
	return []byte(strings.TrimRight(string(doc), "\x00")), nil
}

// EncapsulatedReport is a PDF extracted from a DICOM object.
type EncapsulatedReport struct {
	PDFPath   string
	PatientID string
}

// ExtractEncapsulatedPDF writes the PDF carried by a DICOM file into workDir.
// The PDF keeps the DICOM file's base name.
func ExtractEncapsulatedPDF(path, workDir string) (*EncapsulatedReport, error) {
	ds, err := ReadDicom(path)
	if err != nil {
		return nil, err
	}

	pdf, err := ds.PDF()
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(workDir, base+".pdf")
	if err := os.WriteFile(out, pdf, 0600); err != nil {
		return nil, fmt.Errorf("could not write extracted PDF: %w", err)
	}

	return &EncapsulatedReport{
		PDFPath:   out,
		PatientID: ds.GetPatientID(),
	}, nil
}
