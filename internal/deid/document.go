package deid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	dcm "ecg-deid/internal/dicom"
	"ecg-deid/internal/ecg"
	"ecg-deid/internal/locator"
	"ecg-deid/internal/progress"
	"ecg-deid/internal/redact"
	"ecg-deid/internal/svgdoc"
)

// pipeline processes single documents. It is shared by all workers and holds
// only read-only state plus the concurrency-safe audit sink.
type pipeline struct {
	engine       *redact.Engine
	template     *locator.Template
	renderer     svgdoc.Renderer
	source       MRNSource
	outputFolder string
	workDir      string
	audit        progress.Sink
	logger       *slog.Logger
}

type outcome struct {
	mrn      string
	path     string
	warnings int
	err      error
}

// process runs one report from input file to output SVG. Failures are
// audited here and returned in the outcome, never panicked or propagated.
func (p *pipeline) process(ctx context.Context, path string) outcome {
	out := outcome{mrn: directoryMRN(path)}

	docDir, err := os.MkdirTemp(p.workDir, "doc-*")
	if err != nil {
		out.err = ecg.NewFailure(ecg.KindRender, out.mrn, err, "creating work folder")
		p.record(path, out.err)
		return out
	}
	defer os.RemoveAll(docDir)

	res, svgPath, err := p.run(ctx, path, docDir, &out)
	if err != nil {
		out.err = err
		p.record(path, err)
		return out
	}

	for _, w := range res.Warnings {
		p.audit.Record(progress.Entry{File: path, MRN: out.mrn, Kind: w.Kind, Message: w.Message})
	}
	out.warnings = len(res.Warnings)

	p.removeIntermediate(path, out.mrn, svgPath)

	p.logger.Debug("report de-identified",
		"file", filepath.Base(path),
		"output", filepath.Base(out.path),
		"shifted_findings", res.Shifted)
	return out
}

func (p *pipeline) run(ctx context.Context, path, docDir string, out *outcome) (*redact.Result, string, error) {
	pdfPath := path
	if dcm.DetectKind(path) == dcm.KindDICOM {
		rep, err := dcm.ExtractEncapsulatedPDF(path, docDir)
		if err != nil {
			return nil, "", ecg.NewFailure(ecg.KindRender, out.mrn, err, "reading DICOM report")
		}
		pdfPath = rep.PDFPath
		if p.source == MRNFromDICOM {
			if id := normalizeMRN(rep.PatientID); id != "" {
				out.mrn = id
			}
		}
	}

	svgPath, err := p.renderer.Render(ctx, pdfPath, docDir)
	if err != nil {
		return nil, "", ecg.NewFailure(ecg.KindRender, out.mrn, err, "error converting %s", filepath.Base(path))
	}

	doc, err := svgdoc.Load(svgPath)
	if err != nil {
		return nil, svgPath, ecg.NewFailure(ecg.KindRender, out.mrn, err, "reading rendered page")
	}
	frags := doc.Fragments()

	if p.source == MRNFromField {
		mrn, err := fieldMRN(frags, p.template)
		if err != nil {
			return nil, svgPath, ecg.NewFailure(ecg.KindAnchor, out.mrn, err, "reading MRN field")
		}
		out.mrn = mrn
	}

	res, err := p.engine.Redact(redact.Document{Path: path, MRN: out.mrn, Fragments: frags})
	if err != nil {
		return nil, svgPath, err
	}

	if err := doc.Apply(res.Fragments); err != nil {
		return nil, svgPath, ecg.NewFailure(ecg.KindOutput, out.mrn, err, "applying redactions")
	}
	out.path = filepath.Join(p.outputFolder, res.OutputName("svg"))
	if err := doc.Save(out.path); err != nil {
		return nil, svgPath, ecg.NewFailure(ecg.KindOutput, out.mrn, err, "writing %s", filepath.Base(out.path))
	}
	return res, svgPath, nil
}

func fieldMRN(frags []ecg.Fragment, tmpl *locator.Template) (string, error) {
	idx, err := locator.Locate(frags, tmpl).Index(locator.RoleMRN)
	if err != nil {
		return "", err
	}
	return locator.MRNFromField(frags[idx].Text)
}

// removeIntermediate deletes the rendered page. A page that is already gone
// is audited but does not fail the document.
func (p *pipeline) removeIntermediate(path, mrn, svgPath string) {
	err := os.Remove(svgPath)
	if err == nil {
		return
	}
	msg := err.Error()
	if errors.Is(err, os.ErrNotExist) {
		msg = fmt.Sprintf("can't delete %s; file doesn't exist", filepath.Base(svgPath))
	}
	p.audit.Record(progress.Entry{File: path, MRN: mrn, Kind: ecg.KindArtifact, Message: msg})
}

func (p *pipeline) record(path string, err error) {
	entry := progress.Entry{File: path, Message: err.Error()}
	var f *ecg.Failure
	if errors.As(err, &f) {
		entry.Kind = f.Kind
		entry.MRN = f.MRN
		entry.Message = f.Message()
	}
	p.audit.Record(entry)
	p.logger.Debug("report failed", "file", filepath.Base(path), "kind", entry.Kind)
}
