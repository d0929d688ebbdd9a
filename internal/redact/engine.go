package redact

import (
	"fmt"
	"strings"
	"time"

	"ecg-deid/internal/ecg"
	"ecg-deid/internal/keystore"
	"ecg-deid/internal/locator"
	"ecg-deid/internal/timeshift"
)

// IdentityLookup resolves an MRN to its single surrogate identity.
type IdentityLookup interface {
	Lookup(mrn string) (keystore.Identity, error)
}

// Document is one report ready for redaction.
type Document struct {
	Path      string
	MRN       string
	Fragments []ecg.Fragment
}

// Result is a fully redacted fragment sequence.
type Result struct {
	Fragments     []ecg.Fragment
	PatientID     string
	SurrogateDate time.Time
	Age           int
	Offset        timeshift.Offset
	// Shifted counts findings fragments whose timestamp was rewritten.
	Shifted  int
	Warnings []Warning
}

// Warning is a problem that does not fail the document but needs a person
// to look at the output.
type Warning struct {
	Kind    ecg.Kind
	Message string
}

// OutputName returns "{patient id}_{YYYY-MM-DD}_EKG.{ext}".
func (r *Result) OutputName(ext string) string {
	return fmt.Sprintf("%s_%s_EKG.%s", r.PatientID, r.SurrogateDate.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

// requiredRoles must resolve for every document.
var requiredRoles = []string{
	locator.RoleName,
	locator.RoleMRN,
	locator.RoleECGDate,
	locator.RoleBirthdate,
	locator.RoleAdminBlock,
}

// Engine redacts documents against the loaded keys. It holds no per-document
// state and is safe for concurrent use.
type Engine struct {
	timestamps timeshift.SurrogateLookup
	identities IdentityLookup
	template   *locator.Template
}

// NewEngine creates an engine. A nil template selects the default layout.
func NewEngine(timestamps timeshift.SurrogateLookup, identities IdentityLookup, tmpl *locator.Template) *Engine {
	if tmpl == nil {
		tmpl = locator.DefaultTemplate()
	}
	return &Engine{timestamps: timestamps, identities: identities, template: tmpl}
}

// Redact de-identifies one document. The input fragments are never modified;
// on failure no result is returned and the error is an *ecg.Failure.
func (e *Engine) Redact(doc Document) (*Result, error) {
	mrn := doc.MRN

	id, err := e.identities.Lookup(mrn)
	if err != nil {
		return nil, ecg.NewFailure(ecg.KindIdentity, mrn, err, "identity lookup")
	}

	fields := locator.Locate(doc.Fragments, e.template)
	if err := fields.Require(requiredRoles...); err != nil {
		return nil, ecg.NewFailure(ecg.KindAnchor, mrn, err, "locating fields")
	}
	idx := func(role string) int {
		i, _ := fields.Index(role)
		return i
	}

	dateText := doc.Fragments[idx(locator.RoleECGDate)].Text
	anchor, err := timeshift.ParseTimestamp(dateText)
	if err != nil {
		return nil, ecg.NewFailure(ecg.KindAnchorTimestamp, mrn, err, "reading ECG date")
	}

	offset, err := timeshift.ResolveOffset(e.timestamps, mrn, anchor)
	if err != nil {
		return nil, ecg.NewFailure(ecg.KindTimestampKey, mrn, err, "ECG date lookup")
	}

	bdayIdx := idx(locator.RoleBirthdate)
	res := &Result{
		Fragments:     ecg.CloneAll(doc.Fragments),
		PatientID:     id.PatientID,
		SurrogateDate: offset.Surrogate,
		Offset:        offset,
		Age:           age(doc.Fragments[bdayIdx].Text, offset, id.Birthdate),
	}
	out := res.Fragments

	name := &out[idx(locator.RoleName)]
	name.Text = id.PatientID
	name.StripGlyphHints()

	date := &out[idx(locator.RoleECGDate)]
	date.Text = timeshift.Render(offset.Surrogate, timeshift.FormatDateTime)
	date.StripGlyphHints()

	bday := &out[bdayIdx]
	bday.Text = fmt.Sprintf("%s (%d yr)", timeshift.Render(id.Birthdate, timeshift.FormatDate), res.Age)
	bday.StripGlyphHints()

	out[idx(locator.RoleMRN)].Clear()

	for _, a := range e.template.LabelledAnchors() {
		i, err := fields.Index(a.Role)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    ecg.KindOptionalField,
				Message: fmt.Sprintf("please verify that the report has no %q field", a.LabelText()),
			})
			continue
		}
		out[i].Text = a.LabelText()
		out[i].StripGlyphHints()
	}

	start, end, err := fields.Findings()
	if err != nil {
		return nil, ecg.NewFailure(ecg.KindAnchor, mrn, err, "locating findings")
	}
	for i := start; i < end; i++ {
		text, shifted, err := timeshift.Shift(out[i].Text, offset)
		if err != nil {
			return nil, ecg.NewFailure(ecg.KindFindingFormat, mrn, err, "shifting finding %d", i)
		}
		if shifted {
			out[i].Text = text
			res.Shifted++
		}
	}

	out[idx(locator.RoleAdminBlock)].Clear()

	markers := residualMarkers{
		names: NameTokens(doc.Fragments[idx(locator.RoleName)].Text),
		mrn:   strings.TrimLeft(mrn, "0"),
		texts: []string{
			timeshift.Render(offset.Real, timeshift.FormatDate),
			offset.Real.Format("2006-01-02"),
		},
	}
	for _, i := range markers.find(out) {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    ecg.KindResidual,
			Message: fmt.Sprintf("fragment %d may still identify the patient", i),
		})
	}
	return res, nil
}

// age is computed from real dates: the anchor and the birthdate printed on the
// report. When the report birthdate cannot be read the surrogate pair is used.
func age(birthText string, offset timeshift.Offset, surrogateBirth time.Time) int {
	if m, ok := timeshift.FindTimestamp(birthText); ok && !m.Time.After(offset.Real) {
		return timeshift.AgeAt(offset.Real, m.Time)
	}
	return timeshift.AgeAt(offset.Surrogate, surrogateBirth)
}
