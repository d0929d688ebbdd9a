package ecg

import (
	"errors"
	"fmt"
)

// Kind classifies a per-document failure.
type Kind string

const (
	KindRender          Kind = "render"
	KindAnchor          Kind = "anchor"
	KindAnchorTimestamp Kind = "anchor_timestamp"
	KindIdentity        Kind = "identity"
	KindTimestampKey    Kind = "timestamp_key"
	KindFindingFormat   Kind = "finding_format"
	KindArtifact        Kind = "artifact"
	KindOptionalField   Kind = "optional_field"
	KindResidual        Kind = "residual_phi"
	KindOutput          Kind = "output"
)

// Failure is a document-level failure. It never aborts a batch.
type Failure struct {
	Kind   Kind
	MRN    string
	Detail string
	Err    error
}

// NewFailure creates a failure of the given kind.
func NewFailure(kind Kind, mrn string, err error, format string, args ...any) *Failure {
	return &Failure{
		Kind:   kind,
		MRN:    mrn,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message()
}

// Message returns the failure without its kind prefix.
func (f *Failure) Message() string {
	if f.Err != nil {
		return f.Detail + ": " + f.Err.Error()
	}
	return f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind carried by err, or "" if err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
