package timeshift

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimestampMissing means the anchor timestamp is not in the timestamp key.
var ErrTimestampMissing = errors.New("timestamp not present in ECG key")

// SurrogateLookup resolves a real timestamp to its surrogate.
type SurrogateLookup interface {
	Surrogate(mrn string, real time.Time) (time.Time, bool)
}

// Offset is the shift of one document: real anchor minus surrogate anchor.
type Offset struct {
	Real      time.Time
	Surrogate time.Time
}

// Duration returns real − surrogate, exact to the second.
func (o Offset) Duration() time.Duration {
	return o.Real.Sub(o.Surrogate)
}

// Days returns the number of calendar days between the anchor dates.
func (o Offset) Days() int {
	return int(midnight(o.Real).Sub(midnight(o.Surrogate)) / (24 * time.Hour))
}

// Inverse returns the offset that undoes o.
func (o Offset) Inverse() Offset {
	return Offset{Real: o.Surrogate, Surrogate: o.Real}
}

// Apply shifts t. Timestamps with a time of day move by the exact duration;
// bare dates move by whole calendar days.
func (o Offset) Apply(t time.Time, f Format) time.Time {
	if f == FormatDate {
		return t.AddDate(0, 0, -o.Days())
	}
	return t.Add(-o.Duration())
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResolveOffset looks up the surrogate for the anchor timestamp.
func ResolveOffset(key SurrogateLookup, mrn string, anchor time.Time) (Offset, error) {
	surrogate, ok := key.Surrogate(mrn, anchor)
	if !ok {
		return Offset{}, fmt.Errorf("%w: %s", ErrTimestampMissing, anchor.Format("2006-01-02 15:04:05"))
	}
	return Offset{Real: anchor, Surrogate: surrogate}, nil
}

// Shift moves the first timestamp in text by offset and splices the new
// rendering over the original, leaving the surrounding text as is. Month-name
// dates are rendered upper-cased on the report layout; ISO dates keep their
// own layout. It reports
// whether text contained a timestamp.
func Shift(text string, offset Offset) (string, bool, error) {
	m, ok := FindTimestamp(text)
	if !ok {
		return text, false, nil
	}

	format, err := Classify(text)
	if err != nil {
		return text, true, err
	}
	if format != m.Precision {
		return text, true, fmt.Errorf("%w: %q reads as %s but the date is %s", ErrUnknownFormat, text, format, m.Precision)
	}

	layout := format.Layout()
	if strings.HasPrefix(m.Layout, "2006-") {
		// numeric tokens keep their own rendering
		layout = m.Layout
	}

	start, end := m.Start, m.End
	original := m.Time.Format(layout)
	if idx := strings.Index(strings.ToLower(text), strings.ToLower(original)); idx >= 0 {
		start, end = idx, idx+len(original)
	}

	rendered := strings.ToUpper(offset.Apply(m.Time, format).Format(layout))
	return text[:start] + rendered + text[end:], true, nil
}

// AgeAt returns the age in whole years at time at for someone born at birth.
func AgeAt(at, birth time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}
