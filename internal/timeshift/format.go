package timeshift

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownFormat is returned when a timestamp's textual format is not one
// of the recognised renderings.
var ErrUnknownFormat = errors.New("unknown date format")

// Format is the textual rendering of a report timestamp.
type Format int

const (
	FormatUnknown Format = iota
	FormatDateTime
	FormatDateTimeNoSeconds
	FormatDate
)

// Layouts for each Format, as printed on the report.
const (
	LayoutDateTime          = "02-Jan-2006 15:04:05"
	LayoutDateTimeNoSeconds = "02-Jan-2006 15:04"
	LayoutDate              = "02-Jan-2006"
)

func (f Format) String() string {
	switch f {
	case FormatDateTime:
		return "datetime"
	case FormatDateTimeNoSeconds:
		return "datetime-no-seconds"
	case FormatDate:
		return "date"
	}
	return "unknown"
}

// Layout returns the time layout of f.
func (f Format) Layout() string {
	switch f {
	case FormatDateTime:
		return LayoutDateTime
	case FormatDateTimeNoSeconds:
		return LayoutDateTimeNoSeconds
	case FormatDate:
		return LayoutDate
	}
	return ""
}

// Classify decides the format of text from its dash and colon counts:
// 2/2 is a full datetime, 2/1 a datetime without seconds, 2/0 a date.
// Anything else is ErrUnknownFormat.
func Classify(text string) (Format, error) {
	dashes := strings.Count(text, "-")
	colons := strings.Count(text, ":")
	if dashes == 2 {
		switch colons {
		case 2:
			return FormatDateTime, nil
		case 1:
			return FormatDateTimeNoSeconds, nil
		case 0:
			return FormatDate, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %d dashes, %d colons in %q", ErrUnknownFormat, dashes, colons, text)
}

// Render prints t in format f, upper-cased as on the report.
func Render(t time.Time, f Format) string {
	return strings.ToUpper(t.Format(f.Layout()))
}
