package timeshift

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparseable is returned when no timestamp can be read from text.
var ErrUnparseable = errors.New("unparseable timestamp")

var layouts = []string{
	"2-Jan-2006 15:04:05",
	"2-Jan-2006 15:04",
	"2-Jan-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp reads a timestamp using the report layouts first and the
// general-purpose parser second. Any zone is dropped; the wall clock is kept.
func ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, text)
	}
	return wallClock(t), nil
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

const (
	month   = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*`
	clock   = `(?:\s+(\d{1,2}:\d{2}(?::\d{2})?))?`
	isoTime = `(?:[ T](\d{2}:\d{2}(?::\d{2})?))?`
)

// tokenPatterns match a date embedded in prose. The first group is the
// optional time of day.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}-` + month + `-\d{4}` + clock),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}` + isoTime),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}` + clock),
	regexp.MustCompile(`(?i)\b` + month + `\.?\s+\d{1,2},?\s+\d{4}` + clock),
}

// Match is a timestamp found inside a larger text.
type Match struct {
	Start, End int
	Text       string
	Time       time.Time
	// Precision is the format implied by the token alone.
	Precision Format
	// Layout is the report layout the token was read with; empty when only
	// the general-purpose parser understood it.
	Layout string
}

func tokenLayout(text string) string {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, text); err == nil {
			return layout
		}
	}
	return ""
}

// FindTimestamp returns the first recognisable timestamp in text.
// Fragments without a date, including bare times of day, do not match.
func FindTimestamp(text string) (Match, bool) {
	best := Match{Start: -1}
	var clockText string
	for _, re := range tokenPatterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best.Start >= 0 && loc[0] >= best.Start {
			continue
		}
		best = Match{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]}
		clockText = ""
		if loc[2] >= 0 {
			clockText = text[loc[2]:loc[3]]
		}
	}
	if best.Start < 0 {
		return Match{}, false
	}

	t, err := ParseTimestamp(best.Text)
	if err != nil {
		return Match{}, false
	}
	best.Time = t
	best.Layout = tokenLayout(best.Text)
	switch strings.Count(clockText, ":") {
	case 0:
		best.Precision = FormatDate
	case 1:
		best.Precision = FormatDateTimeNoSeconds
	default:
		best.Precision = FormatDateTime
	}
	return best, true
}
