package redact

import (
	"regexp"
	"strings"

	"ecg-deid/internal/ecg"
)

// placeholderNames are name tokens that identify nobody.
var placeholderNames = map[string]bool{
	"UNKNOWN":   true,
	"NONAME":    true,
	"ANONYMOUS": true,
	"TEST":      true,
	"PATIENT":   true,
}

var nonAlpha = regexp.MustCompile(`[^A-Z\s]`)

// NameTokens splits a printed patient name into the tokens worth searching
// for: "SMITH, JOHN Q" gives SMITH and JOHN. Tokens shorter than three
// letters and placeholders are dropped.
func NameTokens(name string) []string {
	name = strings.ToUpper(name)
	name = strings.NewReplacer("^", " ", ",", " ").Replace(name)
	name = nonAlpha.ReplaceAllString(name, "")

	var tokens []string
	for _, part := range strings.Fields(name) {
		if len(part) < 3 || placeholderNames[part] {
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

// residualMarkers are identifying strings that must not survive redaction.
type residualMarkers struct {
	names []string // whole words
	mrn   string   // digits, with or without leading zeros
	texts []string // substrings
}

func (m residualMarkers) pattern() *regexp.Regexp {
	var alts []string
	for _, n := range m.names {
		alts = append(alts, regexp.QuoteMeta(n))
	}
	if m.mrn != "" {
		alts = append(alts, `0*`+regexp.QuoteMeta(m.mrn))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// find returns the positions of fragments that still carry a marker.
// Matching is case-insensitive.
func (m residualMarkers) find(frags []ecg.Fragment) []int {
	pattern := m.pattern()

	var hits []int
	for i, f := range frags {
		if f.IsCleared() {
			continue
		}
		hit := pattern != nil && pattern.MatchString(f.Text)
		upper := strings.ToUpper(f.Text)
		for _, t := range m.texts {
			if t != "" && strings.Contains(upper, strings.ToUpper(t)) {
				hit = true
			}
		}
		if hit {
			hits = append(hits, i)
		}
	}
	return hits
}
