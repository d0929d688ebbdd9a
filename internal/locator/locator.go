package locator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"ecg-deid/internal/ecg"
)

// ErrUnresolved means a role has no fragment in this document.
var ErrUnresolved = errors.New("unresolved field")

// FieldMap maps semantic roles to fragment indexes for one document.
// It is derived fresh for every document and never reused.
type FieldMap struct {
	roles    map[string]int
	missing  []string
	required []string
	trailing int
	count    int
	findings Region
}

// Locate scans the fragments once and resolves every role of the template.
func Locate(frags []ecg.Fragment, tmpl *Template) *FieldMap {
	m := &FieldMap{
		roles:    make(map[string]int),
		count:    len(frags),
		findings: tmpl.Findings,
	}

	pending := make([]Anchor, len(tmpl.Anchors))
	copy(pending, tmpl.Anchors)

	for i, f := range frags {
		for j, a := range pending {
			if matches(a, f.Text) {
				m.roles[a.Role] = i
				pending = append(pending[:j], pending[j+1:]...)
				break
			}
		}
		if len(pending) == 0 {
			break
		}
	}

	for _, a := range tmpl.Anchors {
		if _, ok := m.roles[a.Role]; ok {
			continue
		}
		if a.Required {
			m.required = append(m.required, a.Role)
		} else {
			m.missing = append(m.missing, a.Role)
		}
	}

	for _, d := range tmpl.Derived {
		base, ok := m.roles[d.Anchor]
		if !ok {
			continue
		}
		if idx := base + d.Offset; idx >= 0 && idx < len(frags) {
			m.roles[d.Role] = idx
		}
	}

	m.trailing = countTrailingUnits(frags, tmpl.Trailing.Units)
	for _, r := range tmpl.Trailing.Roles {
		if idx := len(frags) - m.trailing - r.FromEnd; idx >= 0 {
			m.roles[r.Role] = idx
		}
	}
	return m
}

func matches(a Anchor, text string) bool {
	pattern := a.Pattern
	if a.FoldCase {
		text = strings.ToLower(text)
		pattern = strings.ToLower(pattern)
	}
	if a.Match == MatchContains {
		return strings.Contains(text, pattern)
	}
	return strings.HasPrefix(text, pattern)
}

// countTrailingUnits counts consecutive fragments at the end of the sequence
// that carry a measurement with one of the given units, such as "180 lb".
func countTrailingUnits(frags []ecg.Fragment, units []string) int {
	if len(units) == 0 {
		return 0
	}
	n := 0
	for i := len(frags) - 1; i >= 0; i-- {
		if !isMeasurement(frags[i].Text, units) {
			break
		}
		n++
	}
	return n
}

func isMeasurement(text string, units []string) bool {
	text = strings.TrimSpace(text)
	if !strings.ContainsFunc(text, unicode.IsDigit) {
		return false
	}
	lower := strings.TrimRight(strings.ToLower(text), ".")
	for _, u := range units {
		if !strings.HasSuffix(lower, u) {
			continue
		}
		// the unit must not be the tail of a longer word
		rest := lower[:len(lower)-len(u)]
		if rest == "" {
			return false
		}
		last := rune(rest[len(rest)-1])
		if unicode.IsDigit(last) || unicode.IsSpace(last) {
			return true
		}
	}
	return false
}

// Index returns the fragment index of role.
func (m *FieldMap) Index(role string) (int, error) {
	idx, ok := m.roles[role]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnresolved, role)
	}
	return idx, nil
}

// Has reports whether role resolved.
func (m *FieldMap) Has(role string) bool {
	_, ok := m.roles[role]
	return ok
}

// Require returns an error naming the first required anchor or the first of
// roles that did not resolve.
func (m *FieldMap) Require(roles ...string) error {
	if len(m.required) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolved, m.required[0])
	}
	for _, r := range roles {
		if _, err := m.Index(r); err != nil {
			return err
		}
	}
	return nil
}

// Missing returns optional anchors that were not found.
func (m *FieldMap) Missing() []string {
	return m.missing
}

// Trailing returns the number of optional unit-bearing fragments at the end.
func (m *FieldMap) Trailing() int {
	return m.trailing
}

// Findings returns the half-open findings range [start, end).
func (m *FieldMap) Findings() (start, end int, err error) {
	if m.findings.Start == "" {
		return 0, 0, nil
	}
	s, err := m.Index(m.findings.Start)
	if err != nil {
		return 0, 0, err
	}
	e, err := m.Index(m.findings.End)
	if err != nil {
		return 0, 0, err
	}
	start, end = s+m.findings.StartOffset, e+m.findings.EndOffset
	if start < 0 || end > m.count || start > end {
		return 0, 0, fmt.Errorf("%w: findings region [%d, %d)", ErrUnresolved, start, end)
	}
	return start, end, nil
}

// MRNFromField extracts the MRN from an "ID:" field, dropping leading zeros.
func MRNFromField(text string) (string, error) {
	_, value, ok := strings.Cut(text, ":")
	if !ok {
		return "", fmt.Errorf("%w: no MRN in %q", ErrUnresolved, text)
	}
	mrn := strings.TrimLeft(strings.TrimSpace(value), "0")
	if mrn == "" {
		return "", fmt.Errorf("%w: empty MRN in %q", ErrUnresolved, text)
	}
	return mrn, nil
}
