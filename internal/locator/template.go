package locator

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Role names used by the default report template.
const (
	RoleName        = "name"
	RoleMRN         = "mrn"
	RoleECGDate     = "ecg_date"
	RoleBirthdate   = "birthdate"
	RoleBanner      = "banner"
	RolePaperSpeed  = "paper_speed"
	RolePRTAxes     = "prt_axes"
	RoleReferredBy  = "referred_by"
	RoleConfirmedBy = "confirmed_by"
	RoleTechnician  = "technician"
	RoleAdminBlock  = "admin_block"
)

// MatchKind selects how an anchor pattern is tested against fragment text.
type MatchKind string

const (
	MatchPrefix   MatchKind = "prefix"
	MatchContains MatchKind = "contains"
)

// ErrInvalidTemplate is returned when a report template cannot be used.
var ErrInvalidTemplate = errors.New("invalid report template")

//go:embed default_template.toml
var defaultTemplateTOML []byte

// Anchor identifies a fragment by its label text.
type Anchor struct {
	Role     string    `toml:"role"`
	Pattern  string    `toml:"pattern"`
	Match    MatchKind `toml:"match"`
	FoldCase bool      `toml:"fold_case,omitempty"`
	Required bool      `toml:"required,omitempty"`
	// KeepLabel marks a labelled field whose value is removed while the
	// label text stays. Label defaults to Pattern.
	KeepLabel bool   `toml:"keep_label,omitempty"`
	Label     string `toml:"label,omitempty"`
}

// LabelText returns the text left behind when the field value is removed.
func (a Anchor) LabelText() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Pattern
}

// Derived places a role at a fixed offset from a resolved anchor.
type Derived struct {
	Role   string `toml:"role"`
	Anchor string `toml:"anchor"`
	Offset int    `toml:"offset"`
}

// Region is a half-open fragment range bounded by two anchors.
type Region struct {
	Start       string `toml:"start"`
	StartOffset int    `toml:"start_offset"`
	End         string `toml:"end"`
	EndOffset   int    `toml:"end_offset"`
}

// EndRole is a role counted from the end of the fragment sequence, after
// optional unit-bearing trailing fragments are skipped. FromEnd 1 is the last
// remaining fragment.
type EndRole struct {
	Role    string `toml:"role"`
	FromEnd int    `toml:"from_end"`
}

// Trailing describes optional fragments at the end of the sequence.
type Trailing struct {
	Units []string  `toml:"units"`
	Roles []EndRole `toml:"roles"`
}

// Template is the declarative layout of one report type.
type Template struct {
	Name     string    `toml:"name"`
	Anchors  []Anchor  `toml:"anchors"`
	Derived  []Derived `toml:"derived"`
	Findings Region    `toml:"findings"`
	Trailing Trailing  `toml:"trailing"`
}

// DefaultTemplate returns the embedded resting ECG template.
func DefaultTemplate() *Template {
	t, err := ParseTemplate(defaultTemplateTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded template: %v", err))
	}
	return t
}

// LoadTemplate reads a template from a TOML file. An empty path returns the
// default template.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read template: %w", err)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate decodes and validates a TOML template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Marshal encodes the template as TOML.
func (t *Template) Marshal() ([]byte, error) {
	return toml.Marshal(t)
}

// Validate checks anchor kinds, role uniqueness and references.
func (t *Template) Validate() error {
	roles := make(map[string]bool)
	anchors := make(map[string]bool)
	add := func(role string) error {
		if role == "" {
			return fmt.Errorf("%w: empty role", ErrInvalidTemplate)
		}
		if roles[role] {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidTemplate, role)
		}
		roles[role] = true
		return nil
	}

	for _, a := range t.Anchors {
		if err := add(a.Role); err != nil {
			return err
		}
		if a.Pattern == "" {
			return fmt.Errorf("%w: anchor %q has no pattern", ErrInvalidTemplate, a.Role)
		}
		switch a.Match {
		case MatchPrefix, MatchContains:
		default:
			return fmt.Errorf("%w: anchor %q has unknown match kind %q", ErrInvalidTemplate, a.Role, a.Match)
		}
		anchors[a.Role] = true
	}

	for _, d := range t.Derived {
		if err := add(d.Role); err != nil {
			return err
		}
		if !anchors[d.Anchor] {
			return fmt.Errorf("%w: derived role %q refers to unknown anchor %q", ErrInvalidTemplate, d.Role, d.Anchor)
		}
	}

	for _, r := range t.Trailing.Roles {
		if err := add(r.Role); err != nil {
			return err
		}
		if r.FromEnd < 1 {
			return fmt.Errorf("%w: end role %q needs from_end >= 1", ErrInvalidTemplate, r.Role)
		}
	}

	if t.Findings.Start != "" || t.Findings.End != "" {
		if !anchors[t.Findings.Start] || !anchors[t.Findings.End] {
			return fmt.Errorf("%w: findings region must be bounded by anchors", ErrInvalidTemplate)
		}
	}
	return nil
}

// Anchor returns the anchor definition for role.
func (t *Template) Anchor(role string) (Anchor, bool) {
	for _, a := range t.Anchors {
		if a.Role == role {
			return a, true
		}
	}
	return Anchor{}, false
}

// LabelledAnchors returns the anchors whose value is removed but label kept.
func (t *Template) LabelledAnchors() []Anchor {
	var out []Anchor
	for _, a := range t.Anchors {
		if a.KeepLabel {
			out = append(out, a)
		}
	}
	return out
}
