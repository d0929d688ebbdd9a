package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecg-deid/internal/ecg"
)

func fragments(texts ...string) []ecg.Fragment {
	out := make([]ecg.Fragment, len(texts))
	for i, t := range texts {
		out[i] = ecg.Fragment{Index: i, Text: t, X: []string{"10", "12"}, Y: "5"}
	}
	return out
}

func report(trailing ...string) []ecg.Fragment {
	texts := []string{
		"SMITH, JOHN",
		"ID:000012345",
		"15-Mar-2020 10:30:00",
		"Geisinger Health System",
		"Sinus rhythm",
		"Compared to prior ECG dated 14-Mar-2020",
		"25mm/s 10mm/mV 40Hz",
		"Referred by: JONES",
		"Confirmed By: DOE, JANE",
		"P-R-T axes 60 45 30",
		"10-Jan-1950 (70 yr)",
		"Technician: AB",
		"EID:1 EDT:2 ORDER:3 ACCOUNT:4",
	}
	return fragments(append(texts, trailing...)...)
}

func TestLocateDefaultTemplate(t *testing.T) {
	m := Locate(report(), DefaultTemplate())
	require.NoError(t, m.Require(RoleName, RoleMRN, RoleECGDate, RoleBirthdate, RoleAdminBlock))

	want := map[string]int{
		RoleName:        0,
		RoleMRN:         1,
		RoleECGDate:     2,
		RoleBanner:      3,
		RolePaperSpeed:  6,
		RoleReferredBy:  7,
		RoleConfirmedBy: 8,
		RolePRTAxes:     9,
		RoleBirthdate:   10,
		RoleTechnician:  11,
		RoleAdminBlock:  12,
	}
	for role, idx := range want {
		got, err := m.Index(role)
		require.NoError(t, err, role)
		assert.Equal(t, idx, got, role)
	}

	start, end, err := m.Findings()
	require.NoError(t, err)
	assert.Equal(t, 4, start)
	assert.Equal(t, 6, end)
	assert.Empty(t, m.Missing())
}

func TestLocateToleratesTrailingUnitFragments(t *testing.T) {
	plain := Locate(report(), DefaultTemplate())
	withUnits := Locate(report("180 lb", "70 in"), DefaultTemplate())

	assert.Equal(t, 0, plain.Trailing())
	assert.Equal(t, 2, withUnits.Trailing())

	for _, role := range []string{RoleName, RoleMRN, RoleECGDate, RoleBirthdate, RoleAdminBlock} {
		a, err := plain.Index(role)
		require.NoError(t, err)
		b, err := withUnits.Index(role)
		require.NoError(t, err)
		assert.Equal(t, a, b, role)
	}
}

func TestLocateFirstMatchWins(t *testing.T) {
	frags := fragments("NAME", "ID:1", "date", "ID:2", "Health System", "25mm/s", "P-R-T axes", "bday", "admin")
	m := Locate(frags, DefaultTemplate())

	idx, err := m.Index(RoleMRN)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestLocateOneFragmentOneAnchor(t *testing.T) {
	tmpl := &Template{Anchors: []Anchor{
		{Role: "a", Pattern: "Referred", Match: MatchPrefix},
		{Role: "b", Pattern: "Referred by:", Match: MatchPrefix},
	}}
	m := Locate(fragments("Referred by: X", "Referred by: Y"), tmpl)

	a, err := m.Index("a")
	require.NoError(t, err)
	b, err := m.Index("b")
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestLocateUnresolved(t *testing.T) {
	frags := report()
	frags[1].Text = "Patient number 12345"

	m := Locate(frags, DefaultTemplate())
	err := m.Require(RoleName)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), RoleMRN)

	_, err = m.Index(RoleName)
	assert.ErrorIs(t, err, ErrUnresolved, "derived role follows its anchor")
}

func TestLocateOptionalAnchorsMissing(t *testing.T) {
	frags := report()
	frags[11].Text = "Unconfirmed"

	m := Locate(frags, DefaultTemplate())
	require.NoError(t, m.Require())
	assert.Equal(t, []string{RoleTechnician}, m.Missing())
}

func TestIsMeasurement(t *testing.T) {
	units := []string{"lb", "lbs", "in", "kg", "cm"}
	tests := []struct {
		text string
		want bool
	}{
		{"180 lb", true},
		{"180lbs", true},
		{"70 in", true},
		{" 82 KG ", true},
		{"Sinus rhythm", false},
		{"Order 12 min", false},
		{"in", false},
		{"EID:1 EDT:2 ORDER:3 ACCOUNT:4", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isMeasurement(tt.text, units), tt.text)
	}
}

func TestMRNFromField(t *testing.T) {
	mrn, err := MRNFromField("ID:000012345")
	require.NoError(t, err)
	assert.Equal(t, "12345", mrn)

	mrn, err = MRNFromField("ID: 0042 ")
	require.NoError(t, err)
	assert.Equal(t, "42", mrn)

	_, err = MRNFromField("ID:0000")
	assert.ErrorIs(t, err, ErrUnresolved)
	_, err = MRNFromField("no id")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestTemplateRoundTrip(t *testing.T) {
	tmpl := DefaultTemplate()
	data, err := tmpl.Marshal()
	require.NoError(t, err)

	again, err := ParseTemplate(data)
	require.NoError(t, err)
	assert.Equal(t, tmpl, again)
}

func TestLoadTemplate(t *testing.T) {
	tmpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, "resting-ecg", tmpl.Name)

	a, ok := tmpl.Anchor(RoleReferredBy)
	require.True(t, ok)
	assert.Equal(t, "Referred by:", a.LabelText())
	assert.Len(t, tmpl.LabelledAnchors(), 3)

	path := filepath.Join(t.TempDir(), "t.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "custom"
[[anchors]]
role = "mrn"
pattern = "MRN"
match = "prefix"
required = true
[[derived]]
role = "name"
anchor = "mrn"
offset = -2
`), 0644))
	tmpl, err = LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, -2, tmpl.Derived[0].Offset)
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad match", "[[anchors]]\nrole='a'\npattern='x'\nmatch='regex'\n"},
		{"duplicate role", "[[anchors]]\nrole='a'\npattern='x'\nmatch='prefix'\n[[derived]]\nrole='a'\nanchor='a'\noffset=1\n"},
		{"unknown anchor", "[[anchors]]\nrole='a'\npattern='x'\nmatch='prefix'\n[[derived]]\nrole='b'\nanchor='c'\noffset=1\n"},
		{"empty pattern", "[[anchors]]\nrole='a'\nmatch='prefix'\n"},
		{"bad region", "[[anchors]]\nrole='a'\npattern='x'\nmatch='prefix'\n[findings]\nstart='a'\nend='z'\n"},
		{"not toml", "[[anchors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.src))
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}
