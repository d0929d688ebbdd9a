package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecg-deid/internal/ecg"
	"ecg-deid/internal/keystore"
)

const (
	ecgKeyCSV = "MRN,ECG_DATE,ECG_DATE_DEID\n" +
		"12345,2020-03-15 10:30:00,2000-01-01 00:00:00\n"
	idKeyCSV = "MRN,PT_ID,BDAY_DEID\n" +
		"12345,PT001,1950-01-10\n" +
		"555,PT002,1960-02-02\n" +
		"555,PT003,1961-03-03\n"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	ts, err := keystore.ReadTimestampKey(strings.NewReader(ecgKeyCSV))
	require.NoError(t, err)
	ids, err := keystore.ReadIdentityKey(strings.NewReader(idKeyCSV))
	require.NoError(t, err)
	return NewEngine(ts, ids, nil)
}

func testDocument(mrn string, trailing ...string) Document {
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
	texts = append(texts, trailing...)

	frags := make([]ecg.Fragment, len(texts))
	for i, t := range texts {
		frags[i] = ecg.Fragment{Index: i, Text: t, X: []string{"10", "16", "22"}, Y: "40"}
	}
	return Document{Path: "12345/ecg.pdf", MRN: mrn, Fragments: frags}
}

func TestRedactEndToEnd(t *testing.T) {
	doc := testDocument("12345")
	original := ecg.CloneAll(doc.Fragments)

	res, err := testEngine(t).Redact(doc)
	require.NoError(t, err)

	out := res.Fragments
	assert.Equal(t, "PT001", out[0].Text)
	assert.Equal(t, []string{"10"}, out[0].X)
	assert.True(t, out[1].IsCleared())
	assert.Equal(t, "01-JAN-2000 00:00:00", out[2].Text)
	assert.Equal(t, []string{"10"}, out[2].X)
	assert.Equal(t, "Geisinger Health System", out[3].Text)
	assert.Equal(t, "Sinus rhythm", out[4].Text)
	assert.Equal(t, "Compared to prior ECG dated 31-DEC-1999", out[5].Text)
	assert.Equal(t, "Referred by:", out[7].Text)
	assert.Equal(t, "Confirmed By:", out[8].Text)
	assert.Equal(t, "10-JAN-1950 (70 yr)", out[10].Text)
	assert.Equal(t, "Technician:", out[11].Text)
	assert.True(t, out[12].IsCleared())

	assert.Equal(t, 70, res.Age)
	assert.Equal(t, 1, res.Shifted)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "PT001_2000-01-01_EKG.svg", res.OutputName("svg"))
	assert.Equal(t, "PT001_2000-01-01_EKG.svg", res.OutputName(".svg"))

	assert.Equal(t, original, doc.Fragments, "input sequence is left untouched")
}

func TestRedactAgeUsesRealDatesAndShowsSurrogateBirthdate(t *testing.T) {
	doc := testDocument("12345")
	doc.Fragments[10].Text = "02-Feb-1955"

	res, err := testEngine(t).Redact(doc)
	require.NoError(t, err)
	assert.Equal(t, 65, res.Age)
	assert.Equal(t, "10-JAN-1950 (65 yr)", res.Fragments[10].Text)
	assert.NotContains(t, res.Fragments[10].Text, "1955")
}

func TestRedactAgeFallsBackToSurrogatePair(t *testing.T) {
	doc := testDocument("12345")
	doc.Fragments[10].Text = "Vent. rate 72 BPM"

	res, err := testEngine(t).Redact(doc)
	require.NoError(t, err)
	assert.Equal(t, 49, res.Age)
}

func TestRedactWithTrailingUnits(t *testing.T) {
	res, err := testEngine(t).Redact(testDocument("12345", "180 lb", "70 in"))
	require.NoError(t, err)

	out := res.Fragments
	assert.True(t, out[12].IsCleared())
	assert.Equal(t, "180 lb", out[13].Text)
	assert.Equal(t, "70 in", out[14].Text)
}

func TestRedactMissingOptionalFields(t *testing.T) {
	doc := testDocument("12345")
	doc.Fragments[7].Text = "Unreferred"
	doc.Fragments[11].Text = "Tech unknown"

	res, err := testEngine(t).Redact(doc)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, ecg.KindOptionalField, res.Warnings[0].Kind)
	assert.Contains(t, res.Warnings[0].Message, `"Referred by:"`)
	assert.Contains(t, res.Warnings[1].Message, `"Technician:"`)
}

func TestRedactFailures(t *testing.T) {
	tests := []struct {
		name   string
		mrn    string
		mutate func(d *Document)
		kind   ecg.Kind
		target error
	}{
		{
			name:   "identity missing",
			mrn:    "99999",
			kind:   ecg.KindIdentity,
			target: keystore.ErrIdentityMissing,
		},
		{
			name:   "identity ambiguous",
			mrn:    "555",
			kind:   ecg.KindIdentity,
			target: keystore.ErrIdentityAmbiguous,
		},
		{
			name:   "anchor unresolved",
			mrn:    "12345",
			mutate: func(d *Document) { d.Fragments[9].Text = "axes" },
			kind:   ecg.KindAnchor,
		},
		{
			name:   "anchor timestamp unparseable",
			mrn:    "12345",
			mutate: func(d *Document) { d.Fragments[2].Text = "Pending" },
			kind:   ecg.KindAnchorTimestamp,
		},
		{
			name:   "anchor timestamp not in key",
			mrn:    "12345",
			mutate: func(d *Document) { d.Fragments[2].Text = "15-Mar-2020 10:30:01" },
			kind:   ecg.KindTimestampKey,
		},
		{
			name:   "unknown finding format",
			mrn:    "12345",
			mutate: func(d *Document) { d.Fragments[4].Text = "Compared with 3/14/2020" },
			kind:   ecg.KindFindingFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument(tt.mrn)
			if tt.mutate != nil {
				tt.mutate(&doc)
			}

			res, err := testEngine(t).Redact(doc)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, ecg.KindOf(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}

			var f *ecg.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.mrn, f.MRN)
		})
	}
}

func TestRedactFlagsResidualIdentifiers(t *testing.T) {
	doc := testDocument("12345")
	doc.Fragments[4].Text = "Sinus rhythm, Dr Smith notified"
	doc.Fragments[11].Text = "Technician: AB (MRN 000012345)"
	doc.Fragments = append(doc.Fragments[:13:13], ecg.Fragment{Index: 13, Text: "Printed 15-mar-2020"}, ecg.Fragment{Index: 14, Text: "EID:1"})

	res, err := testEngine(t).Redact(doc)
	require.NoError(t, err)

	var residual []string
	for _, w := range res.Warnings {
		if w.Kind == ecg.KindResidual {
			residual = append(residual, w.Message)
		}
	}
	assert.Equal(t, []string{
		"fragment 4 may still identify the patient",
		"fragment 13 may still identify the patient",
	}, residual)
	for _, m := range residual {
		assert.NotContains(t, m, "Smith")
	}
}
