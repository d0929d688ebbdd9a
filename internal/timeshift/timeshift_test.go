package timeshift

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapKey map[string]map[time.Time]time.Time

func (k mapKey) Surrogate(mrn string, real time.Time) (time.Time, bool) {
	s, ok := k[mrn][real]
	return s, ok
}

var (
	realAnchor      = time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)
	surrogateAnchor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"15-Mar-2020 10:30:00", realAnchor},
		{"15-MAR-2020 10:30", realAnchor},
		{"15-Mar-2020", time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"5-Mar-2020", time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2020-03-15 10:30:00", realAnchor},
		{"2020-03-15T10:30:00", realAnchor},
		{"3/15/2020 10:30", realAnchor},
		{" 15-Mar-2020 10:30:00 ", realAnchor},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.text)
		require.NoError(t, err, tt.text)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.text, got)
	}

	_, err := ParseTimestamp("Sinus rhythm")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestResolveOffset(t *testing.T) {
	key := mapKey{"12345": {realAnchor: surrogateAnchor}}

	offset, err := ResolveOffset(key, "12345", realAnchor)
	require.NoError(t, err)
	assert.Equal(t, surrogateAnchor, offset.Surrogate)
	assert.Equal(t, realAnchor.Sub(surrogateAnchor), offset.Duration())
	assert.Equal(t, surrogateAnchor, offset.Apply(realAnchor, FormatDateTime), "shifting the anchor yields its surrogate")

	other := time.Date(2019, 7, 4, 16, 20, 5, 0, time.UTC)
	shifted := offset.Apply(other, FormatDateTime)
	assert.Equal(t, other.Add(-offset.Duration()), shifted)
	assert.Equal(t, other, offset.Inverse().Apply(shifted, FormatDateTime))

	_, err = ResolveOffset(key, "12345", realAnchor.Add(time.Second))
	assert.ErrorIs(t, err, ErrTimestampMissing)

	_, err = ResolveOffset(key, "404", realAnchor)
	assert.ErrorIs(t, err, ErrTimestampMissing)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Format
	}{
		{"14-Mar-2020 08:15:30", FormatDateTime},
		{"Prior ECG 14-Mar-2020 08:15", FormatDateTimeNoSeconds},
		{"Compared to prior ECG dated 14-Mar-2020", FormatDate},
	}
	for _, tt := range tests {
		got, err := Classify(tt.text)
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}

	for _, text := range []string{"3/14/2020", "Mar 14, 2020", "Sinus - rhythm 14-Mar-2020", "14-Mar-2020 1:2:3:4"} {
		_, err := Classify(text)
		assert.ErrorIs(t, err, ErrUnknownFormat, text)
	}
}

func TestFindTimestamp(t *testing.T) {
	m, ok := FindTimestamp("Compared to prior ECG dated 14-Mar-2020, no change")
	require.True(t, ok)
	assert.Equal(t, "14-Mar-2020", m.Text)
	assert.Equal(t, 28, m.Start)
	assert.Equal(t, FormatDate, m.Precision)

	m, ok = FindTimestamp("seen 2020-03-14 08:15 and 13-Mar-2020")
	require.True(t, ok)
	assert.Equal(t, "2020-03-14 08:15", m.Text)
	assert.Equal(t, FormatDateTimeNoSeconds, m.Precision)
	assert.Equal(t, "2006-01-02 15:04", m.Layout)

	for _, text := range []string{"Sinus rhythm", "QT/QTc 400/420 ms", "at 10:30", ""} {
		_, ok := FindTimestamp(text)
		assert.False(t, ok, text)
	}
}

var offset = Offset{Real: realAnchor, Surrogate: surrogateAnchor}

func TestShiftPreservesProse(t *testing.T) {
	got, ok, err := Shift("Compared to prior ECG dated 14-Mar-2020", offset)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Compared to prior ECG dated 31-DEC-1999", got)

	got, ok, err = Shift("Sinus rhythm", offset)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Sinus rhythm", got)
}

func TestShiftFormatPreservation(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"When compared with ECG of 14-Mar-2020 08:15:30 no change", "When compared with ECG of 30-DEC-1999 21:45:30 no change"},
		{"When compared with ECG of 14-MAR-2020 08:15 no change", "When compared with ECG of 30-DEC-1999 21:45 no change"},
		{"14-Mar-2020", "31-DEC-1999"},
		{"since 4-Mar-2020", "since 21-DEC-1999"},
		{"Prior study 2020-03-14 unchanged", "Prior study 1999-12-31 unchanged"},
		{"Prior study 2020-03-14 08:15:30 unchanged", "Prior study 1999-12-30 21:45:30 unchanged"},
		{"Prior study 2020-03-14T08:15", "Prior study 1999-12-30T21:45"},
	}
	for _, tt := range tests {
		got, _, err := Shift(tt.text, offset)
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, strings.Count(tt.text, "-"), strings.Count(got, "-"))
		assert.Equal(t, strings.Count(tt.text, ":"), strings.Count(got, ":"))
	}
}

func TestShiftRoundTrip(t *testing.T) {
	for _, in := range []string{"Previous tracing 14-MAR-2020 08:15:30", "Previous tracing 14-MAR-2020", "Previous tracing 2020-03-14"} {
		out, _, err := Shift(in, offset)
		require.NoError(t, err)
		back, _, err := Shift(out, offset.Inverse())
		require.NoError(t, err)
		assert.Equal(t, in, back)
	}
}

func TestShiftUnknownFormat(t *testing.T) {
	_, ok, err := Shift("Compared with 3/14/2020", offset)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = Shift("Rate-related change 14-Mar-2020", offset)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = Shift("14-Mar-2020 at 10:30", offset)
	assert.ErrorIs(t, err, ErrUnknownFormat, "time not adjacent to the date")
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(1950, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 70, AgeAt(time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC), birth))
	assert.Equal(t, 69, AgeAt(time.Date(2020, 1, 9, 23, 0, 0, 0, time.UTC), birth))
	assert.Equal(t, 70, AgeAt(time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC), birth))
	assert.Equal(t, 0, AgeAt(birth, birth))
}

func TestRender(t *testing.T) {
	at := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "01-JAN-2000 00:00:00", Render(at, FormatDateTime))
	assert.Equal(t, "01-JAN-2000 00:00", Render(at, FormatDateTimeNoSeconds))
	assert.Equal(t, "01-JAN-2000", Render(at, FormatDate))
}
