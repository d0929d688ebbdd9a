package ecg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentClearIsIdempotent(t *testing.T) {
	f := Fragment{Index: 3, Text: "ID:000012345", X: []string{"10", "15.5", "21"}, Y: "40"}

	f.Clear()
	once := f.Clone()
	f.Clear()

	assert.Equal(t, once, f)
	assert.True(t, f.IsCleared())
	assert.Equal(t, 3, f.Index)
}

func TestFragmentStripGlyphHints(t *testing.T) {
	tests := []struct {
		name string
		x    []string
		want []string
	}{
		{"many hints", []string{"10", "15", "20"}, []string{"10"}},
		{"single hint", []string{"10"}, []string{"10"}},
		{"no hints", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Fragment{Text: "SMITH, JOHN", X: tt.x}
			f.StripGlyphHints()
			assert.Equal(t, tt.want, f.X)
		})
	}
}

func TestCloneAllDoesNotShareHints(t *testing.T) {
	src := []Fragment{{Index: 0, Text: "a", X: []string{"1", "2"}}}
	dst := CloneAll(src)

	dst[0].X[0] = "99"
	dst[0].Text = "b"

	assert.Equal(t, "1", src[0].X[0])
	assert.Equal(t, "a", src[0].Text)
}

func TestFailureKind(t *testing.T) {
	cause := errors.New("boom")
	err := error(NewFailure(KindIdentity, "12345", cause, "MRN %s not present in ID key", "12345"))

	require.Equal(t, KindIdentity, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "MRN 12345 not present in ID key")
	assert.Equal(t, Kind(""), KindOf(cause))
}
