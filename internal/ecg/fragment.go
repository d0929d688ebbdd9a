package ecg

// Fragment is one positioned run of text from a rendered report page.
// Fragments are addressed by their render order; Index never changes once the
// sequence has been produced.
type Fragment struct {
	Index int
	Text  string
	X     []string // per-glyph x positions as rendered
	Y     string
}

// Clear empties the fragment text and drops its position hints.
func (f *Fragment) Clear() {
	f.Text = ""
	f.X = nil
	f.Y = ""
}

// IsCleared reports whether the fragment carries neither text nor position.
func (f *Fragment) IsCleared() bool {
	return f.Text == "" && len(f.X) == 0 && f.Y == ""
}

// StripGlyphHints keeps only the first x position so a replacement text of a
// different length is laid out from the original start point.
func (f *Fragment) StripGlyphHints() {
	if len(f.X) > 1 {
		f.X = f.X[:1]
	}
}

// Clone returns a deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	out := f
	if f.X != nil {
		out.X = append([]string(nil), f.X...)
	}
	return out
}

// CloneAll deep-copies a fragment sequence.
func CloneAll(frags []Fragment) []Fragment {
	out := make([]Fragment, len(frags))
	for i, f := range frags {
		out[i] = f.Clone()
	}
	return out
}

// Texts returns the text of every fragment in order.
func Texts(frags []Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}
