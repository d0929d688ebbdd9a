package svgdoc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"ecg-deid/internal/ecg"
)

// ErrFragmentMismatch is returned when a fragment sequence does not belong
// to the document it is applied to.
var ErrFragmentMismatch = errors.New("fragment sequence does not match document")

// Document is a rendered report page. Every tspan is one text fragment.
type Document struct {
	doc   *etree.Document
	spans []*etree.Element
}

// Load parses an SVG page.
func Load(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("could not parse SVG %s: %w", filepath.Base(path), err)
	}
	return newDocument(doc), nil
}

// Parse reads an SVG page from memory.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("could not parse SVG: %w", err)
	}
	return newDocument(doc), nil
}

func newDocument(doc *etree.Document) *Document {
	return &Document{doc: doc, spans: doc.FindElements("//tspan")}
}

// Fragments returns the text fragments in document order.
func (d *Document) Fragments() []ecg.Fragment {
	frags := make([]ecg.Fragment, len(d.spans))
	for i, el := range d.spans {
		frags[i] = ecg.Fragment{
			Index: i,
			Text:  el.Text(),
			X:     strings.Fields(el.SelectAttrValue("x", "")),
			Y:     el.SelectAttrValue("y", ""),
		}
	}
	return frags
}

// Apply writes fragment text and positions back into the page. A cleared
// fragment leaves an empty tspan with no attributes.
func (d *Document) Apply(frags []ecg.Fragment) error {
	if len(frags) != len(d.spans) {
		return fmt.Errorf("%w: %d fragments for %d spans", ErrFragmentMismatch, len(frags), len(d.spans))
	}
	for i, f := range frags {
		if f.Index != i {
			return fmt.Errorf("%w: fragment %d at position %d", ErrFragmentMismatch, f.Index, i)
		}
		el := d.spans[i]
		if f.IsCleared() {
			el.SetText("")
			el.Attr = nil
			continue
		}
		el.SetText(f.Text)
		setOrRemove(el, "x", strings.Join(f.X, " "))
		setOrRemove(el, "y", f.Y)
	}
	return nil
}

func setOrRemove(el *etree.Element, key, value string) {
	if value == "" {
		el.RemoveAttr(key)
		return
	}
	el.CreateAttr(key, value)
}

// Bytes serialises the page.
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// Save writes the page atomically: a temporary file in the destination
// directory is synced and renamed over path.
func (d *Document) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ecg-deid-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := d.doc.WriteTo(tmp); err != nil {
		cleanup()
		return fmt.Errorf("could not write SVG: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("could not sync SVG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not close SVG: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move SVG into place: %w", err)
	}
	return nil
}
