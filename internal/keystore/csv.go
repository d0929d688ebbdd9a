package keystore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMalformedRow is returned when any key file row cannot be used.
var ErrMalformedRow = errors.New("malformed key row")

// row is one positional record of a key file: patient identifier plus a pair.
type row struct {
	line   int
	mrn    string
	first  string
	second string
}

// readRows reads a three-column key file. The first row is a header and is
// always skipped.
func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []row
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns, got %d: %w", line, len(rec), ErrMalformedRow)
		}
		mrn := strings.TrimSpace(rec[0])
		if mrn == "" {
			return nil, fmt.Errorf("line %d: empty MRN: %w", line, ErrMalformedRow)
		}
		rows = append(rows, row{
			line:   line,
			mrn:    mrn,
			first:  strings.TrimSpace(rec[1]),
			second: strings.TrimSpace(rec[2]),
		})
	}
	return rows, nil
}

func openKeyFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open key file: %w", err)
	}
	return f, nil
}
