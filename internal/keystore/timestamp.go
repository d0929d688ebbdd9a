package keystore

import (
	"fmt"
	"io"
	"time"
)

// TimestampLayout is the layout of both timestamp columns in the ECG key.
const TimestampLayout = "2006-01-02 15:04:05"

// TimestampKey maps MRN -> real acquisition timestamp -> surrogate timestamp.
// It is read-only once loaded.
type TimestampKey struct {
	entries map[string]map[string]time.Time
	count   int
}

// LoadTimestampKey loads the ECG timestamp key from a CSV file with columns
// (MRN, real timestamp, surrogate timestamp).
func LoadTimestampKey(path string) (*TimestampKey, error) {
	f, err := openKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key, err := ReadTimestampKey(f)
	if err != nil {
		return nil, fmt.Errorf("invalid ECG key %s: %w", path, err)
	}
	return key, nil
}

// ReadTimestampKey parses an ECG timestamp key. Any malformed row fails the
// whole key.
func ReadTimestampKey(r io.Reader) (*TimestampKey, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	key := &TimestampKey{entries: make(map[string]map[string]time.Time)}
	for _, rw := range rows {
		real, err := time.Parse(TimestampLayout, rw.first)
		if err != nil {
			return nil, fmt.Errorf("line %d: real timestamp %q: %w", rw.line, rw.first, ErrMalformedRow)
		}
		surrogate, err := time.Parse(TimestampLayout, rw.second)
		if err != nil {
			return nil, fmt.Errorf("line %d: surrogate timestamp %q: %w", rw.line, rw.second, ErrMalformedRow)
		}

		patient := key.entries[rw.mrn]
		if patient == nil {
			patient = make(map[string]time.Time)
			key.entries[rw.mrn] = patient
		}
		k := real.Format(TimestampLayout)
		if prev, ok := patient[k]; ok && !prev.Equal(surrogate) {
			return nil, fmt.Errorf("line %d: MRN %s timestamp %s mapped twice: %w", rw.line, rw.mrn, k, ErrMalformedRow)
		}
		if _, ok := patient[k]; !ok {
			key.count++
		}
		patient[k] = surrogate
	}
	return key, nil
}

// Surrogate returns the surrogate timestamp for an exact real timestamp.
// Location and sub-second parts of real are ignored.
func (k *TimestampKey) Surrogate(mrn string, real time.Time) (time.Time, bool) {
	patient, ok := k.entries[mrn]
	if !ok {
		return time.Time{}, false
	}
	s, ok := patient[real.Format(TimestampLayout)]
	return s, ok
}

// HasPatient reports whether the key has any timestamp for mrn.
func (k *TimestampKey) HasPatient(mrn string) bool {
	_, ok := k.entries[mrn]
	return ok
}

// Patients returns the number of distinct MRNs.
func (k *TimestampKey) Patients() int {
	return len(k.entries)
}

// Len returns the number of timestamp mappings.
func (k *TimestampKey) Len() int {
	return k.count
}
