package keystore

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// BirthdateLayout is the layout of the surrogate birthdate column.
const BirthdateLayout = "2006-01-02"

var (
	// ErrIdentityMissing means the MRN has no surrogate identity.
	ErrIdentityMissing = errors.New("MRN not present in ID key")
	// ErrIdentityAmbiguous means the MRN has more than one surrogate identity.
	ErrIdentityAmbiguous = errors.New("MRN has more than one surrogate identity")
)

// Identity is the surrogate identity of one patient.
type Identity struct {
	PatientID string
	Birthdate time.Time
}

// IdentityKey maps MRN -> surrogate patient ID -> surrogate birthdate.
type IdentityKey struct {
	entries map[string]map[string]time.Time
}

// LoadIdentityKey loads the identity key from a CSV file with columns
// (MRN, surrogate patient ID, surrogate birthdate).
func LoadIdentityKey(path string) (*IdentityKey, error) {
	f, err := openKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key, err := ReadIdentityKey(f)
	if err != nil {
		return nil, fmt.Errorf("invalid ID key %s: %w", path, err)
	}
	return key, nil
}

// ReadIdentityKey parses an identity key. Any malformed row fails the whole key.
func ReadIdentityKey(r io.Reader) (*IdentityKey, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	key := &IdentityKey{entries: make(map[string]map[string]time.Time)}
	for _, rw := range rows {
		if rw.first == "" {
			return nil, fmt.Errorf("line %d: empty patient ID: %w", rw.line, ErrMalformedRow)
		}
		bday, err := time.Parse(BirthdateLayout, rw.second)
		if err != nil {
			return nil, fmt.Errorf("line %d: birthdate %q: %w", rw.line, rw.second, ErrMalformedRow)
		}

		patient := key.entries[rw.mrn]
		if patient == nil {
			patient = make(map[string]time.Time)
			key.entries[rw.mrn] = patient
		}
		patient[rw.first] = bday
	}
	return key, nil
}

// Lookup returns the single surrogate identity for mrn.
func (k *IdentityKey) Lookup(mrn string) (Identity, error) {
	patient := k.entries[mrn]
	switch len(patient) {
	case 0:
		return Identity{}, ErrIdentityMissing
	case 1:
		for id, bday := range patient {
			return Identity{PatientID: id, Birthdate: bday}, nil
		}
	}

	ids := make([]string, 0, len(patient))
	for id := range patient {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Identity{}, fmt.Errorf("%w: %v", ErrIdentityAmbiguous, ids)
}

// Patients returns the number of distinct MRNs.
func (k *IdentityKey) Patients() int {
	return len(k.entries)
}
