package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ecg-deid/internal/ecg"
)

// AuditTimeLayout prefixes every audit line.
const AuditTimeLayout = "2006-01-02 15:04:05"

// Entry is one audit record: a document failure or a warning that needs
// manual verification.
type Entry struct {
	Time    time.Time
	File    string
	MRN     string
	Kind    ecg.Kind
	Message string
}

func (e Entry) line() string {
	var b strings.Builder
	b.WriteString(e.Time.Format(AuditTimeLayout))
	b.WriteString("   ")
	if e.Kind != "" {
		fmt.Fprintf(&b, "[%s] ", e.Kind)
	}
	if e.File != "" {
		b.WriteString(filepath.Base(e.File))
		b.WriteString(" ")
	}
	if e.MRN != "" {
		fmt.Fprintf(&b, "MRN %s ", e.MRN)
	}
	b.WriteString(e.Message)
	b.WriteString("\n")
	return b.String()
}

// Sink receives audit entries. Implementations must be safe for concurrent use.
type Sink interface {
	Record(e Entry)
}

// AuditLog is the per-run audit file. It is truncated when opened.
type AuditLog struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	entries []Entry
	now     func() time.Time
}

// OpenAuditLog truncates path and writes the run header. An empty path keeps
// entries in memory only.
func OpenAuditLog(path, runID string) (*AuditLog, error) {
	l := &AuditLog{path: path, now: time.Now}

	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("could not create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open audit log: %w", err)
		}
		l.file = file
		header := Entry{Time: l.now(), Message: "BEGIN LOGGING"}
		if runID != "" {
			header.Message += " run " + runID
		}
		if _, err := file.WriteString(header.line()); err != nil {
			file.Close()
			return nil, fmt.Errorf("could not write audit log: %w", err)
		}
	}

	return l, nil
}

// Record appends an entry.
func (l *AuditLog) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)

	if l.file != nil {
		l.file.WriteString(e.line())
	}
}

// Entries returns a copy of the recorded entries.
func (l *AuditLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns the number of recorded entries.
func (l *AuditLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Path returns the audit file path.
func (l *AuditLog) Path() string {
	return l.path
}

// Summary returns a summary of recorded entries.
func (l *AuditLog) Summary() string {
	n := l.Count()
	if n == 0 {
		return "No audit entries"
	}
	if l.path == "" {
		return fmt.Sprintf("%d audit entries", n)
	}
	return fmt.Sprintf("%d audit entries logged to %s", n, l.path)
}

// Close closes the audit file.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
