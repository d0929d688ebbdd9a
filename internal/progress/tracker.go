package progress

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultProgressFile is the tracker file name. It holds source paths and
// must never be written into the output folder.
const DefaultProgressFile = ".ecg-deid-progress.json"

// FileStatus represents the processing status of a report
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusError   FileStatus = "error"
)

// FileEntry is the recorded outcome of one report.
type FileEntry struct {
	Status    FileStatus `json:"status"`
	Hash      string     `json:"hash"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// TrackerData is the JSON structure for persistence
type TrackerData struct {
	// Inputs digests the key files and template the entries were made with.
	Inputs  string                `json:"inputs,omitempty"`
	Files   map[string]*FileEntry `json:"files"`
	Updated string                `json:"updated"`
	Summary struct {
		Success int `json:"success"`
		Error   int `json:"error"`
		Total   int `json:"total"`
	} `json:"summary"`
}

// Tracker tracks processed reports so an interrupted or partly failed batch
// can be resumed.
type Tracker struct {
	mu           sync.Mutex
	progressFile string
	inputs       string
	processed    map[string]*FileEntry
	logger       *slog.Logger
}

// NewTracker creates a tracker backed by progressFile. An empty path keeps
// progress in memory only. inputs is the digest of the key files and template
// (see Digest); entries recorded under a different digest are discarded.
func NewTracker(progressFile, inputs string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		progressFile: progressFile,
		inputs:       inputs,
		processed:    make(map[string]*FileEntry),
		logger:       logger,
	}

	if progressFile != "" {
		t.load()
	}

	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.progressFile)
	if err != nil {
		return // no previous run
	}

	var trackerData TrackerData
	if err := json.Unmarshal(data, &trackerData); err != nil {
		t.logger.Warn("could not load progress file", "path", t.progressFile, "error", err)
		return
	}

	if trackerData.Inputs != t.inputs {
		t.logger.Info("keys or template changed, processing all reports again",
			"discarded", len(trackerData.Files))
		return
	}
	if trackerData.Files != nil {
		t.processed = trackerData.Files
	}
	t.logger.Debug("loaded progress",
		"succeeded", t.countStatus(StatusSuccess),
		"failed", t.countStatus(StatusError))
}

func (t *Tracker) save() {
	if t.progressFile == "" {
		return
	}

	trackerData := TrackerData{
		Inputs:  t.inputs,
		Files:   t.processed,
		Updated: time.Now().Format(time.RFC3339),
	}
	trackerData.Summary.Success = t.countStatus(StatusSuccess)
	trackerData.Summary.Error = t.countStatus(StatusError)
	trackerData.Summary.Total = len(t.processed)

	data, err := json.MarshalIndent(trackerData, "", "  ")
	if err != nil {
		t.logger.Warn("could not marshal progress", "error", err)
		return
	}

	if err := os.WriteFile(t.progressFile, data, 0644); err != nil {
		t.logger.Warn("could not save progress", "path", t.progressFile, "error", err)
	}
}

func (t *Tracker) countStatus(status FileStatus) int {
	count := 0
	for _, entry := range t.processed {
		if entry.Status == status {
			count++
		}
	}
	return count
}

// fileHash creates a quick hash based on file size and modification time
func fileHash(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return ""
	}
	hashInput := fmt.Sprintf("%d_%d", info.Size(), info.ModTime().Unix())
	hash := md5.Sum([]byte(hashInput))
	return fmt.Sprintf("%x", hash[:4])
}

// Digest hashes the contents of the given files. Empty paths are skipped.
func Digest(paths ...string) (string, error) {
	h := md5.New()
	for _, path := range paths {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("could not digest %s: %w", path, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("could not digest %s: %w", path, err)
		}
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// IsProcessed reports whether the report succeeded before and is unchanged.
func (t *Tracker) IsProcessed(filePath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.processed[filePath]
	if !ok || entry.Status != StatusSuccess {
		return false
	}
	return entry.Hash == fileHash(filePath)
}

// MarkSuccess records a written output.
func (t *Tracker) MarkSuccess(filePath, outputPath string) {
	t.mark(filePath, &FileEntry{Status: StatusSuccess, Output: outputPath})
}

// MarkError records a failed report. reason should name the failure class;
// the details belong in the audit log.
func (t *Tracker) MarkError(filePath, reason string) {
	t.mark(filePath, &FileEntry{Status: StatusError, Error: reason})
}

func (t *Tracker) mark(filePath string, entry *FileEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry.Hash = fileHash(filePath)
	entry.Timestamp = time.Now().Format(time.RFC3339)
	t.processed[filePath] = entry
	t.save()
}

// ClearFailed removes all failed entries for retry.
func (t *Tracker) ClearFailed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for key, entry := range t.processed {
		if entry.Status == StatusError {
			delete(t.processed, key)
			count++
		}
	}

	if count > 0 {
		t.save()
	}
	return count
}

// GetStats returns success and error counts.
func (t *Tracker) GetStats() (success, errors int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countStatus(StatusSuccess), t.countStatus(StatusError)
}
