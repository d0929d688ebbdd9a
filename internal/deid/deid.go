package deid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	dcm "ecg-deid/internal/dicom"
	"ecg-deid/internal/ecg"
	"ecg-deid/internal/keystore"
	"ecg-deid/internal/locator"
	"ecg-deid/internal/progress"
	"ecg-deid/internal/redact"
	"ecg-deid/internal/svgdoc"
)

// DefaultOutputFolder replaces "." as the output folder.
const DefaultOutputFolder = "Deidentified_ECGs"

// DefaultAuditLog is the audit file written in the working directory.
const DefaultAuditLog = "error_log.txt"

// ErrInputMissing is returned when the input folder does not exist.
var ErrInputMissing = errors.New("input folder not found")

// Config holds the de-identification configuration
type Config struct {
	InputFolder      string
	OutputFolder     string // "." or "" means DefaultOutputFolder
	TimestampKeyFile string
	IdentityKeyFile  string
	TemplateFile     string // empty selects the built-in report layout
	AuditLogFile     string // empty means DefaultAuditLog
	ProgressFile     string // empty means progress.DefaultProgressFile next to the audit log
	WorkDir          string // intermediates; empty means a temp dir per run
	MRNSource        MRNSource
	Workers          int
	DryRun           bool
	RetryFailed      bool
	Recursive        bool

	// Renderer converts PDFs to SVG. Nil means mutool at MutoolPath.
	Renderer   svgdoc.Renderer
	MutoolPath string
	// Audit receives failures and warnings. Nil opens AuditLogFile.
	Audit progress.Sink

	Logger       *slog.Logger
	OutputWriter func(string) // For GUI output
}

// Stats holds processing statistics
type Stats struct {
	Success       int
	Failed        int
	Skipped       int
	Warnings      int
	TotalPatients int
}

// ProgressCallback is called during processing to report progress
type ProgressCallback func(current, total int, filename, status string)

// Progress statuses passed to ProgressCallback.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// ResolveOutputFolder applies the "." default.
func ResolveOutputFolder(folder string) string {
	if folder == "" || filepath.Clean(folder) == "." {
		return DefaultOutputFolder
	}
	return folder
}

// ProcessFolder processes all reports in a folder.
func ProcessFolder(ctx context.Context, cfg Config) (*Stats, error) {
	return ProcessFolderWithProgress(ctx, cfg, nil)
}

// ProcessFolderWithProgress processes all reports with progress callbacks.
// Only configuration problems are returned as errors; every document failure
// is audited and counted.
func ProcessFolderWithProgress(ctx context.Context, cfg Config, progressCb ProgressCallback) (*Stats, error) {
	output := cfg.OutputWriter
	if output == nil {
		output = func(s string) { fmt.Print(s) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if info, err := os.Stat(cfg.InputFolder); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputMissing, cfg.InputFolder)
	}

	source := cfg.MRNSource
	if source == "" {
		source = MRNFromDirectory
	}
	if _, err := ParseMRNSource(string(source)); err != nil {
		return nil, err
	}

	timestamps, err := keystore.LoadTimestampKey(cfg.TimestampKeyFile)
	if err != nil {
		return nil, err
	}
	identities, err := keystore.LoadIdentityKey(cfg.IdentityKeyFile)
	if err != nil {
		return nil, err
	}
	tmpl, err := locator.LoadTemplate(cfg.TemplateFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("keys loaded",
		"timestamps", timestamps.Len(),
		"timestamp_patients", timestamps.Patients(),
		"identity_patients", identities.Patients())

	outputFolder := ResolveOutputFolder(cfg.OutputFolder)

	files, err := dcm.FindReports(cfg.InputFolder, cfg.Recursive, outputFolder)
	if err != nil {
		return nil, fmt.Errorf("could not find reports: %w", err)
	}

	if len(files) == 0 {
		output(fmt.Sprintf("No ECG reports found in %s\n", cfg.InputFolder))
		return &Stats{}, nil
	}
	output(fmt.Sprintf("Found %d ECG report(s) in %s\n", len(files), cfg.InputFolder))

	if cfg.DryRun {
		return dryRun(files, source, identities, timestamps, output)
	}

	if err := os.MkdirAll(outputFolder, 0755); err != nil {
		return nil, fmt.Errorf("could not create output folder: %w", err)
	}

	auditPath := cfg.AuditLogFile
	if auditPath == "" {
		auditPath = DefaultAuditLog
	}

	runID := uuid.New().String()
	audit := cfg.Audit
	var auditLog *progress.AuditLog
	if audit == nil {
		auditLog, err = progress.OpenAuditLog(auditPath, runID)
		if err != nil {
			return nil, err
		}
		defer auditLog.Close()
		audit = auditLog
	}

	// The tracker maps source paths to outputs, so it lives with the audit
	// log and never in the output folder.
	progressFile := cfg.ProgressFile
	if progressFile == "" {
		progressFile = filepath.Join(filepath.Dir(auditPath), progress.DefaultProgressFile)
	}
	inputs, err := progress.Digest(cfg.TimestampKeyFile, cfg.IdentityKeyFile, cfg.TemplateFile)
	if err != nil {
		return nil, err
	}
	tracker := progress.NewTracker(progressFile, inputs, logger)
	if cfg.RetryFailed {
		if n := tracker.ClearFailed(); n > 0 {
			output(fmt.Sprintf("Cleared %d failed entries for retry\n", n))
		}
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "ecg-deid-*")
		if err != nil {
			return nil, fmt.Errorf("could not create work folder: %w", err)
		}
		defer os.RemoveAll(workDir)
	} else if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create work folder: %w", err)
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = svgdoc.MutoolRenderer{Path: cfg.MutoolPath}
	}

	p := &pipeline{
		engine:       redact.NewEngine(timestamps, identities, tmpl),
		template:     tmpl,
		renderer:     renderer,
		source:       source,
		outputFolder: outputFolder,
		workDir:      workDir,
		audit:        audit,
		logger:       logger.With("run", runID),
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	stats := &Stats{}
	patients := make(map[string]bool)
	var mu sync.Mutex
	done := 0

	report := func(name, status string) {
		if progressCb != nil {
			progressCb(done, len(files), name, status)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, filePath := range files {
		if gctx.Err() != nil {
			break
		}
		filePath := filePath

		if tracker.IsProcessed(filePath) {
			mu.Lock()
			stats.Skipped++
			done++
			report(filepath.Base(filePath), StatusSkipped)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			mu.Lock()
			report(filepath.Base(filePath), StatusProcessing)
			mu.Unlock()

			// A started document runs to completion even if the batch is
			// cancelled; gctx only gates scheduling.
			out := p.process(context.WithoutCancel(gctx), filePath)

			mu.Lock()
			defer mu.Unlock()
			done++
			if out.mrn != "" {
				patients[out.mrn] = true
			}
			stats.Warnings += out.warnings
			if out.err != nil {
				stats.Failed++
				tracker.MarkError(filePath, string(ecg.KindOf(out.err)))
				output(fmt.Sprintf("  Error: %s: %s\n", filepath.Base(filePath), out.err))
				report(filepath.Base(filePath), StatusFailed)
				return nil
			}
			stats.Success++
			tracker.MarkSuccess(filePath, out.path)
			report(filepath.Base(filePath), StatusSuccess)
			return nil
		})
	}
	g.Wait()

	stats.TotalPatients = len(patients)

	output(fmt.Sprintf("\n%s\n", strings.Repeat("=", 50)))
	output(fmt.Sprintf("Complete! %d succeeded, %d failed, %d skipped\n",
		stats.Success, stats.Failed, stats.Skipped))
	if stats.Warnings > 0 {
		output(fmt.Sprintf("  %d field(s) need manual verification\n", stats.Warnings))
	}
	if auditLog != nil {
		output(fmt.Sprintf("  %s\n", auditLog.Summary()))
	}
	output(fmt.Sprintf("Output: %s\n", outputFolder))

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("batch interrupted: %w", err)
	}
	return stats, nil
}

// dryRun resolves every report's MRN and checks key coverage without rendering.
func dryRun(files []string, source MRNSource, ids *keystore.IdentityKey, ts *keystore.TimestampKey, output func(string)) (*Stats, error) {
	output("\n[DRY RUN] Would process:\n")

	patients := make(map[string][]string)
	unresolved := 0
	for _, f := range files {
		mrn, err := previewMRN(f, source)
		if err != nil || mrn == "" {
			unresolved++
			output(fmt.Sprintf("  %s: MRN read from the report at processing time\n", filepath.Base(f)))
			continue
		}
		patients[mrn] = append(patients[mrn], f)
	}

	mrns := make([]string, 0, len(patients))
	for mrn := range patients {
		mrns = append(mrns, mrn)
	}
	sort.Strings(mrns)

	missing := 0
	for _, mrn := range mrns {
		status := "ok"
		if _, err := ids.Lookup(mrn); err != nil {
			status = err.Error()
			missing++
		} else if !ts.HasPatient(mrn) {
			status = "no ECG dates in ECG key"
			missing++
		}
		output(fmt.Sprintf("  MRN %s (%d report(s)) [%s]\n", mrn, len(patients[mrn]), status))
	}

	output(fmt.Sprintf("\n%d patient(s), %d without key coverage, %d unresolved\n", len(patients), missing, unresolved))

	return &Stats{
		Skipped:       len(files),
		TotalPatients: len(patients),
	}, nil
}
