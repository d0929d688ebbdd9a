package gui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"ecg-deid/internal/config"
	"ecg-deid/internal/deid"
	dcm "ecg-deid/internal/dicom"
)

// StepBuilder handles creating UI content for each wizard step
type StepBuilder struct {
	window fyne.Window
	wizard *Wizard
	base   config.Config
	logger *slog.Logger

	// Step 1: Input fields
	inputFolderEntry *widget.Entry
	ecgKeyEntry      *widget.Entry
	idKeyEntry       *widget.Entry
	fileCountLabel   *widget.Label

	// Step 2: Settings fields
	outputFolderEntry *widget.Entry
	templateEntry     *widget.Entry
	mrnSourceSelect   *widget.Select
	workersEntry      *widget.Entry
	recursiveCheck    *widget.Check
	retryFailedCheck  *widget.Check

	// Step 3: Preview
	previewProgress  *widget.ProgressBar
	previewStatus    *widget.Label
	previewFilesList *widget.Label
	previewPatients  *widget.Label
	dryRunComplete   bool

	// Step 4: Process
	processProgress    *widget.ProgressBar
	processStatus      *widget.Label
	processFileCount   *widget.Label
	processCurrentFile *widget.Label
	processStats       *widget.Label
	processSummary     *widget.Label
	processing         bool
	cancel             context.CancelFunc
	processingMu       sync.Mutex
}

// NewStepBuilder creates a new step builder
func NewStepBuilder(window fyne.Window, wizard *Wizard, base config.Config, logger *slog.Logger) *StepBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepBuilder{
		window: window,
		wizard: wizard,
		base:   base,
		logger: logger,
	}
}

func stepTitle(text string) *canvas.Text {
	title := canvas.NewText(text, ColorTextPrimary)
	title.TextSize = 18
	title.TextStyle = fyne.TextStyle{Bold: true}
	return title
}

func sectionLabel(text string) *widget.Label {
	return widget.NewLabelWithStyle(text, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
}

// fileRow is an entry with a Browse button opening a file picker.
func (s *StepBuilder) fileRow(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil || reader == nil {
				return
			}
			entry.SetText(reader.URI().Path())
			reader.Close()
		}, s.window)
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

// folderRow is an entry with a Browse button opening a folder picker.
func (s *StepBuilder) folderRow(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			entry.SetText(uri.Path())
		}, s.window)
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

// BuildStep1 creates the Input step content
func (s *StepBuilder) BuildStep1() fyne.CanvasObject {
	s.inputFolderEntry = widget.NewEntry()
	s.inputFolderEntry.SetPlaceHolder("/path/to/ecgs (one folder per MRN)")
	s.inputFolderEntry.OnChanged = func(text string) {
		s.updateFileCount()
	}

	s.fileCountLabel = widget.NewLabel("")
	s.fileCountLabel.Wrapping = fyne.TextWrapWord

	s.ecgKeyEntry = widget.NewEntry()
	s.ecgKeyEntry.SetPlaceHolder("MRN, ECG date, surrogate ECG date")
	s.ecgKeyEntry.SetText(s.base.Keys.ECG)

	s.idKeyEntry = widget.NewEntry()
	s.idKeyEntry.SetPlaceHolder("MRN, surrogate patient ID, surrogate birthdate")
	s.idKeyEntry.SetText(s.base.Keys.Identity)

	keyExplanation := widget.NewLabel("The key files map real MRNs and dates to surrogates. Keep them secret.")
	keyExplanation.Wrapping = fyne.TextWrapWord

	content := container.NewVBox(
		stepTitle("Select Input"),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("ECG Reports Folder"),
			s.folderRow(s.inputFolderEntry),
			s.fileCountLabel,
		),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("Key Files"),
			keyExplanation,
			widget.NewLabel("ECG date key"),
			s.fileRow(s.ecgKeyEntry),
			widget.NewLabel("Patient ID key"),
			s.fileRow(s.idKeyEntry),
		),
	)

	return container.NewPadded(content)
}

// BuildStep2 creates the Settings step content
func (s *StepBuilder) BuildStep2() fyne.CanvasObject {
	s.outputFolderEntry = widget.NewEntry()
	s.outputFolderEntry.SetPlaceHolder(deid.DefaultOutputFolder)
	s.outputFolderEntry.SetText(s.base.Paths.Output)

	s.templateEntry = widget.NewEntry()
	s.templateEntry.SetPlaceHolder("Built-in report layout")
	s.templateEntry.SetText(s.base.Paths.Template)

	sources := make([]string, len(deid.MRNSources))
	for i, src := range deid.MRNSources {
		sources[i] = string(src)
	}
	s.mrnSourceSelect = widget.NewSelect(sources, nil)
	s.mrnSourceSelect.SetSelected(s.base.Batch.MRNSource)

	s.workersEntry = widget.NewEntry()
	s.workersEntry.SetText(strconv.Itoa(s.base.Batch.Workers))

	s.recursiveCheck = widget.NewCheck("Search subdirectories", nil)
	s.recursiveCheck.SetChecked(s.base.Batch.Recursive)

	s.retryFailedCheck = widget.NewCheck("Retry failed reports", nil)

	mrnHelp := widget.NewLabel("dir: patient folder name   field: report ID: field   dicom: DICOM PatientID")
	mrnHelp.Wrapping = fyne.TextWrapWord

	content := container.NewVBox(
		stepTitle("Configure Settings"),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("Output Folder"),
			s.folderRow(s.outputFolderEntry),
		),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("MRN Source"),
			mrnHelp,
			s.mrnSourceSelect,
		),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("Options"),
			container.NewHBox(s.recursiveCheck, s.retryFailedCheck),
			container.NewHBox(widget.NewLabel("Parallel workers:"), s.workersEntry),
		),
		widget.NewSeparator(),
		container.NewVBox(
			sectionLabel("Report Template"),
			s.fileRow(s.templateEntry),
		),
	)

	return container.NewPadded(content)
}

// BuildStep3 creates the Preview step content
func (s *StepBuilder) BuildStep3() fyne.CanvasObject {
	s.previewProgress = widget.NewProgressBar()
	s.previewProgress.SetValue(0)

	s.previewStatus = widget.NewLabel("Scanning files...")

	s.previewFilesList = widget.NewLabel("")
	s.previewFilesList.Wrapping = fyne.TextWrapWord

	s.previewPatients = widget.NewLabel("")
	s.previewPatients.Wrapping = fyne.TextWrapWord

	previewScroll := container.NewVScroll(s.previewPatients)
	previewScroll.SetMinSize(fyne.NewSize(0, 200))

	header := container.NewVBox(
		stepTitle("Preview (Dry Run)"),
		widget.NewSeparator(),
		s.previewProgress,
		s.previewStatus,
		widget.NewSeparator(),
		s.previewFilesList,
		widget.NewSeparator(),
	)

	return container.NewBorder(
		container.NewPadded(header),
		nil,
		nil,
		nil,
		container.NewPadded(previewScroll),
	)
}

// BuildStep4 creates the Process step content
func (s *StepBuilder) BuildStep4() fyne.CanvasObject {
	s.processProgress = widget.NewProgressBar()
	s.processProgress.SetValue(0)

	s.processStatus = widget.NewLabel("Ready to process")
	s.processFileCount = widget.NewLabel("")
	s.processCurrentFile = widget.NewLabel("")
	s.processCurrentFile.Wrapping = fyne.TextWrapWord

	s.processStats = widget.NewLabel("")
	s.processSummary = widget.NewLabel("")
	s.processSummary.Wrapping = fyne.TextWrapWord

	headerContent := container.NewVBox(
		stepTitle("Processing"),
		widget.NewSeparator(),
		s.processProgress,
		s.processStatus,
		s.processFileCount,
		s.processCurrentFile,
		widget.NewSeparator(),
	)

	processScroll := container.NewVScroll(container.NewVBox(
		s.processStats,
		s.processSummary,
	))
	processScroll.SetMinSize(fyne.NewSize(0, 150))

	return container.NewBorder(
		container.NewPadded(headerContent),
		nil,
		nil,
		nil,
		container.NewPadded(processScroll),
	)
}

// updateFileCount scans for reports and updates the count label
func (s *StepBuilder) updateFileCount() {
	inputFolder := strings.TrimSpace(s.inputFolderEntry.Text)
	if inputFolder == "" {
		s.fileCountLabel.SetText("")
		return
	}

	s.fileCountLabel.SetText("Scanning...")

	go func() {
		files, err := dcm.FindReports(inputFolder, true)
		count := 0
		if err == nil {
			count = len(files)
		}

		// Fyne v2.4 handles thread safety for widget updates
		if count == 0 {
			s.fileCountLabel.SetText("No ECG reports found")
		} else {
			s.fileCountLabel.SetText(fmt.Sprintf("Found %d ECG report(s)", count))
		}
	}()
}

// ValidateStep1 validates the input step
func (s *StepBuilder) ValidateStep1() bool {
	if strings.TrimSpace(s.inputFolderEntry.Text) == "" {
		dialog.ShowError(fmt.Errorf("please enter an input folder path"), s.window)
		return false
	}
	if strings.TrimSpace(s.ecgKeyEntry.Text) == "" {
		dialog.ShowError(fmt.Errorf("please choose the ECG date key file"), s.window)
		return false
	}
	if strings.TrimSpace(s.idKeyEntry.Text) == "" {
		dialog.ShowError(fmt.Errorf("please choose the patient ID key file"), s.window)
		return false
	}
	return true
}

// ValidateStep2 validates the settings step
func (s *StepBuilder) ValidateStep2() bool {
	if err := config.Validate(s.formConfig()); err != nil {
		dialog.ShowError(err, s.window)
		return false
	}
	return true
}

// formConfig layers the form values over the startup configuration.
func (s *StepBuilder) formConfig() config.Config {
	cfg := s.base
	cfg.Keys.ECG = strings.TrimSpace(s.ecgKeyEntry.Text)
	cfg.Keys.Identity = strings.TrimSpace(s.idKeyEntry.Text)
	cfg.Paths.Output = strings.TrimSpace(s.outputFolderEntry.Text)
	cfg.Paths.Template = strings.TrimSpace(s.templateEntry.Text)
	cfg.Batch.MRNSource = s.mrnSourceSelect.Selected
	cfg.Batch.Recursive = s.recursiveCheck.Checked
	if n, err := strconv.Atoi(strings.TrimSpace(s.workersEntry.Text)); err == nil {
		cfg.Batch.Workers = n
	} else {
		cfg.Batch.Workers = 0
	}
	return cfg
}

// GetConfig builds the batch config from the current form values
func (s *StepBuilder) GetConfig() deid.Config {
	cfg := s.formConfig().DeidConfig(strings.TrimSpace(s.inputFolderEntry.Text))
	cfg.RetryFailed = s.retryFailedCheck.Checked
	cfg.Logger = s.logger
	return cfg
}

// RunDryRun checks key coverage for every report when entering step 3
func (s *StepBuilder) RunDryRun() {
	s.dryRunComplete = false

	s.previewProgress.SetValue(0)
	s.previewStatus.SetText("Scanning files...")
	s.previewFilesList.SetText("")
	s.previewPatients.SetText("")
	s.wizard.SetNextEnabled(false)

	cfg := s.GetConfig()
	cfg.DryRun = true

	var preview strings.Builder
	cfg.OutputWriter = func(msg string) { preview.WriteString(msg) }

	go func() {
		s.previewStatus.SetText("Loading keys and finding reports...")
		s.previewProgress.SetValue(0.3)

		stats, err := deid.ProcessFolder(context.Background(), cfg)
		if err != nil {
			s.previewStatus.SetText(fmt.Sprintf("Error: %v", err))
			s.previewFilesList.SetText("Please go back and check the input folder and key files.")
			return
		}
		if stats.Skipped == 0 {
			s.previewStatus.SetText("No ECG reports found")
			s.previewFilesList.SetText("Please go back and check your input folder path.")
			return
		}

		s.previewProgress.SetValue(1.0)
		s.previewStatus.SetText("Scan complete!")
		s.previewFilesList.SetText(fmt.Sprintf("Reports to process: %d\nPatients: %d", stats.Skipped, stats.TotalPatients))
		s.previewPatients.SetText(preview.String() + "\nLooks good? Click \"Process\" to continue.")

		s.dryRunComplete = true
		s.wizard.SetNextEnabled(s.wizard.IsMutoolInstalled())
	}()
}

// RunProcess executes the de-identification
func (s *StepBuilder) RunProcess() {
	ctx, cancel := context.WithCancel(context.Background())

	s.processingMu.Lock()
	if s.processing {
		s.processingMu.Unlock()
		cancel()
		return
	}
	s.processing = true
	s.cancel = cancel
	s.processingMu.Unlock()

	s.processProgress.SetValue(0)
	s.processStatus.SetText("Starting...")
	s.processFileCount.SetText("")
	s.processCurrentFile.SetText("")
	s.processStats.SetText("")
	s.processSummary.SetText("")
	s.wizard.SetBackEnabled(false)
	s.wizard.SetNextEnabled(false)

	cfg := s.GetConfig()
	cfg.OutputWriter = func(msg string) {} // We use progress callback instead

	go func() {
		defer func() {
			s.processingMu.Lock()
			s.processing = false
			s.cancel = nil
			s.processingMu.Unlock()
			cancel()
		}()

		successCount := 0
		failedCount := 0
		skippedCount := 0

		progressCallback := func(current, total int, filename, status string) {
			switch status {
			case deid.StatusSuccess:
				successCount++
			case deid.StatusFailed:
				failedCount++
			case deid.StatusSkipped:
				skippedCount++
			}

			// Fyne v2.4 handles thread safety for widget updates
			s.processProgress.SetValue(float64(current) / float64(total))
			s.processFileCount.SetText(fmt.Sprintf("Processing %d/%d reports", current, total))
			s.processCurrentFile.SetText(fmt.Sprintf("Current: %s", filename))
			s.processStats.SetText(fmt.Sprintf("Success: %d | Skipped: %d | Failed: %d",
				successCount, skippedCount, failedCount))
		}

		stats, err := deid.ProcessFolderWithProgress(ctx, cfg, progressCallback)

		auditLog := cfg.AuditLogFile
		if auditLog == "" {
			auditLog = deid.DefaultAuditLog
		}

		if err != nil && stats == nil {
			s.processStatus.SetText("Error!")
			s.processSummary.SetText(fmt.Sprintf("Error: %v", err))
		} else {
			s.processProgress.SetValue(1.0)
			s.processStatus.SetText("Complete!")
			if err != nil {
				s.processStatus.SetText("Stopped")
			}
			s.processStats.SetText(fmt.Sprintf("Success: %d | Skipped: %d | Failed: %d",
				stats.Success, stats.Skipped, stats.Failed))
			s.processSummary.SetText(fmt.Sprintf(
				"Processed %d patient(s)\nFields to verify: %d\n\nOutput: %s\nAudit log: %s",
				stats.TotalPatients, stats.Warnings,
				deid.ResolveOutputFolder(cfg.OutputFolder), auditLog))
		}

		s.wizard.SetStopVisible(false)
		s.wizard.SetNextText("Done")
		s.wizard.SetNextEnabled(true)
	}()
}

// Cancel stops a running batch after the reports in flight finish.
func (s *StepBuilder) Cancel() {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// IsProcessing returns whether processing is in progress
func (s *StepBuilder) IsProcessing() bool {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()
	return s.processing
}
