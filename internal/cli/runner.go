package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"ecg-deid/internal/config"
	"ecg-deid/internal/deid"
	"ecg-deid/internal/svgdoc"
)

// Options holds CLI configuration options
type Options struct {
	InputFolder string
	Config      config.Config
	RetryFailed bool
	DryRun      bool
	Logger      *slog.Logger
}

// Run executes the CLI de-identification process
func Run(ctx context.Context, opts Options) error {
	if opts.InputFolder == "" {
		return fmt.Errorf("input folder is required")
	}

	info, err := os.Stat(opts.InputFolder)
	if err != nil {
		return fmt.Errorf("input folder does not exist: %s", opts.InputFolder)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", opts.InputFolder)
	}

	if err := config.Validate(opts.Config); err != nil {
		return err
	}

	if !opts.DryRun {
		if err := checkMutoolStatus(opts.Config.Render.Mutool); err != nil {
			return err
		}
	}

	cfg := opts.Config.DeidConfig(opts.InputFolder)
	cfg.DryRun = opts.DryRun
	cfg.RetryFailed = opts.RetryFailed
	cfg.Logger = opts.Logger

	printHeader(opts, cfg)

	if opts.DryRun {
		// The preview is the output in dry-run mode.
		cfg.OutputWriter = func(s string) { fmt.Print(s) }
		_, err := deid.ProcessFolder(ctx, cfg)
		return err
	}

	// Suppress internal output, we use progress callback
	cfg.OutputWriter = func(s string) {}

	pb := newProgressBar(50)
	progressCallback := func(current, total int, filename, status string) {
		pb.update(current, total)
	}

	fmt.Println()
	stats, err := deid.ProcessFolderWithProgress(ctx, cfg, progressCallback)
	if stats != nil {
		if total := stats.Success + stats.Failed + stats.Skipped; total > 0 {
			pb.update(total, total)
			fmt.Println()
		}
		printSummary(stats, cfg)
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	return nil
}

// PrintUsage prints CLI usage information
func PrintUsage() {
	fmt.Println(`ECG De-identifier - Command Line Interface

USAGE:
  ecg-deid                              Launch GUI (default)
  ecg-deid -i <path> [flags]            Run CLI mode

INPUT:
  Reports are PDF files (or DICOM files with an encapsulated PDF) stored
  one folder per patient, the folder named by the patient's MRN:
    ecgs/000012345/ecg_2020.pdf

KEY FILES (CSV, first row is a header and is skipped):
  ECG key:  MRN, ECG date (YYYY-MM-DD HH:MM:SS), surrogate ECG date
  ID key:   MRN, surrogate patient ID, surrogate birthdate (YYYY-MM-DD)

FLAGS:
  -i, --input <path>      Input folder of per-patient report folders (required for CLI)
  -o, --output <path>     Output folder (default: Deidentified_ECGs)
      --ecg-key <path>    ECG timestamp key file (required)
      --id-key <path>     Patient ID key file (required)
  -c, --config <path>     TOML config file (default: ecg-deid.toml if present)
      --template <path>   Report layout template (default: built-in)
      --mrn-source <src>  Where the MRN comes from: dir, field or dicom (default: dir)
      --mutool <path>     mutool binary (default: found on PATH)
      --audit-log <path>  Audit log file (default: error_log.txt)
      --workers <n>       Reports processed in parallel (default: 1)
  -r, --recursive         Search subdirectories (default: true)
      --retry             Retry previously failed reports from a previous run
  -n, --dry-run           Check key coverage for every report, no files written
  -h, --help              Show this help message

ENVIRONMENT:
  ECG_DEID_ECG_KEY, ECG_DEID_ID_KEY, ECG_DEID_OUTPUT, ECG_DEID_AUDIT_LOG,
  ECG_DEID_TEMPLATE, ECG_DEID_MRN_SOURCE, ECG_DEID_WORKERS, ECG_DEID_MUTOOL
  A .env file in the working directory is loaded first.
  Precedence: defaults < config file < environment < flags.

EXAMPLES:
  # Dry run first to check key coverage (recommended)
  ./ecg-deid -i /data/ecgs --ecg-key ecg_key.csv --id-key id_key.csv -n

  # De-identify with four workers
  ./ecg-deid -i /data/ecgs --ecg-key ecg_key.csv --id-key id_key.csv --workers 4

  # Retry reports that failed in a previous run
  ./ecg-deid -i /data/ecgs --ecg-key ecg_key.csv --id-key id_key.csv --retry

OUTPUT:
  De-identified reports: {output}/{patient id}_{surrogate date}_EKG.svg
  Audit log:             error_log.txt (rewritten every run)

SECURITY - KEEP THESE SECRET:
  The key files map real MRNs and dates to surrogates. Anyone with them
  can re-identify patients. Only share the files in the output folder.`)
}

// printHeader prints the CLI header with configuration
func printHeader(opts Options, cfg deid.Config) {
	fmt.Println("ECG De-identifier")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Input:     %s\n", cfg.InputFolder)
	fmt.Printf("Output:    %s\n", deid.ResolveOutputFolder(cfg.OutputFolder))
	fmt.Printf("ECG key:   %s\n", cfg.TimestampKeyFile)
	fmt.Printf("ID key:    %s\n", cfg.IdentityKeyFile)
	fmt.Printf("MRN from:  %s\n", cfg.MRNSource)

	var options []string
	if cfg.Recursive {
		options = append(options, "Recursive")
	}
	if cfg.Workers > 1 {
		options = append(options, fmt.Sprintf("%d workers", cfg.Workers))
	}
	if opts.RetryFailed {
		options = append(options, "Retry failed")
	}
	if opts.DryRun {
		options = append(options, "Dry run")
	}
	if len(options) > 0 {
		fmt.Printf("Options:   %s\n", strings.Join(options, ", "))
	}
}

// printSummary prints the processing summary
func printSummary(stats *deid.Stats, cfg deid.Config) {
	auditLog := cfg.AuditLogFile
	if auditLog == "" {
		auditLog = deid.DefaultAuditLog
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Complete! %d succeeded, %d failed, %d skipped\n",
		stats.Success, stats.Failed, stats.Skipped)
	fmt.Printf("Patients:  %d\n", stats.TotalPatients)
	if stats.Warnings > 0 {
		fmt.Printf("Verify:    %d field(s) need manual verification\n", stats.Warnings)
	}
	fmt.Printf("Output:    %s\n", deid.ResolveOutputFolder(cfg.OutputFolder))
	fmt.Printf("Audit log: %s\n", auditLog)
}

// progressBar represents a terminal progress bar
type progressBar struct {
	width int
}

// newProgressBar creates a new progress bar with specified width
func newProgressBar(width int) *progressBar {
	return &progressBar{width: width}
}

// update updates the progress bar display
func (pb *progressBar) update(current, total int) {
	if total == 0 {
		return
	}
	fmt.Printf("\r%s", pb.render(current, total))
}

func (pb *progressBar) render(current, total int) string {
	percent := float64(current) / float64(total)
	filled := int(percent * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)
	return fmt.Sprintf("[%s] %3.0f%%  (%d/%d)", bar, percent*100, current, total)
}

// checkMutoolStatus checks if mutool is installed and prompts for installation if not
func checkMutoolStatus(configured string) error {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return fmt.Errorf("mutool not found at %s", configured)
		}
		return nil
	}
	if _, ok := svgdoc.FindMutool(); ok {
		return nil
	}

	fmt.Println("Warning: mutool is not installed.")
	fmt.Println("mutool (MuPDF) is required to convert ECG reports to SVG.")
	fmt.Println()

	installCmd := svgdoc.MutoolInstallCommand()
	if installCmd == "" {
		fmt.Println("Please install MuPDF tools using your system package manager and try again.")
		return fmt.Errorf("mutool is not installed")
	}

	fmt.Printf("Install command: %s\n", installCmd)
	fmt.Println()
	fmt.Print("Would you like to install mutool now? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("mutool is not installed")
	}

	response = strings.TrimSpace(strings.ToLower(response))
	if response != "y" && response != "yes" {
		return fmt.Errorf("mutool is not installed")
	}

	fmt.Println("Installing mutool...")
	cmd := exec.Command("bash", "-lc", installCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Printf("Installation failed: %v\n", err)
		fmt.Println("Please install MuPDF tools manually and try again.")
		return fmt.Errorf("mutool installation failed: %w", err)
	}

	if _, ok := svgdoc.FindMutool(); !ok {
		fmt.Println("Installation completed but mutool is not in PATH.")
		fmt.Println("Please restart your terminal or add mutool to your PATH.")
		return fmt.Errorf("mutool not found after installation")
	}

	fmt.Println("mutool installed successfully!")
	fmt.Println()
	return nil
}
