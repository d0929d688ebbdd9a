package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ecg-deid/internal/cli"
	"ecg-deid/internal/config"
	"ecg-deid/internal/gui"
)

// DefaultConfigFile is read from the working directory when -c is not given.
const DefaultConfigFile = "ecg-deid.toml"

func main() {
	input := flag.String("input", "", "Input folder of per-patient report folders")
	inputShort := flag.String("i", "", "Input folder (shorthand)")

	output := flag.String("output", "", "Output folder")
	outputShort := flag.String("o", "", "Output folder (shorthand)")

	configFile := flag.String("config", "", "TOML config file")
	configShort := flag.String("c", "", "Config file (shorthand)")

	ecgKey := flag.String("ecg-key", "", "ECG timestamp key file")
	idKey := flag.String("id-key", "", "Patient ID key file")
	template := flag.String("template", "", "Report layout template")
	mrnSource := flag.String("mrn-source", "", "MRN source: dir, field or dicom")
	mutool := flag.String("mutool", "", "mutool binary")
	auditLog := flag.String("audit-log", "", "Audit log file")
	workers := flag.Int("workers", 0, "Reports processed in parallel")

	recursive := flag.Bool("recursive", true, "Search subdirectories")
	recursiveShort := flag.Bool("r", true, "Recursive (shorthand)")

	retry := flag.Bool("retry", false, "Retry previously failed reports")

	dryRun := flag.Bool("dry-run", false, "Preview only, no files written")
	dryRunShort := flag.Bool("n", false, "Dry run (shorthand)")

	verbose := flag.Bool("verbose", false, "Debug logging on stderr")
	verboseShort := flag.Bool("v", false, "Verbose (shorthand)")

	help := flag.Bool("help", false, "Show help message")
	helpShort := flag.Bool("h", false, "Help (shorthand)")

	flag.Usage = func() {
		cli.PrintUsage()
	}

	flag.Parse()

	if *help || *helpShort {
		cli.PrintUsage()
		return
	}

	level := slog.LevelWarn
	if *verbose || *verboseShort {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// defaults < config file < environment < flags
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	path := firstNonEmpty(*configFile, *configShort, os.Getenv(config.EnvPrefix+"CONFIG"))
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err = config.ApplyEnv(cfg, os.Environ())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if v := firstNonEmpty(*output, *outputShort); v != "" {
		cfg.Paths.Output = v
	}
	if *ecgKey != "" {
		cfg.Keys.ECG = *ecgKey
	}
	if *idKey != "" {
		cfg.Keys.Identity = *idKey
	}
	if *template != "" {
		cfg.Paths.Template = *template
	}
	if *mrnSource != "" {
		cfg.Batch.MRNSource = *mrnSource
	}
	if *mutool != "" {
		cfg.Render.Mutool = *mutool
	}
	if *auditLog != "" {
		cfg.Paths.AuditLog = *auditLog
	}
	if set["workers"] {
		cfg.Batch.Workers = *workers
	}
	if set["recursive"] || set["r"] {
		cfg.Batch.Recursive = *recursive && *recursiveShort
	}

	inputFolder := firstNonEmpty(*input, *inputShort)

	// No input folder specified = GUI mode
	if inputFolder == "" {
		app := gui.NewApp(cfg, logger)
		app.Run()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{
		InputFolder: inputFolder,
		Config:      cfg,
		RetryFailed: *retry,
		DryRun:      *dryRun || *dryRunShort,
		Logger:      logger,
	}

	if err := cli.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// exitCode is 130 when the batch was interrupted, 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
