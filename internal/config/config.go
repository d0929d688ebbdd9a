package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"ecg-deid/internal/deid"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECG_DEID_"

type KeysConfig struct {
	ECG      string `toml:"ecg"`
	Identity string `toml:"identity"`
}

type PathsConfig struct {
	Output   string `toml:"output"`
	AuditLog string `toml:"audit_log"`
	Template string `toml:"template"`
	WorkDir  string `toml:"work_dir"`
	Progress string `toml:"progress"`
}

type RenderConfig struct {
	Mutool string `toml:"mutool"`
}

type BatchConfig struct {
	MRNSource string `toml:"mrn_source"`
	Workers   int    `toml:"workers"`
	Recursive bool   `toml:"recursive"`
}

type Config struct {
	Keys   KeysConfig   `toml:"keys"`
	Paths  PathsConfig  `toml:"paths"`
	Render RenderConfig `toml:"render"`
	Batch  BatchConfig  `toml:"batch"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Paths: PathsConfig{
			Output:   deid.DefaultOutputFolder,
			AuditLog: deid.DefaultAuditLog,
		},
		Batch: BatchConfig{
			MRNSource: string(deid.MRNFromDirectory),
			Workers:   1,
			Recursive: true,
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays ECG_DEID_* variables from environ onto cfg.
func ApplyEnv(cfg Config, environ []string) (Config, error) {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		key, val, ok := strings.Cut(strings.TrimPrefix(kv, EnvPrefix), "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "ECG_KEY":
			cfg.Keys.ECG = val
		case "ID_KEY":
			cfg.Keys.Identity = val
		case "OUTPUT":
			cfg.Paths.Output = val
		case "AUDIT_LOG":
			cfg.Paths.AuditLog = val
		case "TEMPLATE":
			cfg.Paths.Template = val
		case "WORK_DIR":
			cfg.Paths.WorkDir = val
		case "PROGRESS":
			cfg.Paths.Progress = val
		case "MUTOOL":
			cfg.Render.Mutool = val
		case "MRN_SOURCE":
			cfg.Batch.MRNSource = val
		case "WORKERS":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
			}
			cfg.Batch.Workers = n
		case "RECURSIVE":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, fmt.Errorf("%sRECURSIVE: %w", EnvPrefix, err)
			}
			cfg.Batch.Recursive = b
		}
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on the file system.
func Validate(cfg Config) error {
	if _, err := deid.ParseMRNSource(cfg.Batch.MRNSource); err != nil {
		return err
	}
	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Batch.Workers)
	}
	if cfg.Keys.ECG == "" {
		return errors.New("ECG key file is required")
	}
	if cfg.Keys.Identity == "" {
		return errors.New("ID key file is required")
	}
	return nil
}

// DeidConfig builds the batch configuration for an input folder.
func (c Config) DeidConfig(input string) deid.Config {
	source, _ := deid.ParseMRNSource(c.Batch.MRNSource)
	return deid.Config{
		InputFolder:      input,
		OutputFolder:     c.Paths.Output,
		TimestampKeyFile: c.Keys.ECG,
		IdentityKeyFile:  c.Keys.Identity,
		TemplateFile:     c.Paths.Template,
		AuditLogFile:     c.Paths.AuditLog,
		ProgressFile:     c.Paths.Progress,
		WorkDir:          c.Paths.WorkDir,
		MRNSource:        source,
		Workers:          c.Batch.Workers,
		Recursive:        c.Batch.Recursive,
		MutoolPath:       c.Render.Mutool,
	}
}

// Encode renders cfg as TOML, for writing a starter config file.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
