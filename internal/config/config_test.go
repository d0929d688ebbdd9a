package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecg-deid/internal/deid"
)

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecg-deid.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[keys]
ecg = "keys/ecg_key.csv"
identity = "keys/id_key.csv"

[batch]
workers = 4
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "keys/ecg_key.csv", cfg.Keys.ECG)
	assert.Equal(t, "keys/id_key.csv", cfg.Keys.Identity)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, deid.DefaultOutputFolder, cfg.Paths.Output)
	assert.Equal(t, "dir", cfg.Batch.MRNSource)
	assert.True(t, cfg.Batch.Recursive)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[keys\necg = 1"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg, err := ApplyEnv(Defaults(), []string{
		"ECG_DEID_ECG_KEY=/k/ecg.csv",
		"ECG_DEID_ID_KEY= /k/id.csv ",
		"ECG_DEID_MRN_SOURCE=field",
		"ECG_DEID_WORKERS=8",
		"ECG_DEID_RECURSIVE=false",
		"ECG_DEID_MUTOOL=/opt/mupdf/mutool",
		"HOME=/root",
		"ECG_DEID_UNKNOWN=x",
	})
	require.NoError(t, err)
	assert.Equal(t, "/k/ecg.csv", cfg.Keys.ECG)
	assert.Equal(t, "/k/id.csv", cfg.Keys.Identity)
	assert.Equal(t, "field", cfg.Batch.MRNSource)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.False(t, cfg.Batch.Recursive)
	assert.Equal(t, "/opt/mupdf/mutool", cfg.Render.Mutool)

	_, err = ApplyEnv(Defaults(), []string{"ECG_DEID_WORKERS=many"})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ECG_DEID_TEST_ONLY_VALUE=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ECG_DEID_TEST_ONLY_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("ECG_DEID_TEST_ONLY_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.Keys = KeysConfig{ECG: "ecg.csv", Identity: "id.csv"}
	assert.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown MRN source", func(c *Config) { c.Batch.MRNSource = "filename" }},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"no ECG key", func(c *Config) { c.Keys.ECG = "" }},
		{"no ID key", func(c *Config) { c.Keys.Identity = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestDeidConfigAndEncode(t *testing.T) {
	cfg := Defaults()
	cfg.Keys = KeysConfig{ECG: "ecg.csv", Identity: "id.csv"}
	cfg.Batch.MRNSource = "DICOM"

	dc := cfg.DeidConfig("/data/ecgs")
	assert.Equal(t, "/data/ecgs", dc.InputFolder)
	assert.Equal(t, deid.MRNFromDICOM, dc.MRNSource)
	assert.Equal(t, "ecg.csv", dc.TimestampKeyFile)
	assert.True(t, dc.Recursive)

	data, err := Encode(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "round.toml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
