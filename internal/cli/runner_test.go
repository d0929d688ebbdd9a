package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecg-deid/internal/config"
)

func TestProgressBarRender(t *testing.T) {
	pb := newProgressBar(10)
	assert.Equal(t, "[----------]   0%  (0/4)", pb.render(0, 4))
	assert.Equal(t, "[#####-----]  50%  (2/4)", pb.render(2, 4))
	assert.Equal(t, "[##########] 100%  (4/4)", pb.render(4, 4))
}

func TestRunRejectsBadInput(t *testing.T) {
	cfg := config.Defaults()
	cfg.Keys = config.KeysConfig{ECG: "ecg.csv", Identity: "id.csv"}

	err := Run(context.Background(), Options{Config: cfg})
	assert.Error(t, err)

	err = Run(context.Background(), Options{InputFolder: filepath.Join(t.TempDir(), "missing"), Config: cfg})
	assert.ErrorContains(t, err, "does not exist")

	file := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0644))
	err = Run(context.Background(), Options{InputFolder: file, Config: cfg})
	assert.ErrorContains(t, err, "not a directory")

	cfg.Batch.MRNSource = "filename"
	err = Run(context.Background(), Options{InputFolder: t.TempDir(), Config: cfg})
	assert.ErrorContains(t, err, "unknown MRN source")
}

func TestRunDryRun(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "ecgs", "12345")
	require.NoError(t, os.MkdirAll(input, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(input, "ecg.pdf"), []byte("%PDF"), 0644))

	ecgKey := filepath.Join(root, "ecg_key.csv")
	idKey := filepath.Join(root, "id_key.csv")
	require.NoError(t, os.WriteFile(ecgKey, []byte("MRN,ECG_DATE,ECG_DATE_DEID\n12345,2020-03-15 10:30:00,2000-01-01 00:00:00\n"), 0644))
	require.NoError(t, os.WriteFile(idKey, []byte("MRN,PT_ID,BDAY_DEID\n12345,PT001,1950-01-10\n"), 0644))

	cfg := config.Defaults()
	cfg.Keys = config.KeysConfig{ECG: ecgKey, Identity: idKey}
	cfg.Paths.Output = filepath.Join(root, "out")

	err := Run(context.Background(), Options{InputFolder: filepath.Join(root, "ecgs"), Config: cfg, DryRun: true})
	require.NoError(t, err)
	assert.NoDirExists(t, cfg.Paths.Output)
}
