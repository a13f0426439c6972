package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrimodality/internal/models"
	"mrimodality/pkg/config"
	"mrimodality/pkg/volume"
)

// setupWorkspace writes volumes, manifests, an architecture file and a config
// into a temporary directory and returns the config path.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, name := range []string{"a.nii", "b.nii.gz"} {
		v := models.NewVolume(12, 14, 10)
		for i := range v.Data {
			v.Data[i] = float64(i % 97)
		}
		require.NoError(t, volume.WriteFile(filepath.Join(dir, name), v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.nii"), []byte("junk"), 0644))

	train := "0 a.nii\n1 b.nii.gz\n4 a.nii\n"
	valid := "1 a.nii\n0 broken.nii\n0 b.nii.gz\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.txt"), []byte(absolutize(dir, train)), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "valid.txt"), []byte(absolutize(dir, valid)), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "model"), 0755))
	arch := `{"class_name": "Sequential", "config": [
		{"class_name": "Conv2D", "config": {"name": "c0", "batch_input_shape": [null, 1, 32, 32]}},
		{"class_name": "Dense", "config": {"name": "d1", "units": 2}}
	]}`
	encoded, err := json.Marshal(arch)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model", "CNN_2mod.json"), encoded, 0644))

	cfg := config.DefaultConfig()
	cfg.Data.TrainManifest = "train.txt"
	cfg.Data.ValidManifest = "valid.txt"
	cfg.Generator.BatchSize = 12
	cfg.Generator.Modalities = 2
	cfg.Generator.SlicesPerVolume = 5
	cfg.Generator.Seed = 17
	cfg.Model.Aggregator = ""
	cfg.Logging.Level = "error"

	path := filepath.Join(dir, "mrimodality.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func absolutize(dir, manifest string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(manifest), "\n") {
		label, path, _ := strings.Cut(line, " ")
		fmt.Fprintf(&b, "%s %s\n", label, filepath.Join(dir, path))
	}
	return b.String()
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmdCtx := newCommandContext()
	defer cmdCtx.close()

	cmd := newRootCommand(cmdCtx)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "mrimodality.yaml")

	out, err := runCommand(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")

	_, err = runCommand(t, "config", "init", "--path", path)
	assert.Error(t, err)

	_, err = runCommand(t, "config", "init", "--path", path, "--overwrite")
	assert.NoError(t, err)

	out, err = runCommand(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
}

func TestCheck(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := runCommand(t, "--config", cfgPath, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Modality")
	assert.Contains(t, out, "CNN_2mod.json accepts (1,32,32)")
	assert.NotContains(t, out, "Probe complete")
}

func TestCheckProbeReportsBrokenVolumes(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := runCommand(t, "--config", cfgPath, "check", "--probe")
	require.NoError(t, err)
	assert.Contains(t, out, "broken.nii")
	assert.Contains(t, out, "Probe complete: 1 unusable volume(s)")
}

func TestCheckArchitectureMismatch(t *testing.T) {
	cfgPath := setupWorkspace(t)
	dir := filepath.Dir(cfgPath)
	arch := `{"class_name": "Sequential", "config": [
		{"class_name": "Dense", "config": {"batch_input_shape": [null, 1, 64, 64], "units": 2}}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model", "CNN_2mod.json"), []byte(arch), 0644))

	_, err := runCommand(t, "--config", cfgPath, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract mismatch")
}

func TestPreview(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := runCommand(t, "--config", cfgPath, "preview", "--batches", "2", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "train")
	assert.Contains(t, out, "valid")

	dir := filepath.Dir(cfgPath)
	for _, split := range []string{"train", "valid"} {
		entries, err := os.ReadDir(filepath.Join(dir, "preview", split, "batch_001"))
		require.NoError(t, err)
		assert.Len(t, entries, 12)
	}
}

func TestPreviewRejectsBadBatchCount(t *testing.T) {
	cfgPath := setupWorkspace(t)
	_, err := runCommand(t, "--config", cfgPath, "preview", "--batches", "0")
	assert.Error(t, err)
}

func TestLabelHistogram(t *testing.T) {
	assert.Equal(t, "0:2 1:1", labelHistogram([]int{1, 0, 0}))
	assert.Equal(t, "", labelHistogram(nil))
}

func TestInspect(t *testing.T) {
	cfgPath := setupWorkspace(t)
	dir := filepath.Dir(cfgPath)
	outDir := filepath.Join(dir, "sections")

	out, err := runCommand(t, "--config", cfgPath, "inspect", filepath.Join(dir, "b.nii.gz"), "--axes", "x,z", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "10x14x12")
	assert.Contains(t, out, "sagittal window 3..7")

	entries, err := os.ReadDir(filepath.Join(outDir, "x"))
	require.NoError(t, err)
	assert.Len(t, entries, 10)
	entries, err = os.ReadDir(filepath.Join(outDir, "z"))
	require.NoError(t, err)
	assert.Len(t, entries, 12)

	_, err = runCommand(t, "--config", cfgPath, "inspect", filepath.Join(dir, "broken.nii"))
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	cfgPath := setupWorkspace(t)
	preds := filepath.Join(filepath.Dir(cfgPath), "preds.txt")
	require.NoError(t, os.WriteFile(preds, []byte("0.2 0.8\n0.4 0.6\n\n0.1 0.9\n0.3 0.7\n0.5 0.5\n"), 0644))

	out, err := runCommand(t, "--config", cfgPath, "decide", preds)
	require.NoError(t, err)
	assert.Contains(t, out, "Modality 1 (mean probability 0.700 over 5 slices)")

	out, err = runCommand(t, "--config", cfgPath, "decide", preds, "--features")
	require.NoError(t, err)
	assert.Equal(t, "0.2 0.8 0.4 0.6 0.1 0.9 0.3 0.7 0.5 0.5", strings.TrimSpace(out))

	require.NoError(t, os.WriteFile(preds, []byte("0.2 x\n"), 0644))
	_, err = runCommand(t, "--config", cfgPath, "decide", preds)
	assert.Error(t, err)
}

func TestPreviewFailsBeforeDrawingWhenASplitIsUnusable(t *testing.T) {
	cfgPath := setupWorkspace(t)
	dir := filepath.Dir(cfgPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "valid.txt"), []byte(absolutize(dir, "7 a.nii\n")), 0644))

	_, err := runCommand(t, "--config", cfgPath, "preview", "--save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid split")
	assert.NoDirExists(t, filepath.Join(dir, "preview", "train"))
}
