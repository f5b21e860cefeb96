package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lbpfeat/internal/batch"
	"github.com/MeKo-Tech/lbpfeat/internal/config"
	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
	"github.com/MeKo-Tech/lbpfeat/internal/store"
	"github.com/MeKo-Tech/lbpfeat/internal/testutil"
)

// smallModel generates a 24x20 multi-block extractor limited to block sizes 1 and 2.
func smallModel(t *testing.T, dir string) (string, *extractor.Extractor) {
	t.Helper()
	path := filepath.Join(dir, "model.yaml")
	_, err := execute(t, "generate", "-o", path, "--max-size", "2")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Generation.MaxSize = 2
	spec, err := cfg.ToModeSpec()
	require.NoError(t, err)
	want, err := extractor.NewWithMode(spec)
	require.NoError(t, err)
	return path, want
}

func TestGenerateAndInfo(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "model.yaml")

	output, err := execute(t, "generate", "-o", path, "--max-size", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "FeatureExtractor(patch=24x20")
	assert.Contains(t, output, "Saved to "+path)
	assert.True(t, testutil.FileExists(path))

	_, want := smallModel(t, dir)
	output, err = execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Patch: 24x20")
	assert.Contains(t, output, "Labels: 256")
	assert.Contains(t, output, fmt.Sprintf("Features: %d", want.NumberOfFeatures()))
	assert.Contains(t, output, "OPERATOR")
	assert.NotContains(t, output, "FEATURE")

	output, err = execute(t, "info", path, "--features")
	require.NoError(t, err)
	assert.Contains(t, output, "FEATURE")
	assert.Contains(t, output, "(0,0)")
}

func TestGenerateSingleRadiusOperator(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "lbp.yaml")

	_, err := execute(t, "generate", "-o", path, "--kind", "lbp", "--variants", "u2", "--scale", "2")
	require.NoError(t, err)

	output, err := execute(t, "info", path, "--format", "json")
	require.NoError(t, err)
	var info extractorInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, 59, info.Labels)
	require.Len(t, info.Operators, 1)
	assert.Equal(t, 5, info.Operators[0].Height)
	assert.Equal(t, 5, info.Operators[0].Width)
	assert.Equal(t, 1, info.Features)
	assert.Equal(t, 1, info.Operators[0].Offsets)
}

func TestGenerateErrors(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")

	_, err = execute(t, "generate", "-o", filepath.Join(dir, "x.yaml"), "--neighbors", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	_, err = execute(t, "generate", "-o", filepath.Join(dir, "x.yaml"), "--min-size", "30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fits into patch")
	assert.False(t, testutil.FileExists(filepath.Join(dir, "x.yaml")))
}

func TestGenerateFromConfigFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := testutil.WriteFile(t, dir, "custom.yaml", `
patch:
  height: 12
  width: 10
generation:
  max_size: 1
`)
	path := filepath.Join(dir, "model.yaml")
	_, err := execute(t, "--config", cfgPath, "generate", "-o", path)
	require.NoError(t, err)

	output, err := execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Patch: 12x10")

	// flags override the file
	_, err = execute(t, "--config", cfgPath, "generate", "-o", path, "--patch-height", "8")
	require.NoError(t, err)
	output, err = execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Patch: 8x10")
}

func TestGenerateEnvironmentOverride(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LBPFEAT_PATCH_HEIGHT", "16")
	t.Setenv("LBPFEAT_GENERATION_MAX_SIZE", "1")

	path := filepath.Join(dir, "model.yaml")
	_, err := execute(t, "generate", "-o", path)
	require.NoError(t, err)
	output, err := execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Patch: 16x20")
}

func TestInfoErrors(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "info", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read extractor")

	broken := testutil.WriteFile(t, dir, "broken.yaml", "patch_size: 3\n")
	_, err = execute(t, "info", broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrCorruptData)

	model, _ := smallModel(t, dir)
	_, err = execute(t, "info", model, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestExtract(t *testing.T) {
	dir := isolate(t)
	annotations, _ := testutil.FaceFixture(t, 3)
	model, want := smallModel(t, dir)
	out := filepath.Join(dir, "dataset.yaml")

	output, err := execute(t, "extract", annotations, "--model", model, "-o", out, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "Extracted 3 samples")

	g, err := store.ReadFile(out)
	require.NoError(t, err)
	ds, labels, err := batch.LoadDataset(g)
	require.NoError(t, err)
	assert.Equal(t, 256, labels)
	assert.Equal(t, 3, ds.Rows)
	assert.Equal(t, want.NumberOfFeatures(), ds.Cols)
}

func TestExtractToStdout(t *testing.T) {
	dir := isolate(t)
	annotations, _ := testutil.FaceFixture(t, 2)
	model, _ := smallModel(t, dir)

	output, err := execute(t, "extract", annotations, "--model", model, "-o", "-", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "image,top,left,height,width,factor,scale,f0"), lines[0])
	assert.False(t, testutil.FileExists(filepath.Join(dir, "-")))
}

func TestExtractStatsAndScales(t *testing.T) {
	dir := isolate(t)
	annotations, _ := testutil.FaceFixture(t, 3)
	model, _ := smallModel(t, dir)
	metrics := filepath.Join(dir, "metrics.prom")

	output, err := execute(t, "extract", annotations, "--model", model, "-o", filepath.Join(dir, "ds.yaml"),
		"--scales", "1,1.25", "--stats", "--progress", "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Contains(t, output, "Extraction Statistics:")
	assert.Contains(t, output, "Images: 3")
	assert.Contains(t, output, "Samples: 6")
	assert.Contains(t, testutil.ReadFile(t, metrics), "lbpfeat_batch_images_total")
}

func TestExtractGeneratesFromConfig(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LBPFEAT_GENERATION_MAX_SIZE", "1")
	annotations, _ := testutil.FaceFixture(t, 1)

	out := filepath.Join(dir, "ds.yaml")
	output, err := execute(t, "extract", annotations, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Extracted 1 samples")
	assert.True(t, testutil.FileExists(out))
}

func TestExtractErrors(t *testing.T) {
	dir := isolate(t)
	model, _ := smallModel(t, dir)

	_, err := execute(t, "extract", filepath.Join(dir, "missing.csv"), "--model", model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read annotations")

	annotations := testutil.WriteFile(t, dir, "a.csv", "image,top,left,height,width\nnope.png,0,0,48,40\n")
	_, err = execute(t, "extract", annotations, "--model", model, "-o", filepath.Join(dir, "ds.yaml"))
	require.Error(t, err)

	_, err = execute(t, "extract", annotations, "--model", model, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch format")
}

func TestMeanVar(t *testing.T) {
	dir := isolate(t)
	img := testutil.UniformGray(testutil.ImageSize{Width: 10, Height: 20}, 100)
	path := filepath.Join(dir, "flat.png")
	testutil.SaveImage(t, img, path)

	output, err := execute(t, "meanvar", path)
	require.NoError(t, err)
	assert.Contains(t, output, "(20x10, scaled to 20x10)")
	assert.Contains(t, output, "0,0,20,10\tmean=100.0000\tvariance=0.0000")

	_, err = execute(t, "meanvar", path, "--box", "2,3,4,5", "--scale", "0.5")
	require.ErrorIs(t, err, extractor.ErrOutOfBounds, "box 2,3,4,5 leaves the 10x5 image")

	output, err = execute(t, "meanvar", path, "--box", "2,0,4,5", "--box", "0,0,10,5", "--scale", "0.5", "--format", "json")
	require.NoError(t, err)
	var stats []regionStats
	require.NoError(t, json.Unmarshal([]byte(output), &stats))
	require.Len(t, stats, 2)
	assert.InDelta(t, 100, stats[0].Mean, 1e-9)
	assert.InDelta(t, 0, stats[1].Variance, 1e-9)
	assert.Equal(t, 10, stats[1].Height)
}

func TestMeanVarErrors(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "flat.png")
	testutil.SaveImage(t, testutil.UniformGray(testutil.SmallSize, 7), path)

	_, err := execute(t, "meanvar", path, "--box", "1,2,3")
	require.Error(t, err)
	_, err = execute(t, "meanvar", path, "--scale", "0")
	require.ErrorIs(t, err, extractor.ErrInvalidArgument)
	_, err = execute(t, "meanvar", filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	_, err = execute(t, "meanvar", path, "--format", "xml")
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)

	output, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "lbpfeat.yaml")
	content := testutil.ReadFile(t, filepath.Join(dir, "lbpfeat.yaml"))
	assert.Contains(t, content, "patch:")

	custom := filepath.Join(dir, "custom.yaml")
	_, err = execute(t, "config", "init", custom)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(custom))

	// lbpfeat.yaml in the working directory is picked up
	output, err = execute(t, "config", "show", "--sources")
	require.NoError(t, err)
	assert.Contains(t, output, "lbpfeat.yaml")
	assert.Contains(t, output, "kind: mblbp")
	assert.Contains(t, output, "height: 24")
}
