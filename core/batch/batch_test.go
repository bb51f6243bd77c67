package batch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/codec"
	"github.com/forfaxx/metaclean/core/scan"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 50, G: 100, B: 150, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newPrinter() (*core.Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return &core.Printer{Writer: &buf}, &buf
}

func TestInputs(t *testing.T) {
	stdin := strings.NewReader("a.jpg\n\n  b.png  \n")
	assert.Equal(t,
		[]string{"a.jpg", "b.png", "c.tif"},
		Inputs(stdin, true, []string{"c.tif"}))

	// Stdin is ignored when not piped.
	stdin = strings.NewReader("a.jpg\n")
	assert.Equal(t, []string{"c.tif"}, Inputs(stdin, false, []string{"c.tif"}))

	assert.Empty(t, Inputs(nil, true, nil))
}

func TestRunNoFiles(t *testing.T) {
	p, out := newPrinter()
	sum, err := Run(context.Background(), p, core.Registry(), core.Policy{}, Modes{Scan: true}, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.Scanned)
	assert.Contains(t, out.String(), "No files provided on CLI or stdin.")
}

func TestRunSkipsDirectoriesAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	gif := filepath.Join(dir, "anim.gif")
	require.NoError(t, os.WriteFile(gif, []byte("GIF89a"), 0o644))

	p, out := newPrinter()
	sum, err := Run(context.Background(), p, core.Registry(), core.Policy{}, Modes{Scan: true}, []string{sub, gif})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Scanned)
	assert.Contains(t, out.String(), "Directory: "+sub)
	assert.Contains(t, out.String(), "Not a supported image type: "+gif)
}

func TestRunStrip(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "a.png")
	missing := filepath.Join(dir, "missing.jpg")

	p, out := newPrinter()
	policy := core.Policy{OutDir: filepath.Join(dir, "cleaned")}
	sum, err := Run(context.Background(), p, core.Registry(), policy, Modes{Strip: true}, []string{src, missing})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Cleaned)
	assert.Equal(t, 1, sum.Failed)
	assert.Error(t, sum.Err)
	assert.Contains(t, out.String(), "[OK]")
	assert.Contains(t, out.String(), "[ERROR]")

	_, statErr := os.Stat(filepath.Join(dir, "cleaned", "a_clean.png"))
	assert.NoError(t, statErr)
}

func TestRunScanPositivesPipesPaths(t *testing.T) {
	dir := t.TempDir()
	clean := writePNG(t, dir, "clean.png")

	tagged := filepath.Join(dir, "tagged.jpg")
	f, err := os.Create(tagged)
	require.NoError(t, err)
	require.NoError(t, codec.Encode(f, image.NewRGBA(image.Rect(0, 0, 3, 3)), codec.SaveOptions{
		Format: core.FmtJPEG,
		Tags: []codec.TagSpec{
			{ID: core.TagCopyright, Name: "Copyright", IfdPath: "IFD", Value: "T"},
		},
	}))
	require.NoError(t, f.Close())

	p, out := newPrinter()
	modes := Modes{Scan: true, ScanOpts: scan.Options{Positives: true}}
	sum, err := Run(context.Background(), p, core.Registry(), core.Policy{}, modes, []string{tagged, clean})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 1, sum.Positives)
	assert.Equal(t, tagged+"\n", out.String())
}

func TestRunCountsBestEffortSaves(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mislabeled.jpg")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, image.NewRGBA(image.Rect(0, 0, 3, 3)), nil))
	require.NoError(t, f.Close())

	p, out := newPrinter()
	policy := core.Policy{OutDir: filepath.Join(dir, "cleaned")}
	sum, err := Run(context.Background(), p, core.Registry(), policy, Modes{Strip: true}, []string{src})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Cleaned)
	assert.Zero(t, sum.Failed)
	assert.NoError(t, sum.Err)
	assert.Contains(t, out.String(), "[WARN]")
}

func TestRunInterrupted(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newPrinter()
	_, err := Run(ctx, p, core.Registry(), core.Policy{}, Modes{Scan: true}, []string{src})
	assert.ErrorIs(t, err, ErrInterrupted)

	// With strip selected, the abort lands before any write begins.
	outdir := filepath.Join(dir, "cleaned")
	sum, err := Run(ctx, p, core.Registry(), core.Policy{OutDir: outdir}, Modes{Scan: true, Strip: true}, []string{src})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Zero(t, sum.Cleaned)
	_, statErr := os.Stat(filepath.Join(outdir, "a_clean.png"))
	assert.True(t, os.IsNotExist(statErr))
}
