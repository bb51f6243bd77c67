package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/codec"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	return img
}

func writeCleanPNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clean.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testImage()))
	require.NoError(t, f.Close())
	return path
}

func writeTaggedJPEG(t *testing.T, dir string, tags []codec.TagSpec) string {
	t.Helper()
	path := filepath.Join(dir, "tagged.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, codec.Encode(f, testImage(), codec.SaveOptions{
		Format: core.FmtJPEG,
		Tags:   tags,
	}))
	require.NoError(t, f.Close())
	return path
}

func newPrinter() (*core.Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return &core.Printer{Writer: &buf}, &buf
}

func TestRunCleanFile(t *testing.T) {
	path := writeCleanPNG(t, t.TempDir())

	p, out := newPrinter()
	found := Run(p, core.Registry(), path, Options{})
	assert.False(t, found)
	assert.Contains(t, out.String(), "No EXIF metadata found")
}

func TestRunReportsTags(t *testing.T) {
	path := writeTaggedJPEG(t, t.TempDir(), []codec.TagSpec{
		{ID: core.TagCopyright, Name: "Copyright", IfdPath: "IFD", Value: "Test"},
	})

	p, out := newPrinter()
	found := Run(p, core.Registry(), path, Options{})
	assert.True(t, found)
	assert.Contains(t, out.String(), "=== Metadata for "+path+" ===")
	assert.Contains(t, out.String(), "Copyright: Test")
}

func TestRunPositivesEmitsOnlyPath(t *testing.T) {
	dir := t.TempDir()
	tagged := writeTaggedJPEG(t, dir, []codec.TagSpec{
		{ID: core.TagCopyright, Name: "Copyright", IfdPath: "IFD", Value: "Test"},
	})
	clean := writeCleanPNG(t, dir)

	p, out := newPrinter()
	assert.True(t, Run(p, core.Registry(), tagged, Options{Positives: true}))
	assert.False(t, Run(p, core.Registry(), clean, Options{Positives: true}))
	assert.Equal(t, tagged+"\n", out.String())
}

func TestRunGPSSection(t *testing.T) {
	path := writeTaggedJPEG(t, t.TempDir(), []codec.TagSpec{
		{ID: core.TagCopyright, Name: "Copyright", IfdPath: "IFD", Value: "Test"},
		{ID: 0x0001, Name: "GPSLatitudeRef", IfdPath: "IFD/GPSInfo", Value: "N"},
	})

	// GPS tags stay hidden unless asked for.
	p, out := newPrinter()
	require.True(t, Run(p, core.Registry(), path, Options{}))
	assert.NotContains(t, out.String(), "GPS ----")

	p, out = newPrinter()
	require.True(t, Run(p, core.Registry(), path, Options{ShowGPS: true}))
	assert.Contains(t, out.String(), "---- GPS ----")
	assert.Contains(t, out.String(), "GPSLatitudeRef: N")
}

func TestRunMissingFile(t *testing.T) {
	p, out := newPrinter()
	found := Run(p, core.Registry(), filepath.Join(t.TempDir(), "gone.jpg"), Options{})
	assert.False(t, found)
	assert.Contains(t, out.String(), "[ERROR]")

	// Positives mode stays silent on unreadable files.
	p, out = newPrinter()
	found = Run(p, core.Registry(), filepath.Join(t.TempDir(), "gone.jpg"), Options{Positives: true})
	assert.False(t, found)
	assert.Empty(t, out.String())
}
