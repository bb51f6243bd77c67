package strip

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/forfaxx/metaclean/core/codec"
)

// Write encodes img into a temporary file created in the destination's
// own directory (same filesystem, so the final rename is atomic) and
// renames it over dest. On any encode or rename failure the temp file
// is removed best-effort and the original error propagates. External
// readers never observe a half-written file at dest.
func Write(img image.Image, dest string, opts codec.SaveOptions) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metaclean-*"+filepath.Ext(dest))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := codec.Encode(tmp, img, opts); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
