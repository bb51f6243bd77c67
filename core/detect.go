package core

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FormatID enumerates every recognised raster format.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtWebP FormatID = "webp"
	FmtTIFF FormatID = "tiff"

	// Rasters without a metadata write path. They show up when file
	// content does not match a supported extension; saved best-effort
	// with no metadata fields.
	FmtGIF FormatID = "gif"
	FmtBMP FormatID = "bmp"

	FmtUnknown FormatID = "unknown"
)

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".png":  FmtPNG,
	".webp": FmtWebP,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,
}

// DetectFormat returns the FormatID for the given file, first by reading
// magic bytes and falling back to extension.
func DetectFormat(path string) (FormatID, error) {
	f, err := os.Open(path)
	if err != nil {
		return FmtUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := io.ReadFull(f, buf)
	if err != nil && n == 0 {
		return FmtUnknown, err
	}
	buf = buf[:n]

	if id := detectMagic(buf); id != FmtUnknown {
		return id, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if id, ok := extMap[ext]; ok {
		return id, nil
	}
	return FmtUnknown, nil
}

func detectMagic(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FmtPNG
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FmtWebP
	// TIFF: 49 49 2A 00 (little-endian) or 4D 4D 00 2A (big-endian)
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return FmtTIFF
	// GIF: GIF87a or GIF89a
	case bytes.HasPrefix(b, []byte("GIF8")):
		return FmtGIF
	// BMP: 42 4D
	case b[0] == 0x42 && b[1] == 0x4D:
		return FmtBMP
	}
	return FmtUnknown
}

// Name returns the human-readable format name.
func (id FormatID) Name() string {
	switch id {
	case FmtJPEG:
		return "JPEG"
	case FmtPNG:
		return "PNG"
	case FmtWebP:
		return "WebP"
	case FmtTIFF:
		return "TIFF"
	case FmtGIF:
		return "GIF"
	case FmtBMP:
		return "BMP"
	default:
		return "unknown"
	}
}

// MetadataCapable reports whether the format has a metadata write path.
// Incapable formats are still saved, bare, as a best-effort WARN.
func (id FormatID) MetadataCapable() bool {
	switch id {
	case FmtJPEG, FmtPNG, FmtWebP, FmtTIFF:
		return true
	}
	return false
}
