// Package codec adapts the image codec libraries behind a single
// handle: it opens a file, exposes its pixels, raw EXIF mapping, ICC
// profile, DPI and frame count, and re-encodes with format-specific
// save options.
package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	goexif "github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/forfaxx/metaclean/core"
)

// DPI is a horizontal/vertical dots-per-inch pair.
type DPI struct {
	X float64
	Y float64
}

// Image is an opened image resource. It is read, consumed by one save,
// and released before the next file; never shared.
type Image struct {
	Path    string
	Format  core.FormatID
	Pixels  image.Image
	RawExif []byte // TIFF-ordered EXIF blob; nil means no metadata
	ICC     []byte
	DPI     *DPI

	frames int
	x      *goexif.Exif // lazy goexif view of RawExif
	xErr   error
	xDone  bool
}

// Open reads path, detects its format, decodes the pixel data, and
// probes metadata (EXIF blob, ICC profile, DPI, frame count).
func Open(path string) (*Image, error) {
	format, err := core.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	im := &Image{Path: path, Format: format, frames: 1}

	switch format {
	case core.FmtJPEG:
		err = im.openJPEG(data)
	case core.FmtPNG:
		err = im.openPNG(data)
	case core.FmtWebP:
		err = im.openWebP(data)
	case core.FmtTIFF:
		err = im.openTIFF(data)
	case core.FmtGIF:
		err = im.openGIF(data)
	case core.FmtBMP:
		err = im.openBMP(data)
	default:
		return nil, fmt.Errorf("unrecognised image format")
	}
	if err != nil {
		return nil, err
	}
	return im, nil
}

// Frames returns the number of decodable frames in the container.
func (im *Image) Frames() int { return im.frames }

// MultiFrame reports whether the image is animated or multi-page.
func (im *Image) MultiFrame() bool { return im.frames > 1 }

// HasMetadata reports whether the source carried any EXIF mapping.
func (im *Image) HasMetadata() bool { return len(im.RawExif) > 0 }

// Close releases the decoded pixel buffer and metadata views.
func (im *Image) Close() {
	im.Pixels = nil
	im.RawExif = nil
	im.ICC = nil
	im.x = nil
}

// exifView lazily decodes the raw EXIF blob with goexif for targeted
// field reads.
func (im *Image) exifView() (*goexif.Exif, error) {
	if !im.xDone {
		im.xDone = true
		if len(im.RawExif) == 0 {
			im.xErr = fmt.Errorf("no exif data")
		} else {
			im.x, im.xErr = goexif.Decode(bytes.NewReader(im.RawExif))
		}
	}
	return im.x, im.xErr
}

// StringTag returns a string-typed EXIF field from the source mapping.
func (im *Image) StringTag(field goexif.FieldName) (string, bool) {
	x, err := im.exifView()
	if err != nil {
		return "", false
	}
	tag, err := x.Get(field)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	return s, true
}

// IntTag returns an integer-typed EXIF field from the source mapping.
func (im *Image) IntTag(field goexif.FieldName) (int, bool) {
	x, err := im.exifView()
	if err != nil {
		return 0, false
	}
	tag, err := x.Get(field)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Orientation returns the source orientation tag, defaulting to 1.
func (im *Image) Orientation() int {
	if v, ok := im.IntTag(goexif.Orientation); ok && v >= 1 && v <= 8 {
		return v
	}
	return 1
}

// ─── JPEG ────────────────────────────────────────────────────────────────────

func (im *Image) openJPEG(data []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode jpeg: %w", err)
	}
	im.Pixels = img

	if raw, err := extractJPEGExif(data); err == nil {
		im.RawExif = raw
	}
	im.ICC = extractJPEGICC(data)
	im.DPI = im.exifDPI()
	return nil
}

// extractJPEGExif walks the APP1 segments for an Exif payload and
// returns the TIFF-ordered blob after the Exif\x00\x00 header.
func extractJPEGExif(data []byte) ([]byte, error) {
	exifPrefix := []byte("Exif\x00\x00")
	var blob []byte
	err := walkJPEGSegments(data, func(marker byte, seg []byte) bool {
		if marker == 0xE1 && bytes.HasPrefix(seg, exifPrefix) {
			blob = seg[len(exifPrefix):]
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, fmt.Errorf("no exif segment")
	}
	return blob, nil
}

// extractJPEGICC concatenates the APP2 ICC_PROFILE segments in file
// order. Multi-segment profiles carry seq/total bytes after the prefix.
func extractJPEGICC(data []byte) []byte {
	iccPrefix := []byte("ICC_PROFILE\x00")
	var icc []byte
	walkJPEGSegments(data, func(marker byte, seg []byte) bool {
		if marker == 0xE2 && bytes.HasPrefix(seg, iccPrefix) && len(seg) > len(iccPrefix)+2 {
			icc = append(icc, seg[len(iccPrefix)+2:]...)
		}
		return true
	})
	return icc
}

// walkJPEGSegments visits every marker segment before the scan data.
// The callback returns false to stop early.
func walkJPEGSegments(data []byte, fn func(marker byte, seg []byte) bool) error {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return fmt.Errorf("not a JPEG")
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil
		}
		marker := data[i+1]
		if marker == 0xDA || marker == 0xD9 {
			return nil
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:i+4])) - 2
		if segLen < 0 || i+4+segLen > len(data) {
			return fmt.Errorf("truncated JPEG segment")
		}
		if !fn(marker, data[i+4:i+4+segLen]) {
			return nil
		}
		i += 4 + segLen
	}
	return nil
}

// exifDPI derives DPI from the EXIF resolution tags, converting from
// centimeters when ResolutionUnit says so.
func (im *Image) exifDPI() *DPI {
	x, err := im.exifView()
	if err != nil {
		return nil
	}
	read := func(field goexif.FieldName) (float64, bool) {
		tag, err := x.Get(field)
		if err != nil {
			return 0, false
		}
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return 0, false
		}
		return float64(num) / float64(den), true
	}
	xr, okX := read(goexif.XResolution)
	yr, okY := read(goexif.YResolution)
	if !okX && !okY {
		return nil
	}
	if !okX {
		xr = yr
	}
	if !okY {
		yr = xr
	}
	if unit, ok := im.IntTag(goexif.ResolutionUnit); ok && unit == 3 {
		xr *= 2.54
		yr *= 2.54
	}
	if xr <= 0 || yr <= 0 {
		return nil
	}
	return &DPI{X: xr, Y: yr}
}

// ─── PNG ─────────────────────────────────────────────────────────────────────

func (im *Image) openPNG(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode png: %w", err)
	}
	im.Pixels = img

	pmp := pngstructure.NewPngMediaParser()
	intfc, err := pmp.ParseBytes(data)
	if err != nil {
		// Pixels decoded fine; treat chunk-level metadata as absent.
		return nil
	}
	cs, ok := intfc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil
	}
	for _, chunk := range cs.Chunks() {
		switch chunk.Type {
		case "eXIf":
			im.RawExif = chunk.Data
		case "iCCP":
			im.ICC = decodePNGProfile(chunk.Data)
		case "pHYs":
			im.DPI = decodePNGPhys(chunk.Data)
		case "acTL":
			// APNG animation control: frame count in the first word.
			if len(chunk.Data) >= 4 {
				if n := int(binary.BigEndian.Uint32(chunk.Data[:4])); n > 1 {
					im.frames = n
				}
			}
		}
	}
	return nil
}

// decodePNGProfile inflates an iCCP chunk (name, method byte, zlib data).
func decodePNGProfile(data []byte) []byte {
	null := bytes.IndexByte(data, 0)
	if null < 0 || null+2 >= len(data) {
		return nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data[null+2:]))
	if err != nil {
		return nil
	}
	defer zr.Close()
	icc, err := io.ReadAll(zr)
	if err != nil {
		return nil
	}
	return icc
}

// decodePNGPhys converts a pHYs chunk (pixels per meter) to DPI.
func decodePNGPhys(data []byte) *DPI {
	if len(data) != 9 || data[8] != 1 {
		return nil
	}
	ppmX := binary.BigEndian.Uint32(data[0:4])
	ppmY := binary.BigEndian.Uint32(data[4:8])
	if ppmX == 0 || ppmY == 0 {
		return nil
	}
	return &DPI{
		X: float64(ppmX) * 0.0254,
		Y: float64(ppmY) * 0.0254,
	}
}

// ─── WebP ────────────────────────────────────────────────────────────────────

func (im *Image) openWebP(data []byte) error {
	// Probe the container before decoding: animated files are rejected
	// by the decoder, but the policy layer needs the frame count first.
	animated := false
	frames := 0
	walkRIFFChunks(data, func(id string, chunk []byte) bool {
		switch id {
		case "VP8X":
			if len(chunk) >= 1 && chunk[0]&0x02 != 0 {
				animated = true
			}
		case "ANMF":
			frames++
		case "EXIF":
			raw := chunk
			if bytes.HasPrefix(raw, []byte("Exif\x00\x00")) {
				raw = raw[6:]
			}
			im.RawExif = raw
		case "ICCP":
			im.ICC = chunk
		}
		return true
	})
	if animated {
		if frames < 2 {
			frames = 2
		}
		im.frames = frames
	}
	im.DPI = im.exifDPI()

	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		if im.MultiFrame() {
			// Leave pixels nil; the policy layer skips or errors out.
			return nil
		}
		return fmt.Errorf("decode webp: %w", err)
	}
	im.Pixels = img
	return nil
}

// walkRIFFChunks visits every chunk in a RIFF/WEBP container.
func walkRIFFChunks(data []byte, fn func(id string, chunk []byte) bool) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return
	}
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if offset+size > len(data) {
			return
		}
		if !fn(id, data[offset:offset+size]) {
			return
		}
		offset += size
		if size%2 != 0 {
			offset++
		}
	}
}

// ─── TIFF ────────────────────────────────────────────────────────────────────

func (im *Image) openTIFF(data []byte) error {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode tiff: %w", err)
	}
	im.Pixels = img

	// A TIFF file is its own EXIF mapping.
	im.RawExif = data
	im.frames = countTIFFIFDs(data)
	if im.frames < 1 {
		im.frames = 1
	}
	im.DPI = im.exifDPI()
	return nil
}

// ─── Metadata-less rasters ───────────────────────────────────────────────────

// openGIF decodes the first frame of a GIF; these carry no EXIF
// mapping, so only pixels and the frame count are populated.
func (im *Image) openGIF(data []byte) error {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) > 0 {
		im.Pixels = g.Image[0]
		im.frames = len(g.Image)
	}
	return nil
}

func (im *Image) openBMP(data []byte) error {
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode bmp: %w", err)
	}
	im.Pixels = img
	return nil
}

// countTIFFIFDs follows the IFD chain to count pages.
func countTIFFIFDs(data []byte) int {
	if len(data) < 8 {
		return 0
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return 0
	}
	offset := int64(order.Uint32(data[4:8]))
	count := 0
	for offset != 0 && count < 1024 {
		if offset+2 > int64(len(data)) {
			break
		}
		n := int64(order.Uint16(data[offset : offset+2]))
		next := offset + 2 + n*12
		if next+4 > int64(len(data)) {
			break
		}
		count++
		offset = int64(order.Uint32(data[next : next+4]))
	}
	return count
}
