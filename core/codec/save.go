package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"sort"

	webpenc "github.com/chai2010/webp"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/forfaxx/metaclean/core"
)

// SaveOptions are the format-specific save parameters produced by the
// policy engine. Tags is the replacement tag mapping; empty means the
// output carries no EXIF at all.
type SaveOptions struct {
	Format      core.FormatID
	Tags        []TagSpec
	ICC         []byte
	DPI         *DPI
	Quality     int
	Progressive *bool // recorded for interface parity; baseline encoder only
}

// Encode re-encodes img with the given save options.
func Encode(w io.Writer, img image.Image, opts SaveOptions) error {
	if img == nil {
		return fmt.Errorf("no pixel data to encode")
	}
	switch opts.Format {
	case core.FmtJPEG:
		return encodeJPEG(w, img, opts)
	case core.FmtPNG:
		return encodePNG(w, img, opts)
	case core.FmtWebP:
		return encodeWebP(w, img, opts)
	case core.FmtTIFF:
		return encodeTIFF(w, img, opts)
	case core.FmtGIF, core.FmtBMP:
		return encodeBare(w, img, opts.Format)
	default:
		return fmt.Errorf("unsupported save format %q", opts.Format)
	}
}

// encodeBare writes formats that carry no metadata fields at all.
func encodeBare(w io.Writer, img image.Image, format core.FormatID) error {
	var err error
	switch format {
	case core.FmtGIF:
		err = gif.Encode(w, img, nil)
	case core.FmtBMP:
		err = bmp.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

// ─── JPEG ────────────────────────────────────────────────────────────────────

func encodeJPEG(w io.Writer, img image.Image, opts SaveOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}

	tags := opts.Tags
	if opts.DPI != nil {
		tags = append(append([]TagSpec{}, tags...), resolutionSpecs(opts.DPI)...)
	}
	if len(tags) == 0 && len(opts.ICC) == 0 {
		_, err := w.Write(buf.Bytes())
		return err
	}

	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("parse encoded jpeg: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return fmt.Errorf("unexpected jpeg parse result")
	}

	if len(tags) > 0 {
		ib, err := BuildIfd(tags)
		if err != nil {
			return fmt.Errorf("build replacement exif: %w", err)
		}
		if err := sl.SetExif(ib); err != nil {
			return fmt.Errorf("attach exif: %w", err)
		}
	}
	if len(opts.ICC) > 0 {
		sl = insertICCSegments(sl, opts.ICC)
	}
	return sl.Write(w)
}

// insertICCSegments splices APP2 ICC_PROFILE segments after the leading
// APP0/APP1 block, chunking profiles that exceed one segment.
func insertICCSegments(sl *jpegstructure.SegmentList, icc []byte) *jpegstructure.SegmentList {
	const maxChunk = 65519 // segment payload limit minus the ICC prefix

	total := (len(icc) + maxChunk - 1) / maxChunk
	iccSegs := make([]*jpegstructure.Segment, 0, total)
	for i := 0; i < total; i++ {
		lo := i * maxChunk
		hi := lo + maxChunk
		if hi > len(icc) {
			hi = len(icc)
		}
		data := append([]byte("ICC_PROFILE\x00"), byte(i+1), byte(total))
		data = append(data, icc[lo:hi]...)
		iccSegs = append(iccSegs, &jpegstructure.Segment{MarkerId: 0xE2, Data: data})
	}

	segments := sl.Segments()
	idx := 0
	for idx < len(segments) {
		m := segments[idx].MarkerId
		if m != 0xD8 && m != 0xE0 && m != 0xE1 {
			break
		}
		idx++
	}
	merged := make([]*jpegstructure.Segment, 0, len(segments)+len(iccSegs))
	merged = append(merged, segments[:idx]...)
	merged = append(merged, iccSegs...)
	merged = append(merged, segments[idx:]...)
	return jpegstructure.NewSegmentList(merged)
}

// ─── PNG ─────────────────────────────────────────────────────────────────────

// encodePNG writes a clean PNG. Re-encoding drops every ancillary text
// chunk; EXIF is never written for PNG. ICC and DPI are spliced back in
// as iCCP/pHYs chunks when requested.
func encodePNG(w io.Writer, img image.Image, opts SaveOptions) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if len(opts.ICC) == 0 && opts.DPI == nil {
		_, err := w.Write(buf.Bytes())
		return err
	}

	pmp := pngstructure.NewPngMediaParser()
	intfc, err := pmp.ParseBytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("parse encoded png: %w", err)
	}
	cs, ok := intfc.(*pngstructure.ChunkSlice)
	if !ok {
		return fmt.Errorf("unexpected png parse result")
	}

	var extra []*pngstructure.Chunk
	if len(opts.ICC) > 0 {
		extra = append(extra, newPNGChunk("iCCP", encodePNGProfile(opts.ICC)))
	}
	if opts.DPI != nil {
		extra = append(extra, newPNGChunk("pHYs", encodePNGPhys(opts.DPI)))
	}

	chunks := cs.Chunks()
	merged := make([]*pngstructure.Chunk, 0, len(chunks)+len(extra))
	inserted := false
	for _, c := range chunks {
		if !inserted && c.Type == "IDAT" {
			merged = append(merged, extra...)
			inserted = true
		}
		merged = append(merged, c)
	}
	return pngstructure.NewChunkSlice(merged).WriteTo(w)
}

func newPNGChunk(typ string, data []byte) *pngstructure.Chunk {
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	return &pngstructure.Chunk{
		Length: uint32(len(data)),
		Type:   typ,
		Data:   data,
		Crc:    crc.Sum32(),
	}
}

func encodePNGProfile(icc []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("ICC Profile")
	buf.WriteByte(0) // name terminator
	buf.WriteByte(0) // compression method: zlib
	zw := zlib.NewWriter(&buf)
	zw.Write(icc)
	zw.Close()
	return buf.Bytes()
}

func encodePNGPhys(dpi *DPI) []byte {
	data := make([]byte, 9)
	binary.BigEndian.PutUint32(data[0:4], uint32(math.Round(dpi.X/0.0254)))
	binary.BigEndian.PutUint32(data[4:8], uint32(math.Round(dpi.Y/0.0254)))
	data[8] = 1 // pixels per meter
	return data
}

// ─── WebP ────────────────────────────────────────────────────────────────────

func encodeWebP(w io.Writer, img image.Image, opts SaveOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := webpenc.Encode(&buf, img, &webpenc.Options{Quality: float32(quality)}); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}

	tags := opts.Tags
	if opts.DPI != nil {
		tags = append(append([]TagSpec{}, tags...), resolutionSpecs(opts.DPI)...)
	}
	if len(tags) == 0 && len(opts.ICC) == 0 {
		_, err := w.Write(buf.Bytes())
		return err
	}

	var exifRaw []byte
	if len(tags) > 0 {
		var err error
		exifRaw, err = EncodeExifBytes(tags)
		if err != nil {
			return fmt.Errorf("build replacement exif: %w", err)
		}
	}

	// Rebuild the RIFF container with an extended header so the EXIF
	// and ICCP chunks are announced.
	type riffChunk struct {
		id   string
		data []byte
	}
	var imageChunks []riffChunk
	hasAlpha := false
	walkRIFFChunks(buf.Bytes(), func(id string, chunk []byte) bool {
		if id == "ALPH" || id == "VP8L" {
			hasAlpha = id == "VP8L" || hasAlpha
		}
		if id != "VP8X" {
			imageChunks = append(imageChunks, riffChunk{id, append([]byte{}, chunk...)})
		}
		return true
	})
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		hasAlpha = true
	}

	var flags byte
	if len(opts.ICC) > 0 {
		flags |= 0x20
	}
	if hasAlpha {
		flags |= 0x10
	}
	if len(exifRaw) > 0 {
		flags |= 0x08
	}

	bounds := img.Bounds()
	vp8x := make([]byte, 10)
	vp8x[0] = flags
	putUint24(vp8x[4:7], uint32(bounds.Dx()-1))
	putUint24(vp8x[7:10], uint32(bounds.Dy()-1))

	var body bytes.Buffer
	writeRIFFChunk(&body, "VP8X", vp8x)
	if len(opts.ICC) > 0 {
		writeRIFFChunk(&body, "ICCP", opts.ICC)
	}
	for _, c := range imageChunks {
		writeRIFFChunk(&body, c.id, c.data)
	}
	if len(exifRaw) > 0 {
		writeRIFFChunk(&body, "EXIF", exifRaw)
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(body.Len()+4))
	out.Write(size)
	out.WriteString("WEBP")
	out.Write(body.Bytes())

	_, err := w.Write(out.Bytes())
	return err
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func writeRIFFChunk(w *bytes.Buffer, id string, data []byte) {
	w.WriteString(id)
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(data)))
	w.Write(size)
	w.Write(data)
	if len(data)%2 != 0 {
		w.WriteByte(0)
	}
}

// ─── TIFF ────────────────────────────────────────────────────────────────────

func encodeTIFF(w io.Writer, img image.Image, opts SaveOptions) error {
	var buf bytes.Buffer
	err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	if err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}

	tags := opts.Tags
	if opts.DPI != nil {
		tags = append(append([]TagSpec{}, tags...), resolutionSpecs(opts.DPI)...)
	}
	if len(tags) == 0 {
		_, err := w.Write(buf.Bytes())
		return err
	}

	out, err := spliceTIFFTags(buf.Bytes(), tags)
	if err != nil {
		return fmt.Errorf("attach tiff tags: %w", err)
	}
	_, err = w.Write(out)
	return err
}

type tiffEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	inline [4]byte // value when it fits
	ext    []byte  // value bytes when it does not
}

var tiffTypeSizes = [13]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// spliceTIFFTags rewrites the IFD of a freshly encoded TIFF, merging
// the replacement tag entries in. The x/image/tiff encoder places the
// IFD after the pixel data, so rebuilding it from its own offset never
// disturbs strip offsets.
func spliceTIFFTags(data []byte, specs []TagSpec) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("short tiff")
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad tiff header")
	}
	ifdOffset := order.Uint32(data[4:8])
	if int(ifdOffset)+2 > len(data) {
		return nil, fmt.Errorf("bad ifd offset")
	}

	n := int(order.Uint16(data[ifdOffset : ifdOffset+2]))
	entries := make([]tiffEntry, 0, n+len(specs))
	for i := 0; i < n; i++ {
		off := int(ifdOffset) + 2 + i*12
		if off+12 > len(data) {
			return nil, fmt.Errorf("truncated ifd")
		}
		e := tiffEntry{
			tag:   order.Uint16(data[off : off+2]),
			typ:   order.Uint16(data[off+2 : off+4]),
			count: order.Uint32(data[off+4 : off+8]),
		}
		copy(e.inline[:], data[off+8:off+12])
		size := uint32(0)
		if int(e.typ) < len(tiffTypeSizes) {
			size = tiffTypeSizes[e.typ] * e.count
		}
		if size > 4 {
			valOff := order.Uint32(data[off+8 : off+12])
			if int(valOff)+int(size) > len(data) {
				return nil, fmt.Errorf("truncated ifd value")
			}
			e.ext = append([]byte{}, data[valOff:valOff+size]...)
		}
		entries = append(entries, e)
	}

	for _, s := range specs {
		e, err := specToTIFFEntry(s, order)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range entries {
			if entries[i].tag == e.tag {
				entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	out := append([]byte{}, data[:ifdOffset]...)
	ifd := make([]byte, 2, 2+len(entries)*12+4)
	order.PutUint16(ifd[0:2], uint16(len(entries)))
	valueStart := int(ifdOffset) + 2 + len(entries)*12 + 4
	var values []byte
	for _, e := range entries {
		entry := make([]byte, 12)
		order.PutUint16(entry[0:2], e.tag)
		order.PutUint16(entry[2:4], e.typ)
		order.PutUint32(entry[4:8], e.count)
		if e.ext != nil {
			order.PutUint32(entry[8:12], uint32(valueStart+len(values)))
			values = append(values, e.ext...)
		} else {
			copy(entry[8:12], e.inline[:])
		}
		ifd = append(ifd, entry...)
	}
	ifd = append(ifd, 0, 0, 0, 0) // no next IFD
	out = append(out, ifd...)
	out = append(out, values...)
	return out, nil
}

func specToTIFFEntry(s TagSpec, order binary.ByteOrder) (tiffEntry, error) {
	e := tiffEntry{tag: s.ID}
	switch v := s.Value.(type) {
	case string:
		val := append([]byte(v), 0)
		e.typ = 2 // ASCII
		e.count = uint32(len(val))
		if len(val) <= 4 {
			copy(e.inline[:], val)
		} else {
			e.ext = val
		}
	case []uint16:
		e.typ = 3 // SHORT
		e.count = uint32(len(v))
		if len(v) <= 2 {
			for i, x := range v {
				order.PutUint16(e.inline[i*2:i*2+2], x)
			}
		} else {
			e.ext = make([]byte, len(v)*2)
			for i, x := range v {
				order.PutUint16(e.ext[i*2:i*2+2], x)
			}
		}
	case []rationalValue:
		e.typ = 5 // RATIONAL
		e.count = uint32(len(v))
		e.ext = make([]byte, len(v)*8)
		for i, r := range v {
			order.PutUint32(e.ext[i*8:i*8+4], r.num)
			order.PutUint32(e.ext[i*8+4:i*8+8], r.den)
		}
	default:
		// Rationals arrive as the exif library's own type; normalize.
		if rs, ok := asRationals(s.Value); ok {
			return specToTIFFEntry(TagSpec{ID: s.ID, Value: rs}, order)
		}
		return e, fmt.Errorf("unsupported tiff tag value for 0x%04X", s.ID)
	}
	return e, nil
}

type rationalValue struct{ num, den uint32 }
