package codec

import (
	"math"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// TagSpec is one entry of the replacement tag mapping: a standard EXIF
// tag addressed by name and destination IFD.
type TagSpec struct {
	ID      uint16
	Name    string
	IfdPath string // "IFD" or "IFD/Exif"
	Value   interface{}
}

// BuildIfd converts a replacement tag mapping into an IFD builder. An
// empty mapping yields nil, which callers treat as "write no EXIF".
func BuildIfd(specs []TagSpec) (*exif.IfdBuilder, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	for _, s := range specs {
		ib := rootIb
		if s.IfdPath != "" && s.IfdPath != "IFD" {
			child, err := exif.GetOrCreateIbFromRootIb(rootIb, s.IfdPath)
			if err != nil {
				return nil, err
			}
			ib = child
		}
		if err := ib.AddStandardWithName(s.Name, s.Value); err != nil {
			return nil, err
		}
	}
	return rootIb, nil
}

// EncodeExifBytes serializes a replacement mapping to a raw TIFF-ordered
// EXIF blob, as embedded in WebP EXIF chunks.
func EncodeExifBytes(specs []TagSpec) ([]byte, error) {
	rootIb, err := BuildIfd(specs)
	if err != nil || rootIb == nil {
		return nil, err
	}
	ibe := exif.NewIfdByteEncoder()
	return ibe.EncodeToExif(rootIb)
}

// asRationals converts the exif library's rational slice into the
// codec-local form used by the TIFF entry writer.
func asRationals(v interface{}) ([]rationalValue, bool) {
	rs, ok := v.([]exifcommon.Rational)
	if !ok {
		return nil, false
	}
	out := make([]rationalValue, len(rs))
	for i, r := range rs {
		out[i] = rationalValue{num: r.Numerator, den: r.Denominator}
	}
	return out, true
}

// resolutionSpecs renders a DPI pair as EXIF resolution tags (unit inch).
func resolutionSpecs(dpi *DPI) []TagSpec {
	return []TagSpec{
		{ID: 0x011A, Name: "XResolution", IfdPath: "IFD",
			Value: []exifcommon.Rational{{Numerator: uint32(math.Round(dpi.X)), Denominator: 1}}},
		{ID: 0x011B, Name: "YResolution", IfdPath: "IFD",
			Value: []exifcommon.Rational{{Numerator: uint32(math.Round(dpi.Y)), Denominator: 1}}},
		{ID: 0x0128, Name: "ResolutionUnit", IfdPath: "IFD",
			Value: []uint16{2}},
	}
}
