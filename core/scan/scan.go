// Package scan reports image metadata without modifying anything.
package scan

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/codec"
)

// Options are the scan-only modifiers.
type Options struct {
	// Positives suppresses per-tag output and emits just the file path
	// when metadata was found, so scan output pipes into the strip stage.
	Positives bool
	// ShowGPS expands the GPS sub-IFD when present.
	ShowGPS bool
}

// Run scans one file and reports its metadata. It returns true when the
// file carries a non-empty tag mapping.
func Run(p *core.Printer, reg *core.TagRegistry, path string, opts Options) bool {
	verbose := !opts.Positives

	img, err := codec.Open(path)
	if err != nil {
		if verbose {
			p.Line(core.StatusError, "Cannot open %s: %v", path, err)
		}
		return false
	}
	defer img.Close()

	if !img.HasMetadata() {
		if verbose {
			p.Line(core.StatusInfo, "No EXIF metadata found in %s", path)
		}
		return false
	}

	tags, _, err := exif.GetFlatExifData(img.RawExif, nil)
	if err != nil || len(tags) == 0 {
		if verbose {
			p.Line(core.StatusInfo, "No EXIF metadata found in %s", path)
		}
		return false
	}

	if opts.Positives {
		p.Raw(path)
		return true
	}

	p.Raw("=== Metadata for " + path + " ===")
	var gps []exif.ExifTag
	for _, t := range tags {
		if strings.Contains(t.IfdPath, "GPSInfo") {
			gps = append(gps, t)
			continue
		}
		p.Raw(exifTagName(reg, t) + ": " + t.FormattedFirst)
	}

	if opts.ShowGPS && len(gps) > 0 {
		p.Raw("---- GPS ----")
		for _, t := range gps {
			p.Raw(gpsTagName(reg, t) + ": " + t.FormattedFirst)
		}
	}
	return true
}

func exifTagName(reg *core.TagRegistry, t exif.ExifTag) string {
	if t.TagName != "" {
		return t.TagName
	}
	return reg.ExifName(t.TagId)
}

func gpsTagName(reg *core.TagRegistry, t exif.ExifTag) string {
	if name, ok := reg.LookupGPS(t.TagId); ok {
		return name
	}
	if t.TagName != "" {
		return t.TagName
	}
	return reg.GPSName(t.TagId)
}
