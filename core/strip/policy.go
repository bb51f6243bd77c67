// Package strip implements the metadata-stripping policy engine and the
// atomic output writer.
package strip

import (
	"fmt"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/codec"
)

// Run strips metadata from one file per the policy. WARN lines for
// best-effort limitations are printed as they arise; the returned
// Result is the file's final outcome. A failure here never affects the
// rest of the batch.
func Run(p *core.Printer, policy core.Policy, path string) core.Result {
	img, err := codec.Open(path)
	if err != nil {
		return core.Result{Path: path, Status: core.StatusError,
			Err: fmt.Errorf("Cannot open %s: %w", path, err)}
	}
	defer img.Close()

	if img.MultiFrame() && !policy.Force {
		return core.Result{Path: path, Status: core.StatusSkip,
			Message: fmt.Sprintf("Animated/multi-frame image: %s (use --force to process first frame)", path)}
	}
	if img.Pixels == nil {
		return core.Result{Path: path, Status: core.StatusError,
			Err: fmt.Errorf("Cannot decode first frame of %s", path)}
	}

	if !img.Format.MetadataCapable() {
		// Content under a supported extension turned out to be a
		// recognized raster with no metadata write path (e.g. a GIF
		// renamed to .jpg). Save it bare, flagged best-effort.
		dest := policy.OutputPath(path)
		if err := Write(img.Pixels, dest, codec.SaveOptions{Format: img.Format}); err != nil {
			return core.Result{Path: path, Status: core.StatusError,
				Err: fmt.Errorf("Could not save %s: %w", dest, err)}
		}
		return core.Result{Path: path, Status: core.StatusWarn,
			Message: fmt.Sprintf("Unknown/less-tested format %s: saved without metadata → %s", img.Format.Name(), dest)}
	}

	pixels := img.Pixels
	if !policy.KeepOrientation {
		// Bake the declared rotation into the pixels so the image still
		// displays correctly once the orientation tag is gone.
		pixels = codec.ApplyOrientation(pixels, img.Orientation())
	}

	tags := buildReplacement(img, policy)
	opts := codec.SaveOptions{
		Format:      img.Format,
		Tags:        tags,
		Quality:     policy.Quality,
		Progressive: policy.Progressive,
	}
	if policy.KeepICC && len(img.ICC) > 0 {
		opts.ICC = img.ICC
	}
	if policy.KeepDPI && img.DPI != nil {
		opts.DPI = img.DPI
	}

	if img.Format == core.FmtPNG && len(tags) > 0 {
		// PNG has no native EXIF container in this policy; the kept
		// tags are dropped rather than silently rehomed.
		p.Line(core.StatusWarn, "PNG output carries no EXIF; requested tags not written for %s", path)
		opts.Tags = nil
	}
	if img.Format == core.FmtJPEG && policy.Progressive != nil && *policy.Progressive {
		p.Line(core.StatusWarn, "progressive encoding unavailable; writing baseline JPEG for %s", path)
	}
	if policy.KeepICC && img.Format == core.FmtTIFF && len(img.ICC) == 0 {
		p.Line(core.StatusWarn, "ICC profile passthrough not supported for TIFF: %s", path)
	}

	dest := policy.OutputPath(path)
	if err := Write(pixels, dest, opts); err != nil {
		return core.Result{Path: path, Status: core.StatusError,
			Err: fmt.Errorf("Could not save %s: %w", dest, err)}
	}

	if policy.Copyright != "" {
		p.Line(core.StatusOK, "Added copyright: %s", policy.Copyright)
	}
	msg := fmt.Sprintf("Cleaned %s → %s", path, dest)
	if policy.InPlace {
		msg = fmt.Sprintf("Stripped metadata IN PLACE → %s", dest)
	}
	return core.Result{Path: path, Status: core.StatusOK, Message: msg}
}

// buildReplacement builds the minimal replacement tag mapping: only
// tags the policy explicitly keeps, plus an unconditional Copyright
// override when supplied. A source without metadata contributes
// nothing; tags are never synthesized.
func buildReplacement(img *codec.Image, policy core.Policy) []codec.TagSpec {
	var tags []codec.TagSpec
	if policy.KeepDate {
		if v, ok := img.StringTag(goexif.DateTimeOriginal); ok {
			tags = append(tags, codec.TagSpec{
				ID: core.TagDateTimeOriginal, Name: "DateTimeOriginal",
				IfdPath: "IFD/Exif", Value: v,
			})
		}
	}
	if policy.KeepOrientation {
		if v, ok := img.IntTag(goexif.Orientation); ok {
			tags = append(tags, codec.TagSpec{
				ID: core.TagOrientation, Name: "Orientation",
				IfdPath: "IFD", Value: []uint16{uint16(v)},
			})
		}
	}
	if policy.Copyright != "" {
		tags = append(tags, codec.TagSpec{
			ID: core.TagCopyright, Name: "Copyright",
			IfdPath: "IFD", Value: policy.Copyright,
		})
	}
	return tags
}
