package codec

import (
	"image"

	"github.com/disintegration/imaging"
)

// ApplyOrientation bakes an EXIF orientation value (1-8) into the pixel
// buffer so the visual rotation survives once the tag is dropped.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	if img == nil {
		return nil
	}
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
