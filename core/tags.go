package core

import "fmt"

// Well-known EXIF tag IDs used by the strip policy.
const (
	TagImageDescription  uint16 = 0x010E
	TagMake              uint16 = 0x010F
	TagModel             uint16 = 0x0110
	TagOrientation       uint16 = 0x0112
	TagXResolution       uint16 = 0x011A
	TagYResolution       uint16 = 0x011B
	TagResolutionUnit    uint16 = 0x0128
	TagSoftware          uint16 = 0x0131
	TagDateTime          uint16 = 0x0132
	TagArtist            uint16 = 0x013B
	TagCopyright         uint16 = 0x8298
	TagGPSInfo           uint16 = 0x8825
	TagDateTimeOriginal  uint16 = 0x9003
	TagDateTimeDigitized uint16 = 0x9004
	TagUserComment       uint16 = 0x9286
)

// TagRegistry is an immutable tag-id to name lookup, built once at
// startup and passed to the scan component rather than referenced as
// ambient state.
type TagRegistry struct {
	exif map[uint16]string
	gps  map[uint16]string
}

// Registry returns the process-wide tag registry.
func Registry() *TagRegistry { return stdRegistry }

// ExifName resolves a tag id from IFD0/Exif IFDs, falling back to a
// synthetic Unknown(<id>) name.
func (r *TagRegistry) ExifName(id uint16) string {
	if name, ok := r.exif[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", id)
}

// LookupExif reports whether the registry knows a main-IFD tag id.
func (r *TagRegistry) LookupExif(id uint16) (string, bool) {
	name, ok := r.exif[id]
	return name, ok
}

// LookupGPS reports whether the registry knows a GPS sub-IFD tag id.
func (r *TagRegistry) LookupGPS(id uint16) (string, bool) {
	name, ok := r.gps[id]
	return name, ok
}

// GPSName resolves a GPS sub-IFD tag id, falling back to GPS_<id>.
func (r *TagRegistry) GPSName(id uint16) string {
	if name, ok := r.gps[id]; ok {
		return name
	}
	return fmt.Sprintf("GPS_%d", id)
}

var stdRegistry = &TagRegistry{
	exif: map[uint16]string{
		TagImageDescription:  "ImageDescription",
		TagMake:              "Make",
		TagModel:             "Model",
		TagOrientation:       "Orientation",
		TagXResolution:       "XResolution",
		TagYResolution:       "YResolution",
		TagResolutionUnit:    "ResolutionUnit",
		TagSoftware:          "Software",
		TagDateTime:          "DateTime",
		TagArtist:            "Artist",
		TagCopyright:         "Copyright",
		TagGPSInfo:           "GPSInfo",
		TagDateTimeOriginal:  "DateTimeOriginal",
		TagDateTimeDigitized: "DateTimeDigitized",
		TagUserComment:       "UserComment",
		0x829A:               "ExposureTime",
		0x829D:               "FNumber",
		0x8827:               "ISOSpeedRatings",
		0x920A:               "FocalLength",
		0xA002:               "PixelXDimension",
		0xA003:               "PixelYDimension",
		0xA430:               "CameraOwnerName",
		0xA431:               "BodySerialNumber",
		0xA434:               "LensModel",
	},
	gps: map[uint16]string{
		0x0000: "GPSVersionID",
		0x0001: "GPSLatitudeRef",
		0x0002: "GPSLatitude",
		0x0003: "GPSLongitudeRef",
		0x0004: "GPSLongitude",
		0x0005: "GPSAltitudeRef",
		0x0006: "GPSAltitude",
		0x0007: "GPSTimeStamp",
		0x0008: "GPSSatellites",
		0x0009: "GPSStatus",
		0x000A: "GPSMeasureMode",
		0x000B: "GPSDOP",
		0x000C: "GPSSpeedRef",
		0x000D: "GPSSpeed",
		0x0010: "GPSImgDirectionRef",
		0x0011: "GPSImgDirection",
		0x0012: "GPSMapDatum",
		0x001D: "GPSDateStamp",
		0x001F: "GPSHPositioningError",
	},
}
