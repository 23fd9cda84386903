package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Pointer tags linking an IFD to its sub-directories.
const (
	tagExifIFD    = 0x8769
	tagGPSIFD     = 0x8825
	tagInteropIFD = 0xA005
)

const tagUserComment = 0x9286

// undefinedLimit is the largest UNDEFINED value rendered verbatim; longer
// blobs such as MakerNote are summarised by size.
const undefinedLimit = 64

var exifCharsetPrefix = []byte("ASCII\x00\x00\x00")

var imageTagNames = map[uint16]exif.FieldName{
	0x0100: "ImageWidth",
	0x0101: "ImageLength",
	0x0102: "BitsPerSample",
	0x0103: "Compression",
	0x0106: "PhotometricInterpretation",
	0x010E: "ImageDescription",
	0x010F: "Make",
	0x0110: "Model",
	0x0111: "StripOffsets",
	0x0112: "Orientation",
	0x0115: "SamplesPerPixel",
	0x0116: "RowsPerStrip",
	0x0117: "StripByteCounts",
	0x011A: "XResolution",
	0x011B: "YResolution",
	0x011C: "PlanarConfiguration",
	0x0128: "ResolutionUnit",
	0x0131: "Software",
	0x0132: "DateTime",
	0x013B: "Artist",
	0x013C: "HostComputer",
	0x013E: "WhitePoint",
	0x013F: "PrimaryChromaticities",
	0x0201: "ThumbJPEGInterchangeFormat",
	0x0202: "ThumbJPEGInterchangeFormatLength",
	0x0211: "YCbCrCoefficients",
	0x0212: "YCbCrSubSampling",
	0x0213: "YCbCrPositioning",
	0x0214: "ReferenceBlackWhite",
	0x02BC: "XMLPacket",
	0x4746: "Rating",
	0x8298: "Copyright",
	0x829A: "ExposureTime",
	0x829D: "FNumber",
	0x83BB: "IPTCNAA",
	0x8773: "InterColorProfile",
	0x8822: "ExposureProgram",
	0x8824: "SpectralSensitivity",
	0x8827: "ISOSpeedRatings",
	0x8828: "OECF",
	0x8830: "SensitivityType",
	0x9000: "ExifVersion",
	0x9003: "DateTimeOriginal",
	0x9004: "DateTimeDigitized",
	0x9010: "OffsetTime",
	0x9011: "OffsetTimeOriginal",
	0x9012: "OffsetTimeDigitized",
	0x9101: "ComponentsConfiguration",
	0x9102: "CompressedBitsPerPixel",
	0x9201: "ShutterSpeedValue",
	0x9202: "ApertureValue",
	0x9203: "BrightnessValue",
	0x9204: "ExposureBiasValue",
	0x9205: "MaxApertureValue",
	0x9206: "SubjectDistance",
	0x9207: "MeteringMode",
	0x9208: "LightSource",
	0x9209: "Flash",
	0x920A: "FocalLength",
	0x9214: "SubjectArea",
	0x927C: "MakerNote",
	0x9286: "UserComment",
	0x9290: "SubSecTime",
	0x9291: "SubSecTimeOriginal",
	0x9292: "SubSecTimeDigitized",
	0x9C9B: "XPTitle",
	0x9C9C: "XPComment",
	0x9C9D: "XPAuthor",
	0x9C9E: "XPKeywords",
	0x9C9F: "XPSubject",
	0xA000: "FlashpixVersion",
	0xA001: "ColorSpace",
	0xA002: "PixelXDimension",
	0xA003: "PixelYDimension",
	0xA004: "RelatedSoundFile",
	0xA20B: "FlashEnergy",
	0xA20E: "FocalPlaneXResolution",
	0xA20F: "FocalPlaneYResolution",
	0xA210: "FocalPlaneResolutionUnit",
	0xA214: "SubjectLocation",
	0xA215: "ExposureIndex",
	0xA217: "SensingMethod",
	0xA300: "FileSource",
	0xA301: "SceneType",
	0xA302: "CFAPattern",
	0xA401: "CustomRendered",
	0xA402: "ExposureMode",
	0xA403: "WhiteBalance",
	0xA404: "DigitalZoomRatio",
	0xA405: "FocalLengthIn35mmFilm",
	0xA406: "SceneCaptureType",
	0xA407: "GainControl",
	0xA408: "Contrast",
	0xA409: "Saturation",
	0xA40A: "Sharpness",
	0xA40B: "DeviceSettingDescription",
	0xA40C: "SubjectDistanceRange",
	0xA420: "ImageUniqueID",
	0xA430: "CameraOwnerName",
	0xA431: "BodySerialNumber",
	0xA432: "LensSpecification",
	0xA433: "LensMake",
	0xA434: "LensModel",
	0xA435: "LensSerialNumber",
}

var gpsTagNames = map[uint16]exif.FieldName{
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
	0x000E: "GPSTrackRef",
	0x000F: "GPSTrack",
	0x0010: "GPSImgDirectionRef",
	0x0011: "GPSImgDirection",
	0x0012: "GPSMapDatum",
	0x0013: "GPSDestLatitudeRef",
	0x0014: "GPSDestLatitude",
	0x0015: "GPSDestLongitudeRef",
	0x0016: "GPSDestLongitude",
	0x0017: "GPSDestBearingRef",
	0x0018: "GPSDestBearing",
	0x0019: "GPSDestDistanceRef",
	0x001A: "GPSDestDistance",
	0x001B: "GPSProcessingMethod",
	0x001C: "GPSAreaInformation",
	0x001D: "GPSDateStamp",
	0x001E: "GPSDifferential",
	0x001F: "GPSHPositioningError",
}

var interopTagNames = map[uint16]exif.FieldName{
	0x0001: "InteroperabilityIndex",
	0x0002: "InteroperabilityVersion",
	0x1000: "RelatedImageFileFormat",
	0x1001: "RelatedImageWidth",
	0x1002: "RelatedImageLength",
}

// ifdWalker flattens an IFD chain and its sub-directories into a record.
type ifdWalker struct {
	m     *core.Metadata
	raw   *bytes.Reader
	order binary.ByteOrder
	seen  map[int64]bool
}

// addEXIF decodes a TIFF-structured EXIF payload into m. IFD0 fields keep
// their tag name, IFD1 fields are prefixed "Thumbnail", and the Exif, GPS
// and Interoperability sub-directories are followed from their pointers.
func addEXIF(m *core.Metadata, payload []byte) error {
	x, err := exif.Decode(bytes.NewReader(payload))
	if x == nil || x.Tiff == nil {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	w := &ifdWalker{m: m, raw: bytes.NewReader(x.Raw), order: x.Tiff.Order, seen: map[int64]bool{}}
	for i, dir := range x.Tiff.Dirs {
		prefix := ""
		switch {
		case i == 1:
			prefix = "Thumbnail"
		case i > 1:
			prefix = fmt.Sprintf("IFD%d", i)
		}
		w.dir(dir, imageTagNames, prefix)
	}
	return nil
}

func (w *ifdWalker) dir(d *tiff.Dir, names map[uint16]exif.FieldName, prefix string) {
	for _, t := range d.Tags {
		switch t.Id {
		case tagExifIFD:
			w.follow(t, imageTagNames, prefix)
			continue
		case tagGPSIFD:
			w.follow(t, gpsTagNames, prefix)
			continue
		case tagInteropIFD:
			w.follow(t, interopTagNames, prefix)
			continue
		}
		w.m.Set(prefix+tagName(names, t.Id), tagValue(t), "EXIF")
	}
}

// follow decodes the sub-directory a pointer tag refers to. Each offset is
// visited once, so a pointer loop cannot recurse forever.
func (w *ifdWalker) follow(t *tiff.Tag, names map[uint16]exif.FieldName, prefix string) {
	off, err := t.Int64(0)
	if err != nil || off <= 0 || off >= w.raw.Size() || w.seen[off] {
		return
	}
	w.seen[off] = true
	if _, err := w.raw.Seek(off, io.SeekStart); err != nil {
		return
	}
	sub, _, err := tiff.DecodeDir(w.raw, w.order)
	if err != nil {
		return
	}
	w.dir(sub, names, prefix)
}

func tagName(names map[uint16]exif.FieldName, id uint16) string {
	if n, ok := names[id]; ok {
		return string(n)
	}
	return fmt.Sprintf("0x%04X", id)
}

func tagValue(t *tiff.Tag) string {
	switch t.Type {
	case tiff.DTAscii:
		if s, err := t.StringVal(); err == nil {
			return strings.TrimRight(s, "\x00 ")
		}
	case tiff.DTUndefined:
		if t.Id == tagUserComment && bytes.HasPrefix(t.Val, exifCharsetPrefix) {
			return strings.TrimRight(string(t.Val[len(exifCharsetPrefix):]), "\x00 ")
		}
		if t.Count > undefinedLimit {
			return fmt.Sprintf("<%d bytes>", t.Count)
		}
	}
	val := t.String()
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	return val
}

// ─── TIFF ────────────────────────────────────────────────────────────────────

// tiffFile is a TIFF image, whose IFD chain is the EXIF structure itself.
type tiffFile struct {
	data []byte
}

func parseTIFF(data []byte) (*tiffFile, error) {
	if len(data) < 8 || (string(data[:4]) != "II*\x00" && string(data[:4]) != "MM\x00*") {
		return nil, goerr.New("not a valid TIFF")
	}
	return &tiffFile{data: data}, nil
}

func (f *tiffFile) exif() []byte { return f.data }

func (f *tiffFile) sideInfo(*core.Metadata) {}

func (f *tiffFile) strip() ([]byte, error) {
	return nil, goerr.New("TIFF strip is not supported", goerr.T(core.TagUnsupported))
}
