package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// JPEG markers.
const (
	mSOI   = 0xD8
	mEOI   = 0xD9
	mSOS   = 0xDA
	mAPP0  = 0xE0
	mAPP1  = 0xE1
	mAPP2  = 0xE2
	mAPP13 = 0xED
	mAPP14 = 0xEE
	mAPP15 = 0xEF
	mCOM   = 0xFE
)

var (
	exifHeader     = []byte("Exif\x00\x00")
	xmpHeader      = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccHeader      = []byte("ICC_PROFILE\x00")
	photoshopHdr   = []byte("Photoshop 3.0\x00")
	jfifHeader     = []byte("JFIF\x00")
	jfxxHeader     = []byte("JFXX\x00")
	adobeHeader    = []byte("Adobe")
	jfifUnitLabels = map[byte]string{0: "aspect ratio", 1: "dpi", 2: "dpcm"}
)

type jpegSegment struct {
	marker  byte
	data    []byte // payload without the length field
	entropy []byte // entropy-coded data following an SOS header
}

// jpegFile holds every marker segment in file order, scans included, and
// the raw bytes from EOI onwards. Segments between the scans of a
// progressive image are kept like the ones before the first scan.
type jpegFile struct {
	segs []jpegSegment
	tail []byte
}

func parseJPEG(data []byte) (*jpegFile, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != mSOI {
		return nil, goerr.New("missing JPEG start of image")
	}
	f := &jpegFile{}
	scanned := false
	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return nil, goerr.New("expected JPEG marker", goerr.V("offset", i))
		}
		// Any number of 0xFF fill bytes may precede a marker.
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++
		if marker == mEOI {
			if !scanned {
				break
			}
			f.tail = append([]byte{0xFF, mEOI}, data[i:]...)
			return f, nil
		}
		if marker >= 0xD0 && marker <= 0xD7 || marker == 0x01 {
			continue
		}
		if i+2 > len(data) {
			return nil, goerr.New("truncated JPEG segment", goerr.V("marker", marker))
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		if segLen < 0 || i+2+segLen > len(data) {
			return nil, goerr.New("JPEG segment exceeds file", goerr.V("marker", marker))
		}
		seg := jpegSegment{marker: marker, data: data[i+2 : i+2+segLen]}
		i += 2 + segLen
		if marker == mSOS {
			scanned = true
			end := entropyEnd(data, i)
			seg.entropy = data[i:end]
			i = end
		}
		f.segs = append(f.segs, seg)
	}
	if !scanned {
		return nil, goerr.New("JPEG has no image data")
	}
	return f, nil
}

// entropyEnd returns the offset of the first marker after the
// entropy-coded data starting at off. Stuffed zero bytes and restart
// markers belong to the data.
func entropyEnd(data []byte, off int) int {
	for j := off; j+1 < len(data); j++ {
		if data[j] != 0xFF {
			continue
		}
		next := data[j+1]
		if next == 0x00 || next >= 0xD0 && next <= 0xD7 {
			j++
			continue
		}
		return j
	}
	return len(data)
}

func (f *jpegFile) exif() []byte {
	for _, s := range f.segs {
		if s.marker == mAPP1 && bytes.HasPrefix(s.data, exifHeader) {
			return s.data[len(exifHeader):]
		}
	}
	return nil
}

func (f *jpegFile) sideInfo(m *core.Metadata) {
	comments := 0
	for _, s := range f.segs {
		switch {
		case s.marker == mAPP0 && bytes.HasPrefix(s.data, jfifHeader) && len(s.data) >= 12:
			d := s.data[len(jfifHeader):]
			m.Set("JFIFVersion", fmt.Sprintf("%d.%02d", d[0], d[1]), "JFIF")
			unit := jfifUnitLabels[d[2]]
			if unit == "" {
				unit = fmt.Sprintf("unit %d", d[2])
			}
			m.Set("ResolutionUnit", unit, "JFIF")
			m.Set("XResolution", fmt.Sprint(binary.BigEndian.Uint16(d[3:5])), "JFIF")
			m.Set("YResolution", fmt.Sprint(binary.BigEndian.Uint16(d[5:7])), "JFIF")
		case s.marker == mCOM:
			comments++
			key := "Comment"
			if comments > 1 {
				key = fmt.Sprintf("Comment %d", comments)
			}
			m.Set(key, string(bytes.TrimRight(s.data, "\x00")), "Comment")
		case s.marker == mAPP1 && bytes.HasPrefix(s.data, xmpHeader):
			parseXMPInto(s.data[len(xmpHeader):], m)
		case s.marker == mAPP2 && bytes.HasPrefix(s.data, iccHeader):
			appendSize(m, "ICCProfile", len(s.data)-len(iccHeader)-2, "ICC")
		case s.marker == mAPP13 && bytes.HasPrefix(s.data, photoshopHdr):
			parseIPTCInto(s.data[len(photoshopHdr):], m)
		case s.marker == mAPP14 && bytes.HasPrefix(s.data, adobeHeader) && len(s.data) >= 12:
			m.Set("AdobeVersion", fmt.Sprint(binary.BigEndian.Uint16(s.data[5:7])), "Adobe")
			m.Set("AdobeTransform", fmt.Sprint(s.data[11]), "Adobe")
		}
	}
}

// appendSize records a binary payload by size; an ICC profile split over
// several segments accumulates.
func appendSize(m *core.Metadata, key string, n int, category string) {
	var total int
	if prev, ok := m.Get(key); ok {
		fmt.Sscanf(prev, "<%d bytes>", &total)
	}
	m.Set(key, fmt.Sprintf("<%d bytes>", total+n), category)
}

// jpegDropped reports whether a segment carries metadata. APP0 JFIF and
// APP14 Adobe are kept: decoders need them to interpret the pixels.
func jpegDropped(s jpegSegment) bool {
	switch {
	case s.marker == mAPP0:
		return bytes.HasPrefix(s.data, jfxxHeader)
	case s.marker >= mAPP1 && s.marker <= mAPP13, s.marker == mAPP15, s.marker == mCOM:
		return true
	}
	return false
}

func (f *jpegFile) strip() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, mSOI})
	for _, s := range f.segs {
		if jpegDropped(s) {
			continue
		}
		buf.Write([]byte{0xFF, s.marker})
		buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(s.data)+2)))
		buf.Write(s.data)
		buf.Write(s.entropy)
	}
	buf.Write(f.tail)
	return buf.Bytes(), nil
}
