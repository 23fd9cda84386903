package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// pngMetaChunks are removed by strip. Colour chunks (iCCP, sRGB, gAMA,
// cHRM) stay because they change how pixels render.
var pngMetaChunks = map[string]bool{
	"tEXt": true,
	"iTXt": true,
	"zTXt": true,
	"eXIf": true,
	"tIME": true,
	"pHYs": true,
}

var srgbIntents = []string{"Perceptual", "Relative Colorimetric", "Saturation", "Absolute Colorimetric"}

// maxTextChunk bounds the inflated size of a compressed text chunk.
const maxTextChunk = 8 << 20

type pngChunk struct {
	typ  string
	data []byte
}

type pngFile struct {
	chunks []pngChunk
}

func parsePNG(data []byte) (*pngFile, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, goerr.New("not a valid PNG")
	}
	f := &pngFile{}
	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		if length < 0 || i+12+length > len(data) {
			return nil, goerr.New("PNG chunk exceeds file", goerr.V("chunk", typ))
		}
		f.chunks = append(f.chunks, pngChunk{typ: typ, data: data[i+8 : i+8+length]})
		i += 12 + length
		if typ == "IEND" {
			return f, nil
		}
	}
	return nil, goerr.New("PNG has no IEND chunk")
}

func (f *pngFile) exif() []byte {
	for _, c := range f.chunks {
		if c.typ == "eXIf" {
			return bytes.TrimPrefix(c.data, exifHeader)
		}
	}
	return nil
}

func (f *pngFile) sideInfo(m *core.Metadata) {
	for _, c := range f.chunks {
		switch c.typ {
		case "tEXt":
			key, val, ok := bytes.Cut(c.data, []byte{0})
			if ok && len(key) > 0 {
				appendField(m, latin1(key), latin1(val), "PNG tEXt")
			}
		case "zTXt":
			key, rest, ok := bytes.Cut(c.data, []byte{0})
			if !ok || len(key) == 0 || len(rest) < 1 {
				continue
			}
			if val, err := inflate(rest[1:]); err == nil {
				appendField(m, latin1(key), latin1(val), "PNG zTXt")
			}
		case "iTXt":
			if key, val, ok := parseITXt(c.data); ok {
				appendField(m, key, val, "PNG iTXt")
			}
		case "tIME":
			if len(c.data) == 7 {
				year := binary.BigEndian.Uint16(c.data[0:2])
				m.Set("LastModified", fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
					year, c.data[2], c.data[3], c.data[4], c.data[5], c.data[6]), "PNG tIME")
			}
		case "pHYs":
			if len(c.data) == 9 {
				x := binary.BigEndian.Uint32(c.data[0:4])
				y := binary.BigEndian.Uint32(c.data[4:8])
				if c.data[8] == 1 {
					m.Set("DPI", fmt.Sprintf("%.0f x %.0f", float64(x)*0.0254, float64(y)*0.0254), "PNG pHYs")
				} else {
					m.Set("PixelAspect", fmt.Sprintf("%d:%d", x, y), "PNG pHYs")
				}
			}
		case "gAMA":
			if len(c.data) == 4 {
				g := float64(binary.BigEndian.Uint32(c.data)) / 100000
				m.Set("Gamma", fmt.Sprintf("%.5g", g), "PNG gAMA")
			}
		case "sRGB":
			if len(c.data) == 1 && int(c.data[0]) < len(srgbIntents) {
				m.Set("SRGBRenderingIntent", srgbIntents[c.data[0]], "PNG sRGB")
			}
		case "iCCP":
			if name, _, ok := bytes.Cut(c.data, []byte{0}); ok {
				m.Set("ICCProfileName", latin1(name), "PNG iCCP")
			}
		}
	}
}

// parseITXt splits an iTXt chunk:
// keyword\0 flag method language\0 translated\0 text
func parseITXt(data []byte) (string, string, bool) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(key) == 0 || len(rest) < 2 {
		return "", "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
		return "", "", false
	}
	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
		return "", "", false
	}
	text := rest
	if compressed {
		var err error
		if text, err = inflate(rest); err != nil {
			return "", "", false
		}
	}
	return latin1(key), string(text), true
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxTextChunk))
}

// latin1 decodes PNG keywords and tEXt values, which are ISO 8859-1.
func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func (f *pngFile) strip() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	for _, c := range f.chunks {
		if pngMetaChunks[c.typ] {
			continue
		}
		writePNGChunk(&buf, c.typ, c.data)
	}
	return buf.Bytes(), nil
}

func writePNGChunk(w *bytes.Buffer, typ string, data []byte) {
	w.Write(binary.BigEndian.AppendUint32(nil, uint32(len(data))))
	w.WriteString(typ)
	w.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	w.Write(binary.BigEndian.AppendUint32(nil, crc.Sum32()))
}
