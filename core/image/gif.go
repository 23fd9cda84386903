package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// GIF block introducers and extension labels.
const (
	gifExtension  = 0x21
	gifImage      = 0x2C
	gifTrailer    = 0x3B
	gifGraphicCtl = 0xF9
	gifComment    = 0xFE
	gifAppExt     = 0xFF
)

// gifLoopApps are the application extensions that carry the animation loop
// count; every other application block is metadata.
var gifLoopApps = map[string]bool{
	"NETSCAPE2.0": true,
	"ANIMEXTS1.0": true,
}

// gifBlock is one top-level block, raw bytes included.
type gifBlock struct {
	kind  byte // introducer
	label byte // extension label
	raw   []byte
	body  []byte // concatenated sub-block payload
}

type gifFile struct {
	header []byte // signature, screen descriptor and global colour table
	blocks []gifBlock
}

func parseGIF(data []byte) (*gifFile, error) {
	if len(data) < 13 || (string(data[:6]) != "GIF87a" && string(data[:6]) != "GIF89a") {
		return nil, goerr.New("not a valid GIF")
	}
	i := 13
	if data[10]&0x80 != 0 {
		i += 3 << (int(data[10]&0x07) + 1)
	}
	if i > len(data) {
		return nil, goerr.New("GIF colour table truncated")
	}
	f := &gifFile{header: data[:i]}

	for {
		if i >= len(data) {
			return nil, goerr.New("GIF has no trailer")
		}
		start := i
		switch data[i] {
		case gifTrailer:
			f.blocks = append(f.blocks, gifBlock{kind: gifTrailer, raw: data[i : i+1]})
			return f, nil

		case gifExtension:
			if i+2 > len(data) {
				return nil, goerr.New("GIF extension truncated")
			}
			label := data[i+1]
			end, body, err := gifSubBlocks(data, i+2)
			if err != nil {
				return nil, err
			}
			f.blocks = append(f.blocks, gifBlock{kind: gifExtension, label: label, raw: data[start:end], body: body})
			i = end

		case gifImage:
			i += 10
			if i > len(data) {
				return nil, goerr.New("GIF image descriptor truncated")
			}
			if packed := data[start+9]; packed&0x80 != 0 {
				i += 3 << (int(packed&0x07) + 1)
			}
			// LZW minimum code size precedes the data sub-blocks.
			i++
			if i > len(data) {
				return nil, goerr.New("GIF image truncated")
			}
			end, _, err := gifSubBlocks(data, i)
			if err != nil {
				return nil, err
			}
			f.blocks = append(f.blocks, gifBlock{kind: gifImage, raw: data[start:end]})
			i = end

		default:
			return nil, goerr.New("unknown GIF block", goerr.V("offset", i), goerr.V("introducer", data[i]))
		}
	}
}

// gifSubBlocks walks a sub-block chain starting at i and returns the offset
// after its terminator plus the joined payload.
func gifSubBlocks(data []byte, i int) (int, []byte, error) {
	var body []byte
	for {
		if i >= len(data) {
			return 0, nil, goerr.New("GIF sub-block chain truncated")
		}
		n := int(data[i])
		i++
		if n == 0 {
			return i, body, nil
		}
		if i+n > len(data) {
			return 0, nil, goerr.New("GIF sub-block truncated")
		}
		body = append(body, data[i:i+n]...)
		i += n
	}
}

// appID returns the identifier and auth code of an application extension,
// which fill its first 11-byte sub-block.
func (b gifBlock) appID() string {
	if b.kind != gifExtension || b.label != gifAppExt || len(b.raw) < 14 || b.raw[2] != 11 {
		return ""
	}
	return string(b.raw[3:14])
}

func (f *gifFile) exif() []byte { return nil }

func (f *gifFile) sideInfo(m *core.Metadata) {
	m.Set("Version", string(f.header[:6]), "GIF Header")

	var (
		comments int
		frames   int
		delay    int
	)
	for _, b := range f.blocks {
		switch {
		case b.kind == gifImage:
			frames++
		case b.kind == gifExtension && b.label == gifComment:
			comments++
			key := "Comment"
			if comments > 1 {
				key = fmt.Sprintf("Comment %d", comments)
			}
			m.Set(key, string(b.body), "GIF Comment")
		case b.kind == gifExtension && b.label == gifGraphicCtl && len(b.body) >= 3:
			delay += int(binary.LittleEndian.Uint16(b.body[1:3]))
		case b.kind == gifExtension && b.label == gifAppExt:
			id := b.appID()
			switch {
			case gifLoopApps[id] && len(b.body) >= 14 && b.body[11] == 1:
				loops := binary.LittleEndian.Uint16(b.body[12:14])
				val := fmt.Sprint(loops)
				if loops == 0 {
					val = "infinite"
				}
				m.Set("LoopCount", val, "GIF Animation")
			case id == "XMP DataXMP":
				m.Set("XMP", "present", "XMP")
			case id != "":
				m.Set("Application", id, "GIF Application")
			}
		}
	}
	if frames > 1 {
		m.Set("Frames", fmt.Sprint(frames), "GIF Animation")
		m.Set("Duration", fmt.Sprintf("%.2fs", float64(delay)/100), "GIF Animation")
	}
}

func (f *gifFile) strip() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(f.header)
	for _, b := range f.blocks {
		if b.kind == gifExtension {
			if b.label == gifComment {
				continue
			}
			if b.label == gifAppExt && !gifLoopApps[b.appID()] {
				continue
			}
		}
		buf.Write(b.raw)
	}
	return buf.Bytes(), nil
}
