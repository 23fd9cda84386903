package video

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ─── Matroska / WebM ─────────────────────────────────────────────────────────

// Element IDs, marker bits included.
const (
	ebmlIDHeader       = 0x1A45DFA3
	ebmlIDSegment      = 0x18538067
	ebmlIDCluster      = 0x1F43B675
	ebmlIDVoid         = 0xEC
	ebmlIDInfo         = 0x1549A966
	ebmlIDTitle        = 0x7BA9
	ebmlIDMuxingApp    = 0x4D80
	ebmlIDWritingApp   = 0x5741
	ebmlIDDateUTC      = 0x4461
	ebmlIDTags         = 0x1254C367
	ebmlIDTag          = 0x7373
	ebmlIDSimpleTag    = 0x67C8
	ebmlIDTagName      = 0x45A3
	ebmlIDTagString    = 0x4487
	ebmlIDAttachments  = 0x1941A469
	ebmlIDAttachedFile = 0x61A7
	ebmlIDFileName     = 0x466E
	ebmlIDFileMimeType = 0x4660
	ebmlIDFileData     = 0x465C
)

// matroskaEpoch is the origin of DateUTC.
var matroskaEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// element is one EBML element located in the file.
type element struct {
	ID      uint32
	Offset  int64 // start of the ID
	Data    int64 // start of the payload
	Size    int64
	Unknown bool // size field was the reserved "unknown" value
}

func (e element) end() int64 { return e.Data + e.Size }

type ebmlReader struct {
	r    io.ReaderAt
	size int64
}

// header reads the ID and size of the element at off.
func (er ebmlReader) header(off int64) (element, error) {
	var buf [12]byte
	n, err := er.r.ReadAt(buf[:], off)
	if n == 0 && err != nil {
		return element{}, goerr.Wrap(err, "failed to read element header", goerr.V("offset", off))
	}
	b := buf[:n]

	idLen := vintLength(b[0])
	if idLen == 0 || idLen > 4 || idLen >= len(b) {
		return element{}, goerr.New("invalid element id", goerr.V("offset", off))
	}
	var id uint32
	for _, c := range b[:idLen] {
		id = id<<8 | uint32(c)
	}

	sizeLen := vintLength(b[idLen])
	if sizeLen == 0 || idLen+sizeLen > len(b) {
		return element{}, goerr.New("invalid element size", goerr.V("offset", off))
	}
	raw := b[idLen : idLen+sizeLen]
	size := uint64(raw[0]) & (0xFF >> sizeLen)
	allOnes := size == 0xFF>>sizeLen
	for _, c := range raw[1:] {
		size = size<<8 | uint64(c)
		allOnes = allOnes && c == 0xFF
	}

	e := element{ID: id, Offset: off, Data: off + int64(idLen+sizeLen), Size: int64(size), Unknown: allOnes}
	if e.Unknown {
		e.Size = er.size - e.Data
	}
	if e.Size < 0 || e.end() > er.size {
		return element{}, goerr.New("element exceeds file", goerr.V("id", fmt.Sprintf("0x%X", id)), goerr.V("offset", off))
	}
	return e, nil
}

// vintLength returns the length of a variable-size integer from its first
// byte, or 0 for the invalid 0x00 prefix.
func vintLength(b byte) int {
	for i := 0; i < 8; i++ {
		if b&(0x80>>i) != 0 {
			return i + 1
		}
	}
	return 0
}

// children lists the elements of [start, end). An unknown-size element ends
// the list, since nothing after it can be located.
func (er ebmlReader) children(start, end int64) ([]element, error) {
	var out []element
	for off := start; off < end; {
		e, err := er.header(off)
		if err != nil {
			return nil, err
		}
		if e.end() > end {
			return nil, goerr.New("element exceeds its parent", goerr.V("offset", off))
		}
		out = append(out, e)
		if e.Unknown {
			break
		}
		off = e.end()
	}
	return out, nil
}

func (er ebmlReader) payload(e element) ([]byte, error) {
	buf := make([]byte, e.Size)
	if _, err := er.r.ReadAt(buf, e.Data); err != nil {
		return nil, goerr.Wrap(err, "failed to read element", goerr.V("offset", e.Offset))
	}
	return buf, nil
}

func (er ebmlReader) text(e element) (string, error) {
	b, err := er.payload(e)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

func parseEBML(r io.ReaderAt, size int64) (*Tree, error) {
	er := ebmlReader{r: r, size: size}
	top, err := er.children(0, size)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 || top[0].ID != ebmlIDHeader {
		return nil, goerr.New("EBML header not found")
	}

	tree := &Tree{}
	for _, seg := range top[1:] {
		if seg.ID != ebmlIDSegment {
			continue
		}
		level1, err := er.children(seg.Data, seg.end())
		if err != nil {
			return nil, err
		}
		for _, e := range level1 {
			var err error
			switch e.ID {
			case ebmlIDInfo:
				err = er.info(tree, e)
			case ebmlIDTags:
				err = er.tags(tree, e)
			case ebmlIDAttachments:
				err = er.attachments(tree, e)
			}
			if err != nil {
				return nil, err
			}
		}
		return tree, nil
	}
	return nil, goerr.New("segment not found")
}

func (er ebmlReader) info(tree *Tree, info element) error {
	elems, err := er.children(info.Data, info.end())
	if err != nil {
		return err
	}
	for _, e := range elems {
		var name, value string
		switch e.ID {
		case ebmlIDTitle:
			name = "Title"
		case ebmlIDMuxingApp:
			name = "MuxingApp"
		case ebmlIDWritingApp:
			name = "WritingApp"
		case ebmlIDDateUTC:
			name = "DateUTC"
		default:
			continue
		}
		if e.ID == ebmlIDDateUTC {
			b, err := er.payload(e)
			if err != nil {
				return err
			}
			if len(b) != 8 {
				continue
			}
			ns := int64(binary.BigEndian.Uint64(b))
			value = matroskaEpoch.Add(time.Duration(ns)).Format("2006-01-02 15:04:05")
		} else if value, err = er.text(e); err != nil {
			return err
		}
		tree.add(Field{Name: name, Value: value, clear: void(e)})
	}
	return nil
}

func (er ebmlReader) tags(tree *Tree, tags element) error {
	tagList, err := er.children(tags.Data, tags.end())
	if err != nil {
		return err
	}
	field := Field{Name: "Tags", clear: void(tags)}
	for _, tag := range tagList {
		if tag.ID != ebmlIDTag {
			continue
		}
		simple, err := er.simpleTags(tag, 0)
		if err != nil {
			return err
		}
		field.Children = append(field.Children, simple...)
	}
	tree.add(field)
	return nil
}

// simpleTags decodes the SimpleTag elements of parent, including nested
// ones.
func (er ebmlReader) simpleTags(parent element, depth int) ([]Field, error) {
	if depth > 8 {
		return nil, goerr.New("tag nesting too deep")
	}
	elems, err := er.children(parent.Data, parent.end())
	if err != nil {
		return nil, err
	}
	var out []Field
	for _, st := range elems {
		if st.ID != ebmlIDSimpleTag {
			continue
		}
		parts, err := er.children(st.Data, st.end())
		if err != nil {
			return nil, err
		}
		var f Field
		for _, p := range parts {
			switch p.ID {
			case ebmlIDTagName:
				if f.Name, err = er.text(p); err != nil {
					return nil, err
				}
			case ebmlIDTagString:
				if f.Value, err = er.text(p); err != nil {
					return nil, err
				}
			}
		}
		if f.Children, err = er.simpleTags(st, depth+1); err != nil {
			return nil, err
		}
		if f.Name != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

func (er ebmlReader) attachments(tree *Tree, att element) error {
	files, err := er.children(att.Data, att.end())
	if err != nil {
		return err
	}
	field := Field{Name: "Attachments", clear: void(att)}
	for _, file := range files {
		if file.ID != ebmlIDAttachedFile {
			continue
		}
		parts, err := er.children(file.Data, file.end())
		if err != nil {
			return err
		}
		var name, mime string
		var size int64
		for _, p := range parts {
			switch p.ID {
			case ebmlIDFileName:
				name, err = er.text(p)
			case ebmlIDFileMimeType:
				mime, err = er.text(p)
			case ebmlIDFileData:
				size = p.Size
			}
			if err != nil {
				return err
			}
		}
		if name == "" {
			name = fmt.Sprintf("File%d", len(field.Children)+1)
		}
		field.Children = append(field.Children, Field{Name: name, Value: fmt.Sprintf("<%s, %d bytes>", mime, size)})
	}
	tree.add(field)
	return nil
}

// void overwrites e with a Void element of the same total length, so no
// other offset moves.
func void(e element) func(*os.File) error {
	return func(f *os.File) error {
		total := e.end() - e.Offset
		var hdr []byte
		if total-2 <= 126 {
			hdr = []byte{ebmlIDVoid, 0x80 | byte(total-2)}
		} else {
			hdr = make([]byte, 9)
			hdr[0] = ebmlIDVoid
			binary.BigEndian.PutUint64(hdr[1:], uint64(total-9))
			hdr[1] = 0x01
		}
		if _, err := f.WriteAt(hdr, e.Offset); err != nil {
			return goerr.Wrap(err, "failed to void element", goerr.V("offset", e.Offset))
		}
		return zeroRange(f, e.Offset+int64(len(hdr)), total-int64(len(hdr)))
	}
}

func zeroRange(f *os.File, off, n int64) error {
	buf := make([]byte, min(n, 32<<10))
	for n > 0 {
		k := min(n, int64(len(buf)))
		if _, err := f.WriteAt(buf[:k], off); err != nil {
			return goerr.Wrap(err, "failed to zero region", goerr.V("offset", off))
		}
		off += k
		n -= k
	}
	return nil
}
