// Package riff walks and rebuilds RIFF containers (WebP, WAVE, AVI).
package riff

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/text/encoding/charmap"
)

// Chunk is one chunk of a RIFF container. Data aliases the parsed buffer.
type Chunk struct {
	ID     string
	Offset int    // offset of the chunk header in the file
	Data   []byte // payload without padding
	List   string // list type for LIST chunks
}

// File is a parsed RIFF container.
type File struct {
	Form   string // "WEBP", "WAVE", "AVI "
	Chunks []Chunk
}

// Parse reads the top-level chunks of a RIFF container. A size field that
// disagrees with the file length is tolerated; a chunk running past the end
// of the data is not.
func Parse(data []byte) (*File, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" {
		return nil, goerr.New("not a RIFF container")
	}
	end := 8 + int(binary.LittleEndian.Uint32(data[4:8]))
	if end > len(data) || end < 12 {
		end = len(data)
	}
	chunks, err := Walk(data[:end], 12)
	if err != nil {
		return nil, err
	}
	return &File{Form: string(data[8:12]), Chunks: chunks}, nil
}

// Walk reads the chunk sequence in data starting at offset start.
func Walk(data []byte, start int) ([]Chunk, error) {
	var chunks []Chunk
	off := start
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, goerr.New("chunk exceeds container", goerr.V("chunk", id), goerr.V("offset", off))
		}
		c := Chunk{ID: id, Offset: off, Data: data[body : body+size]}
		if id == "LIST" && size >= 4 {
			c.List = string(c.Data[:4])
		}
		chunks = append(chunks, c)
		off = body + size + size%2
	}
	return chunks, nil
}

// Sub returns the chunks nested in a LIST chunk.
func (c Chunk) Sub() ([]Chunk, error) {
	if c.ID != "LIST" || len(c.Data) < 4 {
		return nil, nil
	}
	return Walk(c.Data, 4)
}

// Build serialises a RIFF container with the given form type and chunks,
// recomputing the container size and padding odd payloads.
func Build(form string, chunks []Chunk) []byte {
	var body bytes.Buffer
	body.WriteString(form)
	for _, c := range chunks {
		body.WriteString(c.ID)
		body.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(c.Data))))
		body.Write(c.Data)
		if len(c.Data)%2 != 0 {
			body.WriteByte(0)
		}
	}
	out := make([]byte, 0, body.Len()+8)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(body.Len()))
	return append(out, body.Bytes()...)
}

// ─── Streaming access ────────────────────────────────────────────────────────

// Span locates a chunk in a file without loading its payload.
type Span struct {
	ID     string
	Offset int64 // offset of the chunk header
	Size   int64 // payload size
	List   string
}

// DataOffset returns the offset of the first payload byte.
func (s Span) DataOffset() int64 { return s.Offset + 8 }

// Header reads the RIFF header of r and returns the form type and the end
// of the first RIFF form, clamped to size.
func Header(r io.ReaderAt, size int64) (string, int64, error) {
	var hdr [12]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return "", 0, goerr.Wrap(err, "failed to read RIFF header")
	}
	if string(hdr[0:4]) != "RIFF" {
		return "", 0, goerr.New("not a RIFF container")
	}
	end := 8 + int64(binary.LittleEndian.Uint32(hdr[4:8]))
	if end > size || end < 12 {
		end = size
	}
	return string(hdr[8:12]), end, nil
}

// Scan reads the chunk headers in [start, end) of r.
func Scan(r io.ReaderAt, start, end int64) ([]Span, error) {
	var spans []Span
	var hdr [12]byte
	off := start
	for off+8 <= end {
		if _, err := r.ReadAt(hdr[:8], off); err != nil {
			return nil, goerr.Wrap(err, "failed to read chunk header", goerr.V("offset", off))
		}
		s := Span{ID: string(hdr[0:4]), Offset: off, Size: int64(binary.LittleEndian.Uint32(hdr[4:8]))}
		if s.DataOffset()+s.Size > end {
			return nil, goerr.New("chunk exceeds container", goerr.V("chunk", s.ID), goerr.V("offset", off))
		}
		if s.ID == "LIST" && s.Size >= 4 {
			if _, err := r.ReadAt(hdr[8:12], s.DataOffset()); err != nil {
				return nil, goerr.Wrap(err, "failed to read list type", goerr.V("offset", off))
			}
			s.List = string(hdr[8:12])
		}
		spans = append(spans, s)
		off = s.DataOffset() + s.Size + s.Size%2
	}
	return spans, nil
}

// ReadData loads the payload of s.
func ReadData(r io.ReaderAt, s Span) ([]byte, error) {
	buf := make([]byte, s.Size)
	if _, err := r.ReadAt(buf, s.DataOffset()); err != nil {
		return nil, goerr.Wrap(err, "failed to read chunk", goerr.V("chunk", s.ID))
	}
	return buf, nil
}

// Junk retypes the chunk at s as JUNK and zeroes its payload. Its size is
// kept, so no other offset moves.
func Junk(w io.WriterAt, s Span) error {
	if _, err := w.WriteAt([]byte("JUNK"), s.Offset); err != nil {
		return goerr.Wrap(err, "failed to retype chunk", goerr.V("chunk", s.ID))
	}
	if _, err := w.WriteAt(make([]byte, s.Size), s.DataOffset()); err != nil {
		return goerr.Wrap(err, "failed to zero chunk", goerr.V("chunk", s.ID))
	}
	return nil
}

// ─── INFO lists ──────────────────────────────────────────────────────────────

var infoNames = map[string]string{
	"IARL": "ArchivalLocation",
	"IART": "Artist",
	"ICMS": "Commissioned",
	"ICMT": "Comment",
	"ICOP": "Copyright",
	"ICRD": "CreationDate",
	"IENG": "Engineer",
	"IGNR": "Genre",
	"IKEY": "Keywords",
	"IMED": "Medium",
	"INAM": "Title",
	"IPRD": "Product",
	"IPRT": "Part",
	"ISBJ": "Subject",
	"ISFT": "Software",
	"ISRC": "Source",
	"ISMP": "TimeCode",
	"ITCH": "Technician",
	"ITRK": "Track",
	"IDIT": "DateTimeOriginal",
}

// InfoName returns the readable name of an INFO chunk id, or the id itself.
func InfoName(id string) string {
	if n, ok := infoNames[id]; ok {
		return n
	}
	return id
}

// Text decodes a NUL-terminated INFO value. Values that are not valid UTF-8
// are read as Latin-1.
func Text(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	b = bytes.TrimSpace(b)
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
