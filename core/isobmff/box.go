// Package isobmff reads the box tree of ISO base media files (MP4, MOV,
// M4A) and neutralizes boxes in place without moving any byte.
package isobmff

import (
	"encoding/binary"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

// Box is one node of the box tree. Payloads are not loaded.
type Box struct {
	Type     string
	Offset   int64 // start of the box header
	Size     int64 // header included
	Header   int64 // header length, 8 or 16
	Children []*Box
}

// PayloadOffset returns the file offset of the first payload byte.
func (b *Box) PayloadOffset() int64 { return b.Offset + b.Header }

// PayloadSize returns the payload length.
func (b *Box) PayloadSize() int64 { return b.Size - b.Header }

// Child returns the first direct child of type typ.
func (b *Box) Child(typ string) *Box {
	for _, c := range b.Children {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// ChildrenOf returns every direct child of type typ.
func (b *Box) ChildrenOf(typ string) []*Box {
	var out []*Box
	for _, c := range b.Children {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// containers are the box types whose payload is a list of boxes.
var containers = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"stbl": true,
	"udta": true,
	"edts": true,
	"dinf": true,
	"mvex": true,
	"moof": true,
	"traf": true,
	"ilst": true,
	"meta": true,
}

// maxDepth bounds nesting; real files stay far below it.
const maxDepth = 16

// Parse reads the box tree of a file of the given size. The first box must
// be ftyp, or one of the boxes QuickTime files may start with.
func Parse(r io.ReaderAt, size int64) ([]*Box, error) {
	boxes, err := parseBoxes(r, 0, size, "", 0)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, goerr.New("file holds no boxes")
	}
	switch boxes[0].Type {
	case "ftyp", "moov", "mdat", "free", "skip", "wide", "pnot":
	default:
		return nil, goerr.New("not an ISO base media file", goerr.V("first_box", boxes[0].Type))
	}
	return boxes, nil
}

func parseBoxes(r io.ReaderAt, start, end int64, parent string, depth int) ([]*Box, error) {
	if depth > maxDepth {
		return nil, goerr.New("box nesting too deep")
	}
	var boxes []*Box
	var hdr [16]byte
	off := start
	for off+8 <= end {
		if _, err := r.ReadAt(hdr[:8], off); err != nil {
			return nil, goerr.Wrap(err, "failed to read box header", goerr.V("offset", off))
		}
		b := &Box{
			Type:   string(hdr[4:8]),
			Offset: off,
			Size:   int64(binary.BigEndian.Uint32(hdr[0:4])),
			Header: 8,
		}
		switch b.Size {
		case 0:
			b.Size = end - off
		case 1:
			if _, err := r.ReadAt(hdr[8:16], off+8); err != nil {
				return nil, goerr.Wrap(err, "failed to read large box size", goerr.V("offset", off))
			}
			b.Size = int64(binary.BigEndian.Uint64(hdr[8:16]))
			b.Header = 16
		}
		if b.Size < b.Header || off+b.Size > end {
			return nil, goerr.New("box exceeds its parent", goerr.V("box", b.Type), goerr.V("offset", off))
		}

		if containers[b.Type] || isItem(parent) {
			childStart := b.PayloadOffset()
			if b.Type == "meta" {
				skip, err := metaHeader(r, b)
				if err != nil {
					return nil, err
				}
				childStart += skip
			}
			children, err := parseBoxes(r, childStart, b.Offset+b.Size, b.Type, depth+1)
			if err != nil {
				return nil, err
			}
			b.Children = children
		}
		boxes = append(boxes, b)
		off += b.Size
	}
	return boxes, nil
}

// isItem reports whether boxes under parent are metadata items, which
// themselves hold data boxes.
func isItem(parent string) bool { return parent == "ilst" }

// metaHeader returns how many bytes precede the children of a meta box:
// 4 for the ISO full-box form, 0 for the QuickTime form that starts
// directly with hdlr.
func metaHeader(r io.ReaderAt, b *Box) (int64, error) {
	if b.PayloadSize() < 8 {
		return 0, nil
	}
	var buf [8]byte
	if _, err := r.ReadAt(buf[:], b.PayloadOffset()); err != nil {
		return 0, goerr.Wrap(err, "failed to read meta header")
	}
	if string(buf[4:8]) == "hdlr" && binary.BigEndian.Uint32(buf[0:4]) != 0 {
		return 0, nil
	}
	return 4, nil
}

// Find follows a path of box types from the top level.
func Find(boxes []*Box, path ...string) *Box {
	var cur *Box
	for i, typ := range path {
		var next *Box
		list := boxes
		if i > 0 {
			list = cur.Children
		}
		for _, b := range list {
			if b.Type == typ {
				next = b
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// ReadPayload loads the payload of b.
func ReadPayload(r io.ReaderAt, b *Box) ([]byte, error) {
	buf := make([]byte, b.PayloadSize())
	if _, err := r.ReadAt(buf, b.PayloadOffset()); err != nil {
		return nil, goerr.Wrap(err, "failed to read box payload", goerr.V("box", b.Type))
	}
	return buf, nil
}

// ─── Neutralize ──────────────────────────────────────────────────────────────

// Neutralize retypes b as a free box and zeroes its payload. The box keeps
// its size, so every offset in the file stays valid.
func Neutralize(w io.WriterAt, b *Box) error {
	if _, err := w.WriteAt([]byte("free"), b.Offset+4); err != nil {
		return goerr.Wrap(err, "failed to retype box", goerr.V("box", b.Type))
	}
	return zero(w, b.PayloadOffset(), b.PayloadSize())
}

// ZeroTimes clears the creation and modification times of an mvhd, tkhd or
// mdhd box.
func ZeroTimes(r io.ReaderAt, w io.WriterAt, b *Box) error {
	off, n, err := timeLayout(r, b)
	if err != nil {
		return err
	}
	return zero(w, off, 2*n)
}

// Times returns the creation and modification times of an mvhd, tkhd or
// mdhd box as seconds since 1904-01-01.
func Times(r io.ReaderAt, b *Box) (created, modified uint64, err error) {
	off, n, err := timeLayout(r, b)
	if err != nil {
		return 0, 0, err
	}
	buf := make([]byte, 2*n)
	if _, err := r.ReadAt(buf, off); err != nil {
		return 0, 0, goerr.Wrap(err, "failed to read box times", goerr.V("box", b.Type))
	}
	if n == 8 {
		return binary.BigEndian.Uint64(buf[:8]), binary.BigEndian.Uint64(buf[8:]), nil
	}
	return uint64(binary.BigEndian.Uint32(buf[:4])), uint64(binary.BigEndian.Uint32(buf[4:])), nil
}

// timeLayout returns the offset of the creation time and the width of each
// timestamp, which depends on the full-box version.
func timeLayout(r io.ReaderAt, b *Box) (int64, int64, error) {
	var version [1]byte
	if b.PayloadSize() < 12 {
		return 0, 0, goerr.New("box too short for timestamps", goerr.V("box", b.Type))
	}
	if _, err := r.ReadAt(version[:], b.PayloadOffset()); err != nil {
		return 0, 0, goerr.Wrap(err, "failed to read box version", goerr.V("box", b.Type))
	}
	n := int64(4)
	if version[0] == 1 {
		n = 8
		if b.PayloadSize() < 20 {
			return 0, 0, goerr.New("box too short for timestamps", goerr.V("box", b.Type))
		}
	}
	return b.PayloadOffset() + 4, n, nil
}

func zero(w io.WriterAt, off, n int64) error {
	const chunk = 32 << 10
	buf := make([]byte, min(n, chunk))
	for n > 0 {
		k := min(n, chunk)
		if _, err := w.WriteAt(buf[:k], off); err != nil {
			return goerr.Wrap(err, "failed to zero region", goerr.V("offset", off))
		}
		off += k
		n -= k
	}
	return nil
}
