package isobmff

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Item is one decoded metadata atom.
type Item struct {
	Name  string
	Value string
}

// itemNames maps iTunes-style atoms to readable names.
var itemNames = map[string]string{
	"\xa9nam": "Title",
	"\xa9ART": "Artist",
	"aART":    "AlbumArtist",
	"\xa9alb": "Album",
	"\xa9day": "Date",
	"\xa9cmt": "Comment",
	"\xa9gen": "Genre",
	"\xa9too": "Encoder",
	"\xa9wrt": "Composer",
	"\xa9des": "Description",
	"\xa9xyz": "Location",
	"\xa9mak": "Make",
	"\xa9mod": "Model",
	"\xa9swr": "Software",
	"\xa9enc": "EncodedBy",
	"\xa9cpy": "Copyright",
	"\xa9inf": "Information",
	"\xa9aut": "Author",
	"\xa9dir": "Director",
	"\xa9prd": "Producer",
	"cprt":    "Copyright",
	"desc":    "Description",
	"ldes":    "LongDescription",
	"covr":    "CoverArt",
	"trkn":    "TrackNumber",
	"disk":    "DiscNumber",
	"tmpo":    "Tempo",
	"cpil":    "Compilation",
	"tvsh":    "TVShow",
	"soal":    "SortAlbum",
	"soar":    "SortArtist",
	"sonm":    "SortTitle",
}

// AtomName returns the readable name of an atom type. Types starting with
// the copyright sign are rendered with a "©" prefix.
func AtomName(typ string) string {
	if n, ok := itemNames[typ]; ok {
		return n
	}
	if strings.HasPrefix(typ, "\xa9") {
		return "©" + typ[1:]
	}
	return typ
}

// Keys decodes a QuickTime keys box into its 1-based key list.
func Keys(r io.ReaderAt, keys *Box) ([]string, error) {
	data, err := ReadPayload(r, keys)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, nil
	}
	n := int(binary.BigEndian.Uint32(data[4:8]))
	out := make([]string, 0, n)
	off := 8
	for i := 0; i < n && off+8 <= len(data); i++ {
		size := int(binary.BigEndian.Uint32(data[off : off+4]))
		if size < 8 || off+size > len(data) {
			break
		}
		out = append(out, string(data[off+8:off+size]))
		off += size
	}
	return out, nil
}

// Items decodes the atoms of an ilst box. keys resolves the integer atom
// types used by QuickTime meta boxes; it may be nil.
func Items(r io.ReaderAt, ilst *Box, keys []string) ([]Item, error) {
	var out []Item
	for _, atom := range ilst.Children {
		name := AtomName(atom.Type)
		if idx := binary.BigEndian.Uint32([]byte(atom.Type)); keys != nil && idx >= 1 && int(idx) <= len(keys) {
			name = keys[idx-1]
		}
		for _, data := range atom.ChildrenOf("data") {
			payload, err := ReadPayload(r, data)
			if err != nil {
				return nil, err
			}
			if len(payload) < 8 {
				continue
			}
			out = append(out, Item{Name: name, Value: dataValue(atom.Type, payload)})
		}
	}
	return out, nil
}

// dataValue renders a data box payload: a type indicator, a locale, then
// the value.
func dataValue(atom string, payload []byte) string {
	kind := binary.BigEndian.Uint32(payload[0:4]) & 0xFFFFFF
	v := payload[8:]
	switch {
	case atom == "trkn" || atom == "disk":
		if len(v) >= 6 {
			return fmt.Sprintf("%d/%d", binary.BigEndian.Uint16(v[2:4]), binary.BigEndian.Uint16(v[4:6]))
		}
	case kind == 1:
		return string(v)
	case kind == 13 || kind == 14 || kind == 27:
		return fmt.Sprintf("<image, %d bytes>", len(v))
	case kind == 21 || kind == 22 || kind == 0 && len(v) <= 8:
		return fmt.Sprint(beInt(v))
	}
	if utf8.Valid(v) {
		return string(v)
	}
	return fmt.Sprintf("<%d bytes>", len(v))
}

func beInt(v []byte) int64 {
	var n int64
	for _, b := range v {
		n = n<<8 | int64(b)
	}
	return n
}

// Text decodes a QuickTime user-data text atom: a length, a language code,
// then the string.
func Text(payload []byte) string {
	if len(payload) < 4 {
		return string(payload)
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if n > len(payload)-4 {
		n = len(payload) - 4
	}
	return strings.TrimRight(string(payload[4:4+n]), "\x00")
}
