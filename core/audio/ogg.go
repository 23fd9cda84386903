package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/m-mizutani/goerr/v2"
)

// ─── Ogg (Vorbis, Opus) ──────────────────────────────────────────────────────

const (
	oggContinued = 0x01
	oggBOS       = 0x02

	oggHeaderLen   = 27
	oggMaxSegments = 255
	oggNoGranule   = ^uint64(0)
)

type oggPage struct {
	flags   byte
	granule uint64
	serial  uint32
	seq     uint32
	lacing  []byte
	data    []byte
}

// oggCodec describes the header packets of a codec carried in Ogg.
type oggCodec struct {
	idPrefix      string
	commentPrefix string
	headers       int    // header packet count, comment packet second
	emptyComment  []byte // comment packet with no vendor and no entries
}

var oggCodecs = []oggCodec{
	{
		idPrefix:      "\x01vorbis",
		commentPrefix: "\x03vorbis",
		headers:       3,
		emptyComment:  []byte("\x03vorbis\x00\x00\x00\x00\x00\x00\x00\x00\x01"),
	},
	{
		idPrefix:      "OpusHead",
		commentPrefix: "OpusTags",
		headers:       2,
		emptyComment:  []byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00"),
	},
}

// oggCRCTable is the CRC-32 table for polynomial 0x04C11DB7, unreflected.
var oggCRCTable = func() (t [256]uint32) {
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, c := range b {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^c]
	}
	return crc
}

// readOggPages splits data into pages, checking each page's CRC.
func readOggPages(data []byte) ([]oggPage, error) {
	var pages []oggPage
	for off := 0; off < len(data); {
		if off+oggHeaderLen > len(data) || string(data[off:off+4]) != "OggS" || data[off+4] != 0 {
			return nil, goerr.New("invalid Ogg page", goerr.V("offset", off))
		}
		n := int(data[off+26])
		bodyStart := off + oggHeaderLen + n
		if bodyStart > len(data) {
			return nil, goerr.New("Ogg segment table truncated", goerr.V("offset", off))
		}
		p := oggPage{
			flags:   data[off+5],
			granule: binary.LittleEndian.Uint64(data[off+6 : off+14]),
			serial:  binary.LittleEndian.Uint32(data[off+14 : off+18]),
			seq:     binary.LittleEndian.Uint32(data[off+18 : off+22]),
			lacing:  data[off+oggHeaderLen : bodyStart],
		}
		size := 0
		for _, l := range p.lacing {
			size += int(l)
		}
		if bodyStart+size > len(data) {
			return nil, goerr.New("Ogg page truncated", goerr.V("offset", off))
		}
		p.data = data[bodyStart : bodyStart+size]

		raw := p.bytes()
		if !bytes.Equal(raw[22:26], data[off+22:off+26]) {
			return nil, goerr.New("Ogg page checksum mismatch", goerr.V("offset", off))
		}
		pages = append(pages, p)
		off = bodyStart + size
	}
	if len(pages) == 0 {
		return nil, goerr.New("no Ogg pages")
	}
	return pages, nil
}

// bytes encodes p with a freshly computed CRC.
func (p oggPage) bytes() []byte {
	out := make([]byte, oggHeaderLen, oggHeaderLen+len(p.lacing)+len(p.data))
	copy(out, "OggS")
	out[5] = p.flags
	binary.LittleEndian.PutUint64(out[6:14], p.granule)
	binary.LittleEndian.PutUint32(out[14:18], p.serial)
	binary.LittleEndian.PutUint32(out[18:22], p.seq)
	out[26] = byte(len(p.lacing))
	out = append(out, p.lacing...)
	out = append(out, p.data...)
	binary.LittleEndian.PutUint32(out[22:26], oggCRC(out))
	return out
}

// headerPackets reassembles the first n packets of the stream with the
// given serial. It returns them with the index of the page holding the end
// of the last one, which must also end that page.
func headerPackets(pages []oggPage, serial uint32, n int) ([][]byte, int, error) {
	var packets [][]byte
	var cur []byte
	for i, p := range pages {
		if p.serial != serial {
			continue
		}
		off := 0
		for j, l := range p.lacing {
			cur = append(cur, p.data[off:off+int(l)]...)
			off += int(l)
			if l == oggMaxSegments {
				continue
			}
			packets = append(packets, cur)
			cur = nil
			if len(packets) == n {
				if j != len(p.lacing)-1 {
					return nil, 0, goerr.New("header packets do not end on a page boundary")
				}
				return packets, i, nil
			}
		}
	}
	return nil, 0, goerr.New("Ogg stream ends inside its headers")
}

// paginate lays packets out on pages numbered from seq. Header pages carry
// granule 0, or the "no packet ends here" marker.
func paginate(serial uint32, packets [][]byte, seq uint32, flags byte) []oggPage {
	type segment struct {
		size byte
		last bool
	}
	var segs []segment
	var body []byte
	for _, pkt := range packets {
		n := len(pkt)
		for ; n >= oggMaxSegments; n -= oggMaxSegments {
			segs = append(segs, segment{size: oggMaxSegments})
		}
		segs = append(segs, segment{size: byte(n), last: true})
		body = append(body, pkt...)
	}

	var pages []oggPage
	continued := false
	for len(segs) > 0 {
		k := min(len(segs), oggMaxSegments)
		p := oggPage{flags: flags, granule: oggNoGranule, serial: serial, seq: seq}
		if continued {
			p.flags |= oggContinued
		}
		size := 0
		for _, s := range segs[:k] {
			p.lacing = append(p.lacing, s.size)
			size += int(s.size)
			if s.last {
				p.granule = 0
			}
		}
		p.data = body[:size]
		continued = !segs[k-1].last
		segs, body = segs[k:], body[size:]
		pages = append(pages, p)
		flags &^= oggBOS
		seq++
	}
	return pages
}

// stripOgg replaces the comment header of the first logical stream with an
// empty one. The BOS page stays first; the other header pages are rebuilt
// where the stream's first header page after it sat, so BOS pages of other
// multiplexed streams still precede them. Later pages of the stream are
// renumbered to follow the rebuilt headers.
func stripOgg(data []byte) ([]byte, bool, error) {
	pages, err := readOggPages(data)
	if err != nil {
		return nil, false, nil
	}
	first := pages[0]

	var codec *oggCodec
	for i := range oggCodecs {
		if bytes.HasPrefix(first.data, []byte(oggCodecs[i].idPrefix)) {
			codec = &oggCodecs[i]
		}
	}
	if codec == nil {
		return nil, false, nil
	}

	headers, last, err := headerPackets(pages, first.serial, codec.headers)
	if err != nil {
		return nil, false, err
	}
	if !bytes.HasPrefix(headers[1], []byte(codec.commentPrefix)) {
		return nil, false, goerr.New("comment header not found")
	}
	headers[1] = codec.emptyComment

	bos := paginate(first.serial, headers[:1], 0, oggBOS)
	rest := paginate(first.serial, headers[1:], uint32(len(bos)), 0)
	next := uint32(len(bos) + len(rest))

	var out bytes.Buffer
	writePages := func(ps []oggPage) {
		for _, p := range ps {
			out.Write(p.bytes())
		}
	}
	placed := false
	for i, p := range pages {
		switch {
		case p.serial != first.serial:
		case i == 0:
			writePages(bos)
			if last == 0 {
				writePages(rest)
				placed = true
			}
			continue
		case i <= last:
			if !placed {
				writePages(rest)
				placed = true
			}
			continue
		default:
			p.seq = next
			next++
		}
		out.Write(p.bytes())
	}
	return out.Bytes(), true, nil
}
