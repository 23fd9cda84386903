package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/m-mizutani/goerr/v2"
)

// ─── FLAC ────────────────────────────────────────────────────────────────────

const (
	flacVorbisComment = 4
	flacPicture       = 6
)

type flacBlock struct {
	blockType byte
	data      []byte
}

// parseFLACBlocks reads the metadata blocks after the "fLaC" marker at
// data[0:4] and returns them with the offset of the first audio frame.
func parseFLACBlocks(data []byte) ([]flacBlock, int, error) {
	var blocks []flacBlock
	i := 4
	for {
		if i+4 > len(data) {
			return nil, i, goerr.New("FLAC metadata truncated", goerr.V("offset", i))
		}
		header := binary.BigEndian.Uint32(data[i : i+4])
		isLast := header>>31 == 1
		length := int(header & 0xFFFFFF)
		i += 4
		if i+length > len(data) {
			return nil, i, goerr.New("FLAC block truncated", goerr.V("offset", i))
		}
		blocks = append(blocks, flacBlock{blockType: byte(header>>24) & 0x7F, data: data[i : i+length]})
		i += length
		if isLast {
			return blocks, i, nil
		}
	}
}

// stripFLAC drops the Vorbis comment and picture blocks, and any ID3v2 tag
// prepended to the stream.
func stripFLAC(data []byte) ([]byte, bool, error) {
	data = data[id3v2Length(data):]
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		return nil, false, nil
	}
	blocks, audioStart, err := parseFLACBlocks(data)
	if err != nil {
		return nil, false, err
	}

	kept := blocks[:0:0]
	for _, b := range blocks {
		if b.blockType != flacVorbisComment && b.blockType != flacPicture {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return nil, false, goerr.New("FLAC stream has no STREAMINFO block")
	}

	var buf bytes.Buffer
	buf.WriteString("fLaC")
	for i, b := range kept {
		header := uint32(b.blockType)<<24 | uint32(len(b.data))
		if i == len(kept)-1 {
			header |= 1 << 31
		}
		buf.Write(binary.BigEndian.AppendUint32(nil, header))
		buf.Write(b.data)
	}
	buf.Write(data[audioStart:])
	return buf.Bytes(), true, nil
}

// id3v2Length returns the size of an ID3v2 tag at the start of data, footer
// included, or 0.
func id3v2Length(data []byte) int {
	if len(data) < 10 || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	n := 10 + size
	if data[5]&0x10 != 0 {
		n += 10
	}
	if n > len(data) {
		return 0
	}
	return n
}
