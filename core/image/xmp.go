package image

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"strings"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// ─── XMP ─────────────────────────────────────────────────────────────────────

const rdfNS = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// xmpContainers are RDF wrapper elements that never name a property.
var xmpContainers = map[string]bool{
	"xmpmeta":     true,
	"RDF":         true,
	"Description": true,
	"li":          true,
	"Bag":         true,
	"Seq":         true,
	"Alt":         true,
}

// parseXMPInto adds the properties of an XMP packet as "xmp:<name>" fields.
// Array items are joined under their property name.
func parseXMPInto(data []byte, m *core.Metadata) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" || attr.Name.Space == rdfNS {
					continue
				}
				if attr.Value != "" {
					appendField(m, "xmp:"+attr.Name.Local, attr.Value, "XMP")
				}
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if val == "" {
				continue
			}
			if name := xmpProperty(stack); name != "" {
				appendField(m, "xmp:"+name, val, "XMP")
			}
		}
	}
}

func xmpProperty(stack []string) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if !xmpContainers[stack[i]] {
			return stack[i]
		}
	}
	return ""
}

// appendField stores value under key, joining repeated keys with "; ".
func appendField(m *core.Metadata, key, value, category string) {
	if prev, ok := m.Get(key); ok {
		value = prev + "; " + value
	}
	m.Set(key, value, category)
}

// ─── IPTC ────────────────────────────────────────────────────────────────────

var iptcFieldNames = map[byte]string{
	0x05: "ObjectName",
	0x0F: "Category",
	0x14: "SupplementalCategory",
	0x19: "Keywords",
	0x1E: "ReleaseDate",
	0x37: "DateCreated",
	0x3C: "TimeCreated",
	0x28: "SpecialInstructions",
	0x3E: "DigitalCreationDate",
	0x50: "Byline",
	0x55: "BylineTitle",
	0x5A: "City",
	0x5F: "Province",
	0x65: "Country",
	0x67: "OriginalTransmissionReference",
	0x69: "Headline",
	0x6E: "Credit",
	0x73: "Source",
	0x74: "CopyrightNotice",
	0x76: "Contact",
	0x78: "Caption",
	0x7A: "CaptionWriter",
}

// parseIPTCInto reads the IPTC resource (0x0404) of a Photoshop APP13
// segment.
func parseIPTCInto(data []byte, m *core.Metadata) {
	i := 0
	for i+12 <= len(data) {
		if !bytes.Equal(data[i:i+4], []byte("8BIM")) {
			return
		}
		resType := binary.BigEndian.Uint16(data[i+4 : i+6])
		nameLen := int(data[i+6])
		// Pascal string plus its length byte, padded to even.
		i += 6 + (nameLen+2)&^1
		if i+4 > len(data) {
			return
		}
		blockLen := int(binary.BigEndian.Uint32(data[i : i+4]))
		i += 4
		if i+blockLen > len(data) {
			return
		}
		if resType == 0x0404 {
			parseIPTCBlock(data[i:i+blockLen], m)
		}
		i += blockLen + blockLen%2
	}
}

func parseIPTCBlock(data []byte, m *core.Metadata) {
	i := 0
	for i+5 <= len(data) {
		if data[i] != 0x1C {
			return
		}
		record, dataset := data[i+1], data[i+2]
		length := int(binary.BigEndian.Uint16(data[i+3 : i+5]))
		i += 5
		if i+length > len(data) {
			return
		}
		if name, ok := iptcFieldNames[dataset]; ok && record == 2 {
			appendField(m, name, string(data[i:i+length]), "IPTC")
		}
		i += length
	}
}
