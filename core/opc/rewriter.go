// Package opc rewrites zip-based Open Packaging Convention documents
// (docx, xlsx, pptx). A rewrite extracts the package into a private scratch
// directory, mutates selected parts there and repacks every entry into a
// replacement archive before it touches the original path.
package opc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Property parts holding document metadata.
const (
	CorePropsPart = "docProps/core.xml"
	AppPropsPart  = "docProps/app.xml"
)

// MetadataParts is the fixed set of parts a strip rewrites.
var MetadataParts = []string{CorePropsPart, AppPropsPart}

// MutateFunc returns the new content of a part.
type MutateFunc func(name string, data []byte) ([]byte, error)

// ─── Scratch area ─────────────────────────────────────────────────────────────

// scratchArea is a uniquely named temporary directory owned by one rewrite.
type scratchArea struct {
	dir string
}

func newScratchArea() (*scratchArea, error) {
	dir, err := os.MkdirTemp("", "opc-scratch-*")
	if err != nil {
		return nil, err
	}
	return &scratchArea{dir: dir}, nil
}

// path resolves an entry name inside the scratch area.
func (s *scratchArea) path(name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("entry %q escapes the package root", name)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *scratchArea) Close() error {
	return os.RemoveAll(s.dir)
}

// ─── Rewrite ──────────────────────────────────────────────────────────────────

// Rewrite applies mutate to each named part that exists in the package at
// path and replaces the package with the result. Entry names, order,
// compression methods and the bytes of every other entry are preserved.
func Rewrite(path string, parts []string, mutate MutateFunc) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return core.Corrupt(err, "failed to open package", path)
	}
	entries := make([]zip.FileHeader, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, f.FileHeader)
	}

	scratch, err := newScratchArea()
	if err != nil {
		zr.Close()
		return core.IOError(err, "failed to create scratch area", path)
	}
	defer scratch.Close()

	err = extractAll(zr, scratch)
	zr.Close()
	if err != nil {
		return goerr.Wrap(err, "failed to extract package", goerr.V("path", path))
	}

	for _, name := range parts {
		if err := mutatePart(scratch, name, mutate); err != nil {
			return goerr.Wrap(err, "failed to rewrite part", goerr.V("path", path), goerr.V("part", name))
		}
	}

	return core.ReplaceFile(path, func(w io.Writer) error {
		return repack(w, scratch, entries)
	})
}

func extractAll(zr *zip.ReadCloser, scratch *scratchArea) error {
	for _, f := range zr.File {
		dst, err := scratch.path(f.Name)
		if err != nil {
			return goerr.Wrap(err, "unsafe entry name", goerr.T(core.TagCorrupt))
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return goerr.Wrap(err, "failed to create directory", goerr.T(core.TagIO))
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return goerr.Wrap(err, "failed to create directory", goerr.T(core.TagIO))
		}
		if err := extractFile(f, dst); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open entry", goerr.T(core.TagCorrupt), goerr.V("entry", f.Name))
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return goerr.Wrap(err, "failed to create entry file", goerr.T(core.TagIO), goerr.V("entry", f.Name))
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return goerr.Wrap(err, "failed to read entry", goerr.T(core.TagCorrupt), goerr.V("entry", f.Name))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to write entry file", goerr.T(core.TagIO), goerr.V("entry", f.Name))
	}
	return nil
}

func mutatePart(scratch *scratchArea, name string, mutate MutateFunc) error {
	p, err := scratch.path(name)
	if err != nil {
		return goerr.Wrap(err, "unsafe part name", goerr.T(core.TagCorrupt))
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to read part", goerr.T(core.TagIO))
	}
	out, err := mutate(name, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, out, 0o600); err != nil {
		return goerr.Wrap(err, "failed to write part", goerr.T(core.TagIO))
	}
	return nil
}

func repack(w io.Writer, scratch *scratchArea, entries []zip.FileHeader) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Comment:  e.Comment,
			Method:   e.Method,
			Modified: e.Modified,
		}
		hdr.SetMode(e.Mode())

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return goerr.Wrap(err, "failed to add entry", goerr.T(core.TagIO), goerr.V("entry", e.Name))
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		src, err := scratch.path(e.Name)
		if err != nil {
			return goerr.Wrap(err, "unsafe entry name", goerr.T(core.TagCorrupt))
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return goerr.Wrap(err, "failed to read staged entry", goerr.T(core.TagIO), goerr.V("entry", e.Name))
		}
		if _, err := fw.Write(data); err != nil {
			return goerr.Wrap(err, "failed to write entry", goerr.T(core.TagIO), goerr.V("entry", e.Name))
		}
	}
	if err := zw.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish archive", goerr.T(core.TagIO))
	}
	return nil
}

// ─── Part readers ─────────────────────────────────────────────────────────────

// ReadPart returns the content of one entry, or nil if the package has no
// such entry.
func ReadPart(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, core.Corrupt(err, "failed to open package", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, core.Corrupt(err, "failed to open part", path)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, core.Corrupt(err, "failed to read part", path)
		}
		return data, nil
	}
	return nil, nil
}

// EntryNames lists the entries of a package in archive order.
func EntryNames(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, core.Corrupt(err, "failed to open package", path)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// ─── Part mutation ────────────────────────────────────────────────────────────

// ClearPart empties a property part: the root element is kept with its
// namespace declarations, and every child, attribute and text node is
// dropped. The part stays well-formed, so content-type and relationship
// entries that point at it remain valid.
func ClearPart(name string, data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			return nil, goerr.New("part has no root element", goerr.T(core.TagCorrupt), goerr.V("part", name))
		}
		if err != nil {
			return nil, goerr.Wrap(err, "malformed XML", goerr.T(core.TagCorrupt), goerr.V("part", name))
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		// The rest of the document must still parse.
		for depth := 1; depth > 0; {
			tok, err := dec.RawToken()
			if err != nil {
				return nil, goerr.Wrap(err, "malformed XML", goerr.T(core.TagCorrupt), goerr.V("part", name))
			}
			switch tok.(type) {
			case xml.StartElement:
				depth++
			case xml.EndElement:
				depth--
			}
		}
		return emptyRoot(start), nil
	}
}

func emptyRoot(start xml.StartElement) []byte {
	qname := start.Name.Local
	if start.Name.Space != "" {
		qname = start.Name.Space + ":" + start.Name.Local
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	buf.WriteString("<" + qname)
	for _, a := range start.Attr {
		switch {
		case a.Name.Space == "xmlns":
			buf.WriteString(" xmlns:" + a.Name.Local + `="`)
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			buf.WriteString(` xmlns="`)
		default:
			continue
		}
		xml.EscapeText(&buf, []byte(a.Value))
		buf.WriteString(`"`)
	}
	buf.WriteString("></" + qname + ">")
	return buf.Bytes()
}
