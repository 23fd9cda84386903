package video

import (
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

// ─── AVI ─────────────────────────────────────────────────────────────────────

func parseAVI(r io.ReaderAt, size int64) (*Tree, error) {
	form, end, err := riff.Header(r, size)
	if err != nil {
		return nil, err
	}
	if form != "AVI " {
		return nil, goerr.New("not an AVI file", goerr.V("form", form))
	}
	spans, err := riff.Scan(r, 12, end)
	if err != nil {
		return nil, err
	}

	tree := &Tree{}
	if err := aviChunks(r, tree, spans, 0); err != nil {
		return nil, err
	}
	return tree, nil
}

// aviChunks collects the metadata chunks among spans. Header lists are
// searched too, since IDIT and ISMP live in hdrl.
func aviChunks(r io.ReaderAt, tree *Tree, spans []riff.Span, depth int) error {
	for _, s := range spans {
		switch {
		case s.ID == "LIST" && s.List == "INFO":
			f, err := infoField(r, s)
			if err != nil {
				return err
			}
			tree.add(f)
		case s.ID == "LIST" && s.List == "hdrl" && depth < 2:
			sub, err := riff.Scan(r, s.DataOffset()+4, s.DataOffset()+s.Size)
			if err != nil {
				return err
			}
			if err := aviChunks(r, tree, sub, depth+1); err != nil {
				return err
			}
		case s.ID == "IDIT" || s.ID == "ISMP":
			data, err := riff.ReadData(r, s)
			if err != nil {
				return err
			}
			tree.add(Field{Name: riff.InfoName(s.ID), Value: riff.Text(data), clear: junk(s)})
		case s.ID == "_PMX":
			tree.add(Field{Name: "XMP", Value: sizeOf(s.Size), clear: junk(s)})
		}
	}
	return nil
}

func infoField(r io.ReaderAt, s riff.Span) (Field, error) {
	data, err := riff.ReadData(r, s)
	if err != nil {
		return Field{}, err
	}
	chunks, err := riff.Walk(data, 4)
	if err != nil {
		return Field{}, err
	}
	f := Field{Name: "INFO", clear: junk(s)}
	for _, c := range chunks {
		f.Children = append(f.Children, Field{Name: riff.InfoName(c.ID), Value: riff.Text(c.Data)})
	}
	return f, nil
}

func junk(s riff.Span) func(*os.File) error {
	return func(f *os.File) error { return riff.Junk(f, s) }
}
