package video

import (
	"os"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Field is one node of a container's metadata tree. Top-level fields carry
// the edit that removes them from a copy of the file.
type Field struct {
	Name     string
	Value    string
	Children []Field
	clear    func(f *os.File) error
}

// Tree is the metadata found in one container.
type Tree struct {
	Fields []Field
}

func (t *Tree) add(f Field) {
	t.Fields = append(t.Fields, f)
}

// Flatten writes every leaf into m under a slash-joined key. Empty leaves
// are skipped.
func (t *Tree) Flatten(m *core.Metadata, category string) {
	for _, f := range t.Fields {
		flatten(m, "", f, category)
	}
}

func flatten(m *core.Metadata, prefix string, f Field, category string) {
	key := f.Name
	if prefix != "" {
		key = prefix + "/" + f.Name
	}
	if f.Value != "" {
		m.Set(key, f.Value, category)
	}
	for _, c := range f.Children {
		flatten(m, key, c, category)
	}
}
