package core

import (
	"io"
	"os"
	"path/filepath"
)

// ReplaceFile writes a new version of path through write and renames it
// over the original. The replacement is staged in a temp file in the same
// directory, so the original is either fully replaced or left untouched.
func ReplaceFile(path string, write func(w io.Writer) error) error {
	return writeSiblingFile(path, path, func(f *os.File) error { return write(f) })
}

// WriteFileAtomic replaces path with data.
func WriteFileAtomic(path string, data []byte) error {
	return ReplaceFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// CopyToSibling copies src to a temp file beside dst, lets patch edit it in
// place, then renames it to dst. src is never opened for writing.
func CopyToSibling(src, dst string, patch func(f *os.File) error) error {
	in, err := os.Open(src)
	if err != nil {
		return IOError(err, "failed to open source", src)
	}
	defer in.Close()

	return writeSiblingFile(src, dst, func(f *os.File) error {
		if _, err := io.Copy(f, in); err != nil {
			return IOError(err, "failed to copy source", src)
		}
		return patch(f)
	})
}

// writeSiblingFile stages the new content beside dst. A dst that is a
// symlink is resolved first, so the link target is replaced and the link
// itself survives.
func writeSiblingFile(src, dst string, write func(f *os.File) error) error {
	if real, err := filepath.EvalSymlinks(dst); err == nil {
		dst = real
	}
	mode := os.FileMode(0644)
	if st, err := os.Stat(src); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return IOError(err, "failed to create temp file", dst)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return IOError(err, "failed to sync temp file", dst)
	}
	if err := tmp.Close(); err != nil {
		return IOError(err, "failed to close temp file", dst)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return IOError(err, "failed to set file mode", dst)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return IOError(err, "failed to replace file", dst)
	}
	committed = true
	return nil
}
