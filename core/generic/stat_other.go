//go:build !linux

package generic

import "os"

// statFile reports what os.Stat exposes portably. The other attributes are
// left empty and rendered as N/A.
func statFile(path string) (fileStat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{
		Size:     fi.Size(),
		Mode:     fi.Mode(),
		Modified: fi.ModTime(),
	}, nil
}
