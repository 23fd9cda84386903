//go:build linux

package generic

import (
	"errors"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// statFile uses statx so the birth time is reported where the filesystem
// records it. Kernels without statx fall back to stat.
func statFile(path string) (fileStat, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BASIC_STATS|unix.STATX_BTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return statLegacy(path)
	}
	if err != nil {
		return fileStat{}, err
	}

	st := fileStat{
		Size:     int64(stx.Size),
		Mode:     unixMode(uint32(stx.Mode)),
		Modified: statxTime(stx.Mtime),
		Accessed: statxTime(stx.Atime),
		Inode:    uintString(stx.Ino),
		Device:   uintString(unix.Mkdev(stx.Dev_major, stx.Dev_minor)),
		Links:    uintString(uint64(stx.Nlink)),
		UID:      uintString(uint64(stx.Uid)),
		GID:      uintString(uint64(stx.Gid)),
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		st.Birth = statxTime(stx.Btime)
	}
	return st, nil
}

func statLegacy(path string) (fileStat, error) {
	var s unix.Stat_t
	if err := unix.Stat(path, &s); err != nil {
		return fileStat{}, err
	}
	return fileStat{
		Size:     s.Size,
		Mode:     unixMode(s.Mode),
		Modified: time.Unix(s.Mtim.Unix()),
		Accessed: time.Unix(s.Atim.Unix()),
		Inode:    uintString(s.Ino),
		Device:   uintString(s.Dev),
		Links:    uintString(uint64(s.Nlink)),
		UID:      uintString(uint64(s.Uid)),
		GID:      uintString(uint64(s.Gid)),
	}, nil
}

func statxTime(ts unix.StatxTimestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}

func unixMode(m uint32) os.FileMode { return os.FileMode(m & 0o777) }

func uintString(v uint64) string { return strconv.FormatUint(v, 10) }
