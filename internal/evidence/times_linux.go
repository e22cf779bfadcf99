//go:build linux

package evidence

import (
	"os"
	"syscall"
	"time"
)

// createdTime returns the inode change time, the closest Linux has to a
// creation time.
func createdTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Unix())
	}
	return info.ModTime()
}
