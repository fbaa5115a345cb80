//go:build !windows

package scan

import (
	"os"
	"syscall"
)

// statInfo holds platform-specific file metadata.
type statInfo struct {
	dev        uint64
	ino        uint64
	nlink      uint32
	blocks     int64 // allocated bytes (st_blocks * 512)
	uid        uint32
	gid        uint32
	notRegular bool
	ok         bool // true if platform stat data was available
}

// getStatInfo extracts device, inode, link count, and disk usage from
// file info.
func getStatInfo(info os.FileInfo) statInfo {
	mode := info.Mode()
	notRegular := !mode.IsRegular() && !mode.IsDir() && mode&os.ModeSymlink == 0

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return statInfo{blocks: info.Size(), notRegular: notRegular}
	}
	return statInfo{
		dev:        uint64(stat.Dev),
		ino:        stat.Ino,
		nlink:      uint32(stat.Nlink),
		blocks:     stat.Blocks * 512,
		uid:        stat.Uid,
		gid:        stat.Gid,
		notRegular: notRegular,
		ok:         true,
	}
}
