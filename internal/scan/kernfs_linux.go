//go:build linux

package scan

import "golang.org/x/sys/unix"

// kernfsMagics lists the f_type values of Linux pseudo-filesystems that
// hold no real disk usage.
var kernfsMagics = map[int64]struct{}{
	unix.PROC_SUPER_MAGIC:    {},
	unix.SYSFS_MAGIC:         {},
	unix.DEVPTS_SUPER_MAGIC:  {},
	unix.CGROUP_SUPER_MAGIC:  {},
	unix.CGROUP2_SUPER_MAGIC: {},
	unix.DEBUGFS_MAGIC:       {},
	unix.SECURITYFS_MAGIC:    {},
	unix.TRACEFS_MAGIC:       {},
	unix.PSTOREFS_MAGIC:      {},
	unix.BPF_FS_MAGIC:        {},
}

// isKernfs reports whether path sits on a kernel pseudo-filesystem.
func isKernfs(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	_, ok := kernfsMagics[int64(st.Type)]
	return ok
}
