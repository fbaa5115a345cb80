//go:build !linux

package scan

// Pseudo-filesystem detection is Linux-only; elsewhere nothing is
// treated as a kernel filesystem.
func isKernfs(path string) bool {
	return false
}
