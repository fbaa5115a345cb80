package scan

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// cachedirTag is the marker file and required signature defined by the
// Cache Directory Tagging Specification.
const (
	cachedirTagName      = "CACHEDIR.TAG"
	cachedirTagSignature = "Signature: 8a477f597d28d172789f06886806bc55"
)

// shouldExclude checks relPath (relative to the scan root) and the
// entry name against the configured glob patterns. Patterns with a
// separator match the relative path, bare patterns match the name.
func (o *Options) shouldExclude(relPath, name string) bool {
	for _, pattern := range o.ExcludePatterns {
		target := name
		if strings.ContainsRune(pattern, filepath.Separator) {
			target = relPath
		}
		if ok, err := filepath.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

// hasCachedirTag reports whether dirPath contains a CACHEDIR.TAG file
// beginning with the specification's signature.
func hasCachedirTag(dirPath string) bool {
	f, err := os.Open(filepath.Join(dirPath, cachedirTagName))
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(cachedirTagSignature))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	return bytes.Equal(buf, []byte(cachedirTagSignature))
}
