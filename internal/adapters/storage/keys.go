package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// objectKey joins a bucket prefix and a relative key.
func objectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + strings.TrimPrefix(key, "/")
}

// relativeKey strips the bucket prefix from a full object key.
func relativeKey(prefix, full string) string {
	prefix = strings.Trim(prefix, "/")
	return strings.TrimPrefix(strings.TrimPrefix(full, prefix), "/")
}

// createDest creates dest and its parent directories.
func createDest(dest string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, err
	}
	return os.Create(dest) //#nosec G304 -- dest is a controlled local path
}
