package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDBDir creates the directory holding a file-backed SQLite database.
// In-memory and URI-style DSNs are left alone.
func EnsureDBDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}
