package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Permission modes used for files and directories the tool creates
const (
	FilePermissionSecure = 0600 // config
	FilePermissionNormal = 0644 // reports
	DirPermissionSecure  = 0700
	DirPermissionNormal  = 0755
)

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CleanPath expands ~, cleans the path and makes it absolute.
// Paths containing ".." after cleaning are rejected.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("invalid path: empty")
	}

	cleaned := filepath.Clean(ExpandHome(path))
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: contains directory traversal")
	}

	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}

	return cleaned, nil
}

// IsRemote reports whether location names an object store URI
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// HasExt reports whether path ends in ext (with or without the dot), case-insensitively
func HasExt(path, ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), ext) && ext != ""
}
