package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath rejects paths that could escape the service's working
// directory. Only clean relative paths are accepted: the database file and
// env file locations are always configured relative to where the process
// runs.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("file path contains a NUL byte")
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}
	if filepath.IsAbs(cleaned) {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}

	return nil
}
