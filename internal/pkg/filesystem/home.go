package filesystem

import (
	"os"
	"path/filepath"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// AppDir returns the RiskLens data directory (~/.risklens), joined with any
// additional path elements. The directory is not created here.
func AppDir(elem ...string) string {
	parts := append([]string{UserHomeDir(), ".risklens"}, elem...)
	return filepath.Join(parts...)
}
