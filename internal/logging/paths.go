package logging

import "path/filepath"

// LogPath returns the log file path inside the data directory.
func LogPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "logs", "codescout.log")
}
