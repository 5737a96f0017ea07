// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config locates the spool data directory. It reads the environment
// directly rather than viper so it can run before configuration is loaded,
// since the config file itself lives in the data directory.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetSpoolDataDir returns the spool data directory.
//
// Priority:
// 1. SPOOL_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.spool (default)
//
// The returned path is always absolute. A leading ~ in SPOOL_DATA_DIR
// expands to the user's home directory; relative paths are made absolute.
func GetSpoolDataDir() string {
	if dataDir := os.Getenv("SPOOL_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to a relative directory when home cannot be determined.
		return ".spool"
	}
	return filepath.Join(homeDir, ".spool")
}

// GetSpoolSubDir returns a subdirectory within the spool data directory.
// Example: GetSpoolSubDir("logs") returns ~/.spool/logs.
func GetSpoolSubDir(subdir string) string {
	return filepath.Join(GetSpoolDataDir(), subdir)
}

// expandPath expands ~ and resolves to an absolute path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
