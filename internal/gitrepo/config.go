// internal/gitrepo/config.go
package gitrepo

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"lfspull/internal/errors"
)

// ConfigPath returns the repository's config file inside the real .git
// directory.
func (r *Repo) ConfigPath() string {
	return filepath.Join(r.GitDir, "config")
}

// RemoteURL extracts the configured remote from the repository config.
// Matching is deliberately line-based rather than a full INI grammar:
// the first line containing "url" wins, its value is whatever follows
// the last "=", trimmed. Well-formed git configs behave as expected;
// unrelated malformed lines are ignored.
func (r *Repo) RemoteURL() (string, error) {
	configPath := r.ConfigPath()
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return "", errors.FileIO(configPath, err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.Contains(line, "url") {
			continue
		}
		parts := strings.Split(line, "=")
		return strings.TrimSpace(parts[len(parts)-1]), nil
	}

	return "", errors.New(errors.InvalidFormat, ".git/config contains no remote url")
}

// LFSRoot returns the directory holding the lfs object cache: the real
// .git directory unless an [lfs] section overrides it with a storage
// path. Config trouble never fails a pull here, it is logged and the
// default is used.
func (r *Repo) LFSRoot(logger *zap.Logger) string {
	configPath := r.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		return r.GitDir
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		logger.Warn("could not read git config",
			zap.String("path", configPath),
			zap.Error(err))
		return r.GitDir
	}

	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		if !strings.Contains(strings.TrimSpace(line), "[lfs]") {
			continue
		}
		for _, next := range lines[i+1:] {
			if value, ok := strings.CutPrefix(strings.TrimSpace(next), "storage = "); ok {
				logger.Debug("found git lfs storage path", zap.String("storage", value))
				return value
			}
		}
		break
	}

	return r.GitDir
}
