package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scriptrun/runnerd/internal/shared/id"
)

// Staging writes scripts to a private temp directory and removes them once
// execution has provably finished. Removal is best-effort: a file that is
// already gone is not an error.
type Staging struct {
	dir    string
	logger *zap.Logger
}

// NewStaging creates a staging area rooted at dir. An empty dir defaults to
// a "runnerd" subdirectory of the OS temp directory.
func NewStaging(dir string, logger *zap.Logger) *Staging {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "runnerd")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Staging{dir: dir, logger: logger}
}

// Dir returns the staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// Write stores a script under a unique name with the given extension and
// returns its path. The staging directory is created on first use.
func (s *Staging) Write(script, ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	path := filepath.Join(s.dir, id.Default().GenerateString()+ext)
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		return "", fmt.Errorf("failed to stage script: %w", err)
	}

	return path, nil
}

// Remove deletes a staged script. Missing files are swallowed silently;
// other failures are logged and otherwise ignored.
func (s *Staging) Remove(path string) {
	if path == "" {
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove staged script",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}
