package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Workspace is a private temporary directory for one job.
type Workspace struct {
	Dir    string
	logger zerolog.Logger
}

// NewWorkspace creates a directory under root (os.TempDir when empty).
func NewWorkspace(root, jobID string, logger zerolog.Logger) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("workspace root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "manim-"+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir, logger: logger}, nil
}

// WriteScript stores the script as ScriptFile and returns its name.
func (w *Workspace) WriteScript(script string) (string, error) {
	if err := os.WriteFile(filepath.Join(w.Dir, ScriptFile), []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return ScriptFile, nil
}

// Remove deletes the workspace. Failures are logged, never returned.
func (w *Workspace) Remove() {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		w.logger.Warn().Err(err).Str("dir", w.Dir).Msg("workspace cleanup failed")
	}
}
