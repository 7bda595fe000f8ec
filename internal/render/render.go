// Package render runs the Manim renderer against a generated script inside a
// per-job workspace and locates the produced video.
package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"animator/internal/domain"
)

// FallbackScene is used when the script does not declare a Scene subclass.
const FallbackScene = "GeneratedScene"

// ScriptFile is the file name the generated code is written to.
const ScriptFile = "scene.py"

const tailSize = 4 << 10

// Quality maps to the renderer's -q flag and its output directory name.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality defaults to low for unknown values.
func ParseQuality(s string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case QualityMedium:
		return QualityMedium
	case QualityHigh:
		return QualityHigh
	default:
		return QualityLow
	}
}

func (q Quality) flag() string {
	switch q {
	case QualityMedium:
		return "-qm"
	case QualityHigh:
		return "-qh"
	default:
		return "-ql"
	}
}

func (q Quality) dir() string {
	switch q {
	case QualityMedium:
		return "720p30"
	case QualityHigh:
		return "1080p60"
	default:
		return "480p15"
	}
}

// Request describes one render. Workspace must contain ScriptFile.
type Request struct {
	Workspace  string
	ScriptFile string
	SceneName  string
	OutputName string
	Quality    Quality
}

// Result points at the produced artifact on the local filesystem.
type Result struct {
	VideoPath string
	Duration  time.Duration
	Stdout    string
	Stderr    string
}

// Renderer executes a render. Implementations must stop the process when
// ctx is done or their own timeout elapses.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// Error carries the tail of the renderer's output.
type Error struct {
	Timeout  bool
	Limit    time.Duration
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render timed out after %s", e.Limit)
	}
	msg := "renderer exited"
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("renderer exited with code %d", e.ExitCode)
	}
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrRenderFailed}
	}
	return []error{domain.ErrRenderFailed, e.Err}
}

var sceneClass = regexp.MustCompile(`(?m)^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*(?:[A-Za-z_][A-Za-z0-9_.]*)?Scene\s*\)`)

// SceneName finds the first class deriving from a Scene type.
func SceneName(script string) string {
	if m := sceneClass.FindStringSubmatch(script); m != nil {
		return m[1]
	}
	return FallbackScene
}

// ArtifactPath is where the renderer writes the video for req.
func ArtifactPath(req Request) string {
	stem := strings.TrimSuffix(filepath.Base(req.ScriptFile), filepath.Ext(req.ScriptFile))
	return filepath.Join(req.Workspace, "media", "videos", stem, req.Quality.dir(), req.OutputName)
}

// args builds the renderer argument list with paths rooted at root, which is
// the workspace as seen by the renderer process.
func args(req Request, root string) []string {
	return []string{
		req.Quality.flag(),
		"--disable_caching",
		"--format", "mp4",
		"--media_dir", filepath.ToSlash(filepath.Join(root, "media")),
		"-o", req.OutputName,
		filepath.ToSlash(filepath.Join(root, req.ScriptFile)),
		req.SceneName,
	}
}

func validate(req Request) error {
	if req.Workspace == "" || req.ScriptFile == "" || req.OutputName == "" {
		return errors.New("render: workspace, script and output are required")
	}
	if req.SceneName == "" {
		return errors.New("render: scene name is required")
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
