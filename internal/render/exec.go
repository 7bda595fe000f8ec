package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CommandRenderer runs the renderer as a child process, either a local
// binary or inside a throwaway container.
type CommandRenderer struct {
	binary  string
	prefix  func(req Request) []string
	root    func(req Request) string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewLocalRenderer invokes binary directly with workspace paths.
func NewLocalRenderer(binary string, timeout time.Duration, logger zerolog.Logger) *CommandRenderer {
	if binary == "" {
		binary = "manim"
	}
	return &CommandRenderer{
		binary:  binary,
		prefix:  func(Request) []string { return nil },
		root:    func(req Request) string { return req.Workspace },
		timeout: timeout,
		logger:  logger.With().Str("component", "render").Str("mode", "local").Logger(),
	}
}

// NewDockerRenderer mounts the workspace at /manim in image with networking
// disabled. The container runs as the worker's uid:gid so it can write into
// the workspace, which is private to that user.
func NewDockerRenderer(image string, timeout time.Duration, logger zerolog.Logger) *CommandRenderer {
	if image == "" {
		image = "manimcommunity/manim:stable"
	}
	user := processUser()
	return &CommandRenderer{
		binary:  "docker",
		prefix:  func(req Request) []string { return dockerArgs(image, user, req) },
		root:    func(Request) string { return "/manim" },
		timeout: timeout,
		logger:  logger.With().Str("component", "render").Str("mode", "docker").Logger(),
	}
}

func dockerArgs(image, user string, req Request) []string {
	argv := []string{"run", "--rm", "--network", "none"}
	if user != "" {
		// HOME must be writable for an arbitrary uid; manim keeps its caches there.
		argv = append(argv, "--user", user, "-e", "HOME=/manim")
	}
	return append(argv,
		"-v", req.Workspace+":/manim",
		"-w", "/manim",
		image, "manim",
	)
}

// processUser is "uid:gid" of the worker, or empty where ids do not exist.
func processUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

func (r *CommandRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	argv := append(r.prefix(req), args(req, r.root(req))...)
	cmd := exec.CommandContext(runCtx, r.binary, argv...)
	cmd.Dir = req.Workspace
	cmd.WaitDelay = 5 * time.Second
	stdout := newTail(tailSize)
	stderr := newTail(tailSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Info().Str("scene", req.SceneName).Str("workspace", req.Workspace).Msg("render started")
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		rerr := &Error{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			rerr.Timeout = true
			rerr.Limit = r.timeout
		} else if ctx.Err() != nil {
			rerr.Err = ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rerr.ExitCode = exitErr.ExitCode()
		}
		r.logger.Warn().Err(rerr).Dur("elapsed", elapsed).Msg("render failed")
		return nil, rerr
	}

	video := ArtifactPath(req)
	if _, statErr := os.Stat(video); statErr != nil {
		return nil, &Error{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    fmt.Errorf("expected output %s: %w", video, statErr),
		}
	}
	r.logger.Info().Dur("elapsed", elapsed).Msg("render finished")
	return &Result{VideoPath: video, Duration: elapsed, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// tail keeps the last n bytes written to it.
type tail struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTail(n int) *tail { return &tail{n: n} }

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.n; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

var _ Renderer = (*CommandRenderer)(nil)

// New selects the renderer for mode ("docker" or "local").
func New(mode, image, binary string, timeout time.Duration, logger zerolog.Logger) (Renderer, error) {
	switch mode {
	case "docker", "":
		return NewDockerRenderer(image, timeout, logger), nil
	case "local":
		return NewLocalRenderer(binary, timeout, logger), nil
	default:
		return nil, fmt.Errorf("render: unsupported mode %q", mode)
	}
}
