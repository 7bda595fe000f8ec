package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"animator/internal/domain"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "manim-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newRequest(t *testing.T) Request {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir(), "job-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	script := "from manim import *\nclass Bounce(Scene):\n    def construct(self):\n        pass\n"
	file, err := ws.WriteScript(script)
	if err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	return Request{
		Workspace:  ws.Dir,
		ScriptFile: file,
		SceneName:  SceneName(script),
		OutputName: domain.VideoName("job-1"),
		Quality:    QualityLow,
	}
}

const writeArtifact = `media=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --media_dir) media="$2"; shift ;;
    -o) out="$2"; shift ;;
  esac
  shift
done
mkdir -p "$media/videos/scene/480p15"
printf 'video' > "$media/videos/scene/480p15/$out"
echo "rendered"
`

func TestLocalRendererSuccess(t *testing.T) {
	r := NewLocalRenderer(writeStub(t, writeArtifact), 10*time.Second, zerolog.Nop())
	req := newRequest(t)

	res, err := r.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if res.VideoPath != ArtifactPath(req) {
		t.Fatalf("VideoPath = %q, want %q", res.VideoPath, ArtifactPath(req))
	}
	data, err := os.ReadFile(res.VideoPath)
	if err != nil || string(data) != "video" {
		t.Fatalf("artifact content = %q, err %v", data, err)
	}
	if !strings.Contains(res.Stdout, "rendered") {
		t.Fatalf("stdout not captured: %q", res.Stdout)
	}
}

func TestLocalRendererTimeout(t *testing.T) {
	r := NewLocalRenderer(writeStub(t, "exec sleep 5\n"), 200*time.Millisecond, zerolog.Nop())
	req := newRequest(t)

	start := time.Now()
	_, err := r.Render(context.Background(), req)
	if time.Since(start) > 4*time.Second {
		t.Fatal("renderer was not stopped at the timeout")
	}
	var rerr *Error
	if !errors.As(err, &rerr) || !rerr.Timeout {
		t.Fatalf("err = %v, want timeout", err)
	}
	if !errors.Is(err, domain.ErrRenderFailed) {
		t.Fatal("timeout should classify as render failure")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestLocalRendererFailures(t *testing.T) {
	cases := []struct {
		name     string
		stub     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "non-zero exit",
			stub:     "echo 'Traceback' >&2\necho 'NameError: Circle2' >&2\nexit 3\n",
			wantCode: 3,
			wantMsg:  "NameError: Circle2",
		},
		{
			name:    "missing artifact",
			stub:    "exit 0\n",
			wantMsg: "expected output",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewLocalRenderer(writeStub(t, tc.stub), 10*time.Second, zerolog.Nop())
			_, err := r.Render(context.Background(), newRequest(t))
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if rerr.ExitCode != tc.wantCode {
				t.Fatalf("ExitCode = %d, want %d", rerr.ExitCode, tc.wantCode)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("message %q does not contain %q", err.Error(), tc.wantMsg)
			}
			if got := domain.PublicError(err); !strings.HasPrefix(got, "Render failed: ") {
				t.Fatalf("PublicError = %q", got)
			}
		})
	}
}

func TestSceneName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		script string
		want   string
	}{
		{script: "class Intro(Scene):\n    pass", want: "Intro"},
		{script: "class Spin(ThreeDScene):\n    pass", want: "Spin"},
		{script: "class Helper:\n    pass\nclass Main(MovingCameraScene):\n    pass", want: "Main"},
		{script: "print('no scene')", want: FallbackScene},
	}
	for _, tc := range cases {
		if got := SceneName(tc.script); got != tc.want {
			t.Errorf("SceneName(%q) = %q, want %q", tc.script, got, tc.want)
		}
	}
}

func TestArgsAndArtifactPath(t *testing.T) {
	req := Request{Workspace: "/tmp/ws", ScriptFile: "scene.py", SceneName: "Intro", OutputName: "animation_1.mp4", Quality: QualityHigh}
	got := strings.Join(args(req, "/manim"), " ")
	want := "-qh --disable_caching --format mp4 --media_dir /manim/media -o animation_1.mp4 /manim/scene.py Intro"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
	if p := ArtifactPath(req); p != filepath.Join("/tmp/ws", "media", "videos", "scene", "1080p60", "animation_1.mp4") {
		t.Fatalf("ArtifactPath = %q", p)
	}
}

func TestWorkspaceRemove(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "job-2", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if _, err := ws.WriteScript("print(1)"); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	ws.Remove()
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace still present: %v", err)
	}
}

func TestTailKeepsLastBytes(t *testing.T) {
	tl := newTail(4)
	_, _ = tl.Write([]byte("abc"))
	_, _ = tl.Write([]byte("defg"))
	if got := tl.String(); got != "defg" {
		t.Fatalf("tail = %q", got)
	}
}

func TestParseQuality(t *testing.T) {
	tests := map[string]Quality{
		"":        QualityLow,
		"low":     QualityLow,
		" HIGH ":  QualityHigh,
		"medium":  QualityMedium,
		"ultra4k": QualityLow,
	}
	for in, want := range tests {
		if got := ParseQuality(in); got != want {
			t.Errorf("ParseQuality(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSelectsMode(t *testing.T) {
	for _, mode := range []string{"", "docker", "local"} {
		if _, err := New(mode, "manimcommunity/manim", "manim", time.Minute, zerolog.Nop()); err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
	}
	if _, err := New("k8s", "", "", time.Minute, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestDockerArgsRunAsWorkerUser(t *testing.T) {
	req := Request{Workspace: "/tmp/ws", ScriptFile: "scene.py", SceneName: "Intro", OutputName: "animation_1.mp4"}

	got := strings.Join(dockerArgs("manimcommunity/manim:stable", "1001:1001", req), " ")
	want := "run --rm --network none --user 1001:1001 -e HOME=/manim -v /tmp/ws:/manim -w /manim manimcommunity/manim:stable manim"
	if got != want {
		t.Fatalf("dockerArgs = %q, want %q", got, want)
	}

	got = strings.Join(dockerArgs("img", "", req), " ")
	if strings.Contains(got, "--user") {
		t.Fatalf("dockerArgs without ids must not pass --user: %q", got)
	}
}

func TestDockerRendererUsesProcessIDs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uid/gid are not defined on windows")
	}
	r := NewDockerRenderer("", time.Minute, zerolog.Nop())
	argv := strings.Join(r.prefix(Request{Workspace: "/tmp/ws"}), " ")
	want := fmt.Sprintf("--user %d:%d", os.Getuid(), os.Getgid())
	if !strings.Contains(argv, want) {
		t.Fatalf("argv %q missing %q", argv, want)
	}
}
