package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"animator/internal/domain"
)

type stubCompleter struct {
	text   string
	err    error
	system string
	user   string
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	s.system, s.user = system, user
	return s.text, s.err
}

func TestExtractScript(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "python fence",
			input: "Here you go:\n```python\nfrom manim import *\nclass A(Scene):\n    pass\n```\nEnjoy",
			want:  "from manim import *\nclass A(Scene):\n    pass\n",
		},
		{
			name:  "bare fence",
			input: "```\nfrom manim import *\n```",
			want:  "from manim import *\n",
		},
		{
			name:  "first block wins",
			input: "```python\nfirst()\n```\n```python\nsecond()\n```",
			want:  "first()\n",
		},
		{name: "no fence", input: "from manim import *", wantErr: true},
		{name: "empty fence", input: "```python\n\n```", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractScript(tc.input)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrGenerationInvalid) {
					t.Fatalf("err = %v, want ErrGenerationInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("script = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGeneratorGenerate(t *testing.T) {
	cases := []struct {
		name    string
		stub    *stubCompleter
		wantErr error
	}{
		{name: "ok", stub: &stubCompleter{text: "```python\nfrom manim import *\n```"}},
		{name: "transport error", stub: &stubCompleter{err: errors.New("boom")}, wantErr: domain.ErrGenerationEmpty},
		{name: "blank", stub: &stubCompleter{text: "  \n"}, wantErr: domain.ErrGenerationEmpty},
		{name: "prose only", stub: &stubCompleter{text: "I cannot do that."}, wantErr: domain.ErrGenerationInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script, err := NewGenerator(tc.stub).Generate(context.Background(), "  a bouncing ball ")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				if script != "" {
					t.Fatalf("script should be empty on error, got %q", script)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(script, "from manim import *") {
				t.Fatalf("script = %q", script)
			}
			if tc.stub.system != SystemInstruction {
				t.Fatal("system instruction not sent")
			}
			if tc.stub.user != "Generate Manim code for the following animation idea: a bouncing ball" {
				t.Fatalf("user message = %q", tc.stub.user)
			}
		})
	}
}
