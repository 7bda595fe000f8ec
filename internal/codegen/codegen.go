// Package codegen turns a natural-language animation idea into a Manim
// script by asking a chat-completion model for a single fenced code block.
package codegen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"animator/internal/domain"
)

// SystemInstruction constrains the model to one fenced block defining one
// scene with a construct method.
const SystemInstruction = "You are a helpful assistant that generates Manim Python code for 2D animations. " +
	"Provide only the Python code within a single Markdown code block, starting with ```python and ending with ```. " +
	"Include necessary imports like 'from manim import *'. " +
	"Define a single Scene class with a `construct` method. " +
	"Do not include any explanatory text, comments, or usage examples outside the code block."

// Completer is the chat-completion capability.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// UserMessage wraps the user's prompt for the model.
func UserMessage(prompt string) string {
	return "Generate Manim code for the following animation idea: " + strings.TrimSpace(prompt)
}

var fencedBlock = regexp.MustCompile("```(?:python|py)?[ \\t]*\\r?\\n?([\\s\\S]*?)\\s*```")

// ExtractScript returns the body of the first fenced code block.
func ExtractScript(text string) (string, error) {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("%w: no fenced code block in response", domain.ErrGenerationInvalid)
	}
	script := strings.TrimSpace(m[1])
	if script == "" {
		return "", fmt.Errorf("%w: fenced code block is empty", domain.ErrGenerationInvalid)
	}
	return script + "\n", nil
}

// Generator produces a script for a prompt.
type Generator struct {
	completer Completer
}

func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c}
}

// Generate returns ErrGenerationEmpty when the model call fails or returns
// nothing, and ErrGenerationInvalid when no usable code block is present.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.completer.Complete(ctx, SystemInstruction, UserMessage(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationEmpty, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrGenerationEmpty
	}
	return ExtractScript(text)
}
