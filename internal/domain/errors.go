package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingIdentity      = errors.New("missing user identity")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrPersistence          = errors.New("persistence failure")

	ErrGenerationEmpty    = errors.New("generation returned empty content")
	ErrGenerationInvalid  = errors.New("generation did not contain valid code")
	ErrRenderFailed       = errors.New("render failed")
	ErrUploadFailed       = errors.New("upload failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// QuotaError carries the limit that was hit so callers can report it.
type QuotaError struct {
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("Rate limit exceeded (%d/day).", e.Limit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

const maxPublicErrorLen = 240

// PublicError reduces a pipeline error to the short summary stored on the
// job row. Known categories get a fixed prefix; the detail is cut to its
// first line and a bounded length.
func PublicError(err error) string {
	if err == nil {
		return ""
	}
	var prefix string
	switch {
	case errors.Is(err, ErrGenerationEmpty):
		return "LLM returned empty content."
	case errors.Is(err, ErrGenerationInvalid):
		return "LLM did not generate valid Manim code."
	case errors.Is(err, ErrRenderFailed):
		prefix = "Render failed"
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrStorageUnavailable):
		return "Failed to upload rendered video."
	case errors.Is(err, ErrPersistence):
		return "Internal error while saving job state."
	default:
		prefix = "Processing failed"
	}

	detail := strings.TrimPrefix(err.Error(), ErrRenderFailed.Error()+": ")
	if idx := strings.IndexAny(detail, "\r\n"); idx >= 0 {
		detail = detail[:idx]
	}
	msg := prefix + ": " + strings.TrimSpace(detail)
	return truncate(msg, maxPublicErrorLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
