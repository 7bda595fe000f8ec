package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"animator/internal/conversation"
	"animator/internal/domain"
	"animator/internal/middleware"
	"animator/internal/queue"
	"animator/internal/storage"
	"animator/internal/submission"
)

const maxBodyBytes = 64 << 10

// Admitter is the cheap pre-flight quota check.
type Admitter interface {
	Admit(ctx context.Context, userID string) error
}

type Submitter interface {
	Submit(ctx context.Context, req submission.Request) (*submission.Result, error)
}

type JobReader interface {
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
}

type Conversations interface {
	Create(ctx context.Context, req conversation.CreateRequest) (*domain.Conversation, error)
	Get(ctx context.Context, id, userID string) (*conversation.Detail, error)
	Delete(ctx context.Context, id, userID string) (storage.DeleteReport, error)
}

type App struct {
	Admission     Admitter
	Submissions   Submitter
	Publisher     queue.Publisher
	Jobs          JobReader
	Conversations Conversations
	// Ping reports dependency health for /healthz; nil means always healthy.
	Ping   func(ctx context.Context) error
	Logger zerolog.Logger

	validate *validator.Validate
}

func NewApp(app App) *App {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	app.validate = v
	return &app
}

func (a *App) logger(r *http.Request) *zerolog.Logger {
	l := middleware.RequestLogger(r.Context(), a.Logger)
	return &l
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// decode reads a bounded JSON body into dst and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidInput)
	}
	if err := a.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// fail maps a domain error onto a status code and a non-leaking message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var qe *domain.QuotaError
	switch {
	case errors.As(err, &qe):
		a.error(w, http.StatusTooManyRequests, qe.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusTooManyRequests, "Rate limit exceeded.")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
	case errors.Is(err, domain.ErrMissingIdentity):
		a.error(w, http.StatusBadRequest, "userId is required")
	case errors.Is(err, domain.ErrUserNotFound):
		a.error(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrConversationNotFound):
		a.error(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "Not found")
	default:
		a.logger(r).Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "Internal server error")
	}
}
