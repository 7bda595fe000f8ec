package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"animator/internal/infra"
	"animator/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
)

// Store keeps integration tokens in the database so operators can rotate
// them without redeploying workers.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

// Token returns "" without error when nothing is stored for provider.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetOpenAIAPIKey stores the key. props carries optional metadata such as
// the model or base URL the key belongs to.
func (s *Store) SetOpenAIAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("openai api key is required")
	}
	return s.upsert(ctx, ProviderOpenAI, key, props)
}

// ResolveOpenAIKey prefers the environment value and falls back to the
// stored token.
func (s *Store) ResolveOpenAIKey(ctx context.Context, envKey string) (string, error) {
	if key := strings.TrimSpace(envKey); key != "" {
		return key, nil
	}
	if s == nil {
		return "", nil
	}
	return s.OpenAIAPIKey(ctx)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
