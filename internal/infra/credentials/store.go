// Package credentials keeps provider API keys in the integration_tokens table
// so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"videojobs/internal/infra"
	"videojobs/internal/sqlinline"
)

// ProviderInference names the AI inference backend token.
const ProviderInference = "inference"

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// InferenceAPIKey returns the stored inference key, or "" when none is set.
func (s *Store) InferenceAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderInference)
}

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

// SetInferenceAPIKey stores key along with the endpoint it is valid for.
func (s *Store) SetInferenceAPIKey(ctx context.Context, key, baseURL string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("inference api key is required")
	}
	props := map[string]any{}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		props["base_url"] = baseURL
	}
	return s.upsert(ctx, ProviderInference, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
