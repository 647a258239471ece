package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderQwen      = "qwen"
)

// Known lists the providers whose keys may be stored.
var Known = []string{ProviderOpenAI, ProviderGoogle, ProviderAnthropic, ProviderQwen}

// Store keeps provider API keys in the provider_credentials table. Keys set
// in the environment always win over stored ones.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores key for provider, replacing any previous key.
func (s *Store) SetToken(ctx context.Context, provider, key string, props map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !isKnown(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, props)
}

// Delete removes the stored key of provider, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, provider string) (bool, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !isKnown(provider) {
		return false, fmt.Errorf("unknown provider %q", provider)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteProviderCredential, provider)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Fill sets every empty entry of keys (provider -> key) from the store.
func (s *Store) Fill(ctx context.Context, keys map[string]string) error {
	for _, provider := range Known {
		if strings.TrimSpace(keys[provider]) != "" {
			continue
		}
		token, err := s.Token(ctx, provider)
		if err != nil {
			return fmt.Errorf("load %s token: %w", provider, err)
		}
		if token != "" {
			keys[provider] = token
		}
	}
	return nil
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
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, provider, token, raw)
	return err
}

func isKnown(provider string) bool {
	for _, p := range Known {
		if p == provider {
			return true
		}
	}
	return false
}
