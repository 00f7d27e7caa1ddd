package cryptox

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/store"
)

// TokenKey is the store key holding the API token envelope.
const TokenKey = "api_token"

// TokenStore keeps the API token in a key/value store, always as a Vault
// envelope.
type TokenStore struct {
	vault *Vault
	store store.Store
}

func NewTokenStore(v *Vault, s store.Store) *TokenStore {
	return &TokenStore{vault: v, store: s}
}

// Save encrypts token and stores it without expiry.
func (t *TokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("save token: %w", common.ErrTokenNotFound)
	}
	if err := t.store.Set(ctx, TokenKey, []byte(t.vault.Encrypt(token)), 0); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Load returns the decrypted token. A missing or empty value is
// common.ErrTokenNotFound; a tampered envelope is common.ErrTokenDecryptionFailed.
func (t *TokenStore) Load(ctx context.Context) (string, error) {
	raw, err := t.store.Get(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if len(raw) == 0 {
		return "", common.ErrTokenNotFound
	}

	token, err := t.vault.Decrypt(string(raw))
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", common.ErrTokenNotFound
	}
	return token, nil
}

func (t *TokenStore) Clear(ctx context.Context) error {
	return t.store.Delete(ctx, TokenKey)
}
