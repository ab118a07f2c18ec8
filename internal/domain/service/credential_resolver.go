package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/repository"
)

// Decrypter turns a stored secret into its plaintext form. Encryption at
// rest is handled outside this service, so the default is identity.
type Decrypter func(ciphertext string) (string, error)

// CredentialResolver returns the decrypted credential entry matching a
// requested exchange, or a typed error the orchestrator can fail fast on.
// Read-only: the credential write path lives in the account-settings
// surface, not here.
type CredentialResolver struct {
	source  repository.CredentialSource
	decrypt Decrypter
}

func NewCredentialResolver(source repository.CredentialSource, decrypt Decrypter) *CredentialResolver {
	if decrypt == nil {
		decrypt = func(s string) (string, error) { return s, nil }
	}
	return &CredentialResolver{source: source, decrypt: decrypt}
}

// Resolve finds the user's credential for exchange.
// Errors: ErrNotConfigured when no set exists, no entry matches, or sync
// is disabled for the entry; ErrIncompleteCredentials when the matched
// entry lacks a key or secret.
func (r *CredentialResolver) Resolve(ctx context.Context, userID, exchange string) (*model.Credential, error) {
	creds, err := r.source.GetCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	for _, c := range creds {
		if !strings.EqualFold(c.Exchange, exchange) {
			continue
		}
		if !c.SyncEnabled {
			return nil, fmt.Errorf("%w: sync disabled for %s", model.ErrNotConfigured, exchange)
		}

		key, err := r.decrypt(c.APIKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt api key: %w", err)
		}
		secret, err := r.decrypt(c.APISecret)
		if err != nil {
			return nil, fmt.Errorf("decrypt api secret: %w", err)
		}
		if key == "" || secret == "" {
			return nil, fmt.Errorf("%w: %s", model.ErrIncompleteCredentials, exchange)
		}

		return &model.Credential{
			Exchange:    c.Exchange,
			APIKey:      key,
			APISecret:   secret,
			SyncEnabled: true,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", model.ErrNotConfigured, exchange)
}
