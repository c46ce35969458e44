package remote

import (
	"errors"
	"fmt"

	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/store"
)

// ErrNoCredentials is returned when no session is stored locally. The
// caller must authenticate before issuing remote calls.
var ErrNoCredentials = errors.New("no stored credentials")

// TokenSource provides and persists the bearer credential pair. The client
// reads it on every request and writes it back after a silent refresh.
type TokenSource interface {
	// Credentials returns the current token pair, or ErrNoCredentials.
	Credentials() (*schema.Credentials, error)

	// Store durably replaces the token pair.
	Store(*schema.Credentials) error
}

// StoreTokenSource keeps credentials in the local store under the reserved
// credentials kind.
type StoreTokenSource struct {
	st *store.Store
}

// NewStoreTokenSource builds a TokenSource backed by the local store.
func NewStoreTokenSource(st *store.Store) *StoreTokenSource {
	return &StoreTokenSource{st: st}
}

// Credentials implements TokenSource.
func (s *StoreTokenSource) Credentials() (*schema.Credentials, error) {
	var creds schema.Credentials
	err := s.st.Load(schema.KindCredentials, schema.SingletonID, &creds)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// Store implements TokenSource.
func (s *StoreTokenSource) Store(creds *schema.Credentials) error {
	if err := s.st.Save(schema.KindCredentials, schema.SingletonID, creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Clear removes the stored session, if any.
func (s *StoreTokenSource) Clear() error {
	if err := s.st.Delete(schema.KindCredentials, schema.SingletonID); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
