package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/golang-jwt/jwt/v5"
)

// Token is the session credential pair issued by the auth service.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresIn    int64     `json:"expiresIn,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// NewToken builds a token. The expiry comes from expiresIn when the service
// sends it, otherwise from the access token's exp claim.
func NewToken(accessToken, refreshToken string, expiresIn int64) *Token {
	token := &Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    "bearer",
	}

	if expiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	} else if expiresAt, err := ExpiryFromJWT(accessToken); err == nil {
		token.ExpiresAt = expiresAt
	}

	return token
}

// Valid reports whether the token is present and not about to expire.
// A token without a known expiry is assumed valid until the server says otherwise.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// Credential converts the token to its persisted form.
func (t *Token) Credential() *rentals.Credential {
	return &rentals.Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}
}

// TokenFromCredential converts a persisted credential back to a token.
func TokenFromCredential(credential *rentals.Credential) *Token {
	if credential == nil || credential.AccessToken == "" {
		return nil
	}

	return &Token{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    credential.ExpiresAt,
	}
}

// ExpiryFromJWT reads the exp claim without verifying the signature.
func ExpiryFromJWT(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", constants.ErrInvalidJWTFormat, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", constants.ErrInvalidJWTFormat, err)
	}

	if exp == nil {
		return time.Time{}, constants.ErrNoExpirationClaim
	}

	return exp.Time, nil
}

// TokenStore holds the current token in memory.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// PersistentTokenStore keeps the token in memory and mirrors every change to
// a rentals.CredentialPersister. Persistence failures are logged, not returned:
// the in-memory session stays usable.
type PersistentTokenStore struct {
	store     *TokenStore
	persister rentals.CredentialPersister
	logger    rentals.Logger
}

// NewPersistentTokenStore creates a store. A nil persister keeps the token in
// memory only.
func NewPersistentTokenStore(persister rentals.CredentialPersister, logger rentals.Logger) *PersistentTokenStore {
	if logger == nil {
		logger = rentals.NopLogger{}
	}

	return &PersistentTokenStore{
		store:     NewTokenStore(),
		persister: persister,
		logger:    logger,
	}
}

// Load seeds the store from the persister.
func (s *PersistentTokenStore) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	credential, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	if token := TokenFromCredential(credential); token != nil {
		s.store.Set(token)
	}

	return nil
}

// Get returns the current token.
func (s *PersistentTokenStore) Get() *Token {
	return s.store.Get()
}

// AccessToken returns the current access token, or "" when signed out.
func (s *PersistentTokenStore) AccessToken() string {
	token := s.store.Get()
	if token == nil {
		return ""
	}

	return token.AccessToken
}

// Set replaces the token and persists it.
func (s *PersistentTokenStore) Set(ctx context.Context, token *Token) {
	s.store.Set(token)

	if s.persister == nil || token == nil {
		return
	}

	err := s.persister.Save(ctx, token.Credential())
	if err != nil {
		s.logger.Warn("Failed to persist credential", map[string]interface{}{"error": err.Error()})
	}
}

// Clear removes the token and its persisted copy.
func (s *PersistentTokenStore) Clear(ctx context.Context) {
	s.store.Clear()

	if s.persister == nil {
		return
	}

	err := s.persister.Delete(ctx)
	if err != nil {
		s.logger.Warn("Failed to delete persisted credential", map[string]interface{}{"error": err.Error()})
	}
}
