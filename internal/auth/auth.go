// Package auth holds the moderator's credential for one profile and turns
// a rejected credential into a logout everyone can observe.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/backend"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/store"
)

// ErrNotLoggedIn is returned by operations that need a credential.
var ErrNotLoggedIn = errors.New("not logged in")

// CredentialStore persists the credential between runs.
type CredentialStore interface {
	SaveCredential(c store.Credential) error
	LoadCredential() (store.Credential, bool, error)
	DeleteCredential() error
}

// Authenticator exchanges a username and password for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (backend.Token, error)
}

// LoggedOut is the payload of auth.logged_out events. Reason is nil for a
// logout the user asked for.
type LoggedOut struct {
	Username string
	Reason   error
}

// Session is the current credential. It is safe for concurrent use and
// implements backend.TokenSource.
type Session struct {
	creds  CredentialStore
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	cred    store.Credential
	expires time.Time
}

// NewSession loads any stored credential.
func NewSession(creds CredentialStore, b *bus.Bus, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{creds: creds, bus: b, logger: logger, now: time.Now}
	if creds == nil {
		return s, nil
	}
	c, ok, err := creds.LoadCredential()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if ok {
		s.cred = c
		s.expires = tokenExpiry(c.Token)
	}
	return s, nil
}

// Token returns the bearer token, or "" when logged out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() {
		return ""
	}
	return s.cred.Token
}

// Authenticated reports whether a usable credential is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Username returns the logged in moderator's name.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Username
}

// ExpiresAt returns the token's exp claim when it carries one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires, !s.expires.IsZero()
}

// Login authenticates against the backend and stores the new credential.
func (s *Session) Login(ctx context.Context, a Authenticator, username, password string) error {
	tok, err := a.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login as %s: %w", username, err)
	}

	c := store.Credential{
		Token:     tok.AccessToken,
		TokenType: tok.TokenType,
		Username:  username,
		CreatedAt: s.now(),
	}
	if s.creds != nil {
		if err := s.creds.SaveCredential(c); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
	}

	s.mu.Lock()
	s.cred = c
	s.expires = tokenExpiry(c.Token)
	s.mu.Unlock()

	s.logger.Info("logged in", zap.String("username", username))
	s.bus.Emit(bus.KindAuthLoggedIn, username)
	return nil
}

// Logout discards the credential at the user's request.
func (s *Session) Logout() error {
	return s.clear(nil)
}

// ForceLogout discards the credential after the backend rejected it. Calls
// after the first are no-ops until the next Login.
func (s *Session) ForceLogout(reason error) {
	if err := s.clear(reason); err != nil {
		s.logger.Error("failed to delete credential", zap.Error(err))
	}
}

func (s *Session) clear(reason error) error {
	s.mu.Lock()
	if s.cred.Token == "" {
		s.mu.Unlock()
		return nil
	}
	username := s.cred.Username
	s.cred = store.Credential{}
	s.expires = time.Time{}
	s.mu.Unlock()

	var err error
	if s.creds != nil {
		err = s.creds.DeleteCredential()
	}

	if reason != nil {
		s.logger.Warn("session expired, logged out", zap.String("username", username), zap.Error(reason))
	} else {
		s.logger.Info("logged out", zap.String("username", username))
	}
	s.bus.Emit(bus.KindAuthLoggedOut, LoggedOut{Username: username, Reason: reason})
	return err
}

func (s *Session) expiredLocked() bool {
	return !s.expires.IsZero() && !s.now().Before(s.expires)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on validity. Opaque tokens have no expiry.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
