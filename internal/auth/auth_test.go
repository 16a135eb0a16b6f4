package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/backend"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/store"
)

type memCreds struct {
	cred    store.Credential
	ok      bool
	deletes int
}

func (m *memCreds) SaveCredential(c store.Credential) error {
	m.cred, m.ok = c, true
	return nil
}

func (m *memCreds) LoadCredential() (store.Credential, bool, error) {
	return m.cred, m.ok, nil
}

func (m *memCreds) DeleteCredential() error {
	m.cred, m.ok = store.Credential{}, false
	m.deletes++
	return nil
}

type fakeAuthenticator struct {
	token string
	err   error
}

func (f fakeAuthenticator) Login(context.Context, string, string) (backend.Token, error) {
	if f.err != nil {
		return backend.Token{}, f.err
	}
	return backend.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "mod",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestLoginStoresCredential(t *testing.T) {
	creds := &memCreds{}
	s, err := NewSession(creds, nil, nil)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signed(t, exp)
	require.NoError(t, s.Login(context.Background(), fakeAuthenticator{token: token}, "mod", "pw"))

	assert.True(t, s.Authenticated())
	assert.Equal(t, token, s.Token())
	assert.Equal(t, "mod", s.Username())
	assert.Equal(t, token, creds.cred.Token)

	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestLoginFailureKeepsState(t *testing.T) {
	s, err := NewSession(&memCreds{}, nil, nil)
	require.NoError(t, err)

	err = s.Login(context.Background(), fakeAuthenticator{err: apierr.ErrUnauthorized}, "mod", "bad")
	assert.ErrorIs(t, err, apierr.ErrUnauthorized)
	assert.False(t, s.Authenticated())
}

func TestSessionRestoresStoredCredential(t *testing.T) {
	creds := &memCreds{cred: store.Credential{Token: "opaque", Username: "mod"}, ok: true}
	s, err := NewSession(creds, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "opaque", s.Token())
	_, ok := s.ExpiresAt()
	assert.False(t, ok, "opaque tokens carry no expiry")
}

func TestExpiredTokenIsNotSent(t *testing.T) {
	creds := &memCreds{cred: store.Credential{Token: signed(t, time.Now().Add(-time.Minute))}, ok: true}
	s, err := NewSession(creds, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, s.Token())
	assert.False(t, s.Authenticated())
}

func TestForceLogoutIsIdempotent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("auth.", 8)
	defer unsub()

	creds := &memCreds{cred: store.Credential{Token: "opaque", Username: "mod"}, ok: true}
	s, err := NewSession(creds, b, nil)
	require.NoError(t, err)

	reason := errors.New("401 from queue")
	s.ForceLogout(reason)
	s.ForceLogout(reason)

	assert.False(t, s.Authenticated())
	assert.Equal(t, 1, creds.deletes)
	require.Len(t, ch, 1)
	evt := <-ch
	assert.Equal(t, bus.KindAuthLoggedOut, evt.Kind)
	out := evt.Payload.(LoggedOut)
	assert.Equal(t, "mod", out.Username)
	assert.ErrorIs(t, out.Reason, reason)
}

func TestLogout(t *testing.T) {
	creds := &memCreds{cred: store.Credential{Token: "opaque"}, ok: true}
	s, err := NewSession(creds, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Logout())
	assert.False(t, s.Authenticated())
	assert.False(t, creds.ok)
}
