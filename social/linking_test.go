package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccountStore struct {
	bySubject map[string]*LinkedAccount
	saves     int
	findErr   error
}

func accountKey(provider, subject string) string {
	return provider + "|" + subject
}

func (s *stubAccountStore) FindBySubject(_ context.Context, provider, subject string) (*LinkedAccount, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if acc, ok := s.bySubject[accountKey(provider, subject)]; ok {
		return acc, nil
	}
	return nil, ErrAccountNotFound
}

func (s *stubAccountStore) FindByUsername(_ context.Context, username string) ([]*LinkedAccount, error) {
	var out []*LinkedAccount
	for _, acc := range s.bySubject {
		if acc.Username == username {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (s *stubAccountStore) Save(_ context.Context, acc *LinkedAccount) error {
	if s.bySubject == nil {
		s.bySubject = map[string]*LinkedAccount{}
	}
	s.saves++
	s.bySubject[accountKey(acc.Provider, acc.Subject)] = acc
	return nil
}

func (s *stubAccountStore) Unlink(_ context.Context, username, provider string) error {
	for key, acc := range s.bySubject {
		if acc.Username == username && acc.Provider == provider {
			delete(s.bySubject, key)
		}
	}
	return nil
}

func sessionsFor(calls *int) IdentityHandler {
	return IdentityHandlerFunc(func(_ context.Context, id Identity) (*authflow.AuthUser, error) {
		*calls++
		return &authflow.AuthUser{Username: "google_" + id.Subject, UserID: "u-" + id.Subject}, nil
	})
}

var googleIdentity = Identity{
	Provider:      "Google",
	Subject:       "1234",
	Email:         "alice@example.com",
	EmailVerified: true,
	Name:          "Alice",
}

func TestLinkerCreatesLinkOnFirstSignIn(t *testing.T) {
	store := &stubAccountStore{}
	calls := 0
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLinker(store, sessionsFor(&calls), PolicyAutoCreate(), WithLinkerClock(func() time.Time { return now }))

	user, err := l.SignInFederated(context.Background(), googleIdentity)
	require.NoError(t, err)
	assert.Equal(t, "google_1234", user.Username)
	assert.Equal(t, 1, calls)

	acc := store.bySubject[accountKey("google", "1234")]
	require.NotNil(t, acc)
	assert.Equal(t, "google_1234", acc.Username)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.Equal(t, now, acc.CreatedAt)
	assert.Equal(t, now, acc.LastSignInAt)

	now = now.Add(time.Hour)
	_, err = l.SignInFederated(context.Background(), googleIdentity)
	require.NoError(t, err)
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, now.Add(-time.Hour), acc.CreatedAt)
	assert.Equal(t, now, acc.LastSignInAt)

	accounts, err := l.Accounts(context.Background(), "google_1234")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, l.Unlink(context.Background(), "google_1234", "Google"))
	assert.Empty(t, store.bySubject)
}

func TestLinkerPolicies(t *testing.T) {
	t.Run("unverified email", func(t *testing.T) {
		calls := 0
		l := NewLinker(&stubAccountStore{}, sessionsFor(&calls), PolicyAutoCreate())
		id := googleIdentity
		id.EmailVerified = false
		_, err := l.SignInFederated(context.Background(), id)
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Zero(t, calls)
	})

	t.Run("unknown identity rejected", func(t *testing.T) {
		calls := 0
		l := NewLinker(&stubAccountStore{}, sessionsFor(&calls), PolicyRejectUnknown())
		_, err := l.SignInFederated(context.Background(), googleIdentity)
		assert.ErrorIs(t, err, ErrSignupNotAllowed)
		assert.Zero(t, calls)
	})

	t.Run("known identity admitted", func(t *testing.T) {
		calls := 0
		store := &stubAccountStore{}
		require.NoError(t, store.Save(context.Background(), &LinkedAccount{Provider: "google", Subject: "1234", Username: "google_1234"}))
		l := NewLinker(store, sessionsFor(&calls), PolicyRejectUnknown())
		_, err := l.SignInFederated(context.Background(), googleIdentity)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("db down")
		calls := 0
		l := NewLinker(&stubAccountStore{findErr: boom}, sessionsFor(&calls), PolicyAutoCreate())
		_, err := l.SignInFederated(context.Background(), googleIdentity)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, calls)
	})
}
