package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-authflow"
)

// LinkPolicy decides which federated identities may open a session.
type LinkPolicy struct {
	// AllowSignUp lets identities without a linked account create one.
	AllowSignUp bool
	// RequireEmailVerified rejects identities whose provider email is unverified.
	RequireEmailVerified bool
}

// PolicyAutoCreate links unknown identities on first sign in.
func PolicyAutoCreate() LinkPolicy {
	return LinkPolicy{AllowSignUp: true, RequireEmailVerified: true}
}

// PolicyRejectUnknown only admits identities that are already linked.
func PolicyRejectUnknown() LinkPolicy {
	return LinkPolicy{AllowSignUp: false, RequireEmailVerified: true}
}

// Linker is an IdentityHandler that records which local account each
// federated subject maps to before handing the identity to the session
// handler.
type Linker struct {
	store    AccountStore
	sessions IdentityHandler
	policy   LinkPolicy
	logger   authflow.Logger
	now      func() time.Time
}

// LinkerOption customizes a Linker.
type LinkerOption func(*Linker)

// WithLinkerLogger overrides the linker logger.
func WithLinkerLogger(logger authflow.Logger) LinkerOption {
	return func(l *Linker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLinkerClock overrides the time source used for link timestamps.
func WithLinkerClock(now func() time.Time) LinkerOption {
	return func(l *Linker) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLinker builds a linker over store that opens sessions through sessions.
func NewLinker(store AccountStore, sessions IdentityHandler, policy LinkPolicy, opts ...LinkerOption) *Linker {
	l := &Linker{
		store:    store,
		sessions: sessions,
		policy:   policy,
		logger:   authflow.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// SignInFederated implements IdentityHandler.
func (l *Linker) SignInFederated(ctx context.Context, id Identity) (*authflow.AuthUser, error) {
	if l.policy.RequireEmailVerified && !id.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	provider := providerKey(id.Provider)

	existing, err := l.store.FindBySubject(ctx, provider, id.Subject)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		if !l.policy.AllowSignUp {
			return nil, ErrSignupNotAllowed
		}
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}

	user, err := l.sessions.SignInFederated(ctx, id)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	account := existing
	if account == nil {
		account = &LinkedAccount{
			Provider:  provider,
			Subject:   id.Subject,
			CreatedAt: now,
		}
		l.logger.Info("federated account linked", "provider", provider, "username", user.Username)
	}
	account.Username = user.Username
	account.Email = id.Email
	account.Name = id.Name
	account.LastSignInAt = now
	account.UpdatedAt = now

	if err := l.store.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save linked account: %w", err)
	}
	return user, nil
}

// Accounts lists the providers linked to username.
func (l *Linker) Accounts(ctx context.Context, username string) ([]*LinkedAccount, error) {
	return l.store.FindByUsername(ctx, username)
}

// Unlink removes the link between username and provider.
func (l *Linker) Unlink(ctx context.Context, username, provider string) error {
	return l.store.Unlink(ctx, username, providerKey(provider))
}
