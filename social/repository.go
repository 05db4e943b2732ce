package social

import (
	"context"
	"time"
)

// LinkedAccount ties a federated subject to a local username.
type LinkedAccount struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Subject      string    `json:"subject"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	LastSignInAt time.Time `json:"last_sign_in_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountStore manages linked account persistence. FindBySubject returns
// ErrAccountNotFound when the subject was never linked.
type AccountStore interface {
	FindBySubject(ctx context.Context, provider, subject string) (*LinkedAccount, error)
	FindByUsername(ctx context.Context, username string) ([]*LinkedAccount, error)
	Save(ctx context.Context, account *LinkedAccount) error
	Unlink(ctx context.Context, username, provider string) error
}
