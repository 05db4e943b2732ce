package repository

import (
	"context"

	"github.com/goliatone/go-authflow/social"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkedAccounts implements social.AccountStore using Bun.
type LinkedAccounts struct {
	repo repository.Repository[*LinkedAccountModel]
}

// NewLinkedAccounts creates a new store.
func NewLinkedAccounts(db bun.IDB) *LinkedAccounts {
	handlers := repository.ModelHandlers[*LinkedAccountModel]{
		NewRecord: func() *LinkedAccountModel {
			return &LinkedAccountModel{}
		},
		GetID: func(record *LinkedAccountModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *LinkedAccountModel, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "username"
		},
	}
	return &LinkedAccounts{repo: repository.NewRepository(db, handlers)}
}

// FindBySubject implements social.AccountStore.
func (r *LinkedAccounts) FindBySubject(ctx context.Context, provider, subject string) (*social.LinkedAccount, error) {
	model, err := r.repo.Get(ctx,
		repository.SelectBy("provider", "=", provider),
		repository.SelectBy("subject", "=", subject),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, social.ErrAccountNotFound
		}
		return nil, err
	}
	return toLinkedAccount(model), nil
}

// FindByUsername implements social.AccountStore.
func (r *LinkedAccounts) FindByUsername(ctx context.Context, username string) ([]*social.LinkedAccount, error) {
	models, _, err := r.repo.List(ctx,
		repository.SelectBy("username", "=", username),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("created_at ASC")
		}),
	)
	if err != nil {
		return nil, err
	}
	accounts := make([]*social.LinkedAccount, 0, len(models))
	for _, m := range models {
		accounts = append(accounts, toLinkedAccount(m))
	}
	return accounts, nil
}

// Save implements social.AccountStore. Accounts without an id are inserted
// and receive one.
func (r *LinkedAccounts) Save(ctx context.Context, account *social.LinkedAccount) error {
	model := fromLinkedAccount(account)
	if model.ID == uuid.Nil {
		created, err := r.repo.Create(ctx, model)
		if err != nil {
			return err
		}
		account.ID = created.ID.String()
		return nil
	}
	_, err := r.repo.Update(ctx, model)
	return err
}

// Unlink implements social.AccountStore.
func (r *LinkedAccounts) Unlink(ctx context.Context, username, provider string) error {
	return r.repo.DeleteWhere(ctx,
		repository.DeleteBy("username", "=", username),
		repository.DeleteBy("provider", "=", provider),
	)
}

func toLinkedAccount(m *LinkedAccountModel) *social.LinkedAccount {
	return &social.LinkedAccount{
		ID:           m.ID.String(),
		Provider:     m.Provider,
		Subject:      m.Subject,
		Username:     m.Username,
		Email:        m.Email,
		Name:         m.Name,
		LastSignInAt: m.LastSignInAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromLinkedAccount(a *social.LinkedAccount) *LinkedAccountModel {
	var id uuid.UUID
	if a.ID != "" {
		if parsed, err := uuid.Parse(a.ID); err == nil {
			id = parsed
		}
	}
	return &LinkedAccountModel{
		ID:           id,
		Provider:     a.Provider,
		Subject:      a.Subject,
		Username:     a.Username,
		Email:        a.Email,
		Name:         a.Name,
		LastSignInAt: a.LastSignInAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
