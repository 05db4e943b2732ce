package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-authflow/activitymap"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Manager exposes all repositories over one database.
type Manager struct {
	db       *bun.DB
	accounts *LinkedAccounts
	activity *ActivityLog
}

// Open connects to a SQLite database through the shim driver.
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// in-memory databases live and die with their connection
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewManager wires the repositories. opts shape stored activity records.
func NewManager(db *bun.DB, opts ...activitymap.Option) *Manager {
	return &Manager{
		db:       db,
		accounts: NewLinkedAccounts(db),
		activity: NewActivityLog(db, opts...),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}
	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}
	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Migrate creates the tables and indexes when missing.
func (m *Manager) Migrate(ctx context.Context) error {
	models := []any{
		(*LinkedAccountModel)(nil),
		(*ActivityModel)(nil),
	}
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	_, err := m.db.NewCreateIndex().
		Model((*LinkedAccountModel)(nil)).
		Index("uq_linked_accounts_subject").
		Unique().
		IfNotExists().
		Column("provider", "subject").
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = m.db.NewCreateIndex().
		Model((*ActivityModel)(nil)).
		Index("idx_activity_events_actor").
		IfNotExists().
		Column("actor_id", "occurred_at").
		Exec(ctx)
	return err
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Accounts() *LinkedAccounts {
	return m.accounts
}

func (m *Manager) Activity() *ActivityLog {
	return m.activity
}

func (m *Manager) Close() error {
	return m.db.Close()
}
