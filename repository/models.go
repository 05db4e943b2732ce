package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkedAccountModel is the Bun model for federated account links.
type LinkedAccountModel struct {
	bun.BaseModel `bun:"table:linked_accounts,alias:la"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Provider     string    `bun:"provider,notnull"`
	Subject      string    `bun:"subject,notnull"`
	Username     string    `bun:"username,notnull"`
	Email        string    `bun:"email"`
	Name         string    `bun:"name"`
	LastSignInAt time.Time `bun:"last_sign_in_at,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero"`
}

// ActivityModel is the Bun model for normalized activity records.
type ActivityModel struct {
	bun.BaseModel `bun:"table:activity_events,alias:ae"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	ActorID    string         `bun:"actor_id,notnull"`
	Verb       string         `bun:"verb,notnull"`
	ObjectType string         `bun:"object_type"`
	ObjectID   string         `bun:"object_id"`
	Channel    string         `bun:"channel"`
	Metadata   map[string]any `bun:"metadata,type:json"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}
