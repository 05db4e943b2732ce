package repository

import (
	"context"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/activitymap"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityLog persists normalized activity. It implements authflow.ActivitySink.
type ActivityLog struct {
	repo repository.Repository[*ActivityModel]
	opts []activitymap.Option
}

// NewActivityLog creates a log; opts are applied to every normalized record.
func NewActivityLog(db bun.IDB, opts ...activitymap.Option) *ActivityLog {
	handlers := repository.ModelHandlers[*ActivityModel]{
		NewRecord: func() *ActivityModel {
			return &ActivityModel{}
		},
		GetID: func(record *ActivityModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityModel, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "actor_id"
		},
	}
	return &ActivityLog{
		repo: repository.NewRepository(db, handlers),
		opts: opts,
	}
}

// Record implements authflow.ActivitySink.
func (l *ActivityLog) Record(ctx context.Context, event authflow.ActivityEvent) error {
	n := activitymap.Normalize(event, l.opts...)
	_, err := l.repo.Create(ctx, &ActivityModel{
		ActorID:    n.ActorID,
		Verb:       n.Verb,
		ObjectType: n.ObjectType,
		ObjectID:   n.ObjectID,
		Channel:    n.Channel,
		Metadata:   n.Metadata,
		OccurredAt: n.OccurredAt.UTC(),
	})
	return err
}

// Recent returns up to limit records, newest first.
func (l *ActivityLog) Recent(ctx context.Context, limit int) ([]activitymap.Normalized, error) {
	return l.list(ctx, limit)
}

// ForActor returns up to limit records of actorID, newest first.
func (l *ActivityLog) ForActor(ctx context.Context, actorID string, limit int) ([]activitymap.Normalized, error) {
	return l.list(ctx, limit, repository.SelectBy("actor_id", "=", actorID))
}

func (l *ActivityLog) list(ctx context.Context, limit int, criteria ...repository.SelectCriteria) ([]activitymap.Normalized, error) {
	if limit <= 0 {
		limit = 25
	}
	criteria = append(criteria,
		repository.Paginate(limit, 0),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("occurred_at DESC")
		}),
	)
	models, _, err := l.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]activitymap.Normalized, 0, len(models))
	for _, m := range models {
		out = append(out, activitymap.Normalized{
			ActorID:    m.ActorID,
			Verb:       m.Verb,
			ObjectType: m.ObjectType,
			ObjectID:   m.ObjectID,
			Channel:    m.Channel,
			Metadata:   m.Metadata,
			OccurredAt: m.OccurredAt,
		})
	}
	return out, nil
}
