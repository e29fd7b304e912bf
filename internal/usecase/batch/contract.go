package batch

import (
	"context"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/event"
)

// ObjectManager stages entity changes and writes them to storage.
//
// Flush returns nil, a *domain.ConstraintViolationError whose violations
// reference the offending entities, or a plain error. Without an open
// transaction a flush is durable on its own.
type ObjectManager interface {
	Persist(ctx context.Context, e resource.Entity) error
	Remove(ctx context.Context, e resource.Entity) error
	Flush(ctx context.Context) error
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Detach(e resource.Entity)
	Identifier(e resource.Entity) string
	// FindByIDs loads entities of entityType, soft deleted ones included.
	FindByIDs(ctx context.Context, entityType string, ids []string) ([]resource.Entity, error)
}

// Validator checks an entity against its schema rules.
type Validator interface {
	Validate(ctx context.Context, e resource.Entity) []resource.Violation
}

// Dispatcher delivers batch events to listeners.
type Dispatcher interface {
	Dispatch(ctx context.Context, e *event.Event)
}

// Translator resolves message keys.
type Translator interface {
	Translate(key string, args ...any) string
}
