package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/logger"
)

// LogListener writes one audit line per event.
// Without Logger the context logger is used.
type LogListener struct {
	Logger *zap.Logger
}

// Handle logs the batch outcome.
func (l LogListener) Handle(ctx context.Context, e *Event) {
	log := l.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}

	fields := []zap.Field{
		zap.String("event", e.Name),
		zap.String("entity", e.EntityType),
		zap.String("action", string(e.Action)),
		zap.Int("items", e.Batch.Len()),
		zap.String("status", string(e.Batch.Status())),
	}
	if n := len(e.Batch.Errors()); n > 0 {
		fields = append(fields, zap.Int("batch_errors", n))
	}
	log.Info("Domain batch processed", fields...)
}
