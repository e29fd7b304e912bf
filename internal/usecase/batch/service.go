package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/domain/action"
	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/event"
	"github.com/kailas-cloud/resdomain/internal/i18n"
	"github.com/kailas-cloud/resdomain/internal/usecase/errmap"
)

// Service runs batch persist actions for one entity type with per-item
// status and error reporting.
type Service struct {
	entityType   string
	om           ObjectManager
	validator    Validator
	events       Dispatcher
	tr           Translator
	errs         *errmap.Mapper
	logger       *zap.Logger
	debug        bool
	maxBatchSize int
	now          func() time.Time
}

// New creates a batch service. validator and events may be nil.
func New(entityType string, om ObjectManager, validator Validator, events Dispatcher, tr Translator) *Service {
	return &Service{
		entityType: entityType,
		om:         om,
		validator:  validator,
		events:     events,
		tr:         tr,
		errs:       errmap.New(tr),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// WithMaxBatchSize limits the number of items per call. 0 disables the limit.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size >= 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithDebug adds error types and driver messages to database errors.
func (s *Service) WithDebug(debug bool) *Service {
	s.debug = debug
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock sets the time source used for deletion markers.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// EntityType returns the entity type handled by the service.
func (s *Service) EntityType() string { return s.entityType }

// Create creates one entity.
func (s *Service) Create(ctx context.Context, c resource.Candidate) *resource.Resource {
	return single(s.CreateResources(ctx, []resource.Candidate{c}, true))
}

// CreateResources creates entities.
func (s *Service) CreateResources(ctx context.Context, cs []resource.Candidate, autoCommit bool) *dombatch.Batch {
	return s.persist(ctx, cs, autoCommit, action.Create, false, nil)
}

// Update updates one entity.
func (s *Service) Update(ctx context.Context, c resource.Candidate) *resource.Resource {
	return single(s.UpdateResources(ctx, []resource.Candidate{c}, true))
}

// UpdateResources updates entities.
func (s *Service) UpdateResources(ctx context.Context, cs []resource.Candidate, autoCommit bool) *dombatch.Batch {
	return s.persist(ctx, cs, autoCommit, action.Update, false, nil)
}

// Upsert creates or updates one entity depending on its identifier.
func (s *Service) Upsert(ctx context.Context, c resource.Candidate) *resource.Resource {
	return single(s.UpsertResources(ctx, []resource.Candidate{c}, true))
}

// UpsertResources creates or updates entities depending on their identifier.
func (s *Service) UpsertResources(ctx context.Context, cs []resource.Candidate, autoCommit bool) *dombatch.Batch {
	return s.persist(ctx, cs, autoCommit, action.Upsert, false, nil)
}

// Delete deletes one entity.
func (s *Service) Delete(ctx context.Context, e resource.Entity, soft bool) *resource.Resource {
	return single(s.DeleteResources(ctx, []resource.Entity{e}, soft, true))
}

// DeleteResources deletes entities. Soft deletable entities keep their row
// with a deletion marker unless soft is false.
func (s *Service) DeleteResources(ctx context.Context, es []resource.Entity, soft, autoCommit bool) *dombatch.Batch {
	return s.persist(ctx, resource.Raws(es...), autoCommit, action.Delete, soft, nil)
}

// Undelete restores one entity given as identifier or entity.
func (s *Service) Undelete(ctx context.Context, idOrEntity any) *resource.Resource {
	return single(s.UndeleteResources(ctx, []any{idOrEntity}, true))
}

// persist runs one batch call. Only caller contract violations panic.
func (s *Service) persist(
	ctx context.Context,
	candidates []resource.Candidate,
	autoCommit bool,
	kind action.Kind,
	soft bool,
	preErrorItems []*resource.Resource,
) *dombatch.Batch {
	start := s.now()
	b := dombatch.FromCandidates(candidates)
	for _, c := range candidates {
		if t := c.Entity().EntityType(); t != s.entityType {
			panic(fmt.Sprintf("batch: %s service got %s entity", s.entityType, t))
		}
	}
	b.Append(preErrorItems...)

	s.dispatch(ctx, event.Pre, kind, b)

	if s.maxBatchSize > 0 && b.Len() > s.maxBatchSize {
		msg := s.tr.Translate(i18n.KeyBatchTooLarge, s.maxBatchSize)
		for _, r := range b.Items() {
			r.AddError(resource.NewViolation(msg, r.Entity()))
			r.SetStatus(resource.StatusError)
		}
	} else {
		run := &run{Service: s, batch: b, kind: kind, soft: soft, autoCommit: autoCommit}
		run.process(ctx)
	}

	s.dispatch(ctx, event.Post, kind, b)

	s.logger.Info("Domain batch completed",
		zap.String("entity", s.entityType),
		zap.String("action", string(kind)),
		zap.String("status", string(b.Status())),
		zap.Int("items", b.Len()),
		zap.Bool("auto_commit", autoCommit),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return b
}

func (s *Service) dispatch(ctx context.Context, phase event.Phase, kind action.Kind, b *dombatch.Batch) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(ctx, event.New(s.entityType, phase, kind, b))
}

// single folds batch errors into the only item of a single-item call.
func single(b *dombatch.Batch) *resource.Resource {
	r := b.Get(0)
	if errs := b.Errors(); len(errs) > 0 {
		r.AddErrors(errs...)
		r.SetStatus(resource.StatusError)
	}
	return r
}
