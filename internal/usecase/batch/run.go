package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/domain/action"
	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/i18n"
)

// run holds the state of one batch call.
type run struct {
	*Service
	batch      *dombatch.Batch
	kind       action.Kind
	soft       bool
	autoCommit bool

	// hasError: some item ended in error.
	hasError bool
	// hasFlushError: some item failed at persist, remove or flush.
	hasFlushError bool

	// markers holds the deletion marker entities had before this run
	// changed it, restored when the change is not persisted.
	markers map[resource.Entity]*time.Time
}

func (r *run) process(ctx context.Context) {
	if !r.autoCommit {
		if err := r.om.Begin(ctx); err != nil {
			r.logger.Warn("Begin transaction failed",
				zap.String("entity", r.entityType), zap.Error(err))
			r.failAll(err)
			return
		}
	}

	for _, res := range r.batch.Items() {
		switch {
		case !r.autoCommit && r.hasError:
			res.SetStatus(resource.StatusCanceled)
		case r.autoCommit && r.hasFlushError && r.hasError:
			res.AddError(resource.NewViolation(r.tr.Translate(i18n.KeyDatabasePreviousError), res.Entity()))
			r.finalize(res, resource.StatusError)
		default:
			r.finalize(res, r.persistOne(ctx, res))
		}
		r.logger.Debug("Domain item processed",
			zap.String("entity", r.entityType),
			zap.String("action", string(r.kind)),
			zap.String("ref", res.Ref()),
			zap.String("status", string(res.Status())),
			zap.Int("errors", len(res.AllErrors())),
		)
	}

	if !r.autoCommit {
		r.complete(ctx)
	}
}

// persistOne checks and stages one item, flushing it in auto commit mode.
// It returns the status the item gets if it stays valid.
func (r *run) persistOne(ctx context.Context, res *resource.Resource) resource.Status {
	e := res.Entity()
	if e == nil || !res.IsValid() {
		return resource.StatusError
	}

	if r.kind == action.Undelete {
		sd, ok := e.(resource.SoftDeletable)
		if !ok {
			res.AddError(resource.NewViolation(r.tr.Translate(i18n.KeyTypeNotUndeletable, r.entityType), e))
			return resource.StatusError
		}
		r.mark(e, sd, nil)
	}

	id := r.om.Identifier(e)
	success := successStatus(r.kind, id)
	if key := identifierError(r.kind, id); key != "" {
		res.AddError(resource.NewViolation(r.tr.Translate(key), e))
	} else if r.kind != action.Delete && r.validator != nil && !res.Candidate().IsBound() {
		res.AddErrors(r.validator.Validate(ctx, e)...)
	}
	if !res.IsValid() {
		return success
	}

	var err error
	if r.kind == action.Delete {
		var skip bool
		if skip, err = r.remove(ctx, e); skip {
			return success
		}
	} else {
		err = r.om.Persist(ctx, e)
	}
	if err != nil {
		res.AddErrors(r.errs.Violations(err, e, r.debug)...)
		r.hasFlushError = true
		return success
	}

	if r.autoCommit {
		if err := r.om.Flush(ctx); err != nil {
			r.logger.Warn("Flush failed",
				zap.String("entity", r.entityType),
				zap.String("ref", res.Ref()),
				zap.Error(err),
			)
			res.AddErrors(r.errs.Violations(err, e, r.debug)...)
			r.hasFlushError = true
		}
	}
	return success
}

// remove applies the soft delete rules. skip is true when the entity is
// already soft deleted and nothing has to be written.
func (r *run) remove(ctx context.Context, e resource.Entity) (skip bool, err error) {
	if sd, ok := e.(resource.SoftDeletable); ok {
		if r.soft && sd.IsDeleted() {
			return true, nil
		}
		if !r.soft && !sd.IsDeleted() {
			now := r.now()
			r.mark(e, sd, &now)
		}
	}
	return false, r.om.Remove(ctx, e)
}

// mark sets the deletion marker of e, keeping the one it had first.
func (r *run) mark(e resource.Entity, sd resource.SoftDeletable, at *time.Time) {
	if r.markers == nil {
		r.markers = make(map[resource.Entity]*time.Time)
	}
	if _, seen := r.markers[e]; !seen {
		r.markers[e] = sd.DeletedAt()
	}
	sd.SetDeletedAt(at)
}

// restoreMarker puts back the marker e had before the run.
func (r *run) restoreMarker(e resource.Entity) {
	prev, ok := r.markers[e]
	if !ok {
		return
	}
	e.(resource.SoftDeletable).SetDeletedAt(prev)
	delete(r.markers, e)
}

func (r *run) finalize(res *resource.Resource, success resource.Status) {
	if res.IsValid() && success != resource.StatusError {
		res.SetStatus(success)
		return
	}
	res.SetStatus(resource.StatusError)
	if e := res.Entity(); e != nil {
		r.om.Detach(e)
		r.restoreMarker(e)
	}
	r.hasError = true
}

// complete closes the batch transaction.
func (r *run) complete(ctx context.Context) {
	if r.hasError {
		r.rollback(ctx)
		for _, res := range r.batch.Items() {
			if res.Status() != resource.StatusError {
				res.SetStatus(resource.StatusCanceled)
			}
			if e := res.Entity(); e != nil {
				r.restoreMarker(e)
			}
		}
		return
	}

	err := r.om.Flush(ctx)
	if err == nil {
		err = r.om.Commit(ctx)
	}
	if err == nil {
		return
	}

	r.logger.Warn("Batch commit failed",
		zap.String("entity", r.entityType),
		zap.String("action", string(r.kind)),
		zap.Error(err),
	)
	r.rollback(ctx)
	for _, res := range r.batch.Items() {
		res.SetStatus(resource.StatusError)
		if e := res.Entity(); e != nil {
			r.om.Detach(e)
			r.restoreMarker(e)
		}
	}
	for _, v := range r.errs.Violations(err, nil, r.debug) {
		if i := r.batch.IndexOf(v.Root); i >= 0 {
			r.batch.Get(i).AddError(v)
			continue
		}
		r.batch.AddError(v)
	}
}

func (r *run) rollback(ctx context.Context) {
	if err := r.om.Rollback(ctx); err != nil {
		r.logger.Warn("Rollback failed",
			zap.String("entity", r.entityType), zap.Error(err))
	}
}

// failAll marks every item in error when the batch cannot start.
func (r *run) failAll(err error) {
	vs := r.errs.Violations(err, nil, r.debug)
	for _, res := range r.batch.Items() {
		res.SetStatus(resource.StatusError)
	}
	for _, v := range vs {
		r.batch.AddError(v)
	}
}

func successStatus(kind action.Kind, id string) resource.Status {
	switch kind {
	case action.Create:
		return resource.StatusCreated
	case action.Update:
		return resource.StatusUpdated
	case action.Delete:
		return resource.StatusDeleted
	case action.Undelete:
		return resource.StatusUndeleted
	case action.Upsert:
		if id == "" {
			return resource.StatusCreated
		}
		return resource.StatusUpdated
	default:
		return resource.StatusError
	}
}

func identifierError(kind action.Kind, id string) string {
	switch {
	case kind == action.Create && id != "":
		return i18n.KeyIdentifierCreate
	case kind == action.Update && id == "":
		return i18n.KeyIdentifierUpdate
	case kind == action.Delete && id == "":
		return i18n.KeyIdentifierDelete
	case kind == action.Undelete && id == "":
		return i18n.KeyIdentifierUndelete
	default:
		return ""
	}
}
