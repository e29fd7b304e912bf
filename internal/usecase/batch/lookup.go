package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/action"
	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/i18n"
	"github.com/kailas-cloud/resdomain/internal/usecase/resolve"
)

// UndeleteResources restores soft deleted entities. Values are identifiers
// or entities; unknown identifiers end as error items after the others.
// Values of any other type panic.
func (s *Service) UndeleteResources(ctx context.Context, idsOrEntities []any, autoCommit bool) *dombatch.Batch {
	entities, preErrors := s.lookup(ctx, action.Undelete, idsOrEntities)
	return s.persist(ctx, resource.Raws(entities...), autoCommit, action.Undelete, false, preErrors)
}

// DeleteByIDs loads the identified entities and deletes them. Unknown
// identifiers end as error items after the others.
func (s *Service) DeleteByIDs(ctx context.Context, ids []string, soft, autoCommit bool) *dombatch.Batch {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	entities, preErrors := s.lookup(ctx, action.Delete, values)
	return s.persist(ctx, resource.Raws(entities...), autoCommit, action.Delete, soft, preErrors)
}

// lookup resolves identifiers through the object manager. Unknown
// identifiers become error items; a failed lookup turns every value into
// an error item.
func (s *Service) lookup(ctx context.Context, kind action.Kind, idsOrEntities []any) ([]resource.Entity, []*resource.Resource) {
	find := func(ctx context.Context, ids []string) ([]resource.Entity, error) {
		return s.om.FindByIDs(ctx, s.entityType, ids)
	}
	entities, missing, err := resolve.Objects(ctx, idsOrEntities, find, s.om.Identifier)
	if errors.Is(err, domain.ErrInvalidIdentifier) {
		panic(fmt.Sprintf("batch: %s %s: %v", kind, s.entityType, err))
	}
	if err != nil {
		return nil, s.unresolved(idsOrEntities, err)
	}

	preErrors := make([]*resource.Resource, len(missing))
	for i, id := range missing {
		msg := s.tr.Translate(i18n.KeyObjectDoesNotExist, id)
		preErrors[i] = resource.NewMissing(id, resource.NewViolation(msg, nil))
	}
	return entities, preErrors
}

// unresolved turns every value into an error item when the lookup failed.
func (s *Service) unresolved(idsOrEntities []any, err error) []*resource.Resource {
	items := make([]*resource.Resource, len(idsOrEntities))
	for i, v := range idsOrEntities {
		vs := s.errs.Violations(err, v, s.debug)
		switch x := v.(type) {
		case resource.Entity:
			items[i] = resource.New(resource.Raw(x))
			items[i].AddErrors(vs...)
		case string:
			items[i] = resource.NewMissing(x, vs[0])
			items[i].AddErrors(vs[1:]...)
		}
	}
	return items
}
