// Package resolve reconciles mixed lists of identifiers and loaded objects.
package resolve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/resdomain/internal/domain"
)

// Split partitions values into objects of type T and identifiers of type K.
// Any other value is rejected with domain.ErrInvalidIdentifier.
func Split[T any, K comparable](idsOrObjects []any) ([]T, []K, error) {
	var (
		objects []T
		ids     []K
	)
	for i, v := range idsOrObjects {
		switch x := v.(type) {
		case T:
			objects = append(objects, x)
		case K:
			ids = append(ids, x)
		default:
			return nil, nil, fmt.Errorf("value %d (%T): %w", i, v, domain.ErrInvalidIdentifier)
		}
	}
	return objects, ids, nil
}

// Objects loads the identifiers of idsOrObjects with one find call.
// It returns the passthrough objects followed by the found ones, and the
// requested identifiers that matched nothing, in request order.
func Objects[T any, K comparable](
	ctx context.Context,
	idsOrObjects []any,
	find func(ctx context.Context, ids []K) ([]T, error),
	idOf func(T) K,
) ([]T, []K, error) {
	objects, ids, err := Split[T, K](idsOrObjects)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return objects, nil, nil
	}

	found, err := find(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("find by ids: %w", err)
	}

	seen := make(map[K]struct{}, len(found))
	for _, o := range found {
		seen[idOf(o)] = struct{}{}
	}
	var missing []K
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}

	return append(objects, found...), missing, nil
}
