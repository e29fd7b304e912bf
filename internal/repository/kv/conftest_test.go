package kv

import (
	"context"
	"time"

	"github.com/kailas-cloud/resdomain/internal/db"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
)

// mockStore implements the consumer interface over a map. The fn fields
// override the map behavior when set.
type mockStore struct {
	data map[string][]byte

	mgetFn   func(ctx context.Context, keys []string) ([][]byte, error)
	existsFn func(ctx context.Context, keys []string) ([]bool, error)
	execFn   func(ctx context.Context, ops []db.Op) error

	execs int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if m.mgetFn != nil {
		return m.mgetFn(ctx, keys)
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockStore) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, keys)
	}
	out := make([]bool, len(keys))
	for i, k := range keys {
		_, out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockStore) Exec(ctx context.Context, ops []db.Op) error {
	m.execs++
	if m.execFn != nil {
		if err := m.execFn(ctx, ops); err != nil {
			return err
		}
	}
	for _, op := range ops {
		switch op.Kind {
		case db.OpPut:
			m.data[op.Key] = op.Value
		case db.OpDelete:
			delete(m.data, op.Key)
		}
	}
	return nil
}

type page struct {
	resource.SoftDelete
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

func (p *page) EntityType() string    { return "page" }
func (p *page) EntityID() string      { return p.ID }
func (p *page) SetEntityID(id string) { p.ID = id }
func (p *page) UniqueKeys() map[string]string {
	return map[string]string{"slug": p.Slug}
}

var now = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newManager(s *mockStore) *Manager {
	r := uow.NewRegistry()
	r.Register("page", func() resource.Entity { return &page{} })
	return New(s, r, "rd:").WithClock(func() time.Time { return now })
}
