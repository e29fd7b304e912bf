// Package kv implements an object manager over the key-value store.
//
// Existence and unique owner checks are plain reads issued before the
// MULTI/EXEC write, without WATCH. The store must have a single writer:
// two processes flushing the same unique value concurrently can both
// claim it.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/resdomain/internal/db"
	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
)

// store is the consumer interface for entity rows (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	Exec(ctx context.Context, ops []db.Op) error
}

// Manager is a unit of work over a key-value store. Rows are JSON values
// under <prefix><type>:<id>; unique keys are index entries holding the
// owner id under <prefix><type>:unique:<name>:<value>.
type Manager struct {
	mu       sync.Mutex
	store    store
	registry *uow.Registry
	prefix   string

	// tx is nil outside a transaction. It buffers writes until Commit.
	tx        *writeSet
	txChanges []uow.Change
	queue     uow.Queue
	now       func() time.Time
}

// New creates a key-value manager.
func New(s store, registry *uow.Registry, prefix string) *Manager {
	return &Manager{store: s, registry: registry, prefix: prefix, now: time.Now}
}

// WithClock sets the time source for soft deletion markers.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) rowKey(entityType, id string) string {
	return m.prefix + entityType + ":" + id
}

func (m *Manager) uniqueKey(entityType, name, value string) string {
	return m.prefix + entityType + ":unique:" + name + ":" + value
}

// Persist stages e for insert or update.
func (m *Manager) Persist(_ context.Context, e resource.Entity) error {
	m.queue.Persist(e)
	return nil
}

// Remove stages e for removal.
func (m *Manager) Remove(_ context.Context, e resource.Entity) error {
	m.queue.Remove(e)
	return nil
}

// Detach unstages e.
func (m *Manager) Detach(e resource.Entity) { m.queue.Detach(e) }

// Identifier returns the identifier of e.
func (m *Manager) Identifier(e resource.Entity) string { return e.EntityID() }

// Begin opens a transaction.
func (m *Manager) Begin(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		return fmt.Errorf("begin: %w", domain.ErrTransactionState)
	}
	m.tx = newWriteSet()
	return nil
}

// Commit writes the buffered transaction in one MULTI/EXEC.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx == nil {
		return fmt.Errorf("commit: %w", domain.ErrTransactionState)
	}
	ops := m.tx.ops()
	changes := m.txChanges
	m.tx, m.txChanges = nil, nil
	if err := m.store.Exec(ctx, ops); err != nil {
		uow.Revert(changes)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction and the staged entities.
func (m *Manager) Rollback(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Clear()
	if m.tx == nil {
		return fmt.Errorf("rollback: %w", domain.ErrTransactionState)
	}
	uow.Revert(m.txChanges)
	m.tx, m.txChanges = nil, nil
	return nil
}

// Flush resolves the staged entities into writes. Inside a transaction the
// writes are buffered, otherwise they are executed at once.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changes := m.queue.Drain(m.now())
	if len(changes) == 0 {
		return nil
	}

	ws := newWriteSet()
	var violations []resource.Violation
	for _, c := range changes {
		vs, err := m.apply(ctx, ws, c)
		if err != nil {
			uow.Revert(changes)
			return err
		}
		violations = append(violations, vs...)
	}
	if len(violations) > 0 {
		uow.Revert(changes)
		return domain.NewConstraintViolation(nil, violations...)
	}

	if m.tx != nil {
		m.tx.merge(ws)
		m.txChanges = append(m.txChanges, changes...)
		return nil
	}
	if err := m.store.Exec(ctx, ws.ops()); err != nil {
		uow.Revert(changes)
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context, ws *writeSet, c uow.Change) ([]resource.Violation, error) {
	e := c.Entity
	entityType, id := e.EntityType(), e.EntityID()
	key := m.rowKey(entityType, id)

	var current []byte
	switch c.Kind {
	case uow.Insert:
		exists, err := m.exists(ctx, ws, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("insert %s %s: %w", entityType, id, domain.ErrAlreadyExists)
		}
	case uow.Update, uow.Delete:
		vals, err := m.read(ctx, ws, []string{key})
		if err != nil {
			return nil, err
		}
		if current = vals[0]; current == nil {
			return nil, fmt.Errorf("%s %s: %w", c.Kind, entityType, domain.NewNotFound(e))
		}
	}

	next := uow.UniqueKeys(e)
	if c.Kind == uow.Delete {
		next = nil
	}
	if current != nil {
		prev, err := m.decode(entityType, id, current)
		if err != nil {
			return nil, err
		}
		for name, value := range uow.UniqueKeys(prev) {
			if next[name] != value {
				ws.del(m.uniqueKey(entityType, name, value))
			}
		}
	}

	if c.Kind == uow.Delete {
		ws.del(key)
		return nil, nil
	}

	var violations []resource.Violation
	for _, name := range sortedNames(next) {
		value := next[name]
		ukey := m.uniqueKey(entityType, name, value)
		owners, err := m.read(ctx, ws, []string{ukey})
		if err != nil {
			return nil, err
		}
		if owner := owners[0]; owner != nil && string(owner) != id {
			violations = append(violations, uow.UniqueViolation(e, name, value))
			continue
		}
		ws.put(ukey, []byte(id))
	}

	row, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", entityType, id, err)
	}
	ws.put(key, row)
	return violations, nil
}

// read resolves keys through the flush writes, the transaction buffer and
// then the store.
func (m *Manager) read(ctx context.Context, ws *writeSet, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	var (
		remote []string
		at     []int
	)
	for i, k := range keys {
		if v, ok := m.local(ws, k); ok {
			out[i] = v
			continue
		}
		remote = append(remote, k)
		at = append(at, i)
	}
	if len(remote) == 0 {
		return out, nil
	}
	vals, err := m.store.MGet(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	for j, v := range vals {
		out[at[j]] = v
	}
	return out, nil
}

func (m *Manager) exists(ctx context.Context, ws *writeSet, key string) (bool, error) {
	if v, ok := m.local(ws, key); ok {
		return v != nil, nil
	}
	found, err := m.store.ExistsMulti(ctx, []string{key})
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return len(found) == 1 && found[0], nil
}

func (m *Manager) local(ws *writeSet, key string) ([]byte, bool) {
	if ws != nil {
		if v, ok := ws.get(key); ok {
			return v, true
		}
	}
	if m.tx != nil {
		return m.tx.get(key)
	}
	return nil, false
}

func (m *Manager) decode(entityType, id string, row []byte) (resource.Entity, error) {
	e, err := m.registry.New(entityType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row, e); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", entityType, id, err)
	}
	e.SetEntityID(id)
	return e, nil
}

// FindByIDs loads entities of entityType, soft deleted ones included.
// Reads see the transaction buffer when a transaction is open.
func (m *Manager) FindByIDs(ctx context.Context, entityType string, ids []string) ([]resource.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := m.registry.New(entityType); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m.rowKey(entityType, id)
	}
	rows, err := m.read(ctx, nil, keys)
	if err != nil {
		return nil, err
	}

	var out []resource.Entity
	for i, row := range rows {
		if row == nil {
			continue
		}
		e, err := m.decode(entityType, ids[i], row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func sortedNames(keys map[string]string) []string {
	names := make([]string, 0, len(keys))
	for n := range keys {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
