// Package memory implements an object manager over in-process JSON rows.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
)

type table struct {
	rows map[string][]byte
	// unique maps constraint name to value to owning id.
	unique map[string]map[string]string
}

func newTable() *table {
	return &table{rows: make(map[string][]byte), unique: make(map[string]map[string]string)}
}

func (t *table) clone() *table {
	c := newTable()
	for id, row := range t.rows {
		c.rows[id] = row
	}
	for name, values := range t.unique {
		m := make(map[string]string, len(values))
		for v, id := range values {
			m[v] = id
		}
		c.unique[name] = m
	}
	return c
}

type state map[string]*table

func (s state) clone() state {
	c := make(state, len(s))
	for k, t := range s {
		c[k] = t.clone()
	}
	return c
}

func (s state) table(entityType string) *table {
	t, ok := s[entityType]
	if !ok {
		t = newTable()
		s[entityType] = t
	}
	return t
}

// Manager is a unit of work over an in-memory store.
type Manager struct {
	mu        sync.Mutex
	registry  *uow.Registry
	committed state
	// tx is the transaction view, nil outside a transaction.
	tx state
	// txChanges are the changes flushed into tx, reverted on rollback.
	txChanges []uow.Change
	queue     uow.Queue
	now       func() time.Time
}

// New creates an empty in-memory manager.
func New(registry *uow.Registry) *Manager {
	return &Manager{registry: registry, committed: make(state), now: time.Now}
}

// WithClock sets the time source for soft deletion markers.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
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
	m.tx = m.committed.clone()
	return nil
}

// Commit makes the transaction durable.
func (m *Manager) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx == nil {
		return fmt.Errorf("commit: %w", domain.ErrTransactionState)
	}
	m.committed, m.tx, m.txChanges = m.tx, nil, nil
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

// Flush writes the staged entities to the transaction view, or to the
// store outside a transaction. Nothing is written when any change fails.
func (m *Manager) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changes := m.queue.Drain(m.now())
	if len(changes) == 0 {
		return nil
	}

	target := m.committed
	if m.tx != nil {
		target = m.tx
	}
	work := target.clone()

	var violations []resource.Violation
	for _, c := range changes {
		vs, err := apply(work.table(c.Entity.EntityType()), c)
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
		m.tx = work
		m.txChanges = append(m.txChanges, changes...)
	} else {
		m.committed = work
	}
	return nil
}

func apply(t *table, c uow.Change) ([]resource.Violation, error) {
	e := c.Entity
	id := e.EntityID()
	_, exists := t.rows[id]

	switch c.Kind {
	case uow.Insert:
		if exists {
			return nil, fmt.Errorf("insert %s %s: %w", e.EntityType(), id, domain.ErrAlreadyExists)
		}
	case uow.Update, uow.Delete:
		if !exists {
			return nil, fmt.Errorf("%s %s: %w", c.Kind, e.EntityType(), domain.NewNotFound(e))
		}
	}

	releaseUnique(t, id)
	if c.Kind == uow.Delete {
		delete(t.rows, id)
		return nil, nil
	}

	var violations []resource.Violation
	for name, value := range uow.UniqueKeys(e) {
		values, ok := t.unique[name]
		if !ok {
			values = make(map[string]string)
			t.unique[name] = values
		}
		if owner, taken := values[value]; taken && owner != id {
			violations = append(violations, uow.UniqueViolation(e, name, value))
			continue
		}
		values[value] = id
	}

	row, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", e.EntityType(), id, err)
	}
	t.rows[id] = row
	return violations, nil
}

func releaseUnique(t *table, id string) {
	for _, values := range t.unique {
		for v, owner := range values {
			if owner == id {
				delete(values, v)
			}
		}
	}
}

// FindByIDs loads entities of entityType, soft deleted ones included.
// Reads see the transaction view when a transaction is open.
func (m *Manager) FindByIDs(_ context.Context, entityType string, ids []string) ([]resource.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := m.committed
	if m.tx != nil {
		view = m.tx
	}
	t, ok := view[entityType]
	if !ok {
		return nil, nil
	}

	var out []resource.Entity
	for _, id := range ids {
		row, ok := t.rows[id]
		if !ok {
			continue
		}
		e, err := m.registry.New(entityType)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(row, e); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", entityType, id, err)
		}
		e.SetEntityID(id)
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of stored rows of entityType.
func (m *Manager) Count(entityType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.committed[entityType]; ok {
		return len(t.rows)
	}
	return 0
}
