// Package sqlstore implements an object manager over database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Manager is a unit of work over a SQL database.
type Manager struct {
	db       *sql.DB
	dialect  Dialect
	mu       sync.RWMutex
	mappings map[string]Mapping

	tx        *sql.Tx
	txChanges []uow.Change
	queue     uow.Queue
	now       func() time.Time
}

// New creates a manager over conn.
func New(conn *sql.DB, d Dialect) *Manager {
	return &Manager{db: conn, dialect: d, mappings: make(map[string]Mapping), now: time.Now}
}

// WithClock sets the time source for soft deletion markers.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Register adds the mapping of one entity type.
func (m *Manager) Register(mp Mapping) error {
	if err := mp.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mp.EntityType] = mp
	return nil
}

// Migrate runs schema statements in order.
func (m *Manager) Migrate(ctx context.Context, statements ...string) error {
	for i, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) mapping(entityType string) (Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.mappings[entityType]
	if !ok {
		return Mapping{}, fmt.Errorf("mapping %q: %w", entityType, domain.ErrUnknownEntityType)
	}
	return mp, nil
}

// Persist stages e for insert or update.
func (m *Manager) Persist(_ context.Context, e resource.Entity) error {
	if _, err := m.mapping(e.EntityType()); err != nil {
		return err
	}
	m.queue.Persist(e)
	return nil
}

// Remove stages e for removal.
func (m *Manager) Remove(_ context.Context, e resource.Entity) error {
	if _, err := m.mapping(e.EntityType()); err != nil {
		return err
	}
	m.queue.Remove(e)
	return nil
}

// Detach unstages e.
func (m *Manager) Detach(e resource.Entity) { m.queue.Detach(e) }

// Identifier returns the identifier of e.
func (m *Manager) Identifier(e resource.Entity) string { return e.EntityID() }

// Begin opens a database transaction.
func (m *Manager) Begin(ctx context.Context) error {
	if m.tx != nil {
		return fmt.Errorf("begin: %w", domain.ErrTransactionState)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	m.tx = tx
	return nil
}

// Commit commits the open transaction.
func (m *Manager) Commit(_ context.Context) error {
	if m.tx == nil {
		return fmt.Errorf("commit: %w", domain.ErrTransactionState)
	}
	tx := m.tx
	m.tx = nil
	if err := tx.Commit(); err != nil {
		uow.Revert(m.txChanges)
		m.txChanges = nil
		return m.mapError(err, nil)
	}
	m.txChanges = nil
	return nil
}

// Rollback aborts the open transaction and unstages everything.
func (m *Manager) Rollback(_ context.Context) error {
	m.queue.Clear()
	if m.tx == nil {
		return fmt.Errorf("rollback: %w", domain.ErrTransactionState)
	}
	tx := m.tx
	m.tx = nil
	uow.Revert(m.txChanges)
	m.txChanges = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Flush executes the staged changes inside the open transaction, or in a
// transaction of its own.
func (m *Manager) Flush(ctx context.Context) error {
	changes := m.queue.Drain(m.now())
	if len(changes) == 0 {
		return nil
	}

	if m.tx != nil {
		if err := m.apply(ctx, m.tx, changes); err != nil {
			uow.Revert(changes)
			return err
		}
		m.txChanges = append(m.txChanges, changes...)
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		uow.Revert(changes)
		return fmt.Errorf("begin flush: %w", err)
	}
	if err := m.apply(ctx, tx, changes); err != nil {
		_ = tx.Rollback()
		uow.Revert(changes)
		return err
	}
	if err := tx.Commit(); err != nil {
		uow.Revert(changes)
		return m.mapError(err, nil)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context, ex execer, changes []uow.Change) error {
	for _, c := range changes {
		e := c.Entity
		mp, err := m.mapping(e.EntityType())
		if err != nil {
			return err
		}

		var (
			query string
			args  []any
		)
		switch c.Kind {
		case uow.Insert:
			query, args = mp.insertSQL(m.dialect), mp.values(e)
		case uow.Update:
			vals := mp.values(e)
			query, args = mp.updateSQL(m.dialect), append(vals[1:], vals[0])
		case uow.Delete:
			query, args = mp.deleteSQL(m.dialect), []any{e.EntityID()}
		}

		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return m.mapError(err, e)
		}
		if c.Kind == uow.Insert {
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s %s %s: %w", c.Kind, e.EntityType(), e.EntityID(), err)
		}
		if n == 0 {
			return fmt.Errorf("%s %s: %w", c.Kind, e.EntityType(), domain.NewNotFound(e))
		}
	}
	return nil
}

// mapError turns driver constraint failures into constraint violations
// rooted at e.
func (m *Manager) mapError(err error, e resource.Entity) error {
	c, ok := m.dialect.constraint(err)
	if !ok {
		return err
	}
	var root any
	if e != nil {
		root = e
	}
	v := resource.NewViolation(c.Message, root).WithPath(c.Column).WithCode(c.Code)
	return domain.NewConstraintViolation(err, v)
}

// FindByIDs loads entities of entityType, soft deleted ones included.
// Reads go through the open transaction when there is one.
func (m *Manager) FindByIDs(ctx context.Context, entityType string, ids []string) ([]resource.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	mp, err := m.mapping(entityType)
	if err != nil {
		return nil, err
	}

	var q querier = m.db
	if m.tx != nil {
		q = m.tx
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, mp.selectSQL(m.dialect, len(ids)), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", mp.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []resource.Entity
	for rows.Next() {
		e := mp.New()
		var (
			id      string
			deleted sql.NullTime
		)
		dest := append([]any{&id}, mp.Targets(e)...)
		if mp.SoftDelete {
			dest = append(dest, &deleted)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", mp.Table, err)
		}
		e.SetEntityID(id)
		if sd, ok := e.(resource.SoftDeletable); ok && deleted.Valid {
			at := deleted.Time
			sd.SetDeletedAt(&at)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", mp.Table, err)
	}
	return out, nil
}

// Close closes the database.
func (m *Manager) Close() error {
	return m.db.Close()
}
