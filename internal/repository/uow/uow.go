// Package uow holds the staging logic shared by the object managers.
package uow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

// Kind is the storage write a staged entity turns into.
type Kind int

// Change kinds.
const (
	Insert Kind = iota
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Change is one resolved write.
type Change struct {
	Entity resource.Entity
	Kind   Kind

	assignedID bool
	marked     bool
}

type staged struct {
	e      resource.Entity
	remove bool
}

// Queue keeps staged entities in staging order. An entity staged twice
// keeps its first position and its last operation.
type Queue struct {
	mu    sync.Mutex
	items []staged
}

// Persist stages e for insert or update.
func (q *Queue) Persist(e resource.Entity) { q.put(staged{e: e}) }

// Remove stages e for removal.
func (q *Queue) Remove(e resource.Entity) { q.put(staged{e: e, remove: true}) }

func (q *Queue) put(s staged) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].e == s.e {
			q.items[i] = s
			return
		}
	}
	q.items = append(q.items, s)
}

// Detach unstages e.
func (q *Queue) Detach(e resource.Entity) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, s := range q.items {
		if s.e != e {
			kept = append(kept, s)
		}
	}
	q.items = kept
}

// Clear unstages everything.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Len returns the number of staged entities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain resolves and unstages everything.
//
// Entities without identifier get a fresh UUID and become inserts.
// Removing a soft deletable entity without marker sets the marker and
// becomes an update; with the marker set it becomes a delete.
func (q *Queue) Drain(now time.Time) []Change {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	changes := make([]Change, 0, len(items))
	for _, s := range items {
		c := Change{Entity: s.e}
		switch {
		case s.remove:
			c.Kind = Delete
			if sd, ok := s.e.(resource.SoftDeletable); ok && !sd.IsDeleted() {
				at := now
				sd.SetDeletedAt(&at)
				c.Kind, c.marked = Update, true
			}
		case s.e.EntityID() == "":
			s.e.SetEntityID(uuid.NewString())
			c.Kind, c.assignedID = Insert, true
		default:
			c.Kind = Update
		}
		changes = append(changes, c)
	}
	return changes
}

// Revert undoes the identifier and marker assignments of Drain.
func Revert(changes []Change) {
	for _, c := range changes {
		if c.assignedID {
			c.Entity.SetEntityID("")
		}
		if c.marked {
			c.Entity.(resource.SoftDeletable).SetDeletedAt(nil)
		}
	}
}

// Registry creates empty entities by type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]resource.Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]resource.Factory)}
}

// Register adds the factory of entityType.
func (r *Registry) Register(entityType string, f resource.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[entityType] = f
}

// New creates an empty entity of entityType.
func (r *Registry) New(entityType string) (resource.Entity, error) {
	r.mu.RLock()
	f, ok := r.factories[entityType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", entityType, domain.ErrUnknownEntityType)
	}
	return f(), nil
}

// Types returns the registered entity types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UniqueKeys returns the unique constraint values of e, nil when it has none.
func UniqueKeys(e resource.Entity) map[string]string {
	if u, ok := e.(resource.UniqueKeyer); ok {
		return u.UniqueKeys()
	}
	return nil
}

// UniqueViolation builds the constraint violation of e on constraint name.
func UniqueViolation(e resource.Entity, name, value string) resource.Violation {
	msg := fmt.Sprintf("The value %q is already used", value)
	return resource.NewViolation(msg, e).WithPath(name).WithCode("unique")
}
