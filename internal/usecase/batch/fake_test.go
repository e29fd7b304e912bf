package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/event"
)

// --- Entities ---

type post struct {
	resource.SoftDelete
	ID    string
	Title string
}

func (p *post) EntityType() string    { return "post" }
func (p *post) EntityID() string      { return p.ID }
func (p *post) SetEntityID(id string) { p.ID = id }

type tag struct {
	ID   string
	Name string
}

func (t *tag) EntityType() string    { return "tag" }
func (t *tag) EntityID() string      { return t.ID }
func (t *tag) SetEntityID(id string) { t.ID = id }

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// --- Object manager ---

type op struct {
	e      resource.Entity
	remove bool
}

// fakeOM is a unit of work over a map. Remove on a soft deletable entity
// sets the marker and writes an update unless the marker is already set.
type fakeOM struct {
	rows    map[string]resource.Entity
	txRows  map[string]resource.Entity
	pending []op
	inTx    bool
	nextID  int

	persistErr map[resource.Entity]error
	removeErr  error
	beginErr   error
	findErr    error
	// flushErr is consulted with the staged ops before they are applied.
	flushErr func(pending []op) error

	persists, removes, flushes int
	begins, commits, rollbacks int
	detached                   []resource.Entity
}

func newFakeOM() *fakeOM {
	return &fakeOM{rows: make(map[string]resource.Entity)}
}

func (f *fakeOM) Persist(_ context.Context, e resource.Entity) error {
	f.persists++
	if err := f.persistErr[e]; err != nil {
		return err
	}
	f.pending = append(f.pending, op{e: e})
	return nil
}

func (f *fakeOM) Remove(_ context.Context, e resource.Entity) error {
	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.pending = append(f.pending, op{e: e, remove: true})
	return nil
}

func (f *fakeOM) Flush(_ context.Context) error {
	f.flushes++
	pending := f.pending
	f.pending = nil
	if f.flushErr != nil {
		if err := f.flushErr(pending); err != nil {
			return err
		}
	}

	target := f.rows
	if f.inTx {
		target = f.txRows
	}
	for _, o := range pending {
		if o.remove {
			if sd, ok := o.e.(resource.SoftDeletable); ok && !sd.IsDeleted() {
				at := fixedNow
				sd.SetDeletedAt(&at)
				target[o.e.EntityID()] = o.e
				continue
			}
			delete(target, o.e.EntityID())
			continue
		}
		if o.e.EntityID() == "" {
			f.nextID++
			o.e.SetEntityID(fmt.Sprintf("%d", f.nextID))
		}
		target[o.e.EntityID()] = o.e
	}
	return nil
}

func (f *fakeOM) Begin(_ context.Context) error {
	f.begins++
	if f.beginErr != nil {
		return f.beginErr
	}
	if f.inTx {
		return domain.ErrTransactionState
	}
	f.inTx = true
	f.txRows = make(map[string]resource.Entity, len(f.rows))
	for k, v := range f.rows {
		f.txRows[k] = v
	}
	return nil
}

func (f *fakeOM) Commit(_ context.Context) error {
	f.commits++
	if !f.inTx {
		return domain.ErrTransactionState
	}
	f.rows, f.txRows, f.inTx = f.txRows, nil, false
	return nil
}

func (f *fakeOM) Rollback(_ context.Context) error {
	f.rollbacks++
	if !f.inTx {
		return domain.ErrTransactionState
	}
	f.txRows, f.inTx, f.pending = nil, false, nil
	return nil
}

func (f *fakeOM) Detach(e resource.Entity) {
	f.detached = append(f.detached, e)
	kept := f.pending[:0]
	for _, o := range f.pending {
		if o.e != e {
			kept = append(kept, o)
		}
	}
	f.pending = kept
}

func (f *fakeOM) Identifier(e resource.Entity) string { return e.EntityID() }

func (f *fakeOM) FindByIDs(_ context.Context, entityType string, ids []string) ([]resource.Entity, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []resource.Entity
	for _, id := range ids {
		if e, ok := f.rows[id]; ok && e.EntityType() == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

// failTitle rejects staged entities titled title with a rooted violation.
func failTitle(title string) func([]op) error {
	return func(pending []op) error {
		for _, o := range pending {
			if p, ok := o.e.(*post); ok && p.Title == title {
				return domain.NewConstraintViolation(errors.New("unique_title"),
					resource.NewViolation("title already used", p).WithPath("title"))
			}
		}
		return nil
	}
}

// --- Validator ---

type titleValidator struct {
	calls int
}

func (v *titleValidator) Validate(_ context.Context, e resource.Entity) []resource.Violation {
	v.calls++
	if p, ok := e.(*post); ok && p.Title == "" {
		return []resource.Violation{resource.NewViolation("title is required", p).WithPath("title")}
	}
	return nil
}

// --- Dispatcher ---

type recordingDispatcher struct {
	names []string
	sizes []int
	hook  func(e *event.Event)
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e *event.Event) {
	d.names = append(d.names, e.Name)
	d.sizes = append(d.sizes, e.Batch.Len())
	if d.hook != nil {
		d.hook(e)
	}
}
