package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/resdomain/internal/db"
	"github.com/kailas-cloud/resdomain/internal/domain"
)

func save(t *testing.T, m *Manager, p *page) {
	t.Helper()
	ctx := context.Background()
	if err := m.Persist(ctx, p); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func find(t *testing.T, m *Manager, id string) *page {
	t.Helper()
	found, err := m.FindByIDs(context.Background(), "page", []string{id})
	if err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	if len(found) == 0 {
		return nil
	}
	return found[0].(*page)
}

func TestFlush_InsertWritesRowAndIndex(t *testing.T) {
	s := newMockStore()
	m := newManager(s)
	p := &page{Slug: "home", Title: "Home"}
	save(t, m, p)

	if p.ID == "" {
		t.Fatal("identifier not assigned")
	}
	if _, ok := s.data["rd:page:"+p.ID]; !ok {
		t.Error("row key missing")
	}
	if got := string(s.data["rd:page:unique:slug:home"]); got != p.ID {
		t.Errorf("index owner = %q, want %q", got, p.ID)
	}
	if s.execs != 1 {
		t.Errorf("execs = %d, want 1", s.execs)
	}
}

func TestFlush_UpdateMovesIndex(t *testing.T) {
	s := newMockStore()
	m := newManager(s)
	p := &page{Slug: "home", Title: "Home"}
	save(t, m, p)

	p.Slug = "start"
	save(t, m, p)

	if _, ok := s.data["rd:page:unique:slug:home"]; ok {
		t.Error("old index entry not released")
	}
	if got := string(s.data["rd:page:unique:slug:start"]); got != p.ID {
		t.Errorf("new index owner = %q", got)
	}
	if got := find(t, m, p.ID); got == nil || got.Slug != "start" {
		t.Errorf("found = %+v", got)
	}
}

func TestFlush_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	m := newManager(s)
	save(t, m, &page{Slug: "home"})

	dup := &page{Slug: "home"}
	_ = m.Persist(ctx, dup)
	err := m.Flush(ctx)

	var cv *domain.ConstraintViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("err = %v, want constraint violation", err)
	}
	if cv.Violations[0].Root != dup || cv.Violations[0].Path != "slug" {
		t.Errorf("violation = %+v", cv.Violations[0])
	}
	if dup.ID != "" {
		t.Error("identifier must be reverted")
	}
	if s.execs != 1 {
		t.Errorf("execs = %d, nothing must be written", s.execs)
	}
}

func TestFlush_UniqueViolationWithinFlush(t *testing.T) {
	ctx := context.Background()
	m := newManager(newMockStore())
	_ = m.Persist(ctx, &page{Slug: "same"})
	_ = m.Persist(ctx, &page{Slug: "same"})
	if err := m.Flush(ctx); !errors.Is(err, domain.ErrConstraintViolation) {
		t.Errorf("err = %v, want constraint violation", err)
	}
}

func TestFlush_UpdateMissingRow(t *testing.T) {
	ctx := context.Background()
	m := newManager(newMockStore())
	_ = m.Persist(ctx, &page{ID: "nope", Slug: "x"})
	if err := m.Flush(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFlush_InsertExistingRow(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	s.existsFn = func(context.Context, []string) ([]bool, error) { return []bool{true}, nil }
	m := newManager(s)
	_ = m.Persist(ctx, &page{Slug: "x"})
	if err := m.Flush(ctx); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRemove_SoftThenHard(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	m := newManager(s)
	p := &page{Slug: "home"}
	save(t, m, p)

	_ = m.Remove(ctx, p)
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("soft Flush: %v", err)
	}
	got := find(t, m, p.ID)
	if got == nil || !got.IsDeleted() || !got.DeletedAt().Equal(now) {
		t.Fatalf("after soft delete = %+v", got)
	}

	_ = m.Remove(ctx, p)
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("hard Flush: %v", err)
	}
	if find(t, m, p.ID) != nil {
		t.Error("row still present")
	}
	if _, ok := s.data["rd:page:unique:slug:home"]; ok {
		t.Error("index entry not released on delete")
	}
}

func TestTransaction_BuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	m := newManager(s)

	if err := m.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	a, b := &page{Slug: "a"}, &page{Slug: "b"}
	_ = m.Persist(ctx, a)
	_ = m.Flush(ctx)
	_ = m.Persist(ctx, b)
	_ = m.Flush(ctx)

	if s.execs != 0 {
		t.Fatalf("execs = %d before commit", s.execs)
	}
	if find(t, m, a.ID) == nil {
		t.Error("row must be visible inside the transaction")
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if s.execs != 1 {
		t.Errorf("execs = %d, want one MULTI/EXEC", s.execs)
	}
	if find(t, m, b.ID) == nil {
		t.Error("committed row missing")
	}
}

func TestTransaction_Rollback(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	m := newManager(s)
	_ = m.Begin(ctx)
	p := &page{Slug: "a"}
	_ = m.Persist(ctx, p)
	_ = m.Flush(ctx)
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if p.ID != "" {
		t.Error("identifier must be reverted")
	}
	if len(s.data) != 0 {
		t.Errorf("store written: %v", s.data)
	}
}

func TestTransaction_CommitFailureReverts(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	s.execFn = func(context.Context, []db.Op) error {
		return &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
	}
	m := newManager(s)
	_ = m.Begin(ctx)
	p := &page{Slug: "a"}
	_ = m.Persist(ctx, p)
	_ = m.Flush(ctx)

	err := m.Commit(ctx)
	if !errors.Is(err, db.ErrTxAborted) {
		t.Errorf("err = %v, want ErrTxAborted", err)
	}
	if p.ID != "" {
		t.Error("identifier must be reverted")
	}
}

func TestTransaction_State(t *testing.T) {
	ctx := context.Background()
	m := newManager(newMockStore())
	if err := m.Commit(ctx); !errors.Is(err, domain.ErrTransactionState) {
		t.Errorf("Commit = %v", err)
	}
	if err := m.Rollback(ctx); !errors.Is(err, domain.ErrTransactionState) {
		t.Errorf("Rollback = %v", err)
	}
	_ = m.Begin(ctx)
	if err := m.Begin(ctx); !errors.Is(err, domain.ErrTransactionState) {
		t.Errorf("nested Begin = %v", err)
	}
}

func TestFindByIDs_StoreError(t *testing.T) {
	s := newMockStore()
	s.mgetFn = func(context.Context, []string) ([][]byte, error) {
		return nil, &db.Error{Op: db.OpMGet, Err: errors.New("conn reset")}
	}
	m := newManager(s)
	if _, err := m.FindByIDs(context.Background(), "page", []string{"1"}); err == nil {
		t.Error("expected error")
	}
}

func TestFindByIDs_UnknownType(t *testing.T) {
	m := newManager(newMockStore())
	_, err := m.FindByIDs(context.Background(), "nope", []string{"1"})
	if !errors.Is(err, domain.ErrUnknownEntityType) {
		t.Errorf("err = %v", err)
	}
}

func TestWriteSet_LastWriteWins(t *testing.T) {
	ws := newWriteSet()
	ws.put("a", []byte("1"))
	ws.del("b")
	ws.del("a")
	ws.put("b", []byte("2"))

	ops := ws.ops()
	if len(ops) != 2 {
		t.Fatalf("ops = %d, want 2", len(ops))
	}
	if ops[0].Key != "a" || ops[0].Kind != db.OpDelete {
		t.Errorf("ops[0] = %+v", ops[0])
	}
	if ops[1].Key != "b" || ops[1].Kind != db.OpPut {
		t.Errorf("ops[1] = %+v", ops[1])
	}
}
