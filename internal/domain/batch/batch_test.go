package batch

import (
	"testing"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

type note struct{ id string }

func (n *note) EntityType() string    { return "note" }
func (n *note) EntityID() string      { return n.id }
func (n *note) SetEntityID(id string) { n.id = id }

func withStatuses(statuses ...resource.Status) *Batch {
	items := make([]*resource.Resource, len(statuses))
	for i, s := range statuses {
		items[i] = resource.New(resource.Raw(&note{}))
		items[i].SetStatus(s)
	}
	return New(items...)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []resource.Status
		want     Status
	}{
		{"empty batch is pending", nil, StatusPending},
		{"all pending", []resource.Status{resource.StatusPending, resource.StatusPending}, StatusPending},
		{"all created", []resource.Status{resource.StatusCreated, resource.StatusCreated}, StatusSuccessfully},
		{
			"mixed success kinds",
			[]resource.Status{resource.StatusCreated, resource.StatusUpdated, resource.StatusDeleted, resource.StatusUndeleted},
			StatusSuccessfully,
		},
		{"all canceled", []resource.Status{resource.StatusCanceled, resource.StatusCanceled}, StatusCanceled},
		{"all error", []resource.Status{resource.StatusError}, StatusError},
		{"error and canceled", []resource.Status{resource.StatusError, resource.StatusCanceled}, StatusMixed},
		{"success and error", []resource.Status{resource.StatusCreated, resource.StatusError}, StatusMixed},
		{"pending and success", []resource.Status{resource.StatusPending, resource.StatusCreated}, StatusMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withStatuses(tt.statuses...).Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasErrors(t *testing.T) {
	b := withStatuses(resource.StatusCreated, resource.StatusCreated)
	if b.HasErrors() {
		t.Fatal("expected no errors")
	}

	b.Get(1).AddError(resource.NewViolation("broken", nil))
	if !b.HasErrors() {
		t.Error("expected item error to be reported")
	}

	b = withStatuses(resource.StatusCreated)
	b.AddError(resource.NewViolation("batch level", nil))
	if !b.HasErrors() {
		t.Error("expected batch error to be reported")
	}
}

func TestIndexOf(t *testing.T) {
	a, c := &note{id: "a"}, &note{id: "c"}
	b := FromCandidates(resource.Raws(a, c))
	b.Append(resource.NewMissing("x", resource.NewViolation("missing", nil)))

	if got := b.IndexOf(c); got != 1 {
		t.Errorf("IndexOf(c) = %d, want 1", got)
	}
	if got := b.IndexOf(&note{id: "a"}); got != -1 {
		t.Errorf("IndexOf(copy) = %d, want -1", got)
	}
	if got := b.IndexOf(nil); got != -1 {
		t.Errorf("IndexOf(nil) = %d, want -1", got)
	}
	if got := len(b.Entities()); got != 2 {
		t.Errorf("Entities() len = %d, want 2", got)
	}
}
