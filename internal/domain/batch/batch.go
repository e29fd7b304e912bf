package batch

import "github.com/kailas-cloud/resdomain/internal/domain/resource"

// Status is the aggregate outcome of a batch.
type Status string

// Batch status values.
const (
	StatusPending      Status = "pending"
	StatusSuccessfully Status = "successfully"
	StatusCanceled     Status = "canceled"
	StatusError        Status = "error"
	StatusMixed        Status = "mixed"
)

// Batch is the ordered set of resources handled by one call.
// Items are never reordered; errors not attributable to an item live on the batch.
type Batch struct {
	items  []*resource.Resource
	errors []resource.Violation
}

// New creates a batch holding items in the given order.
func New(items ...*resource.Resource) *Batch {
	return &Batch{items: append([]*resource.Resource(nil), items...)}
}

// FromCandidates wraps candidates into pending resources.
func FromCandidates(candidates []resource.Candidate) *Batch {
	items := make([]*resource.Resource, len(candidates))
	for i, c := range candidates {
		items[i] = resource.New(c)
	}
	return &Batch{items: items}
}

// Append adds items at the end of the batch.
func (b *Batch) Append(items ...*resource.Resource) { b.items = append(b.items, items...) }

// Len returns the number of items.
func (b *Batch) Len() int { return len(b.items) }

// Get returns the item at index i.
func (b *Batch) Get(i int) *resource.Resource { return b.items[i] }

// Items returns the items in processing order.
func (b *Batch) Items() []*resource.Resource { return b.items }

// Errors returns the batch-level errors.
func (b *Batch) Errors() []resource.Violation { return b.errors }

// AddError appends a batch-level error.
func (b *Batch) AddError(v resource.Violation) { b.errors = append(b.errors, v) }

// Status derives the aggregate status from the item statuses.
func (b *Batch) Status() Status {
	var pending, canceled, failed, succeeded int
	for _, r := range b.items {
		switch s := r.Status(); {
		case s == resource.StatusPending:
			pending++
		case s == resource.StatusCanceled:
			canceled++
		case s == resource.StatusError:
			failed++
		case s.IsSuccess():
			succeeded++
		}
	}

	n := len(b.items)
	switch n {
	case pending:
		return StatusPending
	case succeeded:
		return StatusSuccessfully
	case canceled:
		return StatusCanceled
	case failed:
		return StatusError
	default:
		return StatusMixed
	}
}

// HasErrors reports whether the batch or any of its items carries errors.
func (b *Batch) HasErrors() bool {
	if len(b.errors) > 0 {
		return true
	}
	for _, r := range b.items {
		if !r.IsValid() {
			return true
		}
	}
	return false
}

// IndexOf returns the index of the item wrapping entity root, or -1.
func (b *Batch) IndexOf(root any) int {
	for i, r := range b.items {
		if e := r.Entity(); e != nil && resource.Same(e, root) {
			return i
		}
	}
	return -1
}

// Entities returns the entities of the items that wrap one.
func (b *Batch) Entities() []resource.Entity {
	out := make([]resource.Entity, 0, len(b.items))
	for _, r := range b.items {
		if e := r.Entity(); e != nil {
			out = append(out, e)
		}
	}
	return out
}
