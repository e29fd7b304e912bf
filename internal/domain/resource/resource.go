package resource

import "fmt"

// Status is the processing state of one resource.
type Status string

// Resource status values.
const (
	StatusPending   Status = "pending"
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusDeleted   Status = "deleted"
	StatusUndeleted Status = "undeleted"
	StatusCanceled  Status = "canceled"
	StatusError     Status = "error"
)

// IsSuccess reports whether s is a terminal success status.
func (s Status) IsSuccess() bool {
	switch s {
	case StatusCreated, StatusUpdated, StatusDeleted, StatusUndeleted:
		return true
	default:
		return false
	}
}

// Candidate is an entity submitted for a persist action, either raw or
// bound through a form whose binding errors travel with it.
type Candidate struct {
	entity     Entity
	bound      bool
	formErrors []Violation
}

// Raw wraps a plain entity.
func Raw(e Entity) Candidate { return Candidate{entity: e} }

// Bound wraps an entity populated by a form binding.
func Bound(e Entity, formErrors []Violation) Candidate {
	return Candidate{entity: e, bound: true, formErrors: append([]Violation(nil), formErrors...)}
}

// Entity returns the underlying entity.
func (c Candidate) Entity() Entity { return c.entity }

// IsBound reports whether the candidate comes from a form.
func (c Candidate) IsBound() bool { return c.bound }

// FormErrors returns the binding errors of a form-bound candidate.
func (c Candidate) FormErrors() []Violation { return c.formErrors }

// Raws wraps plain entities.
func Raws(entities ...Entity) []Candidate {
	out := make([]Candidate, len(entities))
	for i, e := range entities {
		out[i] = Raw(e)
	}
	return out
}

// Resource tracks one candidate through a batch call.
type Resource struct {
	candidate Candidate
	ref       string
	status    Status
	errors    []Violation
}

// New creates a pending resource for c.
// A candidate without entity is a caller error and panics.
func New(c Candidate) *Resource {
	if c.entity == nil {
		panic("resource: candidate without entity")
	}
	return &Resource{candidate: c, status: StatusPending}
}

// NewMissing creates an error resource standing for an identifier that
// could not be resolved to an entity.
func NewMissing(id string, v Violation) *Resource {
	return &Resource{ref: id, status: StatusError, errors: []Violation{v}}
}

// Candidate returns the wrapped candidate.
func (r *Resource) Candidate() Candidate { return r.candidate }

// Entity returns the wrapped entity, nil for missing-identifier resources.
func (r *Resource) Entity() Entity { return r.candidate.entity }

// Ref returns the entity identifier or the unresolved identifier.
func (r *Resource) Ref() string {
	if r.candidate.entity != nil {
		return r.candidate.entity.EntityID()
	}
	return r.ref
}

// Status returns the current status.
func (r *Resource) Status() Status { return r.status }

// SetStatus changes the status.
func (r *Resource) SetStatus(s Status) { r.status = s }

// Errors returns the resource errors.
func (r *Resource) Errors() []Violation { return r.errors }

// AddError appends an error.
func (r *Resource) AddError(v Violation) { r.errors = append(r.errors, v) }

// AddErrors appends errors.
func (r *Resource) AddErrors(vs ...Violation) { r.errors = append(r.errors, vs...) }

// IsValid reports whether neither the resource nor its form carries errors.
func (r *Resource) IsValid() bool {
	if len(r.errors) > 0 {
		return false
	}
	return !r.candidate.bound || len(r.candidate.formErrors) == 0
}

// AllErrors returns form errors followed by resource errors.
func (r *Resource) AllErrors() []Violation {
	if !r.candidate.bound || len(r.candidate.formErrors) == 0 {
		return r.errors
	}
	out := make([]Violation, 0, len(r.candidate.formErrors)+len(r.errors))
	out = append(out, r.candidate.formErrors...)
	return append(out, r.errors...)
}

func (r *Resource) String() string {
	return fmt.Sprintf("resource(%s, %s)", r.Ref(), r.status)
}
