package resource

import (
	"reflect"
	"time"
)

// Entity is a persistable domain object. Implementations must be pointer types.
type Entity interface {
	EntityType() string
	// EntityID returns "" while the entity has no identifier.
	EntityID() string
	SetEntityID(id string)
}

// SoftDeletable is implemented by entities deleted through a marker.
type SoftDeletable interface {
	DeletedAt() *time.Time
	SetDeletedAt(at *time.Time)
	IsDeleted() bool
}

// UniqueKeyer exposes values that must stay unique per entity type.
// Keys are constraint names, values are the constrained values.
type UniqueKeyer interface {
	UniqueKeys() map[string]string
}

// SoftDelete is an embeddable SoftDeletable implementation.
type SoftDelete struct {
	Deleted *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// DeletedAt returns the deletion marker.
func (s *SoftDelete) DeletedAt() *time.Time { return s.Deleted }

// SetDeletedAt sets or clears the deletion marker.
func (s *SoftDelete) SetDeletedAt(at *time.Time) { s.Deleted = at }

// IsDeleted reports whether the marker is set.
func (s *SoftDelete) IsDeleted() bool { return s.Deleted != nil }

// Same reports whether a and b reference the same object.
// Values of non-comparable dynamic types are never the same.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Factory creates an empty entity of one type.
type Factory func() Entity
