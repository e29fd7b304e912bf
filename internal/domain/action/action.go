package action

import "fmt"

// Kind is a persist action.
type Kind string

// Action kinds.
const (
	Create   Kind = "create"
	Update   Kind = "update"
	Upsert   Kind = "upsert"
	Delete   Kind = "delete"
	Undelete Kind = "undelete"
)

// Kinds lists every action kind.
func Kinds() []Kind { return []Kind{Create, Update, Upsert, Delete, Undelete} }

// IsValid checks if the action is one of the supported values.
func (k Kind) IsValid() bool {
	switch k {
	case Create, Update, Upsert, Delete, Undelete:
		return true
	default:
		return false
	}
}

// Parse converts a string to a Kind.
func Parse(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return k, nil
}
