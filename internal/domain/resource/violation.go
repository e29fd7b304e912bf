package resource

// Violation is one error entry attached to a resource or a batch.
type Violation struct {
	Message  string
	Template string
	Params   map[string]string
	// Path is the offending property, empty for object-level errors.
	Path string
	// Code is a machine readable reason (SQLSTATE, rule name, ...).
	Code string
	// Root references the offending entity, nil when unknown.
	Root any
}

// NewViolation creates an object-level violation.
func NewViolation(message string, root any) Violation {
	return Violation{Message: message, Template: message, Root: root}
}

// WithPath returns a copy bound to a property path.
func (v Violation) WithPath(path string) Violation {
	v.Path = path
	return v
}

// WithCode returns a copy carrying a reason code.
func (v Violation) WithCode(code string) Violation {
	v.Code = code
	return v
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}
