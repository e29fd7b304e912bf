// Package errmap turns persistence errors into resource violations.
package errmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"github.com/kailas-cloud/resdomain/internal/domain"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/i18n"
)

// maxDepth bounds cause chain walks, chains may be cyclic.
const maxDepth = 32

const sqlStateMarker = "SQLSTATE["

// Translator resolves message keys.
type Translator interface {
	Translate(key string, args ...any) string
}

// Mapper maps errors to user facing messages.
type Mapper struct {
	tr Translator
}

// New creates a mapper.
func New(tr Translator) *Mapper {
	return &Mapper{tr: tr}
}

// Message returns the translated database error message.
// In debug mode the error type and the driver message are appended.
func (m *Mapper) Message(err error, debug bool) string {
	msg := m.tr.Translate(i18n.KeyDatabaseError)
	if !debug || err == nil {
		return msg
	}

	msg = fmt.Sprintf("%s [%T]", msg, err)
	if detail := driverMessage(err); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// Violations expands err into violations. Structured constraint
// violations keep their own root, falling back to root.
func (m *Mapper) Violations(err error, root any, debug bool) []resource.Violation {
	if cv := constraintViolation(err); cv != nil && len(cv.Violations) > 0 {
		out := make([]resource.Violation, len(cv.Violations))
		for i, v := range cv.Violations {
			if v.Root == nil {
				v.Root = root
			}
			out[i] = v
		}
		return out
	}

	if nf := notFound(err); nf != nil {
		if nf.Entity != nil {
			root = nf.Entity
		}
		return []resource.Violation{resource.NewViolation(m.tr.Translate(i18n.KeyObjectDoesNotExist, nf.ID), root)}
	}

	return []resource.Violation{resource.NewViolation(m.Message(err, debug), root)}
}

func notFound(err error) *domain.NotFoundError {
	var found *domain.NotFoundError
	walk(err, func(e error) bool {
		found, _ = e.(*domain.NotFoundError)
		return found != nil
	})
	return found
}

func constraintViolation(err error) *domain.ConstraintViolationError {
	var found *domain.ConstraintViolationError
	walk(err, func(e error) bool {
		if cv, ok := e.(*domain.ConstraintViolationError); ok {
			found = cv
			return true
		}
		return false
	})
	return found
}

func driverMessage(err error) string {
	var detail string
	walk(err, func(e error) bool {
		switch de := e.(type) {
		case *pgconn.PgError:
			detail = de.Message
			return true
		case *sqlite.Error:
			detail = de.Error()
			return true
		}
		return false
	})
	if detail != "" {
		return detail
	}

	text := innermost(err).Error()
	if !strings.HasPrefix(text, sqlStateMarker) {
		return ""
	}
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text)
}

// walk visits err and its causes depth first until fn returns true.
func walk(err error, fn func(error) bool) bool {
	visited := 0
	var visit func(error) bool
	visit = func(e error) bool {
		if e == nil || visited >= maxDepth {
			return false
		}
		visited++
		if fn(e) {
			return true
		}
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			return visit(u.Unwrap())
		case interface{ Unwrap() []error }:
			for _, c := range u.Unwrap() {
				if visit(c) {
					return true
				}
			}
		}
		return false
	}
	return visit(err)
}

// innermost follows the single-cause chain to its end.
func innermost(err error) error {
	for range maxDepth {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}
