package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

// Column names shared by every mapped table.
const (
	ColumnID      = "id"
	ColumnDeleted = "deleted_at"
)

// Mapping binds an entity type to a table.
type Mapping struct {
	EntityType string
	Table      string
	// Columns are the data columns, without id and deleted_at.
	Columns []string
	// SoftDelete adds the deleted_at column.
	SoftDelete bool
	New        resource.Factory
	// Values returns the values of Columns for e.
	Values func(e resource.Entity) []any
	// Targets returns scan destinations of Columns inside e.
	Targets func(e resource.Entity) []any
}

// Validate checks the mapping is usable.
func (m Mapping) Validate() error {
	var errs []error
	if m.EntityType == "" {
		errs = append(errs, errors.New("entity type is required"))
	}
	if m.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if m.New == nil || m.Values == nil || m.Targets == nil {
		errs = append(errs, errors.New("New, Values and Targets are required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("mapping %q: %w", m.EntityType, errors.Join(errs...))
	}
	return nil
}

func (m Mapping) allColumns() []string {
	cols := append([]string{ColumnID}, m.Columns...)
	if m.SoftDelete {
		cols = append(cols, ColumnDeleted)
	}
	return cols
}

func (m Mapping) values(e resource.Entity) []any {
	vals := append([]any{e.EntityID()}, m.Values(e)...)
	if m.SoftDelete {
		vals = append(vals, deletedAt(e))
	}
	return vals
}

func deletedAt(e resource.Entity) any {
	if sd, ok := e.(resource.SoftDeletable); ok && sd.DeletedAt() != nil {
		return *sd.DeletedAt()
	}
	return nil
}

func (m Mapping) insertSQL(d Dialect) string {
	cols := m.allColumns()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.Table, strings.Join(cols, ", "), strings.Join(d.placeholders(1, len(cols)), ", "))
}

func (m Mapping) updateSQL(d Dialect) string {
	cols := m.allColumns()[1:]
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + d.placeholder(i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		m.Table, strings.Join(sets, ", "), ColumnID, d.placeholder(len(cols)+1))
}

func (m Mapping) deleteSQL(d Dialect) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", m.Table, ColumnID, d.placeholder(1))
}

func (m Mapping) selectSQL(d Dialect, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(m.allColumns(), ", "), m.Table, ColumnID, strings.Join(d.placeholders(1, n), ", "))
}
