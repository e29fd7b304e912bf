package article

import (
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/repository/sqlstore"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
	"github.com/kailas-cloud/resdomain/internal/validation"
)

// Mapping binds articles to the articles table.
var Mapping = sqlstore.Mapping{
	EntityType: EntityType,
	Table:      "articles",
	Columns:    []string{"slug", "title", "body", "author"},
	SoftDelete: true,
	New:        New,
	Values: func(e resource.Entity) []any {
		a := e.(*Article)
		return []any{a.Slug, a.Title, a.Body, a.Author}
	},
	Targets: func(e resource.Entity) []any {
		a := e.(*Article)
		return []any{&a.Slug, &a.Title, &a.Body, &a.Author}
	},
}

const postgresDDL = `CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	deleted_at TIMESTAMPTZ NULL
)`

const sqliteDDL = `CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	deleted_at TIMESTAMP NULL
)`

// Schema returns the DDL of the articles table for driver.
func Schema(driver string) []string {
	if driver == sqlstore.DriverPostgres {
		return []string{postgresDDL}
	}
	return []string{sqliteDDL}
}

// Register adds articles to r.
func Register(r *uow.Registry) {
	r.Register(EntityType, New)
}

// DefaultRules are used when the configuration has no article rules.
var DefaultRules = []validation.Rule{
	{Path: "title", Expr: `len(trim(title)) > 0`, Message: "The title must not be blank"},
	{Path: "slug", Expr: `slug matches "^[a-z0-9]+(-[a-z0-9]+)*$"`, Message: "The slug must be lowercase words joined by dashes"},
	{Path: "title", Expr: `size(self.title) <= 200`, Message: "The title must not exceed 200 characters", Lang: validation.LangCEL},
}
