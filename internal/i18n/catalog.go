// Package i18n holds the message catalog used for user facing errors.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyIdentifierCreate      = "domain.identifier.error_create"
	KeyIdentifierUpdate      = "domain.identifier.error_update"
	KeyIdentifierDelete      = "domain.identifier.error_delete"
	KeyIdentifierUndelete    = "domain.identifier.error_undelete"
	KeyDatabaseError         = "domain.database_error"
	KeyDatabasePreviousError = "domain.database_previous_error"
	KeyObjectDoesNotExist    = "domain.object_does_not_exist"
	KeyTypeNotUndeletable    = "domain.resource_type_not_undeletable"
	KeyBatchTooLarge         = "domain.batch_too_large"
)

var translations = map[language.Tag]map[string]string{
	language.English: {
		KeyIdentifierCreate:      "The resource cannot be created because it already has an identifier",
		KeyIdentifierUpdate:      "The resource cannot be updated because it has no identifier",
		KeyIdentifierDelete:      "The resource cannot be deleted because it has no identifier",
		KeyIdentifierUndelete:    "The resource cannot be undeleted because it has no identifier",
		KeyDatabaseError:         "Database error",
		KeyDatabasePreviousError: "Caused by a previous internal database error",
		KeyObjectDoesNotExist:    "The object with the identifier %q does not exist",
		KeyTypeNotUndeletable:    "The resource type %q is not undeletable",
		KeyBatchTooLarge:         "The batch exceeds the limit of %d resources",
	},
	language.French: {
		KeyIdentifierCreate:      "La ressource ne peut pas être créée car elle possède déjà un identifiant",
		KeyIdentifierUpdate:      "La ressource ne peut pas être mise à jour car elle n'a pas d'identifiant",
		KeyIdentifierDelete:      "La ressource ne peut pas être supprimée car elle n'a pas d'identifiant",
		KeyIdentifierUndelete:    "La ressource ne peut pas être restaurée car elle n'a pas d'identifiant",
		KeyDatabaseError:         "Erreur de base de données",
		KeyDatabasePreviousError: "Causée par une erreur interne précédente de la base de données",
		KeyObjectDoesNotExist:    "L'objet avec l'identifiant %q n'existe pas",
		KeyTypeNotUndeletable:    "Le type de ressource %q ne peut pas être restauré",
		KeyBatchTooLarge:         "Le lot dépasse la limite de %d ressources",
	},
}

// Catalog translates message keys for one locale.
type Catalog struct {
	printer *message.Printer
	known   map[string]bool
}

// New builds a catalog for locale ("en", "fr", ...). Unknown locales fall back to English.
func New(locale string) (*Catalog, error) {
	tag := language.English
	if locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		tag = parsed
	}

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	known := make(map[string]bool)
	for lang, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(lang, key, msg); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", lang, key, err)
			}
			known[key] = true
		}
	}

	matcher := language.NewMatcher(b.Languages())
	_, idx, _ := matcher.Match(tag)
	return &Catalog{
		printer: message.NewPrinter(b.Languages()[idx], message.Catalog(b)),
		known:   known,
	}, nil
}

// MustNew builds a catalog or panics.
func MustNew(locale string) *Catalog {
	c, err := New(locale)
	if err != nil {
		panic(err)
	}
	return c
}

// Translate returns the message for key. Unknown keys are returned as is.
func (c *Catalog) Translate(key string, args ...any) string {
	if !c.known[key] {
		return key
	}
	return c.printer.Sprintf(key, args...)
}
