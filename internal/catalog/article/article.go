// Package article is the entity type shipped with the CLI.
package article

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

// EntityType is the type name of articles.
const EntityType = "article"

// Article is a soft deletable blog article with a unique slug.
type Article struct {
	resource.SoftDelete `yaml:",inline"`

	ID     string `json:"id" yaml:"id,omitempty"`
	Slug   string `json:"slug" yaml:"slug"`
	Title  string `json:"title" yaml:"title"`
	Body   string `json:"body" yaml:"body"`
	Author string `json:"author" yaml:"author"`
}

// New creates an empty article.
func New() resource.Entity { return &Article{} }

func (a *Article) EntityType() string    { return EntityType }
func (a *Article) EntityID() string      { return a.ID }
func (a *Article) SetEntityID(id string) { a.ID = id }

// UniqueKeys makes the slug unique per store.
func (a *Article) UniqueKeys() map[string]string {
	return map[string]string{"slug": a.Slug}
}

// Decode reads a YAML list of articles.
func Decode(r io.Reader) ([]*Article, error) {
	var out []*Article
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	for i, a := range out {
		if a == nil {
			return nil, fmt.Errorf("decode articles: item %d is empty", i)
		}
	}
	return out, nil
}

// Candidates wraps articles as raw candidates.
func Candidates(articles []*Article) []resource.Candidate {
	out := make([]resource.Candidate, len(articles))
	for i, a := range articles {
		out[i] = resource.Raw(a)
	}
	return out
}
