// Package tags maintains the deduplicated set of tags referenced by indexed documents.
package tags

import (
	"slices"

	"github.com/starford/folio/internal/models"
)

// Registry maps normalized tag ids to the tag instance last registered for
// that id. It is not safe for concurrent mutation.
type Registry struct {
	byID map[string]models.Tag
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]models.Tag)}
}

// Register inserts every tag of doc, replacing any entry with the same id.
// The last document registered decides a shared tag's display name and color.
func (r *Registry) Register(doc *models.Document) {
	for _, t := range doc.Tags {
		r.Put(t)
	}
}

// Put inserts or replaces a single tag.
func (r *Registry) Put(t models.Tag) {
	if t.ID == "" {
		return
	}
	r.byID[t.ID] = t
}

// UnregisterIfOrphaned removes each candidate whose id is no longer
// referenced and returns the removed tags.
func (r *Registry) UnregisterIfOrphaned(candidates []models.Tag, referenced func(id string) bool) []models.Tag {
	var removed []models.Tag
	for _, c := range candidates {
		cur, ok := r.byID[c.ID]
		if !ok || referenced(c.ID) {
			continue
		}
		delete(r.byID, c.ID)
		removed = append(removed, cur)
	}
	return removed
}

// Get returns the tag registered under id.
func (r *Registry) Get(id string) (models.Tag, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Ordered returns all tags sorted by lowercased name.
func (r *Registry) Ordered() []models.Tag {
	out := make([]models.Tag, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Tag) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}
