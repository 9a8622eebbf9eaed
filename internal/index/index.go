// Package index holds the persisted index: every known document in
// insertion order plus the tag registry, and the stores that snapshot it.
package index

import (
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/tags"
)

// Index is the in-memory form of a snapshot. Document ids are unique:
// putting an existing id replaces the entry at its current position.
// It is not safe for concurrent mutation.
type Index struct {
	docs []*models.Document
	pos  map[string]int
	tags *tags.Registry
}

// New returns an empty index.
func New() *Index {
	return &Index{
		pos:  make(map[string]int),
		tags: tags.NewRegistry(),
	}
}

// Len returns the number of documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Get returns the document with the given id.
func (idx *Index) Get(id string) (*models.Document, bool) {
	i, ok := idx.pos[id]
	if !ok {
		return nil, false
	}
	return idx.docs[i], true
}

// Contains reports whether a document with id is indexed.
func (idx *Index) Contains(id string) bool {
	_, ok := idx.pos[id]
	return ok
}

// Documents returns the documents in index order. The slice is a copy.
func (idx *Index) Documents() []*models.Document {
	out := make([]*models.Document, len(idx.docs))
	copy(out, idx.docs)
	return out
}

// IDs returns the document ids in index order.
func (idx *Index) IDs() []string {
	out := make([]string, len(idx.docs))
	for i, d := range idx.docs {
		out[i] = d.ID
	}
	return out
}

// Tags returns the tag registry.
func (idx *Index) Tags() *tags.Registry {
	return idx.tags
}

// Put inserts doc or replaces the entry with the same id in place. It returns
// the replaced document, if any. Tags are not touched.
func (idx *Index) Put(doc *models.Document) *models.Document {
	if i, ok := idx.pos[doc.ID]; ok {
		prev := idx.docs[i]
		idx.docs[i] = doc
		return prev
	}
	idx.pos[doc.ID] = len(idx.docs)
	idx.docs = append(idx.docs, doc)
	return nil
}

// Remove deletes the document with id, keeping the order of the rest.
func (idx *Index) Remove(id string) (*models.Document, bool) {
	i, ok := idx.pos[id]
	if !ok {
		return nil, false
	}
	doc := idx.docs[i]
	idx.docs = append(idx.docs[:i], idx.docs[i+1:]...)
	delete(idx.pos, id)
	for j := i; j < len(idx.docs); j++ {
		idx.pos[idx.docs[j].ID] = j
	}
	return doc, true
}

// Upsert puts doc, registers its tags and drops tags that only the replaced
// version referenced. It returns the replaced document and the orphaned tags.
func (idx *Index) Upsert(doc *models.Document) (*models.Document, []models.Tag) {
	prev := idx.Put(doc)
	idx.tags.Register(doc)
	if prev == nil {
		return nil, nil
	}
	var dropped []models.Tag
	for _, t := range prev.Tags {
		if !doc.HasTag(t.ID) {
			dropped = append(dropped, t)
		}
	}
	return prev, idx.tags.UnregisterIfOrphaned(dropped, idx.Referenced)
}

// Retract removes the document with id and unregisters the tags it alone
// referenced.
func (idx *Index) Retract(id string) (*models.Document, []models.Tag) {
	doc, ok := idx.Remove(id)
	if !ok {
		return nil, nil
	}
	return doc, idx.tags.UnregisterIfOrphaned(doc.Tags, idx.Referenced)
}

// Referenced reports whether any indexed document carries tag id.
func (idx *Index) Referenced(tagID string) bool {
	for _, d := range idx.docs {
		if d.HasTag(tagID) {
			return true
		}
	}
	return false
}

// Tagged returns the documents a tag page lists: those carrying the tag, or
// for a year tag those published in that year.
func (idx *Index) Tagged(tag models.Tag) []*models.Document {
	year, isYear := tag.Year()
	var out []*models.Document
	for _, d := range idx.docs {
		if d.HasTag(tag.ID) || (isYear && d.PublishDate.Year == year) {
			out = append(out, d)
		}
	}
	return out
}

// PruneTags restores the registry invariant after loading a snapshot: tags
// referenced by documents are registered, unreferenced ones are removed and
// returned.
func (idx *Index) PruneTags() []models.Tag {
	for _, d := range idx.docs {
		for _, t := range d.Tags {
			if !idx.tags.Contains(t.ID) {
				idx.tags.Put(t)
			}
		}
	}
	return idx.tags.UnregisterIfOrphaned(idx.tags.Ordered(), idx.Referenced)
}
