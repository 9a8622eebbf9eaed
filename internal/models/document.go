// Package models defines the domain types for folio.
package models

import (
	"fmt"
	"path"
	"slices"
	"time"
)

// Document is one source entry: metadata, body and the derived output path.
type Document struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	Body         string `json:"-"`
	PublishDate  Date   `json:"publish_date"`
	LastModified Date   `json:"last_modified"`
	Checksum     string `json:"checksum"`
	Tags         []Tag  `json:"tags"`
	Archived     bool   `json:"archived"`
	Skip         bool   `json:"-"`
	OutputPath   string `json:"output_path"`
}

// HasTag reports whether the document carries a tag with the given id.
func (d *Document) HasTag(id string) bool {
	for _, t := range d.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// SourceFile describes a source document found in the input directory.
type SourceFile struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// PostPath returns the artifact path of a post below postsDir.
func PostPath(postsDir, id string, published Date) string {
	return path.Join(postsDir, fmt.Sprintf("%04d", published.Year), fmt.Sprintf("%02d", int(published.Month)), id+".html")
}

// SortByDateDesc sorts docs newest first; equal dates order by id.
func SortByDateDesc(docs []*Document) {
	slices.SortStableFunc(docs, func(a, b *Document) int {
		switch {
		case b.PublishDate.Before(a.PublishDate):
			return -1
		case a.PublishDate.Before(b.PublishDate):
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
