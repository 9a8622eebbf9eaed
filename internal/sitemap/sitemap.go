// Package sitemap builds sitemap.xml documents.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"

	"github.com/klauspost/compress/gzip"

	"github.com/starford/folio/internal/models"
)

// Namespace is the sitemap protocol namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []url    `xml:"url"`
}

type url struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Sitemap collects one entry per location. Adding a location again replaces
// its last modification date.
type Sitemap struct {
	entries map[string]models.Date
}

// New returns an empty sitemap.
func New() *Sitemap {
	return &Sitemap{entries: make(map[string]models.Date)}
}

// Add records loc with its last modification date.
func (s *Sitemap) Add(loc string, lastMod models.Date) {
	s.entries[loc] = lastMod
}

// Remove drops loc.
func (s *Sitemap) Remove(loc string) {
	delete(s.entries, loc)
}

// Len returns the number of entries.
func (s *Sitemap) Len() int {
	return len(s.entries)
}

// Encode renders the urlset with entries sorted by location.
func (s *Sitemap) Encode() ([]byte, error) {
	set := urlset{Xmlns: Namespace, URLs: make([]url, 0, len(s.entries))}
	for loc, mod := range s.entries {
		set.URLs = append(set.URLs, url{Loc: loc, LastMod: mod.String()})
	}
	slices.SortFunc(set.URLs, func(a, b url) int {
		switch {
		case a.Loc < b.Loc:
			return -1
		case a.Loc > b.Loc:
			return 1
		}
		return 0
	})

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("sitemap: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Gzip compresses an encoded sitemap. The header carries no name or
// timestamp, so equal input yields equal output.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("sitemap: gzip: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("sitemap: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("sitemap: gzip: %w", err)
	}
	return buf.Bytes(), nil
}
