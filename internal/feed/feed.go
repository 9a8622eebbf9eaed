// Package feed builds the RSS 2.0 channel of published posts.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

// Item is one feed entry, keyed by its link.
type Item struct {
	Link        string
	Title       string
	Description string
	Published   models.Date
}

// Feed collects items for a single channel.
type Feed struct {
	Title       string
	Link        string
	Description string

	// MaxItems caps the encoded items, newest first. Zero keeps all.
	MaxItems int

	items map[string]Item
}

// New returns an empty feed for the given channel.
func New(title, link, description string, maxItems int) *Feed {
	return &Feed{
		Title:       title,
		Link:        link,
		Description: description,
		MaxItems:    maxItems,
		items:       make(map[string]Item),
	}
}

// Add records it, replacing any item with the same link.
func (f *Feed) Add(it Item) {
	f.items[it.Link] = it
}

// Remove drops the item with link.
func (f *Feed) Remove(link string) {
	delete(f.items, link)
}

// Len returns the number of items.
func (f *Feed) Len() int {
	return len(f.items)
}

// Items returns the items newest first; equal dates order by link.
func (f *Feed) Items() []Item {
	out := make([]Item, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b Item) int {
		switch {
		case b.Published.Before(a.Published):
			return -1
		case a.Published.Before(b.Published):
			return 1
		}
		return strings.Compare(a.Link, b.Link)
	})
	if f.MaxItems > 0 && len(out) > f.MaxItems {
		out = out[:f.MaxItems]
	}
	return out
}

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        guid   `xml:"guid"`
	Description string `xml:"description,omitempty"`
	PubDate     string `xml:"pubDate"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Encode renders the channel. The build date is the newest item's date, so
// an unchanged feed encodes to identical bytes.
func (f *Feed) Encode() ([]byte, error) {
	items := f.Items()
	doc := rss{
		Version: "2.0",
		Channel: channel{
			Title:       f.Title,
			Link:        f.Link,
			Description: f.Description,
			Items:       make([]rssItem, 0, len(items)),
		},
	}
	if len(items) > 0 {
		doc.Channel.LastBuildDate = items[0].Published.Time().Format(time.RFC1123Z)
	}
	for _, it := range items {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        guid{IsPermaLink: true, Value: it.Link},
			Description: it.Description,
			PubDate:     it.Published.Time().Format(time.RFC1123Z),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("feed: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
