package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/folio/internal/models"
)

// SchemaVersion is the snapshot format version written by Encode.
const SchemaVersion = 1

// ErrSchema is returned for snapshots that decode but violate the schema.
var ErrSchema = errors.New("index: invalid snapshot")

// snapshot is the durable representation of an Index.
type snapshot struct {
	Version int            `json:"version"`
	Posts   []snapshotPost `json:"posts"`
	Tags    []snapshotTag  `json:"tags"`
}

type snapshotPost struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Title        string        `json:"title"`
	Subtitle     string        `json:"subtitle"`
	Author       string        `json:"author"`
	Description  string        `json:"description"`
	PublishDate  string        `json:"publish_date"`
	LastModified string        `json:"last_modified"`
	Checksum     string        `json:"checksum"`
	Tags         []snapshotTag `json:"tags"`
	Archived     bool          `json:"archived"`
	OutputPath   string        `json:"output_path"`
}

type snapshotTag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	ID    string `json:"id"`
}

// Encode serializes idx. Documents keep index order, tags are written in
// display order so equal indexes encode to equal bytes.
func Encode(idx *Index) ([]byte, error) {
	s := snapshot{
		Version: SchemaVersion,
		Posts:   make([]snapshotPost, 0, idx.Len()),
		Tags:    encodeTags(idx.Tags().Ordered()),
	}
	for _, d := range idx.docs {
		s.Posts = append(s.Posts, snapshotPost{
			ID:           d.ID,
			Source:       d.Source,
			Title:        d.Title,
			Subtitle:     d.Subtitle,
			Author:       d.Author,
			Description:  d.Description,
			PublishDate:  d.PublishDate.String(),
			LastModified: d.LastModified.String(),
			Checksum:     d.Checksum,
			Tags:         encodeTags(d.Tags),
			Archived:     d.Archived,
			OutputPath:   d.OutputPath,
		})
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("index: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot. Truncated, malformed or wrong-version input is
// rejected as a whole; nothing is partially trusted.
func Decode(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrSchema)
	}
	if s.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrSchema, s.Version, SchemaVersion)
	}

	idx := New()
	for i, p := range s.Posts {
		doc, err := decodePost(p)
		if err != nil {
			return nil, fmt.Errorf("%w: post %d: %v", ErrSchema, i, err)
		}
		if idx.Contains(doc.ID) {
			return nil, fmt.Errorf("%w: duplicate post id %q", ErrSchema, doc.ID)
		}
		idx.Put(doc)
	}
	for i, st := range s.Tags {
		t, err := decodeTag(st)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %d: %v", ErrSchema, i, err)
		}
		idx.tags.Put(t)
	}
	return idx, nil
}

func decodePost(p snapshotPost) (*models.Document, error) {
	if p.ID == "" {
		return nil, errors.New("missing id")
	}
	if p.OutputPath == "" {
		return nil, errors.New("missing output_path")
	}
	published, err := models.ParseDate(p.PublishDate)
	if err != nil {
		return nil, err
	}
	modified, err := models.ParseDate(p.LastModified)
	if err != nil {
		return nil, err
	}
	doc := &models.Document{
		ID:           p.ID,
		Source:       p.Source,
		Title:        p.Title,
		Subtitle:     p.Subtitle,
		Author:       p.Author,
		Description:  p.Description,
		PublishDate:  published,
		LastModified: modified,
		Checksum:     p.Checksum,
		Archived:     p.Archived,
		OutputPath:   p.OutputPath,
	}
	for _, st := range p.Tags {
		t, err := decodeTag(st)
		if err != nil {
			return nil, err
		}
		doc.Tags = append(doc.Tags, t)
	}
	return doc, nil
}

func decodeTag(st snapshotTag) (models.Tag, error) {
	t := models.Tag{Name: st.Name, Color: models.ColorClass(st.Color), ID: st.ID}
	if t.ID == "" {
		return models.Tag{}, fmt.Errorf("tag %q: missing id", st.Name)
	}
	if !t.Color.Valid() {
		return models.Tag{}, fmt.Errorf("tag %q: unknown color %q", st.Name, st.Color)
	}
	return t, nil
}

func encodeTags(in []models.Tag) []snapshotTag {
	out := make([]snapshotTag, len(in))
	for i, t := range in {
		out[i] = snapshotTag{Name: t.Name, Color: string(t.Color), ID: t.ID}
	}
	return out
}
