// Package postservice exposes the persisted index and the source tree to the
// API and MCP layers.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/engine"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/loader"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// DefaultLimit is the page size used when a caller passes none.
const DefaultLimit = 50

// PostDetail is the full representation of an indexed post.
type PostDetail struct {
	PostListItem
	Subtitle    string `json:"subtitle,omitempty"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// PostListItem is a lightweight item in a list response.
type PostListItem struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Title        string   `json:"title"`
	PublishDate  string   `json:"publish_date"`
	LastModified string   `json:"last_modified"`
	Checksum     string   `json:"checksum"`
	Tags         []string `json:"tags"`
	Archived     bool     `json:"archived"`
	OutputPath   string   `json:"output_path"`
}

// TagItem is a tag with the number of posts carrying it.
type TagItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Posts int    `json:"posts"`
}

// SourceDetail describes a source file written through the service. It is
// not part of the index until the next build.
type SourceDetail struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Checksum string `json:"checksum"`
	Skip     bool   `json:"skip"`
}

// BuildSummary is the JSON form of a build report.
type BuildSummary struct {
	RunID      string   `json:"run_id"`
	Rendered   int      `json:"rendered"`
	Unchanged  int      `json:"unchanged"`
	Skipped    int      `json:"skipped"`
	Retracted  int      `json:"retracted"`
	Failed     int      `json:"failed"`
	Duplicates int      `json:"duplicates"`
	Tags       int      `json:"tags"`
	Writes     int      `json:"writes"`
	Deletes    int      `json:"deletes"`
	DurationMS int64    `json:"duration_ms"`
	Errors     []string `json:"errors"`
}

// Summarize converts a report into its JSON form.
func Summarize(r *engine.Report) BuildSummary {
	errs := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		errs[i] = err.Error()
	}
	return BuildSummary{
		RunID:      r.RunID,
		Rendered:   r.Rendered,
		Unchanged:  r.Unchanged,
		Skipped:    r.Skipped,
		Retracted:  r.Retracted,
		Failed:     r.Failed,
		Duplicates: r.Duplicates,
		Tags:       r.Tags,
		Writes:     r.Writes,
		Deletes:    r.Deletes,
		DurationMS: r.Duration.Milliseconds(),
		Errors:     errs,
	}
}

// BuildFunc runs one reconciliation pass.
type BuildFunc func(ctx context.Context, force bool) (*engine.Report, error)

// Service coordinates the index store, the source tree and builds.
type Service struct {
	store   index.Store
	sources storage.Provider
	loader  *loader.Loader
	build   BuildFunc

	buildMu sync.Mutex
}

// NewService creates a new post service. build may be nil, in which case
// Build reports an error.
func NewService(store index.Store, sources storage.Provider, ld *loader.Loader, build BuildFunc) *Service {
	return &Service{store: store, sources: sources, loader: ld, build: build}
}

// ListPosts returns posts newest first, optionally filtered by tag, and the
// total number of matches before pagination.
func (s *Service) ListPosts(ctx context.Context, limit, offset int, tag string, includeArchived bool) ([]PostListItem, int, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, 0, err
	}

	var docs []*models.Document
	if tag != "" {
		t, ok := idx.Tags().Get(models.NormalizeTagID(tag))
		if !ok {
			return []PostListItem{}, 0, nil
		}
		docs = idx.Tagged(t)
	} else {
		docs = idx.Documents()
	}

	filtered := docs[:0:0]
	for _, d := range docs {
		if d.Archived && !includeArchived {
			continue
		}
		filtered = append(filtered, d)
	}
	models.SortByDateDesc(filtered)

	total := len(filtered)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)

	items := make([]PostListItem, 0, end-offset)
	for _, d := range filtered[offset:end] {
		items = append(items, listItem(d))
	}
	return items, total, nil
}

// GetPost returns an indexed post together with its current source content.
func (s *Service) GetPost(ctx context.Context, id string) (*PostDetail, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	doc, ok := idx.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	data, err := s.sources.Read(doc.Source)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &PostDetail{
		PostListItem: listItem(doc),
		Subtitle:     doc.Subtitle,
		Author:       doc.Author,
		Description:  doc.Description,
		Content:      string(data),
	}, nil
}

// ListTags returns every registered tag in display order with post counts.
func (s *Service) ListTags(ctx context.Context) ([]TagItem, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	ordered := idx.Tags().Ordered()
	items := make([]TagItem, len(ordered))
	for i, t := range ordered {
		items[i] = TagItem{
			ID:    t.ID,
			Name:  t.Name,
			Color: string(t.Color),
			Posts: len(idx.Tagged(t)),
		}
	}
	return items, nil
}

// CreatePost writes a new source file. The post is picked up by the next build.
func (s *Service) CreatePost(ctx context.Context, p string, content []byte) (*SourceDetail, error) {
	p, err := cleanSourcePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.sources.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Contains(loader.IDFromPath(p)) {
		return nil, fmt.Errorf("%w: id %q", apperr.ErrAlreadyExists, loader.IDFromPath(p))
	}
	return s.writeSource(p, content)
}

// UpdatePost replaces the source of an indexed post. When ifMatch is set it
// must equal the checksum of the current source.
func (s *Service) UpdatePost(ctx context.Context, id string, content []byte, ifMatch string) (*SourceDetail, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	doc, ok := idx.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	existing, err := s.sources.Read(doc.Source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	return s.writeSource(doc.Source, content)
}

// DeletePost removes the source of an indexed post. The next build retracts
// its artifacts.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	idx, err := s.index(ctx)
	if err != nil {
		return err
	}
	doc, ok := idx.Get(id)
	if !ok {
		return apperr.ErrNotFound
	}
	if err := s.sources.Delete(doc.Source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return nil
}

// Build runs a reconciliation pass. Concurrent calls are serialized.
func (s *Service) Build(ctx context.Context, force bool) (*BuildSummary, error) {
	if s.build == nil {
		return nil, errors.New("postservice: build not configured")
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	report, err := s.build(ctx, force)
	if err != nil {
		return nil, err
	}
	summary := Summarize(report)
	return &summary, nil
}

// index loads the persisted index. An unusable snapshot reads as empty until
// the next build replaces it.
func (s *Service) index(ctx context.Context) (*index.Index, error) {
	idx, err := s.store.Load(ctx)
	if errors.Is(err, apperr.ErrIndexLoad) {
		return index.New(), nil
	}
	return idx, err
}

// writeSource validates content by loading it the way a build would, then
// writes it.
func (s *Service) writeSource(p string, content []byte) (*SourceDetail, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: content is empty", apperr.ErrInvalid)
	}
	doc, err := s.loader.Parse(models.SourceFile{Path: p, ModTime: time.Now()}, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}
	if err := s.sources.Write(p, content); err != nil {
		return nil, err
	}
	return &SourceDetail{
		ID:       doc.ID,
		Path:     p,
		Title:    doc.Title,
		Checksum: doc.Checksum,
		Skip:     doc.Skip,
	}, nil
}

// cleanSourcePath normalizes a relative source path and rejects anything a
// build would not pick up.
func cleanSourcePath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: path is required", apperr.ErrInvalid)
	}
	if path.Ext(p) != ".md" {
		return "", fmt.Errorf("%w: %q is not a .md file", apperr.ErrInvalid, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("%w: %q is hidden", apperr.ErrInvalid, p)
		}
	}
	return p, nil
}

func listItem(d *models.Document) PostListItem {
	tagNames := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		tagNames[i] = t.Name
	}
	return PostListItem{
		ID:           d.ID,
		Source:       d.Source,
		Title:        d.Title,
		PublishDate:  d.PublishDate.String(),
		LastModified: d.LastModified.String(),
		Checksum:     d.Checksum,
		Tags:         tagNames,
		Archived:     d.Archived,
		OutputPath:   d.OutputPath,
	}
}
