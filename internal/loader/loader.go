// Package loader turns source files into documents.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
)

// Options control document construction.
type Options struct {
	PostsPath     string
	DefaultAuthor string
	DatePolicy    DatePolicy
	Now           func() time.Time

	// ArchiveBeforeYear archives every document published before this year.
	// Zero disables the cutoff; the explicit flag still applies.
	ArchiveBeforeYear int
}

// Loader reads and parses source documents.
type Loader struct {
	store  storage.Provider
	opts   Options
	logger *slog.Logger
}

// New creates a Loader reading from store.
func New(store storage.Provider, opts Options, logger *slog.Logger) *Loader {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DatePolicy == "" {
		opts.DatePolicy = DatePolicyEpoch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, opts: opts, logger: logger}
}

// List returns the source files below the store root in lexical path order.
func (l *Loader) List() ([]models.SourceFile, error) {
	files, err := l.store.List("")
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	slices.SortFunc(files, func(a, b models.SourceFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return files, nil
}

// IDFromPath derives a document id from its source path: the file stem.
func IDFromPath(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Load reads src, parses it and builds the document. Failures are returned
// as *apperr.FileError of kind apperr.ErrLoad.
func (l *Loader) Load(src models.SourceFile) (*models.Document, error) {
	data, err := l.store.Read(src.Path)
	if err != nil {
		return nil, apperr.NewFileError(apperr.ErrLoad, src.Path, err)
	}
	return l.Parse(src, data)
}

// Parse builds the document for src from its raw content.
func (l *Loader) Parse(src models.SourceFile, data []byte) (*models.Document, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, apperr.NewFileError(apperr.ErrLoad, src.Path, err)
	}
	return l.Build(res.Frontmatter, res.Body, src, checksum.Sum(data)), nil
}

// Build constructs a document from parsed metadata. It never fails: every
// optional field has a default.
func (l *Loader) Build(meta map[string]any, body string, src models.SourceFile, sum string) *models.Document {
	id := IDFromPath(src.Path)

	published, err := resolveDate(meta)
	if err != nil {
		fallback := models.Epoch
		if l.opts.DatePolicy == DatePolicyNow {
			fallback = models.DateOf(l.opts.Now())
		}
		if !errors.Is(err, errNoDate) {
			l.logger.Debug("loader: date fallback",
				slog.String("path", src.Path),
				slog.String("fallback", fallback.String()),
				slog.String("error", err.Error()))
		}
		published = fallback
	}

	doc := &models.Document{
		ID:           id,
		Source:       src.Path,
		Title:        stringValue(meta, KeyTitle, id),
		Subtitle:     stringValue(meta, KeySubtitle, ""),
		Author:       stringValue(meta, KeyAuthor, l.opts.DefaultAuthor),
		Body:         body,
		PublishDate:  published,
		LastModified: models.DateOf(src.ModTime),
		Checksum:     sum,
		Skip:         flagValue(meta, KeySkip),
		OutputPath:   models.PostPath(l.opts.PostsPath, id, published),
	}
	doc.Description = fmt.Sprintf("%s - %s - %s", doc.Title, doc.Subtitle, doc.Author)
	doc.Tags = resolveTags(meta, published.Year)
	doc.Archived = flagValue(meta, KeyArchived) ||
		(l.opts.ArchiveBeforeYear > 0 && published.Year < l.opts.ArchiveBeforeYear)
	return doc
}

var errNoDate = errors.New("no date metadata")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"02.01.2006",
}

// resolveDate takes the first present date key and interprets it.
func resolveDate(meta map[string]any) (models.Date, error) {
	for _, key := range dateKeys {
		raw, ok := meta[key]
		if !ok || raw == nil || raw == "" {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			return models.DateOf(v), nil
		case int:
			if v > 0 && v < 10000 {
				return models.Date{Year: v, Month: time.January, Day: 1}, nil
			}
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return models.DateOf(t), nil
				}
			}
		}
		return models.Date{}, fmt.Errorf("%w: %s=%v", apperr.ErrDateResolution, key, raw)
	}
	return models.Date{}, fmt.Errorf("%w: %w", apperr.ErrDateResolution, errNoDate)
}

// resolveTags concatenates the tag keys, trims and deduplicates by id, and
// appends the synthetic year tag.
func resolveTags(meta map[string]any, year int) []models.Tag {
	yearTag := models.YearTag(year)
	seen := map[string]struct{}{yearTag.ID: {}}
	var out []models.Tag
	for _, key := range tagKeys {
		for _, name := range listValue(meta[key]) {
			tag := models.NewTag(name, models.ColorPost)
			if tag.ID == "" {
				continue
			}
			if _, dup := seen[tag.ID]; dup {
				continue
			}
			seen[tag.ID] = struct{}{}
			out = append(out, tag)
		}
	}
	return append(out, yearTag)
}

// listValue accepts a YAML list or a comma-separated string.
func listValue(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case nil:
	default:
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(meta map[string]any, key, def string) string {
	raw, ok := meta[key]
	if !ok || raw == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	if s == "" {
		return def
	}
	return s
}

// flagValue treats true, non-zero numbers and "true"/"yes"/"1" as set.
func flagValue(meta map[string]any, key string) bool {
	switch v := meta[key].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
		return strings.EqualFold(strings.TrimSpace(v), "yes")
	}
	return false
}
