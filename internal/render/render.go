// Package render turns documents into HTML pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/starford/folio/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer produces the HTML of every page kind the engine writes.
type Renderer interface {
	Post(doc *models.Document) ([]byte, error)
	TagPage(tag models.Tag, docs []*models.Document) ([]byte, error)
	Index(docs []*models.Document, tags []models.Tag) ([]byte, error)
	RecentPosts(docs []*models.Document) ([]byte, error)
}

// Options configure links and page chrome.
type Options struct {
	SiteTitle string
	TagsPath  string
	YearsPath string

	// RootPath prefixes every site-relative link, e.g. "/blog". Empty serves
	// the site from "/".
	RootPath string

	// MediaPath replaces the "images" directory in image sources.
	MediaPath string
}

// HTML renders pages with goldmark and the embedded templates. It is safe
// for concurrent use.
type HTML struct {
	opts Options
	md   goldmark.Markdown
	tmpl *template.Template
}

var _ Renderer = (*HTML)(nil)

// hiddenTags are indexed but never listed on a page.
var hiddenTags = map[string]bool{"": true, "blog": true}

// New parses the templates and returns a renderer.
func New(opts Options) (*HTML, error) {
	opts.RootPath = strings.TrimSuffix(opts.RootPath, "/")
	if opts.SiteTitle == "" {
		opts.SiteTitle = "Blog"
	}
	h := &HTML{
		opts: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"postURL": h.postURL,
		"tagURL":  h.tagURL,
		"homeURL": func() string { return h.opts.RootPath + "/index.html" },
		"visible": VisibleTags,
		"keywords": func(tags []models.Tag) string {
			names := make([]string, 0, len(tags))
			for _, t := range tags {
				names = append(names, t.Name)
			}
			return strings.Join(names, ",")
		},
		"day": func(d models.Date) string {
			return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	h.tmpl = tmpl
	return h, nil
}

// VisibleTags drops tags that are never shown on a page.
func VisibleTags(tags []models.Tag) []models.Tag {
	out := make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		if !hiddenTags[strings.ToLower(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}

func (h *HTML) postURL(d *models.Document) string {
	return h.opts.RootPath + "/" + d.OutputPath
}

func (h *HTML) tagURL(t models.Tag) string {
	return h.opts.RootPath + "/" + t.ArtifactPath(h.opts.TagsPath, h.opts.YearsPath)
}

// Markdown converts a document body to HTML and points image sources at the
// media directory.
func (h *HTML) Markdown(body string) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("render: markdown: %w", err)
	}
	out := buf.Bytes()
	if h.opts.MediaPath != "" {
		media := path.Clean("/" + h.opts.MediaPath)
		out = bytes.ReplaceAll(out, []byte(`src="/images/`), []byte(`src="`+h.opts.RootPath+media+`/`))
	}
	return out, nil
}

type site struct {
	Title string
}

type postPage struct {
	Site site
	Doc  *models.Document
	Body template.HTML
}

// Post renders a single document page.
func (h *HTML) Post(doc *models.Document) ([]byte, error) {
	body, err := h.Markdown(doc.Body)
	if err != nil {
		return nil, err
	}
	return h.execute("post.html", postPage{
		Site: site{Title: h.opts.SiteTitle},
		Doc:  doc,
		Body: template.HTML(body), //nolint:gosec // rendered from trusted sources
	})
}

type tagPage struct {
	Site  site
	Tag   models.Tag
	Posts []*models.Document
}

// TagPage renders the page listing docs under tag, newest first.
func (h *HTML) TagPage(tag models.Tag, docs []*models.Document) ([]byte, error) {
	posts := sortedCopy(docs)
	return h.execute("tag.html", tagPage{
		Site:  site{Title: h.opts.SiteTitle},
		Tag:   tag,
		Posts: posts,
	})
}

type indexPage struct {
	Site     site
	Posts    []*models.Document
	Archived []*models.Document
	Tags     []models.Tag
}

// Index renders the landing page: current posts, archived posts and every tag.
func (h *HTML) Index(docs []*models.Document, tags []models.Tag) ([]byte, error) {
	page := indexPage{Site: site{Title: h.opts.SiteTitle}, Tags: tags}
	for _, d := range sortedCopy(docs) {
		if d.Archived {
			page.Archived = append(page.Archived, d)
		} else {
			page.Posts = append(page.Posts, d)
		}
	}
	return h.execute("index.html", page)
}

// RecentPosts renders the embeddable fragment listing docs in the given order.
func (h *HTML) RecentPosts(docs []*models.Document) ([]byte, error) {
	return h.execute("recent_posts.html", struct{ Posts []*models.Document }{docs})
}

func (h *HTML) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render: %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func sortedCopy(docs []*models.Document) []*models.Document {
	out := make([]*models.Document, len(docs))
	copy(out, docs)
	models.SortByDateDesc(out)
	return out
}
