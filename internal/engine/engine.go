// Package engine reconciles the source tree with the persisted index and the
// output tree. Loading runs on a bounded worker pool; every index mutation
// and artifact write happens on the goroutine that called Run, in listing
// order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/feed"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/loader"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/runlock"
	"github.com/starford/folio/internal/sitemap"
)

// Source lists and loads source documents. Load must be safe for
// concurrent use.
type Source interface {
	List() ([]models.SourceFile, error)
	Load(src models.SourceFile) (*models.Document, error)
}

// Sink stores artifacts. Write and Delete report whether the output tree
// actually changed.
type Sink interface {
	Write(path string, data []byte) (bool, error)
	Delete(path string) (bool, error)
}

// Engine runs reconciliation passes. Runs must not overlap; set
// Config.LockPath to enforce that across processes.
type Engine struct {
	cfg      Config
	src      Source
	renderer render.Renderer
	out      Sink
	store    index.Store
	logger   *slog.Logger
}

// New creates an engine.
func New(cfg Config, src Source, renderer render.Renderer, out Sink, store index.Store, logger *slog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChangeDetection == "" {
		cfg.ChangeDetection = ChangeEither
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, src: src, renderer: renderer, out: out, store: store, logger: logger}
}

// Run performs one reconciliation pass and saves the index. The snapshot is
// written only when the pass completes; a failed or cancelled run leaves the
// previous snapshot in place.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := e.logger.With(slog.String("run_id", report.RunID))

	if e.cfg.LockPath != "" {
		lock, err := runlock.Acquire(e.cfg.LockPath)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("engine: release lock failed", slog.String("error", err.Error()))
			}
		}()
	}

	idx, pruned, err := e.loadIndex(ctx, logger)
	if err != nil {
		return nil, err
	}

	r := &run{
		Engine:     e,
		ctx:        ctx,
		logger:     logger,
		idx:        idx,
		report:     report,
		staleTags:  mapset.NewThreadUnsafeSet[string](),
		discovered: mapset.NewThreadUnsafeSet[string](),
	}
	for _, t := range idx.Tags().Ordered() {
		r.staleTags.Add(e.tagPath(t))
	}
	r.markStale(pruned)

	if err := r.reconcile(); err != nil {
		return nil, err
	}
	if err := r.aggregate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := e.store.Save(ctx, idx); err != nil {
		return nil, fmt.Errorf("engine: save index: %w", err)
	}

	report.Duration = time.Since(start)
	logger.Info("engine: run completed", slog.Any("report", report))
	return report, nil
}

// loadIndex loads the snapshot and drops registered tags no document
// references. The dropped tags are returned so their artifacts get removed.
func (e *Engine) loadIndex(ctx context.Context, logger *slog.Logger) (*index.Index, []models.Tag, error) {
	idx, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, apperr.ErrIndexLoad):
		logger.Warn("engine: index unusable, rebuilding", slog.String("error", err.Error()))
		idx = index.New()
	case err != nil:
		return nil, nil, fmt.Errorf("engine: load index: %w", err)
	}
	pruned := idx.PruneTags()
	if len(pruned) > 0 {
		logger.Debug("engine: pruned unreferenced tags", slog.Int("count", len(pruned)))
	}
	return idx, pruned, nil
}

func (e *Engine) tagPath(t models.Tag) string {
	return t.ArtifactPath(e.cfg.TagsPath, e.cfg.YearsPath)
}

// canonicalURL joins the base URL and an artifact path, escaping each path
// segment.
func (e *Engine) canonicalURL(rel string) string {
	segs := strings.Split(rel, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(e.cfg.BaseURL, "/") + "/" + strings.Join(segs, "/")
}

// run is the state of a single pass.
type run struct {
	*Engine
	ctx    context.Context
	logger *slog.Logger
	idx    *index.Index
	report *Report

	// staleTags holds the artifact paths of every tag that was live at some
	// point during the run. Paths no live tag owns at the end are deleted.
	staleTags  mapset.Set[string]
	discovered mapset.Set[string]
}

type loadResult struct {
	doc *models.Document
	err error
}

func (r *run) reconcile() error {
	files, err := r.src.List()
	if err != nil {
		return fmt.Errorf("engine: list sources: %w", err)
	}
	files = r.dedupe(files)
	loaded, err := r.loadAll(files)
	if err != nil {
		return err
	}

	for i, f := range files {
		if err := r.ctx.Err(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		r.discovered.Add(loader.IDFromPath(f.Path))
		res := loaded[i]
		if res.err != nil {
			r.fail(f.Path, res.err)
			continue
		}
		if err := r.apply(res.doc); err != nil {
			return err
		}
	}

	for _, d := range r.idx.Documents() {
		if r.discovered.Contains(d.ID) {
			continue
		}
		r.logger.Info("engine: source removed", slog.String("id", d.ID), slog.String("path", d.Source))
		r.retract(d.ID, "")
	}
	return nil
}

// dedupe keeps the last listed source of every id. Shadowed sources are
// reported and never loaded, so each id is compared with the index once.
func (r *run) dedupe(files []models.SourceFile) []models.SourceFile {
	last := make(map[string]int, len(files))
	for i, f := range files {
		last[loader.IDFromPath(f.Path)] = i
	}
	if len(last) == len(files) {
		return files
	}
	kept := make([]models.SourceFile, 0, len(last))
	for i, f := range files {
		id := loader.IDFromPath(f.Path)
		if winner := last[id]; winner != i {
			r.report.Duplicates++
			r.logger.Warn("engine: duplicate id, later source replaces earlier",
				slog.String("id", id),
				slog.String("path", f.Path),
				slog.String("replaced_by", files[winner].Path))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// loadAll loads every file on the worker pool. Results keep listing order.
func (r *run) loadAll(files []models.SourceFile) ([]loadResult, error) {
	results := make([]loadResult, len(files))
	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := r.src.Load(f)
			results[i] = loadResult{doc: doc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: load sources: %w", err)
	}
	return results, nil
}

func (r *run) fail(path string, err error) {
	r.report.Failed++
	r.report.Errors = append(r.report.Errors, err)
	r.logger.Warn("engine: source failed", slog.String("path", path), slog.String("error", err.Error()))
}

// apply decides what happens to one loaded document.
func (r *run) apply(doc *models.Document) error {
	if doc.Skip {
		r.report.Skipped++
		r.retract(doc.ID, doc.OutputPath)
		return nil
	}

	prev, indexed := r.idx.Get(doc.ID)
	if indexed && !r.cfg.ForceUpdate && r.unchanged(prev, doc) {
		r.report.Unchanged++
		return nil
	}

	html, err := r.renderer.Post(doc)
	if err != nil {
		r.fail(doc.Source, apperr.NewFileError(apperr.ErrLoad, doc.Source, err))
		return nil
	}
	if err := r.write(doc.OutputPath, html); err != nil {
		return err
	}
	if indexed && prev.OutputPath != doc.OutputPath {
		r.delete(prev.OutputPath)
	}

	_, orphaned := r.idx.Upsert(doc)
	r.markStale(orphaned)
	r.report.Rendered++
	r.logger.Debug("engine: rendered", slog.String("id", doc.ID), slog.String("path", doc.OutputPath))
	return nil
}

func (r *run) unchanged(prev, doc *models.Document) bool {
	if prev.OutputPath != doc.OutputPath {
		return false
	}
	sameDate := prev.LastModified == doc.LastModified
	sameSum := prev.Checksum == doc.Checksum
	switch r.cfg.ChangeDetection {
	case ChangeMtime:
		return sameDate
	case ChangeContent:
		return sameSum
	}
	return sameDate && sameSum
}

// retract removes id from the index and deletes its artifact. extra is an
// artifact path the fresh document would have used; it is removed as well.
func (r *run) retract(id, extra string) {
	prev, orphaned := r.idx.Retract(id)
	if prev != nil {
		r.delete(prev.OutputPath)
		r.markStale(orphaned)
		r.report.Retracted++
		r.logger.Debug("engine: retracted", slog.String("id", id))
	}
	if extra != "" && (prev == nil || extra != prev.OutputPath) {
		r.delete(extra)
	}
}

func (r *run) markStale(tags []models.Tag) {
	for _, t := range tags {
		r.staleTags.Add(r.tagPath(t))
	}
}

func (r *run) write(path string, data []byte) error {
	changed, err := r.out.Write(path, data)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if changed {
		r.report.Writes++
	}
	return nil
}

// delete removes an artifact. Failures are recorded and logged only.
func (r *run) delete(path string) {
	removed, err := r.out.Delete(path)
	if err != nil {
		r.report.Errors = append(r.report.Errors, err)
		r.logger.Warn("engine: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if removed {
		r.report.Deletes++
	}
}

// aggregate regenerates every page derived from the whole index.
func (r *run) aggregate() error {
	docs := r.idx.Documents()
	tags := r.idx.Tags().Ordered()
	r.report.Tags = len(tags)

	live := mapset.NewThreadUnsafeSet[string]()
	for _, t := range tags {
		html, err := r.renderer.TagPage(t, r.idx.Tagged(t))
		if err != nil {
			return fmt.Errorf("engine: render tag %s: %w", t.ID, err)
		}
		p := r.tagPath(t)
		if err := r.write(p, html); err != nil {
			return err
		}
		live.Add(p)
	}
	stale := r.staleTags.Difference(live).ToSlice()
	slices.Sort(stale)
	for _, p := range stale {
		r.delete(p)
	}

	html, err := r.renderer.Index(docs, tags)
	if err != nil {
		return fmt.Errorf("engine: render index: %w", err)
	}
	if err := r.write(IndexFile, html); err != nil {
		return err
	}

	if r.cfg.RecentPosts > 0 {
		if err := r.writeRecent(docs); err != nil {
			return err
		}
	}
	if err := r.writeSitemap(docs); err != nil {
		return err
	}
	if r.cfg.Feed.Enabled {
		if err := r.writeFeed(docs); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) writeRecent(docs []*models.Document) error {
	current := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		if !d.Archived {
			current = append(current, d)
		}
	}
	models.SortByDateDesc(current)
	if len(current) > r.cfg.RecentPosts {
		current = current[:r.cfg.RecentPosts]
	}
	html, err := r.renderer.RecentPosts(current)
	if err != nil {
		return fmt.Errorf("engine: render recent posts: %w", err)
	}
	return r.write(RecentPostsFile, html)
}

func (r *run) writeSitemap(docs []*models.Document) error {
	sm := sitemap.New()
	for _, d := range docs {
		sm.Add(r.canonicalURL(d.OutputPath), d.LastModified)
	}
	data, err := sm.Encode()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := r.write(SitemapFile, data); err != nil {
		return err
	}
	if !r.cfg.SitemapGzip {
		return nil
	}
	gz, err := sitemap.Gzip(data)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return r.write(SitemapGzipFile, gz)
}

func (r *run) writeFeed(docs []*models.Document) error {
	link := r.cfg.BaseURL
	if link == "" {
		link = "/"
	}
	f := feed.New(r.cfg.Feed.Title, link, r.cfg.Feed.Description, r.cfg.Feed.MaxItems)
	for _, d := range docs {
		f.Add(feed.Item{
			Link:        r.canonicalURL(d.OutputPath),
			Title:       d.Title,
			Description: d.Description,
			Published:   d.PublishDate,
		})
	}
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return r.write(FeedFile, data)
}
