// Package preview serves the output tree locally with live reload.
package preview

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Mount points below the site root.
const (
	EventsPath = "/_folio/events"
	APIPath    = "/_folio/api"
)

// Options configure the preview router.
type Options struct {
	OutputDir string

	// RootPath is the URL prefix the site is generated for, e.g. "/blog".
	RootPath string

	// Events streams live-reload events. Nil disables live reload.
	Events http.Handler

	// API is mounted at APIPath when non-nil.
	API http.Handler

	// Ready reports whether the first build has finished. Nil means always ready.
	Ready func() bool

	AllowedOrigins []string
}

// NewRouter creates the preview handler: health endpoints, the event stream,
// the optional management API and the static site.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, "building")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if opts.Events != nil {
		r.Get(EventsPath, opts.Events.ServeHTTP)
	}
	if opts.API != nil {
		r.Mount(APIPath, opts.API)
	}

	site := &staticSite{root: http.Dir(opts.OutputDir), liveReload: opts.Events != nil}
	root := "/" + strings.Trim(opts.RootPath, "/")
	if root == "/" {
		r.Handle("/*", site)
	} else {
		toRoot := func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, root+"/", http.StatusFound)
		}
		r.Get("/", toRoot)
		r.Get(root, toRoot)
		r.Handle(root+"/*", http.StripPrefix(root, site))
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match"},
		ExposedHeaders: []string{"ETag"},
	})
	return c.Handler(r)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}
