package preview

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// reloadScript reconnects to the event stream and reloads the page after
// every successful build.
const reloadScript = `<script>(function(){var es=new EventSource("` + EventsPath + `");` +
	`es.addEventListener("reload",function(){location.reload();});})();</script>`

var bodyClose = []byte("</body>")

// staticSite serves files from the output tree. HTML responses get the
// live-reload script injected before </body>.
type staticSite struct {
	root       http.FileSystem
	liveReload bool
}

func (s *staticSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	f, err := s.root.Open(name)
	if err != nil {
		s.notFound(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.notFound(w, err)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		if f, err = s.root.Open(name); err != nil {
			s.notFound(w, err)
			return
		}
		defer f.Close()
		if info, err = f.Stat(); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
	}

	if !s.liveReload || path.Ext(name) != ".html" {
		http.ServeContent(w, r, name, info.ModTime(), f)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(InjectReload(data)))
}

func (s *staticSite) notFound(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

// InjectReload inserts the live-reload script before the last </body>, or
// appends it when the document has none.
func InjectReload(html []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(html), bodyClose)
	out := make([]byte, 0, len(html)+len(reloadScript))
	if i < 0 {
		out = append(out, html...)
		return append(out, reloadScript...)
	}
	out = append(out, html[:i]...)
	out = append(out, reloadScript...)
	return append(out, html[i:]...)
}
