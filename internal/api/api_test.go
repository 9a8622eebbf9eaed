package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/engine"
	"github.com/starford/folio/internal/loader"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/sink"
	"github.com/starford/folio/internal/testutil"
)

type testEnvironment struct {
	router   http.Handler
	in       string
	out      string
	mediaDir string
}

// testEnv sets up a temp source tree, JSON index store, service, and router.
// An empty token means disabled auth mode.
func testEnv(t *testing.T, authToken string) *testEnvironment {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *testEnvironment {
	t.Helper()

	in, src := testutil.TestSources(t)
	store, _ := testutil.TestStore(t)
	out := filepath.Join(t.TempDir(), "site")
	mediaDir := filepath.Join(out, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ld := loader.New(src, loader.Options{PostsPath: "posts"}, testutil.Logger())
	rn, err := render.New(render.Options{SiteTitle: "Test", TagsPath: "tags", YearsPath: "years"})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	build := func(ctx context.Context, force bool) (*engine.Report, error) {
		artifacts, err := sink.New(out)
		if err != nil {
			return nil, err
		}
		cfg := engine.Config{PostsPath: "posts", TagsPath: "tags", YearsPath: "years", ForceUpdate: force}
		return engine.New(cfg, ld, rn, artifacts, store, testutil.Logger()).Run(ctx)
	}
	svc := postservice.NewService(store, src, ld, build)

	media, err := NewMediaHandler(mediaDir, "/media")
	if err != nil {
		t.Fatalf("NewMediaHandler: %v", err)
	}
	router := NewRouter(svc, authToken != "", authToken, sseHandler, media)
	return &testEnvironment{router: router, in: in, out: out, mediaDir: mediaDir}
}

func (e *testEnvironment) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnvironment) create(t *testing.T, path, content string) SourceDetail {
	t.Helper()
	w := e.do(t, http.MethodPost, "/posts", CreatePostRequest{Path: path, Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
	var src SourceDetail
	_ = json.Unmarshal(w.Body.Bytes(), &src)
	return src
}

func (e *testEnvironment) build(t *testing.T) BuildSummary {
	t.Helper()
	w := e.do(t, http.MethodPost, "/build", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("build = %d, body = %s", w.Code, w.Body.String())
	}
	var summary BuildSummary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	return summary
}

func post(title, date string, tags ...string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return "---\nblog-title: " + title + "\nblog-date: " + date + "\nblog-tags: " + string(data) + "\n---\nBody of " + title + "\n"
}

func TestCreateBuildAndGetPost(t *testing.T) {
	e := testEnv(t, "")

	created := e.create(t, "hello.md", post("Hello", "2024-05-01", "go"))
	if created.ID != "hello" || created.Title != "Hello" {
		t.Errorf("created = %+v", created)
	}

	// Not indexed until built.
	if w := e.do(t, http.MethodGet, "/posts/hello", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get before build = %d, want 404", w.Code)
	}

	summary := e.build(t)
	if summary.Rendered != 1 || summary.RunID == "" {
		t.Errorf("summary = %+v", summary)
	}

	w := e.do(t, http.MethodGet, "/posts/hello", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var p PostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Title != "Hello" || p.OutputPath != "posts/2024/05/hello.html" {
		t.Errorf("post = %+v", p)
	}
	if w.Header().Get("ETag") != `"`+p.Checksum+`"` {
		t.Errorf("ETag = %q, checksum = %q", w.Header().Get("ETag"), p.Checksum)
	}
	if _, err := os.Stat(filepath.Join(e.out, "posts", "2024", "05", "hello.html")); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := testEnv(t, "")
	e.create(t, "dup.md", "a")

	w := e.do(t, http.MethodPost, "/posts", CreatePostRequest{Path: "dup.md", Content: "a"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalid(t *testing.T) {
	e := testEnv(t, "")

	for _, req := range []CreatePostRequest{
		{Path: "", Content: "x"},
		{Path: "a.md", Content: ""},
		{Path: "a.txt", Content: "x"},
		{Path: "a.md", Content: "---\nblog-title: [\n---\n"},
	} {
		if w := e.do(t, http.MethodPost, "/posts", req); w.Code != http.StatusBadRequest {
			t.Errorf("create %+v = %d, want 400", req, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	e := testEnv(t, "")
	created := e.create(t, "lock.md", post("V1", "2024-01-01"))
	e.build(t)

	// Update with correct checksum.
	w := e.do(t, http.MethodPut, "/posts/lock", UpdatePostRequest{Content: post("V2", "2024-01-01")}, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Update with stale checksum.
	w = e.do(t, http.MethodPut, "/posts/lock", UpdatePostRequest{Content: post("V3", "2024-01-01")}, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}

	// Without If-Match no locking is enforced.
	w = e.do(t, http.MethodPut, "/posts/lock", UpdatePostRequest{Content: post("V4", "2024-01-01")})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}

	if summary := e.build(t); summary.Rendered != 1 {
		t.Errorf("rendered = %d, want 1", summary.Rendered)
	}
}

func TestUpdatePost_NotFound(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPut, "/posts/ghost", UpdatePostRequest{Content: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeletePost(t *testing.T) {
	e := testEnv(t, "")
	e.create(t, "bye.md", post("Bye", "2023-03-03"))
	e.build(t)

	if w := e.do(t, http.MethodDelete, "/posts/bye", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if summary := e.build(t); summary.Retracted != 1 {
		t.Errorf("retracted = %d, want 1", summary.Retracted)
	}
	if w := e.do(t, http.MethodGet, "/posts/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/posts/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListPostsAndTags(t *testing.T) {
	e := testEnv(t, "")
	e.create(t, "a.md", post("A", "2021-01-01", "go"))
	e.create(t, "b.md", post("B", "2022-01-01", "go", "web"))
	e.build(t)

	w := e.do(t, http.MethodGet, "/posts?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Posts) != 2 || list.Posts[0].ID != "b" {
		t.Errorf("list = %+v", list)
	}

	w = e.do(t, http.MethodGet, "/posts?tag=web", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Posts[0].ID != "b" {
		t.Errorf("tag filter = %+v", list)
	}

	w = e.do(t, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags = %d", w.Code)
	}
	var tags TagListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tags)
	got := map[string]int{}
	for _, tg := range tags.Tags {
		got[tg.ID] = tg.Posts
	}
	if got["go"] != 2 || got["web"] != 1 || got["2021"] != 1 || len(got) != 4 {
		t.Errorf("tags = %v", got)
	}
}

func TestBuildForce(t *testing.T) {
	e := testEnv(t, "")
	e.create(t, "a.md", post("A", "2021-01-01"))
	e.build(t)

	w := e.do(t, http.MethodPost, "/build?force=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("force build = %d", w.Code)
	}
	var summary BuildSummary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.Rendered != 1 || summary.Unchanged != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")

	w := e.do(t, http.MethodPost, "/posts", CreatePostRequest{Path: "auth.md", Content: "test"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")

	if w := e.do(t, http.MethodGet, "/posts", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")

	if w := e.do(t, http.MethodGet, "/posts", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodGet, "/posts", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, "secret", blockingSSE)

	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Media tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadMedia(t *testing.T) {
	e := testEnv(t, "")

	w := uploadFile(t, e.router, "test.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp MediaUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename != "test.png" || resp.URL != "/media/test.png" || resp.Size != 13 {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(e.mediaDir, "test.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("content mismatch")
	}
}

func TestUploadMedia_InvalidFilename(t *testing.T) {
	e := testEnv(t, "")

	for _, name := range []string{"../escape.txt", ".hidden"} {
		w := uploadFile(t, e.router, name, []byte("bad"))
		if w.Code == http.StatusCreated {
			if _, err := os.Stat(filepath.Join(e.out, "escape.txt")); err == nil {
				t.Errorf("%q escaped the media directory", name)
			}
		}
	}
}

func TestUploadMedia_AuthProtected(t *testing.T) {
	e := testEnv(t, "secret")

	if w := uploadFile(t, e.router, "x.png", []byte("data")); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
	if w := uploadFile(t, e.router, "x.png", []byte("data"), "Authorization", "Bearer secret"); w.Code != http.StatusCreated {
		t.Errorf("upload with auth = %d, want 201", w.Code)
	}
}

func TestUploadMedia_MissingFileField(t *testing.T) {
	e := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestServeMedia(t *testing.T) {
	mediaDir := t.TempDir()
	mh, err := NewMediaHandler(mediaDir, "media")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mediaDir, "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Get("/media/{filename}", mh.ServeFile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/a.png", nil))
	if w.Code != http.StatusOK || w.Body.String() != "png" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/nope.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing media = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/.secret", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("hidden media = %d, want 400", w.Code)
	}
}

func TestNewMediaHandler_RequiresDirectory(t *testing.T) {
	if _, err := NewMediaHandler(filepath.Join(t.TempDir(), "missing"), "/media"); err == nil {
		t.Fatal("expected error for a missing media directory")
	}
}
