package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/folio/internal/engine"
	"github.com/starford/folio/internal/loader"
	pkgconfig "github.com/starford/folio/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestBlogConfig_Invalid(t *testing.T) {
	cases := map[string]func(c *BlogConfig){
		"missing input":       func(c *BlogConfig) { c.InputPath = "" },
		"output inside input": func(c *BlogConfig) { c.OutputPath = filepath.Join(c.InputPath, "public") },
		"absolute posts path": func(c *BlogConfig) { c.PostsPath = "/posts" },
		"escaping tags path":  func(c *BlogConfig) { c.TagsPath = "../tags" },
		"relative base url":   func(c *BlogConfig) { c.BaseURL = "example.com/blog" },
		"bad date policy":     func(c *BlogConfig) { c.DatePolicy = "yesterday" },
		"bad change mode":     func(c *BlogConfig) { c.ChangeDetection = "size" },
		"negative workers":    func(c *BlogConfig) { c.Workers = -1 },
		"negative feed items": func(c *BlogConfig) { c.Feed.MaxItems = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(&cfg.Blog)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIndexConfig(t *testing.T) {
	cfg := IndexConfig{Backend: "postgres", Path: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}
	cfg = IndexConfig{Backend: "sqlite", Path: "state/index.db"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite backend: %v", err)
	}
	if got, want := cfg.Lock(), filepath.Join("state", "folio.lock"); got != want {
		t.Errorf("Lock() = %q, want %q", got, want)
	}
	cfg.LockPath = "/run/folio.lock"
	if cfg.Lock() != "/run/folio.lock" {
		t.Errorf("explicit lock path ignored: %q", cfg.Lock())
	}
}

func TestWatchConfig_Schedule(t *testing.T) {
	cfg := WatchConfig{Schedule: "@every 10m"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid schedule: %v", err)
	}
	cfg.Schedule = "whenever"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid schedule should fail")
	}
	cfg = WatchConfig{Debounce: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("negative debounce should fail")
	}
}

func TestBlogConfig_Conversions(t *testing.T) {
	cfg := NewDefaultConfig().Blog
	cfg.DatePolicy = "now"
	cfg.ChangeDetection = "content"
	cfg.SiteTitle = "Notes"
	cfg.ArchiveBeforeYear = 2015

	lo := cfg.LoaderOptions()
	if lo.DatePolicy != loader.DatePolicyNow || lo.ArchiveBeforeYear != 2015 || lo.PostsPath != "posts" {
		t.Errorf("loader options = %+v", lo)
	}

	ec := cfg.EngineConfig(true, "state/folio.lock")
	if !ec.ForceUpdate || ec.ChangeDetection != engine.ChangeContent || ec.LockPath != "state/folio.lock" {
		t.Errorf("engine config = %+v", ec)
	}
	if ec.Feed.Title != "Notes" {
		t.Errorf("feed title = %q, want site title fallback", ec.Feed.Title)
	}
	if ec = cfg.EngineConfig(false, ""); ec.ForceUpdate {
		t.Error("force should follow force_update when the flag is off")
	}

	if ro := cfg.RenderOptions(); ro.MediaPath != "media" || ro.SiteTitle != "Notes" {
		t.Errorf("render options = %+v", ro)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.yaml")
	t.Setenv("FOLIO_TEST_TOKEN", "s3cret")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
blog:
  input_path: ./src
  output_path: ./out
  base_url: https://example.com/blog
  change_detection: mtime
  feed:
    enabled: false
index:
  backend: sqlite
  path: ./state/index.db
watch:
  debounce: 500ms
  schedule: "@every 1h"
auth:
  mode: token
  token: ${FOLIO_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Blog.PostsPath != "posts" || cfg.Blog.BaseURL != "https://example.com/blog" || cfg.Blog.Feed.Enabled {
		t.Errorf("blog = %+v", cfg.Blog)
	}
	if cfg.Index.Backend != "sqlite" || cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("index = %+v, watch = %+v", cfg.Index, cfg.Watch)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}
