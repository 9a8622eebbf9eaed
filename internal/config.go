package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/engine"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/loader"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Blog  BlogConfig        `yaml:"blog"`
	Index IndexConfig       `yaml:"index"`
	Watch WatchConfig       `yaml:"watch"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Blog.Validate(); err != nil {
		return fmt.Errorf("blog: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds preview server configuration.
type HTTPConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BlogConfig describes the source tree, the output tree and how documents
// turn into artifacts.
type BlogConfig struct {
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
	PostsPath  string `yaml:"posts_path"`
	TagsPath   string `yaml:"tags_path"`
	YearsPath  string `yaml:"years_path"`
	MediaPath  string `yaml:"media_path"`

	BaseURL       string `yaml:"base_url"`
	RootPath      string `yaml:"root_path"`
	SiteTitle     string `yaml:"site_title"`
	DefaultAuthor string `yaml:"default_author"`

	ForceUpdate       bool   `yaml:"force_update"`
	DatePolicy        string `yaml:"date_policy"`
	ArchiveBeforeYear int    `yaml:"archive_before_year"`
	ChangeDetection   string `yaml:"change_detection"`
	Workers           int    `yaml:"workers"`

	RecentPosts int        `yaml:"recent_posts"`
	SitemapGzip bool       `yaml:"sitemap_gzip"`
	Feed        FeedConfig `yaml:"feed"`
}

// FeedConfig describes the RSS channel.
type FeedConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	MaxItems    int    `yaml:"max_items"`
}

// Validate validates the blog configuration.
func (c *BlogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.InputPath, validation.Required),
		validation.Field(&c.OutputPath, validation.Required, validation.By(notInside(c.InputPath))),
		validation.Field(&c.PostsPath, validation.Required, validation.By(relativePath)),
		validation.Field(&c.TagsPath, validation.Required, validation.By(relativePath)),
		validation.Field(&c.YearsPath, validation.Required, validation.By(relativePath)),
		validation.Field(&c.MediaPath, validation.By(relativePath)),
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.DatePolicy, validation.By(func(any) error {
			_, err := loader.ParseDatePolicy(c.DatePolicy)
			return err
		})),
		validation.Field(&c.ChangeDetection, validation.By(func(any) error {
			_, err := engine.ParseChangeDetection(c.ChangeDetection)
			return err
		})),
		validation.Field(&c.ArchiveBeforeYear, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.RecentPosts, validation.Min(0)),
		validation.Field(&c.Feed),
	)
}

// Validate validates the feed configuration.
func (c FeedConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxItems, validation.Min(0)),
	)
}

// LoaderOptions returns the document construction options.
func (c *BlogConfig) LoaderOptions() loader.Options {
	policy, _ := loader.ParseDatePolicy(c.DatePolicy)
	return loader.Options{
		PostsPath:         c.PostsPath,
		DefaultAuthor:     c.DefaultAuthor,
		DatePolicy:        policy,
		ArchiveBeforeYear: c.ArchiveBeforeYear,
	}
}

// RenderOptions returns the page rendering options.
func (c *BlogConfig) RenderOptions() render.Options {
	return render.Options{
		SiteTitle: c.SiteTitle,
		TagsPath:  c.TagsPath,
		YearsPath: c.YearsPath,
		RootPath:  c.RootPath,
		MediaPath: c.MediaPath,
	}
}

// EngineConfig returns the reconciliation settings. force is OR-ed with
// force_update.
func (c *BlogConfig) EngineConfig(force bool, lockPath string) engine.Config {
	mode, _ := engine.ParseChangeDetection(c.ChangeDetection)
	title := c.Feed.Title
	if title == "" {
		title = c.SiteTitle
	}
	return engine.Config{
		PostsPath:       c.PostsPath,
		TagsPath:        c.TagsPath,
		YearsPath:       c.YearsPath,
		BaseURL:         c.BaseURL,
		ForceUpdate:     c.ForceUpdate || force,
		ChangeDetection: mode,
		Workers:         c.Workers,
		LockPath:        lockPath,
		RecentPosts:     c.RecentPosts,
		SitemapGzip:     c.SitemapGzip,
		Feed: engine.FeedConfig{
			Enabled:     c.Feed.Enabled,
			Title:       title,
			Description: c.Feed.Description,
			MaxItems:    c.Feed.MaxItems,
		},
	}
}

// MediaDir returns the media directory inside the output tree.
func (c *BlogConfig) MediaDir() string {
	return filepath.Join(c.OutputPath, filepath.FromSlash(c.MediaPath))
}

// IndexConfig selects where the persisted index lives.
type IndexConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`

	// LockPath defaults to folio.lock next to the index.
	LockPath string `yaml:"lock_path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(index.BackendJSON, index.BackendSQLite)),
		validation.Field(&c.Path, validation.Required),
	)
}

// Lock returns the run lock path.
func (c *IndexConfig) Lock() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return filepath.Join(filepath.Dir(c.Path), "folio.lock")
}

// WatchConfig controls rebuilds in serve mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`

	// Schedule is an optional cron spec for periodic rebuilds, e.g. "@every 10m".
	Schedule string `yaml:"schedule"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.Schedule, validation.By(func(any) error {
			return watch.ValidateSchedule(c.Schedule)
		})),
	)
}

// AuthConfig holds authentication configuration for the management API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local preview.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Blog: BlogConfig{
			InputPath:       "./content",
			OutputPath:      "./public",
			PostsPath:       "posts",
			TagsPath:        "tags",
			YearsPath:       "years",
			MediaPath:       "media",
			BaseURL:         "http://localhost:8080",
			SiteTitle:       "Blog",
			DatePolicy:      string(loader.DatePolicyEpoch),
			ChangeDetection: string(engine.ChangeEither),
			RecentPosts:     5,
			Feed: FeedConfig{
				Enabled:  true,
				MaxItems: 20,
			},
		},
		Index: IndexConfig{
			Backend: index.BackendJSON,
			Path:    "./.folio/index.json",
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// relativePath accepts empty values and slash-separated paths that stay
// inside the output tree.
func relativePath(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "/") || filepath.IsAbs(s) {
		return errors.New("must be relative")
	}
	if c := path.Clean(filepath.ToSlash(s)); c == ".." || strings.HasPrefix(c, "../") {
		return errors.New("must stay inside the output directory")
	}
	return nil
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// notInside rejects an output directory nested in the source directory.
func notInside(input string) validation.RuleFunc {
	return func(value any) error {
		output, _ := value.(string)
		if input == "" || output == "" {
			return nil
		}
		in, err1 := filepath.Abs(input)
		out, err2 := filepath.Abs(output)
		if err1 != nil || err2 != nil {
			return nil
		}
		if out == in || strings.HasPrefix(out, in+string(filepath.Separator)) {
			return errors.New("must not be inside input_path")
		}
		return nil
	}
}
