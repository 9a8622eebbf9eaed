package engine

import (
	"fmt"
	"strings"
)

// ChangeDetection selects how an indexed document is compared with its
// freshly loaded version.
type ChangeDetection string

const (
	// ChangeMtime compares the day-granularity modification date.
	ChangeMtime ChangeDetection = "mtime"
	// ChangeContent compares the content checksum.
	ChangeContent ChangeDetection = "content"
	// ChangeEither re-renders when either the date or the checksum differs.
	ChangeEither ChangeDetection = "either"
)

// ParseChangeDetection parses a mode name; empty selects ChangeEither.
func ParseChangeDetection(s string) (ChangeDetection, error) {
	switch ChangeDetection(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChangeEither:
		return ChangeEither, nil
	case ChangeMtime:
		return ChangeMtime, nil
	case ChangeContent:
		return ChangeContent, nil
	}
	return "", fmt.Errorf("engine: unknown change detection %q", s)
}

// Config controls a reconciliation run.
type Config struct {
	PostsPath string
	TagsPath  string
	YearsPath string
	BaseURL   string

	ForceUpdate     bool
	ChangeDetection ChangeDetection
	Workers         int

	// LockPath, when set, is held for the duration of every run.
	LockPath string

	// RecentPosts is the number of posts in recent_posts.html. Zero skips
	// the fragment.
	RecentPosts int

	SitemapGzip bool

	Feed FeedConfig
}

// FeedConfig describes the RSS channel.
type FeedConfig struct {
	Enabled     bool
	Title       string
	Description string
	MaxItems    int
}

// Fixed artifact names at the output root.
const (
	IndexFile       = "index.html"
	RecentPostsFile = "recent_posts.html"
	SitemapFile     = "sitemap.xml"
	SitemapGzipFile = "sitemap.xml.gz"
	FeedFile        = "rss.xml"
)
