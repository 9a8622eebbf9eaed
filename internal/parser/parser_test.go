package parser

import (
	"errors"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nblog-title: Hello\nblog-tags:\n  - go\n  - infra\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter["blog-title"] != "Hello" {
		t.Errorf("title = %v, want Hello", r.Frontmatter["blog-title"])
	}
	tags, ok := r.Frontmatter["blog-tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Errorf("tags = %v, want [go infra]", r.Frontmatter["blog-tags"])
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter, got %v", r.Frontmatter)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_UnclosedDelimiterIsBody(t *testing.T) {
	input := []byte("---\ntitle: x\nno closing fence\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter, got %v", r.Frontmatter)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	_, err := Parse(input)
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Fatalf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParse_CRLF(t *testing.T) {
	input := []byte("---\r\nblog-title: Win\r\n---\r\nBody\r\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter["blog-title"] != "Win" {
		t.Errorf("frontmatter = %v", r.Frontmatter)
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q", r.Body)
	}
}
