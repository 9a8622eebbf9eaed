// Package parser splits Markdown source into YAML front matter and body.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFrontmatter is returned when the front matter block is not valid YAML.
var ErrInvalidFrontmatter = errors.New("parser: invalid front matter")

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
}

// Parse extracts front matter and body from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return &Result{Frontmatter: fm, Body: body}, nil
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the Markdown body. Without an opening and closing delimiter the entire
// content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	trimmed := bytes.TrimLeft(data, "\n")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	return fm, body, nil
}
