package models

import (
	"path"
	"strconv"
	"strings"
	"unicode"
)

// ColorClass is the style category of a tag.
type ColorClass string

const (
	ColorPost ColorClass = "tag-post"
	ColorYear ColorClass = "tag-year"
)

// Valid reports whether c is a known color class.
func (c ColorClass) Valid() bool {
	return c == ColorPost || c == ColorYear
}

// Tag is a label attached to documents. ID is the normalized key used for
// equality in the registry and for the tag's output path.
type Tag struct {
	Name  string     `json:"name"`
	Color ColorClass `json:"color"`
	ID    string     `json:"id"`
}

// NewTag builds a tag and derives its normalized id from name.
func NewTag(name string, color ColorClass) Tag {
	return Tag{Name: name, Color: color, ID: NormalizeTagID(name)}
}

// YearTag is the synthetic tag every document carries for its publish year.
func YearTag(year int) Tag {
	return NewTag(strconv.Itoa(year), ColorYear)
}

// NormalizeTagID lowercases name and strips all whitespace.
func NormalizeTagID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Equal reports whether t and o have the same name and color class.
func (t Tag) Equal(o Tag) bool {
	return t.Name == o.Name && t.Color == o.Color
}

// Less orders tags by lowercased name. Ties fall back to id then color so
// the order is total.
func (t Tag) Less(o Tag) bool {
	a, b := strings.ToLower(t.Name), strings.ToLower(o.Name)
	if a != b {
		return a < b
	}
	if t.ID != o.ID {
		return t.ID < o.ID
	}
	return t.Color < o.Color
}

// Year returns the numeric year a year tag stands for.
func (t Tag) Year() (int, bool) {
	if t.Color != ColorYear {
		return 0, false
	}
	y, err := strconv.Atoi(t.Name)
	if err != nil {
		return 0, false
	}
	return y, true
}

var tagFileReplacer = strings.NewReplacer("/", "-", "\\", "-")

// ArtifactPath returns the page path of t: year tags live below yearsDir,
// every other tag below tagsDir.
func (t Tag) ArtifactPath(tagsDir, yearsDir string) string {
	if y, ok := t.Year(); ok {
		return path.Join(yearsDir, strconv.Itoa(y)+".html")
	}
	return path.Join(tagsDir, tagFileReplacer.Replace(t.ID)+".html")
}
