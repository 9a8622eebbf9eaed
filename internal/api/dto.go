package api

import "github.com/starford/folio/internal/postservice"

// CreatePostRequest is the request body for creating a post source.
type CreatePostRequest struct {
	Path    string `json:"path" example:"2024/hello.md" validate:"required"`
	Content string `json:"content" example:"---\ntitle: Hello\n---\nWorld" validate:"required"`
}

// UpdatePostRequest is the request body for replacing a post source.
type UpdatePostRequest struct {
	Content string `json:"content" example:"---\ntitle: Hello\n---\nUpdated" validate:"required"`
}

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = postservice.PostDetail

// PostListItem is a lightweight item in a list response (aliased from the domain layer).
type PostListItem = postservice.PostListItem

// SourceDetail describes a written source file (aliased from the domain layer).
type SourceDetail = postservice.SourceDetail

// TagItem is a tag with its post count (aliased from the domain layer).
type TagItem = postservice.TagItem

// BuildSummary is the result of a build (aliased from the domain layer).
type BuildSummary = postservice.BuildSummary

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Posts []PostListItem `json:"posts" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the tag listing.
type TagListResponse struct {
	Tags []TagItem `json:"tags" validate:"required"`
}

// MediaUploadResponse is returned after a successful media upload.
type MediaUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/media/image.png" validate:"required"`
}
