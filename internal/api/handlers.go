package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/postservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrLocked):
		writeJSON(w, http.StatusConflict, errorBody("build already running"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPosts handles GET /_folio/api/posts.
//
//	@Summary		List posts newest first with optional pagination and filtering
//	@Tags			posts
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			archived	query		bool	false	"Include archived posts"
//	@Success		200			{object}	PostListResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	archived, _ := strconv.ParseBool(q.Get("archived"))

	items, total, err := h.svc.ListPosts(r.Context(), limit, offset, q.Get("tag"), archived)
	if err != nil {
		writeError(w, "list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: items, Total: total})
}

// GetPost handles GET /_folio/api/posts/{id}.
//
//	@Summary		Get a single post by id
//	@Tags			posts
//	@Produce		json
//	@Param			id	path		string	true	"Post id"
//	@Success		200	{object}	PostDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get post", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(post.Checksum))
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /_folio/api/posts.
//
//	@Summary		Create a new post source
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	SourceDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	src, err := h.svc.CreatePost(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

// UpdatePost handles PUT /_folio/api/posts/{id}.
//
//	@Summary		Replace a post source with optimistic concurrency
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Post id"
//	@Param			If-Match	header		string				false	"Source checksum for optimistic concurrency"
//	@Param			body		body		UpdatePostRequest	true	"Updated content"
//	@Success		200			{object}	SourceDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	src, err := h.svc.UpdatePost(r.Context(), chi.URLParam(r, "id"), []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "update post", err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// DeletePost handles DELETE /_folio/api/posts/{id}.
//
//	@Summary		Delete a post source; the next build retracts it
//	@Tags			posts
//	@Param			id	path	string	true	"Post id"
//	@Success		204	"Post source deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTags handles GET /_folio/api/tags.
//
//	@Summary		List tags with post counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// Build handles POST /_folio/api/build.
//
//	@Summary		Run a build
//	@Tags			build
//	@Produce		json
//	@Param			force	query		bool	false	"Re-render every post"
//	@Success		200		{object}	BuildSummary
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/build [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	summary, err := h.svc.Build(r.Context(), force)
	if err != nil {
		writeError(w, "build", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
