package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// MediaHandler serves and accepts media files stored below the output
// media directory.
type MediaHandler struct {
	fs     *storage.FS
	prefix string
}

// NewMediaHandler creates a handler rooted at mediaRoot. prefix is the
// public URL path of that directory, for example "/media".
func NewMediaHandler(mediaRoot, prefix string) (*MediaHandler, error) {
	fs, err := storage.NewFS(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("api: media: %w", err)
	}
	return &MediaHandler{fs: fs, prefix: "/" + strings.Trim(prefix, "/")}, nil
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal, not hidden).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// ServeFile handles GET /media/{filename}.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.fs.Root(), name))
}

// Upload handles POST /_folio/api/media (multipart/form-data, field "file").
//
//	@Summary		Upload a media file into the output tree
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Media file"
//	@Success		201		{object}	MediaUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/media [post]
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read file"))
		return
	}
	if err := h.fs.Write(name, data); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	writeJSON(w, http.StatusCreated, MediaUploadResponse{
		Filename: name,
		Size:     int64(len(data)),
		URL:      path.Join(h.prefix, name),
	})
}
