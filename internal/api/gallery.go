package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/checksum"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/raster"
	"github.com/inkhorn/easel/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// GalleryHandler serves, accepts, and removes gallery image files. Disk is
// the source of truth; the catalog row is written eagerly so a listing right
// after an upload does not wait for the watcher.
type GalleryHandler struct {
	files storage.Provider
	db    catalog.Store
}

// NewGalleryHandler creates a handler over the gallery store.
func NewGalleryHandler(files storage.Provider, db catalog.Store) *GalleryHandler {
	return &GalleryHandler{files: files, db: db}
}

// galleryPath extracts the file path from the URL (everything after
// /api/gallery/). Supports encoded slashes from generated clients.
func galleryPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// List handles GET /api/gallery.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.db.ListGallery()
	if err != nil {
		writeServiceError(w, "list gallery", err)
		return
	}
	if images == nil {
		images = []models.GalleryImage{}
	}
	writeJSON(w, http.StatusOK, GalleryListResponse{Images: images})
}

// Serve handles GET /api/gallery/*.
func (h *GalleryHandler) Serve(w http.ResponseWriter, r *http.Request) {
	path := galleryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	data, err := h.files.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		}
		return
	}
	w.Header().Set("Content-Type", raster.MIMEForPath(path))
	w.Write(data)
}

// Upload handles POST /api/gallery (multipart/form-data, field "file").
func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || !raster.IsImagePath(name) {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported file type"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if _, err := raster.Sniff(data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported or corrupt image"))
		return
	}
	if _, readErr := h.files.Read(name); readErr == nil {
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
		return
	}
	if err := h.files.Write(name, data); err != nil {
		writeServiceError(w, "upload gallery file", err)
		return
	}

	img := models.GalleryImage{
		Path:      name,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}
	if cfg, _, err := raster.DecodeConfig(data); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	if err := h.db.UpsertGalleryImage(img); err != nil {
		writeServiceError(w, "index gallery file", err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// Delete handles DELETE /api/gallery/*.
func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	path := galleryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.files.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		}
		return
	}
	if err := h.db.DeleteGalleryImage(path); err != nil {
		writeServiceError(w, "deindex gallery file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
