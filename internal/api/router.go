package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *boardservice.Service, files storage.Provider, db catalog.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	gh := NewGalleryHandler(files, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Boards.
	r.Get("/boards", h.ListBoards)
	r.Post("/boards", h.CreateBoard)
	r.Route("/boards/{id}", func(r chi.Router) {
		r.Get("/", h.GetBoard)
		r.Patch("/", h.RenameBoard)
		r.Delete("/", h.DeleteBoard)
		r.Post("/strokes", h.ApplyStroke)
		r.Put("/pen", h.SetPen)
		r.Post("/clear", h.Clear)
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Get("/image", h.Image)
		r.Post("/import", h.Import)
		r.Post("/export", h.Export)
		r.Post("/generate", h.Generate)
	})

	// Gallery.
	r.Get("/gallery", gh.List)
	r.Post("/gallery", gh.Upload)
	r.Get("/gallery/*", gh.Serve)
	r.Delete("/gallery/*", gh.Delete)

	// Generation credential and model variants.
	r.Put("/credential", h.SetCredential)
	r.Get("/credential", h.GetCredential)
	r.Delete("/credential", h.DeleteCredential)
	r.Get("/models", h.Models)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
