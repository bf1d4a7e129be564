package api

import (
	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/session"
)

// CreateBoardRequest is the request body for creating a board. Width and
// height fall back to the configured canvas size when zero.
type CreateBoardRequest struct {
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// RenameBoardRequest is the request body for renaming a board.
type RenameBoardRequest struct {
	Name string `json:"name"`
}

// DisplaySize is the on-screen size the client rendered the board at.
// When present, stroke points are mapped into raster space.
type DisplaySize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StrokeRequest is one complete gesture.
type StrokeRequest struct {
	Points  []models.Point `json:"points"`
	Color   string         `json:"color,omitempty"`
	Width   float64        `json:"width,omitempty"`
	Display *DisplaySize   `json:"display,omitempty"`
}

// PenRequest updates pen state; omitted fields keep their current value.
type PenRequest struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

// ImportRequest imports a gallery file onto a board (the JSON alternative
// to a multipart upload).
type ImportRequest struct {
	Gallery string `json:"gallery"`
}

// ExportRequest names the gallery file to export a board to.
type ExportRequest struct {
	Name string `json:"name,omitempty"`
}

// GenerateRequest submits a board plus prompt to the generation service.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// CredentialRequest carries the generation API key.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// BoardDetail is the full board response type (aliased from the domain layer).
type BoardDetail = boardservice.BoardDetail

// BoardListResponse wraps board listings.
type BoardListResponse struct {
	Boards []models.Board `json:"boards"`
}

// StateResponse wraps live session state after a mutation.
type StateResponse struct {
	State session.State `json:"state"`
}

// AppliedResponse reports whether a stroke or history step took effect.
type AppliedResponse struct {
	Applied bool          `json:"applied"`
	State   session.State `json:"state"`
}

// ExportResponse is returned after a board is exported to the gallery.
type ExportResponse struct {
	Name string `json:"name"`
}

// GenerateResponse carries the model's commentary and the post-apply state.
type GenerateResponse struct {
	Text  string        `json:"text"`
	State session.State `json:"state"`
}

// GalleryListResponse wraps gallery listings.
type GalleryListResponse struct {
	Images []models.GalleryImage `json:"images"`
}

// ModelsResponse enumerates the generation model variants.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}
