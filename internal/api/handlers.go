package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/models"
)

const maxBodyBytes = 1 << 20 // JSON bodies

// Handler holds API route handlers over the board service.
type Handler struct {
	svc *boardservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *boardservice.Service) *Handler {
	return &Handler{svc: svc}
}

func boardID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// writeServiceError maps domain sentinels onto status codes. Anything
// unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, apperr.ErrBusy):
		writeJSON(w, http.StatusConflict, errorBody("generation already in progress"))
	case errors.Is(err, apperr.ErrInvalidModel):
		writeJSON(w, http.StatusBadRequest, errorBody("unknown model"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListBoards handles GET /api/boards.
//
//	@Summary		List boards with optional filtering
//	@Tags			boards
//	@Produce		json
//	@Param			q		query		string	false	"Filter by name substring"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, name)
//	@Success		200		{object}	BoardListResponse
//	@Security		BearerAuth
//	@Router			/boards [get]
func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	boards, err := h.svc.ListBoards(r.Context(), q.Get("q"), q.Get("sort"))
	if err != nil {
		writeServiceError(w, "list boards", err)
		return
	}
	writeJSON(w, http.StatusOK, BoardListResponse{Boards: boards})
}

// CreateBoard handles POST /api/boards.
//
//	@Summary		Create a new board
//	@Tags			boards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBoardRequest	true	"Board to create; zero width/height use the configured defaults"
//	@Success		201		{object}	BoardDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards [post]
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Width < 0 || req.Height < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("width and height must not be negative"))
		return
	}
	b, err := h.svc.CreateBoard(r.Context(), req.Name, req.Width, req.Height)
	if err != nil {
		writeServiceError(w, "create board", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// GetBoard handles GET /api/boards/{id}.
//
//	@Summary		Get a board with its live state
//	@Tags			boards
//	@Produce		json
//	@Param			id	path		string	true	"Board ID"
//	@Success		200	{object}	BoardDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id} [get]
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBoard(r.Context(), boardID(r))
	if err != nil {
		writeServiceError(w, "get board", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// RenameBoard handles PATCH /api/boards/{id}.
//
//	@Summary		Rename a board
//	@Tags			boards
//	@Accept			json
//	@Param			id		path	string				true	"Board ID"
//	@Param			body	body	RenameBoardRequest	true	"New name"
//	@Success		204		"Board renamed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id} [patch]
func (h *Handler) RenameBoard(w http.ResponseWriter, r *http.Request) {
	var req RenameBoardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.svc.RenameBoard(r.Context(), boardID(r), req.Name); err != nil {
		writeServiceError(w, "rename board", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBoard handles DELETE /api/boards/{id}.
//
//	@Summary		Delete a board
//	@Tags			boards
//	@Param			id	path	string	true	"Board ID"
//	@Success		204	"Board deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id} [delete]
func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBoard(r.Context(), boardID(r)); err != nil {
		writeServiceError(w, "delete board", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyStroke handles POST /api/boards/{id}/strokes.
//
//	@Summary		Draw a stroke on the board
//	@Tags			drawing
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Board ID"
//	@Param			body	body		StrokeRequest	true	"Stroke points, optional pen override and display size"
//	@Success		200		{object}	AppliedResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/strokes [post]
func (h *Handler) ApplyStroke(w http.ResponseWriter, r *http.Request) {
	var req StrokeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Points) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("points are required"))
		return
	}
	st := models.Stroke{Points: req.Points, Color: req.Color, Width: req.Width}
	var dispW, dispH float64
	if req.Display != nil {
		dispW, dispH = req.Display.Width, req.Display.Height
	}
	applied, state, err := h.svc.ApplyStroke(r.Context(), boardID(r), st, dispW, dispH)
	if err != nil {
		writeServiceError(w, "apply stroke", err)
		return
	}
	writeJSON(w, http.StatusOK, AppliedResponse{Applied: applied, State: state})
}

// SetPen handles PUT /api/boards/{id}/pen.
//
//	@Summary		Update the board pen
//	@Tags			drawing
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Board ID"
//	@Param			body	body		PenRequest	true	"Pen fields to change; omitted fields keep their value"
//	@Success		200		{object}	StateResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/pen [put]
func (h *Handler) SetPen(w http.ResponseWriter, r *http.Request) {
	var req PenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := h.svc.SetPen(r.Context(), boardID(r), models.Pen{Color: req.Color, Width: req.Width})
	if err != nil {
		writeServiceError(w, "set pen", err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: state})
}

// Clear handles POST /api/boards/{id}/clear.
//
//	@Summary		Clear the board to white
//	@Tags			drawing
//	@Produce		json
//	@Param			id	path		string	true	"Board ID"
//	@Success		200	{object}	StateResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/clear [post]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Clear(r.Context(), boardID(r))
	if err != nil {
		writeServiceError(w, "clear board", err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: state})
}

// Undo handles POST /api/boards/{id}/undo.
//
//	@Summary		Step the board one snapshot back
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Board ID"
//	@Success		200	{object}	AppliedResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	applied, state, err := h.svc.Undo(r.Context(), boardID(r))
	if err != nil {
		writeServiceError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, AppliedResponse{Applied: applied, State: state})
}

// Redo handles POST /api/boards/{id}/redo.
//
//	@Summary		Step the board one snapshot forward
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Board ID"
//	@Success		200	{object}	AppliedResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	applied, state, err := h.svc.Redo(r.Context(), boardID(r))
	if err != nil {
		writeServiceError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, AppliedResponse{Applied: applied, State: state})
}

// Image handles GET /api/boards/{id}/image.
//
//	@Summary		Get the current board raster as PNG
//	@Tags			boards
//	@Produce		png
//	@Param			id	path	string	true	"Board ID"
//	@Success		200	{file}	binary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/image [get]
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Image(r.Context(), boardID(r))
	if err != nil {
		writeServiceError(w, "board image", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// Import handles POST /api/boards/{id}/import: either a multipart upload
// with a "file" field or a JSON body naming a gallery path.
//
//	@Summary		Place an image on the board as its base layer
//	@Tags			boards
//	@Accept			json
//	@Accept			mpfd
//	@Produce		json
//	@Param			id		path		string			true	"Board ID"
//	@Param			body	body		ImportRequest	false	"Gallery path (JSON variant)"
//	@Param			file	formData	file			false	"Image file (multipart variant)"
//	@Success		200		{object}	StateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	id := boardID(r)
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if strings.HasPrefix(ctype, "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
		state, err := h.svc.Import(r.Context(), id, data)
		if err != nil {
			writeImportError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StateResponse{State: state})
		return
	}

	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Gallery == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("gallery path is required"))
		return
	}
	state, err := h.svc.ImportFromGallery(r.Context(), id, req.Gallery)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: state})
}

// writeImportError downgrades decode failures to a 400; everything else goes
// through the standard mapping.
func writeImportError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrBusy) {
		writeServiceError(w, "import image", err)
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody("unsupported or corrupt image"))
}

// Export handles POST /api/boards/{id}/export.
//
//	@Summary		Save the board raster into the gallery
//	@Tags			boards
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Board ID"
//	@Param			body	body		ExportRequest	true	"Target name; empty uses the board name"
//	@Success		201		{object}	ExportResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name, err := h.svc.ExportToGallery(r.Context(), boardID(r), req.Name)
	if err != nil {
		writeServiceError(w, "export board", err)
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{Name: name})
}

// Generate handles POST /api/boards/{id}/generate. The request blocks until
// the generation service responds and the result is applied.
//
//	@Summary		Generate an image from the sketch and a prompt
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Board ID"
//	@Param			body	body		GenerateRequest	true	"Prompt and optional model"
//	@Success		200		{object}	GenerateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		428		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{id}/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("prompt is required"))
		return
	}
	res, err := h.svc.Generate(r.Context(), boardID(r), req.Prompt, req.Model)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound),
			errors.Is(err, apperr.ErrBusy),
			errors.Is(err, apperr.ErrInvalidModel):
			writeServiceError(w, "generate", err)
		case errors.Is(err, apperr.ErrMissingCredential):
			writeJSON(w, http.StatusPreconditionRequired, errorBody("no api credential configured"))
		case errors.Is(err, apperr.ErrInvalidCredential):
			writeJSON(w, http.StatusUnauthorized, errorBody("api credential rejected"))
		case errors.Is(err, apperr.ErrQuotaExceeded):
			writeJSON(w, http.StatusForbidden, errorBody("quota or permission denied"))
		default:
			slog.Error("generate failed", slog.String("board", boardID(r)), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("generation failed"))
		}
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Text: res.Text, State: res.State})
}

// SetCredential handles PUT /api/credential.
//
//	@Summary		Store the generation API key
//	@Tags			credential
//	@Accept			json
//	@Param			body	body	CredentialRequest	true	"API key"
//	@Success		204		"Credential stored"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/credential [put]
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("api_key is required"))
		return
	}
	if err := h.svc.SetCredential(r.Context(), req.APIKey); err != nil {
		writeServiceError(w, "set credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCredential handles GET /api/credential.
//
//	@Summary		Report whether a generation credential is configured
//	@Tags			credential
//	@Produce		json
//	@Success		200	{object}	boardservice.CredentialStatus
//	@Security		BearerAuth
//	@Router			/credential [get]
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Credential(r.Context())
	if err != nil {
		writeServiceError(w, "get credential", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DeleteCredential handles DELETE /api/credential.
//
//	@Summary		Remove the stored generation API key
//	@Tags			credential
//	@Success		204	"Credential removed"
//	@Security		BearerAuth
//	@Router			/credential [delete]
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCredential(r.Context()); err != nil {
		writeServiceError(w, "delete credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Models handles GET /api/models.
//
//	@Summary		List the enumerated generation models
//	@Tags			generation
//	@Produce		json
//	@Success		200	{object}	ModelsResponse
//	@Security		BearerAuth
//	@Router			/models [get]
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	list, def := h.svc.Models(r.Context())
	writeJSON(w, http.StatusOK, ModelsResponse{Models: list, Default: def})
}
