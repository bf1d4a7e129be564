// Package boardservice coordinates the catalog, gallery storage, live board
// sessions, and the generation client behind one API-facing surface.
package boardservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/canvas"
	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/checksum"
	"github.com/inkhorn/easel/internal/imagegen"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/session"
	"github.com/inkhorn/easel/internal/storage"
)

// CredentialProvider is the key under which the generation API credential is
// stored in the catalog.
const CredentialProvider = "gemini"

// Config carries the canvas defaults and generation settings the service needs.
type Config struct {
	CanvasWidth  int
	CanvasHeight int
	MaxHistory   int
	DefaultPen   models.Pen

	Models       []string // enumerated model variants; submissions are validated against it
	DefaultModel string
	StyleHint    string

	// FallbackAPIKey is used when no credential is stored in the catalog
	// (typically seeded from config or the environment).
	FallbackAPIKey string
}

// EventFunc receives board lifecycle notifications for SSE fan-out.
// action is one of "created", "updated", "deleted".
type EventFunc func(action, boardID, checksum string)

// BoardDetail combines persistent board metadata with live session state.
type BoardDetail struct {
	models.Board
	State session.State `json:"state"`
}

// GenerateResult is the outcome of an applied generation.
type GenerateResult struct {
	Text  string        `json:"text"`
	State session.State `json:"state"`
}

// CredentialStatus describes whether a generation credential is available.
type CredentialStatus struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"` // "store" or "config"
	Hint       string `json:"hint,omitempty"`   // last characters of the key
}

// Service owns the open sessions and routes every board operation through them.
type Service struct {
	db     catalog.Store
	files  storage.Provider
	gen    imagegen.Generator
	cfg    Config
	logger *slog.Logger
	event  EventFunc

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewService creates a board service. event may be nil.
func NewService(db catalog.Store, files storage.Provider, gen imagegen.Generator, cfg Config, logger *slog.Logger, event EventFunc) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		files:    files,
		gen:      gen,
		cfg:      cfg,
		logger:   logger,
		event:    event,
		sessions: make(map[string]*session.Session),
	}
}

// CreateBoard creates a blank board, persists it, and opens its session.
func (s *Service) CreateBoard(_ context.Context, name string, width, height int) (*BoardDetail, error) {
	if width <= 0 {
		width = s.cfg.CanvasWidth
	}
	if height <= 0 {
		height = s.cfg.CanvasHeight
	}

	surf, err := canvas.New(width, height, s.cfg.DefaultPen, s.cfg.MaxHistory)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	blank := surf.Current()
	b := models.Board{
		ID:        uuid.New().String(),
		Name:      name,
		Width:     width,
		Height:    height,
		Checksum:  checksum.Sum(blank),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveBoard(b, blank); err != nil {
		return nil, err
	}

	sess := s.newSession(b.ID, surf)
	s.mu.Lock()
	s.sessions[b.ID] = sess
	s.mu.Unlock()
	s.notify("created", b.ID, b.Checksum)
	return &BoardDetail{Board: b, State: sess.State()}, nil
}

// GetBoard returns board metadata plus live session state.
func (s *Service) GetBoard(_ context.Context, id string) (*BoardDetail, error) {
	b, _, err := s.db.GetBoard(id)
	if err != nil {
		return nil, err
	}
	sess, err := s.getSession(id)
	if err != nil {
		return nil, err
	}
	return &BoardDetail{Board: *b, State: sess.State()}, nil
}

// ListBoards returns board metadata with optional name filter and sort.
func (s *Service) ListBoards(_ context.Context, query, sort string) ([]models.Board, error) {
	boards, err := s.db.ListBoards(query, sort)
	if err != nil {
		return nil, err
	}
	if boards == nil {
		boards = []models.Board{}
	}
	return boards, nil
}

// RenameBoard updates a board's display name.
func (s *Service) RenameBoard(_ context.Context, id, name string) error {
	if err := s.db.RenameBoard(id, name); err != nil {
		return err
	}
	s.notify("updated", id, "")
	return nil
}

// DeleteBoard closes the board's session and removes it from the catalog.
func (s *Service) DeleteBoard(_ context.Context, id string) error {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		sess.Close()
	}
	s.mu.Unlock()

	if err := s.db.DeleteBoard(id); err != nil {
		return err
	}
	s.notify("deleted", id, "")
	return nil
}

// ApplyStroke commits a complete gesture to a board. When dispW and dispH are
// positive, the stroke points are mapped from the client's display space into
// raster space first.
func (s *Service) ApplyStroke(_ context.Context, id string, st models.Stroke, dispW, dispH float64) (bool, session.State, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return false, session.State{}, err
	}
	applied, err := sess.ApplyStroke(st, dispW, dispH)
	if err != nil {
		return false, session.State{}, err
	}
	return applied, sess.State(), nil
}

// SetPen replaces a board's pen state.
func (s *Service) SetPen(_ context.Context, id string, pen models.Pen) (session.State, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return session.State{}, err
	}
	cur, err := sess.Pen()
	if err != nil {
		return session.State{}, err
	}
	if pen.Color != "" {
		cur.Color = pen.Color
	}
	if pen.Width > 0 {
		cur.Width = pen.Width
	}
	if err := sess.SetPen(cur); err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// Clear fills a board with the background color and commits a snapshot.
func (s *Service) Clear(_ context.Context, id string) (session.State, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return session.State{}, err
	}
	if err := sess.Clear(); err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// Undo steps a board's history back one snapshot.
func (s *Service) Undo(_ context.Context, id string) (bool, session.State, error) {
	return s.step(id, func(sess *session.Session) (bool, error) { return sess.Undo() })
}

// Redo steps a board's history forward one snapshot.
func (s *Service) Redo(_ context.Context, id string) (bool, session.State, error) {
	return s.step(id, func(sess *session.Session) (bool, error) { return sess.Redo() })
}

func (s *Service) step(id string, op func(*session.Session) (bool, error)) (bool, session.State, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return false, session.State{}, err
	}
	applied, err := op(sess)
	if err != nil {
		return false, session.State{}, err
	}
	if applied {
		// Cursor moves don't run the commit hook; persist the restored
		// raster so a restart resumes from what the user sees.
		if snap, snapErr := sess.CurrentSnapshot(); snapErr == nil {
			s.persist(id, snap)
		}
	}
	return applied, sess.State(), nil
}

// Image returns the board's live raster as PNG.
func (s *Service) Image(_ context.Context, id string) ([]byte, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return nil, err
	}
	return sess.ExportPNG()
}

// Import decodes external image bytes and places them as the board's new
// base layer.
func (s *Service) Import(_ context.Context, id string, data []byte) (session.State, error) {
	sess, err := s.getSession(id)
	if err != nil {
		return session.State{}, err
	}
	if err := sess.Import(data); err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// ImportFromGallery imports a gallery file onto the board.
func (s *Service) ImportFromGallery(ctx context.Context, id, path string) (session.State, error) {
	data, err := s.files.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.State{}, apperr.ErrNotFound
		}
		return session.State{}, err
	}
	return s.Import(ctx, id, data)
}

// ExportToGallery writes the board's current raster into the gallery
// directory. name defaults to the board name (or id) with a .png extension;
// an existing file is never overwritten.
func (s *Service) ExportToGallery(_ context.Context, id, name string) (string, error) {
	b, _, err := s.db.GetBoard(id)
	if err != nil {
		return "", err
	}
	sess, err := s.getSession(id)
	if err != nil {
		return "", err
	}
	data, err := sess.ExportPNG()
	if err != nil {
		return "", err
	}

	if name == "" {
		name = b.Name
	}
	if name == "" {
		name = b.ID
	}
	name = filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}

	if _, readErr := s.files.Read(name); readErr == nil {
		return "", apperr.ErrAlreadyExists
	}
	if err := s.files.Write(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Generate submits the board raster plus prompt to the generation service and
// applies the result. The model must be one of the enumerated variants; empty
// means the default. The credential comes from the catalog first, then the
// config fallback.
func (s *Service) Generate(ctx context.Context, id, prompt, model string) (*GenerateResult, error) {
	if model == "" {
		model = s.cfg.DefaultModel
	}
	if !slices.Contains(s.cfg.Models, model) {
		return nil, fmt.Errorf("boardservice: %w: %s", apperr.ErrInvalidModel, model)
	}

	apiKey, _, err := s.resolveCredential()
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, apperr.ErrMissingCredential
	}

	sess, err := s.getSession(id)
	if err != nil {
		return nil, err
	}

	res, err := sess.Generate(ctx, apiKey, model, prompt, s.cfg.StyleHint)
	if err != nil {
		return nil, err
	}
	if res.Text != "" {
		s.logger.Info("generation commentary", slog.String("board", id), slog.String("text", res.Text))
	}
	return &GenerateResult{Text: res.Text, State: sess.State()}, nil
}

// SetCredential stores the generation API key.
func (s *Service) SetCredential(_ context.Context, apiKey string) error {
	return s.db.SetCredential(CredentialProvider, apiKey)
}

// DeleteCredential removes the stored generation API key.
func (s *Service) DeleteCredential(_ context.Context) error {
	return s.db.DeleteCredential(CredentialProvider)
}

// Credential reports whether a generation credential is configured, and from
// where, without exposing the key.
func (s *Service) Credential(_ context.Context) (CredentialStatus, error) {
	key, source, err := s.resolveCredential()
	if err != nil {
		return CredentialStatus{}, err
	}
	if key == "" {
		return CredentialStatus{}, nil
	}
	hint := key
	if len(hint) > 4 {
		hint = hint[len(hint)-4:]
	}
	return CredentialStatus{Configured: true, Source: source, Hint: "…" + hint}, nil
}

func (s *Service) resolveCredential() (key, source string, err error) {
	key, err = s.db.GetCredential(CredentialProvider)
	if err != nil {
		return "", "", err
	}
	if key != "" {
		return key, "store", nil
	}
	if s.cfg.FallbackAPIKey != "" {
		return s.cfg.FallbackAPIKey, "config", nil
	}
	return "", "", nil
}

// Models returns the enumerated model variants and the default.
func (s *Service) Models(_ context.Context) ([]string, string) {
	return s.cfg.Models, s.cfg.DefaultModel
}

// Close stops every open session. Rasters are persisted on each commit, so
// nothing is flushed here.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

// getSession returns the live session for a board, opening it from the
// persisted raster on first use.
func (s *Service) getSession(id string) (*session.Session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	b, png, err := s.db.GetBoard(id)
	if err != nil {
		return nil, err
	}

	var surf *canvas.Surface
	if len(png) > 0 {
		surf, err = canvas.NewFromSnapshot(png, s.cfg.DefaultPen, s.cfg.MaxHistory)
	} else {
		surf, err = canvas.New(b.Width, b.Height, s.cfg.DefaultPen, s.cfg.MaxHistory)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		// Lost the race to another opener.
		return sess, nil
	}
	sess := s.newSession(id, surf)
	s.sessions[id] = sess
	return sess, nil
}

func (s *Service) newSession(id string, surf *canvas.Surface) *session.Session {
	return session.New(id, surf, s.gen, func(action string, snap []byte) {
		s.persist(id, snap)
		s.logger.Debug("board committed",
			slog.String("board", id),
			slog.String("action", action),
			slog.String("checksum", checksum.Short(snap)))
	})
}

// persist mirrors a snapshot to the catalog and notifies listeners.
func (s *Service) persist(id string, snap []byte) {
	cs := checksum.Sum(snap)
	if err := s.db.UpdateBoardRaster(id, cs, snap, time.Now().UTC()); err != nil {
		s.logger.Warn("persist board failed", slog.String("board", id), slog.String("error", err.Error()))
		return
	}
	s.notify("updated", id, cs)
}

func (s *Service) notify(action, id, cs string) {
	if s.event != nil {
		s.event(action, id, cs)
	}
}
