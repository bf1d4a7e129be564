// Package session runs one event loop per open board. The loop exclusively
// owns the board's drawing surface: every mutation is executed inside it, so
// the raster and its history need no locks.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/canvas"
	"github.com/inkhorn/easel/internal/imagegen"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/raster"
)

// CommitFunc is called inside the session loop after every committed
// snapshot. action is one of "stroke", "clear", "import", "generated".
type CommitFunc func(action string, snapshot []byte)

// State is a point-in-time view of a session for API responses.
type State struct {
	Busy         bool       `json:"busy"`
	CanUndo      bool       `json:"canUndo"`
	CanRedo      bool       `json:"canRedo"`
	HistoryLen   int        `json:"historyLen"`
	HistoryIndex int        `json:"historyIndex"`
	Checksum     string     `json:"checksum"`
	Pen          models.Pen `json:"pen"`
}

// Session owns one board's Surface behind a request channel.
//
// Generation is the only suspending operation: the loop marks itself busy and
// the external call runs outside it, so drawing stays responsive while a
// request is pending. Undo/redo during a pending generation is allowed; the
// eventual result still overwrites the raster, which can silently discard the
// intervening undo. That race is accepted rather than locked out.
type Session struct {
	boardID string
	surface *canvas.Surface
	gen     imagegen.Generator
	commit  CommitFunc

	reqCh   chan func()
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	// loop-owned state
	busy bool
}

// ErrClosed is returned for operations on a stopped session.
var ErrClosed = errors.New("session: closed")

// New starts a session loop around surface. commit may be nil.
func New(boardID string, surface *canvas.Surface, gen imagegen.Generator, commit CommitFunc) *Session {
	s := &Session{
		boardID: boardID,
		surface: surface,
		gen:     gen,
		commit:  commit,
		reqCh:   make(chan func()),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.reqCh:
			fn()
		}
	}
}

// do executes fn inside the loop and waits for it to finish.
func (s *Session) do(fn func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case s.reqCh <- func() { fn(); close(done) }:
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// Close stops the loop. Pending generation results arriving after Close are
// dropped.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}

// BoardID returns the board this session serves.
func (s *Session) BoardID() string { return s.boardID }

// State returns a snapshot of the session's live state.
func (s *Session) State() State {
	var st State
	_ = s.do(func() {
		st = State{
			Busy:         s.busy,
			CanUndo:      s.surface.CanUndo(),
			CanRedo:      s.surface.CanRedo(),
			HistoryLen:   s.surface.HistoryLen(),
			HistoryIndex: s.surface.HistoryIndex(),
			Checksum:     s.surface.Checksum(),
			Pen:          s.surface.Pen(),
		}
	})
	return st
}

// ApplyStroke runs a complete gesture and commits its snapshot. When dispW
// and dispH are positive, points are mapped from display space into raster
// space first.
func (s *Session) ApplyStroke(st models.Stroke, dispW, dispH float64) (bool, error) {
	var applied bool
	err := s.do(func() {
		if dispW > 0 && dispH > 0 {
			mapped := make([]models.Point, len(st.Points))
			for i, p := range st.Points {
				mapped[i] = s.surface.MapDisplayPoint(dispW, dispH, p)
			}
			st.Points = mapped
		}
		var snap []byte
		snap, applied = s.surface.ApplyStroke(st)
		if applied {
			s.committed("stroke", snap)
		}
	})
	return applied, err
}

// SetPen replaces the pen state.
func (s *Session) SetPen(p models.Pen) error {
	return s.do(func() { s.surface.SetPen(p) })
}

// Pen returns the current pen state.
func (s *Session) Pen() (models.Pen, error) {
	var p models.Pen
	err := s.do(func() { p = s.surface.Pen() })
	return p, err
}

// Clear fills the raster with the background and commits a snapshot.
func (s *Session) Clear() error {
	return s.do(func() {
		snap := s.surface.Clear()
		s.committed("clear", snap)
	})
}

// Import decodes image bytes, places them aspect-fit on the raster, and
// commits a snapshot. Decode and draw happen in one loop turn, so history
// never observes a partially drawn state.
func (s *Session) Import(data []byte) error {
	var importErr error
	err := s.do(func() {
		var snap []byte
		snap, importErr = s.surface.ImportImage(data)
		if importErr == nil {
			s.committed("import", snap)
		}
	})
	if err != nil {
		return err
	}
	return importErr
}

// Undo moves the history cursor back one snapshot. Reports whether anything
// changed.
func (s *Session) Undo() (bool, error) {
	var applied bool
	err := s.do(func() { _, applied = s.surface.Undo() })
	return applied, err
}

// Redo moves the history cursor forward one snapshot.
func (s *Session) Redo() (bool, error) {
	var applied bool
	err := s.do(func() { _, applied = s.surface.Redo() })
	return applied, err
}

// ExportPNG returns the live raster encoded as PNG.
func (s *Session) ExportPNG() ([]byte, error) {
	var data []byte
	var encErr error
	err := s.do(func() { data, encErr = s.surface.ExportPNG() })
	if err != nil {
		return nil, err
	}
	return data, encErr
}

// CurrentSnapshot returns the snapshot at the history cursor.
func (s *Session) CurrentSnapshot() ([]byte, error) {
	var snap []byte
	err := s.do(func() { snap = s.surface.Current() })
	return snap, err
}

// Generate submits the board's raster plus prompt to the generation service
// and applies the returned image as the new base layer. The caller blocks
// until the response arrives; the session loop does not, so drawing stays
// live. A second Generate while one is pending fails with ErrBusy.
//
// Request framing: if the raster has been touched, the request carries the
// composited raster first and the prompt suffixed with styleHint second;
// an untouched raster produces a prompt-only request.
func (s *Session) Generate(ctx context.Context, apiKey, model, prompt, styleHint string) (*imagegen.Result, error) {
	var req imagegen.Request
	var prepErr error

	// Reserve the busy flag and capture the raster in one loop turn.
	err := s.do(func() {
		if s.busy {
			prepErr = apperr.ErrBusy
			return
		}
		req.Model = model
		req.Prompt = prompt
		if !s.surface.Untouched() {
			req.Image, prepErr = s.surface.CompositedPNG()
			if prepErr != nil {
				return
			}
			if styleHint != "" {
				req.Prompt = strings.TrimSpace(prompt) + " " + styleHint
			}
		}
		s.busy = true
	})
	if err != nil {
		return nil, err
	}
	if prepErr != nil {
		return nil, prepErr
	}

	// The external call runs outside the loop.
	res, genErr := s.gen.Generate(ctx, apiKey, req)

	// Apply (or just release the busy flag) back inside the loop.
	var applyErr error
	err = s.do(func() {
		s.busy = false
		if genErr != nil {
			return
		}
		img, _, decErr := raster.Decode(res.Image)
		if decErr != nil {
			applyErr = fmt.Errorf("session: decode generated image: %w", decErr)
			return
		}
		snap := s.surface.SetBase(img)
		s.committed("generated", snap)
	})
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return nil, genErr
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return res, nil
}

func (s *Session) committed(action string, snap []byte) {
	if s.commit != nil {
		s.commit(action, snap)
	}
}
