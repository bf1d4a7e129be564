// Package canvas implements the drawing surface: a fixed-resolution raster
// with stroke capture, aspect-fit image placement, and snapshot history.
package canvas

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/inkhorn/easel/internal/checksum"
	"github.com/inkhorn/easel/internal/history"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/raster"
)

// Surface owns the authoritative raster of one board plus its history.
// It is not safe for concurrent use; a session goroutine owns each instance
// and serializes all access.
type Surface struct {
	dc     *gg.Context
	width  int
	height int

	pen  models.Pen
	base image.Image // last imported or generated base image, nil when cleared

	strokeActive bool
	strokeLast   models.Point

	hist     *history.History
	blankSum string
}

// New creates a blank white surface of the given internal resolution.
// maxHistory bounds the snapshot timeline; zero means unbounded.
func New(width, height int, pen models.Pen, maxHistory int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas: invalid size %dx%d", width, height)
	}
	s := &Surface{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
		pen:    pen,
	}
	s.fillBackground()
	baseline := s.encode()
	s.blankSum = checksum.Sum(baseline)
	s.hist = history.New(baseline, maxHistory)
	return s, nil
}

// NewFromSnapshot restores a surface from a previously exported PNG snapshot.
// The surface dimensions come from the snapshot; the snapshot becomes the
// baseline history entry.
func NewFromSnapshot(snap []byte, pen models.Pen, maxHistory int) (*Surface, error) {
	img, _, err := raster.Decode(snap)
	if err != nil {
		return nil, fmt.Errorf("canvas: restore snapshot: %w", err)
	}
	b := img.Bounds()
	s, err := New(b.Dx(), b.Dy(), pen, maxHistory)
	if err != nil {
		return nil, err
	}
	s.dc = gg.NewContextForImage(img)
	s.hist = history.New(snap, maxHistory)
	return s, nil
}

// Size returns the fixed internal resolution of the raster.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Pen returns the current pen state.
func (s *Surface) Pen() models.Pen {
	return s.pen
}

// SetPen replaces the pen state. A change made mid-stroke affects only
// segments drawn after it.
func (s *Surface) SetPen(p models.Pen) {
	s.pen = p
}

// BeginStroke starts a new stroke at p. No-op if a stroke is already active;
// history is untouched until EndStroke.
func (s *Surface) BeginStroke(p models.Point) {
	if s.strokeActive {
		return
	}
	s.strokeActive = true
	s.strokeLast = p
}

// ExtendStroke draws a round-capped segment from the previous point to p
// using the pen state read at this segment. The live raster mutates
// immediately; history is untouched. No-op when no stroke is active.
func (s *Surface) ExtendStroke(p models.Point) {
	if !s.strokeActive {
		return
	}
	s.dc.SetHexColor(s.pen.Color)
	s.dc.SetLineWidth(s.pen.Width)
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.DrawLine(s.strokeLast.X, s.strokeLast.Y, p.X, p.Y)
	s.dc.Stroke()
	s.strokeLast = p
}

// EndStroke terminates the active stroke and commits a snapshot, discarding
// any redo entries. Returns the committed snapshot, or false when no stroke
// was active.
func (s *Surface) EndStroke() ([]byte, bool) {
	if !s.strokeActive {
		return nil, false
	}
	s.strokeActive = false
	snap := s.encode()
	s.hist.Push(snap)
	return snap, true
}

// StrokeActive reports whether a stroke is in progress.
func (s *Surface) StrokeActive() bool {
	return s.strokeActive
}

// ApplyStroke runs a complete gesture through BeginStroke/ExtendStroke/
// EndStroke. Stroke color and width override the pen for this gesture only.
// Returns false for an empty point list.
func (s *Surface) ApplyStroke(st models.Stroke) ([]byte, bool) {
	if len(st.Points) == 0 {
		return nil, false
	}
	prev := s.pen
	if st.Color != "" {
		s.pen.Color = st.Color
	}
	if st.Width > 0 {
		s.pen.Width = st.Width
	}
	s.BeginStroke(st.Points[0])
	for _, p := range st.Points[1:] {
		s.ExtendStroke(p)
	}
	snap, ok := s.EndStroke()
	s.pen = prev
	return snap, ok
}

// Clear fills the raster with the white background, drops the base image
// reference, and commits a snapshot. An active stroke is abandoned.
func (s *Surface) Clear() []byte {
	s.strokeActive = false
	s.base = nil
	s.fillBackground()
	snap := s.encode()
	s.hist.Push(snap)
	return snap
}

// ImportImage decodes external image bytes and places them as the new base
// layer, committing a snapshot.
func (s *Surface) ImportImage(data []byte) ([]byte, error) {
	img, _, err := raster.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.SetBase(img), nil
}

// SetBase fills the background and draws img scaled to fit the raster while
// preserving aspect ratio, centered. The result is committed as a snapshot.
func (s *Surface) SetBase(img image.Image) []byte {
	s.strokeActive = false
	s.fillBackground()

	b := img.Bounds()
	fit := raster.FitRect(s.width, s.height, b.Dx(), b.Dy())
	if !fit.Empty() {
		scaled := image.NewRGBA(image.Rect(0, 0, fit.Dx(), fit.Dy()))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Over, nil)
		s.dc.DrawImage(scaled, fit.Min.X, fit.Min.Y)
	}
	s.base = img

	snap := s.encode()
	s.hist.Push(snap)
	return snap
}

// HasBase reports whether an imported or generated base image is held.
func (s *Surface) HasBase() bool {
	return s.base != nil
}

// Undo moves the history cursor back one snapshot and restores the full
// raster from it. No-op at the oldest entry.
func (s *Surface) Undo() ([]byte, bool) {
	snap, ok := s.hist.Undo()
	if !ok {
		return nil, false
	}
	s.restore(snap)
	return snap, true
}

// Redo moves the history cursor forward one snapshot and restores the full
// raster from it. No-op at the newest entry.
func (s *Surface) Redo() ([]byte, bool) {
	snap, ok := s.hist.Redo()
	if !ok {
		return nil, false
	}
	s.restore(snap)
	return snap, true
}

// CanUndo reports whether an older snapshot exists.
func (s *Surface) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether a newer snapshot exists.
func (s *Surface) CanRedo() bool { return s.hist.CanRedo() }

// HistoryLen returns the number of retained snapshots.
func (s *Surface) HistoryLen() int { return s.hist.Len() }

// HistoryIndex returns the history cursor position.
func (s *Surface) HistoryIndex() int { return s.hist.Index() }

// Current returns the snapshot at the history cursor.
func (s *Surface) Current() []byte { return s.hist.Current() }

// ExportPNG serializes the live raster, including any in-progress stroke.
func (s *Surface) ExportPNG() ([]byte, error) {
	return raster.EncodePNG(s.dc.Image())
}

// CompositedPNG serializes the live raster flattened onto opaque white,
// the form sent to the generation service.
func (s *Surface) CompositedPNG() ([]byte, error) {
	return raster.EncodePNG(raster.CompositeOnWhite(s.dc.Image()))
}

// Checksum returns the SHA-256 of the live raster's PNG serialization.
func (s *Surface) Checksum() string {
	return checksum.Sum(s.encode())
}

// Untouched reports whether the live raster still equals the blank baseline
// for this resolution.
func (s *Surface) Untouched() bool {
	return checksum.Sum(s.encode()) == s.blankSum
}

// MapDisplayPoint converts a point in display space (the on-screen size the
// client rendered the board at) into raster space by scaling each axis with
// rasterSize/displaySize. Points map through unchanged when the display size
// is unknown.
func (s *Surface) MapDisplayPoint(dispW, dispH float64, p models.Point) models.Point {
	if dispW <= 0 || dispH <= 0 {
		return p
	}
	return models.Point{
		X: p.X * float64(s.width) / dispW,
		Y: p.Y * float64(s.height) / dispH,
	}
}

// Image returns the live raster.
func (s *Surface) Image() image.Image {
	return s.dc.Image()
}

func (s *Surface) fillBackground() {
	s.dc.SetRGB(1, 1, 1)
	s.dc.Clear()
}

// encode serializes the live raster. Snapshot blobs are this package's own
// PNG encodes of an in-memory RGBA, so the error path is unreachable.
func (s *Surface) encode() []byte {
	data, err := raster.EncodePNG(s.dc.Image())
	if err != nil {
		return nil
	}
	return data
}

// restore replaces the full raster content from a snapshot; no diffing.
func (s *Surface) restore(snap []byte) {
	img, _, err := raster.Decode(snap)
	if err != nil {
		return
	}
	s.dc = gg.NewContextForImage(img)
	s.strokeActive = false
}
