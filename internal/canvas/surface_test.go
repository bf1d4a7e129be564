package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/inkhorn/easel/internal/models"
)

var testPen = models.Pen{Color: "#000000", Width: 3}

func testSurface(t *testing.T, w, h int) *Surface {
	t.Helper()
	s, err := New(w, h, testPen, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func stroke(points ...models.Point) models.Stroke {
	return models.Stroke{Points: points}
}

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(0, 54, testPen, 0); err == nil {
		t.Fatal("zero width should fail")
	}
	if _, err := New(96, -1, testPen, 0); err == nil {
		t.Fatal("negative height should fail")
	}
}

func TestMapDisplayPointCorners(t *testing.T) {
	s := testSurface(t, 96, 54)

	cases := []struct {
		in   models.Point
		want models.Point
	}{
		{models.Point{X: 0, Y: 0}, models.Point{X: 0, Y: 0}},
		{models.Point{X: 1920, Y: 1080}, models.Point{X: 96, Y: 54}},
		{models.Point{X: 960, Y: 540}, models.Point{X: 48, Y: 27}},
	}
	for _, tc := range cases {
		got := s.MapDisplayPoint(1920, 1080, tc.in)
		if got != tc.want {
			t.Errorf("MapDisplayPoint(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMapDisplayPointZeroDisplayPassesThrough(t *testing.T) {
	s := testSurface(t, 96, 54)
	p := models.Point{X: 12, Y: 34}
	if got := s.MapDisplayPoint(0, 0, p); got != p {
		t.Errorf("MapDisplayPoint with zero display = %v, want %v", got, p)
	}
}

func TestHistoryLengthAfterNStrokes(t *testing.T) {
	s := testSurface(t, 96, 54)

	const n = 4
	for i := 0; i < n; i++ {
		x := float64(10 + i*15)
		if _, ok := s.ApplyStroke(stroke(models.Point{X: x, Y: 10}, models.Point{X: x, Y: 40})); !ok {
			t.Fatalf("stroke %d not applied", i)
		}
	}
	if s.HistoryLen() != n+1 {
		t.Fatalf("HistoryLen = %d, want %d", s.HistoryLen(), n+1)
	}
	if s.HistoryIndex() != n {
		t.Fatalf("HistoryIndex = %d, want %d", s.HistoryIndex(), n)
	}
}

func TestApplyStrokeEmptyIsNoop(t *testing.T) {
	s := testSurface(t, 96, 54)
	if _, ok := s.ApplyStroke(models.Stroke{}); ok {
		t.Fatal("empty stroke should not commit")
	}
	if s.HistoryLen() != 1 {
		t.Fatalf("HistoryLen = %d, want 1", s.HistoryLen())
	}
}

func TestUndoRestoresExactBytes(t *testing.T) {
	s := testSurface(t, 96, 54)
	baseline := s.Current()

	s.ApplyStroke(stroke(models.Point{X: 5, Y: 5}, models.Point{X: 50, Y: 40}))
	snap, ok := s.Undo()
	if !ok {
		t.Fatal("undo not applied")
	}
	if !bytes.Equal(snap, baseline) {
		t.Fatal("undo snapshot differs from baseline bytes")
	}
	if !s.Untouched() {
		t.Fatal("surface should equal blank baseline after undo")
	}
}

func TestUndoRedoAtEnds(t *testing.T) {
	s := testSurface(t, 96, 54)

	if _, ok := s.Undo(); ok {
		t.Fatal("undo at baseline should be a no-op")
	}
	if _, ok := s.Redo(); ok {
		t.Fatal("redo with no future should be a no-op")
	}
}

func TestBranchDiscard(t *testing.T) {
	s := testSurface(t, 96, 54)
	for i := 0; i < 3; i++ {
		s.ApplyStroke(stroke(models.Point{X: float64(10 + i*10), Y: 10}, models.Point{X: 20, Y: 40}))
	}
	s.Undo()
	s.Undo()
	// len=4, index=1; committing here discards the two redo entries.
	s.ApplyStroke(stroke(models.Point{X: 80, Y: 10}, models.Point{X: 80, Y: 40}))

	if s.HistoryLen() != 3 {
		t.Fatalf("HistoryLen = %d, want 3", s.HistoryLen())
	}
	if s.CanRedo() {
		t.Fatal("redo branch should be discarded")
	}
}

func TestMaxHistoryTrims(t *testing.T) {
	s, err := New(96, 54, testPen, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s.ApplyStroke(stroke(models.Point{X: float64(5 + i*10), Y: 5}, models.Point{X: 40, Y: 40}))
	}
	if s.HistoryLen() != 3 {
		t.Fatalf("HistoryLen = %d, want 3 (trimmed)", s.HistoryLen())
	}
}

func TestUntouchedLifecycle(t *testing.T) {
	s := testSurface(t, 96, 54)
	if !s.Untouched() {
		t.Fatal("fresh surface should be untouched")
	}
	s.ApplyStroke(stroke(models.Point{X: 10, Y: 10}, models.Point{X: 40, Y: 40}))
	if s.Untouched() {
		t.Fatal("surface with a stroke should be touched")
	}
}

func TestClearCommitsSnapshot(t *testing.T) {
	s := testSurface(t, 96, 54)
	s.ApplyStroke(stroke(models.Point{X: 10, Y: 10}, models.Point{X: 40, Y: 40}))
	s.Clear()

	if s.HistoryLen() != 3 {
		t.Fatalf("HistoryLen = %d, want 3", s.HistoryLen())
	}
	if !s.Untouched() {
		t.Fatal("cleared surface should equal blank baseline")
	}
	if !s.CanUndo() {
		t.Fatal("clear must stay reachable via undo")
	}
}

func TestSetBaseAspectFitLetterboxes(t *testing.T) {
	s := testSurface(t, 20, 10)

	// A square black image on a 2:1 canvas scales to 10x10 centered at x=5.
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			src.Set(x, y, color.Black)
		}
	}
	s.SetBase(src)

	got := s.Image()
	if r, g, b, _ := got.At(0, 5).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("letterbox pixel (0,5) = %v, want white", got.At(0, 5))
	}
	if r, _, _, _ := got.At(10, 5).RGBA(); r != 0 {
		t.Errorf("center pixel (10,5) = %v, want black", got.At(10, 5))
	}
	if !s.HasBase() {
		t.Error("base image should be recorded")
	}
	if s.HistoryLen() != 2 {
		t.Errorf("HistoryLen = %d, want 2", s.HistoryLen())
	}
}

func TestImportImageRejectsGarbage(t *testing.T) {
	s := testSurface(t, 96, 54)
	if _, err := s.ImportImage([]byte("not an image")); err == nil {
		t.Fatal("garbage bytes should fail to decode")
	}
	if s.HistoryLen() != 1 {
		t.Fatalf("HistoryLen = %d, want 1 (no commit on failure)", s.HistoryLen())
	}
}

func TestNewFromSnapshotKeepsDimensionsAndPixels(t *testing.T) {
	s := testSurface(t, 96, 54)
	s.ApplyStroke(stroke(models.Point{X: 10, Y: 10}, models.Point{X: 80, Y: 40}))
	snap := s.Current()

	restored, err := NewFromSnapshot(snap, testPen, 0)
	if err != nil {
		t.Fatalf("NewFromSnapshot: %v", err)
	}
	if w, h := restored.Size(); w != 96 || h != 54 {
		t.Fatalf("size = %dx%d, want 96x54", w, h)
	}
	if restored.Checksum() != s.Checksum() {
		t.Fatal("restored checksum differs from source")
	}
	if restored.HistoryLen() != 1 {
		t.Fatalf("HistoryLen = %d, want 1 (snapshot becomes baseline)", restored.HistoryLen())
	}
}

func TestExportPNGIncludesActiveStroke(t *testing.T) {
	s := testSurface(t, 96, 54)
	s.BeginStroke(models.Point{X: 10, Y: 10})
	s.ExtendStroke(models.Point{X: 80, Y: 40})

	data, err := s.ExportPNG()
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 96 {
		t.Fatalf("width = %d, want 96", img.Bounds().Dx())
	}
	// History is untouched until EndStroke.
	if s.HistoryLen() != 1 {
		t.Fatalf("HistoryLen = %d, want 1", s.HistoryLen())
	}
}
