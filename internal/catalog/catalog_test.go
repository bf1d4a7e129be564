package catalog

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "easel-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"boards", "gallery", "credentials"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveAndGetBoard(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	b := models.Board{
		ID: "b1", Name: "sketch", Width: 960, Height: 540,
		Checksum: "abc123", CreatedAt: now, UpdatedAt: now,
	}
	raster := testPNG(t, 960, 540)
	if err := db.SaveBoard(b, raster); err != nil {
		t.Fatalf("SaveBoard: %v", err)
	}

	got, png, err := db.GetBoard("b1")
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if got.Name != "sketch" || got.Width != 960 || got.Height != 540 {
		t.Errorf("board = %+v", got)
	}
	if got.Checksum != "abc123" {
		t.Errorf("checksum = %q, want abc123", got.Checksum)
	}
	if !bytes.Equal(png, raster) {
		t.Error("raster blob does not round-trip")
	}
}

func TestSaveBoardUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	b := models.Board{ID: "b1", Name: "first", Width: 10, Height: 10, Checksum: "1", CreatedAt: now, UpdatedAt: now}
	_ = db.SaveBoard(b, []byte("one"))

	b.Name = "second"
	b.Checksum = "2"
	if err := db.SaveBoard(b, []byte("two")); err != nil {
		t.Fatalf("SaveBoard update: %v", err)
	}

	got, png, err := db.GetBoard("b1")
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if got.Name != "second" || got.Checksum != "2" {
		t.Errorf("board = %+v, want updated name and checksum", got)
	}
	if string(png) != "two" {
		t.Errorf("png = %q, want two", png)
	}

	boards, err := db.ListBoards("", "")
	if err != nil {
		t.Fatalf("ListBoards: %v", err)
	}
	if len(boards) != 1 {
		t.Errorf("len = %d, want 1 (upsert must not duplicate)", len(boards))
	}
}

func TestGetBoard_NotFound(t *testing.T) {
	db := testDB(t)
	_, _, err := db.GetBoard("missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListBoardsFilterAndSort(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	for _, name := range []string{"alpha", "beta sketch", "gamma sketch"} {
		_ = db.SaveBoard(models.Board{ID: name, Name: name, Width: 1, Height: 1, CreatedAt: now, UpdatedAt: now}, []byte("x"))
	}

	boards, err := db.ListBoards("sketch", "name")
	if err != nil {
		t.Fatalf("ListBoards: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("len = %d, want 2", len(boards))
	}
	if boards[0].Name != "beta sketch" || boards[1].Name != "gamma sketch" {
		t.Errorf("order = %q, %q", boards[0].Name, boards[1].Name)
	}

	// LIKE metacharacters in the filter must be literal.
	if got, _ := db.ListBoards("%", ""); len(got) != 0 {
		t.Errorf("wildcard filter matched %d boards, want 0", len(got))
	}
}

func TestRenameBoard(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	_ = db.SaveBoard(models.Board{ID: "b1", Name: "old", Width: 1, Height: 1, CreatedAt: now, UpdatedAt: now}, []byte("x"))

	if err := db.RenameBoard("b1", "new name"); err != nil {
		t.Fatalf("RenameBoard: %v", err)
	}
	got, _, _ := db.GetBoard("b1")
	if got.Name != "new name" {
		t.Errorf("name = %q, want new name", got.Name)
	}

	if err := db.RenameBoard("missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rename missing: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBoard(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	_ = db.SaveBoard(models.Board{ID: "b1", Width: 1, Height: 1, CreatedAt: now, UpdatedAt: now}, []byte("x"))

	if err := db.DeleteBoard("b1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if _, _, err := db.GetBoard("b1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
	if err := db.DeleteBoard("b1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestGalleryRoundTrip(t *testing.T) {
	db := testDB(t)
	img := models.GalleryImage{
		Path: "pics/cat.png", Checksum: "c1", Width: 64, Height: 32, UpdatedAt: time.Now().UTC(),
	}
	if err := db.UpsertGalleryImage(img); err != nil {
		t.Fatalf("UpsertGalleryImage: %v", err)
	}

	list, err := db.ListGallery()
	if err != nil {
		t.Fatalf("ListGallery: %v", err)
	}
	if len(list) != 1 || list[0].Path != "pics/cat.png" || list[0].Width != 64 {
		t.Errorf("list = %+v", list)
	}

	cs, err := db.GalleryChecksums()
	if err != nil {
		t.Fatalf("GalleryChecksums: %v", err)
	}
	if cs["pics/cat.png"] != "c1" {
		t.Errorf("checksums = %v", cs)
	}

	if err := db.DeleteGalleryImage("pics/cat.png"); err != nil {
		t.Fatalf("DeleteGalleryImage: %v", err)
	}
	if cs, _ := db.GalleryChecksums(); len(cs) != 0 {
		t.Errorf("checksums after delete = %v, want empty", cs)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	db := testDB(t)

	key, err := db.GetCredential("gemini")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if key != "" {
		t.Errorf("fresh store returned key %q", key)
	}

	if err := db.SetCredential("gemini", "sk-first"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if err := db.SetCredential("gemini", "sk-second"); err != nil {
		t.Fatalf("SetCredential replace: %v", err)
	}
	key, _ = db.GetCredential("gemini")
	if key != "sk-second" {
		t.Errorf("key = %q, want sk-second", key)
	}

	if err := db.DeleteCredential("gemini"); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	if key, _ := db.GetCredential("gemini"); key != "" {
		t.Errorf("key after delete = %q, want empty", key)
	}
}

func TestGetCredential_StoreFailureIsAnError(t *testing.T) {
	db := testDB(t)
	db.Close()

	// A broken store must not look like "no credential configured".
	if _, err := db.GetCredential("gemini"); err == nil {
		t.Fatal("closed store returned nil error")
	}
}
