package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/imagegen"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/storage"
)

type fakeGen struct {
	mu    sync.Mutex
	resp  *imagegen.Result
	err   error
	calls int
}

func (f *fakeGen) Generate(_ context.Context, _ string, _ imagegen.Request) (*imagegen.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

// testEnv sets up a temp gallery, SQLite catalog, service, and router.
// authToken="" means disabled mode.
func testEnv(t *testing.T, authToken string) (*fakeGen, http.Handler) {
	t.Helper()
	gen := &fakeGen{}
	router, _ := testEnvWithGallery(t, gen, authToken)
	return gen, router
}

func testEnvWithGallery(t *testing.T, gen imagegen.Generator, authToken string) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()

	gallery := filepath.Join(dir, "gallery")
	if err := os.MkdirAll(gallery, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files, err := storage.NewFS(gallery)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := boardservice.Config{
		CanvasWidth:  96,
		CanvasHeight: 54,
		MaxHistory:   10,
		DefaultPen:   models.Pen{Color: "#000000", Width: 3},
		Models:       []string{"model-a", "model-b"},
		DefaultModel: "model-a",
	}
	svc := boardservice.NewService(db, files, gen, cfg, nil, nil)
	t.Cleanup(svc.Close)

	router := NewRouter(svc, files, db, authToken != "", authToken, nil)
	return router, gallery
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createBoard(t *testing.T, router http.Handler, name string) BoardDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/boards", map[string]string{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create board = %d, body = %s", w.Code, w.Body.String())
	}
	var b BoardDetail
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	return b
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestBoardLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	b := createBoard(t, router, "sketch")
	if b.Width != 96 || b.Height != 54 {
		t.Fatalf("dimensions = %dx%d, want 96x54", b.Width, b.Height)
	}

	w := do(t, router, http.MethodGet, "/boards/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get board = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/boards", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list boards = %d", w.Code)
	}
	var list BoardListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Boards) != 1 {
		t.Fatalf("boards = %d, want 1", len(list.Boards))
	}

	w = do(t, router, http.MethodPatch, "/boards/"+b.ID, map[string]string{"name": "renamed"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/boards/"+b.ID, nil)
	var got BoardDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Name != "renamed" {
		t.Fatalf("name = %q, want renamed", got.Name)
	}

	w = do(t, router, http.MethodDelete, "/boards/"+b.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/boards/"+b.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
}

func TestStrokesAndHistory(t *testing.T) {
	_, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	stroke := map[string]any{
		"points":  []map[string]float64{{"x": 10, "y": 10}, {"x": 80, "y": 40}},
		"display": map[string]float64{"width": 192, "height": 108},
	}
	w := do(t, router, http.MethodPost, "/boards/"+b.ID+"/strokes", stroke)
	if w.Code != http.StatusOK {
		t.Fatalf("stroke = %d, body = %s", w.Code, w.Body.String())
	}
	var applied AppliedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &applied)
	if !applied.Applied || applied.State.HistoryLen != 2 {
		t.Fatalf("applied = %+v, want applied with historyLen 2", applied)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/undo", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &applied)
	if w.Code != http.StatusOK || !applied.Applied {
		t.Fatalf("undo = %d %+v, want applied", w.Code, applied)
	}

	// At the baseline a second undo is a no-op.
	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/undo", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &applied)
	if w.Code != http.StatusOK || applied.Applied {
		t.Fatalf("undo at baseline = %d %+v, want no-op", w.Code, applied)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/redo", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &applied)
	if w.Code != http.StatusOK || !applied.Applied {
		t.Fatalf("redo = %d %+v, want applied", w.Code, applied)
	}
}

func TestCreateBoardDimensionValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/boards", map[string]any{"name": "bad", "width": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative width = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "must not be negative") {
		t.Errorf("error body = %s", w.Body.String())
	}

	// Zero dimensions fall back to the configured defaults.
	w = do(t, router, http.MethodPost, "/boards", map[string]any{"name": "defaulted", "width": 0, "height": 0})
	if w.Code != http.StatusCreated {
		t.Fatalf("zero dimensions = %d, want 201", w.Code)
	}
	var b BoardDetail
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if b.Width != 96 || b.Height != 54 {
		t.Errorf("defaulted size = %dx%d, want 96x54", b.Width, b.Height)
	}
}

func TestStrokeRequiresPoints(t *testing.T) {
	_, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	w := do(t, router, http.MethodPost, "/boards/"+b.ID+"/strokes", map[string]any{"points": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty stroke = %d, want 400", w.Code)
	}
}

func TestPenAndClear(t *testing.T) {
	_, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	w := do(t, router, http.MethodPut, "/boards/"+b.ID+"/pen", map[string]any{"color": "#ff0000"})
	if w.Code != http.StatusOK {
		t.Fatalf("pen = %d", w.Code)
	}
	var state StateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if state.State.Pen.Color != "#ff0000" || state.State.Pen.Width != 3 {
		t.Fatalf("pen = %+v, want color changed width kept", state.State.Pen)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/clear", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if w.Code != http.StatusOK || state.State.HistoryLen != 2 {
		t.Fatalf("clear = %d historyLen %d, want 200 with 2", w.Code, state.State.HistoryLen)
	}
}

func TestBoardImage(t *testing.T) {
	_, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	w := do(t, router, http.MethodGet, "/boards/"+b.ID+"/image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("image = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", ct)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 96 {
		t.Fatalf("width = %d, want 96", img.Bounds().Dx())
	}
}

func TestGalleryUploadServeDelete(t *testing.T) {
	gen := &fakeGen{}
	router, galleryDir := testEnvWithGallery(t, gen, "")

	body, ctype := multipartBody(t, "ref.png", pngBytes(t, 20, 10))
	req := httptest.NewRequest(http.MethodPost, "/gallery", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var img models.GalleryImage
	_ = json.Unmarshal(w.Body.Bytes(), &img)
	if img.Path != "ref.png" || img.Width != 20 {
		t.Fatalf("indexed = %+v", img)
	}
	if _, err := os.Stat(filepath.Join(galleryDir, "ref.png")); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	rw := do(t, router, http.MethodGet, "/gallery", nil)
	var list GalleryListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if len(list.Images) != 1 {
		t.Fatalf("gallery list = %d entries, want 1", len(list.Images))
	}

	rw = do(t, router, http.MethodGet, "/gallery/ref.png", nil)
	if rw.Code != http.StatusOK || rw.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("serve = %d %s", rw.Code, rw.Header().Get("Content-Type"))
	}

	rw = do(t, router, http.MethodDelete, "/gallery/ref.png", nil)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rw.Code)
	}
	rw = do(t, router, http.MethodGet, "/gallery/ref.png", nil)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("serve after delete = %d, want 404", rw.Code)
	}
}

func TestGalleryRejectsNonImage(t *testing.T) {
	_, router := testEnv(t, "")

	body, ctype := multipartBody(t, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/gallery", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload txt = %d, want 400", w.Code)
	}
}

func TestGalleryPathTraversal(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/gallery/..%2fsecret.png", nil)
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Fatalf("traversal = %d, want 400 or 404", w.Code)
	}
}

func TestImportAndExport(t *testing.T) {
	gen := &fakeGen{}
	router, galleryDir := testEnvWithGallery(t, gen, "")
	b := createBoard(t, router, "sketch")

	if err := os.WriteFile(filepath.Join(galleryDir, "ref.png"), pngBytes(t, 20, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	w := do(t, router, http.MethodPost, "/boards/"+b.ID+"/import", map[string]string{"gallery": "ref.png"})
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	var state StateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if state.State.HistoryLen != 2 {
		t.Fatalf("historyLen = %d, want 2", state.State.HistoryLen)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/import", map[string]string{"gallery": "missing.png"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("import missing = %d, want 404", w.Code)
	}

	// Multipart variant.
	body, ctype := multipartBody(t, "up.png", pngBytes(t, 8, 8))
	req := httptest.NewRequest(http.MethodPost, "/boards/"+b.ID+"/import", body)
	req.Header.Set("Content-Type", ctype)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("multipart import = %d, body = %s", rw.Code, rw.Body.String())
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/export", map[string]string{"name": "out"})
	if w.Code != http.StatusCreated {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	var exp ExportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &exp)
	if exp.Name != "out.png" {
		t.Fatalf("export name = %q, want out.png", exp.Name)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/export", map[string]string{"name": "out"})
	if w.Code != http.StatusConflict {
		t.Fatalf("second export = %d, want 409", w.Code)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	gen, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	// No credential configured.
	w := do(t, router, http.MethodPost, "/boards/"+b.ID+"/generate", map[string]string{"prompt": "a cat"})
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("no credential = %d, want 428", w.Code)
	}

	w = do(t, router, http.MethodPut, "/credential", map[string]string{"api_key": "key-1234"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set credential = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/generate", map[string]string{"prompt": "a cat", "model": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown model = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/generate", map[string]string{"prompt": " "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt = %d, want 400", w.Code)
	}

	for _, tc := range []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", apperr.ErrInvalidCredential), http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", apperr.ErrQuotaExceeded), http.StatusForbidden},
		{fmt.Errorf("upstream exploded"), http.StatusBadGateway},
	} {
		gen.mu.Lock()
		gen.resp, gen.err = nil, tc.err
		gen.mu.Unlock()
		w = do(t, router, http.MethodPost, "/boards/"+b.ID+"/generate", map[string]string{"prompt": "a cat"})
		if w.Code != tc.want {
			t.Fatalf("generate with %v = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestGenerateSuccess(t *testing.T) {
	gen, router := testEnv(t, "")
	b := createBoard(t, router, "sketch")

	if w := do(t, router, http.MethodPut, "/credential", map[string]string{"api_key": "key-1234"}); w.Code != http.StatusNoContent {
		t.Fatalf("set credential = %d", w.Code)
	}
	gen.mu.Lock()
	gen.resp = &imagegen.Result{Image: pngBytes(t, 96, 54), MIME: "image/png", Text: "voila"}
	gen.mu.Unlock()

	w := do(t, router, http.MethodPost, "/boards/"+b.ID+"/generate", map[string]string{"prompt": "a cat"})
	if w.Code != http.StatusOK {
		t.Fatalf("generate = %d, body = %s", w.Code, w.Body.String())
	}
	var res GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Text != "voila" {
		t.Fatalf("text = %q, want voila", res.Text)
	}
	if res.State.HistoryLen != 2 {
		t.Fatalf("historyLen = %d, want 2", res.State.HistoryLen)
	}
}

func TestCredentialStatus(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/credential", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get credential = %d", w.Code)
	}
	var status boardservice.CredentialStatus
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.Configured {
		t.Fatalf("status = %+v, want unconfigured", status)
	}

	do(t, router, http.MethodPut, "/credential", map[string]string{"api_key": "key-1234"})
	w = do(t, router, http.MethodGet, "/credential", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if !status.Configured || status.Hint != "…1234" {
		t.Fatalf("status = %+v, want configured with hint", status)
	}

	if w := do(t, router, http.MethodDelete, "/credential", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete credential = %d", w.Code)
	}
}

func TestModelsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("models = %d", w.Code)
	}
	var res ModelsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Models) != 2 || res.Default != "model-a" {
		t.Fatalf("models = %+v", res)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/boards", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/boards", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/boards", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token = %d, want 200", w.Code)
	}
}
