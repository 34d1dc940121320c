package designs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"design-studio/core"
	designsvc "design-studio/designs"
	"design-studio/export"
	"design-studio/handlers/auth"
	"design-studio/middleware"
	"design-studio/stores/memory"
)

// mockStore wraps the memory store and injects errors.
type mockStore struct {
	designsvc.Store
	listErr error
	getErr  error
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{Store: memory.NewStore()}
}

func (m *mockStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.Store.List(ctx, userID)
}

func (m *mockStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.Store.Get(ctx, userID, id)
}

func (m *mockStore) Save(ctx context.Context, d *core.Design) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	return m.Store.Save(ctx, d)
}

func newRequest(method, target, body, userID string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = middleware.WithClaims(ctx, &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}})
	}
	return req.WithContext(ctx)
}

const bannerBody = `{
	"name": "Grand Opening",
	"productType": "banner",
	"document": {"pages": [{"elements": [
		{"id": "t1", "type": "text", "x": 6, "y": 12, "width": 60, "height": 10, "text": "GRAND OPENING", "fontSize": 6, "color": "#d00000", "visible": true, "opacity": 1},
		{"id": "s1", "type": "shape", "shape": "star", "x": 2, "y": 2, "width": 6, "height": 6, "fill": "#ffcc00", "visible": true, "opacity": 1}
	]}, {"elements": []}]}
}`

func createDesign(t *testing.T, svc Service, userID string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleSave(svc).ServeHTTP(rec, newRequest(http.MethodPost, "/api/designs", bannerBody, userID, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad create response: %v", err)
	}
	return resp.ID
}

func TestHandleSave_CreateAndGet(t *testing.T) {
	svc := designsvc.NewService(newMockStore())
	id := createDesign(t, svc, "user-1")

	rec := httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/"+id, "", "user-1", map[string]string{"id": id}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		ProductType string `json:"productType"`
		Thumbnail   string `json:"thumbnail"`
		Data        []byte `json:"data"`
		Warning     string `json:"warning"`
		Document    struct {
			CanvasWidth float64 `json:"canvasWidth"`
			Pages       []struct {
				Elements []json.RawMessage `json:"elements"`
			} `json:"pages"`
		} `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.ID != id || resp.Name != "Grand Opening" || resp.ProductType != "banner" {
		t.Errorf("metadata = %+v", resp)
	}
	if resp.Document.CanvasWidth != 72 {
		t.Errorf("canvas width = %v, want the banner preset", resp.Document.CanvasWidth)
	}
	if len(resp.Document.Pages) != 2 || len(resp.Document.Pages[0].Elements) != 2 {
		t.Errorf("document pages = %+v", resp.Document.Pages)
	}
	if !strings.HasPrefix(resp.Thumbnail, "data:image/png;base64,") {
		t.Error("design has no thumbnail")
	}
	if len(resp.Data) != 0 || resp.Warning != "" {
		t.Errorf("unexpected data or warning: %d bytes, %q", len(resp.Data), resp.Warning)
	}
}

func TestHandleSave_Update(t *testing.T) {
	svc := designsvc.NewService(newMockStore())
	id := createDesign(t, svc, "user-1")

	body := `{"name": "Renamed", "document": {"canvasWidth": 24, "canvasHeight": 18, "pages": [{"elements": []}]}}`
	rec := httptest.NewRecorder()
	HandleSave(svc).ServeHTTP(rec, newRequest(http.MethodPut, "/api/designs/"+id, body, "user-1", map[string]string{"id": id}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list, _ := svc.List(context.Background(), "user-1")
	if len(list) != 1 || list[0].Name != "Renamed" {
		t.Errorf("designs after update = %+v", list)
	}
}

func TestHandleSave_BadInput(t *testing.T) {
	svc := designsvc.NewService(newMockStore())
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"no document", `{"name": "x"}`, http.StatusBadRequest},
		{"no canvas size", `{"document": {"pages": [{"elements": []}]}}`, http.StatusBadRequest},
		{"unknown element type", `{"productType": "banner", "document": {"pages": [{"elements": [{"id": "a", "type": "video", "width": 1, "height": 1}]}]}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleSave(svc).ServeHTTP(rec, newRequest(http.MethodPost, "/api/designs", tt.body, "user-1", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandleGet_LegacyRecord(t *testing.T) {
	store := newMockStore()
	svc := designsvc.NewService(store)
	legacy := `{"elements":[{"id":"old","type":"text","x":1,"y":1,"width":20,"height":4,"text":"OLD","visible":true,"opacity":1}]}`
	if err := store.Save(context.Background(), &core.Design{ID: "legacy", UserID: "user-1", Name: "Old", ProductType: "banner", Data: []byte(legacy)}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/legacy", "", "user-1", map[string]string{"id": "legacy"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Document struct {
			CanvasWidth float64 `json:"canvasWidth"`
			Pages       []struct {
				Elements []struct {
					ID string `json:"id"`
				} `json:"elements"`
			} `json:"pages"`
		} `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Document.Pages) != 1 || len(resp.Document.Pages[0].Elements) != 1 || resp.Document.Pages[0].Elements[0].ID != "old" {
		t.Errorf("legacy document = %+v", resp.Document)
	}
	if resp.Document.CanvasWidth != 72 {
		t.Errorf("legacy canvas width = %v, want 72", resp.Document.CanvasWidth)
	}
}

func TestHandleGet_CorruptRecordFallsBack(t *testing.T) {
	store := newMockStore()
	svc := designsvc.NewService(store)
	if err := store.Save(context.Background(), &core.Design{ID: "bad", UserID: "user-1", ProductType: "banner", Data: []byte("garbage")}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/bad", "", "user-1", map[string]string{"id": "bad"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Warning  string `json:"warning"`
		Document struct {
			Pages []struct {
				Elements []json.RawMessage `json:"elements"`
			} `json:"pages"`
		} `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Warning == "" {
		t.Error("expected a warning for an unreadable design")
	}
	if len(resp.Document.Pages) != 1 || len(resp.Document.Pages[0].Elements) != 0 {
		t.Errorf("fallback document = %+v", resp.Document)
	}
}

func TestHandleGet_Errors(t *testing.T) {
	store := newMockStore()
	svc := designsvc.NewService(store)

	rec := httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/nope", "", "user-1", map[string]string{"id": "nope"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing design: status = %d, want 404", rec.Code)
	}

	store.getErr = errors.New("connection reset")
	rec = httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/x", "", "user-1", map[string]string{"id": "x"}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure: status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("internal error detail leaked to the client")
	}

	rec = httptest.NewRecorder()
	HandleGet(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/x", "", "", map[string]string{"id": "x"}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no claims: status = %d, want 401", rec.Code)
	}
}

func TestHandleList(t *testing.T) {
	store := newMockStore()
	svc := designsvc.NewService(store)

	rec := httptest.NewRecorder()
	HandleList(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs", "", "user-1", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list: status %d body %q", rec.Code, rec.Body.String())
	}

	createDesign(t, svc, "user-1")
	rec = httptest.NewRecorder()
	HandleList(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs", "", "user-1", nil))
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("list has %d entries", len(list))
	}
	if _, ok := list[0]["data"]; ok {
		t.Error("list entries should not carry document data")
	}

	store.listErr = errors.New("boom")
	rec = httptest.NewRecorder()
	HandleList(svc).ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs", "", "user-1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure: status = %d, want 500", rec.Code)
	}
}

func TestHandleDelete(t *testing.T) {
	svc := designsvc.NewService(newMockStore())
	id := createDesign(t, svc, "user-1")

	rec := httptest.NewRecorder()
	HandleDelete(svc).ServeHTTP(rec, newRequest(http.MethodDelete, "/api/designs/"+id, "", "user-2", map[string]string{"id": id}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("other user's delete: status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	HandleDelete(svc).ServeHTTP(rec, newRequest(http.MethodDelete, "/api/designs/"+id, "", "user-1", map[string]string{"id": id}))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestHandleExport(t *testing.T) {
	svc := designsvc.NewService(newMockStore())
	id := createDesign(t, svc, "user-1")
	h := HandleExport(svc, export.Options{DPI: 10})

	tests := []struct {
		name        string
		format      string
		query       string
		wantStatus  int
		wantType    string
		wantPrefix  []byte
		wantContain string
	}{
		{"png", "png", "", http.StatusOK, "image/png", []byte("\x89PNG"), ""},
		{"svg", "svg", "?dpi=20", http.StatusOK, "image/svg+xml", nil, `width="1440"`},
		{"pdf", "pdf", "", http.StatusOK, "application/pdf", []byte("%PDF"), "/Count 2"},
		{"back page", "png", "?page=1", http.StatusOK, "image/png", []byte("\x89PNG"), ""},
		{"missing page", "png", "?page=5", http.StatusNotFound, "", nil, ""},
		{"bad format", "gif", "", http.StatusBadRequest, "", nil, ""},
		{"bad page", "png", "?page=x", http.StatusBadRequest, "", nil, ""},
		{"dpi too high", "png", "?dpi=10000", http.StatusBadRequest, "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			params := map[string]string{"id": id, "format": tt.format}
			h.ServeHTTP(rec, newRequest(http.MethodGet, "/api/designs/"+id+"/export/"+tt.format+tt.query, "", "user-1", params))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %.200s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="Grand-Opening.`+tt.format+`"`) {
				t.Errorf("Content-Disposition = %q", cd)
			}
			if tt.wantPrefix != nil && !bytes.HasPrefix(rec.Body.Bytes(), tt.wantPrefix) {
				t.Errorf("body starts with %q", rec.Body.Bytes()[:8])
			}
			if tt.wantContain != "" && !strings.Contains(rec.Body.String(), tt.wantContain) {
				t.Errorf("body does not contain %q", tt.wantContain)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := map[string]string{
		"Grand Opening!":   "Grand-Opening.png",
		"../../etc/passwd": "etc-passwd.png",
		"":                 "design.png",
		`"quoted"`:         "quoted.png",
	}
	for in, want := range tests {
		if got := Filename(in, export.FormatPNG); got != want {
			t.Errorf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}
