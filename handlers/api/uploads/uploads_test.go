package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"design-studio/handlers/auth"
	"design-studio/middleware"
	"design-studio/uploads"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartRequest(t *testing.T, field, filename string, content []byte, userID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		ctx := middleware.WithClaims(req.Context(), &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}})
		req = req.WithContext(ctx)
	}
	return req
}

func TestHandleUpload(t *testing.T) {
	dir := t.TempDir()
	up := uploads.NewFilesystem(dir, "/uploads", 1024)

	rec := httptest.NewRecorder()
	HandleUpload(up, 1024).ServeHTTP(rec, multipartRequest(t, "file", "logo.png", pngHeader, "user-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	url := resp["url"]
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	if err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("stored bytes differ from the upload")
	}
}

func TestHandleUpload_Errors(t *testing.T) {
	up := uploads.NewFilesystem(t.TempDir(), "/uploads", 16)
	tests := []struct {
		name    string
		field   string
		content []byte
		want    int
	}{
		{"wrong field", "image", pngHeader, http.StatusBadRequest},
		{"not an image", "file", []byte("#!/bin/sh\necho hi\n"), http.StatusUnsupportedMediaType},
		{"too large", "file", append(append([]byte(nil), pngHeader...), make([]byte, 64)...), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleUpload(up, 16).ServeHTTP(rec, multipartRequest(t, tt.field, "f.bin", tt.content, "user-1"))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	HandleUpload(up, 16).ServeHTTP(rec, multipartRequest(t, "file", "logo.png", pngHeader, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no claims: status = %d, want 401", rec.Code)
	}
}

type failingUploader struct{}

func (failingUploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func TestHandleUpload_StoreFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleUpload(failingUploader{}, 0).ServeHTTP(rec, multipartRequest(t, "file", "logo.png", pngHeader, "user-1"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Error("internal error detail leaked to the client")
	}
}
