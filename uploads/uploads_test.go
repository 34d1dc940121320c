package uploads

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const svgDoc = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10"/></svg>`

func TestFilesystemUpload(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystem(dir, "/uploads/", 0)

	url, err := fs.Upload(context.Background(), "My Logo.PNG", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, "-my-logo.png") {
		t.Errorf("Upload() url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/"))); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}

	second, err := fs.Upload(context.Background(), "My Logo.PNG", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("second Upload() failed: %v", err)
	}
	if second == url {
		t.Error("two uploads of the same name share a url")
	}
}

func TestUploadTypeDetection(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantExt string
		wantErr error
	}{
		{"png", "a.png", pngBytes(t), ".png", nil},
		{"svg by content", "drawing.txt", []byte(svgDoc), ".svg", nil},
		{"png named as jpg", "photo.jpg", pngBytes(t), ".png", nil},
		{"plain text", "notes.txt", []byte("hello world"), "", ErrUnsupportedType},
		{"html", "page.html", []byte("<html><body>hi</body></html>"), "", ErrUnsupportedType},
	}
	fs := NewFilesystem(t.TempDir(), "/uploads", 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := fs.Upload(context.Background(), tt.file, bytes.NewReader(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Upload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Upload() failed: %v", err)
			}
			if filepath.Ext(url) != tt.wantExt {
				t.Errorf("Upload() url = %q, want extension %s", url, tt.wantExt)
			}
		})
	}
}

func TestUploadSizeLimit(t *testing.T) {
	fs := NewFilesystem(t.TempDir(), "/uploads", 16)
	_, err := fs.Upload(context.Background(), "big.png", bytes.NewReader(pngBytes(t)))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Upload() error = %v, want ErrTooLarge", err)
	}
}

func TestObjectNameStripsPaths(t *testing.T) {
	name := objectName(`..\..\etc/passwd.png`, "image/png")
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		t.Errorf("objectName() = %q leaks path elements", name)
	}
	if !strings.HasSuffix(name, "-passwd.png") {
		t.Errorf("objectName() = %q", name)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Upload(t *testing.T) {
	fake := &fakePutter{}
	up := NewS3WithClient(fake, "assets", "https://cdn.example.com/", 0)

	url, err := up.Upload(context.Background(), "logo.png", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	key := aws.ToString(fake.input.Key)
	if !strings.HasPrefix(key, "uploads/") {
		t.Errorf("key = %q", key)
	}
	if url != "https://cdn.example.com/"+key {
		t.Errorf("url = %q, want cdn url for %q", url, key)
	}
	if aws.ToString(fake.input.ContentType) != "image/png" {
		t.Errorf("ContentType = %q", aws.ToString(fake.input.ContentType))
	}
	if !bytes.Equal(fake.body, pngBytes(t)) {
		t.Error("uploaded body differs from input")
	}

	fake.err = errors.New("access denied")
	if _, err := up.Upload(context.Background(), "logo.png", bytes.NewReader(pngBytes(t))); err == nil {
		t.Error("Upload() should surface the s3 error")
	}
}

func TestS3DefaultURL(t *testing.T) {
	up := NewS3WithClient(&fakePutter{}, "assets", "", 0)
	url, err := up.Upload(context.Background(), "x.png", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "https://assets.s3.amazonaws.com/uploads/") {
		t.Errorf("url = %q", url)
	}
}
