package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveDataURI(t *testing.T) {
	r, err := NewResolver(ResolverConfig{}, nil)
	if err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}

	tests := []struct {
		name     string
		src      string
		wantMIME string
		wantData string
	}{
		{"base64", "data:text/plain;base64,aGVsbG8=", "text/plain; charset=utf-8", "hello"},
		{"percent encoded svg", "data:image/svg+xml,%3Csvg%3E%3C%2Fsvg%3E", "image/svg+xml", "<svg></svg>"},
		{"unpadded base64", "data:image/png;base64,aGk", "image/png", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Resolve(context.Background(), tt.src)
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			if string(a.Data) != tt.wantData {
				t.Errorf("Data = %q, want %q", a.Data, tt.wantData)
			}
			if a.MIME != tt.wantMIME {
				t.Errorf("MIME = %q, want %q", a.MIME, tt.wantMIME)
			}
		})
	}
}

func TestResolveRejects(t *testing.T) {
	r, _ := NewResolver(ResolverConfig{}, nil)
	for _, src := range []string{"", "file:///etc/passwd", "relative/no/base.png", "data:nocomma"} {
		if _, err := r.Resolve(context.Background(), src); !errors.Is(err, ErrAssetUnavailable) {
			t.Errorf("Resolve(%q) error = %v, want ErrAssetUnavailable", src, err)
		}
	}
}

func TestResolveRelativeAgainstBase(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/uploads/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("not really a png"))
	}))
	defer srv.Close()

	r, err := NewResolver(ResolverConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}
	a, err := r.Resolve(context.Background(), "/uploads/logo.png")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if a.MIME != "image/png" || string(a.Data) != "not really a png" {
		t.Errorf("Resolve() = %q %q", a.MIME, a.Data)
	}

	if _, err := r.Resolve(context.Background(), "/uploads/logo.png"); err != nil {
		t.Fatalf("cached Resolve() failed: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1 (second lookup cached)", n)
	}
}

func TestResolveSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	r, _ := NewResolver(ResolverConfig{MaxBytes: 16}, nil)
	if _, err := r.Resolve(context.Background(), srv.URL+"/big"); !errors.Is(err, ErrAssetUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrAssetUnavailable", err)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewResolver(ResolverConfig{BreakerFailures: 2, BreakerTimeout: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := r.Resolve(context.Background(), srv.URL+"/flaky.png"); err == nil {
			t.Fatalf("Resolve() #%d succeeded against failing server", i)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hit %d times, want 2 before the breaker opened", n)
	}
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)
	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "a", []byte("3"))
	c.Set(ctx, "c", []byte("4"))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("oldest key a survived eviction")
	}
	if v, ok, _ := c.Get(ctx, "b"); !ok || string(v) != "2" {
		t.Errorf("Get(b) = %q, %v", v, ok)
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache() failed: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.Get(ctx, "missing-"+time.Now().String()); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "test-key", []byte("value")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	v, ok, err := c.Get(ctx, "test-key")
	if err != nil || !ok || string(v) != "value" {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}
}
