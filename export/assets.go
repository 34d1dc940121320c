package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"design-studio/tracing"
)

// Asset is the content an image or clipart element refers to.
type Asset struct {
	Data []byte
	MIME string
}

// DataURI encodes the asset inline.
func (a *Asset) DataURI() string {
	return "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

func (a *Asset) IsSVG() bool {
	return strings.HasPrefix(a.MIME, "image/svg")
}

// AssetResolver turns an element src into bytes.
type AssetResolver interface {
	Resolve(ctx context.Context, src string) (*Asset, error)
}

var ErrAssetUnavailable = errors.New("asset unavailable")

const (
	defaultFetchTimeout     = 10 * time.Second
	defaultMaxAssetBytes    = 20 << 20
	defaultRequestsPerSec   = 20
	defaultBurst            = 10
	defaultBreakerFailures  = 5
	defaultBreakerTimeout   = 30 * time.Second
	defaultBreakerInterval  = 60 * time.Second
	defaultResolverCacheCap = 256
)

type ResolverConfig struct {
	// BaseURL resolves relative src values such as "/uploads/logo.png".
	BaseURL           string
	Timeout           time.Duration
	MaxBytes          int64
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures is the number of consecutive fetch failures before
	// remote fetches fail fast for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Client          *http.Client
}

// Resolver decodes data URIs inline and fetches remote assets behind a rate
// limiter and a circuit breaker. Fetched assets are cached.
type Resolver struct {
	base     *url.URL
	client   *http.Client
	maxBytes int64
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*Asset]
	cache    Cache
}

func NewResolver(cfg ResolverConfig, cache Cache) (*Resolver, error) {
	r := &Resolver{
		client:   cfg.Client,
		maxBytes: cfg.MaxBytes,
		cache:    cache,
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse asset base url: %w", err)
		}
		r.base = u
	}
	if r.client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultFetchTimeout
		}
		r.client = &http.Client{Timeout: timeout}
	}
	if r.maxBytes <= 0 {
		r.maxBytes = defaultMaxAssetBytes
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(defaultResolverCacheCap)
	}

	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = defaultRequestsPerSec
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	r.limiter = rate.NewLimiter(rate.Limit(rps), burst)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = defaultBreakerTimeout
	}
	r.breaker = gobreaker.NewCircuitBreaker[*Asset](gobreaker.Settings{
		Name:        "asset-fetch",
		MaxRequests: 1,
		Interval:    defaultBreakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Asset fetch circuit breaker state change")
		},
	})
	return r, nil
}

// Resolve returns the bytes an element src points at.
func (r *Resolver) Resolve(ctx context.Context, src string) (*Asset, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty src", ErrAssetUnavailable)
	}
	if strings.HasPrefix(src, "data:") {
		return decodeDataURI(src)
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	if !u.IsAbs() && r.base != nil {
		u = r.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url %q", ErrAssetUnavailable, src)
	}
	key := u.String()

	if cached, ok, err := r.cache.Get(ctx, key); err != nil {
		logrus.WithError(err).WithField("url", key).Warn("Asset cache read failed")
	} else if ok {
		if a, err := decodeDataURI(string(cached)); err == nil {
			return a, nil
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	a, err := r.breaker.Execute(func() (*Asset, error) {
		return r.fetch(ctx, key)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}

	if err := r.cache.Set(ctx, key, []byte(a.DataURI())); err != nil {
		logrus.WithError(err).WithField("url", key).Warn("Asset cache write failed")
	}
	return a, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (a *Asset, err error) {
	ctx, span := tracing.StartSpan(ctx, "export.fetch_asset", tracing.String("url", rawURL))
	defer func() { tracing.End(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("fetch %s: asset larger than %d bytes", rawURL, r.maxBytes)
	}

	logrus.WithFields(logrus.Fields{
		"url":  rawURL,
		"size": len(data),
	}).Debug("Asset fetched")
	return &Asset{Data: data, MIME: sniffMIME(resp.Header.Get("Content-Type"), data)}, nil
}

func sniffMIME(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != "application/octet-stream" && mt != "text/plain" {
		return mt
	}
	head := bytes.TrimSpace(data[:min(len(data), 512)])
	if bytes.HasPrefix(head, []byte("<svg")) || (bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg"))) {
		return "image/svg+xml"
	}
	return http.DetectContentType(data)
}

// decodeDataURI parses data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) (*Asset, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data uri", ErrAssetUnavailable)
	}
	meta, payload := rest[:comma], rest[comma+1:]

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}

	var data []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, fmt.Errorf("%w: bad base64 payload", ErrAssetUnavailable)
			}
		}
		data = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: bad data uri payload", ErrAssetUnavailable)
		}
		data = []byte(s)
	}

	mt := "text/plain"
	if meta != "" {
		if parsed, _, err := mime.ParseMediaType(meta); err == nil {
			mt = parsed
		}
	}
	return &Asset{Data: data, MIME: sniffMIME(mt, data)}, nil
}
