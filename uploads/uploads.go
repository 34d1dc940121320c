// Package uploads stores user images and returns the URL an image element
// should reference.
package uploads

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/editor"
)

const DefaultMaxBytes = 20 << 20

var (
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported upload type")
)

var allowedTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// sniff reads the upload into memory, enforcing maxBytes, and returns its
// media type. SVG is recognized by content since http.DetectContentType
// reports it as text.
func sniff(r io.Reader, maxBytes int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if strings.HasPrefix(mime, "text/") && isSVG(data) {
		mime = "image/svg+xml"
	}
	if _, ok := allowedTypes[mime]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	return data, mime, nil
}

func isSVG(data []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), len(data)+1)
	sc.Split(bufio.ScanWords)
	for i := 0; i < 64 && sc.Scan(); i++ {
		if strings.HasPrefix(sc.Text(), "<svg") {
			return true
		}
	}
	return false
}

// objectName is a collision-free name that keeps a readable stem of the
// original file name and the extension of the detected type.
func objectName(name, mime string) string {
	stem := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	out := ulid.Make().String()
	if b.Len() > 0 {
		out += "-" + b.String()
	}
	return out + allowedTypes[mime]
}

// Filesystem writes uploads to a directory served at urlPrefix.
type Filesystem struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

var _ editor.Uploader = (*Filesystem)(nil)

func NewFilesystem(dir, urlPrefix string, maxBytes int64) *Filesystem {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("failed to create uploads directory: %v", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Filesystem{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/"), maxBytes: maxBytes}
}

func (f *Filesystem) Dir() string { return f.dir }

func (f *Filesystem) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	data, mime, err := sniff(r, f.maxBytes)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	obj := objectName(name, mime)
	filePath := filepath.Join(f.dir, obj)
	log := logrus.WithFields(logrus.Fields{"file_path": filePath, "mime": mime, "size": len(data)})

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write upload")
		return "", err
	}
	log.Info("Upload stored successfully")
	return f.urlPrefix + "/" + obj, nil
}

// S3 stores uploads in a bucket. URLs are publicBaseURL/key, or the
// virtual-hosted bucket URL when publicBaseURL is empty.
type S3 struct {
	client        PutObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
	maxBytes      int64
}

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ editor.Uploader = (*S3)(nil)

func NewS3(bucket, publicBaseURL string, maxBytes int64) *S3 {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, publicBaseURL, maxBytes)
}

func NewS3WithClient(client PutObjectAPI, bucket, publicBaseURL string, maxBytes int64) *S3 {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://" + bucket + ".s3.amazonaws.com"
	}
	return &S3{
		client:        client,
		bucket:        bucket,
		prefix:        "uploads",
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		maxBytes:      maxBytes,
	}
}

func (s *S3) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	data, mime, err := sniff(r, s.maxBytes)
	if err != nil {
		return "", err
	}
	key := path.Join(s.prefix, objectName(name, mime))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(mime),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to upload to s3")
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	logrus.WithFields(logrus.Fields{"key": key, "mime": mime, "size": len(data)}).Info("Upload stored successfully")
	return s.publicBaseURL + "/" + key, nil
}
