package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/core"
)

const (
	designsPrefix = "designs"
	cartPrefix    = "cart"
)

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type s3Store struct {
	s3Client API
	bucket   string
}

// NewStore creates a new S3-based store. A non-empty endpoint points the
// client at an S3-compatible server using path-style addressing.
func NewStore(bucketName, endpoint string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewStoreWithClient(s3Client, bucketName)
}

func NewStoreWithClient(client API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

// objectKey builds userID/kind/id.json. Both ids must be plain names.
func objectKey(userID, kind, id string) (string, error) {
	for _, part := range []string{userID, id} {
		if part == "" || part == "." || part == ".." || path.Base(part) != part || strings.Contains(part, "\\") {
			return "", fmt.Errorf("invalid id %q: must be a simple name", part)
		}
	}
	return path.Join(userID, kind, id+".json"), nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *s3Store) getJSON(ctx context.Context, key string, v any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

func (s *s3Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *s3Store) remove(ctx context.Context, key string) error {
	// DeleteObject succeeds for missing keys, so look first.
	if _, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return core.ErrNotFound
		}
		return err
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// keys lists every object key under prefix in ascending order.
func (s *s3Store) keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DesignStore implementation
func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Design, error) {
	log := logrus.WithField("user_id", userID)
	keys, err := s.keys(ctx, path.Join(userID, designsPrefix)+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list designs for user %s: %w", userID, err)
	}

	designs := make([]*core.Design, 0, len(keys))
	for _, key := range keys {
		var design core.Design
		if err := s.getJSON(ctx, key, &design); err != nil {
			log.WithError(err).Warnf("Failed to read design %s, skipping", key)
			continue
		}
		design.UserID = userID
		design.Data = nil
		designs = append(designs, &design)
	}
	sort.SliceStable(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	key, err := objectKey(userID, designsPrefix, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id})

	var design core.Design
	if err := s.getJSON(ctx, key, &design); err != nil {
		if isNotFound(err) {
			log.Warn("Design not found")
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve design")
		return nil, fmt.Errorf("failed to get design %s: %w", id, err)
	}
	design.UserID = userID
	log.Info("Design retrieved successfully")
	return &design, nil
}

func (s *s3Store) Save(ctx context.Context, design *core.Design) error {
	key, err := objectKey(design.UserID, designsPrefix, design.ID)
	if err != nil {
		return err
	}

	// Preserve CreatedAt on update
	var existing core.Design
	if err := s.getJSON(ctx, key, &existing); err == nil {
		design.CreatedAt = existing.CreatedAt
	} else {
		design.CreatedAt = time.Now()
	}
	design.UpdatedAt = time.Now()

	if err := s.putJSON(ctx, key, design); err != nil {
		return fmt.Errorf("failed to save design %s: %w", design.ID, err)
	}
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	key, err := objectKey(userID, designsPrefix, id)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, key); err != nil {
		return fmt.Errorf("failed to delete design %s: %w", id, err)
	}
	return nil
}

// CartStore implementation. Cart keys embed a ULID, so key order is
// creation order.
func (s *s3Store) cartKeys(ctx context.Context, userID string) ([]string, error) {
	if _, err := objectKey(userID, cartPrefix, "x"); err != nil {
		return nil, err
	}
	return s.keys(ctx, path.Join(userID, cartPrefix)+"/")
}

func (s *s3Store) ListCart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	keys, err := s.cartKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]*core.CartItem, 0, len(keys))
	for _, key := range keys {
		var item core.CartItem
		if err := s.getJSON(ctx, key, &item); err != nil {
			logrus.WithError(err).Warnf("Failed to read cart item %s, skipping", key)
			continue
		}
		item.UserID = userID
		item.Data = nil
		items = append(items, &item)
	}
	return items, nil
}

func (s *s3Store) FindCartItem(ctx context.Context, userID, id string) (*core.CartItem, error) {
	key, err := objectKey(userID, cartPrefix, id)
	if err != nil {
		return nil, err
	}
	var item core.CartItem
	if err := s.getJSON(ctx, key, &item); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	item.UserID = userID
	return &item, nil
}

func (s *s3Store) CreateCartItem(ctx context.Context, item *core.CartItem, limit int) (string, error) {
	if limit <= 0 {
		limit = core.DefaultCartLimit
	}
	item.ID = ulid.Make().String()
	item.CreatedAt = time.Now()
	key, err := objectKey(item.UserID, cartPrefix, item.ID)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{
		"user_id":      item.UserID,
		"cart_item_id": item.ID,
		"data_length":  len(item.Data),
	})

	keys, err := s.cartKeys(ctx, item.UserID)
	if err != nil {
		return "", err
	}
	for len(keys) >= limit {
		if err := s.remove(ctx, keys[0]); err != nil && !errors.Is(err, core.ErrNotFound) {
			log.WithError(err).Error("Failed to delete oldest cart item")
			return "", err
		}
		log.WithField("evicted_key", keys[0]).Info("Cart full, dropped oldest item")
		keys = keys[1:]
	}

	if err := s.putJSON(ctx, key, item); err != nil {
		log.WithError(err).Error("Failed to create cart item")
		return "", err
	}
	log.Info("Cart item created successfully")
	return item.ID, nil
}

func (s *s3Store) DeleteCartItem(ctx context.Context, userID, id string) error {
	key, err := objectKey(userID, cartPrefix, id)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, key); err != nil {
		return fmt.Errorf("failed to delete cart item %s: %w", id, err)
	}
	return nil
}
