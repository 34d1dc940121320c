package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/core"
)

const (
	designsDir = "designs"
	cartDir    = "cart"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Each user gets a directory
// holding one JSON file per design and per cart item.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// recordPath resolves the file for a record and refuses anything that would
// escape the user's directory.
func (s *fsStore) recordPath(userID, kind, id string) (string, error) {
	if userID == "" || id == "" {
		return "", fmt.Errorf("user id and record id must be set")
	}
	userPath, err := filepath.Abs(filepath.Join(s.basePath, userID))
	if err != nil {
		return "", err
	}
	basePath, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	filePath, err := filepath.Abs(filepath.Join(userPath, kind, id+".json"))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(userPath, basePath+string(filepath.Separator)) ||
		!strings.HasPrefix(filePath, filepath.Join(userPath, kind)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return filePath, nil
}

func (s *fsStore) userDir(userID, kind string) string {
	return filepath.Join(s.basePath, filepath.Base(userID), kind)
}

func writeJSON(filePath string, v any) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

func readJSON(filePath string, v any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// readDir decodes every record file in dir, skipping the ones that fail.
func readDir[T any](dir string, log *logrus.Entry) ([]*T, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*T{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	records := make([]*T, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var rec T
		if err := readJSON(filepath.Join(dir, file.Name()), &rec); err != nil {
			log.WithError(err).Warnf("Failed to read record file %s, skipping", file.Name())
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// DesignStore implementation

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	dir := s.userDir(userID, designsDir)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "path": dir})

	designs, err := readDir[core.Design](dir, log)
	if err != nil {
		return nil, err
	}
	for _, d := range designs {
		d.UserID = userID
		d.Data = nil
	}
	sort.Slice(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	filePath, err := s.recordPath(userID, designsDir, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id, "path": filePath})

	var design core.Design
	if err := readJSON(filePath, &design); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found")
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read design file")
		return nil, err
	}
	design.UserID = userID

	log.Info("Design retrieved successfully")
	return &design, nil
}

func (s *fsStore) Save(ctx context.Context, design *core.Design) error {
	filePath, err := s.recordPath(design.UserID, designsDir, design.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID, "path": filePath})

	var existing core.Design
	switch err := readJSON(filePath, &existing); {
	case err == nil:
		design.CreatedAt = existing.CreatedAt
	case os.IsNotExist(err):
		design.CreatedAt = time.Now()
	default:
		log.WithError(err).Warn("Failed to read existing design, resetting creation time")
		design.CreatedAt = time.Now()
	}
	design.UpdatedAt = time.Now()

	log.Info("Saving design")
	if err := writeJSON(filePath, design); err != nil {
		log.WithError(err).Error("Failed to write design file")
		return err
	}
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	filePath, err := s.recordPath(userID, designsDir, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found for deletion")
			return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to delete design file")
		return err
	}

	log.Info("Design deleted successfully")
	return nil
}

// CartStore implementation

func (s *fsStore) cart(userID string, log *logrus.Entry) ([]*core.CartItem, error) {
	items, err := readDir[core.CartItem](s.userDir(userID, cartDir), log)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	for _, item := range items {
		item.UserID = userID
	}
	return items, nil
}

func (s *fsStore) ListCart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	log := logrus.WithField("user_id", userID)
	items, err := s.cart(userID, log)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Data = nil
	}
	log.Infof("Listed %d cart items", len(items))
	return items, nil
}

func (s *fsStore) FindCartItem(ctx context.Context, userID, id string) (*core.CartItem, error) {
	filePath, err := s.recordPath(userID, cartDir, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id})

	var item core.CartItem
	if err := readJSON(filePath, &item); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Cart item not found")
			return nil, fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read cart item")
		return nil, err
	}
	item.UserID = userID
	log.Info("Cart item retrieved successfully")
	return &item, nil
}

func (s *fsStore) CreateCartItem(ctx context.Context, item *core.CartItem, limit int) (string, error) {
	if limit <= 0 {
		limit = core.DefaultCartLimit
	}
	item.ID = ulid.Make().String()
	item.CreatedAt = time.Now()
	filePath, err := s.recordPath(item.UserID, cartDir, item.ID)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{
		"user_id":      item.UserID,
		"cart_item_id": item.ID,
		"data_length":  len(item.Data),
	})

	existing, err := s.cart(item.UserID, log)
	if err != nil {
		return "", err
	}
	for len(existing) >= limit {
		oldest := existing[0]
		log.WithField("evicted_id", oldest.ID).Info("Cart full, dropping oldest item")
		if err := s.DeleteCartItem(ctx, item.UserID, oldest.ID); err != nil {
			return "", err
		}
		existing = existing[1:]
	}

	if err := writeJSON(filePath, item); err != nil {
		log.WithError(err).Error("Failed to write cart item")
		return "", err
	}
	log.Info("Cart item created successfully")
	return item.ID, nil
}

func (s *fsStore) DeleteCartItem(ctx context.Context, userID, id string) error {
	filePath, err := s.recordPath(userID, cartDir, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
		}
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id}).Info("Cart item deleted successfully")
	return nil
}
