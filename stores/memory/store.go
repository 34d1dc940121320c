package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/core"
)

// memStore implements DesignStore and CartStore in process memory.
type memStore struct {
	mu sync.RWMutex
	// designs maps userID to designID to design.
	designs map[string]map[string]*core.Design
	// carts holds each user's cart items, oldest first.
	carts map[string][]*core.CartItem
}

func NewStore() *memStore {
	return &memStore{
		designs: make(map[string]map[string]*core.Design),
		carts:   make(map[string][]*core.CartItem),
	}
}

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userDesigns := s.designs[userID]
	designs := make([]*core.Design, 0, len(userDesigns))
	for _, d := range userDesigns {
		listDesign := *d
		listDesign.Data = nil
		designs = append(designs, &listDesign)
	}
	sort.Slice(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	logrus.WithField("user_id", userID).Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id})
	d, ok := s.designs[userID][id]
	if !ok {
		log.Warn("Design not found for user")
		return nil, fmt.Errorf("design with id %s: %w", id, core.ErrNotFound)
	}

	log.Info("Design retrieved successfully")
	out := *d
	out.Data = append([]byte(nil), d.Data...)
	return &out, nil
}

func (s *memStore) Save(ctx context.Context, design *core.Design) error {
	if design.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if design.ID == "" {
		return fmt.Errorf("design id cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userDesigns, ok := s.designs[design.UserID]
	if !ok {
		userDesigns = make(map[string]*core.Design)
		s.designs[design.UserID] = userDesigns
	}

	now := time.Now()
	if existing, exists := userDesigns[design.ID]; exists {
		design.CreatedAt = existing.CreatedAt
	} else {
		design.CreatedAt = now
	}
	design.UpdatedAt = now

	stored := *design
	stored.Data = append([]byte(nil), design.Data...)
	userDesigns[design.ID] = &stored

	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design saved successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id})
	if _, ok := s.designs[userID][id]; !ok {
		log.Warn("Design not found for deletion")
		return fmt.Errorf("design with id %s: %w", id, core.ErrNotFound)
	}
	delete(s.designs[userID], id)
	log.Info("Design deleted successfully")
	return nil
}

func (s *memStore) ListCart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*core.CartItem, 0, len(s.carts[userID]))
	for _, item := range s.carts[userID] {
		listItem := *item
		listItem.Data = nil
		items = append(items, &listItem)
	}
	return items, nil
}

func (s *memStore) FindCartItem(ctx context.Context, userID, id string) (*core.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.carts[userID] {
		if item.ID == id {
			out := *item
			return &out, nil
		}
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id}).Warn("Cart item not found")
	return nil, fmt.Errorf("cart item with id %s: %w", id, core.ErrNotFound)
}

func (s *memStore) CreateCartItem(ctx context.Context, item *core.CartItem, limit int) (string, error) {
	if item.UserID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}
	if limit <= 0 {
		limit = core.DefaultCartLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = ulid.Make().String()
	item.CreatedAt = time.Now()
	stored := *item
	stored.Data = append([]byte(nil), item.Data...)

	cart := s.carts[item.UserID]
	for len(cart) >= limit {
		logrus.WithFields(logrus.Fields{"user_id": item.UserID, "cart_item_id": cart[0].ID}).Info("Cart full, dropping oldest item")
		cart = cart[1:]
	}
	s.carts[item.UserID] = append(cart, &stored)

	logrus.WithFields(logrus.Fields{
		"user_id":      item.UserID,
		"cart_item_id": item.ID,
		"data_length":  len(item.Data),
	}).Info("Cart item created successfully")
	return item.ID, nil
}

func (s *memStore) DeleteCartItem(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	for i, item := range cart {
		if item.ID == id {
			s.carts[userID] = append(cart[:i:i], cart[i+1:]...)
			logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id}).Info("Cart item deleted successfully")
			return nil
		}
	}
	return fmt.Errorf("cart item with id %s: %w", id, core.ErrNotFound)
}
