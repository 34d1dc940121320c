package core

import (
	"context"
	"time"
)

// DefaultCartLimit is how many cart snapshots a user keeps before the oldest
// is dropped.
const DefaultCartLimit = 20

type (
	// CartItem is an immutable snapshot of a design taken when it was added
	// to the cart. Data has every image inlined so it stays valid after the
	// design or its uploads change.
	CartItem struct {
		ID          string    `json:"id"`
		UserID      string    `json:"-"`
		DesignID    string    `json:"designId,omitempty"`
		ProductType string    `json:"productType"`
		Material    string    `json:"material,omitempty"`
		Quantity    int       `json:"quantity"`
		Width       float64   `json:"width"`
		Height      float64   `json:"height"`
		UnitPrice   float64   `json:"unitPrice,omitempty"`
		Preview     string    `json:"preview,omitempty"`
		Data        []byte    `json:"data,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	CartStore interface {
		// ListCart returns the user's cart, oldest first, without Data.
		ListCart(ctx context.Context, userID string) ([]*CartItem, error)

		FindCartItem(ctx context.Context, userID, id string) (*CartItem, error)

		// CreateCartItem stores item under a new id. When the user already
		// holds limit items the oldest is removed first.
		CreateCartItem(ctx context.Context, item *CartItem, limit int) (string, error)

		DeleteCartItem(ctx context.Context, userID, id string) error
	}
)
