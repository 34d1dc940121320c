package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by every store when a record does not exist or
// belongs to another user.
var ErrNotFound = errors.New("not found")

type (
	// Design is a saved composition. Data holds the encoded document.
	Design struct {
		ID          string    `json:"id"`
		UserID      string    `json:"-"`
		Name        string    `json:"name"`
		ProductType string    `json:"productType,omitempty"`
		Thumbnail   string    `json:"thumbnail,omitempty"`
		Data        []byte    `json:"data,omitempty"` // not included in list views
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// DesignStore persists designs. All operations are scoped to a user.
	DesignStore interface {
		// List returns metadata for the user's designs, without Data.
		List(ctx context.Context, userID string) ([]*Design, error)

		Get(ctx context.Context, userID, id string) (*Design, error)

		// Save creates or updates a design. ID must be set.
		Save(ctx context.Context, design *Design) error

		Delete(ctx context.Context, userID, id string) error
	}
)
