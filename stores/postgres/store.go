package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS designs (
	id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	thumbnail TEXT NOT NULL DEFAULT '',
	data BYTEA,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS cart_items (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	design_id TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	material TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL DEFAULT 1,
	width DOUBLE PRECISION NOT NULL DEFAULT 0,
	height DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	preview TEXT NOT NULL DEFAULT '',
	data BYTEA,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_items_user_created ON cart_items (user_id, created_at);`

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL and exits the process on failure.
func NewStore(databaseURL string) *pgStore {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, databaseURL)
	if err != nil {
		log.Fatalf("failed to open postgres database: %v", err)
	}
	return s
}

// Open connects a pool, pings it and creates the tables if needed.
func Open(ctx context.Context, databaseURL string) (*pgStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 3 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logrus.WithField("host", config.ConnConfig.Host).Info("Postgres store initialized")
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// DesignStore implementation
func (s *pgStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, product_type, thumbnail, created_at, updated_at
		FROM designs WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list designs")
		return nil, err
	}
	defer rows.Close()

	designs := []*core.Design{}
	for rows.Next() {
		design := core.Design{UserID: userID}
		if err := rows.Scan(&design.ID, &design.Name, &design.ProductType, &design.Thumbnail, &design.CreatedAt, &design.UpdatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, &design)
	}
	return designs, rows.Err()
}

func (s *pgStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id})
	design := core.Design{ID: id, UserID: userID}
	err := s.pool.QueryRow(ctx, `SELECT name, product_type, thumbnail, data, created_at, updated_at
		FROM designs WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&design.Name, &design.ProductType, &design.Thumbnail, &design.Data, &design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("Design with specified ID not found")
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve design")
		return nil, err
	}
	log.Info("Design retrieved successfully")
	return &design, nil
}

func (s *pgStore) Save(ctx context.Context, design *core.Design) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO designs (id, user_id, name, product_type, thumbnail, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			product_type = EXCLUDED.product_type,
			thumbnail = EXCLUDED.thumbnail,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		design.ID, design.UserID, design.Name, design.ProductType, design.Thumbnail, design.Data, now).
		Scan(&design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		logrus.WithError(err).WithField("design_id", design.ID).Error("Failed to save design")
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design saved successfully")
	return nil
}

func (s *pgStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM designs WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// CartStore implementation
func (s *pgStore) ListCart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, design_id, product_type, material, quantity, width, height, unit_price, preview, created_at
		FROM cart_items WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*core.CartItem{}
	for rows.Next() {
		item := core.CartItem{UserID: userID}
		if err := rows.Scan(&item.ID, &item.DesignID, &item.ProductType, &item.Material, &item.Quantity,
			&item.Width, &item.Height, &item.UnitPrice, &item.Preview, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *pgStore) FindCartItem(ctx context.Context, userID, id string) (*core.CartItem, error) {
	item := core.CartItem{ID: id, UserID: userID}
	err := s.pool.QueryRow(ctx, `SELECT design_id, product_type, material, quantity, width, height, unit_price, preview, data, created_at
		FROM cart_items WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&item.DesignID, &item.ProductType, &item.Material, &item.Quantity, &item.Width, &item.Height,
			&item.UnitPrice, &item.Preview, &item.Data, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id}).Warn("Cart item not found")
			return nil, fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (s *pgStore) CreateCartItem(ctx context.Context, item *core.CartItem, limit int) (string, error) {
	if limit <= 0 {
		limit = core.DefaultCartLimit
	}
	item.ID = ulid.Make().String()
	item.CreatedAt = time.Now().UTC()
	log := logrus.WithFields(logrus.Fields{
		"user_id":      item.UserID,
		"cart_item_id": item.ID,
		"data_length":  len(item.Data),
	})

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent adds for the same user so the cap holds.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", item.UserID); err != nil {
		return "", err
	}

	var count int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM cart_items WHERE user_id = $1", item.UserID).Scan(&count); err != nil {
		log.WithError(err).Error("Failed to count cart items")
		return "", err
	}
	if excess := count - limit + 1; excess > 0 {
		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE id IN (
			SELECT id FROM cart_items WHERE user_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2
		)`, item.UserID, excess)
		if err != nil {
			log.WithError(err).Error("Failed to delete oldest cart items")
			return "", err
		}
		log.WithField("evicted", excess).Info("Cart full, dropped oldest items")
	}

	_, err = tx.Exec(ctx, `INSERT INTO cart_items (id, user_id, design_id, product_type, material, quantity, width, height, unit_price, preview, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.UserID, item.DesignID, item.ProductType, item.Material, item.Quantity,
		item.Width, item.Height, item.UnitPrice, item.Preview, item.Data, item.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to create cart item")
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	log.Info("Cart item created successfully")
	return item.ID, nil
}

func (s *pgStore) DeleteCartItem(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cart_items WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
	}
	return nil
}
