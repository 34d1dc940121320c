package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"design-studio/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	s, err := Open(dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	return s
}

// Open opens the database and creates the tables if needed.
func Open(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	designTableStmt := `
	CREATE TABLE IF NOT EXISTS designs (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		product_type TEXT,
		thumbnail TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(designTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create designs table: %w", err)
	}

	cartTableStmt := `
	CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		design_id TEXT,
		product_type TEXT,
		material TEXT,
		quantity INTEGER,
		width REAL,
		height REAL,
		unit_price REAL,
		preview TEXT,
		data BLOB,
		created_at DATETIME
	);`
	if _, err = db.Exec(cartTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cart_items table: %w", err)
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cart_items_user_created ON cart_items(user_id, created_at);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cart_items index: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// DesignStore implementation
func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, product_type, thumbnail, created_at, updated_at FROM designs WHERE user_id = ? ORDER BY updated_at DESC", userID)
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

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id})
	design := core.Design{ID: id, UserID: userID}
	err := s.db.QueryRowContext(ctx, "SELECT name, product_type, thumbnail, data, created_at, updated_at FROM designs WHERE user_id = ? AND id = ?", userID, id).
		Scan(&design.Name, &design.ProductType, &design.Thumbnail, &design.Data, &design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Design with specified ID not found")
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve design")
		return nil, err
	}
	log.Info("Design retrieved successfully")
	return &design, nil
}

func (s *sqliteStore) Save(ctx context.Context, design *core.Design) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM designs WHERE user_id = ? AND id = ?", design.UserID, design.ID).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	exists := err == nil

	now := time.Now().UTC()
	if exists {
		_, err = tx.ExecContext(ctx, "UPDATE designs SET name = ?, product_type = ?, thumbnail = ?, data = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			design.Name, design.ProductType, design.Thumbnail, design.Data, now, design.UserID, design.ID)
		design.CreatedAt = createdAt
	} else {
		_, err = tx.ExecContext(ctx, "INSERT INTO designs (id, user_id, name, product_type, thumbnail, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			design.ID, design.UserID, design.Name, design.ProductType, design.Thumbnail, design.Data, now, now)
		design.CreatedAt = now
	}
	if err != nil {
		return err
	}
	design.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID, "created": !exists}).Info("Design saved successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM designs WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// CartStore implementation
func (s *sqliteStore) ListCart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, design_id, product_type, material, quantity, width, height, unit_price, preview, created_at
		FROM cart_items WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
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

func (s *sqliteStore) FindCartItem(ctx context.Context, userID, id string) (*core.CartItem, error) {
	item := core.CartItem{ID: id, UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT design_id, product_type, material, quantity, width, height, unit_price, preview, data, created_at
		FROM cart_items WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&item.DesignID, &item.ProductType, &item.Material, &item.Quantity, &item.Width, &item.Height,
			&item.UnitPrice, &item.Preview, &item.Data, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.WithFields(logrus.Fields{"user_id": userID, "cart_item_id": id}).Warn("Cart item not found")
			return nil, fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (s *sqliteStore) CreateCartItem(ctx context.Context, item *core.CartItem, limit int) (string, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cart_items WHERE user_id = ?", item.UserID).Scan(&count); err != nil {
		log.WithError(err).Error("Failed to count cart items")
		return "", err
	}

	// At the limit, drop the oldest items first.
	if excess := count - limit + 1; excess > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id IN (
			SELECT id FROM cart_items WHERE user_id = ? ORDER BY created_at ASC, id ASC LIMIT ?
		)`, item.UserID, excess)
		if err != nil {
			log.WithError(err).Error("Failed to delete oldest cart items")
			return "", err
		}
		log.WithField("evicted", excess).Info("Cart full, dropped oldest items")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO cart_items (id, user_id, design_id, product_type, material, quantity, width, height, unit_price, preview, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.DesignID, item.ProductType, item.Material, item.Quantity,
		item.Width, item.Height, item.UnitPrice, item.Preview, item.Data, item.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to create cart item")
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Info("Cart item created successfully")
	return item.ID, nil
}

func (s *sqliteStore) DeleteCartItem(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cart item %s: %w", id, core.ErrNotFound)
	}
	return nil
}
