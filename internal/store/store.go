package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sixcare-checkout/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY created_at DESC")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// DecrementStock deducts quantity from a product's stock. Returns false when
// the remaining stock could not cover the quantity, leaving the row untouched.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetCartItem retrieves a user's cart row for a product, nil if absent
func (s *Store) GetCartItem(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem creates a new cart row
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return s.db.GetContext(ctx, &item.CreatedAt, query,
		item.ID, item.UserID, item.ProductID, item.Quantity)
}

// UpdateCartItemQuantity sets the quantity of an existing cart row
func (s *Store) UpdateCartItemQuantity(ctx context.Context, id string, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, id)
	return err
}

// ListCartItems retrieves a user's cart joined with product details
func (s *Store) ListCartItems(ctx context.Context, userID string) ([]models.CartItemDetail, error) {
	var items []models.CartItemDetail
	err := s.db.SelectContext(ctx, &items, `
		SELECT ci.id, ci.quantity, p.id AS product_id, p.name AS product_name, p.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at DESC`, userID)
	return items, err
}

// GetCartItemsByIDs retrieves the selected cart rows, scoped to the owner so
// one user cannot check out another user's cart.
func (s *Store) GetCartItemsByIDs(ctx context.Context, userID string, ids []string) ([]models.CartItemDetail, error) {
	if len(ids) == 0 {
		return []models.CartItemDetail{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT ci.id, ci.quantity, p.id AS product_id, p.name AS product_name, p.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id IN (?) AND ci.user_id = ?`, ids, userID)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.CartItemDetail
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// DeleteCartItem removes a cart row owned by the user
func (s *Store) DeleteCartItem(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", id, userID)
	return err
}

// DeleteCartItemsForProducts clears a user's cart rows for purchased products
func (s *Store) DeleteCartItemsForProducts(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM cart_items WHERE user_id = ? AND product_id IN (?)", userID, productIDs)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
