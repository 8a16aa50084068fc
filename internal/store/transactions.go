package store

import (
	"context"
	"database/sql"
	"fmt"

	"sixcare-checkout/internal/models"
)

// CreateTransaction inserts a transaction and all of its items in a single
// database transaction. A failed item insert rolls back the order row, so no
// orphaned zero-item order can be observed.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction, items []models.TransactionItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (order_id, user_id, display_name, full_name, email, address, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, t, query,
		t.OrderID, t.UserID, t.DisplayName, t.FullName, t.Email, t.Address, t.Total, t.Status); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i := range items {
		items[i].TransactionID = t.ID
		if err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO transaction_items (transaction_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			items[i].TransactionID, items[i].ProductID, items[i].Quantity, items[i].Price); err != nil {
			return fmt.Errorf("failed to insert transaction item: %w", err)
		}
	}

	return tx.Commit()
}

// GetTransactionByOrderID retrieves a transaction by its external order id,
// nil if absent
func (s *Store) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.GetContext(ctx, &t, "SELECT * FROM transactions WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionItems retrieves the items of a transaction joined with
// product names
func (s *Store) GetTransactionItems(ctx context.Context, transactionID int64) ([]models.TransactionItemDetail, error) {
	var items []models.TransactionItemDetail
	err := s.db.SelectContext(ctx, &items, `
		SELECT ti.product_id, p.name AS product_name, ti.quantity, ti.price
		FROM transaction_items ti
		JOIN products p ON p.id = ti.product_id
		WHERE ti.transaction_id = $1`, transactionID)
	return items, err
}

// MarkPacking conditionally transitions a transaction to packing. The guard
// on the current status makes the transition idempotent and keeps it from
// regressing an order that already moved past packing. Returns whether the
// row actually moved.
func (s *Store) MarkPacking(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = $1 WHERE order_id = $2 AND status IN ($3, $4)",
		models.StatusPacking, orderID, models.StatusAwaitingPayment, models.StatusFailed)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateTransactionStatus sets the status of a transaction. Callers are
// expected to have validated the status against the persisted vocabulary.
// Returns false when no transaction with the order id exists.
func (s *Store) UpdateTransactionStatus(ctx context.Context, orderID, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = $1 WHERE order_id = $2", status, orderID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTransactionsByUser retrieves a user's transactions, newest first
func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := s.db.SelectContext(ctx, &transactions,
		"SELECT * FROM transactions WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return transactions, err
}
