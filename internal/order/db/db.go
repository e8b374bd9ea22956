package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-payment-gateway/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// GetOrderByID fetches one order by its ID.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CreateOrder inserts a new order.
func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// UpdateOrder updates the fields the gateway is allowed to touch.
func (d *DB) UpdateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewUpdate().
		Model(&order).
		Column("status", "transaction_id", "paid_at").
		Where("order_id = ?", order.OrderID).
		Exec(ctx)
	return err
}

// ---------------- NOTES ----------------

// InsertNote appends an immutable entry to the order's history. Notes are
// never updated or deleted.
func (d *DB) InsertNote(ctx context.Context, note models.OrderNote) error {
	_, err := d.Bun.NewInsert().Model(&note).Exec(ctx)
	return err
}

// GetNotesByOrder fetches all history entries for an order, oldest first.
func (d *DB) GetNotesByOrder(ctx context.Context, orderID string) ([]models.OrderNote, error) {
	var notes []models.OrderNote
	err := d.Bun.NewSelect().
		Model(&notes).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return notes, nil
}
