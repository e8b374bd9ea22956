package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"ms-payment-gateway/internal/models"
)

// Migrate creates the orders and order_notes tables if they do not exist.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	if _, err := db.NewCreateTable().Model((*models.Order)(nil)).IfNotExists().Exec(ctx); err != nil {
		log.Fatalf("create orders table failed: %v", err)
	}

	if _, err := db.NewCreateTable().Model((*models.OrderNote)(nil)).IfNotExists().Exec(ctx); err != nil {
		log.Fatalf("create order_notes table failed: %v", err)
	}

	log.Println("orders and order_notes tables ready")
}
