package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	orderdb "ms-payment-gateway/internal/order/db"
	"ms-payment-gateway/internal/payment/storage"
)

// Bootstraps the gateway schema: orders, order_notes and payments tables.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	cfg := config.Load()
	appLog := logger.NewLogger()
	defer appLog.Close()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Creating order tables...")
	orderdb.Migrate(db)

	log.Println("Creating payment tables...")
	if _, err := storage.NewPostgreSQLStoreWithDB(sqldb, appLog); err != nil {
		log.Fatalf("Failed to create payment tables: %v", err)
	}

	log.Println("Done.")
}
