// Package dbtest opens in-memory sqlite databases carrying the marketplace schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE stores (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  commission_rate TEXT NOT NULL DEFAULT '5.00',
  stripe_account_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  description TEXT,
  price TEXT NOT NULL,
  inventory_quantity INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE product_images (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  url TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  customer_id TEXT,
  store_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  customer_email TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT,
  total_amount TEXT NOT NULL,
  commission_amount TEXT NOT NULL,
  stripe_payment_intent_id TEXT,
  shipping_address TEXT NOT NULL,
  billing_address TEXT NOT NULL,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_orders_order_number ON orders(order_number);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL,
  total TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE checkout_sessions (
  session_id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  stripe_account_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  terminal_at DATETIME
);`,
}

// Open returns a fresh, isolated in-memory database with the schema applied.
// A single connection is used so concurrent writers serialize instead of
// failing with SQLITE_BUSY.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SeedStore inserts an active store with the given commission rate and account.
func SeedStore(t *testing.T, conn *gorm.DB, rate string, accountID string) models.Store {
	t.Helper()

	store := models.Store{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		Name:           "Green Leaf",
		IsActive:       true,
		CommissionRate: decimal.RequireFromString(rate),
	}
	store.Slug = "store-" + store.ID.String()[:8]
	if accountID != "" {
		store.StripeAccountID = &accountID
	}
	require.NoError(t, conn.Create(&store).Error)
	return store
}

// SeedProduct inserts an active product priced at price for the store.
func SeedProduct(t *testing.T, conn *gorm.DB, storeID uuid.UUID, name, price string, imageURLs ...string) models.Product {
	t.Helper()

	product := models.Product{
		ID:                uuid.New(),
		StoreID:           storeID,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		InventoryQuantity: 10,
		IsActive:          true,
	}
	product.Slug = "p-" + product.ID.String()[:8]
	require.NoError(t, conn.Omit("Images").Create(&product).Error)

	for i, url := range imageURLs {
		img := models.ProductImage{ProductID: product.ID, URL: url, Position: i}
		require.NoError(t, conn.Create(&img).Error)
		product.Images = append(product.Images, img)
	}
	return product
}

// SeedPendingOrder inserts a pending order for the store created at createdAt.
func SeedPendingOrder(t *testing.T, conn *gorm.DB, storeID uuid.UUID, total, commission string, createdAt time.Time) models.Order {
	t.Helper()

	order := models.Order{
		ID:               uuid.New(),
		StoreID:          storeID,
		Status:           enums.OrderStatusPending,
		CustomerEmail:    "ada@example.com",
		CustomerName:     "Ada",
		TotalAmount:      decimal.RequireFromString(total),
		CommissionAmount: decimal.RequireFromString(commission),
		CreatedAt:        createdAt,
	}
	order.OrderNumber = "ORD-TEST-" + order.ID.String()[:8]
	require.NoError(t, conn.Omit("Items").Create(&order).Error)
	return order
}
