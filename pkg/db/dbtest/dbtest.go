// Package dbtest opens throwaway sqlite databases carrying the full ledger
// schema for package tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Open returns an isolated in-memory database. A single pooled connection
// keeps the shared-cache database alive and serializes transactions.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	silent := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 silent,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t))
}

// VendorOption customizes a seeded vendor.
type VendorOption func(*models.Vendor)

// WithStatus overrides the seeded vendor status.
func WithStatus(status enums.VendorStatus) VendorOption {
	return func(v *models.Vendor) { v.Status = status }
}

// WithBankDetails attaches bank details to the seeded vendor.
func WithBankDetails(details types.BankDetails) VendorOption {
	return func(v *models.Vendor) { v.BankDetails = &details }
}

// SeedVendor inserts an approved vendor with the given commission percentage.
func SeedVendor(t testing.TB, conn *gorm.DB, commissionPct string, opts ...VendorOption) models.Vendor {
	t.Helper()
	vendor := models.Vendor{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		StoreName:            "store-" + uuid.NewString()[:8],
		Status:               enums.VendorStatusApproved,
		CommissionPercentage: decimal.RequireFromString(commissionPct),
	}
	for _, opt := range opts {
		opt(&vendor)
	}
	if err := conn.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return vendor
}

// SeedInventory inserts stock for a product.
func SeedInventory(t testing.TB, conn *gorm.DB, vendorID uuid.UUID, qty int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	if err := conn.Create(&models.InventoryItem{ProductID: productID, VendorID: vendorID, AvailableQty: qty}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return productID
}
