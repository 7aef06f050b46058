// Package models holds the gorm row types. Column names and enum types
// mirror the SQL migrations; AutoMigrate is only used by sqlite tests.
package models

// All lists every table model in foreign key order.
func All() []any {
	return []any{
		&Vendor{},
		&Order{},
		&VendorSubOrder{},
		&OrderLineItem{},
		&Wallet{},
		&WalletTransaction{},
		&Payout{},
		&CartItem{},
		&InventoryItem{},
		&OutboxEvent{},
	}
}
