package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Delta is a set of signed increments applied to a wallet row in one UPDATE.
type Delta struct {
	Balance    int64
	Earnings   int64
	Commission int64
	Refunds    int64
	Debits     int64
	// MinBalance guards the update with balance_cents >= MinBalance.
	MinBalance int64
}

// Repository manages persistence for wallets and their transaction logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByVendorID(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error)
	LockWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	CreateIfMissing(ctx context.Context, wallet *models.Wallet) error
	ApplyDelta(ctx context.Context, walletID uuid.UUID, delta Delta) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransactionByDedupKey(ctx context.Context, key string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error)
	SumByType(ctx context.Context, walletID uuid.UUID) (map[enums.WalletTransactionType]int64, error)
	ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByVendorID(ctx context.Context, vendorID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWallet reads the wallet row under FOR SHARE so concurrent ledger writes
// wait until the caller's transaction ends.
func (r *repository) LockWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Where("id = ?", walletID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateIfMissing(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "vendor_id"}}, DoNothing: true}).
		Create(wallet).Error
}

// ApplyDelta increments the wallet columns in place. It reports false when the
// balance guard rejected the update.
func (r *repository) ApplyDelta(ctx context.Context, walletID uuid.UUID, delta Delta) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", walletID)
	if delta.MinBalance > 0 {
		query = query.Where("balance_cents >= ?", delta.MinBalance)
	}
	res := query.Updates(map[string]any{
		"balance_cents":          gorm.Expr("balance_cents + ?", delta.Balance),
		"total_earnings_cents":   gorm.Expr("total_earnings_cents + ?", delta.Earnings),
		"total_commission_cents": gorm.Expr("total_commission_cents + ?", delta.Commission),
		"total_refunds_cents":    gorm.Expr("total_refunds_cents + ?", delta.Refunds),
		"total_debits_cents":     gorm.Expr("total_debits_cents + ?", delta.Debits),
		"updated_at":             time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransactionByDedupKey(ctx context.Context, key string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns entries newest first using keyset pagination.
func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Where("wallet_id = ?", walletID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var txns []models.WalletTransaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) SumByType(ctx context.Context, walletID uuid.UUID) (map[enums.WalletTransactionType]int64, error) {
	var rows []struct {
		Type  enums.WalletTransactionType
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("type, COALESCE(SUM(amount_cents), 0) AS total").
		Where("wallet_id = ?", walletID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.WalletTransactionType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}

func (r *repository) ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error) {
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var wallets []models.Wallet
	if err := query.Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
