// Package wallet owns the per-vendor ledger: an append-only transaction log
// plus running totals kept in step by atomic SQL increments.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type entryRecorder interface {
	ObserveEntry(entryType string, amountCents int64)
}

// Entry describes a single ledger movement. DedupKey makes the movement
// idempotent: replaying the same key returns the stored transaction.
type Entry struct {
	VendorID    uuid.UUID
	AmountCents int64
	Description string
	OrderID     *uuid.UUID
	PayoutID    *uuid.UUID
	DedupKey    string
}

// LedgerParams wires the ledger dependencies.
type LedgerParams struct {
	Repo    Repository
	Tx      txRunner
	Metrics entryRecorder
	Logger  *logger.Logger
}

// Ledger is the only writer of wallet balances.
type Ledger struct {
	repo    Repository
	tx      txRunner
	metrics entryRecorder
	logg    *logger.Logger
}

// NewLedger validates params and builds a Ledger.
func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Ledger{
		repo:    params.Repo,
		tx:      params.Tx,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Credit adds vendor earnings to the balance.
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, enums.WalletTxnCredit, entry)
}

// Debit removes funds from the balance. It fails with an insufficient balance
// error when the amount exceeds the current balance.
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, enums.WalletTxnDebit, entry)
}

// Refund returns funds to the balance.
func (l *Ledger) Refund(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, enums.WalletTxnRefund, entry)
}

// RecordCommission logs platform revenue. The balance is not affected.
func (l *Ledger) RecordCommission(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, enums.WalletTxnCommission, entry)
}

// GetOrCreate returns the vendor wallet, creating a zeroed one if needed.
func (l *Ledger) GetOrCreate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Wallet, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if tx == nil {
		var wallet *models.Wallet
		err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			wallet, err = getOrCreate(ctx, l.repo.WithTx(tx), vendorID)
			return err
		})
		return wallet, err
	}
	return getOrCreate(ctx, l.repo.WithTx(tx), vendorID)
}

// View is a wallet with one page of its transaction log.
type View struct {
	Wallet       models.Wallet              `json:"wallet"`
	Transactions []models.WalletTransaction `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

// GetWallet returns the vendor wallet, creating it on first access, with its
// most recent transactions.
func (l *Ledger) GetWallet(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*View, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	wallet, err := l.GetOrCreate(ctx, nil, vendorID)
	if err != nil {
		return nil, err
	}
	txns, err := l.repo.ListTransactions(ctx, wallet.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	page, last := pagination.Trim(txns, params.Limit)
	view := &View{Wallet: *wallet, Transactions: page}
	if last != nil {
		view.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return view, nil
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, typ enums.WalletTransactionType, entry Entry) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if tx == nil {
		var out *models.WalletTransaction
		err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			out, err = l.applyTx(ctx, tx, typ, entry)
			return err
		})
		return out, err
	}
	return l.applyTx(ctx, tx, typ, entry)
}

func (l *Ledger) applyTx(ctx context.Context, tx *gorm.DB, typ enums.WalletTransactionType, entry Entry) (*models.WalletTransaction, error) {
	repo := l.repo.WithTx(tx)

	existing, err := repo.FindTransactionByDedupKey(ctx, entry.DedupKey)
	switch {
	case err == nil:
		if existing.Type != typ || existing.AmountCents != entry.AmountCents || existing.VendorID != entry.VendorID {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "ledger dedup key reused for a different entry").
				WithDetails(map[string]any{"dedup_key": entry.DedupKey})
		}
		return existing, nil
	case !isNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup ledger entry")
	}

	wallet, err := getOrCreate(ctx, repo, entry.VendorID)
	if err != nil {
		return nil, err
	}

	applied, err := repo.ApplyDelta(ctx, wallet.ID, deltaFor(typ, entry.AmountCents))
	if err != nil {
		return nil, pkgerrors.FromPostgres(err, pkgerrors.CodeDependency, "update wallet totals")
	}
	if !applied {
		current, err := repo.FindByVendorID(ctx, entry.VendorID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient wallet balance").
			WithDetails(map[string]any{
				"balance_cents":   current.BalanceCents,
				"requested_cents": entry.AmountCents,
			})
	}

	description := strings.TrimSpace(entry.Description)
	if description == "" {
		description = defaultDescription(typ)
	}
	txn := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		VendorID:    entry.VendorID,
		Type:        typ,
		AmountCents: entry.AmountCents,
		Description: description,
		OrderID:     entry.OrderID,
		PayoutID:    entry.PayoutID,
		DedupKey:    entry.DedupKey,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if dbpkg.IsUniqueViolation(err, "dedup_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "ledger entry already recorded").
				WithDetails(map[string]any{"dedup_key": entry.DedupKey})
		}
		return nil, pkgerrors.FromPostgres(err, pkgerrors.CodeDependency, "append ledger entry")
	}

	if l.metrics != nil {
		l.metrics.ObserveEntry(typ.String(), entry.AmountCents)
	}
	if l.logg != nil {
		logCtx := l.logg.WithVendorID(ctx, entry.VendorID.String())
		logCtx = l.logg.WithFields(logCtx, map[string]any{
			"entry_type":   typ.String(),
			"amount_cents": entry.AmountCents,
			"dedup_key":    entry.DedupKey,
		})
		l.logg.Info(logCtx, "wallet entry appended")
	}
	return txn, nil
}

func getOrCreate(ctx context.Context, repo Repository, vendorID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindByVendorID(ctx, vendorID)
	if err == nil {
		return wallet, nil
	}
	if !isNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if err := repo.CreateIfMissing(ctx, &models.Wallet{ID: uuid.New(), VendorID: vendorID}); err != nil {
		return nil, pkgerrors.FromPostgres(err, pkgerrors.CodeDependency, "create wallet")
	}
	wallet, err = repo.FindByVendorID(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func validateEntry(entry Entry) error {
	if entry.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if entry.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]any{"amount_cents": entry.AmountCents})
	}
	if strings.TrimSpace(entry.DedupKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dedup key is required")
	}
	return nil
}

func deltaFor(typ enums.WalletTransactionType, amount int64) Delta {
	switch typ {
	case enums.WalletTxnCredit:
		return Delta{Balance: amount, Earnings: amount}
	case enums.WalletTxnRefund:
		return Delta{Balance: amount, Refunds: amount}
	case enums.WalletTxnDebit:
		return Delta{Balance: -amount, Debits: amount, MinBalance: amount}
	case enums.WalletTxnCommission:
		return Delta{Commission: amount}
	}
	return Delta{}
}

func defaultDescription(typ enums.WalletTransactionType) string {
	switch typ {
	case enums.WalletTxnCredit:
		return "order earnings"
	case enums.WalletTxnDebit:
		return "payout processed"
	case enums.WalletTxnRefund:
		return "payout refund"
	default:
		return "platform commission"
	}
}

// IsInsufficientBalance reports whether err is a failed debit guard.
func IsInsufficientBalance(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeInsufficient)
}
