package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// Totals are the folded values of a wallet.
type Totals struct {
	BalanceCents    int64 `json:"balance_cents"`
	EarningsCents   int64 `json:"earnings_cents"`
	CommissionCents int64 `json:"commission_cents"`
	RefundsCents    int64 `json:"refunds_cents"`
	DebitsCents     int64 `json:"debits_cents"`
}

// Drift compares the stored wallet columns with a fold of its log.
type Drift struct {
	WalletID uuid.UUID `json:"wallet_id"`
	VendorID uuid.UUID `json:"vendor_id"`
	Stored   Totals    `json:"stored"`
	Folded   Totals    `json:"folded"`
}

// Drifted reports whether stored and folded totals disagree.
func (d Drift) Drifted() bool {
	return d.Stored != d.Folded
}

// Fold computes wallet totals from transactions. Commission entries only move
// the commission total.
func Fold(txns []models.WalletTransaction) Totals {
	sums := make(map[enums.WalletTransactionType]int64, 4)
	for _, txn := range txns {
		sums[txn.Type] += txn.AmountCents
	}
	return totalsFromSums(sums)
}

func totalsFromSums(sums map[enums.WalletTransactionType]int64) Totals {
	var balance int64
	for typ, amount := range sums {
		balance += typ.BalanceDelta(amount)
	}
	return Totals{
		BalanceCents:    balance,
		EarningsCents:   sums[enums.WalletTxnCredit],
		CommissionCents: sums[enums.WalletTxnCommission],
		RefundsCents:    sums[enums.WalletTxnRefund],
		DebitsCents:     sums[enums.WalletTxnDebit],
	}
}

func storedTotals(w models.Wallet) Totals {
	return Totals{
		BalanceCents:    w.BalanceCents,
		EarningsCents:   w.TotalEarningsCents,
		CommissionCents: w.TotalCommissionCents,
		RefundsCents:    w.TotalRefundsCents,
		DebitsCents:     w.TotalDebitsCents,
	}
}

// Reconcile folds the transaction log of a wallet and compares it with the
// stored totals. The passed wallet only names the row: stored totals are
// re-read under a share lock in the same transaction as the fold, so writes
// landing between ListWallets and here do not show up as drift. It never
// writes.
func (l *Ledger) Reconcile(ctx context.Context, wallet models.Wallet) (Drift, error) {
	var drift Drift
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		current, err := repo.LockWallet(ctx, wallet.ID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}
		sums, err := repo.SumByType(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet transactions")
		}
		drift = Drift{
			WalletID: current.ID,
			VendorID: current.VendorID,
			Stored:   storedTotals(*current),
			Folded:   totalsFromSums(sums),
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Drift{}, err
		}
		return Drift{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile wallet")
	}
	return drift, nil
}

// ListWallets pages through wallets by id for batch jobs.
func (l *Ledger) ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error) {
	wallets, err := l.repo.ListWallets(ctx, afterID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallets")
	}
	return wallets, nil
}
