package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/dbtest"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

type recorder struct {
	mu      sync.Mutex
	entries map[string]int
}

func (r *recorder) ObserveEntry(entryType string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = map[string]int{}
	}
	r.entries[entryType]++
}

func newLedger(t *testing.T) (*Ledger, *db.Client, *recorder) {
	t.Helper()
	client := dbtest.Client(t)
	rec := &recorder{}
	ledger, err := NewLedger(LedgerParams{
		Repo:    NewRepository(client.DB()),
		Tx:      client,
		Metrics: rec,
	})
	require.NoError(t, err)
	return ledger, client, rec
}

func entry(vendorID uuid.UUID, amount int64, key string) Entry {
	return Entry{VendorID: vendorID, AmountCents: amount, DedupKey: key}
}

func TestNewLedgerRequiresDependencies(t *testing.T) {
	_, err := NewLedger(LedgerParams{})
	require.Error(t, err)

	_, err = NewLedger(LedgerParams{Repo: NewRepository(nil)})
	require.Error(t, err)
}

func TestLedgerCreditCommissionDebitRefund(t *testing.T) {
	ledger, _, rec := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()
	orderID := uuid.New()

	_, err := ledger.Credit(ctx, nil, Entry{VendorID: vendorID, AmountCents: 5400, OrderID: &orderID, DedupKey: "order:1:credit"})
	require.NoError(t, err)
	_, err = ledger.RecordCommission(ctx, nil, Entry{VendorID: vendorID, AmountCents: 600, OrderID: &orderID, DedupKey: "order:1:commission"})
	require.NoError(t, err)

	wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), wallet.BalanceCents)
	assert.Equal(t, int64(5400), wallet.TotalEarningsCents)
	assert.Equal(t, int64(600), wallet.TotalCommissionCents)

	payoutID := uuid.New()
	_, err = ledger.Debit(ctx, nil, Entry{VendorID: vendorID, AmountCents: 400, PayoutID: &payoutID, DedupKey: "payout:1:debit"})
	require.NoError(t, err)
	_, err = ledger.Refund(ctx, nil, Entry{VendorID: vendorID, AmountCents: 100, PayoutID: &payoutID, DedupKey: "payout:1:refund"})
	require.NoError(t, err)

	wallet, err = ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(5100), wallet.BalanceCents)
	assert.Equal(t, int64(400), wallet.TotalDebitsCents)
	assert.Equal(t, int64(100), wallet.TotalRefundsCents)

	view, err := ledger.GetWallet(ctx, vendorID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, view.Transactions, 4)
	assert.Equal(t, Fold(view.Transactions), storedTotals(view.Wallet))
	assert.Equal(t, 1, rec.entries["credit"])
	assert.Equal(t, 1, rec.entries["commission"])
}

func TestLedgerDebitRequiresBalance(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()

	_, err := ledger.Credit(ctx, nil, entry(vendorID, 100, "c1"))
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, nil, entry(vendorID, 101, "d1"))
	require.Error(t, err)
	require.True(t, IsInsufficientBalance(err))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, int64(100), typed.Details().(map[string]any)["balance_cents"])

	wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.BalanceCents)

	view, err := ledger.GetWallet(ctx, vendorID, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, view.Transactions, 1, "failed debit must not leave a log entry")

	_, err = ledger.Debit(ctx, nil, entry(vendorID, 100, "d2"))
	require.NoError(t, err)
	wallet, err = ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.BalanceCents)
}

func TestLedgerRejectsInvalidEntries(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()

	cases := []Entry{
		{VendorID: uuid.Nil, AmountCents: 10, DedupKey: "k"},
		{VendorID: uuid.New(), AmountCents: 0, DedupKey: "k"},
		{VendorID: uuid.New(), AmountCents: -5, DedupKey: "k"},
		{VendorID: uuid.New(), AmountCents: 10, DedupKey: "  "},
	}
	for i, c := range cases {
		_, err := ledger.Credit(ctx, nil, c)
		require.Error(t, err, "case %d", i)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %d: %v", i, err)
	}
}

func TestLedgerReplayIsNoop(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()

	first, err := ledger.Credit(ctx, nil, entry(vendorID, 250, "order:x:credit"))
	require.NoError(t, err)
	second, err := ledger.Credit(ctx, nil, entry(vendorID, 250, "order:x:credit"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), wallet.BalanceCents)

	_, err = ledger.Debit(ctx, nil, entry(vendorID, 250, "order:x:credit"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestLedgerRollsBackWithCallerTransaction(t *testing.T) {
	ledger, client, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := ledger.Credit(ctx, tx, entry(vendorID, 500, "rollback:credit")); err != nil {
			return err
		}
		return fmt.Errorf("downstream failure")
	})
	require.Error(t, err)

	wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.BalanceCents)

	var count int64
	require.NoError(t, client.DB().Model(&models.WalletTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLedgerGetOrCreateIsStable(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()

	first, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	second, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, second.BalanceCents)
}

func TestGetWalletPaginatesTransactions(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()
	for i := 0; i < 5; i++ {
		_, err := ledger.Credit(ctx, nil, entry(vendorID, int64(i+1), fmt.Sprintf("credit-%d", i)))
		require.NoError(t, err)
	}

	page, err := ledger.GetWallet(ctx, vendorID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 3)
	require.NotEmpty(t, page.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, txn := range page.Transactions {
		seen[txn.ID] = true
	}
	rest, err := ledger.GetWallet(ctx, vendorID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Transactions, 2)
	assert.Empty(t, rest.NextCursor)
	for _, txn := range rest.Transactions {
		assert.False(t, seen[txn.ID], "transaction repeated across pages")
	}

	_, err = ledger.GetWallet(ctx, vendorID, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLedgerConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	ledger, _, _ := newLedger(t)
	opts := goleak.IgnoreCurrent()
	ctx := context.Background()
	vendorID := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := ledger.Credit(ctx, nil, entry(vendorID, 100, fmt.Sprintf("concurrent-%d", i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), wallet.BalanceCents)

	goleak.VerifyNone(t, opts)
}

func TestLedgerBalanceMatchesFold(t *testing.T) {
	ledger, _, _ := newLedger(t)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		vendorID := uuid.New()
		ops := rapid.SliceOfN(rapid.SampledFrom([]enums.WalletTransactionType{
			enums.WalletTxnCredit,
			enums.WalletTxnDebit,
			enums.WalletTxnRefund,
			enums.WalletTxnCommission,
		}), 1, 12).Draw(t, "ops")

		var expected int64
		for i, op := range ops {
			amount := rapid.Int64Range(1, 10_000).Draw(t, fmt.Sprintf("amount-%d", i))
			e := entry(vendorID, amount, fmt.Sprintf("%s:%d", vendorID, i))
			var err error
			switch op {
			case enums.WalletTxnCredit:
				_, err = ledger.Credit(ctx, nil, e)
			case enums.WalletTxnDebit:
				_, err = ledger.Debit(ctx, nil, e)
			case enums.WalletTxnRefund:
				_, err = ledger.Refund(ctx, nil, e)
			case enums.WalletTxnCommission:
				_, err = ledger.RecordCommission(ctx, nil, e)
			}
			if op == enums.WalletTxnDebit && amount > expected {
				if !IsInsufficientBalance(err) {
					t.Fatalf("expected insufficient balance, got %v", err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("op %s failed: %v", op, err)
			}
			expected += op.BalanceDelta(amount)
		}

		wallet, err := ledger.GetOrCreate(ctx, nil, vendorID)
		if err != nil {
			t.Fatalf("load wallet: %v", err)
		}
		if wallet.BalanceCents != expected {
			t.Fatalf("balance %d, expected %d", wallet.BalanceCents, expected)
		}
		drift, err := ledger.Reconcile(ctx, *wallet)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if drift.Drifted() {
			t.Fatalf("stored %+v != folded %+v", drift.Stored, drift.Folded)
		}
		if wallet.BalanceCents < 0 {
			t.Fatalf("negative balance %d", wallet.BalanceCents)
		}
	})
}

func TestReconcileReadsCurrentTotals(t *testing.T) {
	ledger, client, _ := newLedger(t)
	ctx := context.Background()
	vendorID := uuid.New()

	_, err := ledger.Credit(ctx, nil, entry(vendorID, 1000, "reconcile:1"))
	require.NoError(t, err)
	stale, err := ledger.GetOrCreate(ctx, nil, vendorID)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, nil, entry(vendorID, 500, "reconcile:2"))
	require.NoError(t, err)

	drift, err := ledger.Reconcile(ctx, *stale)
	require.NoError(t, err)
	require.False(t, drift.Drifted())
	require.Equal(t, int64(1500), drift.Stored.BalanceCents)
	require.Equal(t, int64(1500), drift.Folded.BalanceCents)

	require.NoError(t, client.DB().Model(&models.Wallet{}).
		Where("id = ?", stale.ID).
		Update("balance_cents", 9999).Error)
	drift, err = ledger.Reconcile(ctx, *stale)
	require.NoError(t, err)
	require.True(t, drift.Drifted())
	require.Equal(t, int64(9999), drift.Stored.BalanceCents)
	require.Equal(t, int64(1500), drift.Folded.BalanceCents)

	_, err = ledger.Reconcile(ctx, models.Wallet{ID: uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFoldIgnoresCommissionForBalance(t *testing.T) {
	totals := Fold([]models.WalletTransaction{
		{Type: enums.WalletTxnCredit, AmountCents: 1000},
		{Type: enums.WalletTxnCommission, AmountCents: 250},
		{Type: enums.WalletTxnDebit, AmountCents: 300},
		{Type: enums.WalletTxnRefund, AmountCents: 50},
	})
	assert.Equal(t, Totals{
		BalanceCents:    750,
		EarningsCents:   1000,
		CommissionCents: 250,
		RefundsCents:    50,
		DebitsCents:     300,
	}, totals)
}
