package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const defaultReconcileBatch = 200

type walletReconciler interface {
	ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error)
	Reconcile(ctx context.Context, w models.Wallet) (wallet.Drift, error)
}

type driftGauge interface {
	SetWalletDrift(count int)
}

type WalletReconciliationJobParams struct {
	Logger    *logger.Logger
	Ledger    walletReconciler
	Metrics   driftGauge
	BatchSize int
}

// NewWalletReconciliationJob compares every wallet's stored totals with a
// fold of its transaction log. Drift is reported, never repaired.
func NewWalletReconciliationJob(params WalletReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &walletReconciliationJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type walletReconciliationJob struct {
	logg    *logger.Logger
	ledger  walletReconciler
	metrics driftGauge
	batch   int
}

func (j *walletReconciliationJob) Name() string { return "wallet_reconciliation" }

func (j *walletReconciliationJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		drifted int
		after   uuid.UUID
	)
	for {
		wallets, err := j.ledger.ListWallets(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets after %s: %w", after, err))
		}
		for _, w := range wallets {
			checked++
			drift, err := j.ledger.Reconcile(ctx, w)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile wallet %s: %w", w.ID, err))
				continue
			}
			if drift.Drifted() {
				drifted++
				j.reportDrift(ctx, drift)
			}
		}
		if len(wallets) < j.batch {
			break
		}
		after = wallets[len(wallets)-1].ID
	}

	if j.metrics != nil {
		j.metrics.SetWalletDrift(drifted)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"wallets_checked": checked,
		"wallets_drifted": drifted,
		"failures":        len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "wallet reconciliation complete")
	return errs
}

func (j *walletReconciliationJob) reportDrift(ctx context.Context, drift wallet.Drift) {
	logCtx := j.logg.WithVendorID(ctx, drift.VendorID.String())
	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"wallet_id":             drift.WalletID.String(),
		"stored_balance_cents":  drift.Stored.BalanceCents,
		"folded_balance_cents":  drift.Folded.BalanceCents,
		"stored_earnings_cents": drift.Stored.EarningsCents,
		"folded_earnings_cents": drift.Folded.EarningsCents,
		"stored_debits_cents":   drift.Stored.DebitsCents,
		"folded_debits_cents":   drift.Folded.DebitsCents,
	})
	j.logg.Warn(logCtx, "wallet drift detected")
}
