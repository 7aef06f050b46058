package payouts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/dbtest"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

var fixedNow = time.Date(2026, time.March, 18, 15, 0, 0, 0, time.UTC)

type transitions struct {
	seen []string
}

func (r *transitions) ObservePayoutTransition(from, to string) {
	r.seen = append(r.seen, from+"->"+to)
}

type stubLimiter struct {
	allowed bool
	err     error
	scopes  []string
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, _ int64, _ time.Duration) (bool, int64, error) {
	s.scopes = append(s.scopes, scope)
	return s.allowed, 1, s.err
}

type fixture struct {
	svc     Service
	client  *db.Client
	ledger  *wallet.Ledger
	metrics *transitions
	vendor  models.Vendor
	admin   types.Actor
}

func newFixture(t *testing.T, policy Policy, limiter requestLimiter) fixture {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repo: wallet.NewRepository(conn),
		Tx:   client,
	})
	require.NoError(t, err)
	metrics := &transitions{}
	params := ServiceParams{
		Repo:    NewRepository(conn),
		Vendors: vendors.NewRepository(conn),
		Ledger:  ledger,
		Tx:      client,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics: metrics,
		Policy:  policy,
		Now:     func() time.Time { return fixedNow },
	}
	if limiter != nil {
		params.Limiter = limiter
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	vendor := dbtest.SeedVendor(t, conn, "10", dbtest.WithBankDetails(types.BankDetails{
		AccountHolderName: "Ada Vendor",
		AccountNumber:     "001234567890",
		BankName:          "First Bank",
		AccountType:       enums.BankAccountSavings,
	}))
	return fixture{
		svc:     svc,
		client:  client,
		ledger:  ledger,
		metrics: metrics,
		vendor:  vendor,
		admin:   types.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
}

func (f fixture) actor() types.Actor {
	return types.Actor{UserID: f.vendor.UserID, Role: enums.ActorRoleVendor, VendorID: &f.vendor.ID}
}

func (f fixture) credit(t *testing.T, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), nil, wallet.Entry{
		VendorID:    f.vendor.ID,
		AmountCents: amount,
		DedupKey:    "seed:" + uuid.NewString(),
	})
	require.NoError(t, err)
}

func (f fixture) balance(t *testing.T) models.Wallet {
	t.Helper()
	w, err := f.ledger.GetOrCreate(context.Background(), nil, f.vendor.ID)
	require.NoError(t, err)
	return *w
}

func (f fixture) approved(t *testing.T, amount int64) *PayoutDTO {
	t.Helper()
	ctx := context.Background()
	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: amount})
	require.NoError(t, err)
	payout, err = f.svc.Approve(ctx, f.admin, payout.ID)
	require.NoError(t, err)
	return payout
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestPayoutLifecycleDrainsWallet(t *testing.T) {
	f := newFixture(t, Policy{RefundOnReject: true}, nil)
	ctx := context.Background()
	f.credit(t, 10000)

	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 10000})
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusPending, payout.Status)
	require.Equal(t, "********7890", payout.BankDetails.AccountNumber)
	require.Equal(t, int64(10000), f.balance(t).BalanceCents)

	payout, err = f.svc.Approve(ctx, f.admin, payout.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusApproved, payout.Status)
	require.Equal(t, f.admin.UserID, *payout.ApprovedBy)
	require.Equal(t, fixedNow, *payout.ApprovedAt)

	payout, err = f.svc.Process(ctx, f.admin, payout.ID, "bank-tx-1")
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusCompleted, payout.Status)
	require.Equal(t, "bank-tx-1", *payout.TransactionID)
	require.NotNil(t, payout.ProcessedAt)

	w := f.balance(t)
	require.Equal(t, int64(0), w.BalanceCents)
	require.Equal(t, int64(10000), w.TotalDebitsCents)

	_, err = f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Payout{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.Equal(t, []string{"none->pending", "pending->approved", "approved->completed"}, f.metrics.seen)
}

func TestProcessRequiresApproval(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)

	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 5000})
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, f.admin, payout.ID, "bank-tx")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, int64(5000), f.balance(t).BalanceCents)

	_, err = f.svc.Approve(ctx, f.admin, payout.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.admin, payout.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Process(ctx, f.admin, payout.ID, "  ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestProcessFromProcessingStatus(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	payout := f.approved(t, 2000)

	payout, err := f.svc.StartProcessing(ctx, f.admin, payout.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusProcessing, payout.Status)

	_, err = f.svc.StartProcessing(ctx, f.admin, payout.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	payout, err = f.svc.Process(ctx, f.admin, payout.ID, "bank-tx")
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusCompleted, payout.Status)
	require.Equal(t, int64(3000), f.balance(t).BalanceCents)
}

func TestProcessMarksFailedOnInsufficientBalance(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	first := f.approved(t, 4000)
	second := f.approved(t, 4000)

	_, err := f.svc.Process(ctx, f.admin, first.ID, "bank-tx-1")
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, f.admin, second.ID, "bank-tx-2")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))

	var stored models.Payout
	require.NoError(t, f.client.DB().First(&stored, "id = ?", second.ID).Error)
	require.Equal(t, enums.PayoutStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	require.Nil(t, stored.TransactionID)
	require.Equal(t, int64(1000), f.balance(t).BalanceCents)

	var failedEvents int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", second.ID, enums.EventPayoutFailed).
		Count(&failedEvents).Error)
	require.Equal(t, int64(1), failedEvents)
}

func TestRejectRefundPolicy(t *testing.T) {
	for _, refund := range []bool{true, false} {
		t.Run(fmt.Sprintf("refund_on_reject=%t", refund), func(t *testing.T) {
			f := newFixture(t, Policy{RefundOnReject: refund}, nil)
			ctx := context.Background()
			f.credit(t, 5000)
			payout := f.approved(t, 2000)

			rejected, err := f.svc.Reject(ctx, f.admin, payout.ID, "account closed")
			require.NoError(t, err)
			require.Equal(t, enums.PayoutStatusRejected, rejected.Status)
			require.Equal(t, "account closed", *rejected.RejectionReason)

			w := f.balance(t)
			if refund {
				require.Equal(t, int64(7000), w.BalanceCents)
				require.Equal(t, int64(2000), w.TotalRefundsCents)
			} else {
				require.Equal(t, int64(5000), w.BalanceCents)
				require.Zero(t, w.TotalRefundsCents)
			}
		})
	}
}

func TestRejectPendingDoesNotRefund(t *testing.T) {
	f := newFixture(t, Policy{RefundOnReject: true}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 1000})
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, f.admin, payout.ID, "duplicate")
	require.NoError(t, err)
	require.Equal(t, int64(5000), f.balance(t).BalanceCents)
}

func TestRejectDefaultsBlankReason(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 1000})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, f.admin, payout.ID, "   ")
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, DefaultRejectionReason, *rejected.RejectionReason)

	var stored models.Payout
	require.NoError(t, f.client.DB().First(&stored, "id = ?", payout.ID).Error)
	require.Equal(t, DefaultRejectionReason, *stored.RejectionReason)
}

func TestRejectCompletedIsConflict(t *testing.T) {
	f := newFixture(t, Policy{RefundOnReject: true}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	payout := f.approved(t, 1000)
	_, err := f.svc.Process(ctx, f.admin, payout.ID, "bank-tx")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, f.admin, payout.ID, "too late")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, int64(4000), f.balance(t).BalanceCents)
}

func TestCancelPendingPayout(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	payout, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 1000})
	require.NoError(t, err)

	other := dbtest.SeedVendor(t, f.client.DB(), "10")
	_, err = f.svc.Cancel(ctx, types.Actor{UserID: other.UserID, Role: enums.ActorRoleVendor, VendorID: &other.ID}, payout.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	cancelled, err := f.svc.Cancel(ctx, f.actor(), payout.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, f.actor(), payout.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Approve(ctx, f.admin, payout.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Request(ctx, f.admin, RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	noBank := dbtest.SeedVendor(t, f.client.DB(), "10")
	_, err = f.svc.Request(ctx, types.Actor{UserID: noBank.UserID, Role: enums.ActorRoleVendor, VendorID: &noBank.ID}, RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, int64(0), details["balance_cents"])
	require.Equal(t, int64(100), details["requested_cents"])

	_, err = f.svc.Approve(ctx, f.actor(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = f.svc.Approve(ctx, f.admin, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRequestRateLimit(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	f := newFixture(t, Policy{RequestLimit: 1, RequestWindow: time.Hour}, limiter)
	f.credit(t, 5000)

	_, err := f.svc.Request(context.Background(), f.actor(), RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))
	require.Equal(t, []string{"payout_request:" + f.vendor.ID.String()}, limiter.scopes)

	limiter.allowed = true
	limiter.err = errors.New("redis down")
	_, err = f.svc.Request(context.Background(), f.actor(), RequestPayoutInput{AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestListings(t *testing.T) {
	f := newFixture(t, Policy{}, nil)
	ctx := context.Background()
	f.credit(t, 5000)
	first, err := f.svc.Request(ctx, f.actor(), RequestPayoutInput{AmountCents: 100})
	require.NoError(t, err)
	second := f.approved(t, 200)

	all, err := f.svc.List(ctx, "", pagination.Page{})
	require.NoError(t, err)
	require.Len(t, all.Payouts, 2)
	require.Equal(t, second.ID, all.Payouts[0].ID)
	require.Equal(t, int64(2), all.Page.Total)

	pending, err := f.svc.List(ctx, "pending", pagination.Page{})
	require.NoError(t, err)
	require.Len(t, pending.Payouts, 1)
	require.Equal(t, first.ID, pending.Payouts[0].ID)

	_, err = f.svc.List(ctx, "Pending", pagination.Page{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	mine, err := f.svc.ListForVendor(ctx, f.vendor.ID, pagination.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine.Payouts, 1)
	require.Equal(t, 2, mine.Page.Pages)
}
