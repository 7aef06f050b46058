// Package vendors is the vendor directory: profile lookups, bank details and
// earnings summaries.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletReader interface {
	GetOrCreate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Wallet, error)
}

// Service exposes vendor self-service operations.
type Service interface {
	Profile(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error)
	UpdateBankDetails(ctx context.Context, actor types.Actor, input BankDetailsInput) (*VendorDTO, error)
	Earnings(ctx context.Context, vendorID uuid.UUID, period enums.EarningsPeriod) (*EarningsSummary, error)
	Dashboard(ctx context.Context, vendorID uuid.UUID) (*Dashboard, error)
}

// RecentOrdersLimit caps the dashboard order feed.
const RecentOrdersLimit = 5

// ServiceParams wires the vendor service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Wallets walletReader
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	wallets walletReader
	now     func() time.Time
}

// NewService builds a vendor service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("vendor repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet reader required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		wallets: params.Wallets,
		now:     now,
	}, nil
}

func (s *service) Profile(ctx context.Context, vendorID uuid.UUID) (*VendorDTO, error) {
	vendor, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, lookupError(err, vendorID)
	}
	return FromModel(vendor), nil
}

func (s *service) UpdateBankDetails(ctx context.Context, actor types.Actor, input BankDetailsInput) (*VendorDTO, error) {
	if actor.Role != enums.ActorRoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor role required")
	}
	details, err := normalizeBankDetails(input)
	if err != nil {
		return nil, err
	}
	vendorID := *actor.VendorID

	var updated *models.Vendor
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateBankDetails(ctx, vendorID, details); err != nil {
			return lookupError(err, vendorID)
		}
		vendor, err := repo.FindByID(ctx, vendorID)
		if err != nil {
			return lookupError(err, vendorID)
		}
		updated = vendor

		masked := details.Masked()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBankDetailsUpdated,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendorID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, VendorID: &vendorID, Role: actor.Role.String()},
			Data: payloads.BankDetailsUpdatedEvent{
				VendorID:      vendorID,
				BankName:      details.BankName,
				AccountMasked: masked.AccountNumber,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Earnings(ctx context.Context, vendorID uuid.UUID, period enums.EarningsPeriod) (*EarningsSummary, error) {
	if !period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid earnings period").
			WithDetails(map[string]any{"period": period.String()})
	}
	if _, err := s.repo.FindByID(ctx, vendorID); err != nil {
		return nil, lookupError(err, vendorID)
	}

	since := period.Since(s.now().UTC())
	agg, err := s.repo.DeliveredSince(ctx, vendorID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate earnings")
	}
	wallet, err := s.wallets.GetOrCreate(ctx, nil, vendorID)
	if err != nil {
		return nil, err
	}

	summary := &EarningsSummary{
		Period:               period,
		Since:                since,
		TotalOrders:          agg.Orders,
		TotalEarningsCents:   agg.EarningsCents,
		TotalCommissionCents: agg.CommissionCents,
		Wallet: WalletSnapshot{
			BalanceCents:         wallet.BalanceCents,
			TotalEarningsCents:   wallet.TotalEarningsCents,
			TotalCommissionCents: wallet.TotalCommissionCents,
		},
	}
	if agg.Orders > 0 {
		summary.AverageOrderValueCents = agg.EarningsCents / agg.Orders
	}
	return summary, nil
}

func (s *service) Dashboard(ctx context.Context, vendorID uuid.UUID) (*Dashboard, error) {
	vendor, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, lookupError(err, vendorID)
	}
	products, err := s.repo.CountProducts(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count vendor products")
	}
	recent, err := s.repo.RecentSubOrders(ctx, vendorID, RecentOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent orders")
	}
	if recent == nil {
		recent = []RecentOrder{}
	}
	wallet, err := s.wallets.GetOrCreate(ctx, nil, vendorID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Vendor: *FromModel(vendor),
		Stats: DashboardStats{
			TotalProducts:   products,
			TotalOrders:     vendor.TotalOrders,
			TotalSalesCents: vendor.TotalSalesCents,
		},
		Wallet: WalletSnapshot{
			BalanceCents:         wallet.BalanceCents,
			TotalEarningsCents:   wallet.TotalEarningsCents,
			TotalCommissionCents: wallet.TotalCommissionCents,
		},
		RecentOrders: recent,
	}, nil
}

func normalizeBankDetails(input BankDetailsInput) (types.BankDetails, error) {
	details := types.BankDetails{
		AccountHolderName: strings.TrimSpace(input.AccountHolderName),
		AccountNumber:     strings.TrimSpace(input.AccountNumber),
		BankName:          strings.TrimSpace(input.BankName),
		IFSCCode:          strings.ToUpper(strings.TrimSpace(input.IFSCCode)),
		AccountType:       enums.BankAccountSavings,
	}
	if raw := strings.TrimSpace(input.AccountType); raw != "" {
		accountType, err := enums.ParseBankAccountType(raw)
		if err != nil {
			return types.BankDetails{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account type")
		}
		details.AccountType = accountType
	}
	if !details.Complete() {
		return types.BankDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "account holder, account number and bank name are required")
	}
	return details, nil
}

func lookupError(err error, vendorID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found").
			WithDetails(map[string]any{"vendor_id": vendorID.String()})
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
}
