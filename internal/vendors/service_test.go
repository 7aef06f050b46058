package vendors

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/dbtest"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

var fixedNow = time.Date(2026, time.March, 18, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T) (Service, *db.Client, *wallet.Ledger) {
	t.Helper()
	client := dbtest.Client(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repo: wallet.NewRepository(client.DB()),
		Tx:   client,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Tx:      client,
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Wallets: ledger,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, client, ledger
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestUpdateBankDetails(t *testing.T) {
	svc, client, _ := newService(t)
	ctx := context.Background()
	vendor := dbtest.SeedVendor(t, client.DB(), "10")
	actor := types.Actor{UserID: vendor.UserID, Role: enums.ActorRoleVendor, VendorID: &vendor.ID}

	dto, err := svc.UpdateBankDetails(ctx, actor, BankDetailsInput{
		AccountHolderName: " Ada Vendor ",
		AccountNumber:     "001234567890",
		BankName:          "First Bank",
		IFSCCode:          "hdfc0001234",
		AccountType:       "current",
	})
	require.NoError(t, err)
	require.NotNil(t, dto.BankDetails)
	require.Equal(t, "********7890", dto.BankDetails.AccountNumber)
	require.Equal(t, "HDFC0001234", dto.BankDetails.IFSCCode)

	var stored models.Vendor
	require.NoError(t, client.DB().First(&stored, "id = ?", vendor.ID).Error)
	require.NotNil(t, stored.BankDetails)
	require.Equal(t, "001234567890", stored.BankDetails.AccountNumber)
	require.Equal(t, "Ada Vendor", stored.BankDetails.AccountHolderName)
	require.Equal(t, enums.BankAccountCurrent, stored.BankDetails.AccountType)

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Where("aggregate_id = ?", vendor.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventBankDetailsUpdated, events[0].EventType)
	require.NotContains(t, string(events[0].Payload), "001234567890")
}

func TestUpdateBankDetailsRejectsInvalidInput(t *testing.T) {
	svc, client, _ := newService(t)
	ctx := context.Background()
	vendor := dbtest.SeedVendor(t, client.DB(), "10")
	actor := types.Actor{UserID: vendor.UserID, Role: enums.ActorRoleVendor, VendorID: &vendor.ID}

	_, err := svc.UpdateBankDetails(ctx, actor, BankDetailsInput{AccountHolderName: "Ada", BankName: "First"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateBankDetails(ctx, actor, BankDetailsInput{
		AccountHolderName: "Ada", AccountNumber: "1", BankName: "First", AccountType: "checking",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	customer := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	_, err = svc.UpdateBankDetails(ctx, customer, BankDetailsInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	missing := uuid.New()
	ghost := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &missing}
	_, err = svc.UpdateBankDetails(ctx, ghost, BankDetailsInput{AccountHolderName: "A", AccountNumber: "1", BankName: "B"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestEarningsSummary(t *testing.T) {
	svc, client, ledger := newService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.SeedVendor(t, conn, "10")
	other := dbtest.SeedVendor(t, conn, "10")

	seedOrder(t, conn, vendor.ID, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), enums.OrderStatusDelivered, 6000)
	seedOrder(t, conn, vendor.ID, time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC), enums.OrderStatusDelivered, 3000)
	seedOrder(t, conn, vendor.ID, time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC), enums.OrderStatusShipped, 5000)
	seedOrder(t, conn, vendor.ID, time.Date(2026, time.February, 20, 9, 0, 0, 0, time.UTC), enums.OrderStatusDelivered, 9000)
	seedOrder(t, conn, other.ID, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), enums.OrderStatusDelivered, 7000)

	_, err := ledger.Credit(ctx, nil, wallet.Entry{VendorID: vendor.ID, AmountCents: 8100, DedupKey: "seed:credit"})
	require.NoError(t, err)

	summary, err := svc.Earnings(ctx, vendor.ID, enums.EarningsPeriodMonth)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), summary.Since)
	require.Equal(t, int64(2), summary.TotalOrders)
	require.Equal(t, int64(8100), summary.TotalEarningsCents)
	require.Equal(t, int64(900), summary.TotalCommissionCents)
	require.Equal(t, int64(4050), summary.AverageOrderValueCents)
	require.Equal(t, int64(8100), summary.Wallet.BalanceCents)

	year, err := svc.Earnings(ctx, vendor.ID, enums.EarningsPeriodYear)
	require.NoError(t, err)
	require.Equal(t, int64(3), year.TotalOrders)

	day, err := svc.Earnings(ctx, vendor.ID, enums.EarningsPeriodDay)
	require.NoError(t, err)
	require.Zero(t, day.TotalOrders)
	require.Zero(t, day.AverageOrderValueCents)

	_, err = svc.Earnings(ctx, vendor.ID, enums.EarningsPeriod("decade"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Earnings(ctx, uuid.New(), enums.EarningsPeriodMonth)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDashboard(t *testing.T) {
	svc, client, ledger := newService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.SeedVendor(t, conn, "10")
	other := dbtest.SeedVendor(t, conn, "10")
	dbtest.SeedInventory(t, conn, vendor.ID, 4)
	dbtest.SeedInventory(t, conn, vendor.ID, 0)
	dbtest.SeedInventory(t, conn, other.ID, 9)

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i := range 7 {
		seedOrder(t, conn, vendor.ID, base.Add(time.Duration(i)*24*time.Hour), enums.OrderStatusPending, int64(1000*(i+1)))
	}
	seedOrder(t, conn, other.ID, base.Add(30*24*time.Hour), enums.OrderStatusPending, 99000)
	repo := NewRepository(conn)
	require.NoError(t, repo.IncrementOrderStats(ctx, vendor.ID, 7, 28000))

	_, err := ledger.Credit(ctx, nil, wallet.Entry{VendorID: vendor.ID, AmountCents: 2500, DedupKey: "seed:dashboard"})
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx, vendor.ID)
	require.NoError(t, err)
	require.Equal(t, vendor.ID, dash.Vendor.ID)
	require.Equal(t, DashboardStats{TotalProducts: 2, TotalOrders: 7, TotalSalesCents: 28000}, dash.Stats)
	require.Equal(t, int64(2500), dash.Wallet.BalanceCents)
	require.Equal(t, int64(2500), dash.Wallet.TotalEarningsCents)

	require.Len(t, dash.RecentOrders, RecentOrdersLimit)
	require.Equal(t, int64(7000), dash.RecentOrders[0].SubtotalCents)
	require.Equal(t, int64(6300), dash.RecentOrders[0].EarningsCents)
	require.Equal(t, int64(3000), dash.RecentOrders[RecentOrdersLimit-1].SubtotalCents)
	require.True(t, dash.RecentOrders[0].PlacedAt.Equal(base.Add(6*24*time.Hour)))
	require.Equal(t, enums.OrderStatusPending, dash.RecentOrders[0].OrderStatus)

	empty, err := svc.Dashboard(ctx, dbtest.SeedVendor(t, conn, "10").ID)
	require.NoError(t, err)
	require.NotNil(t, empty.RecentOrders)
	require.Empty(t, empty.RecentOrders)
	require.Zero(t, empty.Wallet.BalanceCents)

	_, err = svc.Dashboard(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryIncrementOrderStats(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	vendor := dbtest.SeedVendor(t, conn, "12.5")

	require.NoError(t, repo.IncrementOrderStats(ctx, vendor.ID, 1, 6000))
	require.NoError(t, repo.IncrementOrderStats(ctx, vendor.ID, 1, 5000))
	require.ErrorIs(t, repo.IncrementOrderStats(ctx, uuid.New(), 1, 1), gorm.ErrRecordNotFound)

	stored, err := repo.FindByID(ctx, vendor.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.TotalOrders)
	require.Equal(t, int64(11000), stored.TotalSalesCents)
	require.True(t, stored.CommissionPercentage.Equal(decimal.RequireFromString("12.5")))

	found, err := repo.FindByIDs(ctx, []uuid.UUID{vendor.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 1)

	byUser, err := repo.FindByUserID(ctx, vendor.UserID)
	require.NoError(t, err)
	require.Equal(t, vendor.ID, byUser.ID)
}

func TestFromModelMasksAccount(t *testing.T) {
	dto := FromModel(&models.Vendor{
		ID:                   uuid.New(),
		CommissionPercentage: decimal.NewFromInt(10),
		BankDetails:          &types.BankDetails{AccountNumber: "1234"},
	})
	require.Equal(t, "10.00", dto.CommissionPercentage)
	require.Equal(t, "1234", dto.BankDetails.AccountNumber)
	require.Nil(t, FromModel(nil))
}

func seedOrder(t *testing.T, conn *gorm.DB, vendorID uuid.UUID, createdAt time.Time, status enums.OrderStatus, subtotal int64) {
	t.Helper()
	commission := subtotal / 10
	order := models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		PaymentMethod: "card",
		TotalCents:    subtotal,
		Status:        enums.OrderStatusPending,
		CreatedAt:     createdAt,
	}
	require.NoError(t, conn.Omit("VendorOrders").Create(&order).Error)
	sub := models.VendorSubOrder{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		VendorID:             vendorID,
		SubtotalCents:        subtotal,
		CommissionPercentage: decimal.NewFromInt(10),
		CommissionCents:      commission,
		EarningsCents:        subtotal - commission,
		Status:               status,
	}
	require.NoError(t, conn.Omit("Items").Create(&sub).Error)
}
