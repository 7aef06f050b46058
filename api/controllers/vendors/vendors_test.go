package vendors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorledger/api/middleware"
	internalvendors "github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type stubVendorService struct {
	earnings   func(ctx context.Context, vendorID uuid.UUID, period enums.EarningsPeriod) (*internalvendors.EarningsSummary, error)
	updateBank func(ctx context.Context, actor types.Actor, input internalvendors.BankDetailsInput) (*internalvendors.VendorDTO, error)
	dashboard  func(ctx context.Context, vendorID uuid.UUID) (*internalvendors.Dashboard, error)
}

func (s *stubVendorService) Profile(ctx context.Context, vendorID uuid.UUID) (*internalvendors.VendorDTO, error) {
	return &internalvendors.VendorDTO{ID: vendorID, StoreName: "Acme"}, nil
}

func (s *stubVendorService) UpdateBankDetails(ctx context.Context, actor types.Actor, input internalvendors.BankDetailsInput) (*internalvendors.VendorDTO, error) {
	return s.updateBank(ctx, actor, input)
}

func (s *stubVendorService) Earnings(ctx context.Context, vendorID uuid.UUID, period enums.EarningsPeriod) (*internalvendors.EarningsSummary, error) {
	return s.earnings(ctx, vendorID, period)
}

func (s *stubVendorService) Dashboard(ctx context.Context, vendorID uuid.UUID) (*internalvendors.Dashboard, error) {
	return s.dashboard(ctx, vendorID)
}

type stubWallet struct {
	params pagination.Params
}

func (s *stubWallet) GetWallet(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*wallet.View, error) {
	s.params = params
	return &wallet.View{Wallet: models.Wallet{VendorID: vendorID, BalanceCents: 5400}}, nil
}

func vendorRequest(method, target, body string) (*http.Request, types.Actor) {
	id := uuid.New()
	actor := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &id}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithActor(req.Context(), actor)), actor
}

func TestProfile(t *testing.T) {
	req, actor := vendorRequest(http.MethodGet, "/api/v1/vendor/profile", "")
	rec := httptest.NewRecorder()
	Profile(&stubVendorService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), actor.VendorID.String())
}

func TestDashboard(t *testing.T) {
	svc := &stubVendorService{
		dashboard: func(ctx context.Context, vendorID uuid.UUID) (*internalvendors.Dashboard, error) {
			return &internalvendors.Dashboard{
				Vendor:       internalvendors.VendorDTO{ID: vendorID},
				Stats:        internalvendors.DashboardStats{TotalOrders: 3, TotalSalesCents: 12000},
				RecentOrders: []internalvendors.RecentOrder{},
			}, nil
		},
	}

	req, actor := vendorRequest(http.MethodGet, "/api/v1/vendor/dashboard", "")
	rec := httptest.NewRecorder()
	Dashboard(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), actor.VendorID.String())
	require.Contains(t, rec.Body.String(), `"total_sales_cents":12000`)
	require.Contains(t, rec.Body.String(), `"recent_orders":[]`)
}

func TestDashboardNotFound(t *testing.T) {
	svc := &stubVendorService{
		dashboard: func(ctx context.Context, vendorID uuid.UUID) (*internalvendors.Dashboard, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		},
	}
	req, _ := vendorRequest(http.MethodGet, "/api/v1/vendor/dashboard", "")
	rec := httptest.NewRecorder()
	Dashboard(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletPassesCursor(t *testing.T) {
	ledger := &stubWallet{}
	req, _ := vendorRequest(http.MethodGet, "/api/v1/vendor/wallet?limit=10&cursor=abc", "")
	rec := httptest.NewRecorder()
	Wallet(ledger, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, ledger.params)
	require.Contains(t, rec.Body.String(), "5400")
}

func TestWalletRequiresVendor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/wallet", nil)
	actor := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	Wallet(&stubWallet{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEarningsDefaultsToMonth(t *testing.T) {
	var got enums.EarningsPeriod
	svc := &stubVendorService{
		earnings: func(ctx context.Context, vendorID uuid.UUID, period enums.EarningsPeriod) (*internalvendors.EarningsSummary, error) {
			got = period
			return &internalvendors.EarningsSummary{Period: period}, nil
		},
	}

	req, _ := vendorRequest(http.MethodGet, "/api/v1/vendor/earnings", "")
	rec := httptest.NewRecorder()
	Earnings(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, enums.EarningsPeriodMonth, got)

	req, _ = vendorRequest(http.MethodGet, "/api/v1/vendor/earnings?period=week", "")
	rec = httptest.NewRecorder()
	Earnings(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, enums.EarningsPeriodWeek, got)
}

func TestEarningsRejectsUnknownPeriod(t *testing.T) {
	req, _ := vendorRequest(http.MethodGet, "/api/v1/vendor/earnings?period=decade", "")
	rec := httptest.NewRecorder()
	Earnings(&stubVendorService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBankDetails(t *testing.T) {
	svc := &stubVendorService{
		updateBank: func(ctx context.Context, actor types.Actor, input internalvendors.BankDetailsInput) (*internalvendors.VendorDTO, error) {
			require.Equal(t, "savings", input.AccountType)
			return &internalvendors.VendorDTO{ID: *actor.VendorID}, nil
		},
	}

	body := `{"account_holder_name":"Ada","account_number":"12345678","bank_name":"First","account_type":"savings"}`
	req, _ := vendorRequest(http.MethodPut, "/api/v1/vendor/bank-details", body)
	rec := httptest.NewRecorder()
	BankDetails(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBankDetailsValidation(t *testing.T) {
	svc := &stubVendorService{
		updateBank: func(ctx context.Context, actor types.Actor, input internalvendors.BankDetailsInput) (*internalvendors.VendorDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "should not be called")
		},
	}

	body := `{"account_holder_name":"Ada","account_number":"12345678","bank_name":"First","account_type":"checking"}`
	req, _ := vendorRequest(http.MethodPut, "/api/v1/vendor/bank-details", body)
	rec := httptest.NewRecorder()
	BankDetails(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
