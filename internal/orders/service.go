// Package orders splits checkouts into vendor sub-orders and drives the
// sub-order fulfillment lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/cart"
	"github.com/angelmondragon/vendorledger/internal/inventory"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/wallet"
	dbpkg "github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerWriter interface {
	Credit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
	RecordCommission(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
}

type splitRecorder interface {
	ObserveOrderSplit(vendorCount int)
}

// CreateOrderInput is everything needed to place an order. DedupKey is
// optional; when set, replays return the stored order.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	Cart            cart.Cart
	ShippingAddress types.ShippingAddress
	PaymentMethod   string
	TaxCents        int64
	ShippingCents   int64
	DedupKey        string
}

// Service exposes order placement, lookups and status changes.
type Service interface {
	Checkout(ctx context.Context, customerID uuid.UUID, req CheckoutRequest, dedupKey string) (*OrderDTO, error)
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) (*CustomerOrderList, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, status string, page pagination.Page) (*VendorOrderList, error)
	SetVendorSubOrderStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, req StatusUpdateRequest) (*VendorOrderDTO, error)
	SetOrderStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, status string) (*OrderDTO, error)
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo              Repository
	Carts             cart.Repository
	Inventory         inventory.Repository
	Vendors           vendors.Repository
	Ledger            ledgerWriter
	Tx                txRunner
	Outbox            outboxPublisher
	Metrics           splitRecorder
	Logger            *logger.Logger
	EstimatedDelivery time.Duration
	Now               func() time.Time
}

type service struct {
	repo              Repository
	carts             cart.Repository
	inventory         inventory.Repository
	vendors           vendors.Repository
	ledger            ledgerWriter
	tx                txRunner
	outbox            outboxPublisher
	metrics           splitRecorder
	logg              *logger.Logger
	estimatedDelivery time.Duration
	now               func() time.Time
}

// NewService builds an order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	eta := params.EstimatedDelivery
	if eta <= 0 {
		eta = 7 * 24 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:              params.Repo,
		carts:             params.Carts,
		inventory:         params.Inventory,
		vendors:           params.Vendors,
		ledger:            params.Ledger,
		tx:                params.Tx,
		outbox:            params.Outbox,
		metrics:           params.Metrics,
		logg:              params.Logger,
		estimatedDelivery: eta,
		now:               now,
	}, nil
}

// Checkout loads the customer's cart and places an order for it.
func (s *service) Checkout(ctx context.Context, customerID uuid.UUID, req CheckoutRequest, dedupKey string) (*OrderDTO, error) {
	c, err := s.carts.Load(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.CreateOrder(ctx, CreateOrderInput{
		CustomerID:      customerID,
		Cart:            c,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TaxCents:        req.TaxCents,
		ShippingCents:   req.ShippingCents,
		DedupKey:        dedupKey,
	})
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var dedupKey *string
	if key := strings.TrimSpace(input.DedupKey); key != "" {
		scoped := input.CustomerID.String() + ":" + key
		dedupKey = &scoped
		existing, err := s.repo.FindByDedupKey(ctx, scoped)
		if err == nil {
			return OrderFromModel(existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by dedup key")
		}
	}

	rates, err := s.commissionRates(ctx, VendorIDs(input.Cart.Items))
	if err != nil {
		return nil, err
	}
	shares, err := Split(input.Cart.Items, rates)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(orderDraft{
		CustomerID:      input.CustomerID,
		DedupKey:        dedupKey,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		TaxCents:        input.TaxCents,
		ShippingCents:   input.ShippingCents,
		Now:             s.now(),
	}, shares)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.persistOrder(ctx, tx, order)
	})
	if err != nil {
		if dedupKey != nil && isOrderDedupViolation(err) {
			existing, findErr := s.repo.FindByDedupKey(ctx, *dedupKey)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load deduplicated order")
			}
			return OrderFromModel(existing), nil
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.FromPostgres(err, pkgerrors.CodeDependency, "create order")
	}

	if s.metrics != nil {
		s.metrics.ObserveOrderSplit(len(order.VendorOrders))
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"vendor_count": len(order.VendorOrders),
			"total_cents":  order.TotalCents,
		})
		s.logg.Info(logCtx, "order created")
	}
	return OrderFromModel(order), nil
}

// persistOrder runs every write of order placement inside tx.
func (s *service) persistOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return err
	}

	var (
		lines    []inventory.Line
		products []uuid.UUID
	)
	for _, sub := range order.VendorOrders {
		for _, item := range sub.Items {
			lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Qty})
			products = append(products, item.ProductID)
		}
	}
	if err := s.inventory.WithTx(tx).Decrement(ctx, lines); err != nil {
		return err
	}

	vendorRepo := s.vendors.WithTx(tx)
	orderID := order.ID
	shares := make([]payloads.VendorShare, 0, len(order.VendorOrders))
	for _, sub := range order.VendorOrders {
		if sub.EarningsCents > 0 {
			if _, err := s.ledger.Credit(ctx, tx, wallet.Entry{
				VendorID:    sub.VendorID,
				AmountCents: sub.EarningsCents,
				Description: fmt.Sprintf("Earnings from order %s", orderID),
				OrderID:     &orderID,
				DedupKey:    fmt.Sprintf("order:%s:vendor:%s:credit", orderID, sub.VendorID),
			}); err != nil {
				return err
			}
		}
		if sub.CommissionCents > 0 {
			if _, err := s.ledger.RecordCommission(ctx, tx, wallet.Entry{
				VendorID:    sub.VendorID,
				AmountCents: sub.CommissionCents,
				Description: fmt.Sprintf("Platform commission on order %s", orderID),
				OrderID:     &orderID,
				DedupKey:    fmt.Sprintf("order:%s:vendor:%s:commission", orderID, sub.VendorID),
			}); err != nil {
				return err
			}
		}
		if err := vendorRepo.IncrementOrderStats(ctx, sub.VendorID, 1, sub.SubtotalCents); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidVendor(sub.VendorID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor stats")
		}
		shares = append(shares, payloads.VendorShare{
			VendorID:        sub.VendorID,
			SubOrderID:      sub.ID,
			SubtotalCents:   sub.SubtotalCents,
			CommissionCents: sub.CommissionCents,
			EarningsCents:   sub.EarningsCents,
			CommissionPct:   sub.CommissionPercentage.StringFixed(2),
		})
	}

	// only the ordered products leave the cart
	if err := s.carts.WithTx(tx).Clear(ctx, order.CustomerID, products); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &outbox.ActorRef{UserID: order.CustomerID, Role: enums.ActorRoleCustomer.String()},
		Data: payloads.OrderCreatedEvent{
			OrderID:       orderID,
			CustomerID:    order.CustomerID,
			TotalCents:    order.TotalCents,
			TaxCents:      order.TaxCents,
			ShippingCents: order.ShippingCents,
			Vendors:       shares,
		},
	})
}

// commissionRates resolves the rate of every vendor, rejecting unknown or
// unapproved vendors.
func (s *service) commissionRates(ctx context.Context, vendorIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	found, err := s.vendors.FindByIDs(ctx, vendorIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendors")
	}
	byID := make(map[uuid.UUID]models.Vendor, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	rates := make(map[uuid.UUID]decimal.Decimal, len(vendorIDs))
	for _, id := range vendorIDs {
		v, ok := byID[id]
		if !ok || v.Status != enums.VendorStatusApproved {
			return nil, invalidVendor(id)
		}
		rates[id] = v.CommissionPercentage
	}
	return rates, nil
}

func (s *service) GetOrder(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to view this order")
	}
	return OrderFromModel(order), nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) (*CustomerOrderList, error) {
	rows, total, err := s.repo.ListForCustomer(ctx, customerID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &CustomerOrderList{
		Orders: make([]OrderDTO, 0, len(rows)),
		Page:   pagination.NewPageInfo(page, total),
	}
	for i := range rows {
		list.Orders = append(list.Orders, *OrderFromModel(&rows[i]))
	}
	return list, nil
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, status string, page pagination.Page) (*VendorOrderList, error) {
	filter := VendorOrderFilter{Page: page}
	if raw := strings.TrimSpace(status); raw != "" && raw != "all" {
		parsed, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, invalidStatus(raw, err)
		}
		filter.Status = &parsed
	}

	subs, total, err := s.repo.ListSubOrdersForVendor(ctx, vendorID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	ids := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.OrderID)
	}
	headers, err := s.repo.FindHeaders(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	byID := make(map[uuid.UUID]*models.Order, len(headers))
	for i := range headers {
		byID[headers[i].ID] = &headers[i]
	}

	list := &VendorOrderList{
		Orders: make([]VendorOrderDTO, 0, len(subs)),
		Page:   pagination.NewPageInfo(page, total),
	}
	for i := range subs {
		order, ok := byID[subs[i].OrderID]
		if !ok {
			continue
		}
		list.Orders = append(list.Orders, VendorOrderFromModel(order, &subs[i]))
	}
	return list, nil
}

func canView(actor types.Actor, order *models.Order) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return true
	case enums.ActorRoleCustomer:
		return order.CustomerID == actor.UserID
	case enums.ActorRoleVendor:
		return actor.VendorID != nil && order.SubOrderFor(*actor.VendorID) != nil
	default:
		return false
	}
}

func validateCreate(input CreateOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.Cart.CustomerID != uuid.Nil && input.Cart.CustomerID != input.CustomerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart belongs to another customer")
	}
	if err := input.Cart.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if input.TaxCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax must be non-negative").
			WithDetails(map[string]any{"tax_cents": input.TaxCents})
	}
	if input.ShippingCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping must be non-negative").
			WithDetails(map[string]any{"shipping_cents": input.ShippingCents})
	}
	return nil
}

func isOrderDedupViolation(err error) bool {
	return dbpkg.IsUniqueViolation(err, "orders.dedup_key") || dbpkg.IsUniqueViolation(err, "orders_dedup_key")
}

func orderLookupError(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func invalidStatus(raw string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
		WithDetails(map[string]any{"status": raw})
}
