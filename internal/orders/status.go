package orders

import (
	"context"
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

const unknownCarrier = "Unknown"

// SetVendorSubOrderStatus moves the caller's sub-order and derives the parent
// delivered state once every sub-order is delivered.
func (s *service) SetVendorSubOrderStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, req StatusUpdateRequest) (*VendorOrderDTO, error) {
	if actor.Role != enums.ActorRoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor role required")
	}
	vendorID := *actor.VendorID
	next, err := enums.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, invalidStatus(req.Status, err)
	}

	var (
		result *VendorOrderDTO
		from   enums.OrderStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err, orderID)
		}
		sub := order.SubOrderFor(vendorID)
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "vendor not authorized for this order").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}

		from = sub.Status
		if !from.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": from.String(), "to": next.String()})
		}

		now := s.now().UTC()
		sub.Status = next
		sub.Tracking = s.refreshTracking(sub.Tracking, req, next, now)
		if err := repo.UpdateSubOrder(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sub-order")
		}

		actorRef := &outbox.ActorRef{UserID: actor.UserID, VendorID: &vendorID, Role: actor.Role.String()}
		if from != next {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVendorOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actorRef,
				Data: payloads.VendorOrderStatusChangedEvent{
					OrderID:    order.ID,
					SubOrderID: sub.ID,
					VendorID:   vendorID,
					From:       from,
					To:         next,
				},
			}); err != nil {
				return err
			}
		}

		if order.Status != enums.OrderStatusDelivered && order.AllDelivered() {
			if err := s.markDelivered(ctx, tx, order, now, actorRef); err != nil {
				return err
			}
		}

		view := VendorOrderFromModel(order, sub)
		result = &view
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithVendorID(logCtx, vendorID.String())
		logCtx = s.logg.WithSubOrderID(logCtx, result.SubOrder.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from.String(), "to": next.String()})
		s.logg.Info(logCtx, "vendor order status updated")
	}
	return result, nil
}

// SetOrderStatus is the admin override of the parent status. Any canonical
// value is accepted.
func (s *service) SetOrderStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, status string) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	next, err := enums.ParseOrderStatus(status)
	if err != nil {
		return nil, invalidStatus(status, err)
	}

	var result *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err, orderID)
		}
		from := order.Status
		actorRef := &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}

		if next == enums.OrderStatusDelivered {
			if err := s.markDelivered(ctx, tx, order, s.now().UTC(), actorRef); err != nil {
				return err
			}
			result = order
			return nil
		}

		if err := repo.UpdateOrderStatus(ctx, order.ID, next, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = next
		result = order
		if from == next {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef,
			Data:          payloads.OrderStatusChangedEvent{OrderID: order.ID, From: from, To: next},
		})
	})
	if err != nil {
		return nil, err
	}
	return OrderFromModel(result), nil
}

// markDelivered flips the parent to delivered and queues the delivery event
// once per order.
func (s *service) markDelivered(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time, actor *outbox.ActorRef) error {
	from := order.Status
	if err := s.repo.WithTx(tx).UpdateOrderStatus(ctx, order.ID, enums.OrderStatusDelivered, &now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
	}
	order.Status = enums.OrderStatusDelivered
	order.IsDelivered = true
	order.DeliveredAt = &now

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			From:        from,
			To:          enums.OrderStatusDelivered,
			DeliveredAt: &now,
		},
	})
}

// refreshTracking applies carrier and tracking number from the request. The
// estimated delivery date is set once, when shipment information first
// appears.
func (s *service) refreshTracking(current *types.Tracking, req StatusUpdateRequest, status enums.OrderStatus, now time.Time) *types.Tracking {
	carrier := strings.TrimSpace(req.Carrier)
	number := strings.TrimSpace(req.TrackingNumber)
	if !status.TracksShipment() && number == "" && carrier == "" {
		return current
	}

	var t types.Tracking
	if current != nil {
		t = *current
	}
	if number != "" {
		t.TrackingNumber = number
		if carrier == "" && t.Carrier == "" {
			carrier = unknownCarrier
		}
	}
	if carrier != "" {
		t.Carrier = carrier
	}
	if status.TracksShipment() {
		t.Status = status
	}
	if t.EstimatedDelivery == nil {
		eta := now.Add(s.estimatedDelivery)
		t.EstimatedDelivery = &eta
	}
	return &t
}
