// Package payouts runs the vendor withdrawal workflow: request, admin review,
// processing against the wallet and rejection.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

const failureInsufficientBalance = "insufficient wallet balance"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledger interface {
	GetOrCreate(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Wallet, error)
	Debit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
	Refund(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
}

type transitionRecorder interface {
	ObservePayoutTransition(from, to string)
}

type requestLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Policy holds the configurable parts of the workflow.
type Policy struct {
	// RefundOnReject appends a refund entry when an approved or processing
	// payout is rejected.
	RefundOnReject bool
	RequestLimit   int
	RequestWindow  time.Duration
}

// Service exposes the payout workflow.
type Service interface {
	Request(ctx context.Context, actor types.Actor, input RequestPayoutInput) (*PayoutDTO, error)
	Cancel(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error)
	Approve(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error)
	StartProcessing(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error)
	Process(ctx context.Context, actor types.Actor, payoutID uuid.UUID, transactionID string) (*PayoutDTO, error)
	Reject(ctx context.Context, actor types.Actor, payoutID uuid.UUID, reason string) (*PayoutDTO, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, page pagination.Page) (*PayoutList, error)
	List(ctx context.Context, status string, page pagination.Page) (*PayoutList, error)
}

// ServiceParams wires the payout service dependencies.
type ServiceParams struct {
	Repo    Repository
	Vendors vendors.Repository
	Ledger  ledger
	Tx      txRunner
	Outbox  outboxPublisher
	Limiter requestLimiter
	Metrics transitionRecorder
	Logger  *logger.Logger
	Policy  Policy
	Now     func() time.Time
}

type service struct {
	repo    Repository
	vendors vendors.Repository
	ledger  ledger
	tx      txRunner
	outbox  outboxPublisher
	limiter requestLimiter
	metrics transitionRecorder
	logg    *logger.Logger
	policy  Policy
	now     func() time.Time
}

// NewService builds a payout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
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
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		vendors: params.Vendors,
		ledger:  params.Ledger,
		tx:      params.Tx,
		outbox:  params.Outbox,
		limiter: params.Limiter,
		metrics: params.Metrics,
		logg:    params.Logger,
		policy:  params.Policy,
		now:     now,
	}, nil
}

// Request opens a pending payout for the calling vendor. The balance is only
// checked here; funds leave the wallet when the payout is processed.
func (s *service) Request(ctx context.Context, actor types.Actor, input RequestPayoutInput) (*PayoutDTO, error) {
	vendorID, err := requireVendor(actor)
	if err != nil {
		return nil, err
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]any{"amount_cents": input.AmountCents})
	}
	if err := s.checkRequestRate(ctx, vendorID); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found").
				WithDetails(map[string]any{"vendor_id": vendorID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	if vendor.BankDetails == nil || !vendor.BankDetails.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank details are required before requesting a payout")
	}

	var notes *string
	if input.Notes != nil {
		if trimmed := strings.TrimSpace(*input.Notes); trimmed != "" {
			notes = &trimmed
		}
	}
	payout := &models.Payout{
		ID:          uuid.New(),
		VendorID:    vendorID,
		AmountCents: input.AmountCents,
		BankDetails: *vendor.BankDetails,
		Status:      enums.PayoutStatusPending,
		Notes:       notes,
		RequestedAt: s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		w, err := s.ledger.GetOrCreate(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		if w.BalanceCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient wallet balance").
				WithDetails(map[string]any{
					"balance_cents":   w.BalanceCents,
					"requested_cents": input.AmountCents,
				})
		}
		if err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return pkgerrors.FromPostgres(err, pkgerrors.CodeDependency, "create payout")
		}
		return s.emit(ctx, tx, actor, enums.EventPayoutRequested, payout, "", payloads.PayoutEvent{})
	})
	if err != nil {
		return nil, err
	}
	s.observe(ctx, payout, "")
	return FromModel(payout), nil
}

// Cancel withdraws the caller's own pending payout.
func (s *service) Cancel(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error) {
	vendorID, err := requireVendor(actor)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, payoutID, func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error) {
		if p.VendorID != vendorID {
			return "", payloads.PayoutEvent{}, pkgerrors.New(pkgerrors.CodeForbidden, "payout belongs to another vendor")
		}
		if p.Status != enums.PayoutStatusPending {
			return "", payloads.PayoutEvent{}, stateConflict(p.Status, enums.PayoutStatusCancelled)
		}
		p.Status = enums.PayoutStatusCancelled
		if err := s.repo.WithTx(tx).Update(ctx, p, "status"); err != nil {
			return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payout")
		}
		return enums.EventPayoutCancelled, payloads.PayoutEvent{}, nil
	})
}

func (s *service) Approve(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, payoutID, func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error) {
		if p.Status != enums.PayoutStatusPending {
			return "", payloads.PayoutEvent{}, stateConflict(p.Status, enums.PayoutStatusApproved)
		}
		now := s.now().UTC()
		approver := actor.UserID
		p.Status = enums.PayoutStatusApproved
		p.ApprovedAt = &now
		p.ApprovedBy = &approver
		if err := s.repo.WithTx(tx).Update(ctx, p, "status", "approved_at", "approved_by"); err != nil {
			return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve payout")
		}
		return enums.EventPayoutApproved, payloads.PayoutEvent{}, nil
	})
}

func (s *service) StartProcessing(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*PayoutDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, payoutID, func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error) {
		if p.Status != enums.PayoutStatusApproved {
			return "", payloads.PayoutEvent{}, stateConflict(p.Status, enums.PayoutStatusProcessing)
		}
		p.Status = enums.PayoutStatusProcessing
		if err := s.repo.WithTx(tx).Update(ctx, p, "status"); err != nil {
			return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start payout processing")
		}
		return enums.EventPayoutProcessing, payloads.PayoutEvent{}, nil
	})
}

// Process debits the wallet and completes the payout. When the wallet can no
// longer cover the amount the payout is stored as failed and the insufficient
// balance error is returned.
func (s *service) Process(ctx context.Context, actor types.Actor, payoutID uuid.UUID, transactionID string) (*PayoutDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	var debitErr error
	dto, err := s.transition(ctx, actor, payoutID, func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error) {
		if !p.Status.Reserved() {
			return "", payloads.PayoutEvent{}, stateConflict(p.Status, enums.PayoutStatusCompleted)
		}
		repo := s.repo.WithTx(tx)
		payoutRef := p.ID
		_, err := s.ledger.Debit(ctx, tx, wallet.Entry{
			VendorID:    p.VendorID,
			AmountCents: p.AmountCents,
			Description: fmt.Sprintf("Payout %s", p.ID),
			PayoutID:    &payoutRef,
			DedupKey:    fmt.Sprintf("payout:%s:debit", p.ID),
		})
		if wallet.IsInsufficientBalance(err) {
			debitErr = err
			reason := failureInsufficientBalance
			p.Status = enums.PayoutStatusFailed
			p.FailureReason = &reason
			if err := repo.Update(ctx, p, "status", "failure_reason"); err != nil {
				return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout failed")
			}
			return enums.EventPayoutFailed, payloads.PayoutEvent{Reason: &reason}, nil
		}
		if err != nil {
			return "", payloads.PayoutEvent{}, err
		}

		now := s.now().UTC()
		p.Status = enums.PayoutStatusCompleted
		p.ProcessedAt = &now
		p.TransactionID = &transactionID
		if err := repo.Update(ctx, p, "status", "processed_at", "transaction_id"); err != nil {
			return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout")
		}
		return enums.EventPayoutCompleted, payloads.PayoutEvent{TransactionID: &transactionID}, nil
	})
	if err != nil {
		return nil, err
	}
	if debitErr != nil {
		return nil, debitErr
	}
	return dto, nil
}

// DefaultRejectionReason is recorded when an admin rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// Reject closes a payout with a reason. Approved or processing payouts get a
// refund entry while the refund policy is on.
func (s *service) Reject(ctx context.Context, actor types.Actor, payoutID uuid.UUID, reason string) (*PayoutDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}

	return s.transition(ctx, actor, payoutID, func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error) {
		if p.Status == enums.PayoutStatusCompleted || p.Status == enums.PayoutStatusCancelled {
			return "", payloads.PayoutEvent{}, stateConflict(p.Status, enums.PayoutStatusRejected)
		}

		var refunded int64
		if p.Status.Reserved() && s.policy.RefundOnReject {
			payoutRef := p.ID
			if _, err := s.ledger.Refund(ctx, tx, wallet.Entry{
				VendorID:    p.VendorID,
				AmountCents: p.AmountCents,
				Description: fmt.Sprintf("Refund for rejected payout %s", p.ID),
				PayoutID:    &payoutRef,
				DedupKey:    fmt.Sprintf("payout:%s:refund", p.ID),
			}); err != nil {
				return "", payloads.PayoutEvent{}, err
			}
			refunded = p.AmountCents
		}

		p.Status = enums.PayoutStatusRejected
		p.RejectionReason = &reason
		if err := s.repo.WithTx(tx).Update(ctx, p, "status", "rejection_reason"); err != nil {
			return "", payloads.PayoutEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payout")
		}
		return enums.EventPayoutRejected, payloads.PayoutEvent{Reason: &reason, RefundedCents: refunded}, nil
	})
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, page pagination.Page) (*PayoutList, error) {
	return s.list(ctx, ListFilter{VendorID: &vendorID, Page: page})
}

// List returns payouts across vendors. An empty status or "all" disables the
// status filter.
func (s *service) List(ctx context.Context, status string, page pagination.Page) (*PayoutList, error) {
	filter := ListFilter{Page: page}
	if raw := strings.TrimSpace(status); raw != "" && raw != "all" {
		parsed, err := enums.ParsePayoutStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout status").
				WithDetails(map[string]any{"status": raw})
		}
		filter.Status = &parsed
	}
	return s.list(ctx, filter)
}

func (s *service) list(ctx context.Context, filter ListFilter) (*PayoutList, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	out := &PayoutList{
		Payouts: make([]PayoutDTO, 0, len(rows)),
		Page:    pagination.NewPageInfo(filter.Page, total),
	}
	for i := range rows {
		out.Payouts = append(out.Payouts, *FromModel(&rows[i]))
	}
	return out, nil
}

type transitionFunc func(tx *gorm.DB, p *models.Payout) (enums.OutboxEventType, payloads.PayoutEvent, error)

// transition locks the payout, applies fn and queues the resulting event in
// the same transaction.
func (s *service) transition(ctx context.Context, actor types.Actor, payoutID uuid.UUID, fn transitionFunc) (*PayoutDTO, error) {
	var (
		payout *models.Payout
		from   enums.PayoutStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		p, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found").
					WithDetails(map[string]any{"payout_id": payoutID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		from = p.Status

		eventType, data, err := fn(tx, p)
		if err != nil {
			return err
		}
		payout = p
		return s.emit(ctx, tx, actor, eventType, p, from, data)
	})
	if err != nil {
		return nil, err
	}
	s.observe(ctx, payout, from)
	return FromModel(payout), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor types.Actor, eventType enums.OutboxEventType, p *models.Payout, from enums.PayoutStatus, data payloads.PayoutEvent) error {
	data.PayoutID = p.ID
	data.VendorID = p.VendorID
	data.AmountCents = p.AmountCents
	data.From = from
	data.To = p.Status
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   p.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, VendorID: actor.VendorID, Role: actor.Role.String()},
		Data:          data,
	})
}

func (s *service) observe(ctx context.Context, p *models.Payout, from enums.PayoutStatus) {
	fromLabel := from.String()
	if fromLabel == "" {
		fromLabel = "none"
	}
	if s.metrics != nil {
		s.metrics.ObservePayoutTransition(fromLabel, p.Status.String())
	}
	if s.logg != nil {
		logCtx := s.logg.WithPayoutID(ctx, p.ID.String())
		logCtx = s.logg.WithVendorID(logCtx, p.VendorID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"from":         fromLabel,
			"to":           p.Status.String(),
			"amount_cents": p.AmountCents,
		})
		s.logg.Info(logCtx, "payout transitioned")
	}
}

func (s *service) checkRequestRate(ctx context.Context, vendorID uuid.UUID) error {
	if s.limiter == nil || s.policy.RequestLimit <= 0 || s.policy.RequestWindow <= 0 {
		return nil
	}
	allowed, count, err := s.limiter.FixedWindowAllow(ctx, "payout_request:"+vendorID.String(), int64(s.policy.RequestLimit), s.policy.RequestWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many payout requests").
			WithDetails(map[string]any{"count": count, "limit": s.policy.RequestLimit})
	}
	return nil
}

func requireVendor(actor types.Actor) (uuid.UUID, error) {
	if actor.Role != enums.ActorRoleVendor || actor.VendorID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor role required")
	}
	return *actor.VendorID, nil
}

func requireAdmin(actor types.Actor) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func stateConflict(from, to enums.PayoutStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payout cannot move from %s to %s", from, to).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
