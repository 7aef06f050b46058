package payouts

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/middleware"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	internalpayouts "github.com/angelmondragon/vendorledger/internal/payouts"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Request opens a payout for the caller vendor.
func Request(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		actor, err := middleware.RequireVendor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalpayouts.RequestPayoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Request(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// History lists the caller vendor's payouts, newest first.
func History(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		actor, err := middleware.RequireVendor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForVendor(r.Context(), *actor.VendorID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminList lists payouts across vendors with an optional ?status= filter.
func AdminList(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))

		list, err := svc.List(r.Context(), status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type transitionCall func(ctx context.Context, actor types.Actor, payoutID uuid.UUID, r *http.Request) (*internalpayouts.PayoutDTO, error)

// transition resolves the caller and payout id, then runs call.
func transition(svc internalpayouts.Service, logg *logger.Logger, call transitionCall) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPayoutID(ctx, payoutID.String())
		}
		payout, err := call(ctx, actor, payoutID, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// Cancel withdraws the caller vendor's pending payout.
func Cancel(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, actor types.Actor, id uuid.UUID, _ *http.Request) (*internalpayouts.PayoutDTO, error) {
		return svc.Cancel(ctx, actor, id)
	})
}

func Approve(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, actor types.Actor, id uuid.UUID, _ *http.Request) (*internalpayouts.PayoutDTO, error) {
		return svc.Approve(ctx, actor, id)
	})
}

func StartProcessing(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, actor types.Actor, id uuid.UUID, _ *http.Request) (*internalpayouts.PayoutDTO, error) {
		return svc.StartProcessing(ctx, actor, id)
	})
}

// Process completes a payout and debits the vendor wallet.
func Process(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, actor types.Actor, id uuid.UUID, r *http.Request) (*internalpayouts.PayoutDTO, error) {
		var input internalpayouts.ProcessPayoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		return svc.Process(ctx, actor, id, validators.CleanText(input.TransactionID, 200))
	})
}

func Reject(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, actor types.Actor, id uuid.UUID, r *http.Request) (*internalpayouts.PayoutDTO, error) {
		var input internalpayouts.RejectPayoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		return svc.Reject(ctx, actor, id, validators.CleanText(input.Reason, 500))
	})
}
