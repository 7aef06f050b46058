// Package admin serves the platform-wide aggregates shown to administrators.
package admin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Service exposes admin read models.
type Service interface {
	Dashboard(ctx context.Context, actor types.Actor) (*Dashboard, error)
}

// ServiceParams wires the admin service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("admin repository required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// Dashboard runs the aggregates concurrently. Each one reads committed data
// on its own, so counts across sections may be off by in-flight writes.
func (s *service) Dashboard(ctx context.Context, actor types.Actor) (*Dashboard, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var (
		vendors  map[enums.VendorStatus]int64
		products int64
		orders   OrderTotals
		payouts  map[enums.PayoutStatus]PayoutBucket
		revenue  int64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		vendors, err = s.repo.VendorsByStatus(groupCtx)
		return wrapAggregate(err, "count vendors")
	})
	group.Go(func() (err error) {
		products, err = s.repo.CountProducts(groupCtx)
		return wrapAggregate(err, "count products")
	})
	group.Go(func() (err error) {
		orders, err = s.repo.OrderTotals(groupCtx)
		return wrapAggregate(err, "aggregate orders")
	})
	group.Go(func() (err error) {
		payouts, err = s.repo.PayoutsByStatus(groupCtx)
		return wrapAggregate(err, "aggregate payouts")
	})
	group.Go(func() (err error) {
		revenue, err = s.repo.PlatformRevenue(groupCtx)
		return wrapAggregate(err, "sum platform revenue")
	})
	if err := group.Wait(); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "admin dashboard aggregate failed", err)
		}
		return nil, err
	}

	return buildDashboard(vendors, products, orders, payouts, revenue), nil
}

func wrapAggregate(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
