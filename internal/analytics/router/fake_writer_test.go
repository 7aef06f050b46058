package router

import (
	"context"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
)

type fakeWriter struct {
	rows []types.LedgerEventRow
	err  error
}

func (f *fakeWriter) InsertLedgerEvents(_ context.Context, rows []types.LedgerEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}
