package writer

import (
	"context"
	"errors"
	"net/http"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RetryPolicy bounds the retries of one insert request. Waits grow
// exponentially with jitter from InitialBackoff up to MaximumBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) backoff() *gax.Backoff {
	return &gax.Backoff{Initial: p.InitialBackoff, Max: p.MaximumBackoff, Multiplier: 2}
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	bo := w.retry.backoff()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil || attempt >= w.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return err
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return err
		}
	}
}

// isRetryableBigQueryError reports whether every underlying failure is
// transient. Insert errors nest per row, so one permanent row error makes
// the whole request permanent.
func isRetryableBigQueryError(err error) bool {
	leaves := leafErrors(err)
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		if !transient(leaf) {
			return false
		}
	}
	return true
}

func leafErrors(err error) []error {
	if err == nil {
		return nil
	}
	// both slice types implement error on the value receiver
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return flatten(multi)
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		var out []error
		for _, rowErr := range put {
			out = append(out, flatten(rowErr.Errors)...)
		}
		return out
	}
	var row *cbigquery.RowInsertionError
	if errors.As(err, &row) && row != nil {
		return flatten(row.Errors)
	}
	return []error{err}
}

func flatten(errs cbigquery.MultiError) []error {
	var out []error
	for _, inner := range errs {
		out = append(out, leafErrors(inner)...)
	}
	return out
}

func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		switch grpcErr.GRPCStatus().Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
