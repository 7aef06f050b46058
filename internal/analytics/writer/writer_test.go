package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
)

func TestNewWriterValidation(t *testing.T) {
	_, err := New(nil, Config{Table: "ledger_events"})
	require.Error(t, err)

	_, err = New(&fakeInserter{}, Config{Table: " "})
	require.Error(t, err)

	w, err := New(&fakeInserter{}, Config{Table: "ledger_events", RetryPolicy: RetryPolicy{InitialBackoff: time.Second, MaximumBackoff: time.Millisecond}})
	require.NoError(t, err)
	require.Equal(t, defaultChunkSize, w.chunkSize)
	require.Equal(t, defaultMaxAttempts, w.retry.MaxAttempts)
	require.Equal(t, time.Second, w.retry.MaximumBackoff)
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	require.NoError(t, err)
	require.True(t, nj.Valid)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	require.False(t, nj.Valid)

	raw := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	require.Equal(t, string(raw), nj.JSONVal)

	nj, err = EncodeJSON(json.RawMessage(nil))
	require.NoError(t, err)
	require.False(t, nj.Valid)
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	w, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	require.NoError(t, w.InsertLedgerEvents(context.Background(), []types.LedgerEventRow{{EventID: "1"}}))
	require.Len(t, fake.calls, 2)
	require.Equal(t, "ledger_events", fake.calls[1].table)
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	w, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := w.InsertLedgerEvents(context.Background(), []types.LedgerEventRow{{EventID: "1"}})
	require.ErrorContains(t, err, "insert ledger_events rows")
	require.Len(t, fake.calls, 1)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	w, fake := newWriterWithFakeInserter(t)
	unavailable := status.Error(codes.Unavailable, "try later")
	fake.responses = []error{unavailable, unavailable, unavailable, nil}

	err := w.InsertLedgerEvents(context.Background(), []types.LedgerEventRow{{EventID: "1"}})
	require.Error(t, err)
	require.Len(t, fake.calls, defaultMaxAttempts)
}

func TestWriterChunksRows(t *testing.T) {
	w, fake := newWriterWithFakeInserter(t)
	w.chunkSize = 2

	rows := []types.LedgerEventRow{{EventID: "1"}, {EventID: "2"}, {EventID: "3"}}
	require.NoError(t, w.InsertLedgerEvents(context.Background(), rows))
	require.Len(t, fake.calls, 2)
	require.Equal(t, 2, fake.calls[0].rowCount)
	require.Equal(t, 1, fake.calls[1].rowCount)

	saver, ok := fake.rows[0].(*cbigquery.StructSaver)
	require.True(t, ok)
	require.Equal(t, "1:0", saver.InsertID)
}

func TestWriterHonoursCanceledContext(t *testing.T) {
	w, fake := newWriterWithFakeInserter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.InsertLedgerEvents(ctx, []types.LedgerEventRow{{EventID: "1"}})
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, fake.calls)
}

func TestInsertIDIncludesVendor(t *testing.T) {
	vendor := "a1b2"
	require.Equal(t, "evt:a1b2", InsertID(types.LedgerEventRow{EventID: "evt", VendorID: &vendor}, 3))
	require.Equal(t, "evt:3", InsertID(types.LedgerEventRow{EventID: "evt"}, 3))
	require.Empty(t, InsertID(types.LedgerEventRow{}, 0))
}

func TestIsRetryableBigQueryError(t *testing.T) {
	require.True(t, isRetryableBigQueryError(&googleapi.Error{Code: http.StatusTooManyRequests}))
	require.False(t, isRetryableBigQueryError(&googleapi.Error{Code: http.StatusForbidden}))
	require.True(t, isRetryableBigQueryError(status.Error(codes.ResourceExhausted, "quota")))
	require.False(t, isRetryableBigQueryError(status.Error(codes.InvalidArgument, "bad row")))
	require.False(t, isRetryableBigQueryError(errors.New("plain")))
	require.False(t, isRetryableBigQueryError(nil))
}

func TestRetryableNestedRowErrors(t *testing.T) {
	transientRow := cbigquery.RowInsertionError{
		InsertID: "a:0",
		Errors:   cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}},
	}
	permanentRow := cbigquery.RowInsertionError{
		InsertID: "a:1",
		Errors:   cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}},
	}

	require.True(t, isRetryableBigQueryError(cbigquery.PutMultiError{transientRow}))
	require.False(t, isRetryableBigQueryError(cbigquery.PutMultiError{transientRow, permanentRow}))
	require.False(t, isRetryableBigQueryError(cbigquery.PutMultiError{}))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second}.withDefaults()
	require.Equal(t, defaultMaxAttempts, p.MaxAttempts)
	require.Equal(t, defaultMaximumBackoff, p.MaximumBackoff)

	bo := p.backoff()
	require.LessOrEqual(t, bo.Pause(), time.Second)
}

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	rows      []any
	index     int
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	f.rows = append(f.rows, rows...)
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	w, err := New(fake, Config{
		Table: "ledger_events",
		RetryPolicy: RetryPolicy{
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return w, fake
}

func TestLedgerEventsTableSpec(t *testing.T) {
	spec, err := LedgerEventsTable("ledger_events")
	require.NoError(t, err)
	require.Equal(t, "occurred_at", spec.PartitionField)
	require.Equal(t, []string{"vendor_id", "event_type"}, spec.ClusterBy)

	names := make([]string, 0, len(spec.Schema))
	for _, field := range spec.Schema {
		names = append(names, field.Name)
	}
	require.Contains(t, names, "event_id")
	require.Contains(t, names, "net_cents")
	require.Contains(t, names, "payload")
}
