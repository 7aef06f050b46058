package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/vendorledger/pkg/bigquery"
)

// defaultChunkSize stays well under the 10k rows per insertAll request limit.
const defaultChunkSize = 500

type Config struct {
	Table       string
	ChunkSize   int
	RetryPolicy RetryPolicy
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams ledger_events rows. Every row carries an insert id
// derived from its event, so a redelivered message is deduplicated on a best
// effort basis by the streaming API.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	chunkSize int
	retry     RetryPolicy
	schema    cbigquery.Schema
}

func New(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("ledger events table is required")
	}
	schema, err := ledgerEventsSchema()
	if err != nil {
		return nil, err
	}

	w := &BigQueryWriter{
		client:    client,
		table:     table,
		chunkSize: cfg.ChunkSize,
		retry:     cfg.RetryPolicy.withDefaults(),
		schema:    schema,
	}
	if w.chunkSize <= 0 {
		w.chunkSize = defaultChunkSize
	}
	return w, nil
}

func ledgerEventsSchema() (cbigquery.Schema, error) {
	schema, err := cbigquery.InferSchema(types.LedgerEventRow{})
	if err != nil {
		return nil, fmt.Errorf("infer ledger events schema: %w", err)
	}
	return schema, nil
}

// LedgerEventsTable describes ledger_events: daily partitions on occurred_at,
// clustered for per-vendor reporting.
func LedgerEventsTable(name string) (pkgbigquery.TableSpec, error) {
	schema, err := ledgerEventsSchema()
	if err != nil {
		return pkgbigquery.TableSpec{}, err
	}
	return pkgbigquery.TableSpec{
		Name:           name,
		Schema:         schema,
		PartitionField: "occurred_at",
		ClusterBy:      []string{"vendor_id", "event_type"},
	}, nil
}

// InsertLedgerEvents returns once every chunk is accepted, so the caller may
// ack the source message afterwards.
func (w *BigQueryWriter) InsertLedgerEvents(ctx context.Context, rows []types.LedgerEventRow) error {
	for start := 0; start < len(rows); start += w.chunkSize {
		end := min(start+w.chunkSize, len(rows))
		if err := w.insert(ctx, w.savers(rows, start, end)); err != nil {
			return fmt.Errorf("insert %s rows: %w", w.table, err)
		}
	}
	return nil
}

func (w *BigQueryWriter) savers(rows []types.LedgerEventRow, start, end int) []any {
	out := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &cbigquery.StructSaver{
			Schema:   w.schema,
			InsertID: InsertID(rows[i], i),
			Struct:   rows[i],
		})
	}
	return out
}

// InsertID identifies a row for streaming dedup. An order split fans out into
// one row per vendor, so the vendor id (or the row position) is appended.
func InsertID(row types.LedgerEventRow, index int) string {
	switch {
	case row.EventID == "":
		return ""
	case row.VendorID != nil && *row.VendorID != "":
		return row.EventID + ":" + *row.VendorID
	default:
		return fmt.Sprintf("%s:%d", row.EventID, index)
	}
}
