package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// TableSpec describes a table EnsureTable may create. A non-empty
// PartitionField becomes daily time partitioning.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
	ClusterBy      []string
}

func (s TableSpec) metadata() *bigquery.TableMetadata {
	meta := &bigquery.TableMetadata{Schema: s.Schema}
	if s.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: s.PartitionField,
		}
	}
	if len(s.ClusterBy) > 0 {
		meta.Clustering = &bigquery.Clustering{Fields: s.ClusterBy}
	}
	return meta
}

// EnsureTable creates the table when missing. An existing table is left
// untouched even if its schema differs.
func (c *Client) EnsureTable(ctx context.Context, spec TableSpec) error {
	if !c.ready() {
		return errClientNotInitialized
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errTableNameRequired
	}

	exists, err := c.tableExists(ctx, name)
	if err != nil || exists {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if err := c.dataset.Table(name).Create(ctx, spec.metadata()); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			// another replica created it first
			return nil
		}
		return fmt.Errorf("creating table %q: %w", name, err)
	}
	return nil
}

// InsertRows streams rows into table. Each row must be a ValueSaver or a
// struct the inserter can infer a schema from.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if !c.ready() {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) tableExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := c.dataset.Table(name).Metadata(ctx)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("checking table %q: %w", name, err)
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
