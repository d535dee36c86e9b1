package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/finpath/goalengine/internal/model"
)

// InsertSignalWithClient appends one signal row via the streaming inserter.
// The table is append-only; duplicates carrying the same dedup_key are left
// for downstream queries to collapse.
func InsertSignalWithClient(ctx context.Context, client *bigquery.Client, cfg Config, signal *model.Signal) error {
	if signal == nil {
		return fmt.Errorf("InsertSignal: signal is required")
	}

	inserter := client.Dataset(cfg.dataset()).Table("signals").Inserter()
	if err := inserter.Put(ctx, NewSignalRow(signal)); err != nil {
		return fmt.Errorf("InsertSignal: inserting row: %w", err)
	}
	return nil
}
