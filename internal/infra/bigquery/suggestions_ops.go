package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/finpath/goalengine/internal/model"
)

// InsertSuggestionWithClient appends one suggestion row via the streaming
// inserter.
func InsertSuggestionWithClient(ctx context.Context, client *bigquery.Client, cfg Config, suggestion *model.Suggestion) error {
	if suggestion == nil {
		return fmt.Errorf("InsertSuggestion: suggestion is required")
	}

	inserter := client.Dataset(cfg.dataset()).Table("suggestions").Inserter()
	if err := inserter.Put(ctx, NewSuggestionRow(suggestion)); err != nil {
		return fmt.Errorf("InsertSuggestion: inserting row: %w", err)
	}
	return nil
}
