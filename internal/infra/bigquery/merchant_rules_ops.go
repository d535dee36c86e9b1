package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/finpath/goalengine/internal/model"
)

// ListMerchantRulesWithClient returns the full merchant-rule table in a
// stable order; the matcher uses table order as keyword precedence.
func ListMerchantRulesWithClient(ctx context.Context, client *bigquery.Client, cfg Config) ([]model.MerchantRule, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  merchant_name,
		  category,
		  subcategory,
		  keyword
		FROM %s.merchant_rules
		ORDER BY merchant_name
	`, cfg.dataset()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMerchantRules: query read: %w", err)
	}

	var rules []model.MerchantRule
	for {
		var r MerchantRuleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMerchantRules: iter next: %w", err)
		}
		rules = append(rules, r.ToMerchantRule())
	}

	return rules, nil
}

// InsertMerchantRulesWithClient appends rules to the table, the bulk-seed
// path used by the CLI.
func InsertMerchantRulesWithClient(ctx context.Context, client *bigquery.Client, cfg Config, rules []model.MerchantRule) error {
	if len(rules) == 0 {
		return nil
	}

	rows := make([]*MerchantRuleRow, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, &MerchantRuleRow{
			MerchantName: r.Name,
			Category:     r.Category,
			Subcategory:  r.Subcategory,
			Keyword:      r.Keyword,
		})
	}

	inserter := client.Dataset(cfg.dataset()).Table("merchant_rules").Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertMerchantRules: inserting rows: %w", err)
	}
	return nil
}
