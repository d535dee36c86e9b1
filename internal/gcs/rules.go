// Package gcs loads merchant-rule seed files from Google Cloud Storage. It
// is the bulk path for populating or refreshing the merchant-rule table;
// after a refresh, callers must clear the matcher cache so the new rules
// become observable.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/finpath/goalengine/internal/model"
)

// ruleFile is the on-disk JSON shape of one merchant rule.
type ruleFile struct {
	MerchantName string `json:"merchant_name"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	Keyword      string `json:"keyword,omitempty"`
}

// LoadMerchantRules downloads a JSON array of merchant rules from the given
// bucket/object. File order is preserved; the matcher uses it as keyword
// precedence.
func LoadMerchantRules(ctx context.Context, bucketName, objectName string) ([]model.MerchantRule, error) {
	data, err := downloadObject(ctx, bucketName, objectName)
	if err != nil {
		return nil, err
	}
	return DecodeMerchantRules(data)
}

// DecodeMerchantRules parses a JSON rules document into domain rules.
func DecodeMerchantRules(data []byte) ([]model.MerchantRule, error) {
	var raw []ruleFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode merchant rules: %w", err)
	}

	rules := make([]model.MerchantRule, 0, len(raw))
	for _, r := range raw {
		if r.MerchantName == "" && r.Keyword == "" {
			continue
		}
		rules = append(rules, model.MerchantRule{
			Name:        r.MerchantName,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Keyword:     r.Keyword,
		})
	}
	return rules, nil
}

func downloadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}
