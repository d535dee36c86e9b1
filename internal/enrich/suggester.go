// Package enrich proposes new merchant rules for descriptions the matcher
// could not classify, using Gemini. It is offline/admin tooling: the matcher
// itself never calls out during a lookup, so enrichment happens strictly
// between matching runs.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/finpath/goalengine/internal/matcher"
	"github.com/finpath/goalengine/internal/model"
)

// DefaultModelName is the Gemini model used for rule suggestions.
const DefaultModelName = "gemini-2.0-flash"

// RuleSuggester asks the model for a merchant rule covering an unmatched
// description.
type RuleSuggester struct {
	modelName string
}

// NewRuleSuggester creates a suggester with the default model.
func NewRuleSuggester() *RuleSuggester {
	return &RuleSuggester{modelName: DefaultModelName}
}

// Suggest proposes one merchant rule for the given unmatched description,
// constrained to the provided category list.
func (s *RuleSuggester) Suggest(ctx context.Context, description string, categories []string) (model.MerchantRule, error) {
	if strings.TrimSpace(description) == "" {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: description is required")
	}

	prompt := buildSuggestPrompt(description, categories)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, s.modelName, contents, nil)
	if err != nil {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: empty response from model")
	}

	var out struct {
		MerchantName string `json:"merchant_name"`
		Category     string `json:"category"`
		Subcategory  string `json:"subcategory"`
		Keyword      string `json:"keyword"`
	}
	clean := cleanModelJSON(rawText)
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	rule := model.MerchantRule{
		Name:        matcher.Normalize(out.MerchantName),
		Category:    out.Category,
		Subcategory: out.Subcategory,
		Keyword:     matcher.Normalize(out.Keyword),
	}
	if rule.Name == "" && rule.Keyword == "" {
		return model.MerchantRule{}, fmt.Errorf("suggest rule: model returned neither a merchant name nor a keyword")
	}
	return rule, nil
}

func buildSuggestPrompt(description string, categories []string) string {
	var b strings.Builder
	b.WriteString("You maintain a merchant-to-category rule table for a personal finance app.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Given one raw transaction description, propose ONE rule.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text, no Markdown fences).\n")
	b.WriteString("- Output a single JSON object with these fields:\n")
	b.WriteString("  - \"merchant_name\": string, the normalized merchant name, or \"\" if unclear\n")
	b.WriteString("  - \"category\": string, one of the allowed categories below\n")
	b.WriteString("  - \"subcategory\": string, or \"\" if none applies\n")
	b.WriteString("  - \"keyword\": string, a lowercase substring that identifies this merchant in descriptions, or \"\"\n\n")

	if len(categories) > 0 {
		b.WriteString("Use ONLY the following categories:\n")
		for _, c := range categories {
			b.WriteString("  - " + c + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Description:\n")
	b.WriteString(description)
	b.WriteString("\n\nOutput must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model added junk around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
			s = strings.TrimSpace(s)
		}
	}
	return s
}
