package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/finpath/goalengine/internal/model"
)

// ListGoalsWithClient returns the user's goal portfolio ordered by priority
// rank using the provided BigQuery client.
func ListGoalsWithClient(ctx context.Context, client *bigquery.Client, cfg Config, userID string) ([]model.Goal, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  goal_id,
		  user_id,
		  name,
		  estimated_cost,
		  current_savings,
		  priority_rank,
		  drift_pct,
		  drift_amount,
		  monthly_investible_capacity
		FROM %s.goals
		WHERE user_id = @user_id
		ORDER BY priority_rank, name
	`, cfg.dataset()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: query read: %w", err)
	}

	var goals []model.Goal
	for {
		var r GoalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListGoals: iter next: %w", err)
		}
		goals = append(goals, r.ToGoal())
	}

	return goals, nil
}
