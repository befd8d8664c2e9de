package memory

import (
	"context"
	"fmt"
	"time"
)

// Compact runs the scheduled maintenance pass spec §4.11 describes:
// promote aging working-tier rows into long-term summaries, then prune
// low-importance long-term rows. It runs only when a caller invokes it:
// cmd/milton registers no scheduler trigger that calls Compact.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.promoteWorking(ctx); err != nil {
		return fmt.Errorf("promote working: %w", err)
	}
	if err := s.pruneLongTerm(ctx); err != nil {
		return fmt.Errorf("prune long-term: %w", err)
	}
	return nil
}

// promoteWorking summarizes working rows older than WorkingPromotionAge
// whose importance is at or above WorkingPromotionScore into one long-term
// row per topic cluster (spec §4.11: "per topic cluster"). Clustering here
// groups by the row's category field, the cheapest stable cluster key
// available without a learned topic model.
func (s *Store) promoteWorking(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention.WorkingPromotionAge)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, category, content, tags, importance
FROM memory_records
WHERE tier = ? AND created_at < ? AND importance >= ?`,
		TierWorking, cutoff, s.retention.WorkingPromotionScore)
	if err != nil {
		return err
	}

	clusters := map[string][]Record{}
	var consumedIDs []int64
	for rows.Next() {
		var r Record
		var tagsJSON string
		if err := rows.Scan(&r.ID, &r.Category, &r.Content, &tagsJSON, &r.Importance); err != nil {
			rows.Close()
			return err
		}
		key := r.Category
		if key == "" {
			key = "uncategorized"
		}
		clusters[key] = append(clusters[key], r)
		consumedIDs = append(consumedIDs, r.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for category, members := range clusters {
		summary, importance, tags := summarizeCluster(members)
		if err := s.AddLongTerm(ctx, category, summary, importance, tags); err != nil {
			return err
		}
	}

	for _, id := range consumedIDs {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// summarizeCluster concatenates a cluster's content into one summary and
// takes the max importance and union of tags as the promoted row's values.
func summarizeCluster(members []Record) (summary string, importance float64, tags []string) {
	tagSet := map[string]bool{}
	for i, r := range members {
		if i > 0 {
			summary += " "
		}
		summary += r.Content
		if r.Importance > importance {
			importance = r.Importance
		}
		for _, t := range r.Tags {
			tagSet[t] = true
		}
	}
	for t := range tagSet {
		tags = append(tags, t)
	}
	return summary, importance, tags
}

// pruneLongTerm removes long-term rows whose importance has fallen below
// LongTermPruneScore (spec §3: "long-term... may be pruned when importance
// < 0.3").
func (s *Store) pruneLongTerm(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE tier = ? AND importance < ?`,
		TierLong, s.retention.LongTermPruneScore)
	return err
}
