package store

import (
	"context"
	"fmt"
)

// LogSummary describes a packet log for resuming an authority or reporting
// on a follower.
type LogSummary struct {
	MaxVersion int64 `json:"max_version"` // highest to_version in the log
	Packets    int   `json:"packets"`
	Followers  int   `json:"followers"`
	Entities   int   `json:"entities"`
	Alive      int   `json:"alive"`
}

// Summarize returns counts and the highest version in the log. An
// authority resuming from this log must start its clock at MaxVersion.
func (s *Store) Summarize(ctx context.Context) (LogSummary, error) {
	var sum LogSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(to_version), 0), COUNT(*), COUNT(DISTINCT follower_id)
		FROM packets
	`).Scan(&sum.MaxVersion, &sum.Packets, &sum.Followers)
	if err != nil {
		return sum, fmt.Errorf("summarize packets: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN despawned_at = 0 THEN 1 ELSE 0 END), 0)
		FROM entities
	`).Scan(&sum.Entities, &sum.Alive)
	if err != nil {
		return sum, fmt.Errorf("summarize entities: %w", err)
	}
	return sum, nil
}
