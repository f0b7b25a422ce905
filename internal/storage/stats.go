package storage

import (
	"context"
	"fmt"
	"time"
)

// ProfileStats holds aggregate statistics about a profile's stored history.
type ProfileStats struct {
	TotalSessions  int64      `json:"total_sessions"`
	TotalSets      int64      `json:"total_sets"`
	CompletedSets  int64      `json:"completed_sets"`
	TotalMinutes   int64      `json:"total_minutes"`
	EarliestDate   *time.Time `json:"earliest_date"`
	LatestDate     *time.Time `json:"latest_date"`
	ReplayedWrites int64      `json:"replayed_writes"`
}

// GetProfileStats returns aggregate statistics for a profile.
func (db *DB) GetProfileStats(ctx context.Context, profileID int) (*ProfileStats, error) {
	stats := &ProfileStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_sets), 0), COALESCE(SUM(completed_sets), 0),
		        COALESCE(SUM(duration_minutes), 0), MIN(session_date), MAX(session_date)
		 FROM session_history WHERE profile_id = $1`, profileID,
	).Scan(&stats.TotalSessions, &stats.TotalSets, &stats.CompletedSets,
		&stats.TotalMinutes, &stats.EarliestDate, &stats.LatestDate)
	if err != nil {
		return nil, fmt.Errorf("aggregating session history: %w", err)
	}

	// Redeliveries from client queues
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM write_logs WHERE profile_id = $1 AND replayed`, profileID,
	).Scan(&stats.ReplayedWrites)
	if err != nil {
		return nil, fmt.Errorf("counting replayed writes: %w", err)
	}

	return stats, nil
}
