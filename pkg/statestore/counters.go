package statestore

import (
	"context"
	"fmt"
)

// IncrementCounter adds delta (positive or negative) to (tenant, day,
// user_id)'s counter, creating the row at delta if it doesn't exist yet, and
// returns the resulting count. Used for enqueue (+1), UNDO removal (-1), and
// stream-start clear decrements.
func (s *Store) IncrementCounter(ctx context.Context, tenant, day, userID string, delta int) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO daily_counters (tenant_id, day, user_id, count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, day, user_id)
		 DO UPDATE SET count = daily_counters.count + EXCLUDED.count
		 RETURNING count`,
		tenant, day, userID, delta,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("statestore: increment counter: %w", err)
	}
	return count, nil
}

// CountersForDay returns every user's counter for (tenant, day), used to
// build a state.replace snapshot's counters_today map.
func (s *Store) CountersForDay(ctx context.Context, tenant, day string) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id, count FROM daily_counters WHERE tenant_id = $1 AND day = $2`,
		tenant, day,
	)
	if err != nil {
		return nil, fmt.Errorf("statestore: counters for day: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("statestore: scan counter: %w", err)
		}
		out[userID] = count
	}
	return out, rows.Err()
}
