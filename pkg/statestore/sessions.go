package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// OpenSession opens a new stream session at startedAt unless one is already
// open, in which case it is a no-op (StreamOnline "open or continue"). The
// partial unique index on (tenant_id) WHERE ended_at IS NULL enforces at
// most one open session per tenant even under races.
func (s *Store) OpenSession(ctx context.Context, tenant string, startedAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO stream_sessions (tenant_id, started_at, ended_at)
		 SELECT $1, $2, NULL
		 WHERE NOT EXISTS (
		     SELECT 1 FROM stream_sessions WHERE tenant_id = $1 AND ended_at IS NULL
		 )`,
		tenant, startedAt,
	)
	if err != nil {
		return fmt.Errorf("statestore: open session: %w", err)
	}
	return nil
}

// CloseSession closes the tenant's currently open session, if any.
func (s *Store) CloseSession(ctx context.Context, tenant string, endedAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE stream_sessions SET ended_at = $2 WHERE tenant_id = $1 AND ended_at IS NULL`,
		tenant, endedAt,
	)
	if err != nil {
		return fmt.Errorf("statestore: close session: %w", err)
	}
	return nil
}

// OpenSessionStartedAt returns the start time of the tenant's currently open
// session, if any.
func (s *Store) OpenSessionStartedAt(ctx context.Context, tenant string) (*time.Time, error) {
	var startedAt time.Time
	err := s.q.QueryRowContext(ctx,
		`SELECT started_at FROM stream_sessions WHERE tenant_id = $1 AND ended_at IS NULL`,
		tenant,
	).Scan(&startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("statestore: open session started at: %w", err)
	}
	return &startedAt, nil
}

// BuildActivity assembles the Policy Engine's explicit recent-activity
// snapshot — the Policy Engine never reads storage itself, so the Command
// Executor reads on its behalf and passes the result in.
// lookbackSince bounds how far back LastRedemption entries are fetched;
// callers pass the event time minus the tenant's anti_spam_window_sec so the
// window check in pkg/policy always has what it needs.
func (s *Store) BuildActivity(ctx context.Context, tenant, day string, lookbackSince time.Time) (domain.Activity, error) {
	queued, err := s.ListQueued(ctx, tenant)
	if err != nil {
		return domain.Activity{}, err
	}

	counts, err := s.CountersForDay(ctx, tenant, day)
	if err != nil {
		return domain.Activity{}, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id, reward_id, MAX(enqueued_at) FROM queue_entries
		 WHERE tenant_id = $1 AND enqueued_at >= $2
		 GROUP BY user_id, reward_id`,
		tenant, lookbackSince,
	)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("statestore: build activity: %w", err)
	}
	defer rows.Close()

	lastRedemption := make(map[string]time.Time)
	for rows.Next() {
		var userID, rewardID string
		var at time.Time
		if err := rows.Scan(&userID, &rewardID, &at); err != nil {
			return domain.Activity{}, fmt.Errorf("statestore: scan last redemption: %w", err)
		}
		lastRedemption[domain.ActivityKey(userID, rewardID)] = at
	}
	if err := rows.Err(); err != nil {
		return domain.Activity{}, err
	}

	return domain.Activity{
		LastRedemption: lastRedemption,
		QueuedEntries:  queued,
		TodayCounts:    counts,
	}, nil
}
