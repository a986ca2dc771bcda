package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// CurrentVersion returns the tenant's current command-log version, used to
// stamp the snapshot so subscribers know which version it reflects.
func (s *Store) CurrentVersion(ctx context.Context, tenant string) (int64, error) {
	var version int64
	err := s.q.QueryRowContext(ctx,
		`SELECT current_version FROM version_index WHERE tenant_id = $1`, tenant,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("statestore: current version: %w", err)
	}
	return version, nil
}

// Timezone returns the tenant's configured IANA timezone name.
func (s *Store) Timezone(ctx context.Context, tenant string) (string, error) {
	var tz string
	err := s.q.QueryRowContext(ctx, `SELECT timezone FROM tenants WHERE id = $1`, tenant).Scan(&tz)
	if err != nil {
		return "", fmt.Errorf("statestore: timezone: %w", err)
	}
	return tz, nil
}

// Snapshot implements sse.StateSnapshotter. It is used only on a ring miss,
// from a dedicated read-only transaction held outside the per-tenant writer
// lease, so it never contends with the Command Executor.
func (s *Store) Snapshot(ctx context.Context, tenant string) (domain.StateReplaceData, error) {
	if db, ok := s.q.(*sql.DB); ok {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
		if err != nil {
			return domain.StateReplaceData{}, fmt.Errorf("statestore: begin snapshot tx: %w", err)
		}
		defer tx.Rollback()
		s = &Store{q: tx, now: s.now}
	}

	version, err := s.CurrentVersion(ctx, tenant)
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	queue, err := s.ListQueued(ctx, tenant)
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	tz, err := s.Timezone(ctx, tenant)
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	counts, err := s.CountersForDay(ctx, tenant, TenantDay(s.now(), tz))
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	sortQueueByDisplayOrder(queue, counts)

	settings, err := s.GetSettings(ctx, tenant)
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	sessionStartedAt, err := s.OpenSessionStartedAt(ctx, tenant)
	if err != nil {
		return domain.StateReplaceData{}, err
	}

	return domain.StateReplaceData{
		Version:          version,
		Queue:            queue,
		CountersToday:    counts,
		Settings:         settings,
		SessionStartedAt: sessionStartedAt,
	}, nil
}

// sortQueueByDisplayOrder orders queue the way the overlay displays it: the
// redeemer with the fewest redemptions today goes first, ties broken by
// whoever redeemed earlier. ListQueued returns insertion order since it has
// no access to the day's counters; this is the one place both are in hand.
func sortQueueByDisplayOrder(queue []domain.QueueEntry, countersToday map[string]int) {
	sort.SliceStable(queue, func(i, j int) bool {
		ci, cj := countersToday[queue[i].User.ID], countersToday[queue[j].User.ID]
		if ci != cj {
			return ci < cj
		}
		return queue[i].EnqueuedAt.Before(queue[j].EnqueuedAt)
	})
}
