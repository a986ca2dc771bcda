// Package statestore holds the durable projection the Command Executor
// mutates and the SSE Hub's state.replace fallback reads: queue entries,
// daily counters, settings, and stream sessions. All writes happen inside
// the Command Executor's transaction; Snapshot alone uses its own dedicated
// read-only transaction, taken outside the per-tenant writer lease.
package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// ErrEntryNotFound is returned when a queue entry id has no matching row.
var ErrEntryNotFound = errors.New("statestore: entry not found")

// ErrAlreadyTerminal is returned when a status transition targets an entry
// already in COMPLETED or REMOVED — terminal states are absorbing.
var ErrAlreadyTerminal = errors.New("statestore: entry already terminal")

// ErrTenantNotFound is returned when a tenant id has no settings row.
var ErrTenantNotFound = errors.New("statestore: tenant not found")

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is the statestore repository bound to a Queryer (usually the
// executor's *sql.Tx).
type Store struct {
	q   Queryer
	now func() time.Time
}

// New wraps q.
func New(q Queryer) *Store {
	return &Store{q: q, now: time.Now}
}

// WithNow returns a copy of s that uses now() instead of time.Now, for tests.
func (s *Store) WithNow(now func() time.Time) *Store {
	return &Store{q: s.q, now: now}
}

// GetSettings loads the tenant's current settings.
func (s *Store) GetSettings(ctx context.Context, tenant string) (domain.Settings, error) {
	var raw []byte
	err := s.q.QueryRowContext(ctx, `SELECT settings FROM tenants WHERE id = $1`, tenant).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Settings{}, ErrTenantNotFound
		}
		return domain.Settings{}, fmt.Errorf("statestore: get settings: %w", err)
	}
	var settings domain.Settings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return domain.Settings{}, fmt.Errorf("statestore: unmarshal settings: %w", err)
		}
	}
	return settings, nil
}

// PutSettings overwrites the tenant's settings record.
func (s *Store) PutSettings(ctx context.Context, tenant string, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("statestore: marshal settings: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `UPDATE tenants SET settings = $2 WHERE id = $1`, tenant, raw)
	if err != nil {
		return fmt.Errorf("statestore: put settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("statestore: put settings rows affected: %w", err)
	}
	if n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// InsertQueueEntry inserts a new QUEUED entry.
func (s *Store) InsertQueueEntry(ctx context.Context, entry domain.QueueEntry) error {
	var redemptionID interface{}
	if entry.RedemptionID != "" {
		redemptionID = entry.RedemptionID
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO queue_entries
		 (id, tenant_id, user_id, user_login, user_display, user_avatar, reward_id,
		  redemption_id, enqueued_at, status, status_reason, managed, last_updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		entry.ID, entry.Tenant, entry.User.ID, entry.User.Login, entry.User.DisplayName, entry.User.Avatar,
		entry.RewardID, redemptionID, entry.EnqueuedAt, entry.Status, string(entry.StatusReason),
		entry.Managed, entry.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("statestore: insert queue entry: %w", err)
	}
	return nil
}

// GetQueueEntry loads a single entry by id.
func (s *Store) GetQueueEntry(ctx context.Context, tenant, entryID string) (domain.QueueEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, user_login, user_display, user_avatar, reward_id,
		        COALESCE(redemption_id, ''), enqueued_at, status, status_reason, managed, last_updated_at
		 FROM queue_entries WHERE tenant_id = $1 AND id = $2`,
		tenant, entryID,
	)
	return scanQueueEntry(row)
}

// FindQueueEntryByRedemption looks up the entry for a given redemption id, if any.
func (s *Store) FindQueueEntryByRedemption(ctx context.Context, tenant, redemptionID string) (*domain.QueueEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, user_login, user_display, user_avatar, reward_id,
		        COALESCE(redemption_id, ''), enqueued_at, status, status_reason, managed, last_updated_at
		 FROM queue_entries WHERE tenant_id = $1 AND redemption_id = $2`,
		tenant, redemptionID,
	)
	e, err := scanQueueEntry(row)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListQueued returns the tenant's currently QUEUED entries in insertion
// order. The (daily_count ASC, enqueued_at ASC) display order is not
// applied here — it's a derived view, not a stored one, since it depends on
// counters this query doesn't fetch. Snapshot sorts by it once it has both
// in hand.
func (s *Store) ListQueued(ctx context.Context, tenant string) ([]domain.QueueEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tenant_id, user_id, user_login, user_display, user_avatar, reward_id,
		        COALESCE(redemption_id, ''), enqueued_at, status, status_reason, managed, last_updated_at
		 FROM queue_entries WHERE tenant_id = $1 AND status = $2 ORDER BY enqueued_at ASC`,
		tenant, domain.StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("statestore: list queued: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransitionStatus moves entryID from QUEUED to newStatus, conditional on its
// current status still being QUEUED — the same OCC discipline as the
// version-index increment: the UPDATE's WHERE clause and the rows-affected
// check together make the transition atomic and reject a second attempt on
// an already-terminal entry.
func (s *Store) TransitionStatus(ctx context.Context, tenant, entryID string, newStatus domain.EntryStatus, reason domain.StatusReason, updatedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE queue_entries SET status = $3, status_reason = $4, last_updated_at = $5
		 WHERE tenant_id = $1 AND id = $2 AND status = $6`,
		tenant, entryID, newStatus, string(reason), updatedAt, domain.StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("statestore: transition status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("statestore: transition status rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetQueueEntry(ctx, tenant, entryID); errors.Is(err, ErrEntryNotFound) {
			return ErrEntryNotFound
		}
		return ErrAlreadyTerminal
	}
	return nil
}

// SetManaged flips the managed flag on an entry (RedemptionUpdate reconciliation).
func (s *Store) SetManaged(ctx context.Context, tenant, entryID string, managed bool) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE queue_entries SET managed = $3 WHERE tenant_id = $1 AND id = $2`,
		tenant, entryID, managed,
	)
	if err != nil {
		return fmt.Errorf("statestore: set managed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("statestore: set managed rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func scanQueueEntry(row *sql.Row) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var statusReason string
	err := row.Scan(&e.ID, &e.Tenant, &e.User.ID, &e.User.Login, &e.User.DisplayName, &e.User.Avatar,
		&e.RewardID, &e.RedemptionID, &e.EnqueuedAt, &e.Status, &statusReason, &e.Managed, &e.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.QueueEntry{}, ErrEntryNotFound
		}
		return domain.QueueEntry{}, fmt.Errorf("statestore: scan queue entry: %w", err)
	}
	e.StatusReason = domain.StatusReason(statusReason)
	return e, nil
}

func scanQueueEntryRows(rows *sql.Rows) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var statusReason string
	err := rows.Scan(&e.ID, &e.Tenant, &e.User.ID, &e.User.Login, &e.User.DisplayName, &e.User.Avatar,
		&e.RewardID, &e.RedemptionID, &e.EnqueuedAt, &e.Status, &statusReason, &e.Managed, &e.LastUpdatedAt)
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("statestore: scan queue entry: %w", err)
	}
	e.StatusReason = domain.StatusReason(statusReason)
	return e, nil
}
