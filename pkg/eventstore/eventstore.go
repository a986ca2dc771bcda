// Package eventstore is the durable, append-only record of raw inbound
// webhook notifications, keyed by their externally supplied message id. A
// uniqueness constraint on external_message_id is the sole idempotency
// signal: a duplicate insert is how a retried webhook is recognized.
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// ErrDuplicateMessage is returned by Insert when external_message_id has
// already been stored; the column is unique across all tenants.
var ErrDuplicateMessage = errors.New("eventstore: duplicate external_message_id")

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists EventRecords. Insert is called by the ingress handler in its
// own short transaction, separate from the Command Executor's transaction —
// storing the raw event and applying its effects are allowed to be two
// different transactions since the event row is what makes redelivery safe,
// not the state mutation.
type Store struct {
	q Queryer
}

// New wraps a Queryer (a *sql.DB for production use, or a *sql.Tx when the
// caller wants event storage folded into a larger transaction).
func New(q Queryer) *Store {
	return &Store{q: q}
}

// Insert stores a raw event record and returns its assigned id. Returns
// ErrDuplicateMessage (wrapping the underlying constraint violation) if
// external_message_id was already stored, letting the ingress handler return
// 204 without re-running the pipeline.
func (s *Store) Insert(ctx context.Context, rec domain.EventRecord) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO events (tenant_id, external_message_id, type, raw_payload, event_time, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.Tenant, rec.ExternalMessageID, rec.Type, rec.RawPayload, rec.EventTime, rec.ReceivedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateMessage
		}
		return 0, fmt.Errorf("eventstore: insert: %w", err)
	}
	return id, nil
}

// Prune deletes event records received before cutoff. Pruning event records
// never affects current_version — version_index is a separate table,
// untouched here.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("eventstore: prune: %w", err)
	}
	return res.RowsAffected()
}
