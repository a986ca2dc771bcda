// Package commandlog is the append-only, per-tenant strictly-increasing
// command log plus its version index. AppendNext is always called from
// inside the Command Executor's transaction: version allocation, the log
// append, and the state mutation commit or roll back together, so a version
// is never assigned ahead of a mutation that might still fail.
package commandlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// ErrOpIDConflict is returned when a differing command is already recorded
// under the same (tenant, op_id) pair — the admin mutation precondition
// failure (412 op_id_conflict).
var ErrOpIDConflict = errors.New("commandlog: op_id conflict")

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Log provides per-tenant version allocation and command-log append,
// generalizing the teacher's conditional-UPDATE-with-rows-affected-check
// pattern (ClaimNextPendingSession's boolean status flip) to an integer
// version increment.
type Log struct {
	q Queryer
}

// New wraps a Queryer — almost always the *sql.Tx the executor is holding.
func New(q Queryer) *Log {
	return &Log{q: q}
}

// FindByOpID looks up an existing command log entry for (tenant, op_id).
// Returns (nil, nil) if none exists.
func (l *Log) FindByOpID(ctx context.Context, tenant, opID string) (*domain.CommandLogEntry, error) {
	if opID == "" {
		return nil, nil
	}
	row := l.q.QueryRowContext(ctx,
		`SELECT tenant_id, version, op_id, type, payload, created_at
		 FROM command_log WHERE tenant_id = $1 AND op_id = $2`,
		tenant, opID,
	)
	var e domain.CommandLogEntry
	var opIDVal sql.NullString
	if err := row.Scan(&e.Tenant, &e.Version, &opIDVal, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("commandlog: find by op_id: %w", err)
	}
	e.OpID = opIDVal.String
	return &e, nil
}

// AppendNext increments the tenant's version index and appends a new command
// log row at the resulting version, all within the caller's transaction. The
// version_index row for tenant must already exist (created alongside the
// tenant out of band); AppendNext never creates tenants.
func (l *Log) AppendNext(ctx context.Context, tenant, opID, cmdType string, payload []byte, createdAt time.Time) (int64, error) {
	var version int64
	err := l.q.QueryRowContext(ctx,
		`UPDATE version_index SET current_version = current_version + 1
		 WHERE tenant_id = $1
		 RETURNING current_version`,
		tenant,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("commandlog: unknown tenant %q", tenant)
		}
		return 0, fmt.Errorf("commandlog: increment version: %w", err)
	}

	var opIDArg interface{}
	if opID != "" {
		opIDArg = opID
	}

	_, err = l.q.ExecContext(ctx,
		`INSERT INTO command_log (tenant_id, version, op_id, type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tenant, version, opIDArg, cmdType, payload, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrOpIDConflict
		}
		return 0, fmt.Errorf("commandlog: append: %w", err)
	}
	return version, nil
}

// Prune deletes command log entries older than cutoff. Never touches
// version_index, so pruning cannot reduce current_version.
func (l *Log) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.q.ExecContext(ctx, `DELETE FROM command_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("commandlog: prune: %w", err)
	}
	return res.RowsAffected()
}
