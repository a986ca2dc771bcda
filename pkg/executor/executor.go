// Package executor is the single-writer-per-tenant Command Executor: it
// applies a batch of Commands produced by the Policy Engine (or an admin
// endpoint) inside one transaction, appends the resulting entries to the
// command log, publishes the derived patches via pg_notify in the same
// transaction, and only after commit fans them out to local SSE subscribers.
// Per-tenant serialization is enforced by a lease (lease.go), generalizing
// the teacher's WorkerPool.activeSessions mutual-exclusion map.
package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/broadcastqueue/eventsubd/pkg/clock"
	"github.com/broadcastqueue/eventsubd/pkg/commandlog"
	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/idgen"
	"github.com/broadcastqueue/eventsubd/pkg/projector"
	"github.com/broadcastqueue/eventsubd/pkg/sse"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
)

// ErrOpIDConflict re-exports commandlog's sentinel so callers only need to
// import the executor package.
var ErrOpIDConflict = commandlog.ErrOpIDConflict

// RedemptionUpdater is the narrow interface onto the outbound Twitch Helix
// API; calling the real Helix API is out of scope for this repository, so
// it's treated as an opaque external collaborator and invoked without
// knowledge of its transport.
type RedemptionUpdater interface {
	UpdateRedemption(ctx context.Context, tenant, redemptionID string, mode domain.RedemptionMode) error
}

// Publisher is the subset of *sse.Hub the executor needs, so it doesn't
// depend on the SSE package's subscription machinery.
type Publisher interface {
	Publish(tenant string, patches []domain.Patch)
}

// Executor applies Commands against the state store inside a transaction per
// call, appending to the command log and notifying subscribers on commit.
type Executor struct {
	db          *sql.DB
	redemptions RedemptionUpdater
	publisher   Publisher
	clock       clock.Clock
	idgen       idgen.Generator
	leases      *leases
}

// New wires an Executor. redemptions may be nil in deployments that disable
// the external capability (the command is then recorded with
// result=skipped, never blocking the log append).
func New(db *sql.DB, redemptions RedemptionUpdater, publisher Publisher, clk clock.Clock, ids idgen.Generator) *Executor {
	return &Executor{
		db:          db,
		redemptions: redemptions,
		publisher:   publisher,
		clock:       clk,
		idgen:       ids,
		leases:      newLeases(),
	}
}

// Execute applies commands for tenant atomically and returns the patches the
// Projector derived from the applied results. opID, if non-empty, is checked
// once against the command log before any commands are applied: an existing
// entry with identical payload is treated as an idempotent no-op success: an
// existing entry with a differing payload returns ErrOpIDConflict.
func (e *Executor) Execute(ctx context.Context, tenant string, commands []domain.Command, opID string) ([]domain.Patch, error) {
	release := e.leases.acquire(tenant)
	defer release()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("executor: begin tx: %w", err)
	}
	defer tx.Rollback()

	log := commandlog.New(tx)
	store := statestore.New(tx)

	if opID != "" {
		if patches, ok, err := e.checkIdempotency(ctx, log, tenant, opID, commands); err != nil {
			return nil, err
		} else if ok {
			return patches, nil
		}
	}

	decrementOnClear := false
	for _, cmd := range commands {
		if cmd.Type == domain.CmdStreamOnline && cmd.StreamOnline.DecrementCtr {
			decrementOnClear = true
		}
	}

	var patches []domain.Patch
	for _, cmd := range commands {
		result, err := e.apply(ctx, store, tenant, cmd, decrementOnClear)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(cmd)
		if err != nil {
			return nil, fmt.Errorf("executor: marshal command: %w", err)
		}

		cmdOpID := ""
		if cmd.OpID != "" {
			cmdOpID = cmd.OpID
		} else if opID != "" {
			cmdOpID = opID
		}

		version, err := log.AppendNext(ctx, tenant, cmdOpID, string(cmd.Type), payload, result.At)
		if err != nil {
			return nil, err
		}
		result.Version = version

		patches = append(patches, projector.Project(result)...)
	}

	if err := sse.Notify(ctx, tx, tenant, patches); err != nil {
		return nil, fmt.Errorf("executor: notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("executor: commit: %w", err)
	}

	if e.publisher != nil {
		e.publisher.Publish(tenant, patches)
	}

	return patches, nil
}

// checkIdempotency looks up opID's existing command log entries (using the
// first command's payload as the comparison point — admin endpoints submit
// exactly one command per op_id). If the command is already recorded with an
// identical payload, it returns ok=true and no patches: the replay is a
// no-op that emits nothing new.
// This repository only uses op_id for single-command admin mutations, so a
// mismatch on the one command is sufficient to detect OP_ID_CONFLICT.
func (e *Executor) checkIdempotency(ctx context.Context, log *commandlog.Log, tenant, opID string, commands []domain.Command) ([]domain.Patch, bool, error) {
	if len(commands) != 1 {
		return nil, false, nil
	}
	existing, err := log.FindByOpID(ctx, tenant, opID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, nil
	}

	payload, err := json.Marshal(commands[0])
	if err != nil {
		return nil, false, fmt.Errorf("executor: marshal command: %w", err)
	}
	if string(existing.Payload) != string(payload) {
		return nil, false, ErrOpIDConflict
	}

	slog.Info("executor: op_id already applied, replaying as no-op", "tenant", tenant, "op_id", opID)
	return nil, true, nil
}

func (e *Executor) apply(ctx context.Context, store *statestore.Store, tenant string, cmd domain.Command, decrementOnClear bool) (domain.CommandResult, error) {
	now := e.clock.Now()
	result := domain.CommandResult{Tenant: tenant, Type: cmd.Type, At: now}

	switch cmd.Type {
	case domain.CmdEnqueue:
		entry := domain.QueueEntry{
			ID:            e.idgen.New(),
			Tenant:        tenant,
			User:          cmd.Enqueue.User,
			RewardID:      cmd.Enqueue.RewardID,
			RedemptionID:  cmd.Enqueue.RedemptionID,
			EnqueuedAt:    cmd.Enqueue.EnqueuedAt,
			Status:        domain.StatusQueued,
			LastUpdatedAt: now,
		}
		if err := store.InsertQueueEntry(ctx, entry); err != nil {
			return result, err
		}
		tz, err := store.Timezone(ctx, tenant)
		if err != nil {
			return result, err
		}
		day := statestore.TenantDay(cmd.Enqueue.EnqueuedAt, tz)
		count, err := store.IncrementCounter(ctx, tenant, day, cmd.Enqueue.User.ID, 1)
		if err != nil {
			return result, err
		}
		result.Enqueue = &domain.EnqueueResult{Entry: entry, UserTodayCount: count}

	case domain.CmdQueueComplete:
		if err := store.TransitionStatus(ctx, tenant, cmd.QueueComplete.EntryID, domain.StatusCompleted, "", now); err != nil {
			return result, err
		}
		result.QueueComplete = &domain.QueueCompleteResult{EntryID: cmd.QueueComplete.EntryID}

	case domain.CmdQueueRemove:
		entry, err := store.GetQueueEntry(ctx, tenant, cmd.QueueRemove.EntryID)
		if err != nil {
			return result, err
		}
		if err := store.TransitionStatus(ctx, tenant, cmd.QueueRemove.EntryID, domain.StatusRemoved, cmd.QueueRemove.Reason, now); err != nil {
			return result, err
		}

		qr := &domain.QueueRemoveResult{EntryID: cmd.QueueRemove.EntryID, Reason: cmd.QueueRemove.Reason}

		shouldDecrement := cmd.QueueRemove.Reason == domain.ReasonUndo ||
			(cmd.QueueRemove.Reason == domain.ReasonStreamStartClear && decrementOnClear)
		if shouldDecrement {
			tz, err := store.Timezone(ctx, tenant)
			if err != nil {
				return result, err
			}
			day := statestore.TenantDay(entry.EnqueuedAt, tz)
			// UNDO always decrements; a stream-start clear only decrements
			// entries enqueued on the current tenant-local day.
			if cmd.QueueRemove.Reason == domain.ReasonUndo || day == statestore.TenantDay(now, tz) {
				count, err := store.IncrementCounter(ctx, tenant, day, entry.User.ID, -1)
				if err != nil {
					return result, err
				}
				qr.UserTodayCount = count
				qr.Counter = &domain.CounterUpdateResult{UserID: entry.User.ID, Count: count}
			}
		}
		result.QueueRemove = qr

	case domain.CmdSettingsUpdate:
		current, err := store.GetSettings(ctx, tenant)
		if err != nil {
			return result, err
		}
		merged := domain.MergeSettings(current, cmd.SettingsUpdate.Patch)
		if err := store.PutSettings(ctx, tenant, merged); err != nil {
			return result, err
		}
		result.SettingsUpdate = &domain.SettingsUpdateResult{Patch: cmd.SettingsUpdate.Patch}

	case domain.CmdRedemptionUpdate:
		result.RedemptionUpdate = e.applyRedemptionUpdate(ctx, store, tenant, cmd.RedemptionUpdate)

	case domain.CmdStreamOnline:
		if err := store.OpenSession(ctx, tenant, cmd.StreamOnline.StartedAt); err != nil {
			return result, err
		}
		result.StreamOnline = &domain.StreamOnlineResult{}

	case domain.CmdStreamOffline:
		if err := store.CloseSession(ctx, tenant, cmd.StreamOffline.EndedAt); err != nil {
			return result, err
		}
		result.StreamOffline = &domain.StreamOfflineResult{}

	default:
		return result, fmt.Errorf("executor: unknown command type %q", cmd.Type)
	}

	return result, nil
}

func (e *Executor) applyRedemptionUpdate(ctx context.Context, store *statestore.Store, tenant string, cmd *domain.RedemptionUpdateCommand) *domain.RedemptionUpdateResult {
	res := &domain.RedemptionUpdateResult{RedemptionID: cmd.RedemptionID, Mode: cmd.Mode}

	if e.redemptions == nil {
		res.Applicable = true
		res.Result = domain.RedemptionSkipped
	} else if err := e.redemptions.UpdateRedemption(ctx, tenant, cmd.RedemptionID, cmd.Mode); err != nil {
		res.Applicable = true
		res.Result = domain.RedemptionFailed
		res.Error = err.Error()
	} else {
		res.Applicable = true
		res.Result = domain.RedemptionOK
	}

	managed := res.Result == domain.RedemptionOK
	res.Managed = managed

	entryID := cmd.EntryID
	if entryID == "" {
		entry, err := store.FindQueueEntryByRedemption(ctx, tenant, cmd.RedemptionID)
		if err == nil && entry != nil {
			entryID = entry.ID
		}
	}
	if entryID != "" {
		if err := store.SetManaged(ctx, tenant, entryID, managed); err != nil && !errors.Is(err, statestore.ErrEntryNotFound) {
			res.Error = err.Error()
		}
	}

	return res
}
