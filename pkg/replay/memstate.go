package replay

import (
	"fmt"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// memState is the pure, in-process stand-in for pkg/statestore during
// replay: same command semantics as pkg/executor.Executor.apply, minus
// idgen/clock injection (entry ids are derived from a local counter), minus
// tenant-local days (counters are kept per user for the whole replay, and a
// stream-start clear decrement applies to every cleared entry) and minus any
// external RedemptionUpdater call (always result=skipped — a capture/replay
// run must never re-invoke Twitch).
type memState struct {
	settings    domain.Settings
	queue       map[string]*domain.QueueEntry
	counters    map[string]int
	lastRedeem  map[string]time.Time
	entrySeq    int
	sessionOpen bool
}

func newMemState(settings domain.Settings) *memState {
	return &memState{
		settings:   settings,
		queue:      make(map[string]*domain.QueueEntry),
		counters:   make(map[string]int),
		lastRedeem: make(map[string]time.Time),
	}
}

func (m *memState) activity() domain.Activity {
	var queued []domain.QueueEntry
	for _, e := range m.queue {
		if e.Status == domain.StatusQueued {
			queued = append(queued, *e)
		}
	}
	return domain.Activity{
		LastRedemption: m.lastRedeem,
		QueuedEntries:  queued,
		TodayCounts:    m.counters,
	}
}

func (m *memState) queueSlice() []domain.QueueEntry {
	var out []domain.QueueEntry
	for _, e := range m.queue {
		out = append(out, *e)
	}
	return out
}

func (m *memState) apply(cmd domain.Command, decrementOnClear bool) (domain.CommandResult, error) {
	result := domain.CommandResult{Type: cmd.Type}

	switch cmd.Type {
	case domain.CmdEnqueue:
		m.entrySeq++
		entry := domain.QueueEntry{
			ID:           fmt.Sprintf("replay-%d", m.entrySeq),
			User:         cmd.Enqueue.User,
			RewardID:     cmd.Enqueue.RewardID,
			RedemptionID: cmd.Enqueue.RedemptionID,
			EnqueuedAt:   cmd.Enqueue.EnqueuedAt,
			Status:       domain.StatusQueued,
		}
		m.queue[entry.ID] = &entry
		m.lastRedeem[domain.ActivityKey(entry.User.ID, entry.RewardID)] = entry.EnqueuedAt
		m.counters[entry.User.ID]++
		result.Enqueue = &domain.EnqueueResult{Entry: entry, UserTodayCount: m.counters[entry.User.ID]}

	case domain.CmdQueueComplete:
		entry, ok := m.queue[cmd.QueueComplete.EntryID]
		if !ok {
			return result, fmt.Errorf("replay: unknown entry %q", cmd.QueueComplete.EntryID)
		}
		entry.Status = domain.StatusCompleted
		result.QueueComplete = &domain.QueueCompleteResult{EntryID: entry.ID}

	case domain.CmdQueueRemove:
		entry, ok := m.queue[cmd.QueueRemove.EntryID]
		if !ok {
			return result, fmt.Errorf("replay: unknown entry %q", cmd.QueueRemove.EntryID)
		}
		entry.Status = domain.StatusRemoved
		entry.StatusReason = cmd.QueueRemove.Reason

		qr := &domain.QueueRemoveResult{EntryID: entry.ID, Reason: cmd.QueueRemove.Reason}
		shouldDecrement := cmd.QueueRemove.Reason == domain.ReasonUndo ||
			(cmd.QueueRemove.Reason == domain.ReasonStreamStartClear && decrementOnClear)
		if shouldDecrement {
			m.counters[entry.User.ID]--
			qr.UserTodayCount = m.counters[entry.User.ID]
			qr.Counter = &domain.CounterUpdateResult{UserID: entry.User.ID, Count: m.counters[entry.User.ID]}
		}
		result.QueueRemove = qr

	case domain.CmdSettingsUpdate:
		m.settings = domain.MergeSettings(m.settings, cmd.SettingsUpdate.Patch)
		result.SettingsUpdate = &domain.SettingsUpdateResult{Patch: cmd.SettingsUpdate.Patch}

	case domain.CmdRedemptionUpdate:
		// Replay never re-invokes the external capability — always
		// skipped, never managed, matching pkg/executor.Executor's nil-
		// RedemptionUpdater branch.
		res := &domain.RedemptionUpdateResult{
			RedemptionID: cmd.RedemptionUpdate.RedemptionID,
			Mode:         cmd.RedemptionUpdate.Mode,
			Applicable:   true,
			Result:       domain.RedemptionSkipped,
		}
		result.RedemptionUpdate = res

		entryID := cmd.RedemptionUpdate.EntryID
		if entryID == "" {
			for id, e := range m.queue {
				if e.RedemptionID == cmd.RedemptionUpdate.RedemptionID {
					entryID = id
					break
				}
			}
		}
		if entry, ok := m.queue[entryID]; ok {
			entry.Managed = res.Managed
		}

	case domain.CmdStreamOnline:
		m.sessionOpen = true
		result.StreamOnline = &domain.StreamOnlineResult{}

	case domain.CmdStreamOffline:
		m.sessionOpen = false
		result.StreamOffline = &domain.StreamOfflineResult{}

	default:
		return result, fmt.Errorf("replay: unknown command type %q", cmd.Type)
	}

	return result, nil
}
