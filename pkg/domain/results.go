package domain

import "time"

// CommandResult is what the Command Executor produces after successfully
// applying one Command inside its transaction: the assigned version plus
// enough detail for the Projector to build the patch(es) without touching
// storage itself. Exactly one of the variant fields is populated, chosen by
// Type, mirroring Command's own tagged-variant shape.
type CommandResult struct {
	Tenant  string
	Version int64
	Type    CommandType
	At      time.Time

	Enqueue          *EnqueueResult
	QueueComplete    *QueueCompleteResult
	QueueRemove      *QueueRemoveResult
	SettingsUpdate   *SettingsUpdateResult
	RedemptionUpdate *RedemptionUpdateResult
	StreamOnline     *StreamOnlineResult
	StreamOffline    *StreamOfflineResult
}

// EnqueueResult carries the inserted entry and the redeemer's resulting
// same-day count.
type EnqueueResult struct {
	Entry          QueueEntry
	UserTodayCount int
}

// QueueCompleteResult identifies the entry transitioned to COMPLETED.
type QueueCompleteResult struct {
	EntryID string
}

// QueueRemoveResult identifies the entry transitioned to REMOVED. Counter is
// non-nil only when the removal reason decremented the redeemer's counter
// (UNDO, or STREAM_START_CLEAR with clear_decrement_counts) — a
// counter.updated patch is only warranted when the counter actually moved.
type QueueRemoveResult struct {
	EntryID        string
	Reason         StatusReason
	UserTodayCount int
	Counter        *CounterUpdateResult
}

// CounterUpdateResult is the payload for a standalone counter.updated patch.
type CounterUpdateResult struct {
	UserID string
	Count  int
}

// SettingsUpdateResult carries the patch exactly as applied (not the
// resulting full Settings — the patch itself is what's emitted).
type SettingsUpdateResult struct {
	Patch SettingsPatch
}

// RedemptionUpdateResult is the outcome of invoking the external
// redemption-update capability.
type RedemptionUpdateResult struct {
	RedemptionID string
	Mode         RedemptionMode
	Applicable   bool
	Result       RedemptionResult
	Managed      bool
	Error        string
}

// StreamOnlineResult carries no data; its presence alone signals the command
// kind to the Projector.
type StreamOnlineResult struct{}

// StreamOfflineResult carries no data.
type StreamOfflineResult struct{}
