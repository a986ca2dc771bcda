package domain

import "time"

// CommandType discriminates the tagged Command variants. New variants must be
// added here and to the exhaustive switch in the executor and projector —
// unknown variants on the wire are rejected with invalid_payload, never
// silently ignored.
type CommandType string

const (
	CmdEnqueue          CommandType = "enqueue"
	CmdRedemptionUpdate CommandType = "redemption_update"
	CmdQueueComplete    CommandType = "queue_complete"
	CmdQueueRemove      CommandType = "queue_remove"
	CmdSettingsUpdate   CommandType = "settings_update"
	CmdStreamOnline     CommandType = "stream_online"
	CmdStreamOffline    CommandType = "stream_offline"
)

// RedemptionMode distinguishes consuming vs refunding a Twitch redemption
// through the external capability.
type RedemptionMode string

const (
	RedemptionConsume RedemptionMode = "consume"
	RedemptionRefund  RedemptionMode = "refund"
)

// Command is a single state-changing directive produced by the Policy Engine
// or an admin endpoint. Exactly one of the Enqueue/RedemptionUpdate/... fields
// is populated, selected by Type. OpID is set only for admin-originated
// commands that carry a client idempotency key; policy-originated commands
// leave it empty.
type Command struct {
	Type             CommandType
	OpID             string
	Enqueue          *EnqueueCommand
	RedemptionUpdate *RedemptionUpdateCommand
	QueueComplete    *QueueCompleteCommand
	QueueRemove      *QueueRemoveCommand
	SettingsUpdate   *SettingsUpdateCommand
	StreamOnline     *StreamOnlineCommand
	StreamOffline    *StreamOfflineCommand
}

// EnqueueCommand adds a new queue entry for (user, reward).
type EnqueueCommand struct {
	User         User
	RewardID     string
	RedemptionID string
	EnqueuedAt   time.Time
}

// RedemptionUpdateCommand invokes the external redemption-update capability
// and records whether it succeeded against the affected entry (if any).
type RedemptionUpdateCommand struct {
	RedemptionID string
	Mode         RedemptionMode
	EntryID      string // empty when no queue entry exists yet for this redemption
}

// QueueCompleteCommand transitions a QUEUED entry to COMPLETED.
type QueueCompleteCommand struct {
	EntryID string
}

// QueueRemoveCommand transitions a QUEUED entry to REMOVED.
type QueueRemoveCommand struct {
	EntryID string
	Reason  StatusReason
}

// SettingsUpdateCommand field-wise merges patch into the tenant's settings.
type SettingsUpdateCommand struct {
	Patch SettingsPatch
}

// StreamOnlineCommand opens (or continues) the tenant's stream session and
// optionally clears the queue.
type StreamOnlineCommand struct {
	StartedAt    time.Time
	ClearQueue   bool
	DecrementCtr bool
}

// StreamOfflineCommand closes the tenant's open stream session.
type StreamOfflineCommand struct {
	EndedAt time.Time
}
