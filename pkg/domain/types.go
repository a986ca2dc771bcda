// Package domain holds the core data types shared across the pipeline:
// settings, queue entries, counters, events, commands, and patches. Kept
// dependency-free (no storage, no HTTP) so normalize/policy/projector can
// import it without pulling in I/O.
package domain

import "time"

// Settings is the per-tenant configuration record. Any subset of fields may
// be replaced by an update; Policy merges field-wise (see MergeSettings).
type Settings struct {
	OverlayTheme        string       `json:"overlay_theme"`
	GroupSize           int          `json:"group_size"`
	ClearOnStreamStart  bool         `json:"clear_on_stream_start"`
	ClearDecrementCount bool         `json:"clear_decrement_counts"`
	Policy              PolicyConfig `json:"policy"`
}

// PolicyConfig is the nested policy-tuning block of Settings.
type PolicyConfig struct {
	AntiSpamWindowSec int             `json:"anti_spam_window_sec"`
	DuplicatePolicy   DuplicatePolicy `json:"duplicate_policy"`
	TargetRewards     map[string]bool `json:"target_rewards"`
}

// DuplicatePolicy governs behavior for repeated (user, reward) events inside
// the anti-spam window.
type DuplicatePolicy string

const (
	DuplicateConsume DuplicatePolicy = "consume"
	DuplicateRefund  DuplicatePolicy = "refund"
)

// SettingsPatch is a partial update to Settings. Nil fields are left
// untouched; a non-nil Policy patch merges field-wise into the existing
// policy.
type SettingsPatch struct {
	OverlayTheme        *string      `json:"overlay_theme,omitempty"`
	GroupSize           *int         `json:"group_size,omitempty"`
	ClearOnStreamStart  *bool        `json:"clear_on_stream_start,omitempty"`
	ClearDecrementCount *bool        `json:"clear_decrement_counts,omitempty"`
	Policy              *PolicyPatch `json:"policy,omitempty"`
}

// PolicyPatch is the nested partial-update block for PolicyConfig.
type PolicyPatch struct {
	AntiSpamWindowSec *int             `json:"anti_spam_window_sec,omitempty"`
	DuplicatePolicy   *DuplicatePolicy `json:"duplicate_policy,omitempty"`
	TargetRewards     map[string]bool  `json:"target_rewards,omitempty"`
}

// MergeSettings applies patch on top of base field-wise, merging the nested
// Policy block field-wise too. Returns the resulting settings; base is not
// mutated.
func MergeSettings(base Settings, patch SettingsPatch) Settings {
	out := base
	if patch.OverlayTheme != nil {
		out.OverlayTheme = *patch.OverlayTheme
	}
	if patch.GroupSize != nil {
		out.GroupSize = *patch.GroupSize
	}
	if patch.ClearOnStreamStart != nil {
		out.ClearOnStreamStart = *patch.ClearOnStreamStart
	}
	if patch.ClearDecrementCount != nil {
		out.ClearDecrementCount = *patch.ClearDecrementCount
	}
	if patch.Policy != nil {
		if patch.Policy.AntiSpamWindowSec != nil {
			out.Policy.AntiSpamWindowSec = *patch.Policy.AntiSpamWindowSec
		}
		if patch.Policy.DuplicatePolicy != nil {
			out.Policy.DuplicatePolicy = *patch.Policy.DuplicatePolicy
		}
		if patch.Policy.TargetRewards != nil {
			out.Policy.TargetRewards = patch.Policy.TargetRewards
		}
	}
	return out
}

// EntryStatus is the lifecycle state of a QueueEntry. COMPLETED and REMOVED
// are absorbing: no transition may leave them.
type EntryStatus string

const (
	StatusQueued    EntryStatus = "QUEUED"
	StatusCompleted EntryStatus = "COMPLETED"
	StatusRemoved   EntryStatus = "REMOVED"
)

// IsTerminal reports whether the status is absorbing.
func (s EntryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRemoved
}

// StatusReason records why a QueueEntry left QUEUED.
type StatusReason string

const (
	ReasonUndo             StatusReason = "UNDO"
	ReasonStreamStartClear StatusReason = "STREAM_START_CLEAR"
	ReasonExplicitRemove   StatusReason = "EXPLICIT_REMOVE"
)

// User identifies the redeeming viewer as carried in the Twitch payload.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}

// QueueEntry is a single channel-point redemption in the overlay queue.
type QueueEntry struct {
	ID            string       `json:"id"`
	Tenant        string       `json:"tenant"`
	User          User         `json:"user"`
	RewardID      string       `json:"reward_id"`
	RedemptionID  string       `json:"redemption_id,omitempty"`
	EnqueuedAt    time.Time    `json:"enqueued_at"`
	Status        EntryStatus  `json:"status"`
	StatusReason  StatusReason `json:"status_reason,omitempty"`
	Managed       bool         `json:"managed"`
	LastUpdatedAt time.Time    `json:"last_updated_at"`
}

// EventRecord is the durable, append-only record of a raw inbound webhook
// notification, keyed by its externally supplied message id.
type EventRecord struct {
	ID                int64
	Tenant            string
	ExternalMessageID string
	Type              string
	RawPayload        []byte
	EventTime         time.Time
	ReceivedAt        time.Time
}

// CommandLogEntry is one applied command at a specific per-tenant version.
type CommandLogEntry struct {
	Tenant    string
	Version   int64
	OpID      string // empty when the command carries no client idempotency key
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// StreamSession is the open/closed boundary used to scope "today" and
// stream-start/offline commands.
type StreamSession struct {
	Tenant    string
	StartedAt time.Time
	EndedAt   *time.Time
}
