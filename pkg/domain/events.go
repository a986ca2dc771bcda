package domain

import "time"

// RawNotification is the deserialized EventSub envelope handed to the
// Normalizer. SubscriptionType and Event are Twitch's own wire shapes; the
// Normalizer's job is to turn them into one of the NormalizedEvent variants
// below, never the reverse.
type RawNotification struct {
	SubscriptionType string
	Tenant           string
	MessageID        string
	EventTime        time.Time
	Event            map[string]any
}

// NormalizedEventType discriminates the NormalizedEvent tagged variants.
type NormalizedEventType string

const (
	EventRedemptionAdd    NormalizedEventType = "redemption_add"
	EventRedemptionUpdate NormalizedEventType = "redemption_update"
	EventStreamOnline     NormalizedEventType = "stream_online"
	EventStreamOffline    NormalizedEventType = "stream_offline"
	EventNoOp             NormalizedEventType = "noop" // unknown/irrelevant subscription type
)

// NormalizedEvent is the pure, typed translation of a RawNotification.
// Exactly one of the RedemptionAdd/RedemptionUpdate/StreamOnline/StreamOffline
// fields is populated, selected by Type. EventNoOp carries none and signals
// the pipeline to skip Policy/Executor entirely.
type NormalizedEvent struct {
	Type             NormalizedEventType
	Tenant           string
	RedemptionAdd    *RedemptionAddEvent
	RedemptionUpdate *RedemptionUpdateEvent
	StreamOnline     *StreamOnlineEvent
	StreamOffline    *StreamOfflineEvent
}

// RedemptionAddEvent mirrors a channel_points_custom_reward_redemption.add notification.
type RedemptionAddEvent struct {
	User         User
	RewardID     string
	RedemptionID string
	RedeemedAt   time.Time
}

// RedemptionUpdateEvent mirrors a channel_points_custom_reward_redemption.update notification.
type RedemptionUpdateEvent struct {
	RedemptionID string
	Status       string // "fulfilled" or "canceled" per Twitch's own vocabulary
	UpdatedAt    time.Time
}

// StreamOnlineEvent mirrors a stream.online notification.
type StreamOnlineEvent struct {
	StartedAt time.Time
}

// StreamOfflineEvent mirrors a stream.offline notification.
type StreamOfflineEvent struct {
	EndedAt time.Time
}
