// Package normalize translates raw EventSub notifications into typed
// NormalizedEvent values. Normalize is a pure function: the same raw input
// MUST produce byte-identical output across processes and runs — it performs
// no I/O and consults no injected clock (event_time is taken verbatim from
// the notification, never from the wall clock).
package normalize

import (
	"fmt"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// Subscription type strings as delivered by Twitch EventSub.
const (
	subTypeRedemptionAdd    = "channel.channel_points_custom_reward_redemption.add"
	subTypeRedemptionUpdate = "channel.channel_points_custom_reward_redemption.update"
	subTypeStreamOnline     = "stream.online"
	subTypeStreamOffline    = "stream.offline"
)

// Normalize converts a raw notification into a NormalizedEvent. Unknown or
// irrelevant subscription types yield an EventNoOp result (not an error) so
// the pipeline can skip Policy/Executor without treating it as a failure.
func Normalize(raw domain.RawNotification) (domain.NormalizedEvent, error) {
	switch raw.SubscriptionType {
	case subTypeRedemptionAdd:
		return normalizeRedemptionAdd(raw)
	case subTypeRedemptionUpdate:
		return normalizeRedemptionUpdate(raw)
	case subTypeStreamOnline:
		return normalizeStreamOnline(raw)
	case subTypeStreamOffline:
		return normalizeStreamOffline(raw)
	default:
		return domain.NormalizedEvent{Type: domain.EventNoOp, Tenant: raw.Tenant}, nil
	}
}

func normalizeRedemptionAdd(raw domain.RawNotification) (domain.NormalizedEvent, error) {
	user, err := extractUser(raw.Event)
	if err != nil {
		return domain.NormalizedEvent{}, err
	}
	rewardID, err := stringField(raw.Event, "reward_id")
	if err != nil {
		return domain.NormalizedEvent{}, err
	}
	redemptionID, err := stringField(raw.Event, "id")
	if err != nil {
		return domain.NormalizedEvent{}, err
	}
	redeemedAt := raw.EventTime
	if s, ok := raw.Event["redeemed_at"].(string); ok && s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return domain.NormalizedEvent{}, fmt.Errorf("invalid redeemed_at: %w", err)
		}
		redeemedAt = t
	}

	return domain.NormalizedEvent{
		Type:   domain.EventRedemptionAdd,
		Tenant: raw.Tenant,
		RedemptionAdd: &domain.RedemptionAddEvent{
			User:         user,
			RewardID:     rewardID,
			RedemptionID: redemptionID,
			RedeemedAt:   redeemedAt,
		},
	}, nil
}

func normalizeRedemptionUpdate(raw domain.RawNotification) (domain.NormalizedEvent, error) {
	redemptionID, err := stringField(raw.Event, "id")
	if err != nil {
		return domain.NormalizedEvent{}, err
	}
	status, _ := raw.Event["status"].(string)

	return domain.NormalizedEvent{
		Type:   domain.EventRedemptionUpdate,
		Tenant: raw.Tenant,
		RedemptionUpdate: &domain.RedemptionUpdateEvent{
			RedemptionID: redemptionID,
			Status:       status,
			UpdatedAt:    raw.EventTime,
		},
	}, nil
}

func normalizeStreamOnline(raw domain.RawNotification) (domain.NormalizedEvent, error) {
	startedAt := raw.EventTime
	if s, ok := raw.Event["started_at"].(string); ok && s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return domain.NormalizedEvent{}, fmt.Errorf("invalid started_at: %w", err)
		}
		startedAt = t
	}
	return domain.NormalizedEvent{
		Type:   domain.EventStreamOnline,
		Tenant: raw.Tenant,
		StreamOnline: &domain.StreamOnlineEvent{
			StartedAt: startedAt,
		},
	}, nil
}

func normalizeStreamOffline(raw domain.RawNotification) (domain.NormalizedEvent, error) {
	return domain.NormalizedEvent{
		Type:   domain.EventStreamOffline,
		Tenant: raw.Tenant,
		StreamOffline: &domain.StreamOfflineEvent{
			EndedAt: raw.EventTime,
		},
	}, nil
}

func extractUser(event map[string]any) (domain.User, error) {
	id, err := stringField(event, "user_id")
	if err != nil {
		return domain.User{}, err
	}
	login, _ := event["user_login"].(string)
	displayName, _ := event["user_name"].(string)
	return domain.User{
		ID:          id,
		Login:       login,
		DisplayName: displayName,
	}, nil
}

func stringField(event map[string]any, key string) (string, error) {
	v, ok := event[key]
	if !ok {
		return "", fmt.Errorf("invalid_payload: missing field %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("invalid_payload: field %q must be a non-empty string", key)
	}
	return s, nil
}
