package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/normalize"
)

func TestNormalize_RedemptionAdd(t *testing.T) {
	eventTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := domain.RawNotification{
		SubscriptionType: "channel.channel_points_custom_reward_redemption.add",
		Tenant:           "t1",
		MessageID:        "msg-1",
		EventTime:        eventTime,
		Event: map[string]any{
			"id":         "redemption-1",
			"reward_id":  "r1",
			"user_id":    "u1",
			"user_login": "viewer_one",
			"user_name":  "ViewerOne",
		},
	}

	got, err := normalize.Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, domain.EventRedemptionAdd, got.Type)
	require.NotNil(t, got.RedemptionAdd)
	assert.Equal(t, "r1", got.RedemptionAdd.RewardID)
	assert.Equal(t, "redemption-1", got.RedemptionAdd.RedemptionID)
	assert.Equal(t, "u1", got.RedemptionAdd.User.ID)
	assert.Equal(t, "viewer_one", got.RedemptionAdd.User.Login)
	assert.Equal(t, eventTime, got.RedemptionAdd.RedeemedAt)
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := domain.RawNotification{
		SubscriptionType: "channel.channel_points_custom_reward_redemption.add",
		Tenant:           "t1",
		EventTime:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Event: map[string]any{
			"id":         "redemption-1",
			"reward_id":  "r1",
			"user_id":    "u1",
			"user_login": "viewer_one",
			"user_name":  "ViewerOne",
		},
	}

	a, errA := normalize.Normalize(raw)
	b, errB := normalize.Normalize(raw)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestNormalize_UnknownTypeIsNoOp(t *testing.T) {
	raw := domain.RawNotification{
		SubscriptionType: "channel.cheer",
		Tenant:           "t1",
	}
	got, err := normalize.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.EventNoOp, got.Type)
}

func TestNormalize_RedemptionAddMissingField(t *testing.T) {
	raw := domain.RawNotification{
		SubscriptionType: "channel.channel_points_custom_reward_redemption.add",
		Tenant:           "t1",
		Event: map[string]any{
			"id":       "redemption-1",
			"user_id":  "u1",
			// reward_id missing
		},
	}
	_, err := normalize.Normalize(raw)
	assert.Error(t, err)
}

func TestNormalize_StreamOnlineOffline(t *testing.T) {
	startTime := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)
	online, err := normalize.Normalize(domain.RawNotification{
		SubscriptionType: "stream.online",
		Tenant:           "t1",
		EventTime:        startTime,
		Event:            map[string]any{},
	})
	require.NoError(t, err)
	require.Equal(t, domain.EventStreamOnline, online.Type)
	assert.Equal(t, startTime, online.StreamOnline.StartedAt)

	offline, err := normalize.Normalize(domain.RawNotification{
		SubscriptionType: "stream.offline",
		Tenant:           "t1",
		EventTime:        startTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, domain.EventStreamOffline, offline.Type)
}
