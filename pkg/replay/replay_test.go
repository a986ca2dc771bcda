package replay_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/replay"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
)

func normalizerRecord(t *testing.T, tenant string, ts time.Time, ev domain.NormalizedEvent) tap.StageEvent {
	t.Helper()
	out, err := json.Marshal(ev)
	require.NoError(t, err)
	return tap.StageEvent{
		Timestamp: ts,
		Stage:     tap.StageNormalizer,
		Tenant:    tenant,
		Out:       string(out),
	}
}

func TestReplay_EnqueueThenRedemptionUpdateTracksManagedFalse(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	records := []tap.StageEvent{
		normalizerRecord(t, "t1", base, domain.NormalizedEvent{
			Type: domain.EventRedemptionAdd,
			RedemptionAdd: &domain.RedemptionAddEvent{
				User:         domain.User{ID: "u1", Login: "viewer1"},
				RewardID:     "r1",
				RedemptionID: "red-1",
				RedeemedAt:   base,
			},
		}),
	}

	result, err := replay.Replay("t1", records, domain.Settings{})
	require.NoError(t, err)

	require.Len(t, result.Queue, 1)
	assert.Equal(t, "r1", result.Queue[0].RewardID)
	assert.Equal(t, domain.StatusQueued, result.Queue[0].Status)
	assert.False(t, result.Queue[0].Managed, "replay never re-invokes the redemption capability")
	assert.Equal(t, 1, result.CountersToday["u1"])

	var sawEnqueued, sawRedemptionUpdated bool
	for _, p := range result.Patches {
		switch p.Type {
		case domain.PatchQueueEnqueued:
			sawEnqueued = true
		case domain.PatchRedemptionUpdated:
			sawRedemptionUpdated = true
			data := p.Data.(domain.RedemptionUpdatedData)
			assert.Equal(t, domain.RedemptionSkipped, data.Result)
		}
	}
	assert.True(t, sawEnqueued)
	assert.True(t, sawRedemptionUpdated)
}

func TestReplay_StreamOnlineClearsQueueAndDecrementsWhenConfigured(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	settings := domain.Settings{ClearOnStreamStart: true, ClearDecrementCount: true}

	records := []tap.StageEvent{
		normalizerRecord(t, "t1", base, domain.NormalizedEvent{
			Type: domain.EventRedemptionAdd,
			RedemptionAdd: &domain.RedemptionAddEvent{
				User:         domain.User{ID: "u1"},
				RewardID:     "r1",
				RedemptionID: "red-1",
				RedeemedAt:   base,
			},
		}),
		normalizerRecord(t, "t1", base.Add(time.Minute), domain.NormalizedEvent{
			Type:         domain.EventStreamOnline,
			StreamOnline: &domain.StreamOnlineEvent{StartedAt: base.Add(time.Minute)},
		}),
	}

	result, err := replay.Replay("t1", records, settings)
	require.NoError(t, err)

	require.Len(t, result.Queue, 1)
	assert.Equal(t, domain.StatusRemoved, result.Queue[0].Status)
	assert.Equal(t, domain.ReasonStreamStartClear, result.Queue[0].StatusReason)
	assert.Equal(t, 0, result.CountersToday["u1"])

	var sawCounterUpdate bool
	for _, p := range result.Patches {
		if p.Type == domain.PatchCounterUpdated {
			sawCounterUpdate = true
		}
	}
	assert.True(t, sawCounterUpdate)
}

func TestReplay_IgnoresNonNormalizerRecordsAndNoOpEvents(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	noop, err := json.Marshal(domain.NormalizedEvent{Type: domain.EventNoOp})
	require.NoError(t, err)

	records := []tap.StageEvent{
		{Timestamp: base, Stage: tap.StagePolicy, Tenant: "t1", Out: "{}"},
		{Timestamp: base, Stage: tap.StageNormalizer, Tenant: "t1", Out: string(noop)},
	}

	result, err := replay.Replay("t1", records, domain.Settings{})
	require.NoError(t, err)
	assert.Empty(t, result.Queue)
	assert.Empty(t, result.Patches)
	assert.Equal(t, int64(0), result.Version)
}

func TestReplay_ReplaysEventsInTimestampOrderNotRecordOrder(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	online := normalizerRecord(t, "t1", base.Add(time.Minute), domain.NormalizedEvent{
		Type:         domain.EventStreamOnline,
		StreamOnline: &domain.StreamOnlineEvent{StartedAt: base.Add(time.Minute)},
	})
	offline := normalizerRecord(t, "t1", base, domain.NormalizedEvent{
		Type:          domain.EventStreamOffline,
		StreamOffline: &domain.StreamOfflineEvent{EndedAt: base},
	})

	// records passed out of chronological order
	result, err := replay.Replay("t1", []tap.StageEvent{online, offline}, domain.Settings{})
	require.NoError(t, err)

	require.Len(t, result.Patches, 2)
	assert.Equal(t, domain.PatchStreamOffline, result.Patches[0].Type)
	assert.Equal(t, domain.PatchStreamOnline, result.Patches[1].Type)
}
