package projector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/projector"
)

func TestProject_Enqueue(t *testing.T) {
	result := domain.CommandResult{
		Tenant:  "t1",
		Version: 1,
		Type:    domain.CmdEnqueue,
		At:      time.Unix(0, 0).UTC(),
		Enqueue: &domain.EnqueueResult{
			Entry:          domain.QueueEntry{ID: "e1", RewardID: "r1", Status: domain.StatusQueued},
			UserTodayCount: 1,
		},
	}
	patches := projector.Project(result)
	require.Len(t, patches, 1)
	assert.Equal(t, domain.PatchQueueEnqueued, patches[0].Type)
	assert.Equal(t, int64(1), patches[0].Version)
	data, ok := patches[0].Data.(domain.QueueEnqueuedData)
	require.True(t, ok)
	assert.Equal(t, 1, data.UserTodayCount)
	assert.Equal(t, "e1", data.Entry.ID)
}

func TestProject_QueueRemoveWithCounter(t *testing.T) {
	result := domain.CommandResult{
		Tenant:  "t1",
		Version: 4,
		Type:    domain.CmdQueueRemove,
		QueueRemove: &domain.QueueRemoveResult{
			EntryID:        "e1",
			Reason:         domain.ReasonUndo,
			UserTodayCount: 0,
			Counter:        &domain.CounterUpdateResult{UserID: "u1", Count: 0},
		},
	}
	patches := projector.Project(result)
	require.Len(t, patches, 2)
	assert.Equal(t, domain.PatchQueueRemoved, patches[0].Type)
	assert.Equal(t, domain.PatchCounterUpdated, patches[1].Type)
	counterData, ok := patches[1].Data.(domain.CounterUpdatedData)
	require.True(t, ok)
	assert.Equal(t, "u1", counterData.UserID)
	assert.Equal(t, 0, counterData.Count)
}

func TestProject_QueueRemoveWithoutCounter(t *testing.T) {
	result := domain.CommandResult{
		Type: domain.CmdQueueRemove,
		QueueRemove: &domain.QueueRemoveResult{
			EntryID: "e1",
			Reason:  domain.ReasonExplicitRemove,
		},
	}
	patches := projector.Project(result)
	require.Len(t, patches, 1)
	assert.Equal(t, domain.PatchQueueRemoved, patches[0].Type)
}

func TestProject_SettingsUpdate(t *testing.T) {
	theme := "dark"
	result := domain.CommandResult{
		Type: domain.CmdSettingsUpdate,
		SettingsUpdate: &domain.SettingsUpdateResult{
			Patch: domain.SettingsPatch{OverlayTheme: &theme},
		},
	}
	patches := projector.Project(result)
	require.Len(t, patches, 1)
	data, ok := patches[0].Data.(domain.SettingsUpdatedData)
	require.True(t, ok)
	require.NotNil(t, data.Patch.OverlayTheme)
	assert.Equal(t, "dark", *data.Patch.OverlayTheme)
}

func TestProject_StreamOnlineOffline(t *testing.T) {
	online := projector.Project(domain.CommandResult{Type: domain.CmdStreamOnline, StreamOnline: &domain.StreamOnlineResult{}})
	require.Len(t, online, 1)
	assert.Equal(t, domain.PatchStreamOnline, online[0].Type)

	offline := projector.Project(domain.CommandResult{Type: domain.CmdStreamOffline, StreamOffline: &domain.StreamOfflineResult{}})
	require.Len(t, offline, 1)
	assert.Equal(t, domain.PatchStreamOffline, offline[0].Type)
}

func TestProject_Deterministic(t *testing.T) {
	result := domain.CommandResult{
		Type: domain.CmdRedemptionUpdate,
		RedemptionUpdate: &domain.RedemptionUpdateResult{
			RedemptionID: "r1",
			Mode:         domain.RedemptionConsume,
			Applicable:   true,
			Result:       domain.RedemptionOK,
		},
	}
	a := projector.Project(result)
	b := projector.Project(result)
	assert.Equal(t, a, b)
}
