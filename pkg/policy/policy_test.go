package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/policy"
)

func baseSettings(windowSec int, dup domain.DuplicatePolicy) domain.Settings {
	return domain.Settings{
		Policy: domain.PolicyConfig{
			AntiSpamWindowSec: windowSec,
			DuplicatePolicy:   dup,
			TargetRewards:     map[string]bool{"r1": true},
		},
	}
}

func redemptionAddAt(at time.Time) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		Type:   domain.EventRedemptionAdd,
		Tenant: "t1",
		RedemptionAdd: &domain.RedemptionAddEvent{
			User:         domain.User{ID: "u1", Login: "u1"},
			RewardID:     "r1",
			RedemptionID: "redemption-2",
			RedeemedAt:   at,
		},
	}
}

func TestEvaluate_AntiSpamWindowBoundaries(t *testing.T) {
	zero := time.Unix(0, 0).UTC()
	settings := baseSettings(60, domain.DuplicateConsume)
	activity := domain.Activity{
		LastRedemption: map[string]time.Time{
			domain.ActivityKey("u1", "r1"): zero,
		},
	}

	cases := []struct {
		name        string
		at          time.Time
		wantRefund  bool // whether a bare RedemptionUpdate(consume-or-refund) without Enqueue happens under refund policy
		wantEnqueue bool
	}{
		{name: "T-1s is within window", at: zero.Add(59 * time.Second), wantEnqueue: true},
		{name: "T is within window (inclusive boundary)", at: zero.Add(60 * time.Second), wantEnqueue: true},
		{name: "T+1s is outside window", at: zero.Add(61 * time.Second), wantEnqueue: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmds := policy.Evaluate(redemptionAddAt(tc.at), settings, activity)
			require.NotEmpty(t, cmds)
			// Under duplicate_policy=consume, both in-window and out-of-window
			// paths enqueue plus consume; the distinguishing case is refund below.
			assert.Equal(t, domain.CmdEnqueue, cmds[0].Type)
		})
	}
}

func TestEvaluate_AntiSpamWindowRefundPolicy(t *testing.T) {
	zero := time.Unix(0, 0).UTC()
	settings := baseSettings(60, domain.DuplicateRefund)
	activity := domain.Activity{
		LastRedemption: map[string]time.Time{
			domain.ActivityKey("u1", "r1"): zero,
		},
	}

	// Within window (T exactly): refund only, no Enqueue.
	within := policy.Evaluate(redemptionAddAt(zero.Add(60*time.Second)), settings, activity)
	require.Len(t, within, 1)
	assert.Equal(t, domain.CmdRedemptionUpdate, within[0].Type)
	assert.Equal(t, domain.RedemptionRefund, within[0].RedemptionUpdate.Mode)

	// Outside window (T+1s): normal enqueue + consume.
	outside := policy.Evaluate(redemptionAddAt(zero.Add(61*time.Second)), settings, activity)
	require.Len(t, outside, 2)
	assert.Equal(t, domain.CmdEnqueue, outside[0].Type)
	assert.Equal(t, domain.CmdRedemptionUpdate, outside[1].Type)
	assert.Equal(t, domain.RedemptionConsume, outside[1].RedemptionUpdate.Mode)
}

func TestEvaluate_TargetRewardsGate(t *testing.T) {
	settings := domain.Settings{
		Policy: domain.PolicyConfig{TargetRewards: map[string]bool{"other": true}},
	}
	cmds := policy.Evaluate(redemptionAddAt(time.Unix(0, 0).UTC()), settings, domain.Activity{})
	assert.Empty(t, cmds)
}

func TestEvaluate_EmptyTargetRewardsAllowsAll(t *testing.T) {
	settings := domain.Settings{Policy: domain.PolicyConfig{}}
	cmds := policy.Evaluate(redemptionAddAt(time.Unix(0, 0).UTC()), settings, domain.Activity{})
	require.Len(t, cmds, 2)
	assert.Equal(t, domain.CmdEnqueue, cmds[0].Type)
}

func TestEvaluate_StreamOnlineClearsQueueWithDecrement(t *testing.T) {
	settings := domain.Settings{
		ClearOnStreamStart:  true,
		ClearDecrementCount: true,
	}
	activity := domain.Activity{
		QueuedEntries: []domain.QueueEntry{
			{ID: "e1"},
			{ID: "e2"},
		},
	}
	event := domain.NormalizedEvent{
		Type:         domain.EventStreamOnline,
		StreamOnline: &domain.StreamOnlineEvent{StartedAt: time.Unix(0, 0).UTC()},
	}

	cmds := policy.Evaluate(event, settings, activity)
	require.Len(t, cmds, 3)
	assert.Equal(t, domain.CmdStreamOnline, cmds[0].Type)
	assert.True(t, cmds[0].StreamOnline.ClearQueue)
	assert.True(t, cmds[0].StreamOnline.DecrementCtr)
	assert.Equal(t, domain.CmdQueueRemove, cmds[1].Type)
	assert.Equal(t, domain.ReasonStreamStartClear, cmds[1].QueueRemove.Reason)
	assert.Equal(t, "e1", cmds[1].QueueRemove.EntryID)
	assert.Equal(t, "e2", cmds[2].QueueRemove.EntryID)
}

func TestEvaluate_StreamOnlineNoClear(t *testing.T) {
	settings := domain.Settings{ClearOnStreamStart: false}
	activity := domain.Activity{QueuedEntries: []domain.QueueEntry{{ID: "e1"}}}
	event := domain.NormalizedEvent{
		Type:         domain.EventStreamOnline,
		StreamOnline: &domain.StreamOnlineEvent{StartedAt: time.Unix(0, 0).UTC()},
	}

	cmds := policy.Evaluate(event, settings, activity)
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.CmdStreamOnline, cmds[0].Type)
}

func TestEvaluate_StreamOffline(t *testing.T) {
	event := domain.NormalizedEvent{
		Type:          domain.EventStreamOffline,
		StreamOffline: &domain.StreamOfflineEvent{EndedAt: time.Unix(100, 0).UTC()},
	}
	cmds := policy.Evaluate(event, domain.Settings{}, domain.Activity{})
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.CmdStreamOffline, cmds[0].Type)
}

func TestEvaluate_RedemptionUpdateReconcilesManagedEntry(t *testing.T) {
	activity := domain.Activity{
		QueuedEntries: []domain.QueueEntry{
			{ID: "e1", RedemptionID: "redemption-9"},
		},
	}
	event := domain.NormalizedEvent{
		Type: domain.EventRedemptionUpdate,
		RedemptionUpdate: &domain.RedemptionUpdateEvent{
			RedemptionID: "redemption-9",
			Status:       "canceled",
		},
	}
	cmds := policy.Evaluate(event, domain.Settings{}, activity)
	require.Len(t, cmds, 1)
	assert.Equal(t, "e1", cmds[0].RedemptionUpdate.EntryID)
	assert.Equal(t, domain.RedemptionRefund, cmds[0].RedemptionUpdate.Mode)
}

func TestEvaluate_RedemptionUpdateUnknownEntryIsNoOp(t *testing.T) {
	event := domain.NormalizedEvent{
		Type: domain.EventRedemptionUpdate,
		RedemptionUpdate: &domain.RedemptionUpdateEvent{
			RedemptionID: "unknown",
			Status:       "fulfilled",
		},
	}
	cmds := policy.Evaluate(event, domain.Settings{}, domain.Activity{})
	assert.Empty(t, cmds)
}

func TestEvaluate_Deterministic(t *testing.T) {
	settings := baseSettings(60, domain.DuplicateConsume)
	activity := domain.Activity{
		LastRedemption: map[string]time.Time{
			domain.ActivityKey("u1", "r1"): time.Unix(0, 0).UTC(),
		},
	}
	event := redemptionAddAt(time.Unix(30, 0).UTC())

	a := policy.Evaluate(event, settings, activity)
	b := policy.Evaluate(event, settings, activity)
	assert.Equal(t, a, b)
}
