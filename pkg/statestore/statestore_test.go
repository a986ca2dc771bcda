package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/database/testdb"
	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
)

func TestStore_InsertAndTransitionQueueEntry(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())

	now := time.Unix(0, 0).UTC()
	entry := domain.QueueEntry{
		ID:            "e1",
		Tenant:        "t1",
		User:          domain.User{ID: "u1", Login: "user1"},
		RewardID:      "r1",
		RedemptionID:  "red1",
		EnqueuedAt:    now,
		Status:        domain.StatusQueued,
		LastUpdatedAt: now,
	}
	require.NoError(t, store.InsertQueueEntry(ctx, entry))

	got, err := store.GetQueueEntry(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status)

	require.NoError(t, store.TransitionStatus(ctx, "t1", "e1", domain.StatusCompleted, "", now))

	got, err = store.GetQueueEntry(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestStore_TransitionStatusRejectsAlreadyTerminal(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	now := time.Unix(0, 0).UTC()

	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e1", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		EnqueuedAt: now, Status: domain.StatusQueued, LastUpdatedAt: now,
	}))
	require.NoError(t, store.TransitionStatus(ctx, "t1", "e1", domain.StatusRemoved, domain.ReasonUndo, now))

	err := store.TransitionStatus(ctx, "t1", "e1", domain.StatusCompleted, "", now)
	assert.ErrorIs(t, err, statestore.ErrAlreadyTerminal)

	err = store.TransitionStatus(ctx, "t1", "missing", domain.StatusCompleted, "", now)
	assert.ErrorIs(t, err, statestore.ErrEntryNotFound)
}

func TestStore_FindQueueEntryByRedemption(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	now := time.Unix(0, 0).UTC()

	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e1", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		RedemptionID: "red1", EnqueuedAt: now, Status: domain.StatusQueued, LastUpdatedAt: now,
	}))

	found, err := store.FindQueueEntryByRedemption(ctx, "t1", "red1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "e1", found.ID)

	missing, err := store.FindQueueEntryByRedemption(ctx, "t1", "no-such")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_CountersIncrementAndFetch(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())

	n, err := store.IncrementCounter(ctx, "t1", "2026-07-31", "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.IncrementCounter(ctx, "t1", "2026-07-31", "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.IncrementCounter(ctx, "t1", "2026-07-31", "u1", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := store.CountersForDay(ctx, "t1", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 1}, all)
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())

	settings := domain.Settings{
		ClearOnStreamStart: true,
		Policy:             domain.PolicyConfig{AntiSpamWindowSec: 30},
	}
	require.NoError(t, store.PutSettings(ctx, "t1", settings))

	got, err := store.GetSettings(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, settings, got)

	err = store.PutSettings(ctx, "no-such-tenant", settings)
	assert.ErrorIs(t, err, statestore.ErrTenantNotFound)
}

func TestStore_SessionOpenContinueClose(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	start := time.Unix(100, 0).UTC()

	require.NoError(t, store.OpenSession(ctx, "t1", start))

	started, err := store.OpenSessionStartedAt(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, start, *started)

	// Opening again while already open is a no-op: the started_at doesn't move.
	require.NoError(t, store.OpenSession(ctx, "t1", start.Add(time.Hour)))
	started, err = store.OpenSessionStartedAt(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, start, *started)

	require.NoError(t, store.CloseSession(ctx, "t1", start.Add(2*time.Hour)))
	closed, err := store.OpenSessionStartedAt(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, closed)
}

func TestStore_SnapshotReflectsCurrentState(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	now := time.Unix(0, 0).UTC()

	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e1", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		EnqueuedAt: now, Status: domain.StatusQueued, LastUpdatedAt: now,
	}))
	_, err := store.IncrementCounter(ctx, "t1", statestore.TenantDay(now, "UTC"), "u1", 1)
	require.NoError(t, err)

	snap, err := store.WithNow(func() time.Time { return now }).Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "e1", snap.Queue[0].ID)
	assert.Equal(t, map[string]int{"u1": 1}, snap.CountersToday)
}

func TestStore_SnapshotOrdersQueueByDailyCountThenEnqueuedAt(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	now := time.Unix(0, 0).UTC()
	day := statestore.TenantDay(now, "UTC")

	// u2 redeemed first but has 2 redemptions today; u1 redeemed later with
	// only 1, so it must be listed first despite the later enqueued_at.
	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e-u2", Tenant: "t1", User: domain.User{ID: "u2"}, RewardID: "r1",
		EnqueuedAt: now, Status: domain.StatusQueued, LastUpdatedAt: now,
	}))
	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e-u1", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		EnqueuedAt: now.Add(time.Minute), Status: domain.StatusQueued, LastUpdatedAt: now,
	}))
	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e-u1-2", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		EnqueuedAt: now.Add(2 * time.Minute), Status: domain.StatusQueued, LastUpdatedAt: now,
	}))

	_, err := store.IncrementCounter(ctx, "t1", day, "u2", 2)
	require.NoError(t, err)
	_, err = store.IncrementCounter(ctx, "t1", day, "u1", 1)
	require.NoError(t, err)

	snap, err := store.WithNow(func() time.Time { return now }).Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, snap.Queue, 3)
	assert.Equal(t, "e-u1", snap.Queue[0].ID)
	assert.Equal(t, "e-u1-2", snap.Queue[1].ID)
	assert.Equal(t, "e-u2", snap.Queue[2].ID)
}

func TestStore_BuildActivity(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	store := statestore.New(client.DB())
	now := time.Unix(1000, 0).UTC()

	require.NoError(t, store.InsertQueueEntry(ctx, domain.QueueEntry{
		ID: "e1", Tenant: "t1", User: domain.User{ID: "u1"}, RewardID: "r1",
		EnqueuedAt: now, Status: domain.StatusQueued, LastUpdatedAt: now,
	}))
	_, err := store.IncrementCounter(ctx, "t1", statestore.TenantDay(now, "UTC"), "u1", 1)
	require.NoError(t, err)

	activity, err := store.BuildActivity(ctx, "t1", statestore.TenantDay(now, "UTC"), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, activity.QueuedEntries, 1)
	assert.Equal(t, 1, activity.TodayCounts["u1"])
	last, ok := activity.LastRedemption[domain.ActivityKey("u1", "r1")]
	require.True(t, ok)
	assert.Equal(t, now, last)
}
