package commandlog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/commandlog"
	"github.com/broadcastqueue/eventsubd/pkg/database/testdb"
)

func TestLog_AppendNextIsContiguous(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()

	log := commandlog.New(client.DB())
	at := time.Unix(0, 0).UTC()

	v1, err := log.AppendNext(ctx, "t1", "", "enqueue", []byte(`{}`), at)
	require.NoError(t, err)
	v2, err := log.AppendNext(ctx, "t1", "", "enqueue", []byte(`{}`), at)
	require.NoError(t, err)

	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)
}

func TestLog_ConcurrentAppendsAreContiguous(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	log := commandlog.New(client.DB())
	at := time.Unix(0, 0).UTC()

	const n = 20
	versions := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := log.AppendNext(ctx, "t1", "", "enqueue", []byte(`{}`), at)
			require.NoError(t, err)
			versions[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, v := range versions {
		assert.False(t, seen[v], "duplicate version %d", v)
		seen[v] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing version %d", i)
	}
}

func TestLog_OpIDConflictOnDifferingPayload(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	log := commandlog.New(client.DB())
	at := time.Unix(0, 0).UTC()

	_, err := log.AppendNext(ctx, "t1", "op-1", "queue_remove", []byte(`{"mode":"UNDO"}`), at)
	require.NoError(t, err)

	_, err = log.AppendNext(ctx, "t1", "op-1", "queue_remove", []byte(`{"mode":"COMPLETE"}`), at)
	assert.ErrorIs(t, err, commandlog.ErrOpIDConflict)
}

func TestLog_FindByOpID(t *testing.T) {
	client := testdb.NewTestClient(t)
	testdb.SeedTenant(t, client, "t1")
	ctx := context.Background()
	log := commandlog.New(client.DB())
	at := time.Unix(0, 0).UTC()

	_, err := log.AppendNext(ctx, "t1", "op-1", "queue_remove", []byte(`{"mode":"UNDO"}`), at)
	require.NoError(t, err)

	entry, err := log.FindByOpID(ctx, "t1", "op-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "queue_remove", entry.Type)

	missing, err := log.FindByOpID(ctx, "t1", "op-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
