package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/eventstore"
)

func TestMemory_DuplicateMessageID(t *testing.T) {
	m := eventstore.NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, domain.EventRecord{Tenant: "t1", ExternalMessageID: "msg-1"})
	require.NoError(t, err)

	_, err = m.Insert(ctx, domain.EventRecord{Tenant: "t1", ExternalMessageID: "msg-1"})
	assert.ErrorIs(t, err, eventstore.ErrDuplicateMessage)

	assert.Len(t, m.All(), 1)
}

func TestMemory_AssignsIncreasingIDs(t *testing.T) {
	m := eventstore.NewMemory()
	ctx := context.Background()

	id1, err := m.Insert(ctx, domain.EventRecord{ExternalMessageID: "a"})
	require.NoError(t, err)
	id2, err := m.Insert(ctx, domain.EventRecord{ExternalMessageID: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
}
