package sse_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/sse"
)

func TestWriter_WritePatch(t *testing.T) {
	var buf bytes.Buffer
	w := sse.NewWriter(&buf, nil)
	err := w.WritePatch(domain.Patch{
		Tenant:  "t1",
		Version: 5,
		Type:    domain.PatchQueueEnqueued,
		At:      time.Unix(0, 0).UTC(),
		Data:    domain.QueueEnqueuedData{UserTodayCount: 2},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "id: 5\n"))
	assert.Contains(t, out, "event: patch\n")
	assert.Contains(t, out, `"type":"queue.enqueued"`)
	assert.Contains(t, out, `"user_today_count":2`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestWriter_WriteHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	w := sse.NewWriter(&buf, nil)
	require.NoError(t, w.WriteHeartbeat())
	assert.Equal(t, ": heartbeat\n\n", buf.String())
}
