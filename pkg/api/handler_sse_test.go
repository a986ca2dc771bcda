package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

func TestPatchMatchesFamilies(t *testing.T) {
	queuePatch := domain.Patch{Type: domain.PatchQueueEnqueued, At: time.Now()}
	replacePatch := domain.Patch{Type: domain.PatchStateReplace, At: time.Now()}

	assert.True(t, patchMatchesFamilies(queuePatch, nil))
	assert.True(t, patchMatchesFamilies(queuePatch, map[string]bool{}))

	families := map[string]bool{"queue": true}
	assert.True(t, patchMatchesFamilies(queuePatch, families))

	families = map[string]bool{"counter": true}
	assert.False(t, patchMatchesFamilies(queuePatch, families))

	// state.replace always bypasses the filter.
	assert.True(t, patchMatchesFamilies(replacePatch, families))
}
