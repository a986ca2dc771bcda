// Package replay implements capture/replay debug tooling: given a captured
// sequence of Normalizer-stage tap.StageEvents, it re-runs Policy + the
// Command Executor's apply logic against a purely in-memory state
// projection, backed by an in-memory store so the durable store is
// guaranteed to never be touched.
package replay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/policy"
	"github.com/broadcastqueue/eventsubd/pkg/projector"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
)

// FinalState is the tenant's reconstructed projection after replaying every
// captured event in order.
type FinalState struct {
	Tenant        string
	Version       int64
	Queue         []domain.QueueEntry
	CountersToday map[string]int
	Settings      domain.Settings
	Patches       []domain.Patch
}

// Replay reconstructs tenant's state by running Policy and an in-memory
// apply step — never the real pkg/executor.Executor — over every
// tap.StageEvent captured at StageNormalizer, in timestamp order. initial is
// the tenant's Settings at the start of the capture window, supplied by the
// caller (POST /debug/replay takes it from the request body), since Settings
// themselves aren't re-derivable from the command stream alone without a
// starting point.
func Replay(tenant string, records []tap.StageEvent, initial domain.Settings) (FinalState, error) {
	events, err := normalizedEvents(tenant, records)
	if err != nil {
		return FinalState{}, err
	}

	mem := newMemState(initial)
	var version int64
	var patches []domain.Patch

	for _, ev := range events {
		activity := mem.activity()
		commands := policy.Evaluate(ev, mem.settings, activity)

		decrementOnClear := false
		for _, cmd := range commands {
			if cmd.Type == domain.CmdStreamOnline && cmd.StreamOnline.DecrementCtr {
				decrementOnClear = true
			}
		}

		for _, cmd := range commands {
			result, err := mem.apply(cmd, decrementOnClear)
			if err != nil {
				return FinalState{}, err
			}
			version++
			result.Tenant = tenant
			result.Version = version
			result.At = eventTime(ev)
			patches = append(patches, projector.Project(result)...)
		}
	}

	return FinalState{
		Tenant:        tenant,
		Version:       version,
		Queue:         mem.queueSlice(),
		CountersToday: mem.counters,
		Settings:      mem.settings,
		Patches:       patches,
	}, nil
}

// normalizedEvents extracts and decodes the Normalizer stage's Out payload
// from each captured record, in chronological order. Records from any other
// stage are ignored — replay only needs the pipeline's own normalized input,
// not its downstream observations.
func normalizedEvents(tenant string, records []tap.StageEvent) ([]domain.NormalizedEvent, error) {
	filtered := make([]tap.StageEvent, 0, len(records))
	for _, r := range records {
		if r.Stage == tap.StageNormalizer && r.Tenant == tenant {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })

	events := make([]domain.NormalizedEvent, 0, len(filtered))
	for _, r := range filtered {
		var ev domain.NormalizedEvent
		if err := json.Unmarshal([]byte(r.Out), &ev); err != nil {
			return nil, fmt.Errorf("replay: decode normalized event: %w", err)
		}
		if ev.Type == domain.EventNoOp || ev.Type == "" {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// eventTime extracts the variant-specific occurrence timestamp a
// NormalizedEvent carries, used as the replayed CommandResult.At since
// replay has no real clock to stamp commands with.
func eventTime(ev domain.NormalizedEvent) time.Time {
	switch ev.Type {
	case domain.EventRedemptionAdd:
		return ev.RedemptionAdd.RedeemedAt
	case domain.EventRedemptionUpdate:
		return ev.RedemptionUpdate.UpdatedAt
	case domain.EventStreamOnline:
		return ev.StreamOnline.StartedAt
	case domain.EventStreamOffline:
		return ev.StreamOffline.EndedAt
	default:
		return time.Time{}
	}
}
