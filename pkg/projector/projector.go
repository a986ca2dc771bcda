// Package projector implements the pure mapping from a CommandResult — what
// the Command Executor produced after applying one Command — to the typed
// Patch value(s) delivered to SSE subscribers. Project performs no I/O and
// consults nothing beyond its argument.
package projector

import "github.com/broadcastqueue/eventsubd/pkg/domain"

// Project maps a single CommandResult to one or more Patches. Most command
// kinds yield exactly one patch; QueueRemove yields a second counter.updated
// patch when its removal reason decremented a counter.
func Project(result domain.CommandResult) []domain.Patch {
	base := domain.Patch{
		Tenant:  result.Tenant,
		Version: result.Version,
		At:      result.At,
	}

	switch result.Type {
	case domain.CmdEnqueue:
		p := base
		p.Type = domain.PatchQueueEnqueued
		p.Data = domain.QueueEnqueuedData{
			Entry:          result.Enqueue.Entry,
			UserTodayCount: result.Enqueue.UserTodayCount,
		}
		return []domain.Patch{p}

	case domain.CmdQueueComplete:
		p := base
		p.Type = domain.PatchQueueCompleted
		p.Data = domain.QueueCompletedData{EntryID: result.QueueComplete.EntryID}
		return []domain.Patch{p}

	case domain.CmdQueueRemove:
		p := base
		p.Type = domain.PatchQueueRemoved
		p.Data = domain.QueueRemovedData{
			EntryID:        result.QueueRemove.EntryID,
			Reason:         result.QueueRemove.Reason,
			UserTodayCount: result.QueueRemove.UserTodayCount,
		}
		patches := []domain.Patch{p}
		if c := result.QueueRemove.Counter; c != nil {
			cp := base
			cp.Type = domain.PatchCounterUpdated
			cp.Data = domain.CounterUpdatedData{UserID: c.UserID, Count: c.Count}
			patches = append(patches, cp)
		}
		return patches

	case domain.CmdSettingsUpdate:
		p := base
		p.Type = domain.PatchSettingsUpdated
		p.Data = domain.SettingsUpdatedData{Patch: result.SettingsUpdate.Patch}
		return []domain.Patch{p}

	case domain.CmdRedemptionUpdate:
		p := base
		p.Type = domain.PatchRedemptionUpdated
		r := result.RedemptionUpdate
		p.Data = domain.RedemptionUpdatedData{
			RedemptionID: r.RedemptionID,
			Mode:         r.Mode,
			Applicable:   r.Applicable,
			Result:       r.Result,
			Managed:      r.Managed,
			Error:        r.Error,
		}
		return []domain.Patch{p}

	case domain.CmdStreamOnline:
		p := base
		p.Type = domain.PatchStreamOnline
		return []domain.Patch{p}

	case domain.CmdStreamOffline:
		p := base
		p.Type = domain.PatchStreamOffline
		return []domain.Patch{p}

	default:
		return nil
	}
}
