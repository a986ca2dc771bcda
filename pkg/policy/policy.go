// Package policy implements the Policy Engine: translating a NormalizedEvent
// plus the tenant's current Settings and a recent-activity snapshot into an
// ordered list of Commands. Evaluate is pure — no I/O, no clock, no storage
// reads; all inputs the rules need are passed in explicitly.
package policy

import (
	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// Evaluate runs the normative rules from the Policy Engine component design
// and returns the ordered commands they produce. The same (event, settings,
// activity) triple MUST always yield the same result.
func Evaluate(event domain.NormalizedEvent, settings domain.Settings, activity domain.Activity) []domain.Command {
	switch event.Type {
	case domain.EventRedemptionAdd:
		return evaluateRedemptionAdd(event.RedemptionAdd, settings, activity)
	case domain.EventRedemptionUpdate:
		return evaluateRedemptionUpdate(event.RedemptionUpdate, activity)
	case domain.EventStreamOnline:
		return evaluateStreamOnline(event.StreamOnline, settings, activity)
	case domain.EventStreamOffline:
		return evaluateStreamOffline(event.StreamOffline)
	default:
		return nil
	}
}

func evaluateRedemptionAdd(e *domain.RedemptionAddEvent, settings domain.Settings, activity domain.Activity) []domain.Command {
	targets := settings.Policy.TargetRewards
	if len(targets) > 0 && !targets[e.RewardID] {
		return nil
	}

	if withinAntiSpamWindow(e, settings, activity) {
		switch settings.Policy.DuplicatePolicy {
		case domain.DuplicateRefund:
			return []domain.Command{
				{
					Type: domain.CmdRedemptionUpdate,
					RedemptionUpdate: &domain.RedemptionUpdateCommand{
						RedemptionID: e.RedemptionID,
						Mode:         domain.RedemptionRefund,
					},
				},
			}
		case domain.DuplicateConsume:
			return enqueueAndConsume(e)
		default:
			return enqueueAndConsume(e)
		}
	}

	return enqueueAndConsume(e)
}

func enqueueAndConsume(e *domain.RedemptionAddEvent) []domain.Command {
	return []domain.Command{
		{
			Type: domain.CmdEnqueue,
			Enqueue: &domain.EnqueueCommand{
				User:         e.User,
				RewardID:     e.RewardID,
				RedemptionID: e.RedemptionID,
				EnqueuedAt:   e.RedeemedAt,
			},
		},
		{
			Type: domain.CmdRedemptionUpdate,
			RedemptionUpdate: &domain.RedemptionUpdateCommand{
				RedemptionID: e.RedemptionID,
				Mode:         domain.RedemptionConsume,
			},
		},
	}
}

// withinAntiSpamWindow reports whether e falls within anti_spam_window_sec of
// the same (user, reward) pair's most recent redemption. The boundary is
// inclusive: an event exactly anti_spam_window_sec after the prior one is
// still considered a duplicate.
func withinAntiSpamWindow(e *domain.RedemptionAddEvent, settings domain.Settings, activity domain.Activity) bool {
	window := settings.Policy.AntiSpamWindowSec
	if window <= 0 || activity.LastRedemption == nil {
		return false
	}
	prev, ok := activity.LastRedemption[domain.ActivityKey(e.User.ID, e.RewardID)]
	if !ok {
		return false
	}
	elapsed := e.RedeemedAt.Sub(prev).Seconds()
	return elapsed >= 0 && elapsed <= float64(window)
}

func evaluateRedemptionUpdate(e *domain.RedemptionUpdateEvent, activity domain.Activity) []domain.Command {
	entryID := findEntryByRedemption(activity, e.RedemptionID)
	if entryID == "" {
		return nil
	}
	return []domain.Command{
		{
			Type: domain.CmdRedemptionUpdate,
			RedemptionUpdate: &domain.RedemptionUpdateCommand{
				RedemptionID: e.RedemptionID,
				Mode:         redemptionModeFromStatus(e.Status),
				EntryID:      entryID,
			},
		},
	}
}

func redemptionModeFromStatus(status string) domain.RedemptionMode {
	if status == "canceled" {
		return domain.RedemptionRefund
	}
	return domain.RedemptionConsume
}

func findEntryByRedemption(activity domain.Activity, redemptionID string) string {
	for _, entry := range activity.QueuedEntries {
		if entry.RedemptionID == redemptionID {
			return entry.ID
		}
	}
	return ""
}

func evaluateStreamOnline(e *domain.StreamOnlineEvent, settings domain.Settings, activity domain.Activity) []domain.Command {
	commands := []domain.Command{
		{
			Type: domain.CmdStreamOnline,
			StreamOnline: &domain.StreamOnlineCommand{
				StartedAt:    e.StartedAt,
				ClearQueue:   settings.ClearOnStreamStart,
				DecrementCtr: settings.ClearOnStreamStart && settings.ClearDecrementCount,
			},
		},
	}
	if !settings.ClearOnStreamStart {
		return commands
	}
	for _, entry := range activity.QueuedEntries {
		commands = append(commands, domain.Command{
			Type: domain.CmdQueueRemove,
			QueueRemove: &domain.QueueRemoveCommand{
				EntryID: entry.ID,
				Reason:  domain.ReasonStreamStartClear,
			},
		})
	}
	return commands
}

func evaluateStreamOffline(e *domain.StreamOfflineEvent) []domain.Command {
	return []domain.Command{
		{
			Type: domain.CmdStreamOffline,
			StreamOffline: &domain.StreamOfflineCommand{
				EndedAt: e.EndedAt,
			},
		},
	}
}
