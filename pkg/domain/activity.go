package domain

import "time"

// Activity is the explicit "recent activity" snapshot the Policy Engine
// consults instead of reading storage itself, keeping Evaluate a pure
// function. The Command Executor's caller is responsible for assembling
// this from the State Store before invoking Policy.
type Activity struct {
	// LastRedemption maps "userID|rewardID" to the time of that pair's most
	// recent RedemptionAdd, if any occurred within a window worth consulting.
	LastRedemption map[string]time.Time

	// QueuedEntries holds the tenant's currently QUEUED entries, needed by
	// StreamOnline's clear-on-start behavior.
	QueuedEntries []QueueEntry

	// TodayCounts maps userID to that user's counter for the tenant-local
	// "today" at evaluation time.
	TodayCounts map[string]int
}

// ActivityKey builds the LastRedemption lookup key for a (user, reward) pair.
func ActivityKey(userID, rewardID string) string {
	return userID + "|" + rewardID
}
