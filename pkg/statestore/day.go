package statestore

import "time"

// TenantDay returns the tenant-local calendar day, in the same
// YYYY-MM-DD form used as daily_counters' day key, for at projected into
// the tenant's timezone. Falls back to UTC if the timezone name is unknown.
func TenantDay(at time.Time, timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return at.In(loc).Format("2006-01-02")
}
