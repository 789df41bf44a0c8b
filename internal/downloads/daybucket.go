package downloads

import "time"

const dayMillis = 24 * 60 * 60 * 1000

// DayStart floors a timestamp to the start of its UTC day, in Unix
// milliseconds. The value is a persisted dedupe key component, so the
// bucketing rule must never change.
func DayStart(t time.Time) int64 {
	ms := t.UnixMilli()
	if ms < 0 {
		// Pre-epoch timestamps floor toward the earlier day.
		return ((ms - dayMillis + 1) / dayMillis) * dayMillis
	}
	return (ms / dayMillis) * dayMillis
}
