package snapscheduler

import (
	"time"

	"github.com/Daskott/snapcron/server/models"
)

// NextFireTime returns when a timer with recurrence 'r' should next fire, as seen at 'now'.
// Daily timers fire at TimeOfDay:00 in now's location.
func NextFireTime(r models.Recurrence, now time.Time) time.Time {
	switch r.Schedule {
	case models.SCHEDULE_DAILY:
		candidate := time.Date(now.Year(), now.Month(), now.Day(), r.TimeOfDay, 0, 0, 0, now.Location())

		// never hand back an instant so close to now that it re-triggers straight away
		if !candidate.After(now.Add(time.Second)) {
			candidate = candidate.Add(24 * time.Hour)
		}
		return candidate
	case models.SCHEDULE_HOURLY:
		return now.Add(time.Hour)
	case models.SCHEDULE_EVERY_X_HOUR:
		hours := r.Hour
		if hours < 1 {
			hours = 1
		}
		return now.Add(time.Duration(hours) * time.Hour)
	}

	// unset & 'off' timers are never due, so any value will do
	return now
}
