package cron

import (
	"time"

	"github.com/Daskott/snapcron/server/logger"
	"github.com/go-co-op/gocron"
)

var logg = logger.NewLogger()

// NewCronScheduler returns a scheduler whose job tags must be unique.
// An unknown 'timeZone' falls back to UTC.
func NewCronScheduler(timeZone string) *gocron.Scheduler {
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		logg.Warnf("unable to load time zone %q, using UTC: %v", timeZone, err)
		location = time.UTC
	}

	scheduler := gocron.NewScheduler(location)
	scheduler.TagsUnique()
	return scheduler
}
