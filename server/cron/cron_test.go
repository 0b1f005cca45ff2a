package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronScheduler(t *testing.T) {
	scheduler := NewCronScheduler("America/Toronto")
	assert.Equal(t, "America/Toronto", scheduler.Location().String())

	_, err := scheduler.Every(time.Minute).Tag("scan").Do(func() {})
	require.NoError(t, err)

	_, err = scheduler.Every(time.Minute).Tag("scan").Do(func() {})
	assert.Error(t, err, "tags are unique")
}

func TestNewCronSchedulerFallsBackToUTC(t *testing.T) {
	scheduler := NewCronScheduler("Mars/Olympus_Mons")
	assert.Equal(t, time.UTC, scheduler.Location())
}
