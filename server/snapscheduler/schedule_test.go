package snapscheduler

import (
	"testing"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFireTime(t *testing.T) {
	day := func(d, h, m, s, ns int) time.Time {
		return time.Date(2026, 10, d, h, m, s, ns, time.UTC)
	}
	daily9 := models.Recurrence{Schedule: models.SCHEDULE_DAILY, TimeOfDay: 9}

	tests := []struct {
		name       string
		recurrence models.Recurrence
		now        time.Time
		want       time.Time
	}{
		{"daily before time of day fires today", daily9, day(19, 8, 59, 58, 0), day(19, 9, 0, 0, 0)},
		{"daily within a second of time of day fires tomorrow", daily9, day(19, 8, 59, 59, 900_000_000), day(20, 9, 0, 0, 0)},
		{"daily exactly a second before fires tomorrow", daily9, day(19, 8, 59, 59, 0), day(20, 9, 0, 0, 0)},
		{"daily after time of day fires tomorrow", daily9, day(19, 10, 0, 0, 0), day(20, 9, 0, 0, 0)},
		{
			"daily at midnight",
			models.Recurrence{Schedule: models.SCHEDULE_DAILY, TimeOfDay: 0},
			day(19, 23, 30, 0, 0),
			day(20, 0, 0, 0, 0),
		},
		{"hourly", models.Recurrence{Schedule: models.SCHEDULE_HOURLY}, day(19, 8, 15, 0, 0), day(19, 9, 15, 0, 0)},
		{
			"every x hour",
			models.Recurrence{Schedule: models.SCHEDULE_EVERY_X_HOUR, Hour: 3},
			day(19, 8, 15, 0, 0),
			day(19, 11, 15, 0, 0),
		},
		{
			"every x hour below one is treated as one",
			models.Recurrence{Schedule: models.SCHEDULE_EVERY_X_HOUR, Hour: 0},
			day(19, 8, 15, 0, 0),
			day(19, 9, 15, 0, 0),
		},
		{"off returns now", models.Recurrence{Schedule: models.SCHEDULE_OFF}, day(19, 8, 15, 0, 0), day(19, 8, 15, 0, 0)},
		{"unset returns now", models.Recurrence{}, day(19, 8, 15, 0, 0), day(19, 8, 15, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFireTime(tt.recurrence, tt.now)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestNextFireTimeUsesLocationOfNow(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, toronto)
	got := NextFireTime(models.Recurrence{Schedule: models.SCHEDULE_DAILY, TimeOfDay: 9}, now)

	assert.True(t, time.Date(2026, 10, 19, 9, 0, 0, 0, toronto).Equal(got))
	assert.Equal(t, toronto, got.Location())
}

func TestNextFireTimeIsAlwaysInTheFuture(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for hour := 0; hour < 24; hour++ {
		for _, recurrence := range []models.Recurrence{
			{Schedule: models.SCHEDULE_DAILY, TimeOfDay: hour},
			{Schedule: models.SCHEDULE_EVERY_X_HOUR, Hour: hour},
			{Schedule: models.SCHEDULE_HOURLY},
		} {
			next := NextFireTime(recurrence, now)
			assert.True(t, next.After(now.Add(time.Second)), "%+v gave %v", recurrence, next)
			assert.False(t, next.After(now.Add(24*time.Hour)), "%+v gave %v", recurrence, next)
		}
	}
}
