package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func createTestTimer(t *testing.T, timer Timer) *Timer {
	created, err := CreateOrUpdateTimer(context.Background(), &timer)
	require.NoError(t, err)
	return created
}

func TestCreateOrUpdateTimer(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	created := createTestTimer(t, Timer{
		ProjectID:       42,
		Recurrence:      Recurrence{Schedule: SCHEDULE_DAILY, TimeOfDay: 9},
		MonitorType:     MONITOR_CUSTOM,
		PageIDs:         []uint{1, 3},
		ProfileIDs:      []uint{5},
		EnvIDs:          []uint{7},
		NextTriggerTime: testNow,
	})
	assert.NotZero(t, created.ID)

	updated := createTestTimer(t, Timer{
		ProjectID:       42,
		Recurrence:      Recurrence{Schedule: SCHEDULE_HOURLY},
		MonitorType:     MONITOR_ALL,
		NextTriggerTime: testNow.Add(time.Hour),
	})
	assert.Equal(t, created.ID, updated.ID, "a project has a single timer")

	stored, err := FindTimerByProject(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, SCHEDULE_HOURLY, stored.Recurrence.Schedule)
	assert.Equal(t, MONITOR_ALL, stored.MonitorType)
	assert.Empty(t, stored.PageIDs)
	assert.True(t, testNow.Add(time.Hour).Equal(stored.NextTriggerTime))
}

func TestTimerMembershipRoundTrips(t *testing.T) {
	InitializeTestDb()

	created := createTestTimer(t, Timer{
		ProjectID:       42,
		Recurrence:      Recurrence{Schedule: SCHEDULE_EVERY_X_HOUR, Hour: 3},
		MonitorType:     MONITOR_CUSTOM,
		PageIDs:         []uint{3, 1},
		ProfileIDs:      []uint{5},
		EnvIDs:          []uint{7, 8},
		NextTriggerTime: testNow,
	})

	stored, err := FindTimerByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1}, stored.PageIDs)
	assert.Equal(t, []uint{5}, stored.ProfileIDs)
	assert.Equal(t, []uint{7, 8}, stored.EnvIDs)
	assert.Equal(t, 3, stored.Recurrence.Hour)
}

func TestFindTimerNotFound(t *testing.T) {
	InitializeTestDb()

	_, err := FindTimerByProject(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTimerNotFound)

	_, err = FindTimerByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTimerNotFound)

	assert.ErrorIs(t, UpdateNextFireTime(context.Background(), 404, testNow), ErrTimerNotFound)
}

func TestFindDueTimers(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	overdue := createTestTimer(t, Timer{
		ProjectID:       1,
		Recurrence:      Recurrence{Schedule: SCHEDULE_HOURLY},
		NextTriggerTime: testNow.Add(-time.Minute),
	})
	soon := createTestTimer(t, Timer{
		ProjectID:       2,
		Recurrence:      Recurrence{Schedule: SCHEDULE_DAILY, TimeOfDay: 9},
		NextTriggerTime: testNow.Add(5 * time.Minute),
	})
	createTestTimer(t, Timer{
		ProjectID:       3,
		Recurrence:      Recurrence{Schedule: SCHEDULE_HOURLY},
		NextTriggerTime: testNow.Add(time.Hour),
	})
	createTestTimer(t, Timer{
		ProjectID:       4,
		Recurrence:      Recurrence{Schedule: SCHEDULE_OFF},
		NextTriggerTime: testNow.Add(-time.Hour),
	})
	createTestTimer(t, Timer{
		ProjectID:       5,
		NextTriggerTime: testNow.Add(-time.Hour),
	})

	due, err := FindDueTimers(ctx, testNow.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, overdue.ID, due[0].ID)
	assert.Equal(t, soon.ID, due[1].ID)

	// a time in another zone means the same instant
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	due, err = FindDueTimers(ctx, testNow.Add(10*time.Minute).In(toronto))
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestUpdateNextFireTime(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	timer := createTestTimer(t, Timer{
		ProjectID:       42,
		Recurrence:      Recurrence{Schedule: SCHEDULE_HOURLY},
		NextTriggerTime: testNow,
	})

	require.NoError(t, UpdateNextFireTime(ctx, timer.ID, testNow.Add(time.Hour)))

	due, err := FindDueTimers(ctx, testNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestTimerIsDue(t *testing.T) {
	timer := Timer{Recurrence: Recurrence{Schedule: SCHEDULE_HOURLY}, NextTriggerTime: testNow}

	assert.True(t, timer.IsDue(testNow))
	assert.False(t, timer.IsDue(testNow.Add(-time.Second)))

	timer.Recurrence.Schedule = SCHEDULE_OFF
	assert.False(t, timer.IsDue(testNow.Add(time.Hour)))
}

func TestTimerClone(t *testing.T) {
	timer := Timer{PageIDs: []uint{1, 2}}
	clone := timer.Clone()
	clone.PageIDs[0] = 9

	assert.Equal(t, []uint{1, 2}, timer.PageIDs)
}

func TestFetchTimers(t *testing.T) {
	InitializeTestDb()

	for projectID := uint(1); projectID <= 30; projectID++ {
		createTestTimer(t, Timer{ProjectID: projectID, NextTriggerTime: testNow})
	}

	timers, paging, err := FetchTimers(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, timers, 5)
	assert.Equal(t, uint(26), timers[0].ProjectID)
	assert.Equal(t, &Paging{Total: 30, Page: 2, Pages: 2}, paging)
}
