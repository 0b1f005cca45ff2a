package work

import (
	"testing"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequeuerRequeuesStuckJobs(t *testing.T) {
	models.InitializeTestDb()

	require.NoError(t, models.CreateJob("snapshot_project_42", "take_snapshot", "{}", 4))
	stuck := jobWithStatus(t, models.ENQUEUED_JOB)

	claimed, err := stuck.MarkAsClaimed()
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, models.UpdateJob(stuck.ID, map[string]interface{}{"updated_at": time.Now().Add(-time.Hour)}))

	r := newRequeuer(30 * time.Minute)
	r.start()
	defer r.stop()

	assert.Eventually(t, func() bool {
		job, err := models.FindJob(stuck.ID)
		return err == nil && job.JobStatus.Name == models.ENQUEUED_JOB && !job.Claimed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRequeuerLeavesRecentJobsAlone(t *testing.T) {
	models.InitializeTestDb()

	require.NoError(t, models.CreateJob("snapshot_project_42", "take_snapshot", "{}", 4))
	job := jobWithStatus(t, models.ENQUEUED_JOB)

	claimed, err := job.MarkAsClaimed()
	require.NoError(t, err)
	require.True(t, claimed)

	r := newRequeuer(30 * time.Minute)
	r.start()
	time.Sleep(50 * time.Millisecond)
	r.stop()

	job, err = models.FindJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IN_PROGRESS_JOB, job.JobStatus.Name)
}
