package work

import (
	"errors"
	"time"

	"github.com/Daskott/snapcron/colors"
	"github.com/Daskott/snapcron/server/models"
	"gorm.io/gorm"
)

const DEFAULT_STUCK_AFTER = 30 * time.Minute

// requeuer puts jobs that stayed too long 'in-progress' back in the queue,
// e.g. jobs claimed by a process that died before finishing them
type requeuer struct {
	stuckAfter time.Duration
	stopChan   chan struct{}
}

func newRequeuer(stuckAfter time.Duration) *requeuer {
	if stuckAfter <= 0 {
		stuckAfter = DEFAULT_STUCK_AFTER
	}

	return &requeuer{
		stuckAfter: stuckAfter,
		stopChan:   make(chan struct{}),
	}
}

func (r *requeuer) start() {
	go r.loop()
}

func (r *requeuer) stop() {
	r.stopChan <- struct{}{}
}

func (r *requeuer) loop() {
	var job *models.Job
	var err error

	sleepBackOff := r.stuckAfter / 2
	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	r.logInfof("starting, jobs in-progress for over %v get requeued", r.stuckAfter)
	for {
		select {
		case <-r.stopChan:
			r.logInfof("stopping")
			return
		case <-rateLimiter.C:
			job, err = models.LastJobLastUpdated(time.Now().Add(-r.stuckAfter), models.IN_PROGRESS_JOB)

			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(sleepBackOff)
				continue
			}

			if err != nil {
				r.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.logInfof("fetched stuck job with id=%v, name=%v", job.ID, job.Name)
			r.requeue(job)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *requeuer) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		r.logError(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
		"enqueued_at":   time.Now(),
	})
	if err != nil {
		r.logError(err)
		return
	}

	r.logInfof("job with id=%v requeued", job.ID)
}

func (r *requeuer) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow("[in-progress job requeuer] ")
	logg.Infof(prefix+template, args...)
}

func (r *requeuer) logError(args ...interface{}) {
	prefix := colors.Red("[in-progress job requeuer] ")
	logg.Error(append([]interface{}{prefix}, args...)...)
}
