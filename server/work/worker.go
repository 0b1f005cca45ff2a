package work

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/colors"
	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/server/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DEFAULT_MAX_FAILS = 4

var (
	DefaultTickerDuration = 5 * time.Millisecond
	TickerDurationOnError = 10 * time.Millisecond

	// DefaultSleepBackoffs is how long an idle worker waits between polls,
	// growing with every consecutive empty poll
	DefaultSleepBackoffs = []time.Duration{0, time.Second, 5 * time.Second, 10 * time.Second}

	ErrDuplicateHandler = errors.New("handler with provided name already mapped")
	ErrUnknownHandler   = errors.New("no handler mapped to name")

	logg = logger.NewLogger()
)

type JobParams struct {
	Name    string
	Handler string
	Args    map[string]interface{}

	// MaxFails is how many failed runs the job gets before it is marked dead
	MaxFails int
}

type Handler func(map[string]interface{}) error

type worker struct {
	id            string
	handlers      map[string]Handler
	stopChan      chan struct{}
	sleepBackoffs []time.Duration
}

func newWorker(sleepBackoffs []time.Duration) *worker {
	if len(sleepBackoffs) == 0 {
		sleepBackoffs = DefaultSleepBackoffs
	}

	return &worker{
		id:            uuid.NewString()[:8],
		handlers:      make(map[string]Handler),
		stopChan:      make(chan struct{}),
		sleepBackoffs: sleepBackoffs,
	}
}

func (w *worker) registerHandler(name string, handler Handler) error {
	if _, ok := w.handlers[name]; ok {
		return ErrDuplicateHandler
	}

	w.handlers[name] = handler
	return nil
}

// start starts the worker loop that pulls jobs from the queue & process them
func (w *worker) start() {
	go w.loop()
}

func (w *worker) stop() {
	w.stopChan <- struct{}{}
}

func (w *worker) loop() {
	var consecutiveNoJobs int
	var currentJob *models.Job
	var err error

	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	w.logInfof("starting")
	for {
		select {
		case <-w.stopChan:
			w.logInfof("stopping")
			return
		case <-rateLimiter.C:
			currentJob, err = models.NextJob(models.ENQUEUED_JOB, false)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// slowly increase the wait between polls while the queue stays empty
				consecutiveNoJobs++
				idx := consecutiveNoJobs
				if idx >= len(w.sleepBackoffs) {
					idx = len(w.sleepBackoffs) - 1
				}
				rateLimiter.Reset(w.sleepBackoffs[idx] + DefaultTickerDuration)
				continue
			}

			if err != nil {
				w.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			claimed, err := currentJob.MarkAsClaimed()
			if err != nil {
				w.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			if !claimed {
				continue
			}

			w.logInfof("claimed job with id=%v, name=%v", currentJob.ID, currentJob.Name)
			w.processJob(currentJob)
			rateLimiter.Reset(DefaultTickerDuration)
			consecutiveNoJobs = 0
		}
	}
}

func (w *worker) processJob(job *models.Job) {
	handler, ok := w.handlers[job.Handler]
	if !ok {
		// retrying won't help, so bury it
		job.Fails = job.MaxFails - 1
		w.determineFailedJobFate(job, fmt.Errorf("%w: %q", ErrUnknownHandler, job.Handler))
		return
	}

	args := make(map[string]interface{})
	err := json.Unmarshal([]byte(job.Args), &args)
	if err != nil {
		w.determineFailedJobFate(job, err)
		return
	}

	err = handler(args)
	if err != nil {
		w.determineFailedJobFate(job, err)
		return
	}
	w.markJobAsSuccessful(job)
}

func (w *worker) determineFailedJobFate(job *models.Job, runError error) {
	var jobStatus *models.JobStatus
	var err error

	w.logError(fmt.Errorf("job with id=%v failed: %v", job.ID, runError))
	job.Fails++

	// Jobs out of attempts are dead, the rest go back in the queue to be retried
	if job.Fails >= job.MaxFails {
		jobStatus, err = models.FindJobStatus(models.DEAD_JOB)
	} else {
		jobStatus, err = models.FindJobStatus(models.ENQUEUED_JOB)
	}

	if err != nil {
		w.logError(err)
		return
	}

	err = models.UpdateJob(job.ID, map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
		"fails":         job.Fails,
		"last_error":    runError.Error(),
		"enqueued_at":   time.Now(),
	})
	if err != nil {
		w.logError(err)
	}
	w.logInfof("job with id=%v completed with status=%v", job.ID, jobStatus.Name)
}

func (w *worker) markJobAsSuccessful(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.SUCCESSFUL_JOB)
	if err != nil {
		w.logError(err)
		return
	}

	err = models.UpdateJob(job.ID, map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
	})
	if err != nil {
		w.logError(err)
	}
	w.logInfof("job with id=%v completed with status=%v", job.ID, jobStatus.Name)
}

func (w *worker) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[worker %v] ", w.id))
	logg.Infof(prefix+template, args...)
}

func (w *worker) logError(args ...interface{}) {
	prefix := colors.Red(fmt.Sprintf("[worker %v] ", w.id))
	logg.Error(append([]interface{}{prefix}, args...)...)
}
