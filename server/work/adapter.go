package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/server/cron"
	"github.com/Daskott/snapcron/server/models"
	"github.com/go-co-op/gocron"
)

type Options struct {
	TimeZone    string
	Concurrency int

	// SleepBackoffs overrides DefaultSleepBackoffs
	SleepBackoffs []time.Duration

	// StuckAfter is how long a job may stay in-progress before it is requeued
	StuckAfter time.Duration
}

type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *WorkerPool
}

func NewWorkerAdapter(options Options) *WorkerPoolAdapter {
	return &WorkerPoolAdapter{
		cronScheduler: cron.NewCronScheduler(options.TimeZone),
		pool:          newWorkerPool(options.Concurrency, options.SleepBackoffs, options.StuckAfter),
	}
}

// CronScheduler is the scheduler periodic jobs run on, it is started & stopped with the adapter
func (adapter *WorkerPoolAdapter) CronScheduler() *gocron.Scheduler {
	return adapter.cronScheduler
}

// Start starts the cron scheduler & worker pool
func (adapter *WorkerPoolAdapter) Start() error {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.pool.start()

	return nil
}

// Stop stops the cron scheduler & worker pool
func (adapter *WorkerPoolAdapter) Stop() error {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()

	return nil
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, to be executed as soon as a worker is available.
// A job with the same name already waiting or running swallows it.
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: name=%v, handler=%v", job.Name, job.Handler)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job.Name, err)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue (to be executed)
// periodically, based on the 'cronExpression' expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				err := adapter.Perform(job)
				if err != nil {
					logg.Error(err)
				}
			},
			job,
		)
	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) error {
	return adapter.cronScheduler.RemoveByTag(jobName)
}
