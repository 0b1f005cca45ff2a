package work

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Daskott/snapcron/server/models"
)

type WorkerPool struct {
	handlers map[string]Handler
	workers  []*worker
	requeuer *requeuer
	started  bool
	mu       sync.Mutex
}

func newWorkerPool(concurrency int, sleepBackoffs []time.Duration, stuckAfter time.Duration) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}

	wp := WorkerPool{
		handlers: make(map[string]Handler),
		requeuer: newRequeuer(stuckAfter),
	}
	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(sleepBackoffs))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *WorkerPool) registerHandler(name string, handler Handler) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	wp.handlers[name] = handler

	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)
		if err != nil && !errors.Is(err, ErrDuplicateHandler) {
			return err
		}
	}
	return nil
}

// enqueue creates a job record from 'job'. Jobs are unique by name among those
// 'enqueued' or 'in-progress', a duplicate gets models.ErrDuplicateJob.
func (wp *WorkerPool) enqueue(job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	maxFails := job.MaxFails
	if maxFails < 1 {
		maxFails = DEFAULT_MAX_FAILS
	}

	argsAsJson, err := json.Marshal(job.Args)
	if err != nil {
		return err
	}

	return models.CreateUniqueJobByName(job.Name, job.Handler, string(argsAsJson), maxFails)
}

// start starts all workers & the requeuer
func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
	wp.requeuer.start()
}

// stop stops all workers & the requeuer, waiting for jobs being processed to finish
func (wp *WorkerPool) stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wp.requeuer.stop()
	wg.Wait()
	wp.started = false
}
