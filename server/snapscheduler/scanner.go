package snapscheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Daskott/snapcron/colors"
	"github.com/Daskott/snapcron/server/lock"
	"github.com/Daskott/snapcron/server/models"
	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	SCAN_JOB_TAG = "snapshot-timer-scan"

	DEFAULT_SCAN_INTERVAL = 10 * time.Minute
	DEFAULT_LOOKAHEAD     = 10 * time.Minute
	DEFAULT_LEASE_TTL     = 11 * time.Minute
	DEFAULT_CONCURRENCY   = 10
)

type ScannerConfig struct {
	Interval time.Duration

	// Lookahead is how far past 'now' a scan looks for due timers.
	// Must not be shorter than Interval or firings fall between scans.
	Lookahead time.Duration

	// LeaseTTL is how long a claimed dedup key lives. Must outlive Interval,
	// so the next scan still sees the claim.
	LeaseTTL time.Duration

	Concurrency int

	// Owner is the value written under claimed dedup keys
	Owner string
}

func (c ScannerConfig) withDefaults() ScannerConfig {
	if c.Interval <= 0 {
		c.Interval = DEFAULT_SCAN_INTERVAL
	}
	if c.Lookahead <= 0 {
		c.Lookahead = DEFAULT_LOOKAHEAD
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DEFAULT_LEASE_TTL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DEFAULT_CONCURRENCY
	}
	if c.Owner == "" {
		c.Owner = lock.NewOwnerToken()
	}
	return c
}

// ScanReport sums up what a single scan did with the timers it found
type ScanReport struct {
	Due       int `json:"due"`
	Immediate int `json:"immediate"`
	Deferred  int `json:"deferred"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// PendingDispatch is a deferred dispatch waiting on its fire time
type PendingDispatch struct {
	TimerID   uint      `json:"timer_id"`
	ProjectID uint      `json:"project_id"`
	FireAt    time.Time `json:"fire_at"`
}

type deferredDispatch struct {
	timer clockwork.Timer
	PendingDispatch
}

// Scanner periodically looks for timers due within its lookahead window and
// arranges for each to be dispatched exactly once across every process sharing the lock store.
type Scanner struct {
	config     ScannerConfig
	timers     TimerStore
	locks      lock.Store
	dispatcher *Dispatcher
	clock      clockwork.Clock

	mu       sync.Mutex
	pending  map[uint]*deferredDispatch
	stopped  bool
	lastScan time.Time

	// running counts in-flight dispatches for Drain, inflight lets Stop wait on them.
	// Both only grow under mu while the scanner isn't stopped.
	running  int
	inflight sync.WaitGroup
}

func NewScanner(
	config ScannerConfig,
	timers TimerStore,
	locks lock.Store,
	dispatcher *Dispatcher,
	clock clockwork.Clock,
) *Scanner {
	return &Scanner{
		config:     config.withDefaults(),
		timers:     timers,
		locks:      locks,
		dispatcher: dispatcher,
		clock:      clock,
		pending:    make(map[uint]*deferredDispatch),
	}
}

// Start registers the periodic scan with 'scheduler'. Overlapping scans are never run.
func (s *Scanner) Start(scheduler *gocron.Scheduler) error {
	_, err := scheduler.Every(s.config.Interval).Tag(SCAN_JOB_TAG).SingletonMode().Do(func() {
		_, err := s.Scan(context.Background())
		if err != nil {
			s.logError(err)
		}
	})
	if err != nil {
		return fmt.Errorf("unable to register scan job: %v", err)
	}

	s.logInfof("scanning every %v, lookahead=%v, lease_ttl=%v, owner=%v",
		s.config.Interval, s.config.Lookahead, s.config.LeaseTTL, s.config.Owner)
	return nil
}

// Scan finds timers due before now + lookahead & either dispatches each immediately
// or schedules its dispatch for its fire time, unless another scan already claimed it.
func (s *Scanner) Scan(ctx context.Context) (ScanReport, error) {
	now := s.clock.Now()

	due, err := s.timers.FindDueTimers(ctx, now.Add(s.config.Lookahead))
	if err != nil {
		return ScanReport{}, fmt.Errorf("Scan: %v", err)
	}

	s.mu.Lock()
	s.lastScan = now
	s.mu.Unlock()

	report := ScanReport{Due: len(due)}
	var reportMu sync.Mutex

	// the group never returns an error so one bad timer can't cancel the others
	group := errgroup.Group{}
	group.SetLimit(s.config.Concurrency)

	for i := range due {
		timer := due[i]
		group.Go(func() error {
			outcome := s.claim(ctx, &timer, now)

			reportMu.Lock()
			defer reportMu.Unlock()
			switch outcome {
			case claimImmediate:
				report.Immediate++
			case claimDeferred:
				report.Deferred++
			case claimSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
			return nil
		})
	}
	group.Wait()

	s.logInfof("scan done, due=%v immediate=%v deferred=%v skipped=%v failed=%v",
		report.Due, report.Immediate, report.Deferred, report.Skipped, report.Failed)
	return report, nil
}

// Pending lists the deferred dispatches not yet fired, soonest first
func (s *Scanner) Pending() []PendingDispatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]PendingDispatch, 0, len(s.pending))
	for _, entry := range s.pending {
		pending = append(pending, entry.PendingDispatch)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].FireAt.Before(pending[j].FireAt)
	})
	return pending
}

func (s *Scanner) LastScan() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

func (s *Scanner) Config() ScannerConfig {
	return s.config
}

// Drain blocks until every pending & in-flight dispatch is done, or ctx is done.
// Scans running meanwhile may add more work to wait for.
func (s *Scanner) Drain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		remaining := len(s.pending) + s.running
		s.mu.Unlock()

		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop abandons dispatches that haven't fired yet & waits for in-flight ones.
// Dedup keys this scanner still holds for abandoned dispatches are released,
// so whichever scanner runs at the fire time can dispatch them.
func (s *Scanner) Stop() {
	s.mu.Lock()
	s.stopped = true
	abandoned := make([]PendingDispatch, 0, len(s.pending))
	for id, entry := range s.pending {
		entry.timer.Stop()
		abandoned = append(abandoned, entry.PendingDispatch)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if len(abandoned) > 0 {
		s.logInfof("abandoned %v pending dispatch(es)", len(abandoned))
	}

	for _, dispatch := range abandoned {
		s.release(context.Background(), dispatch.ProjectID)
	}
	s.inflight.Wait()
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

type claimOutcome int

const (
	claimFailed claimOutcome = iota
	claimImmediate
	claimDeferred
	claimSkipped
)

func (s *Scanner) claim(ctx context.Context, timer *models.Timer, now time.Time) claimOutcome {
	key := DedupKey(timer.ProjectID)

	_, claimed, err := s.locks.Get(ctx, key)
	if err != nil {
		s.logError(fmt.Errorf("unable to read dedup key for project %v: %v", timer.ProjectID, err))
		return claimFailed
	}

	if claimed {
		s.logInfof("timer %v (project %v) already claimed, skipping", timer.ID, timer.ProjectID)
		return claimSkipped
	}

	restTime := timer.NextTriggerTime.Sub(now)
	if restTime <= 0 {
		if !s.dispatchNow(ctx, timer) {
			return claimFailed
		}
		return claimImmediate
	}

	err = s.locks.Set(ctx, key, s.config.Owner, s.config.LeaseTTL)
	if err != nil {
		s.logError(fmt.Errorf("unable to claim dedup key for project %v: %v", timer.ProjectID, err))
		return claimFailed
	}

	if !s.deferDispatch(timer, restTime) {
		return claimFailed
	}
	return claimDeferred
}

// dispatchNow fires an overdue timer without re-checking it
func (s *Scanner) dispatchNow(ctx context.Context, timer *models.Timer) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.running++
	s.inflight.Add(1)
	s.mu.Unlock()

	dispatchCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.done()

		err := s.dispatcher.Dispatch(dispatchCtx, timer, false)
		if err != nil {
			s.logError(err)
		}
	}()
	return true
}

// deferDispatch schedules a checked dispatch of 'timer' after 'restTime',
// replacing any dispatch already scheduled for the same timer.
func (s *Scanner) deferDispatch(timer *models.Timer, restTime time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if existing, ok := s.pending[timer.ID]; ok {
		existing.timer.Stop()
	}

	entry := &deferredDispatch{
		PendingDispatch: PendingDispatch{
			TimerID:   timer.ID,
			ProjectID: timer.ProjectID,
			FireAt:    timer.NextTriggerTime,
		},
	}
	entry.timer = s.clock.AfterFunc(restTime, func() { s.fire(timer, entry) })
	s.pending[timer.ID] = entry

	s.logInfof("timer %v (project %v) scheduled to fire in %v", timer.ID, timer.ProjectID, restTime)
	return true
}

func (s *Scanner) fire(timer *models.Timer, entry *deferredDispatch) {
	s.mu.Lock()
	if s.stopped || s.pending[timer.ID] != entry {
		s.mu.Unlock()
		return
	}
	delete(s.pending, timer.ID)
	s.running++
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.done()

	ctx := context.Background()
	err := s.dispatcher.Dispatch(ctx, timer, true)
	if err != nil {
		s.logError(err)
	}

	err = s.locks.Delete(ctx, DedupKey(timer.ProjectID))
	if err != nil {
		s.logInfof("unable to release dedup key for project %v, it will expire: %v", timer.ProjectID, err)
	}
}

func (s *Scanner) done() {
	s.mu.Lock()
	s.running--
	s.mu.Unlock()
	s.inflight.Done()
}

// release deletes the dedup key of 'projectID' if this scanner still owns it
func (s *Scanner) release(ctx context.Context, projectID uint) {
	key := DedupKey(projectID)

	owner, claimed, err := s.locks.Get(ctx, key)
	if err != nil {
		s.logInfof("unable to read dedup key for project %v, it will expire: %v", projectID, err)
		return
	}

	if !claimed || owner != s.config.Owner {
		return
	}

	err = s.locks.Delete(ctx, key)
	if err != nil {
		s.logInfof("unable to release dedup key for project %v, it will expire: %v", projectID, err)
	}
}

func (s *Scanner) logInfof(template string, args ...interface{}) {
	prefix := colors.Blue("[scanner] ")
	logg.Infof(prefix+template, args...)
}

func (s *Scanner) logError(args ...interface{}) {
	prefix := colors.Red("[scanner] ")
	logg.Error(append([]interface{}{prefix}, args...)...)
}
