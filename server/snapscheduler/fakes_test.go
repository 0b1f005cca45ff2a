package snapscheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Daskott/snapcron/server/lock"
	"github.com/Daskott/snapcron/server/models"
)

type fakeEntity struct {
	id         uint
	externalID string
	enabled    bool
}

// fakeStore is an in-memory TimerStore & EntityDirectory
type fakeStore struct {
	mu       sync.Mutex
	timers   map[uint]*models.Timer
	entities map[models.EntityKind][]fakeEntity
	nextID   uint
	updates  int
	dueErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		timers:   make(map[uint]*models.Timer),
		entities: make(map[models.EntityKind][]fakeEntity),
		nextID:   1,
	}
}

func (s *fakeStore) addEntities(kind models.EntityKind, entities ...fakeEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[kind] = append(s.entities[kind], entities...)
}

func (s *fakeStore) removeEntities(kind models.EntityKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, kind)
}

func (s *fakeStore) put(timer models.Timer) *models.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer.ID == 0 {
		timer.ID = s.nextID
		s.nextID++
	}
	s.timers[timer.ID] = timer.Clone()
	return timer.Clone()
}

func (s *fakeStore) get(id uint) *models.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	if !ok {
		return nil
	}
	return timer.Clone()
}

func (s *fakeStore) delete(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}

func (s *fakeStore) FindTimerByProject(ctx context.Context, projectID uint) (*models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.timers {
		if timer.ProjectID == projectID {
			return timer.Clone(), nil
		}
	}
	return nil, models.ErrTimerNotFound
}

func (s *fakeStore) FindTimerByID(ctx context.Context, id uint) (*models.Timer, error) {
	timer := s.get(id)
	if timer == nil {
		return nil, models.ErrTimerNotFound
	}
	return timer, nil
}

func (s *fakeStore) FindDueTimers(ctx context.Context, before time.Time) ([]models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dueErr != nil {
		return nil, s.dueErr
	}

	due := []models.Timer{}
	for _, timer := range s.timers {
		if timer.Recurrence.IsActive() && timer.NextTriggerTime.Before(before) {
			due = append(due, *timer.Clone())
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *fakeStore) CreateOrUpdateTimer(ctx context.Context, timer *models.Timer) (*models.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++
	for id, existing := range s.timers {
		if existing.ProjectID == timer.ProjectID {
			updated := timer.Clone()
			updated.ID = id
			s.timers[id] = updated
			return updated.Clone(), nil
		}
	}

	created := timer.Clone()
	created.ID = s.nextID
	s.nextID++
	s.timers[created.ID] = created
	return created.Clone(), nil
}

func (s *fakeStore) UpdateNextFireTime(ctx context.Context, id uint, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	if !ok {
		return models.ErrTimerNotFound
	}
	timer.NextTriggerTime = next
	return nil
}

func (s *fakeStore) ListEnabled(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error) {
	return s.list(kind, true), nil
}

func (s *fakeStore) ListAll(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error) {
	return s.list(kind, false), nil
}

func (s *fakeStore) ResolveExternalToInternal(
	ctx context.Context,
	kind models.EntityKind,
	projectID uint,
	externalIDs []string,
) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []uint{}
	for _, externalID := range externalIDs {
		found := false
		for _, entity := range s.entities[kind] {
			if entity.externalID == externalID {
				ids = append(ids, entity.id)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown %v %q", kind, externalID)
		}
	}
	return ids, nil
}

func (s *fakeStore) ResolveInternalToExternal(
	ctx context.Context,
	kind models.EntityKind,
	projectID uint,
	ids []uint,
) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	externalIDs := []string{}
	for _, id := range ids {
		for _, entity := range s.entities[kind] {
			if entity.id == id {
				externalIDs = append(externalIDs, entity.externalID)
			}
		}
	}
	return externalIDs, nil
}

func (s *fakeStore) list(kind models.EntityKind, enabledOnly bool) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []uint{}
	for _, entity := range s.entities[kind] {
		if enabledOnly && !entity.enabled {
			continue
		}
		ids = append(ids, entity.id)
	}
	return ids
}

// fakeTrigger records every request it is handed.
// When 'release' is set each call waits on it first.
type fakeTrigger struct {
	mu       sync.Mutex
	requests []SnapshotRequest
	err      error
	release  chan struct{}
}

func (t *fakeTrigger) Trigger(ctx context.Context, request SnapshotRequest) error {
	if t.release != nil {
		<-t.release
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, request)
	return t.err
}

func (t *fakeTrigger) calls() []SnapshotRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SnapshotRequest(nil), t.requests...)
}

// flakyLocks fails reads or writes while the matching error is set
type flakyLocks struct {
	lock.Store

	mu     sync.Mutex
	getErr error
	setErr error
}

func (l *flakyLocks) fail(getErr, setErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getErr, l.setErr = getErr, setErr
}

func (l *flakyLocks) Get(ctx context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	err := l.getErr
	l.mu.Unlock()

	if err != nil {
		return "", false, err
	}
	return l.Store.Get(ctx, key)
}

func (l *flakyLocks) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	l.mu.Lock()
	err := l.setErr
	l.mu.Unlock()

	if err != nil {
		return err
	}
	return l.Store.Set(ctx, key, value, ttl)
}

var (
	errSnapshotServiceDown = errors.New("snapshot service unavailable")
	errLockStoreDown       = errors.New("lock store unavailable")
	errTimerStoreDown      = errors.New("timer store unavailable")
)
