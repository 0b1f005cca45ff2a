package snapscheduler

import (
	"context"
	"time"

	"github.com/Daskott/snapcron/server/models"
)

// ModelStore backs TimerStore & EntityDirectory with the models package
type ModelStore struct{}

func NewModelStore() *ModelStore {
	return &ModelStore{}
}

func (ModelStore) FindTimerByProject(ctx context.Context, projectID uint) (*models.Timer, error) {
	return models.FindTimerByProject(ctx, projectID)
}

func (ModelStore) FindTimerByID(ctx context.Context, id uint) (*models.Timer, error) {
	return models.FindTimerByID(ctx, id)
}

func (ModelStore) FindDueTimers(ctx context.Context, before time.Time) ([]models.Timer, error) {
	return models.FindDueTimers(ctx, before)
}

func (ModelStore) CreateOrUpdateTimer(ctx context.Context, timer *models.Timer) (*models.Timer, error) {
	return models.CreateOrUpdateTimer(ctx, timer)
}

func (ModelStore) UpdateNextFireTime(ctx context.Context, id uint, next time.Time) error {
	return models.UpdateNextFireTime(ctx, id, next)
}

func (ModelStore) ListEnabled(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error) {
	return models.ListEnabledEntityIDs(ctx, kind, projectID)
}

func (ModelStore) ListAll(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error) {
	return models.ListEntityIDs(ctx, kind, projectID)
}

func (ModelStore) ResolveExternalToInternal(
	ctx context.Context,
	kind models.EntityKind,
	projectID uint,
	externalIDs []string,
) ([]uint, error) {
	return models.ResolveExternalIDs(ctx, kind, projectID, externalIDs)
}

func (ModelStore) ResolveInternalToExternal(
	ctx context.Context,
	kind models.EntityKind,
	projectID uint,
	ids []uint,
) ([]string, error) {
	return models.ExternalIDs(ctx, kind, projectID, ids)
}
