package snapscheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/server/models"
)

const (
	TRIGGER_SCHEDULER = "scheduler"
	DEDUP_KEY_PREFIX  = "snapcron:timer"
)

var logg = logger.NewLogger()

type TimerStore interface {
	FindTimerByProject(ctx context.Context, projectID uint) (*models.Timer, error)
	FindTimerByID(ctx context.Context, id uint) (*models.Timer, error)
	FindDueTimers(ctx context.Context, before time.Time) ([]models.Timer, error)
	CreateOrUpdateTimer(ctx context.Context, timer *models.Timer) (*models.Timer, error)
	UpdateNextFireTime(ctx context.Context, id uint, next time.Time) error
}

type EntityDirectory interface {
	ListEnabled(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error)
	ListAll(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error)
	ResolveExternalToInternal(ctx context.Context, kind models.EntityKind, projectID uint, externalIDs []string) ([]uint, error)
	ResolveInternalToExternal(ctx context.Context, kind models.EntityKind, projectID uint, ids []uint) ([]string, error)
}

// SnapshotRequest asks the snapshot service to snapshot a project.
// With Scope 'all' the id lists are empty and every enabled entity is meant.
type SnapshotRequest struct {
	ProjectID    uint               `json:"projectId"`
	Scope        models.MonitorType `json:"scope"`
	PageIDs      []uint             `json:"pageIds,omitempty"`
	ProfileIDs   []uint             `json:"profileIds,omitempty"`
	EnvIDs       []uint             `json:"envIds,omitempty"`
	Trigger      string             `json:"trigger"`
	ScheduledFor time.Time          `json:"scheduledFor"`
	DispatchedAt time.Time          `json:"dispatchedAt"`
}

type SnapshotTrigger interface {
	Trigger(ctx context.Context, request SnapshotRequest) error
}

// Membership is one id list per entity kind
type Membership struct {
	PageIDs    []uint
	ProfileIDs []uint
	EnvIDs     []uint
}

// DedupKey is the lock store key claimed for a project's next firing
func DedupKey(projectID uint) string {
	return fmt.Sprintf("%s:%d", DEDUP_KEY_PREFIX, projectID)
}
