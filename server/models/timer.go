package models

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

type ScheduleKind string

type MonitorType string

const (
	SCHEDULE_UNSET        ScheduleKind = ""
	SCHEDULE_OFF          ScheduleKind = "off"
	SCHEDULE_DAILY        ScheduleKind = "daily"
	SCHEDULE_HOURLY       ScheduleKind = "hourly"
	SCHEDULE_EVERY_X_HOUR ScheduleKind = "every_x_hour"

	MONITOR_ALL    MonitorType = "all"
	MONITOR_CUSTOM MonitorType = "custom"
)

var ErrTimerNotFound = errors.New("timer not found")

// ActiveSchedules are the schedule kinds a scan can find due. Unset & 'off' timers are inert.
var ActiveSchedules = []ScheduleKind{SCHEDULE_DAILY, SCHEDULE_HOURLY, SCHEDULE_EVERY_X_HOUR}

var ScheduleKindNameMap = map[ScheduleKind]bool{
	SCHEDULE_OFF:          true,
	SCHEDULE_DAILY:        true,
	SCHEDULE_HOURLY:       true,
	SCHEDULE_EVERY_X_HOUR: true,
}

// Recurrence is the part of a timer that decides when it fires
type Recurrence struct {
	Schedule  ScheduleKind `json:"schedule" gorm:"index"`
	TimeOfDay int          `json:"time_of_day"`
	Hour      int          `json:"hour"`
}

func (r Recurrence) IsActive() bool {
	for _, kind := range ActiveSchedules {
		if r.Schedule == kind {
			return true
		}
	}
	return false
}

type Timer struct {
	BaseModel
	ProjectID       uint        `json:"project_id" gorm:"not null;uniqueIndex"`
	Recurrence      Recurrence  `json:"recurrence" gorm:"embedded"`
	MonitorType     MonitorType `json:"monitor_type" gorm:"not null;default:all"`
	PageIDs         []uint      `json:"page_ids" gorm:"serializer:json"`
	ProfileIDs      []uint      `json:"profile_ids" gorm:"serializer:json"`
	EnvIDs          []uint      `json:"env_ids" gorm:"serializer:json"`
	NextTriggerTime time.Time   `json:"next_trigger_time" gorm:"index"`
}

// IsDue reports whether the timer should fire at 'now'
func (timer *Timer) IsDue(now time.Time) bool {
	return timer.Recurrence.IsActive() && !timer.NextTriggerTime.After(now)
}

// Clone returns a deep copy, so callers can mutate membership lists safely
func (timer *Timer) Clone() *Timer {
	clone := *timer
	clone.PageIDs = append([]uint(nil), timer.PageIDs...)
	clone.ProfileIDs = append([]uint(nil), timer.ProfileIDs...)
	clone.EnvIDs = append([]uint(nil), timer.EnvIDs...)
	return &clone
}

func FindTimerByProject(ctx context.Context, projectID uint) (*Timer, error) {
	return findTimer(ctx, "project_id = ?", projectID)
}

func FindTimerByID(ctx context.Context, id uint) (*Timer, error) {
	return findTimer(ctx, "id = ?", id)
}

// FindDueTimers returns every active timer whose next trigger time is before 'before'
func FindDueTimers(ctx context.Context, before time.Time) ([]Timer, error) {
	timers := []Timer{}

	err := db.WithContext(ctx).
		Where("schedule IN ? AND next_trigger_time < ?", ActiveSchedules, before.UTC()).
		Order("next_trigger_time asc").
		Find(&timers).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "FindDueTimers")
	}

	return timers, nil
}

// CreateOrUpdateTimer stores 'timer' as the one timer of its project
func CreateOrUpdateTimer(ctx context.Context, timer *Timer) (*Timer, error) {
	record := timer.Clone()
	record.NextTriggerTime = record.NextTriggerTime.UTC()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := Timer{}
		err := tx.Where("project_id = ?", record.ProjectID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record.ID = 0
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}

		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return tx.Save(record).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "CreateOrUpdateTimer(project_id=%v)", timer.ProjectID)
	}

	return record, nil
}

func UpdateNextFireTime(ctx context.Context, id uint, next time.Time) error {
	res := db.WithContext(ctx).Model(&Timer{}).Where("id = ?", id).Update("next_trigger_time", next.UTC())
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "UpdateNextFireTime(id=%v)", id)
	}

	if res.RowsAffected == 0 {
		return ErrTimerNotFound
	}

	return nil
}

func FetchTimers(ctx context.Context, page int) ([]Timer, *Paging, error) {
	var total int64
	timers := []Timer{}

	err := db.WithContext(ctx).Model(&Timer{}).Count(&total).Error
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "FetchTimers")
	}

	err = db.WithContext(ctx).Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Order("project_id asc").Find(&timers).Error
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "FetchTimers")
	}

	return timers, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func findTimer(ctx context.Context, query string, arg interface{}) (*Timer, error) {
	timer := Timer{}

	err := db.WithContext(ctx).Where(query, arg).First(&timer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTimerNotFound
	}

	if err != nil {
		return nil, pkgerrors.Wrapf(err, "findTimer(%v)", arg)
	}

	return &timer, nil
}
