package snapscheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

var ErrInvalidTimerConfig = errors.New("invalid timer config")

// TimerConfig is a timer as a user configures it, with entities named by external id
type TimerConfig struct {
	ProjectID   uint                `json:"project_id" validate:"required"`
	Schedule    models.ScheduleKind `json:"schedule" validate:"schedule_kind"`
	TimeOfDay   int                 `json:"time_of_day" validate:"min=0,max=23"`
	Hour        int                 `json:"hour" validate:"min=0,max=24"`
	MonitorType models.MonitorType  `json:"monitor_type" validate:"omitempty,oneof=all custom"`
	PageIDs     []string            `json:"page_ids" validate:"dive,required"`
	ProfileIDs  []string            `json:"profile_ids" validate:"dive,required"`
	EnvIDs      []string            `json:"env_ids" validate:"dive,required"`
}

// TimerView is a stored timer described with external ids
type TimerView struct {
	TimerConfig
	Active          bool      `json:"active"`
	NextTriggerTime time.Time `json:"next_trigger_time"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TimerService configures & describes timers on behalf of users
type TimerService struct {
	timers    TimerStore
	directory EntityDirectory
	clock     clockwork.Clock
	location  *time.Location
	validate  *validator.Validate
}

func NewTimerService(
	timers TimerStore,
	directory EntityDirectory,
	clock clockwork.Clock,
	location *time.Location,
) *TimerService {
	if location == nil {
		location = time.UTC
	}

	validate := validator.New()
	_ = validate.RegisterValidation("schedule_kind", func(fl validator.FieldLevel) bool {
		return models.ScheduleKindNameMap[models.ScheduleKind(fl.Field().String())]
	})

	return &TimerService{
		timers:    timers,
		directory: directory,
		clock:     clock,
		location:  location,
		validate:  validate,
	}
}

// Configure creates or replaces the timer of config.ProjectID.
// The timer's next trigger time is recomputed from now, so a firing already
// scheduled for the old configuration finds the timer no longer due & does nothing.
func (service *TimerService) Configure(ctx context.Context, config TimerConfig) (*TimerView, error) {
	err := service.validateConfig(config)
	if err != nil {
		return nil, err
	}

	timer := &models.Timer{
		ProjectID: config.ProjectID,
		Recurrence: models.Recurrence{
			Schedule:  config.Schedule,
			TimeOfDay: config.TimeOfDay,
			Hour:      config.Hour,
		},
		MonitorType: models.MONITOR_ALL,
	}

	if config.MonitorType == models.MONITOR_CUSTOM {
		timer.MonitorType = models.MONITOR_CUSTOM
		timer.PageIDs, err = service.directory.ResolveExternalToInternal(ctx, models.PAGE_ENTITY, config.ProjectID, config.PageIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimerConfig, err)
		}

		timer.ProfileIDs, err = service.directory.ResolveExternalToInternal(ctx, models.PROFILE_ENTITY, config.ProjectID, config.ProfileIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimerConfig, err)
		}

		timer.EnvIDs, err = service.directory.ResolveExternalToInternal(ctx, models.ENVIRONMENT_ENTITY, config.ProjectID, config.EnvIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimerConfig, err)
		}
	}

	timer.NextTriggerTime = NextFireTime(timer.Recurrence, service.clock.Now().In(service.location))

	timer, err = service.timers.CreateOrUpdateTimer(ctx, timer)
	if err != nil {
		return nil, fmt.Errorf("Configure(project=%v): %v", config.ProjectID, err)
	}

	logg.Infof("timer for project %v configured, schedule=%q monitor_type=%v next_trigger_time=%v",
		timer.ProjectID, timer.Recurrence.Schedule, timer.MonitorType, timer.NextTriggerTime)

	return service.view(ctx, timer)
}

// Describe returns the timer of 'projectID', or models.ErrTimerNotFound
func (service *TimerService) Describe(ctx context.Context, projectID uint) (*TimerView, error) {
	timer, err := service.timers.FindTimerByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return service.view(ctx, timer)
}

func (service *TimerService) validateConfig(config TimerConfig) error {
	err := service.validate.Struct(config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimerConfig, strings.ReplaceAll(err.Error(), "\n", "; "))
	}

	if config.Schedule == models.SCHEDULE_EVERY_X_HOUR && config.Hour < 1 {
		return fmt.Errorf("%w: hour must be at least 1 for schedule %q", ErrInvalidTimerConfig, config.Schedule)
	}

	if config.MonitorType == models.MONITOR_CUSTOM &&
		(len(config.PageIDs) == 0 || len(config.ProfileIDs) == 0 || len(config.EnvIDs) == 0) {
		return fmt.Errorf("%w: a custom timer needs at least one page, profile & environment", ErrInvalidTimerConfig)
	}

	return nil
}

func (service *TimerService) view(ctx context.Context, timer *models.Timer) (*TimerView, error) {
	view := &TimerView{
		TimerConfig: TimerConfig{
			ProjectID:   timer.ProjectID,
			Schedule:    timer.Recurrence.Schedule,
			TimeOfDay:   timer.Recurrence.TimeOfDay,
			Hour:        timer.Recurrence.Hour,
			MonitorType: timer.MonitorType,
		},
		Active:          timer.Recurrence.IsActive(),
		NextTriggerTime: timer.NextTriggerTime.In(service.location),
		UpdatedAt:       timer.UpdatedAt,
	}

	if timer.MonitorType != models.MONITOR_CUSTOM {
		return view, nil
	}

	var err error
	view.PageIDs, err = service.directory.ResolveInternalToExternal(ctx, models.PAGE_ENTITY, timer.ProjectID, timer.PageIDs)
	if err != nil {
		return nil, err
	}

	view.ProfileIDs, err = service.directory.ResolveInternalToExternal(ctx, models.PROFILE_ENTITY, timer.ProjectID, timer.ProfileIDs)
	if err != nil {
		return nil, err
	}

	view.EnvIDs, err = service.directory.ResolveInternalToExternal(ctx, models.ENVIRONMENT_ENTITY, timer.ProjectID, timer.EnvIDs)
	if err != nil {
		return nil, err
	}

	return view, nil
}
