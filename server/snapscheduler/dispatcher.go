package snapscheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/colors"
	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/utils"
	"github.com/jonboulle/clockwork"
)

type Dispatcher struct {
	timers    TimerStore
	directory EntityDirectory
	trigger   SnapshotTrigger
	clock     clockwork.Clock
	location  *time.Location
}

func NewDispatcher(
	timers TimerStore,
	directory EntityDirectory,
	trigger SnapshotTrigger,
	clock clockwork.Clock,
	location *time.Location,
) *Dispatcher {
	if location == nil {
		location = time.UTC
	}

	return &Dispatcher{
		timers:    timers,
		directory: directory,
		trigger:   trigger,
		clock:     clock,
		location:  location,
	}
}

// Dispatch fires 'timer': it reconciles the timer's membership, advances its
// next trigger time & hands a snapshot request to the trigger.
//
// When 'checked' is set the timer is re-read first & nothing happens unless it is still due,
// which covers timers reconfigured between being scheduled and firing.
//
// The advanced next trigger time is kept even when the trigger fails.
// Failures are returned, not logged, callers log them.
func (d *Dispatcher) Dispatch(ctx context.Context, timer *models.Timer, checked bool) error {
	now := d.clock.Now().In(d.location)
	current := timer.Clone()

	if checked {
		fresh, err := d.timers.FindTimerByID(ctx, timer.ID)
		if errors.Is(err, models.ErrTimerNotFound) {
			d.logInfof("timer %v no longer exists, nothing to dispatch", timer.ID)
			return nil
		}

		if err != nil {
			return fmt.Errorf("Dispatch(timer=%v): %v", timer.ID, err)
		}

		if !fresh.IsDue(now) {
			d.logInfof("timer %v (project %v) is no longer due, nothing to dispatch", fresh.ID, fresh.ProjectID)
			return nil
		}
		current = fresh
	}

	scheduledFor := current.NextTriggerTime

	if current.MonitorType == models.MONITOR_CUSTOM {
		live, err := d.membership(ctx, current.ProjectID, d.directory.ListAll)
		if err != nil {
			return fmt.Errorf("Dispatch(timer=%v): %v", current.ID, err)
		}

		if Reconcile(current, live) {
			d.logInfof("timer %v (project %v) membership reconciled, monitor_type=%v",
				current.ID, current.ProjectID, current.MonitorType)

			current, err = d.timers.CreateOrUpdateTimer(ctx, current)
			if err != nil {
				return fmt.Errorf("Dispatch(timer=%v): %v", timer.ID, err)
			}
		}
	}

	next := NextFireTime(current.Recurrence, now)
	err := d.timers.UpdateNextFireTime(ctx, current.ID, next)
	if err != nil {
		return fmt.Errorf("Dispatch(timer=%v): %v", current.ID, err)
	}
	current.NextTriggerTime = next

	request, err := d.snapshotRequest(ctx, current, scheduledFor, now)
	if err != nil {
		return fmt.Errorf("Dispatch(timer=%v): %v", current.ID, err)
	}

	err = d.trigger.Trigger(ctx, request)
	if err != nil {
		return fmt.Errorf("Dispatch(timer=%v): snapshot trigger failed for project %v: %v", current.ID, current.ProjectID, err)
	}

	d.logInfof("snapshot triggered for project %v, next trigger at %v", current.ProjectID, next)
	return nil
}

// Reconcile drops ids that no longer exist from a custom timer's membership.
// A custom timer left with nothing in any one dimension is promoted to monitor everything.
// Returns true if the timer was changed.
func Reconcile(timer *models.Timer, live Membership) bool {
	if timer.MonitorType != models.MONITOR_CUSTOM {
		return false
	}

	pageIDs := utils.IntersectIDs(timer.PageIDs, live.PageIDs)
	profileIDs := utils.IntersectIDs(timer.ProfileIDs, live.ProfileIDs)
	envIDs := utils.IntersectIDs(timer.EnvIDs, live.EnvIDs)

	if len(pageIDs) == 0 || len(profileIDs) == 0 || len(envIDs) == 0 {
		timer.MonitorType = models.MONITOR_ALL
		timer.PageIDs = nil
		timer.ProfileIDs = nil
		timer.EnvIDs = nil
		return true
	}

	changed := len(pageIDs) != len(timer.PageIDs) ||
		len(profileIDs) != len(timer.ProfileIDs) ||
		len(envIDs) != len(timer.EnvIDs)

	timer.PageIDs = pageIDs
	timer.ProfileIDs = profileIDs
	timer.EnvIDs = envIDs

	return changed
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

type listFunc func(ctx context.Context, kind models.EntityKind, projectID uint) ([]uint, error)

func (d *Dispatcher) membership(ctx context.Context, projectID uint, list listFunc) (Membership, error) {
	membership := Membership{}
	targets := map[models.EntityKind]*[]uint{
		models.PAGE_ENTITY:        &membership.PageIDs,
		models.PROFILE_ENTITY:     &membership.ProfileIDs,
		models.ENVIRONMENT_ENTITY: &membership.EnvIDs,
	}

	for kind, target := range targets {
		ids, err := list(ctx, kind, projectID)
		if err != nil {
			return Membership{}, fmt.Errorf("unable to list %v ids: %v", kind, err)
		}
		*target = ids
	}

	return membership, nil
}

func (d *Dispatcher) snapshotRequest(
	ctx context.Context,
	timer *models.Timer,
	scheduledFor time.Time,
	now time.Time,
) (SnapshotRequest, error) {
	request := SnapshotRequest{
		ProjectID:    timer.ProjectID,
		Scope:        models.MONITOR_ALL,
		Trigger:      TRIGGER_SCHEDULER,
		ScheduledFor: scheduledFor,
		DispatchedAt: now,
	}

	if timer.MonitorType != models.MONITOR_CUSTOM {
		return request, nil
	}

	// disabled entities stay members, they are just not snapshotted
	enabled, err := d.membership(ctx, timer.ProjectID, d.directory.ListEnabled)
	if err != nil {
		return SnapshotRequest{}, err
	}

	request.Scope = models.MONITOR_CUSTOM
	request.PageIDs = utils.IntersectIDs(timer.PageIDs, enabled.PageIDs)
	request.ProfileIDs = utils.IntersectIDs(timer.ProfileIDs, enabled.ProfileIDs)
	request.EnvIDs = utils.IntersectIDs(timer.EnvIDs, enabled.EnvIDs)

	return request, nil
}

func (d *Dispatcher) logInfof(template string, args ...interface{}) {
	prefix := colors.Magenta("[dispatcher] ")
	logg.Infof(prefix+template, args...)
}
