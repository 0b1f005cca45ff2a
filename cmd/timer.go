/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Daskott/snapcron/server"
	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func createTimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Configure & inspect snapshot timers",
	}

	cmd.AddCommand(createTimerSetCmd(), createTimerShowCmd(), createTimerListCmd())

	return cmd
}

func createTimerSetCmd() *cobra.Command {
	var monitorType string
	var schedule string
	config := snapscheduler.TimerConfig{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or replace the timer of a project",
		Example: `  snapcron timer set --project 42 --schedule daily --time-of-day 17
  snapcron timer set --project 42 --schedule every_x_hour --hour 6 --monitor custom \
    --pages home,pricing --profiles desktop --envs production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Schedule = models.ScheduleKind(schedule)
			config.MonitorType = models.MonitorType(monitorType)

			service, err := newTimerService()
			if err != nil {
				return err
			}

			view, err := service.Configure(context.Background(), config)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().UintVar(&config.ProjectID, "project", 0, "id of the project the timer belongs to")
	cmd.Flags().StringVar(&schedule, "schedule", "", "one of off, daily, hourly or every_x_hour")
	cmd.Flags().IntVar(&config.TimeOfDay, "time-of-day", 0, "hour of day (0-23) a daily timer fires at")
	cmd.Flags().IntVar(&config.Hour, "hour", 0, "number of hours between firings of an every_x_hour timer")
	cmd.Flags().StringVar(&monitorType, "monitor", string(models.MONITOR_ALL), "all or custom")
	cmd.Flags().StringSliceVar(&config.PageIDs, "pages", nil, "external ids of the pages a custom timer snapshots")
	cmd.Flags().StringSliceVar(&config.ProfileIDs, "profiles", nil, "external ids of the profiles a custom timer snapshots")
	cmd.Flags().StringSliceVar(&config.EnvIDs, "envs", nil, "external ids of the environments a custom timer snapshots")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("schedule")

	return cmd
}

func createTimerShowCmd() *cobra.Command {
	var projectID uint

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the timer of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newTimerService()
			if err != nil {
				return err
			}

			view, err := service.Describe(context.Background(), projectID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().UintVar(&projectID, "project", 0, "id of the project the timer belongs to")
	cmd.MarkFlagRequired("project")

	return cmd
}

func createTimerListCmd() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured timers",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			err = openStore(config)
			if err != nil {
				return err
			}

			timers, paging, err := models.FetchTimers(context.Background(), page)
			if err != nil {
				return err
			}

			location := server.LoadLocation(config.Snapcron.Cron.TimeZone)
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "PROJECT\tSCHEDULE\tMONITOR\tNEXT TRIGGER")
			for _, timer := range timers {
				next := "-"
				if timer.Recurrence.IsActive() {
					next = timer.NextTriggerTime.In(location).Format("2006-01-02 15:04:05 MST")
				}
				fmt.Fprintf(writer, "%v\t%v\t%v\t%v\n", timer.ProjectID, scheduleLabel(timer.Recurrence), timer.MonitorType, next)
			}
			writer.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "page %v of %v (%v timers)\n", paging.Page, paging.Pages, paging.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page of results to show")

	return cmd
}

func newTimerService() (*snapscheduler.TimerService, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	err = openStore(config)
	if err != nil {
		return nil, err
	}

	store := snapscheduler.NewModelStore()
	return snapscheduler.NewTimerService(
		store,
		store,
		clockwork.NewRealClock(),
		server.LoadLocation(config.Snapcron.Cron.TimeZone),
	), nil
}

func scheduleLabel(recurrence models.Recurrence) string {
	switch recurrence.Schedule {
	case models.SCHEDULE_DAILY:
		return fmt.Sprintf("daily at %02d:00", recurrence.TimeOfDay)
	case models.SCHEDULE_EVERY_X_HOUR:
		return fmt.Sprintf("every %vh", recurrence.Hour)
	case models.SCHEDULE_UNSET:
		return "unset"
	}
	return string(recurrence.Schedule)
}

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
