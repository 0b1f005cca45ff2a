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
	"fmt"
	"time"

	"github.com/Daskott/snapcron/server"
	"github.com/Daskott/snapcron/server/lock"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/server/snapshot"
	"github.com/Daskott/snapcron/server/work"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func createScanCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan for due timers",
		Long: `Run a single scan for due timers, as the server does on every tick.

Snapshot requests are queued for the server's workers to deliver. Timers due later
within the lookahead window are dispatched when they fall due, as long as the command keeps waiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			err = openStore(config)
			if err != nil {
				return err
			}

			clock := clockwork.NewRealClock()
			lockStore, err := lock.NewStore(config.Lock, clock)
			if err != nil {
				return err
			}

			queue := work.NewWorkerAdapter(work.Options{TimeZone: config.Snapcron.Cron.TimeZone})
			trigger := snapshot.NewQueueTrigger(queue, config.Snapshot.DeliveryAttempts)

			store := snapscheduler.NewModelStore()
			location := server.LoadLocation(config.Snapcron.Cron.TimeZone)
			dispatcher := snapscheduler.NewDispatcher(store, store, trigger, clock, location)
			scanner := snapscheduler.NewScanner(server.ScannerConfig(config), store, lockStore, dispatcher, clock)
			defer scanner.Stop()

			report, err := scanner.Scan(context.Background())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v due, %v dispatched now, %v deferred, %v already claimed, %v failed\n",
				report.Due, report.Immediate, report.Deferred, report.Skipped, report.Failed)

			if !wait || report.Deferred == 0 {
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "waiting for %v deferred dispatch(es)...\n", report.Deferred)
			ctx, cancel := context.WithTimeout(context.Background(), scanner.Config().Lookahead+time.Minute)
			defer cancel()

			err = scanner.Drain(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), green("done"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", true, "wait for deferred dispatches to fire before exiting")

	return cmd
}
