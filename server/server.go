package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Daskott/snapcron/server/lock"
	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/server/snapshot"
	"github.com/Daskott/snapcron/server/work"
	"github.com/Daskott/snapcron/shared"
	"github.com/jonboulle/clockwork"
)

var logg = logger.NewLogger()

// Start runs the scanner, the snapshot delivery workers & the ops http server until SIGINT/SIGTERM
func Start(config shared.ServerConfig, devMode bool) {
	if config.Database.Dir == "" {
		config.Database.Dir = DataDirectory(devMode)
	}

	backup, err := newSqliteBackup(config)
	fatalOnError(err)

	if backup != nil {
		fatalOnError(backup.restore())
	}

	fatalOnError(models.AutoMigrate(config.Database))

	clock := clockwork.NewRealClock()
	location := LoadLocation(config.Snapcron.Cron.TimeZone)

	lockStore, err := lock.NewStore(config.Lock, clock)
	fatalOnError(err)

	workerPool := work.NewWorkerAdapter(work.Options{
		TimeZone:    config.Snapcron.Cron.TimeZone,
		Concurrency: config.Snapshot.Workers,
	})
	fatalOnError(registerJobHandlers(workerPool, config, backup))
	fatalOnError(enqueueJobs(workerPool, config, backup))

	store := snapscheduler.NewModelStore()
	trigger := snapshot.NewQueueTrigger(workerPool, config.Snapshot.DeliveryAttempts)
	dispatcher := snapscheduler.NewDispatcher(store, store, trigger, clock, location)
	scanner := snapscheduler.NewScanner(ScannerConfig(config), store, lockStore, dispatcher, clock)
	fatalOnError(scanner.Start(workerPool.CronScheduler()))

	timers := snapscheduler.NewTimerService(store, store, clock, location)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", config.Snapcron.Listener.Port),
		Handler: newRouter(scanner, timers),
	}

	fatalOnError(workerPool.Start())
	go serve(server)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	sig := <-signalChan
	logg.Infof("received %v, shutting down", sig)

	cleanup(scanner, workerPool, server, backup)
}

// ScannerConfig maps the scheduler section of 'config' onto the scanner's settings
func ScannerConfig(config shared.ServerConfig) snapscheduler.ScannerConfig {
	return snapscheduler.ScannerConfig{
		Interval:    config.Snapcron.Scheduler.ScanInterval,
		Lookahead:   config.Snapcron.Scheduler.Lookahead,
		LeaseTTL:    config.Snapcron.Scheduler.LeaseTTL,
		Concurrency: config.Snapcron.Scheduler.Concurrency,
		Owner:       lock.NewOwnerToken(),
	}
}
