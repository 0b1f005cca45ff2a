package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Daskott/snapcron/server/gstorage"
	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapshot"
	"github.com/Daskott/snapcron/server/work"
	"github.com/Daskott/snapcron/shared"
	"github.com/Daskott/snapcron/utils"
)

const (
	BACKUP_SQLITE_DB_JOB     = "backupSqliteDb"
	PURGE_EXPIRED_LEASES_JOB = "purgeExpiredLeases"

	PURGE_EXPIRED_LEASES_SCHEDULE = "*/30 * * * *"
)

// sqliteBackup keeps a copy of the sqlite db in google storage
type sqliteBackup struct {
	storage *gstorage.GStorage
	dbDir   string
}

func newSqliteBackup(config shared.ServerConfig) (*sqliteBackup, error) {
	if !config.Google.Storage.EnableSqliteBackupAndSync || config.Database.Driver == "postgres" {
		return nil, nil
	}

	dbDir, err := models.DbDirectory(config.Database.Dir)
	if err != nil {
		return nil, err
	}

	storage, err := gstorage.NewGStorage(
		context.Background(),
		config.Google.ApplicationCredentials,
		config.Google.Storage.Bucket,
		config.Google.Storage.Prefix,
	)
	if err != nil {
		return nil, err
	}

	return &sqliteBackup{storage: storage, dbDir: dbDir}, nil
}

// restore pulls the last backup when there is no local db yet
func (b *sqliteBackup) restore() error {
	dbFilePath := filepath.Join(b.dbDir, models.DB_NAME)
	if utils.FileExist(dbFilePath) {
		return nil
	}

	err := b.storage.DownloadFile(context.Background(), b.storage.ObjectName(models.DB_NAME), dbFilePath)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		logg.Infof("no sqlite backup found in storage, starting with an empty db")
		return nil
	}

	return err
}

func (b *sqliteBackup) backup(map[string]interface{}) error {
	snapshotPath := filepath.Join(b.dbDir, "backup-"+models.DB_NAME)
	defer os.Remove(snapshotPath)

	err := models.BackupSqliteDb(snapshotPath)
	if err != nil {
		return err
	}

	return b.storage.UploadFile(context.Background(), b.storage.ObjectName(models.DB_NAME), snapshotPath)
}

func purgeExpiredLeases(map[string]interface{}) error {
	count, err := models.DeleteExpiredLeases(context.Background(), time.Now())
	if err != nil {
		return err
	}

	logg.Infof("purged %v expired lease(s)", count)
	return nil
}

func registerJobHandlers(wpa *work.WorkerPoolAdapter, config shared.ServerConfig, backup *sqliteBackup) error {
	var deliverer snapshot.Deliverer = snapshot.LogDeliverer{}
	if config.Snapshot.WebhookURL != "" {
		deliverer = snapshot.NewWebhookClient(config.Snapshot)
	} else {
		logg.Warn("snapshot.webhookURL is not set, snapshot requests will only be logged")
	}

	handlers := map[string]work.Handler{
		snapshot.TAKE_SNAPSHOT_HANDLER: snapshot.NewHandler(deliverer, config.Snapshot.Timeout),
		PURGE_EXPIRED_LEASES_JOB:       purgeExpiredLeases,
	}
	if backup != nil {
		handlers[BACKUP_SQLITE_DB_JOB] = backup.backup
	}

	for name, handler := range handlers {
		err := wpa.Register(name, handler)
		if err != nil {
			return fmt.Errorf("unable to register %v handler: %v", name, err)
		}
	}

	return nil
}

func enqueueJobs(wpa *work.WorkerPoolAdapter, config shared.ServerConfig, backup *sqliteBackup) error {
	if config.Lock.Backend == "database" {
		err := wpa.PeriodicallyPerform(PURGE_EXPIRED_LEASES_SCHEDULE, work.JobParams{
			Name:    PURGE_EXPIRED_LEASES_JOB,
			Handler: PURGE_EXPIRED_LEASES_JOB,
		})
		if err != nil {
			return err
		}
	}

	if backup != nil {
		err := wpa.PeriodicallyPerform(config.Google.Storage.SqliteBackupSchedule, work.JobParams{
			Name:    BACKUP_SQLITE_DB_JOB,
			Handler: BACKUP_SQLITE_DB_JOB,
		})
		if err != nil {
			return err
		}
	}

	return nil
}
