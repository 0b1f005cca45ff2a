package models

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/shared"
	"github.com/Daskott/snapcron/utils"
	"github.com/cenkalti/backoff/v5"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	DB_NAME                  = "snapcron.db"
	DEFAULT_CONNECT_ATTEMPTS = 5
)

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate opens the configured database, migrates the schema and inserts seed data
func AutoMigrate(config shared.DatabaseConfig) error {
	err := openDB(config)
	if err != nil {
		return err
	}

	return migrate()
}

// DB returns the handle opened by AutoMigrate or InitializeTestDb
func DB() *gorm.DB {
	return db
}

// SqliteFilePath returns the path of the sqlite db file for 'dbRootDir'
func SqliteFilePath(dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

// BackupSqliteDb writes a consistent copy of the sqlite db to 'destPath', replacing any file there
func BackupSqliteDb(destPath string) error {
	if db.Dialector.Name() != "sqlite" {
		return fmt.Errorf("BackupSqliteDb: database is %v, not sqlite", db.Dialector.Name())
	}

	err := os.Remove(destPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("BackupSqliteDb: %v", err)
	}

	err = db.Exec(fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(destPath, "'", "''"))).Error
	if err != nil {
		return fmt.Errorf("BackupSqliteDb: %v", err)
	}

	return nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func migrate() error {
	err := db.AutoMigrate(
		&Timer{}, &Page{}, &Profile{}, &Environment{},
		&Lease{}, &JobStatus{}, &Job{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	populateDBWithSeedData()

	return nil
}

func openDB(config shared.DatabaseConfig) error {
	dialector, err := dialectorFor(config)
	if err != nil {
		return err
	}

	attempts := config.ConnectAttempts
	if attempts == 0 {
		attempts = DEFAULT_CONNECT_ATTEMPTS
	}

	// postgres may still be starting up when several dispatchers boot together
	db, err = backoff.Retry(
		context.Background(),
		func() (*gorm.DB, error) {
			conn, err := gorm.Open(dialector, &gorm.Config{Logger: silentLogger()})
			if err != nil {
				logg.Warnf("failed to connect to %v database, retrying: %v", config.Driver, err)
				return nil, err
			}
			return conn, nil
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(attempts),
	)
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func dialectorFor(config shared.DatabaseConfig) (gorm.Dialector, error) {
	switch config.Driver {
	case "postgres":
		return postgres.Open(config.DSN), nil
	case "sqlite", "":
		dbFilePath, err := SqliteFilePath(config.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to set sqlite DSN: %v", err)
		}
		return sqlite.Open(fmt.Sprintf("file:%v?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbFilePath)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %v", config.Driver)
	}
}

func silentLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func populateDBWithSeedData() {
	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		db.Create(&[]JobStatus{{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB}, {Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB}})
	}
}
