package models

import (
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// InitializeTestDb replaces the package db with a fresh, migrated in-memory sqlite db
func InitializeTestDb() {
	var err error

	db, err = gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: silentLogger()})
	if err != nil {
		log.Panicf("failed to open test database: %v", err)
	}

	// every connection to ':memory:' is a new database, so keep to one
	sqlDB, err := db.DB()
	if err != nil {
		log.Panicf("failed to open test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err = migrate(); err != nil {
		log.Panicf("failed to migrate test database: %v", err)
	}
}
