package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/server/work"
	"github.com/Daskott/snapcron/utils"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func pageParam(r *http.Request) (int, error) {
	value := r.URL.Query().Get("page")
	if value == "" {
		return 1, nil
	}

	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page: %v", value)
	}
	return page, nil
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("snapcron server is listening on port:%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(
	scanner *snapscheduler.Scanner,
	workerPool *work.WorkerPoolAdapter,
	server *http.Server,
	backup *sqliteBackup,
) {
	// Pending dispatches are dropped, their timers get picked up again by the next scan anywhere
	scanner.Stop()
	workerPool.Stop()

	if backup != nil {
		if err := backup.backup(nil); err != nil {
			logg.Errorf("final sqlite backup failed: %v", err)
		}
	}

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("snapcron server shutdown failed:%+s", err)
	}

	logg.Infof("snapcron server stopped properly")
}

// DataDirectory retrieves the directory to store snapcron data,
// or logs an error message and then calls os.Exit if it's unable to.
func DataDirectory(devMode bool) string {
	// Use 'snapcron' folder in home directory for prod
	configFolderName := "snapcron"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func LoadLocation(timeZone string) *time.Location {
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		logg.Warnf("unable to load time zone %q, using UTC: %v", timeZone, err)
		return time.UTC
	}
	return location
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
