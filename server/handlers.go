package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/gorilla/mux"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type ScannerStatus struct {
	Owner       string                          `json:"owner"`
	Interval    string                          `json:"interval"`
	Lookahead   string                          `json:"lookahead"`
	LeaseTTL    string                          `json:"lease_ttl"`
	LastScan    *time.Time                      `json:"last_scan,omitempty"`
	PendingJobs []snapscheduler.PendingDispatch `json:"pending"`
}

type routes struct {
	scanner *snapscheduler.Scanner
	timers  *snapscheduler.TimerService
}

func newRouter(scanner *snapscheduler.Scanner, timers *snapscheduler.TimerService) *mux.Router {
	rt := routes{scanner: scanner, timers: timers}

	router := mux.NewRouter()
	router.Use(loggingMiddleware, jsonContentTypeMiddleware)

	router.HandleFunc("/health", health).Methods("GET")
	router.HandleFunc("/scanner", rt.scannerStatus).Methods("GET")
	router.HandleFunc("/timers", fetchTimers).Methods("GET")
	router.HandleFunc("/timers/{projectId:[0-9]+}", rt.findTimer).Methods("GET")
	router.HandleFunc("/jobs/stats", jobsStats).Methods("GET")
	router.HandleFunc("/jobs", fetchJobs).Methods("GET").Queries("status", "{status}")

	return router
}

func health(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{"status": "ok"}})
}

func (rt routes) scannerStatus(rw http.ResponseWriter, r *http.Request) {
	config := rt.scanner.Config()
	status := ScannerStatus{
		Owner:       config.Owner,
		Interval:    config.Interval.String(),
		Lookahead:   config.Lookahead.String(),
		LeaseTTL:    config.LeaseTTL.String(),
		PendingJobs: rt.scanner.Pending(),
	}

	if lastScan := rt.scanner.LastScan(); !lastScan.IsZero() {
		status.LastScan = &lastScan
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: status})
}

func (rt routes) findTimer(rw http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseUint(mux.Vars(r)["projectId"], 10, 64)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid project id"}}, http.StatusBadRequest)
		return
	}

	view, err := rt.timers.Describe(r.Context(), uint(projectID))
	if errors.Is(err, models.ErrTimerNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: view})
}

func fetchTimers(rw http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	timers, paging, err := models.FetchTimers(r.Context(), page)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"timers": timers, "paging": paging},
	})
}

func jobsStats(rw http.ResponseWriter, r *http.Request) {
	stats, err := models.CurrentJobsStats()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: stats})
}

func fetchJobs(rw http.ResponseWriter, r *http.Request) {
	status := mux.Vars(r)["status"]
	if !models.JobStatusNameMap[status] {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid job status: " + status}}, http.StatusBadRequest)
		return
	}

	page, err := pageParam(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	jobs, paging, err := models.FetchJobsByStatus(status, page)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"jobs": jobs, "paging": paging},
	})
}
