package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = snapscheduler.SnapshotRequest{
	ProjectID:    42,
	Scope:        models.MONITOR_CUSTOM,
	PageIDs:      []uint{1, 3},
	ProfileIDs:   []uint{5},
	EnvIDs:       []uint{7},
	Trigger:      snapscheduler.TRIGGER_SCHEDULER,
	ScheduledFor: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	DispatchedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
}

func TestWebhookClientDeliver(t *testing.T) {
	received := make(chan snapscheduler.SnapshotRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		request := snapscheduler.SnapshotRequest{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		received <- request
		rw.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewWebhookClient(shared.SnapshotConfig{WebhookURL: server.URL})
	require.NoError(t, client.Deliver(context.Background(), testRequest))

	request := <-received
	assert.Equal(t, testRequest.ProjectID, request.ProjectID)
	assert.Equal(t, testRequest.PageIDs, request.PageIDs)
	assert.True(t, testRequest.ScheduledFor.Equal(request.ScheduledFor))
}

func TestWebhookClientDeliverFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "snapshot workers busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewWebhookClient(shared.SnapshotConfig{WebhookURL: server.URL})
	err := client.Deliver(context.Background(), testRequest)
	assert.ErrorContains(t, err, "503")
	assert.ErrorContains(t, err, "snapshot workers busy")
}

func TestWebhookClientHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// one token per minute, the second delivery can't get one before the deadline
	client := NewWebhookClient(shared.SnapshotConfig{WebhookURL: server.URL, RequestsPerSecond: 1.0 / 60})
	require.NoError(t, client.Deliver(context.Background(), testRequest))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, client.Deliver(ctx, testRequest))
}
