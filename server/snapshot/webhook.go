package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/shared"
	"golang.org/x/time/rate"
)

const (
	DEFAULT_TIMEOUT             = 10 * time.Second
	DEFAULT_REQUESTS_PER_SECOND = 5
)

// Deliverer hands a snapshot request to the snapshot service
type Deliverer interface {
	Deliver(ctx context.Context, request snapscheduler.SnapshotRequest) error
}

// WebhookClient delivers snapshot requests as JSON POSTs, never faster than its rate limit
type WebhookClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhookClient(config shared.SnapshotConfig) *WebhookClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond <= 0 {
		limit = DEFAULT_REQUESTS_PER_SECOND
	}

	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	return &WebhookClient{
		url:     config.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *WebhookClient) Deliver(ctx context.Context, request snapscheduler.SnapshotRequest) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Deliver(project=%v): %v", request.ProjectID, err)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("Deliver(project=%v): %v", request.ProjectID, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Deliver(project=%v): %v", request.ProjectID, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "snapcron")

	response, err := c.client.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("Deliver(project=%v): %v", request.ProjectID, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("Deliver(project=%v): snapshot service responded %v: %s",
			request.ProjectID, response.Status, bytes.TrimSpace(message))
	}

	return nil
}

// LogDeliverer only logs requests, used when no webhook is configured
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, request snapscheduler.SnapshotRequest) error {
	logg.Infof("snapshot requested for project %v, scope=%v pages=%v profiles=%v envs=%v (no webhook configured)",
		request.ProjectID, request.Scope, request.PageIDs, request.ProfileIDs, request.EnvIDs)
	return nil
}
