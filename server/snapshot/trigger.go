package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/Daskott/snapcron/server/work"
)

const (
	TAKE_SNAPSHOT_HANDLER     = "takeSnapshot"
	DEFAULT_DELIVERY_ATTEMPTS = 4
)

var logg = logger.NewLogger()

type Enqueuer interface {
	Perform(job work.JobParams) error
}

// QueueTrigger turns snapshot requests into durable jobs, one per project at a time.
// A request for a project whose previous request is still queued is dropped.
type QueueTrigger struct {
	queue            Enqueuer
	deliveryAttempts int
}

func NewQueueTrigger(queue Enqueuer, deliveryAttempts int) *QueueTrigger {
	if deliveryAttempts < 1 {
		deliveryAttempts = DEFAULT_DELIVERY_ATTEMPTS
	}

	return &QueueTrigger{queue: queue, deliveryAttempts: deliveryAttempts}
}

func (t *QueueTrigger) Trigger(ctx context.Context, request snapscheduler.SnapshotRequest) error {
	args, err := requestToArgs(request)
	if err != nil {
		return fmt.Errorf("Trigger(project=%v): %v", request.ProjectID, err)
	}

	return t.queue.Perform(work.JobParams{
		Name:     JobName(request.ProjectID),
		Handler:  TAKE_SNAPSHOT_HANDLER,
		Args:     args,
		MaxFails: t.deliveryAttempts,
	})
}

func JobName(projectID uint) string {
	return fmt.Sprintf("snapshot_project_%d", projectID)
}

// NewHandler returns the job handler delivering queued snapshot requests with 'deliverer'
func NewHandler(deliverer Deliverer, timeout time.Duration) work.Handler {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	return func(args map[string]interface{}) error {
		request, err := argsToRequest(args)
		if err != nil {
			return err
		}

		// leave room for the rate limiter on top of the request itself
		ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
		defer cancel()

		return deliverer.Deliver(ctx, request)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func requestToArgs(request snapscheduler.SnapshotRequest) (map[string]interface{}, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	args := make(map[string]interface{})
	err = json.Unmarshal(raw, &args)
	return args, err
}

func argsToRequest(args map[string]interface{}) (snapscheduler.SnapshotRequest, error) {
	request := snapscheduler.SnapshotRequest{}

	raw, err := json.Marshal(args)
	if err != nil {
		return request, err
	}

	err = json.Unmarshal(raw, &request)
	if err != nil {
		return request, fmt.Errorf("invalid snapshot job args: %v", err)
	}

	if request.ProjectID == 0 {
		return request, fmt.Errorf("invalid snapshot job args: missing projectId")
	}
	return request, nil
}
