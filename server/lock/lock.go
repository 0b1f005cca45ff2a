// Package lock holds the expiring key-value stores dispatchers use to agree on
// who schedules a timer's next firing. The stores are advisory: a key only
// says "someone claimed this", it never fences out a late writer.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Daskott/snapcron/server/logger"
	"github.com/Daskott/snapcron/shared"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var logg = logger.NewLogger()

type Store interface {
	// Get returns the value stored for key, and false if the key is absent or expired
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value for key, overwriting any previous value, for 'ttl'
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// NewStore creates a Store based on the configured backend
func NewStore(config shared.LockConfig, clock clockwork.Clock) (Store, error) {
	switch config.Backend {
	case "database", "":
		return NewDatabaseStore(clock), nil
	case "redis":
		return NewRedisStore(config.Redis)
	case "memory":
		logg.Warn("using in-memory lock store, dispatchers in other processes will not see its keys")
		return NewMemoryStore(clock), nil
	default:
		return nil, fmt.Errorf("unknown lock backend: %s", config.Backend)
	}
}

// NewOwnerToken returns a value identifying this process as the holder of a key
func NewOwnerToken() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	return fmt.Sprintf("%s/%d/%s", hostname, os.Getpid(), uuid.NewString())
}
