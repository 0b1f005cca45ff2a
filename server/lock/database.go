package lock

import (
	"context"
	"errors"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/jonboulle/clockwork"
)

// DatabaseStore keeps keys as rows of the 'leases' table, for deployments
// where every dispatcher already shares one database but no redis
type DatabaseStore struct {
	clock clockwork.Clock
}

func NewDatabaseStore(clock clockwork.Clock) *DatabaseStore {
	return &DatabaseStore{clock: clock}
}

func (s *DatabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	lease, err := models.FindLease(ctx, key, s.clock.Now())
	if errors.Is(err, models.ErrLeaseNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return lease.Owner, true, nil
}

func (s *DatabaseStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.clock.Now()

	// expired rows are only garbage, clearing them is best-effort
	if _, err := models.DeleteExpiredLeases(ctx, now); err != nil {
		logg.Warnf("DatabaseStore.Set: unable to clear expired leases: %v", err)
	}

	return models.PutLease(ctx, key, value, now.Add(ttl))
}

func (s *DatabaseStore) Delete(ctx context.Context, key string) error {
	return models.DeleteLease(ctx, key)
}
