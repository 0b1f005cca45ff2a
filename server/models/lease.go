package models

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrLeaseNotFound = errors.New("lease not found")

// Lease is an expiring key shared by every dispatcher using the same database
type Lease struct {
	Key       string    `json:"key" gorm:"column:lease_key;primarykey"`
	Owner     string    `json:"owner" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindLease returns the lease for 'key', if it has not expired by 'now'
func FindLease(ctx context.Context, key string, now time.Time) (*Lease, error) {
	lease := Lease{}

	err := db.WithContext(ctx).Where("lease_key = ? AND expires_at > ?", key, now.UTC()).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeaseNotFound
	}

	if err != nil {
		return nil, pkgerrors.Wrapf(err, "FindLease(%v)", key)
	}

	return &lease, nil
}

// PutLease creates or overwrites the lease for 'key'
func PutLease(ctx context.Context, key, owner string, expiresAt time.Time) error {
	lease := Lease{Key: key, Owner: owner, ExpiresAt: expiresAt.UTC()}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lease_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "expires_at", "updated_at"}),
	}).Create(&lease).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "PutLease(%v)", key)
	}

	return nil
}

func DeleteLease(ctx context.Context, key string) error {
	return db.WithContext(ctx).Where("lease_key = ?", key).Delete(&Lease{}).Error
}

// DeleteExpiredLeases removes every lease that expired by 'now'
func DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&Lease{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(res.Error, "DeleteExpiredLeases")
	}

	return res.RowsAffected, nil
}
