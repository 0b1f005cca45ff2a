package models

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

type EntityKind string

const (
	PAGE_ENTITY        EntityKind = "page"
	PROFILE_ENTITY     EntityKind = "profile"
	ENVIRONMENT_ENTITY EntityKind = "environment"
)

var EntityKinds = []EntityKind{PAGE_ENTITY, PROFILE_ENTITY, ENVIRONMENT_ENTITY}

// Entity holds the columns shared by pages, profiles & environments.
// Deleted entities are soft deleted, so they drop out of every query below.
type Entity struct {
	BaseModel
	ProjectID  uint           `json:"project_id" gorm:"not null;index"`
	ExternalID string         `json:"external_id" gorm:"not null;index"`
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled" gorm:"not null"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

type Page struct {
	Entity
}

type Profile struct {
	Entity
}

type Environment struct {
	Entity
}

// ListEnabledEntityIDs returns the ids of enabled (and not deleted) entities of a project
func ListEnabledEntityIDs(ctx context.Context, kind EntityKind, projectID uint) ([]uint, error) {
	return pluckEntityIDs(ctx, kind, "project_id = ? AND enabled = ?", projectID, true)
}

// ListEntityIDs returns the ids of every entity of a project that still exists
func ListEntityIDs(ctx context.Context, kind EntityKind, projectID uint) ([]uint, error) {
	return pluckEntityIDs(ctx, kind, "project_id = ?", projectID)
}

// ResolveExternalIDs maps external ids to internal ids, in the order given.
// Unknown external ids are reported as an error.
func ResolveExternalIDs(ctx context.Context, kind EntityKind, projectID uint, externalIDs []string) ([]uint, error) {
	if len(externalIDs) == 0 {
		return []uint{}, nil
	}

	entities, err := findEntities(ctx, kind, "project_id = ? AND external_id IN ?", projectID, externalIDs)
	if err != nil {
		return nil, err
	}

	byExternalID := make(map[string]uint, len(entities))
	for _, entity := range entities {
		byExternalID[entity.ExternalID] = entity.ID
	}

	ids := make([]uint, 0, len(externalIDs))
	for _, externalID := range externalIDs {
		id, ok := byExternalID[externalID]
		if !ok {
			return nil, fmt.Errorf("unknown %v '%v' in project %v", kind, externalID, projectID)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// ExternalIDs maps internal ids to external ids, in the order given. Missing ids are skipped.
func ExternalIDs(ctx context.Context, kind EntityKind, projectID uint, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	entities, err := findEntities(ctx, kind, "project_id = ? AND id IN ?", projectID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]string, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity.ExternalID
	}

	externalIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if externalID, ok := byID[id]; ok {
			externalIDs = append(externalIDs, externalID)
		}
	}

	return externalIDs, nil
}

// CreateEntity records a page, profile or environment for a project
func CreateEntity(ctx context.Context, kind EntityKind, entity Entity) (*Entity, error) {
	var record interface{}
	var created *Entity

	switch kind {
	case PAGE_ENTITY:
		page := &Page{Entity: entity}
		record, created = page, &page.Entity
	case PROFILE_ENTITY:
		profile := &Profile{Entity: entity}
		record, created = profile, &profile.Entity
	case ENVIRONMENT_ENTITY:
		environment := &Environment{Entity: entity}
		record, created = environment, &environment.Entity
	default:
		return nil, fmt.Errorf("unknown entity kind: %v", kind)
	}

	err := db.WithContext(ctx).Create(record).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "CreateEntity(%v)", kind)
	}

	return created, nil
}

func SetEntityEnabled(ctx context.Context, kind EntityKind, id uint, enabled bool) error {
	model, err := modelFor(kind)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Model(model).Where("id = ?", id).Update("enabled", enabled).Error
}

func DeleteEntity(ctx context.Context, kind EntityKind, id uint) error {
	model, err := modelFor(kind)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Where("id = ?", id).Delete(model).Error
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func modelFor(kind EntityKind) (interface{}, error) {
	switch kind {
	case PAGE_ENTITY:
		return &Page{}, nil
	case PROFILE_ENTITY:
		return &Profile{}, nil
	case ENVIRONMENT_ENTITY:
		return &Environment{}, nil
	}

	return nil, fmt.Errorf("unknown entity kind: %v", kind)
}

func pluckEntityIDs(ctx context.Context, kind EntityKind, query string, args ...interface{}) ([]uint, error) {
	model, err := modelFor(kind)
	if err != nil {
		return nil, err
	}

	ids := []uint{}
	err = db.WithContext(ctx).Model(model).Where(query, args...).Order("id asc").Pluck("id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "pluckEntityIDs(%v)", kind)
	}

	return ids, nil
}

func findEntities(ctx context.Context, kind EntityKind, query string, args ...interface{}) ([]Entity, error) {
	model, err := modelFor(kind)
	if err != nil {
		return nil, err
	}

	entities := []Entity{}
	err = db.WithContext(ctx).Model(model).Where(query, args...).Find(&entities).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "findEntities(%v)", kind)
	}

	return entities, nil
}
