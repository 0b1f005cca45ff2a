package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestEntity(t *testing.T, kind EntityKind, projectID uint, externalID string, enabled bool) uint {
	entity, err := CreateEntity(context.Background(), kind, Entity{
		ProjectID:  projectID,
		ExternalID: externalID,
		Name:       externalID,
		Enabled:    enabled,
	})
	require.NoError(t, err)
	return entity.ID
}

func TestListEntityIDs(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	home := createTestEntity(t, PAGE_ENTITY, 42, "home", true)
	pricing := createTestEntity(t, PAGE_ENTITY, 42, "pricing", false)
	legal := createTestEntity(t, PAGE_ENTITY, 42, "legal", true)
	createTestEntity(t, PAGE_ENTITY, 7, "other-project", true)

	require.NoError(t, DeleteEntity(ctx, PAGE_ENTITY, legal))

	all, err := ListEntityIDs(ctx, PAGE_ENTITY, 42)
	require.NoError(t, err)
	assert.Equal(t, []uint{home, pricing}, all)

	enabled, err := ListEnabledEntityIDs(ctx, PAGE_ENTITY, 42)
	require.NoError(t, err)
	assert.Equal(t, []uint{home}, enabled)

	require.NoError(t, SetEntityEnabled(ctx, PAGE_ENTITY, pricing, true))
	enabled, err = ListEnabledEntityIDs(ctx, PAGE_ENTITY, 42)
	require.NoError(t, err)
	assert.Equal(t, []uint{home, pricing}, enabled)
}

func TestEntityKindsAreSeparate(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	createTestEntity(t, PROFILE_ENTITY, 42, "desktop", true)

	pages, err := ListEntityIDs(ctx, PAGE_ENTITY, 42)
	require.NoError(t, err)
	assert.Empty(t, pages)

	profiles, err := ListEntityIDs(ctx, PROFILE_ENTITY, 42)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	_, err = ListEntityIDs(ctx, EntityKind("widget"), 42)
	assert.Error(t, err)
}

func TestResolveExternalIDs(t *testing.T) {
	InitializeTestDb()
	ctx := context.Background()

	staging := createTestEntity(t, ENVIRONMENT_ENTITY, 42, "staging", true)
	production := createTestEntity(t, ENVIRONMENT_ENTITY, 42, "production", true)
	createTestEntity(t, ENVIRONMENT_ENTITY, 7, "qa", true)

	ids, err := ResolveExternalIDs(ctx, ENVIRONMENT_ENTITY, 42, []string{"production", "staging"})
	require.NoError(t, err)
	assert.Equal(t, []uint{production, staging}, ids)

	_, err = ResolveExternalIDs(ctx, ENVIRONMENT_ENTITY, 42, []string{"qa"})
	assert.ErrorContains(t, err, "unknown environment 'qa'")

	externalIDs, err := ExternalIDs(ctx, ENVIRONMENT_ENTITY, 42, []uint{staging, 404, production})
	require.NoError(t, err)
	assert.Equal(t, []string{"staging", "production"}, externalIDs)
}
