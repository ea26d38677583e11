package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drazisil/mcos-sub001/internal/model"
)

func TestFixtureStore_WellKnownContexts(t *testing.T) {
	s := NewFixtureStore()
	ctx := context.Background()

	row, err := s.FindSessionByContext(ctx, "d316cd2dd6bf870893dfbaaf17f965884e")
	require.NoError(t, err)
	assert.Equal(t, uint32(5551212), row.CustomerID)
	assert.Equal(t, uint32(1), row.UserID)

	row, err = s.FindSessionByContext(ctx, "5213dee3a6bcdb133373b2d4f3b9962758")
	require.NoError(t, err)
	assert.Equal(t, uint32(2885746688), row.CustomerID)
	assert.Equal(t, uint32(2), row.UserID)

	_, err = s.FindSessionByContext(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Credentials(t *testing.T) {
	s := NewFixtureStore()
	ctx := context.Background()

	u, err := s.FindUserByCredentials(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, uint32(5551212), u.CustomerID)

	// Username lookup is case-insensitive, the password is not.
	_, err = s.FindUserByCredentials(ctx, "ADMIN", "admin")
	assert.NoError(t, err)

	_, err = s.FindUserByCredentials(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindUserByCredentials(ctx, "nobody", "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ProfileLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := &model.Profile{CustomerID: 5551212, ProfileName: "Doc", ShardID: 44}
	require.NoError(t, s.CreateProfile(ctx, p))
	require.NotZero(t, p.ProfileID)

	inUse, err := s.ProfileNameInUse(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, inUse, "name check is case-insensitive")

	owned, err := s.GetProfilesForCustomer(ctx, 5551212)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	require.NoError(t, s.DeleteProfile(ctx, p.ProfileID))
	assert.ErrorIs(t, s.DeleteProfile(ctx, p.ProfileID), ErrNotFound)

	owned, err = s.GetProfilesForCustomer(ctx, 5551212)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestMemoryStore_PurchaseStockCar(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	v, err := s.PurchaseStockCar(ctx, 1000, 101, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), v.PersonaID)
	assert.Equal(t, uint32(101), v.BrandedPartID)

	vehicles, err := s.VehiclesForPersona(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)

	parts, err := s.PartsForVehicle(ctx, v.VehicleID)
	require.NoError(t, err)
	require.Len(t, parts, 1, "purchase creates the root part")
	assert.Equal(t, v.VehicleID, parts[0].VehicleID)
	assert.Zero(t, parts[0].ParentPartID)
	assert.Equal(t, uint32(1000), parts[0].OwnerID)
}

func TestMemoryStore_CopiesOut(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, &model.Profile{CustomerID: 1, ProfileName: "Original"}))

	owned, err := s.GetProfilesForCustomer(ctx, 1)
	require.NoError(t, err)
	owned[0].ProfileName = "Mutated"

	again, err := s.GetProfilesForCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Original", again[0].ProfileName, "callers get copies, not store internals")
}
