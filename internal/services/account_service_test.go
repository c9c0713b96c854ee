package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/db"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
)

func TestAccountService_RegisterAndLogin(t *testing.T) {
	database, cleanup := setupServiceTest(t, "account_register")
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, db.EnsureIndexes(ctx, database))

	svc := NewAccountService(database)

	result, err := svc.Register(ctx, RegisterInput{
		Role:     models.RoleUser,
		Name:     "Nimal",
		Email:    "Nimal@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "nimal@example.com", result.Email, "emails are stored lowercased")
	assert.False(t, result.ID.IsZero())

	// Same email in the same collection conflicts.
	_, err = svc.Register(ctx, RegisterInput{
		Role:     models.RoleUser,
		Name:     "Other",
		Email:    "nimal@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// But the same email can register a different role.
	_, err = svc.Register(ctx, RegisterInput{
		Role:               models.RoleCollector,
		Name:               "Nimal's Depot",
		Email:              "nimal@example.com",
		Password:           "password123",
		AcceptedWasteTypes: []string{"plastic"},
	})
	require.NoError(t, err)

	// Short passwords are rejected.
	_, err = svc.Register(ctx, RegisterInput{
		Role:     models.RoleUser,
		Name:     "Short",
		Email:    "short@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, ErrValidation)

	login, err := svc.Login(ctx, models.RoleUser, "nimal@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, result.ID, login.ID)

	_, err = svc.Login(ctx, models.RoleUser, "nimal@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, models.RoleUser, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAccountService_DeactivateLocksOut(t *testing.T) {
	database, cleanup := setupServiceTest(t, "account_deactivate")
	defer cleanup()
	ctx := context.Background()

	svc := NewAccountService(database)
	id := registerAccount(t, svc, models.RoleUser, "bye@example.com")

	require.NoError(t, svc.Deactivate(ctx, models.RoleUser, id))

	// Idempotence: a second deactivation conflicts rather than succeeding.
	err := svc.Deactivate(ctx, models.RoleUser, id)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Login(ctx, models.RoleUser, "bye@example.com", "password123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	account, err := svc.Resolve(ctx, models.RoleUser, id)
	require.NoError(t, err)
	assert.False(t, account.Active)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	database, cleanup := setupServiceTest(t, "account_update")
	defer cleanup()
	ctx := context.Background()

	svc := NewAccountService(database)
	id := registerAccount(t, svc, models.RoleCollector, "depot@example.com", "plastic")

	err := svc.UpdateProfile(ctx, models.RoleCollector, id, map[string]interface{}{
		"name":                 "Depot Two",
		"phone":                "0771234567",
		"accepted_waste_types": []string{"plastic", "glass"},
	})
	require.NoError(t, err)

	collector, err := svc.FindCollector(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Depot Two", collector.Name)
	assert.Equal(t, "0771234567", collector.Phone)
	assert.Equal(t, []string{"plastic", "glass"}, collector.AcceptedWasteTypes)

	// Unknown fields are rejected, not silently dropped.
	err = svc.UpdateProfile(ctx, models.RoleCollector, id, map[string]interface{}{
		"points": 9999,
	})
	assert.ErrorIs(t, err, ErrValidation)
}
