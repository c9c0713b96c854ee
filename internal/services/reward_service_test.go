package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
)

func TestGenerateRedemptionCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{8}$`)
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		code := GenerateRedemptionCode()
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "duplicate code %s after %d draws", code, i)
		seen[code] = true
	}
}

func TestRewardService_RedeemFlow(t *testing.T) {
	db, cleanup := setupServiceTest(t, "reward_redeem")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	ledger := NewLedgerService(db)
	svc := NewRewardService(db, testConfig(), nil, ledger)

	userID := registerAccount(t, accounts, models.RoleUser, "u@example.com")
	vendorID := registerAccount(t, accounts, models.RoleVendor, "v@example.com")
	otherVendorID := registerAccount(t, accounts, models.RoleVendor, "v2@example.com")

	stock := 2
	reward, err := svc.CreateReward(ctx, vendorID, CreateRewardInput{
		Title:          "Free Coffee",
		PointsRequired: 50,
		StockAvailable: &stock,
		ValidUntil:     time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, reward.Active)

	// No balance yet: redemption fails and nothing is consumed.
	_, err = svc.Redeem(ctx, userID, reward.ID)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
		bson.M{"_id": userID}, bson.M{"$inc": bson.M{"points": 120}})
	require.NoError(t, err)

	redemption, err := svc.Redeem(ctx, userID, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionActive, redemption.Status)
	assert.Equal(t, 50, redemption.PointsUsed)
	assert.Len(t, redemption.RedemptionCode, 8)
	assert.Equal(t, redemption.RedemptionCode, redemption.QR.Code)
	assert.NotEmpty(t, redemption.QR.Nonce)

	user, err := accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 70, user.Points)

	updated, err := svc.ListRewardsByVendor(ctx, vendorID)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	require.NotNil(t, updated[0].StockAvailable)
	assert.Equal(t, 1, *updated[0].StockAvailable)
	assert.Equal(t, 1, updated[0].Redeemed)

	vendor, err := accounts.FindVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, 1, vendor.TotalRedemptions)

	pointsBalance, err := ledger.BalanceFromLedger(ctx, models.RoleUser, userID, models.LedgerPoints)
	require.NoError(t, err)
	assert.Equal(t, -50.0, pointsBalance)

	// Verification is vendor-scoped and single-use.
	_, err = svc.VerifyRedemption(ctx, otherVendorID, redemption.RedemptionCode)
	assert.ErrorIs(t, err, ErrForbidden)

	used, err := svc.VerifyRedemption(ctx, vendorID, redemption.RedemptionCode)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionUsed, used.Status)
	require.NotNil(t, used.UsedAt)

	_, err = svc.VerifyRedemption(ctx, vendorID, redemption.RedemptionCode)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.VerifyRedemption(ctx, vendorID, "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)

	// Drain the remaining stock, then the reward is gone.
	_, err = svc.Redeem(ctx, userID, reward.ID)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, userID, reward.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// The failed attempt must not eat points: 120 - 2*50 = 20.
	user, err = accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, user.Points)
}

func TestRewardService_ValidityWindow(t *testing.T) {
	db, cleanup := setupServiceTest(t, "reward_window")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewRewardService(db, testConfig(), nil, NewLedgerService(db))

	userID := registerAccount(t, accounts, models.RoleUser, "u@example.com")
	vendorID := registerAccount(t, accounts, models.RoleVendor, "v@example.com")

	_, err := db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
		bson.M{"_id": userID}, bson.M{"$inc": bson.M{"points": 1000}})
	require.NoError(t, err)

	now := time.Now().UTC()

	future, err := svc.CreateReward(ctx, vendorID, CreateRewardInput{
		Title:          "Not Yet",
		PointsRequired: 10,
		ValidFrom:      now.Add(time.Hour),
		ValidUntil:     now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, userID, future.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// Expired rewards are rejected on redemption even before the sweep runs.
	expired, err := svc.CreateReward(ctx, vendorID, CreateRewardInput{
		Title:          "Too Late",
		PointsRequired: 10,
		ValidFrom:      now.Add(-48 * time.Hour),
		ValidUntil:     now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = db.Collection("rewards").UpdateOne(ctx,
		bson.M{"_id": expired.ID},
		bson.M{"$set": bson.M{"valid_until": now.Add(-time.Hour)}})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, userID, expired.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// Only the in-window reward shows up for users.
	ok, err := svc.CreateReward(ctx, vendorID, CreateRewardInput{
		Title:          "Right Now",
		PointsRequired: 10,
		ValidUntil:     now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	active, err := svc.ListActiveRewards(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ok.ID, active[0].ID)
}
