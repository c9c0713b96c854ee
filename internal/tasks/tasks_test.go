package tasks_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/tasks"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

func setupTasksTest(t *testing.T, name string) (*mongo.Database, func()) {
	dbName := fmt.Sprintf("testdb_%s_%d", name, time.Now().UnixNano())
	db := utils.SetupTestDB(t, dbName)
	cleanup := func() {
		client := db.Client()
		if err := db.Drop(context.Background()); err != nil {
			t.Logf("Failed to drop database %s: %v", dbName, err)
		}
		if err := client.Disconnect(context.Background()); err != nil {
			t.Logf("Failed to disconnect MongoDB client: %v", err)
		}
	}
	return db, cleanup
}

func docStatus(t *testing.T, db *mongo.Database, collection string, id utils.SixID) string {
	var doc struct {
		Status string `bson:"status"`
	}
	require.NoError(t, db.Collection(collection).FindOne(context.Background(), bson.M{"_id": id}).Decode(&doc))
	return doc.Status
}

func TestHandleOfferExpiryTask(t *testing.T) {
	db, cleanup := setupTasksTest(t, "tasks_offer_expiry")
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	mkCollectorOffer := func(status models.CollectorOfferStatus, expiresAt time.Time) utils.SixID {
		offer := &models.WasteOffer{
			Base:          models.NewBase(),
			CollectorID:   utils.NewSixID(),
			WasteType:     "plastic",
			Quantity:      models.Quantity{Value: 100, Unit: "kg"},
			MinPricePerKg: 2,
			Status:        status,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, err := db.Collection("waste_offers").InsertOne(ctx, offer)
		require.NoError(t, err)
		return offer.ID
	}
	mkUserOffer := func(status models.UserOfferStatus, availableUntil time.Time) utils.SixID {
		offer := &models.UserWasteOffer{
			Base:           models.NewBase(),
			UserID:         utils.NewSixID(),
			WasteType:      "glass",
			Quantity:       models.Quantity{Value: 3, Unit: "kg"},
			Status:         status,
			AvailableFrom:  now.Add(-48 * time.Hour),
			AvailableUntil: availableUntil,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err := db.Collection("user_waste_offers").InsertOne(ctx, offer)
		require.NoError(t, err)
		return offer.ID
	}

	staleAvailable := mkCollectorOffer(models.CollectorOfferAvailable, now.Add(-time.Hour))
	staleReserved := mkCollectorOffer(models.CollectorOfferReserved, now.Add(-time.Hour))
	staleSold := mkCollectorOffer(models.CollectorOfferSold, now.Add(-time.Hour))
	freshAvailable := mkCollectorOffer(models.CollectorOfferAvailable, now.Add(time.Hour))

	staleUser := mkUserOffer(models.UserOfferAvailable, now.Add(-time.Hour))
	staleUserPending := mkUserOffer(models.UserOfferPending, now.Add(-time.Hour))
	freshUser := mkUserOffer(models.UserOfferAvailable, now.Add(time.Hour))

	processor := tasks.NewTaskProcessor(&config.Config{}, db)
	task := asynq.NewTask(tasks.TypeOfferExpiry, nil)
	require.NoError(t, processor.HandleOfferExpiryTask(ctx, task))

	// Open collector offers past their expiry are cancelled; sold and
	// still-current ones are untouched.
	assert.Equal(t, "cancelled", docStatus(t, db, "waste_offers", staleAvailable))
	assert.Equal(t, "cancelled", docStatus(t, db, "waste_offers", staleReserved))
	assert.Equal(t, "sold", docStatus(t, db, "waste_offers", staleSold))
	assert.Equal(t, "available", docStatus(t, db, "waste_offers", freshAvailable))

	// User offers expire only while available; one with an open bid keeps
	// negotiating past the window.
	assert.Equal(t, "cancelled", docStatus(t, db, "user_waste_offers", staleUser))
	assert.Equal(t, "pending", docStatus(t, db, "user_waste_offers", staleUserPending))
	assert.Equal(t, "available", docStatus(t, db, "user_waste_offers", freshUser))

	// Sweeps are idempotent.
	require.NoError(t, processor.HandleOfferExpiryTask(ctx, task))
	assert.Equal(t, "cancelled", docStatus(t, db, "waste_offers", staleAvailable))
}

func TestHandleRedemptionExpiryTask(t *testing.T) {
	db, cleanup := setupTasksTest(t, "tasks_redemption_expiry")
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	mkRedemption := func(status models.RedemptionStatus, expiresAt time.Time) utils.SixID {
		redemption := &models.RewardRedemption{
			Base:           models.NewBase(),
			UserID:         utils.NewSixID(),
			RewardID:       utils.NewSixID(),
			VendorID:       utils.NewSixID(),
			PointsUsed:     50,
			RedemptionCode: fmt.Sprintf("code%d", time.Now().UnixNano()),
			Status:         status,
			ExpiresAt:      expiresAt,
			CreatedAt:      now,
		}
		_, err := db.Collection("reward_redemptions").InsertOne(ctx, redemption)
		require.NoError(t, err)
		return redemption.ID
	}

	staleActive := mkRedemption(models.RedemptionActive, now.Add(-time.Hour))
	staleUsed := mkRedemption(models.RedemptionUsed, now.Add(-time.Hour))
	freshActive := mkRedemption(models.RedemptionActive, now.Add(time.Hour))

	processor := tasks.NewTaskProcessor(&config.Config{}, db)
	task := asynq.NewTask(tasks.TypeRedemptionExpiry, nil)
	require.NoError(t, processor.HandleRedemptionExpiryTask(ctx, task))

	// Only never-presented codes past their deadline flip to expired.
	assert.Equal(t, "expired", docStatus(t, db, "reward_redemptions", staleActive))
	assert.Equal(t, "used", docStatus(t, db, "reward_redemptions", staleUsed))
	assert.Equal(t, "active", docStatus(t, db, "reward_redemptions", freshActive))
}
