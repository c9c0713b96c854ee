package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		PointsPerKgSold:       10,
		CollectorOfferTTLDays: 7,
		RewardListCacheTTL:    time.Minute,
	}
}

// setupServiceTest connects to the test MongoDB with a unique database per
// test so parallel runs cannot interfere.
func setupServiceTest(t *testing.T, name string) (*mongo.Database, func()) {
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

func registerAccount(t *testing.T, accounts IAccountService, role models.Role, email string, wasteTypes ...string) utils.SixID {
	result, err := accounts.Register(context.Background(), RegisterInput{
		Role:               role,
		Name:               "Test " + string(role),
		Email:              email,
		Password:           "password123",
		AcceptedWasteTypes: wasteTypes,
	})
	require.NoError(t, err)
	return result.ID
}

func TestUserOfferService_CreateOfferValidation(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_create")
	defer cleanup()
	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))
	userID := utils.NewSixID()

	_, err := svc.CreateOffer(context.Background(), userID, CreateUserOfferInput{
		Quantity: models.Quantity{Value: 5},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOffer(context.Background(), userID, CreateUserOfferInput{
		WasteType: "plastic",
		Quantity:  models.Quantity{Value: 0},
	})
	assert.ErrorIs(t, err, ErrValidation)

	offer, err := svc.CreateOffer(context.Background(), userID, CreateUserOfferInput{
		WasteType:     "plastic",
		Quantity:      models.Quantity{Value: 5},
		ExpectedPrice: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferAvailable, offer.Status)
	assert.Equal(t, "kg", offer.Quantity.Unit)
	assert.True(t, offer.AvailableUntil.After(offer.AvailableFrom))
}

func TestUserOfferService_AcceptAndComplete(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_flow")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	ledger := NewLedgerService(db)
	svc := NewUserOfferService(db, testConfig(), ledger)

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorA := registerAccount(t, accounts, models.RoleCollector, "a@example.com", "plastic")
	collectorB := registerAccount(t, accounts, models.RoleCollector, "b@example.com", "plastic")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType:     "plastic",
		Quantity:      models.Quantity{Value: 5, Unit: "kg"},
		ExpectedPrice: 100,
	})
	require.NoError(t, err)

	// First bid flips the offer to pending.
	reqA, err := svc.CreateRequest(ctx, collectorA, offer.ID, 90, nil, "can pick up tomorrow")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, reqA.Status)
	assert.Equal(t, 90.0, reqA.ProposedPrice)

	fetched, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferPending, fetched.Status)

	// A second collector can still bid on a pending offer.
	reqB, err := svc.CreateRequest(ctx, collectorB, offer.ID, 95, nil, "")
	require.NoError(t, err)

	// But the same collector cannot hold two pending bids.
	_, err = svc.CreateRequest(ctx, collectorA, offer.ID, 99, nil, "")
	assert.ErrorIs(t, err, ErrConflict)

	// Only the offer owner can respond.
	_, err = svc.RespondToRequest(ctx, collectorA, reqA.ID, true, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// Accepting A rejects B automatically.
	accepted, err := svc.RespondToRequest(ctx, userID, reqA.ID, true, "deal")
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, accepted.Status)

	requests, err := svc.ListRequestsForCollector(ctx, collectorB)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.RequestRejected, requests[0].Status)
	assert.Equal(t, "another request was accepted", requests[0].Message)
	assert.Equal(t, reqB.ID, requests[0].ID)

	// Completion pays the user and grows the collector's inventory.
	completed, err := svc.CompleteRequest(ctx, collectorA, reqA.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, completed.Status)
	require.NotNil(t, completed.FinalPayment)
	assert.Equal(t, 90.0, *completed.FinalPayment)

	soldOffer, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferSold, soldOffer.Status)

	user, err := accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, user.CashEarned)
	assert.Equal(t, 50, user.Points) // 10 points per kg, 5 kg
	assert.Equal(t, 5.0, user.TotalWasteDisposed)
	assert.Equal(t, 1, user.TotalTransactions)

	collector, err := accounts.FindCollector(ctx, collectorA)
	require.NoError(t, err)
	assert.Equal(t, 5.0, collector.Inventory["plastic"])
	assert.Equal(t, 5.0, collector.TotalWasteCollected)
	assert.Equal(t, 1, collector.TotalTransactions)

	// The ledger mirrors every balance mutation.
	cashBalance, err := ledger.BalanceFromLedger(ctx, models.RoleUser, userID, models.LedgerCash)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cashBalance)
	pointsBalance, err := ledger.BalanceFromLedger(ctx, models.RoleUser, userID, models.LedgerPoints)
	require.NoError(t, err)
	assert.Equal(t, 50.0, pointsBalance)
	inventoryBalance, err := ledger.BalanceFromLedger(ctx, models.RoleCollector, collectorA, models.LedgerInventory)
	require.NoError(t, err)
	assert.Equal(t, 5.0, inventoryBalance)

	// Completion is idempotent: a second call changes nothing.
	_, err = svc.CompleteRequest(ctx, collectorA, reqA.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)

	user, err = accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, user.CashEarned)
	assert.Equal(t, 1, user.TotalTransactions)
}

func TestUserOfferService_PaymentOverride(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_override")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "glass")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType: "glass",
		Quantity:  models.Quantity{Value: 2},
	})
	require.NoError(t, err)

	req, err := svc.CreateRequest(ctx, collectorID, offer.ID, 40, nil, "")
	require.NoError(t, err)
	_, err = svc.RespondToRequest(ctx, userID, req.ID, true, "")
	require.NoError(t, err)

	override := 35.0
	completed, err := svc.CompleteRequest(ctx, collectorID, req.ID, &override)
	require.NoError(t, err)
	require.NotNil(t, completed.FinalPayment)
	assert.Equal(t, 35.0, *completed.FinalPayment)

	user, err := accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 35.0, user.CashEarned)
}

func TestUserOfferService_RejectAndCancelRevertOffer(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_revert")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "paper")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType: "paper",
		Quantity:  models.Quantity{Value: 3},
	})
	require.NoError(t, err)

	// Reject the only pending bid: offer returns to available.
	req, err := svc.CreateRequest(ctx, collectorID, offer.ID, 10, nil, "")
	require.NoError(t, err)
	rejected, err := svc.RespondToRequest(ctx, userID, req.ID, false, "too low")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)

	fetched, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferAvailable, fetched.Status)

	// A withdrawn bid also clears the offer.
	req2, err := svc.CreateRequest(ctx, collectorID, offer.ID, 12, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.CancelRequest(ctx, collectorID, req2.ID))

	fetched, err = svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferAvailable, fetched.Status)

	// Responding to a settled request is a conflict.
	_, err = svc.RespondToRequest(ctx, userID, req.ID, true, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserOfferService_CancelOfferRejectsPendingBids(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_cancel")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "metal")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType: "metal",
		Quantity:  models.Quantity{Value: 8},
	})
	require.NoError(t, err)

	_, err = svc.CreateRequest(ctx, collectorID, offer.ID, 60, nil, "")
	require.NoError(t, err)

	// Only the owner can cancel.
	err = svc.CancelOffer(ctx, collectorID, offer.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.CancelOffer(ctx, userID, offer.ID))

	fetched, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferCancelled, fetched.Status)

	requests, err := svc.ListRequestsForCollector(ctx, collectorID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.RequestRejected, requests[0].Status)

	// No new bids on a cancelled offer.
	_, err = svc.CreateRequest(ctx, collectorID, offer.ID, 70, nil, "")
	assert.ErrorIs(t, err, ErrConflict)

	// Cancelling twice is a conflict.
	err = svc.CancelOffer(ctx, userID, offer.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserOfferService_BrowseFilters(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_browse")
	defer cleanup()
	ctx := context.Background()

	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))
	userID := utils.NewSixID()

	mk := func(wasteType, city string, price float64) {
		_, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
			WasteType:     wasteType,
			Quantity:      models.Quantity{Value: 1},
			ExpectedPrice: price,
			Location:      models.OfferLocation{City: city},
		})
		require.NoError(t, err)
	}
	mk("plastic", "Colombo", 50)
	mk("plastic", "Kandy", 80)
	mk("glass", "Colombo", 20)

	offers, err := svc.BrowseOffers(ctx, UserOfferFilters{WasteType: "plastic"})
	require.NoError(t, err)
	assert.Len(t, offers, 2)

	offers, err = svc.BrowseOffers(ctx, UserOfferFilters{City: "Colombo"})
	require.NoError(t, err)
	assert.Len(t, offers, 2)

	minPrice := 40.0
	maxPrice := 60.0
	offers, err = svc.BrowseOffers(ctx, UserOfferFilters{MinPrice: &minPrice, MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, 50.0, offers[0].ExpectedPrice)

	// Offers outside their availability window never show up, even when they
	// match every other filter.
	now := time.Now().UTC()
	_, err = svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType:     "plastic",
		Quantity:      models.Quantity{Value: 1},
		ExpectedPrice: 50,
		Location:      models.OfferLocation{City: "Colombo"},
		AvailableFrom: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType:      "plastic",
		Quantity:       models.Quantity{Value: 1},
		ExpectedPrice:  50,
		Location:       models.OfferLocation{City: "Colombo"},
		AvailableFrom:  now.Add(-48 * time.Hour),
		AvailableUntil: now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	offers, err = svc.BrowseOffers(ctx, UserOfferFilters{})
	require.NoError(t, err)
	assert.Len(t, offers, 3)

	offers, err = svc.BrowseOffers(ctx, UserOfferFilters{WasteType: "plastic", City: "Colombo"})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, 50.0, offers[0].ExpectedPrice)
}

func TestUserOfferService_AcceptanceClosesBidding(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_single_winner")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	ledger := NewLedgerService(db)
	svc := NewUserOfferService(db, testConfig(), ledger)

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorA := registerAccount(t, accounts, models.RoleCollector, "a@example.com", "plastic")
	collectorB := registerAccount(t, accounts, models.RoleCollector, "b@example.com", "plastic")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType:     "plastic",
		Quantity:      models.Quantity{Value: 4, Unit: "kg"},
		ExpectedPrice: 100,
	})
	require.NoError(t, err)

	reqA, err := svc.CreateRequest(ctx, collectorA, offer.ID, 90, nil, "")
	require.NoError(t, err)
	_, err = svc.RespondToRequest(ctx, userID, reqA.ID, true, "deal")
	require.NoError(t, err)

	// The offer stays pending until pickup, but once a winner was picked no
	// further bid may be placed against it.
	_, err = svc.CreateRequest(ctx, collectorB, offer.ID, 120, nil, "")
	assert.ErrorIs(t, err, ErrConflict)

	// A bid that slipped in before the acceptance cannot be accepted as a
	// second winner either.
	now := time.Now().UTC()
	straggler := &models.CollectorPurchaseRequest{
		Base:          models.NewBase(),
		UserOfferID:   offer.ID,
		CollectorID:   collectorB,
		UserID:        userID,
		OfferedPrice:  120,
		ProposedPrice: 120,
		Status:        models.RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = db.Collection(collectorRequestsCollection).InsertOne(ctx, straggler)
	require.NoError(t, err)

	_, err = svc.RespondToRequest(ctx, userID, straggler.ID, true, "")
	assert.ErrorIs(t, err, ErrConflict)

	// Even a request that raced its way to accepted cannot complete a second
	// time against the same offer: the first completion sells the offer and
	// the second aborts without paying anyone.
	_, err = db.Collection(collectorRequestsCollection).UpdateOne(ctx,
		bson.M{"_id": straggler.ID},
		bson.M{"$set": bson.M{"status": models.RequestAccepted}},
	)
	require.NoError(t, err)

	_, err = svc.CompleteRequest(ctx, collectorA, reqA.ID, nil)
	require.NoError(t, err)

	_, err = svc.CompleteRequest(ctx, collectorB, straggler.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)

	soldOffer, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferSold, soldOffer.Status)

	var stranded models.CollectorPurchaseRequest
	require.NoError(t, db.Collection(collectorRequestsCollection).
		FindOne(ctx, bson.M{"_id": straggler.ID}).Decode(&stranded))
	assert.Equal(t, models.RequestAccepted, stranded.Status)
	assert.Nil(t, stranded.FinalPayment)
	assert.Nil(t, stranded.CompletedAt)

	// The user was paid exactly once.
	user, err := accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, user.CashEarned)
	assert.Equal(t, 40, user.Points)
	assert.Equal(t, 1, user.TotalTransactions)

	cashBalance, err := ledger.BalanceFromLedger(ctx, models.RoleUser, userID, models.LedgerCash)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cashBalance)

	collectorBDoc, err := accounts.FindCollector(ctx, collectorB)
	require.NoError(t, err)
	assert.Zero(t, collectorBDoc.Inventory["plastic"])
}

func TestUserOfferService_CancelOfferWithAcceptedRequest(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_cancel_accepted")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewUserOfferService(db, testConfig(), NewLedgerService(db))

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "metal")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType: "metal",
		Quantity:  models.Quantity{Value: 6},
	})
	require.NoError(t, err)

	req, err := svc.CreateRequest(ctx, collectorID, offer.ID, 60, nil, "")
	require.NoError(t, err)
	_, err = svc.RespondToRequest(ctx, userID, req.ID, true, "")
	require.NoError(t, err)

	// Once a bid was accepted the pickup is committed; the offer cannot be
	// withdrawn out from under the collector.
	err = svc.CancelOffer(ctx, userID, offer.ID)
	assert.ErrorIs(t, err, ErrConflict)

	fetched, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferPending, fetched.Status)

	completed, err := svc.CompleteRequest(ctx, collectorID, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, completed.Status)
}

func TestUserOfferService_CompleteAgainstCancelledOffer(t *testing.T) {
	db, cleanup := setupServiceTest(t, "user_offer_complete_cancelled")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	ledger := NewLedgerService(db)
	svc := NewUserOfferService(db, testConfig(), ledger)

	userID := registerAccount(t, accounts, models.RoleUser, "seller@example.com")
	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "paper")

	offer, err := svc.CreateOffer(ctx, userID, CreateUserOfferInput{
		WasteType: "paper",
		Quantity:  models.Quantity{Value: 3},
	})
	require.NoError(t, err)

	req, err := svc.CreateRequest(ctx, collectorID, offer.ID, 30, nil, "")
	require.NoError(t, err)
	_, err = svc.RespondToRequest(ctx, userID, req.ID, true, "")
	require.NoError(t, err)

	// A cancellation that raced past the acceptance guard still cannot be
	// completed against: the offer is terminal and no payout may happen.
	_, err = db.Collection(userOffersCollection).UpdateOne(ctx,
		bson.M{"_id": offer.ID},
		bson.M{"$set": bson.M{"status": models.UserOfferCancelled}},
	)
	require.NoError(t, err)

	_, err = svc.CompleteRequest(ctx, collectorID, req.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)

	fetched, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserOfferCancelled, fetched.Status)

	user, err := accounts.FindUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, user.CashEarned)
	assert.Zero(t, user.Points)

	cashBalance, err := ledger.BalanceFromLedger(ctx, models.RoleUser, userID, models.LedgerCash)
	require.NoError(t, err)
	assert.Zero(t, cashBalance)
}
