package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

func TestVendorPurchaseService_ReserveCompleteFlow(t *testing.T) {
	db, cleanup := setupServiceTest(t, "vendor_purchase_flow")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	ledger := NewLedgerService(db)
	svc := NewVendorPurchaseService(db, testConfig(), ledger)

	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "plastic")
	vendorID := registerAccount(t, accounts, models.RoleVendor, "v@example.com")
	otherVendorID := registerAccount(t, accounts, models.RoleVendor, "v2@example.com")

	offer, err := svc.CreateOffer(ctx, collectorID, CreateCollectorOfferInput{
		WasteType:     "plastic",
		Quantity:      models.Quantity{Value: 100, Unit: "kg"},
		MinPricePerKg: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CollectorOfferAvailable, offer.Status)
	assert.False(t, offer.ExpiresAt.IsZero())

	purchase, err := svc.CreatePurchase(ctx, vendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		OfferID:      &offer.ID,
		WasteType:    "plastic",
		Quantity:     100,
		PricePerUnit: 2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePending, purchase.Status)
	assert.Equal(t, 250.0, purchase.TotalAmount)

	// The offer is now reserved, so a second vendor cannot take it.
	reserved, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectorOfferReserved, reserved.Status)

	_, err = svc.CreatePurchase(ctx, otherVendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		OfferID:      &offer.ID,
		WasteType:    "plastic",
		Quantity:     100,
		PricePerUnit: 3,
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Collector accepts, vendor completes.
	_, err = svc.RespondToPurchase(ctx, collectorID, purchase.ID, true, "ready for pickup")
	require.NoError(t, err)

	// A second response is a conflict.
	_, err = svc.RespondToPurchase(ctx, collectorID, purchase.ID, false, "")
	assert.ErrorIs(t, err, ErrConflict)

	completed, err := svc.CompletePurchase(ctx, vendorID, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	sold, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectorOfferSold, sold.Status)

	collector, err := accounts.FindCollector(ctx, collectorID)
	require.NoError(t, err)
	assert.Equal(t, -100.0, collector.Inventory["plastic"])

	vendor, err := accounts.FindVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, 1, vendor.TotalPurchases)

	collectorCash, err := ledger.BalanceFromLedger(ctx, models.RoleCollector, collectorID, models.LedgerCash)
	require.NoError(t, err)
	assert.Equal(t, 250.0, collectorCash)
	vendorCash, err := ledger.BalanceFromLedger(ctx, models.RoleVendor, vendorID, models.LedgerCash)
	require.NoError(t, err)
	assert.Equal(t, -250.0, vendorCash)

	// Completion is idempotent.
	_, err = svc.CompletePurchase(ctx, vendorID, purchase.ID)
	assert.ErrorIs(t, err, ErrConflict)

	inventory, err := svc.VendorInventory(ctx, vendorID)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "plastic", inventory[0].WasteType)
	assert.Equal(t, 100.0, inventory[0].Quantity)
	assert.Equal(t, 250.0, inventory[0].Spent)
}

func TestVendorPurchaseService_RejectReleasesOffer(t *testing.T) {
	db, cleanup := setupServiceTest(t, "vendor_purchase_reject")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewVendorPurchaseService(db, testConfig(), NewLedgerService(db))

	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "glass")
	vendorID := registerAccount(t, accounts, models.RoleVendor, "v@example.com")

	offer, err := svc.CreateOffer(ctx, collectorID, CreateCollectorOfferInput{
		WasteType: "glass",
		Quantity:  models.Quantity{Value: 40},
	})
	require.NoError(t, err)

	purchase, err := svc.CreatePurchase(ctx, vendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		OfferID:      &offer.ID,
		WasteType:    "glass",
		Quantity:     40,
		PricePerUnit: 1,
	})
	require.NoError(t, err)

	rejected, err := svc.RespondToPurchase(ctx, collectorID, purchase.ID, false, "already sold locally")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCancelled, rejected.Status)
	require.NotNil(t, rejected.CollectorResponse)
	assert.Equal(t, "reject", rejected.CollectorResponse.Action)

	released, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectorOfferAvailable, released.Status)

	// A rejected purchase cannot be completed.
	_, err = svc.CompletePurchase(ctx, vendorID, purchase.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestVendorPurchaseService_CancelReleasesOffer(t *testing.T) {
	db, cleanup := setupServiceTest(t, "vendor_purchase_cancel")
	defer cleanup()
	ctx := context.Background()

	accounts := NewAccountService(db)
	svc := NewVendorPurchaseService(db, testConfig(), NewLedgerService(db))

	collectorID := registerAccount(t, accounts, models.RoleCollector, "c@example.com", "metal")
	vendorID := registerAccount(t, accounts, models.RoleVendor, "v@example.com")

	offer, err := svc.CreateOffer(ctx, collectorID, CreateCollectorOfferInput{
		WasteType: "metal",
		Quantity:  models.Quantity{Value: 10},
	})
	require.NoError(t, err)

	purchase, err := svc.CreatePurchase(ctx, vendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		OfferID:      &offer.ID,
		WasteType:    "metal",
		Quantity:     10,
		PricePerUnit: 5,
	})
	require.NoError(t, err)

	// Only the owning vendor can cancel.
	err = svc.CancelPurchase(ctx, collectorID, purchase.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.CancelPurchase(ctx, vendorID, purchase.ID))

	released, err := svc.FindOfferByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectorOfferAvailable, released.Status)

	err = svc.CancelPurchase(ctx, vendorID, purchase.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestVendorPurchaseService_DirectPurchaseWithoutOffer(t *testing.T) {
	db, cleanup := setupServiceTest(t, "vendor_purchase_direct")
	defer cleanup()
	ctx := context.Background()

	svc := NewVendorPurchaseService(db, testConfig(), NewLedgerService(db))
	vendorID := utils.NewSixID()
	collectorID := utils.NewSixID()

	purchase, err := svc.CreatePurchase(ctx, vendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		WasteType:    "paper",
		Quantity:     20,
		PricePerUnit: 0.5,
	})
	require.NoError(t, err)
	assert.Nil(t, purchase.OfferID)
	assert.Equal(t, 10.0, purchase.TotalAmount)

	_, err = svc.CreatePurchase(ctx, vendorID, CreatePurchaseInput{
		CollectorID:  collectorID,
		WasteType:    "paper",
		Quantity:     -1,
		PricePerUnit: 0.5,
	})
	assert.ErrorIs(t, err, ErrValidation)
}
