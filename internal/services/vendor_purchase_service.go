package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

const (
	collectorOffersCollection = "waste_offers"
	purchasesCollection       = "waste_purchases"
)

// CreateCollectorOfferInput carries the fields for a new bulk waste offer.
type CreateCollectorOfferInput struct {
	WasteType     string
	Quantity      models.Quantity
	MinPricePerKg float64
	ExpiresAt     time.Time
	Location      models.OfferLocation
}

// CreatePurchaseInput carries the fields for a new vendor purchase. OfferID
// is optional; when set the purchase reserves that offer.
type CreatePurchaseInput struct {
	CollectorID  utils.SixID
	OfferID      *utils.SixID
	WasteType    string
	Quantity     float64
	PricePerUnit float64
	PickupDate   *time.Time
}

// CollectorOfferFilters narrows the vendor-facing browse query.
type CollectorOfferFilters struct {
	WasteType string
	MinPrice  *float64
	MaxPrice  *float64
	Limit     int
}

// InventoryLine is one waste type's total in a vendor's derived inventory.
type InventoryLine struct {
	WasteType string  `bson:"_id" json:"waste_type"`
	Quantity  float64 `bson:"quantity" json:"quantity"`
	Spent     float64 `bson:"spent" json:"spent"`
}

// IVendorPurchaseService is the collector-to-vendor half of the negotiation
// engine: collectors post bulk offers, vendors purchase against them (or
// directly), collectors respond, vendors complete or cancel.
type IVendorPurchaseService interface {
	CreateOffer(ctx context.Context, collectorID utils.SixID, in CreateCollectorOfferInput) (*models.WasteOffer, error)
	FindOfferByID(ctx context.Context, offerID utils.SixID) (*models.WasteOffer, error)
	BrowseOffers(ctx context.Context, filters CollectorOfferFilters) ([]models.WasteOffer, error)
	ListOffersByCollector(ctx context.Context, collectorID utils.SixID) ([]models.WasteOffer, error)
	CancelOffer(ctx context.Context, collectorID, offerID utils.SixID) error
	CreatePurchase(ctx context.Context, vendorID utils.SixID, in CreatePurchaseInput) (*models.WastePurchase, error)
	ListPurchasesByVendor(ctx context.Context, vendorID utils.SixID) ([]models.WastePurchase, error)
	ListPurchasesForCollector(ctx context.Context, collectorID utils.SixID) ([]models.WastePurchase, error)
	RespondToPurchase(ctx context.Context, collectorID, purchaseID utils.SixID, accept bool, message string) (*models.WastePurchase, error)
	CompletePurchase(ctx context.Context, vendorID, purchaseID utils.SixID) (*models.WastePurchase, error)
	CancelPurchase(ctx context.Context, vendorID, purchaseID utils.SixID) error
	VendorInventory(ctx context.Context, vendorID utils.SixID) ([]InventoryLine, error)
}

type vendorPurchaseService struct {
	db     *mongo.Database
	cfg    *config.Config
	ledger ILedgerService
}

// NewVendorPurchaseService creates a new VendorPurchaseService.
func NewVendorPurchaseService(db *mongo.Database, cfg *config.Config, ledger ILedgerService) IVendorPurchaseService {
	return &vendorPurchaseService{db: db, cfg: cfg, ledger: ledger}
}

// CreateOffer posts accumulated inventory for vendors to buy. Expiry
// defaults to the configured TTL when not given.
func (s *vendorPurchaseService) CreateOffer(ctx context.Context, collectorID utils.SixID, in CreateCollectorOfferInput) (*models.WasteOffer, error) {
	if in.WasteType == "" {
		return nil, fmt.Errorf("%w: waste type is required", ErrValidation)
	}
	if in.Quantity.Value <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.MinPricePerKg < 0 {
		return nil, fmt.Errorf("%w: minimum price cannot be negative", ErrValidation)
	}

	now := time.Now().UTC()
	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = now.Add(time.Duration(s.cfg.CollectorOfferTTLDays) * 24 * time.Hour)
	}
	if !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrValidation)
	}
	if in.Quantity.Unit == "" {
		in.Quantity.Unit = "kg"
	}

	offer := &models.WasteOffer{
		Base:          models.NewBase(),
		CollectorID:   collectorID,
		WasteType:     in.WasteType,
		Quantity:      in.Quantity,
		MinPricePerKg: in.MinPricePerKg,
		Status:        models.CollectorOfferAvailable,
		ExpiresAt:     in.ExpiresAt,
		Location:      in.Location,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.Collection(collectorOffersCollection).InsertOne(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to insert collector offer for %s: %w", collectorID.String(), err)
	}
	return offer, nil
}

func (s *vendorPurchaseService) FindOfferByID(ctx context.Context, offerID utils.SixID) (*models.WasteOffer, error) {
	var offer models.WasteOffer
	err := s.db.Collection(collectorOffersCollection).FindOne(ctx, bson.M{"_id": offerID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: offer", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find collector offer %s: %w", offerID.String(), err)
	}
	return &offer, nil
}

// BrowseOffers returns unexpired available offers for vendors.
func (s *vendorPurchaseService) BrowseOffers(ctx context.Context, filters CollectorOfferFilters) ([]models.WasteOffer, error) {
	filter := bson.M{
		"status":     models.CollectorOfferAvailable,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	if filters.WasteType != "" {
		filter["waste_type"] = filters.WasteType
	}
	if filters.MinPrice != nil || filters.MaxPrice != nil {
		price := bson.M{}
		if filters.MinPrice != nil {
			price["$gte"] = *filters.MinPrice
		}
		if filters.MaxPrice != nil {
			price["$lte"] = *filters.MaxPrice
		}
		filter["min_price_per_kg"] = price
	}

	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cursor, err := s.db.Collection(collectorOffersCollection).Find(ctx, filter, optionsFindSortLimit("created_at", -1, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to browse collector offers: %w", err)
	}
	defer cursor.Close(ctx)

	var offers []models.WasteOffer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode collector offers: %w", err)
	}
	return offers, nil
}

func (s *vendorPurchaseService) ListOffersByCollector(ctx context.Context, collectorID utils.SixID) ([]models.WasteOffer, error) {
	cursor, err := s.db.Collection(collectorOffersCollection).Find(ctx,
		bson.M{"collector_id": collectorID},
		optionsFindSortLimit("created_at", -1, 0),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var offers []models.WasteOffer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// CancelOffer cancels a non-sold offer.
func (s *vendorPurchaseService) CancelOffer(ctx context.Context, collectorID, offerID utils.SixID) error {
	result, err := s.db.Collection(collectorOffersCollection).UpdateOne(ctx,
		bson.M{
			"_id":          offerID,
			"collector_id": collectorID,
			"status":       bson.M{"$in": bson.A{models.CollectorOfferAvailable, models.CollectorOfferReserved}},
		},
		bson.M{"$set": bson.M{"status": models.CollectorOfferCancelled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to cancel collector offer %s: %w", offerID.String(), err)
	}
	if result.MatchedCount == 0 {
		offer, findErr := s.FindOfferByID(ctx, offerID)
		if findErr != nil {
			return findErr
		}
		if offer.CollectorID != collectorID {
			return fmt.Errorf("%w: offer belongs to another collector", ErrForbidden)
		}
		return fmt.Errorf("%w: offer is already %s", ErrConflict, offer.Status)
	}
	return nil
}

// CreatePurchase opens a vendor purchase. Buying against a posted offer
// reserves it with a compare-and-swap on available status, so two vendors
// cannot reserve the same offer. TotalAmount is fixed here and never
// re-derived.
func (s *vendorPurchaseService) CreatePurchase(ctx context.Context, vendorID utils.SixID, in CreatePurchaseInput) (*models.WastePurchase, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.PricePerUnit <= 0 {
		return nil, fmt.Errorf("%w: price per unit must be positive", ErrValidation)
	}
	if in.WasteType == "" {
		return nil, fmt.Errorf("%w: waste type is required", ErrValidation)
	}

	now := time.Now().UTC()
	if in.OfferID != nil {
		offer, err := s.FindOfferByID(ctx, *in.OfferID)
		if err != nil {
			return nil, err
		}
		if offer.CollectorID != in.CollectorID {
			return nil, fmt.Errorf("%w: offer belongs to another collector", ErrValidation)
		}
		result, err := s.db.Collection(collectorOffersCollection).UpdateOne(ctx,
			bson.M{"_id": *in.OfferID, "status": models.CollectorOfferAvailable, "expires_at": bson.M{"$gt": now}},
			bson.M{"$set": bson.M{"status": models.CollectorOfferReserved, "updated_at": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve offer %s: %w", in.OfferID.String(), err)
		}
		if result.MatchedCount == 0 {
			return nil, fmt.Errorf("%w: offer is not available", ErrConflict)
		}
	}

	purchase := &models.WastePurchase{
		Base:         models.NewBase(),
		VendorID:     vendorID,
		CollectorID:  in.CollectorID,
		OfferID:      in.OfferID,
		WasteType:    in.WasteType,
		Quantity:     in.Quantity,
		PricePerUnit: in.PricePerUnit,
		TotalAmount:  in.Quantity * in.PricePerUnit,
		Status:       models.PurchasePending,
		PickupDate:   in.PickupDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.db.Collection(purchasesCollection).InsertOne(ctx, purchase); err != nil {
		// The reservation sticks until the vendor cancels; insert failures
		// here are surfaced as internal errors.
		return nil, fmt.Errorf("failed to insert purchase for vendor %s: %w", vendorID.String(), err)
	}
	return purchase, nil
}

func (s *vendorPurchaseService) ListPurchasesByVendor(ctx context.Context, vendorID utils.SixID) ([]models.WastePurchase, error) {
	return s.listPurchases(ctx, bson.M{"vendor_id": vendorID})
}

func (s *vendorPurchaseService) ListPurchasesForCollector(ctx context.Context, collectorID utils.SixID) ([]models.WastePurchase, error) {
	return s.listPurchases(ctx, bson.M{"collector_id": collectorID})
}

func (s *vendorPurchaseService) listPurchases(ctx context.Context, filter bson.M) ([]models.WastePurchase, error) {
	cursor, err := s.db.Collection(purchasesCollection).Find(ctx, filter, optionsFindSortLimit("created_at", -1, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var purchases []models.WastePurchase
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *vendorPurchaseService) findPurchaseByID(ctx context.Context, purchaseID utils.SixID) (*models.WastePurchase, error) {
	var purchase models.WastePurchase
	err := s.db.Collection(purchasesCollection).FindOne(ctx, bson.M{"_id": purchaseID}).Decode(&purchase)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purchase", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find purchase %s: %w", purchaseID.String(), err)
	}
	return &purchase, nil
}

// RespondToPurchase records the collector's answer. Rejection cancels the
// purchase and releases any reserved offer.
func (s *vendorPurchaseService) RespondToPurchase(ctx context.Context, collectorID, purchaseID utils.SixID, accept bool, message string) (*models.WastePurchase, error) {
	purchase, err := s.findPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.CollectorID != collectorID {
		return nil, fmt.Errorf("%w: purchase targets another collector", ErrForbidden)
	}

	now := time.Now().UTC()
	action := "reject"
	if accept {
		action = "accept"
	}
	update := bson.M{"$set": bson.M{
		"collector_response": models.CollectorResponse{Action: action, Message: message, RespondedAt: &now},
		"updated_at":         now,
	}}
	if !accept {
		update["$set"].(bson.M)["status"] = models.PurchaseCancelled
	}

	var updated models.WastePurchase
	err = s.db.Collection(purchasesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": purchaseID, "status": models.PurchasePending, "collector_response": bson.M{"$exists": false}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purchase is already responded to or not pending", ErrConflict)
		}
		return nil, fmt.Errorf("failed to respond to purchase %s: %w", purchaseID.String(), err)
	}

	if !accept {
		if err := s.releaseOffer(ctx, purchase.OfferID); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// CompletePurchase settles a pending purchase: the offer sells, the
// collector's inventory shrinks and is paid, and the vendor's spend is
// recorded. Idempotent through the pending->completed compare-and-swap. The
// vendor's own inventory stays derived (see VendorInventory), nothing is
// persisted for it.
func (s *vendorPurchaseService) CompletePurchase(ctx context.Context, vendorID, purchaseID utils.SixID) (*models.WastePurchase, error) {
	purchase, err := s.findPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.VendorID != vendorID {
		return nil, fmt.Errorf("%w: purchase belongs to another vendor", ErrForbidden)
	}
	if purchase.CollectorResponse != nil && purchase.CollectorResponse.Action != "accept" {
		return nil, fmt.Errorf("%w: collector rejected this purchase", ErrConflict)
	}

	now := time.Now().UTC()
	var updated models.WastePurchase
	err = s.db.Collection(purchasesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": purchaseID, "status": models.PurchasePending},
		bson.M{"$set": bson.M{
			"status":       models.PurchaseCompleted,
			"completed_at": now,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purchase is %s, not pending", ErrConflict, purchase.Status)
		}
		return nil, fmt.Errorf("failed to complete purchase %s: %w", purchaseID.String(), err)
	}

	if purchase.OfferID != nil {
		_, err = s.db.Collection(collectorOffersCollection).UpdateOne(ctx,
			bson.M{"_id": *purchase.OfferID, "status": models.CollectorOfferReserved},
			bson.M{"$set": bson.M{"status": models.CollectorOfferSold, "updated_at": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark offer %s sold: %w", purchase.OfferID.String(), err)
		}
	}

	inventoryKey := NormalizeWasteType(purchase.WasteType)
	ref := models.LedgerRef{Collection: purchasesCollection, ID: purchaseID}

	if err := s.ledger.Append(ctx, models.RoleCollector, purchase.CollectorID, models.LedgerInventory, -purchase.Quantity, inventoryKey, ref, "sold to vendor"); err != nil {
		return nil, err
	}
	if err := s.ledger.Append(ctx, models.RoleCollector, purchase.CollectorID, models.LedgerCash, purchase.TotalAmount, "", ref, "vendor purchase payment"); err != nil {
		return nil, err
	}
	_, err = s.db.Collection(models.RoleCollector.Collection()).UpdateOne(ctx,
		bson.M{"_id": purchase.CollectorID},
		bson.M{"$inc": bson.M{"inventory." + inventoryKey: -purchase.Quantity}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update collector %s inventory for purchase %s: %w", purchase.CollectorID.String(), purchaseID.String(), err)
	}

	if err := s.ledger.Append(ctx, models.RoleVendor, vendorID, models.LedgerCash, -purchase.TotalAmount, "", ref, "bulk waste purchase"); err != nil {
		return nil, err
	}
	_, err = s.db.Collection(models.RoleVendor.Collection()).UpdateOne(ctx,
		bson.M{"_id": vendorID},
		bson.M{"$inc": bson.M{"total_purchases": 1}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update vendor %s counters for purchase %s: %w", vendorID.String(), purchaseID.String(), err)
	}

	return &updated, nil
}

// CancelPurchase withdraws a pending purchase and releases its reservation.
func (s *vendorPurchaseService) CancelPurchase(ctx context.Context, vendorID, purchaseID utils.SixID) error {
	purchase, err := s.findPurchaseByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	if purchase.VendorID != vendorID {
		return fmt.Errorf("%w: purchase belongs to another vendor", ErrForbidden)
	}

	result, err := s.db.Collection(purchasesCollection).UpdateOne(ctx,
		bson.M{"_id": purchaseID, "status": models.PurchasePending},
		bson.M{"$set": bson.M{"status": models.PurchaseCancelled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to cancel purchase %s: %w", purchaseID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: purchase is already %s", ErrConflict, purchase.Status)
	}

	return s.releaseOffer(ctx, purchase.OfferID)
}

// releaseOffer returns a reserved offer to the open market.
func (s *vendorPurchaseService) releaseOffer(ctx context.Context, offerID *utils.SixID) error {
	if offerID == nil {
		return nil
	}
	_, err := s.db.Collection(collectorOffersCollection).UpdateOne(ctx,
		bson.M{"_id": *offerID, "status": models.CollectorOfferReserved},
		bson.M{"$set": bson.M{"status": models.CollectorOfferAvailable, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to release offer %s: %w", offerID.String(), err)
	}
	return nil
}

// VendorInventory derives a vendor's stock by summing completed purchases
// grouped by waste type. Nothing is persisted for this aggregate.
func (s *vendorPurchaseService) VendorInventory(ctx context.Context, vendorID utils.SixID) ([]InventoryLine, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"vendor_id": vendorID, "status": models.PurchaseCompleted}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$waste_type",
			"quantity": bson.M{"$sum": "$quantity"},
			"spent":    bson.M{"$sum": "$total_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cursor, err := s.db.Collection(purchasesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate vendor %s inventory: %w", vendorID.String(), err)
	}
	defer cursor.Close(ctx)

	var lines []InventoryLine
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
