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
	userOffersCollection        = "user_waste_offers"
	collectorRequestsCollection = "collector_purchase_requests"
)

// CreateUserOfferInput carries the fields for a new user waste offer.
type CreateUserOfferInput struct {
	WasteType        string
	Quantity         models.Quantity
	ExpectedPrice    float64
	Location         models.OfferLocation
	AvailableFrom    time.Time
	AvailableUntil   time.Time
	PickupPreference string
}

// UserOfferFilters narrows the collector-facing browse query.
type UserOfferFilters struct {
	WasteType    string
	City         string
	MinPrice     *float64
	MaxPrice     *float64
	Near         *models.GeoJSON
	MaxDistKM    *int
	Limit        int
}

// IUserOfferService is the user-to-collector half of the negotiation engine:
// users post waste offers, collectors bid with purchase requests, the user
// accepts or rejects, and the collector completes the pickup with payment.
type IUserOfferService interface {
	CreateOffer(ctx context.Context, userID utils.SixID, in CreateUserOfferInput) (*models.UserWasteOffer, error)
	FindOfferByID(ctx context.Context, offerID utils.SixID) (*models.UserWasteOffer, error)
	BrowseOffers(ctx context.Context, filters UserOfferFilters) ([]models.UserWasteOffer, error)
	ListOffersByUser(ctx context.Context, userID utils.SixID) ([]models.UserWasteOffer, error)
	CancelOffer(ctx context.Context, userID, offerID utils.SixID) error
	CreateRequest(ctx context.Context, collectorID, offerID utils.SixID, offeredPrice float64, pickupTime *time.Time, message string) (*models.CollectorPurchaseRequest, error)
	ListRequestsForUser(ctx context.Context, userID utils.SixID) ([]models.CollectorPurchaseRequest, error)
	ListRequestsForCollector(ctx context.Context, collectorID utils.SixID) ([]models.CollectorPurchaseRequest, error)
	RespondToRequest(ctx context.Context, userID, requestID utils.SixID, accept bool, message string) (*models.CollectorPurchaseRequest, error)
	CancelRequest(ctx context.Context, collectorID, requestID utils.SixID) error
	CompleteRequest(ctx context.Context, collectorID, requestID utils.SixID, paymentOverride *float64) (*models.CollectorPurchaseRequest, error)
}

type userOfferService struct {
	db     *mongo.Database
	cfg    *config.Config
	ledger ILedgerService
}

// NewUserOfferService creates a new UserOfferService.
func NewUserOfferService(db *mongo.Database, cfg *config.Config, ledger ILedgerService) IUserOfferService {
	return &userOfferService{db: db, cfg: cfg, ledger: ledger}
}

// CreateOffer posts a new offer in the available state.
func (s *userOfferService) CreateOffer(ctx context.Context, userID utils.SixID, in CreateUserOfferInput) (*models.UserWasteOffer, error) {
	if in.WasteType == "" {
		return nil, fmt.Errorf("%w: waste type is required", ErrValidation)
	}
	if in.Quantity.Value <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.ExpectedPrice < 0 {
		return nil, fmt.Errorf("%w: expected price cannot be negative", ErrValidation)
	}

	now := time.Now().UTC()
	if in.AvailableFrom.IsZero() {
		in.AvailableFrom = now
	}
	if in.AvailableUntil.IsZero() {
		in.AvailableUntil = in.AvailableFrom.Add(models.DefaultCollectorOfferTTL)
	}
	if !in.AvailableUntil.After(in.AvailableFrom) {
		return nil, fmt.Errorf("%w: availability window must end after it starts", ErrValidation)
	}
	if in.Quantity.Unit == "" {
		in.Quantity.Unit = "kg"
	}

	offer := &models.UserWasteOffer{
		Base:             models.NewBase(),
		UserID:           userID,
		WasteType:        in.WasteType,
		Quantity:         in.Quantity,
		ExpectedPrice:    in.ExpectedPrice,
		Location:         in.Location,
		Status:           models.UserOfferAvailable,
		AvailableFrom:    in.AvailableFrom,
		AvailableUntil:   in.AvailableUntil,
		PickupPreference: in.PickupPreference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.db.Collection(userOffersCollection).InsertOne(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to insert user offer for %s: %w", userID.String(), err)
	}
	return offer, nil
}

func (s *userOfferService) FindOfferByID(ctx context.Context, offerID utils.SixID) (*models.UserWasteOffer, error) {
	var offer models.UserWasteOffer
	err := s.db.Collection(userOffersCollection).FindOne(ctx, bson.M{"_id": offerID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: offer", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find offer %s: %w", offerID.String(), err)
	}
	return &offer, nil
}

// BrowseOffers returns offers collectors can currently request: available
// status and inside the availability window.
func (s *userOfferService) BrowseOffers(ctx context.Context, filters UserOfferFilters) ([]models.UserWasteOffer, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"status":          models.UserOfferAvailable,
		"available_from":  bson.M{"$lte": now},
		"available_until": bson.M{"$gte": now},
	}
	if filters.WasteType != "" {
		filter["waste_type"] = filters.WasteType
	}
	if filters.City != "" {
		filter["location.city"] = filters.City
	}
	if filters.MinPrice != nil || filters.MaxPrice != nil {
		price := bson.M{}
		if filters.MinPrice != nil {
			price["$gte"] = *filters.MinPrice
		}
		if filters.MaxPrice != nil {
			price["$lte"] = *filters.MaxPrice
		}
		filter["expected_price"] = price
	}
	if filters.Near != nil && filters.MaxDistKM != nil && *filters.MaxDistKM > 0 {
		filter["location.coordinates"] = bson.M{
			"$nearSphere": bson.M{
				"$geometry":    bson.M{"type": "Point", "coordinates": filters.Near.Coordinates},
				"$maxDistance": float64(*filters.MaxDistKM * 1000),
			},
		}
	}

	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetLimit(int64(limit))
	if filters.Near == nil {
		// $nearSphere implies distance ordering; otherwise newest first.
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := s.db.Collection(userOffersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to browse user offers: %w", err)
	}
	defer cursor.Close(ctx)

	var offers []models.UserWasteOffer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode user offers: %w", err)
	}
	return offers, nil
}

func (s *userOfferService) ListOffersByUser(ctx context.Context, userID utils.SixID) ([]models.UserWasteOffer, error) {
	cursor, err := s.db.Collection(userOffersCollection).Find(ctx,
		bson.M{"user_id": userID},
		optionsFindSortLimit("created_at", -1, 0),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var offers []models.UserWasteOffer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// CancelOffer cancels a non-terminal offer and rejects any still-pending
// requests against it.
func (s *userOfferService) CancelOffer(ctx context.Context, userID, offerID utils.SixID) error {
	now := time.Now().UTC()

	// An accepted request means a pickup is underway; the offer can no longer
	// be withdrawn unilaterally.
	accepted, err := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
		"user_offer_id": offerID,
		"status":        models.RequestAccepted,
	})
	if err != nil {
		return fmt.Errorf("failed to check accepted requests for offer %s: %w", offerID.String(), err)
	}
	if accepted > 0 {
		return fmt.Errorf("%w: a request for this offer was already accepted", ErrConflict)
	}

	result, err := s.db.Collection(userOffersCollection).UpdateOne(ctx,
		bson.M{
			"_id":     offerID,
			"user_id": userID,
			"status":  bson.M{"$in": bson.A{models.UserOfferAvailable, models.UserOfferPending}},
		},
		bson.M{"$set": bson.M{"status": models.UserOfferCancelled, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to cancel offer %s: %w", offerID.String(), err)
	}
	if result.MatchedCount == 0 {
		offer, findErr := s.FindOfferByID(ctx, offerID)
		if findErr != nil {
			return findErr
		}
		if offer.UserID != userID {
			return fmt.Errorf("%w: offer belongs to another user", ErrForbidden)
		}
		return fmt.Errorf("%w: offer is already %s", ErrConflict, offer.Status)
	}

	// Pending bids die with the offer.
	_, err = s.db.Collection(collectorRequestsCollection).UpdateMany(ctx,
		bson.M{"user_offer_id": offerID, "status": models.RequestPending},
		bson.M{"$set": bson.M{
			"status":       models.RequestRejected,
			"message":      "offer cancelled by the user",
			"responded_at": now,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to reject pending requests for cancelled offer %s: %w", offerID.String(), err)
	}
	return nil
}

// CreateRequest places a collector's bid against a user offer. Multiple
// collectors may hold pending requests at once; the first bid flips the offer
// out of `available` and acceptance picks the single winner.
func (s *userOfferService) CreateRequest(ctx context.Context, collectorID, offerID utils.SixID, offeredPrice float64, pickupTime *time.Time, message string) (*models.CollectorPurchaseRequest, error) {
	if offeredPrice <= 0 {
		return nil, fmt.Errorf("%w: offered price must be positive", ErrValidation)
	}

	offer, err := s.FindOfferByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.UserOfferAvailable && offer.Status != models.UserOfferPending {
		return nil, fmt.Errorf("%w: offer is %s", ErrConflict, offer.Status)
	}

	// Bids stay open only until the user picks a winner.
	accepted, err := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
		"user_offer_id": offerID,
		"status":        models.RequestAccepted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check accepted requests for offer %s: %w", offerID.String(), err)
	}
	if accepted > 0 {
		return nil, fmt.Errorf("%w: a request for this offer was already accepted", ErrConflict)
	}

	count, err := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
		"user_offer_id": offerID,
		"collector_id":  collectorID,
		"status":        models.RequestPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing requests for offer %s: %w", offerID.String(), err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: a pending request for this offer already exists", ErrConflict)
	}

	now := time.Now().UTC()
	request := &models.CollectorPurchaseRequest{
		Base:               models.NewBase(),
		UserOfferID:        offerID,
		CollectorID:        collectorID,
		UserID:             offer.UserID,
		OfferedPrice:       offeredPrice,
		ProposedPrice:      offeredPrice,
		Message:            message,
		ProposedPickupTime: pickupTime,
		Status:             models.RequestPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.db.Collection(collectorRequestsCollection).InsertOne(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to insert purchase request for offer %s: %w", offerID.String(), err)
	}

	// First bid moves the offer off the open market. A lost CAS here just
	// means another collector got there first, which is fine.
	_, err = s.db.Collection(userOffersCollection).UpdateOne(ctx,
		bson.M{"_id": offerID, "status": models.UserOfferAvailable},
		bson.M{"$set": bson.M{"status": models.UserOfferPending, "updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark offer %s pending: %w", offerID.String(), err)
	}

	return request, nil
}

func (s *userOfferService) ListRequestsForUser(ctx context.Context, userID utils.SixID) ([]models.CollectorPurchaseRequest, error) {
	return s.listRequests(ctx, bson.M{"user_id": userID})
}

func (s *userOfferService) ListRequestsForCollector(ctx context.Context, collectorID utils.SixID) ([]models.CollectorPurchaseRequest, error) {
	return s.listRequests(ctx, bson.M{"collector_id": collectorID})
}

func (s *userOfferService) listRequests(ctx context.Context, filter bson.M) ([]models.CollectorPurchaseRequest, error) {
	cursor, err := s.db.Collection(collectorRequestsCollection).Find(ctx, filter, optionsFindSortLimit("created_at", -1, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var requests []models.CollectorPurchaseRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *userOfferService) findRequestByID(ctx context.Context, requestID utils.SixID) (*models.CollectorPurchaseRequest, error) {
	var request models.CollectorPurchaseRequest
	err := s.db.Collection(collectorRequestsCollection).FindOne(ctx, bson.M{"_id": requestID}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purchase request", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find purchase request %s: %w", requestID.String(), err)
	}
	return &request, nil
}

// RespondToRequest lets the offer owner accept or reject a pending bid.
// Acceptance is a compare-and-swap on pending status; the loser of a race
// gets ErrConflict. Accepting auto-rejects every other pending bid so the
// acceptance winner is unambiguous.
func (s *userOfferService) RespondToRequest(ctx context.Context, userID, requestID utils.SixID, accept bool, message string) (*models.CollectorPurchaseRequest, error) {
	request, err := s.findRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != userID {
		return nil, fmt.Errorf("%w: request targets another user's offer", ErrForbidden)
	}

	now := time.Now().UTC()
	newStatus := models.RequestRejected
	if accept {
		// One winner per offer: a bid that slipped in between acceptance and
		// completion must not be acceptable too.
		accepted, countErr := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
			"user_offer_id": request.UserOfferID,
			"_id":           bson.M{"$ne": requestID},
			"status":        bson.M{"$in": bson.A{models.RequestAccepted, models.RequestCompleted}},
		})
		if countErr != nil {
			return nil, fmt.Errorf("failed to check accepted requests for offer %s: %w", request.UserOfferID.String(), countErr)
		}
		if accepted > 0 {
			return nil, fmt.Errorf("%w: another request for this offer was already accepted", ErrConflict)
		}
		newStatus = models.RequestAccepted
	}

	var updated models.CollectorPurchaseRequest
	err = s.db.Collection(collectorRequestsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": requestID, "status": models.RequestPending},
		bson.M{"$set": bson.M{
			"status":       newStatus,
			"message":      message,
			"responded_at": now,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: request is already %s", ErrConflict, request.Status)
		}
		return nil, fmt.Errorf("failed to respond to request %s: %w", requestID.String(), err)
	}

	if accept {
		// Single acceptance winner: competing pending bids lose now, not at
		// completion time.
		_, err = s.db.Collection(collectorRequestsCollection).UpdateMany(ctx,
			bson.M{
				"user_offer_id": request.UserOfferID,
				"_id":           bson.M{"$ne": requestID},
				"status":        models.RequestPending,
			},
			bson.M{"$set": bson.M{
				"status":       models.RequestRejected,
				"message":      "another request was accepted",
				"responded_at": now,
				"updated_at":   now,
			}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reject competing requests for offer %s: %w", request.UserOfferID.String(), err)
		}
	} else {
		if err := s.revertOfferIfClear(ctx, request.UserOfferID); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// CancelRequest withdraws a collector's own pending bid.
func (s *userOfferService) CancelRequest(ctx context.Context, collectorID, requestID utils.SixID) error {
	request, err := s.findRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.CollectorID != collectorID {
		return fmt.Errorf("%w: request belongs to another collector", ErrForbidden)
	}

	now := time.Now().UTC()
	result, err := s.db.Collection(collectorRequestsCollection).UpdateOne(ctx,
		bson.M{"_id": requestID, "status": models.RequestPending},
		bson.M{"$set": bson.M{"status": models.RequestCancelled, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to cancel request %s: %w", requestID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: request is already %s", ErrConflict, request.Status)
	}

	return s.revertOfferIfClear(ctx, request.UserOfferID)
}

// revertOfferIfClear flips an offer back to available when no pending or
// accepted requests remain against it.
func (s *userOfferService) revertOfferIfClear(ctx context.Context, offerID utils.SixID) error {
	count, err := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
		"user_offer_id": offerID,
		"status":        bson.M{"$in": bson.A{models.RequestPending, models.RequestAccepted}},
	})
	if err != nil {
		return fmt.Errorf("failed to count open requests for offer %s: %w", offerID.String(), err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.db.Collection(userOffersCollection).UpdateOne(ctx,
		bson.M{"_id": offerID, "status": models.UserOfferPending},
		bson.M{"$set": bson.M{"status": models.UserOfferAvailable, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to revert offer %s to available: %w", offerID.String(), err)
	}
	return nil
}

// resolveFinalPayment picks the completion payment: explicit override, else
// the negotiated proposed price, else the original offered price.
func resolveFinalPayment(override *float64, proposedPrice, offeredPrice float64) float64 {
	if override != nil {
		return *override
	}
	if proposedPrice > 0 {
		return proposedPrice
	}
	return offeredPrice
}

// CompleteRequest settles an accepted pickup: the request completes, the
// offer sells, the user is paid and awarded points, and the collector's
// inventory grows. The status compare-and-swap runs first so a repeated call
// cannot double-award; every balance mutation is mirrored in the ledger.
func (s *userOfferService) CompleteRequest(ctx context.Context, collectorID, requestID utils.SixID, paymentOverride *float64) (*models.CollectorPurchaseRequest, error) {
	request, err := s.findRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.CollectorID != collectorID {
		return nil, fmt.Errorf("%w: request belongs to another collector", ErrForbidden)
	}

	offer, err := s.FindOfferByID(ctx, request.UserOfferID)
	if err != nil {
		return nil, err
	}

	payment := resolveFinalPayment(paymentOverride, request.ProposedPrice, request.OfferedPrice)
	if payment <= 0 {
		return nil, fmt.Errorf("%w: final payment must be positive", ErrValidation)
	}

	now := time.Now().UTC()
	var updated models.CollectorPurchaseRequest
	err = s.db.Collection(collectorRequestsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": requestID, "status": models.RequestAccepted},
		bson.M{"$set": bson.M{
			"status":        models.RequestCompleted,
			"final_payment": payment,
			"completed_at":  now,
			"updated_at":    now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: request is %s, not accepted", ErrConflict, request.Status)
		}
		return nil, fmt.Errorf("failed to complete request %s: %w", requestID.String(), err)
	}

	// The pending-to-sold flip is the payout gate: an offer that is already sold
	// or cancelled must not pay out again, so a missed match aborts the
	// completion and puts the request back.
	result, err := s.db.Collection(userOffersCollection).UpdateOne(ctx,
		bson.M{"_id": offer.ID, "status": models.UserOfferPending},
		bson.M{"$set": bson.M{"status": models.UserOfferSold, "updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark offer %s sold: %w", offer.ID.String(), err)
	}
	if result.MatchedCount == 0 {
		if _, revertErr := s.db.Collection(collectorRequestsCollection).UpdateOne(ctx,
			bson.M{"_id": requestID, "status": models.RequestCompleted},
			bson.M{"$set": bson.M{"status": models.RequestAccepted, "updated_at": now},
				"$unset": bson.M{"final_payment": "", "completed_at": ""}},
		); revertErr != nil {
			return nil, fmt.Errorf("failed to revert request %s after offer conflict: %w", requestID.String(), revertErr)
		}
		current, findErr := s.FindOfferByID(ctx, offer.ID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("%w: offer is %s", ErrConflict, current.Status)
	}

	quantity := offer.Quantity.Value
	points := int(float64(s.cfg.PointsPerKgSold) * quantity)
	ref := models.LedgerRef{Collection: collectorRequestsCollection, ID: requestID}

	if err := s.ledger.Append(ctx, models.RoleUser, offer.UserID, models.LedgerCash, payment, "", ref, "waste sale payment"); err != nil {
		return nil, err
	}
	if err := s.ledger.Append(ctx, models.RoleUser, offer.UserID, models.LedgerPoints, float64(points), "", ref, "waste sale points"); err != nil {
		return nil, err
	}
	_, err = s.db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
		bson.M{"_id": offer.UserID},
		bson.M{"$inc": bson.M{
			"cash_earned":          payment,
			"points":               points,
			"total_waste_disposed": quantity,
			"total_transactions":   1,
		}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit user %s for request %s: %w", offer.UserID.String(), requestID.String(), err)
	}

	inventoryKey := NormalizeWasteType(offer.WasteType)
	if err := s.ledger.Append(ctx, models.RoleCollector, collectorID, models.LedgerInventory, quantity, inventoryKey, ref, "pickup completed"); err != nil {
		return nil, err
	}
	_, err = s.db.Collection(models.RoleCollector.Collection()).UpdateOne(ctx,
		bson.M{"_id": collectorID},
		bson.M{"$inc": bson.M{
			"inventory." + inventoryKey: quantity,
			"total_waste_collected":     quantity,
			"total_transactions":        1,
		}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update collector %s inventory for request %s: %w", collectorID.String(), requestID.String(), err)
	}

	return &updated, nil
}
