package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/db"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

const (
	rewardsCollection     = "rewards"
	redemptionsCollection = "reward_redemptions"

	activeRewardsCacheKey = "rewards:active"
)

// GenerateRedemptionCode returns an 8-hex-character redemption code. Global
// uniqueness is enforced by the collection's unique index, with db.Try
// regenerating on a collision.
func GenerateRedemptionCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// uuid path only if the system randomness source fails
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(b)
}

// CreateRewardInput carries the fields for a new vendor reward.
type CreateRewardInput struct {
	Title          string
	Description    string
	PointsRequired int
	StockAvailable *int
	ValidFrom      time.Time
	ValidUntil     time.Time
}

// IRewardService manages vendor rewards and point redemptions.
type IRewardService interface {
	CreateReward(ctx context.Context, vendorID utils.SixID, in CreateRewardInput) (*models.Reward, error)
	ListActiveRewards(ctx context.Context) ([]models.Reward, error)
	ListRewardsByVendor(ctx context.Context, vendorID utils.SixID) ([]models.Reward, error)
	Redeem(ctx context.Context, userID, rewardID utils.SixID) (*models.RewardRedemption, error)
	VerifyRedemption(ctx context.Context, vendorID utils.SixID, code string) (*models.RewardRedemption, error)
	ListRedemptionsForUser(ctx context.Context, userID utils.SixID) ([]models.RewardRedemption, error)
}

type rewardService struct {
	db     *mongo.Database
	cfg    *config.Config
	rdb    *redis.Client
	ledger ILedgerService
}

// NewRewardService creates a new RewardService. rdb may be nil; caching is
// then skipped.
func NewRewardService(database *mongo.Database, cfg *config.Config, rdb *redis.Client, ledger ILedgerService) IRewardService {
	return &rewardService{db: database, cfg: cfg, rdb: rdb, ledger: ledger}
}

func (s *rewardService) CreateReward(ctx context.Context, vendorID utils.SixID, in CreateRewardInput) (*models.Reward, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: reward title is required", ErrValidation)
	}
	if in.PointsRequired <= 0 {
		return nil, fmt.Errorf("%w: points required must be positive", ErrValidation)
	}
	if in.StockAvailable != nil && *in.StockAvailable <= 0 {
		return nil, fmt.Errorf("%w: stock must be positive when finite", ErrValidation)
	}

	now := time.Now().UTC()
	if in.ValidFrom.IsZero() {
		in.ValidFrom = now
	}
	if in.ValidUntil.IsZero() || !in.ValidUntil.After(in.ValidFrom) {
		return nil, fmt.Errorf("%w: validity window must end after it starts", ErrValidation)
	}

	reward := &models.Reward{
		Base:           models.NewBase(),
		VendorID:       vendorID,
		Title:          in.Title,
		Description:    in.Description,
		PointsRequired: in.PointsRequired,
		StockAvailable: in.StockAvailable,
		ValidFrom:      in.ValidFrom,
		ValidUntil:     in.ValidUntil,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.Collection(rewardsCollection).InsertOne(ctx, reward); err != nil {
		return nil, fmt.Errorf("failed to insert reward for vendor %s: %w", vendorID.String(), err)
	}

	if _, err := s.db.Collection(models.RoleVendor.Collection()).UpdateOne(ctx,
		bson.M{"_id": vendorID},
		bson.M{"$inc": bson.M{"total_rewards": 1}, "$set": bson.M{"updated_at": now}},
	); err != nil {
		return nil, fmt.Errorf("failed to bump vendor %s reward counter: %w", vendorID.String(), err)
	}

	s.invalidateRewardCache(ctx)
	return reward, nil
}

// ListActiveRewards returns the rewards users can currently redeem, served
// from a short-lived Redis cache when possible.
func (s *rewardService) ListActiveRewards(ctx context.Context) ([]models.Reward, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, activeRewardsCacheKey).Result(); err == nil {
			var rewards []models.Reward
			if err := json.Unmarshal([]byte(cached), &rewards); err == nil {
				return rewards, nil
			}
		}
	}

	now := time.Now().UTC()
	filter := bson.M{
		"active":      true,
		"valid_from":  bson.M{"$lte": now},
		"valid_until": bson.M{"$gte": now},
		"$or": bson.A{
			bson.M{"stock_available": bson.M{"$exists": false}},
			bson.M{"stock_available": bson.M{"$gt": 0}},
		},
	}
	cursor, err := s.db.Collection(rewardsCollection).Find(ctx, filter, optionsFindSortLimit("points_required", 1, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list active rewards: %w", err)
	}
	defer cursor.Close(ctx)

	var rewards []models.Reward
	if err := cursor.All(ctx, &rewards); err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(rewards); err == nil {
			if err := s.rdb.Set(ctx, activeRewardsCacheKey, data, s.cfg.RewardListCacheTTL).Err(); err != nil {
				log.Printf("WARN: failed to cache active rewards: %v", err)
			}
		}
	}
	return rewards, nil
}

func (s *rewardService) ListRewardsByVendor(ctx context.Context, vendorID utils.SixID) ([]models.Reward, error) {
	cursor, err := s.db.Collection(rewardsCollection).Find(ctx,
		bson.M{"vendor_id": vendorID},
		optionsFindSortLimit("created_at", -1, 0),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var rewards []models.Reward
	if err := cursor.All(ctx, &rewards); err != nil {
		return nil, err
	}
	return rewards, nil
}

func (s *rewardService) invalidateRewardCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, activeRewardsCacheKey).Err(); err != nil {
		log.Printf("WARN: failed to invalidate reward cache: %v", err)
	}
}

// Redeem exchanges a user's points for a reward. The points decrement is a
// compare-and-swap on points >= cost so a concurrent redemption cannot drive
// the balance negative; finite stock is decremented the same way, with a
// compensating points refund if the last unit is gone.
func (s *rewardService) Redeem(ctx context.Context, userID, rewardID utils.SixID) (*models.RewardRedemption, error) {
	var reward models.Reward
	err := s.db.Collection(rewardsCollection).FindOne(ctx, bson.M{"_id": rewardID}).Decode(&reward)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: reward", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find reward %s: %w", rewardID.String(), err)
	}

	now := time.Now().UTC()
	if !reward.Active {
		return nil, fmt.Errorf("%w: reward is inactive", ErrConflict)
	}
	if now.Before(reward.ValidFrom) {
		return nil, fmt.Errorf("%w: reward is not yet valid", ErrConflict)
	}
	if now.After(reward.ValidUntil) {
		return nil, fmt.Errorf("%w: reward has expired", ErrConflict)
	}
	if reward.StockAvailable != nil && *reward.StockAvailable <= 0 {
		return nil, fmt.Errorf("%w: reward is out of stock", ErrConflict)
	}

	cost := reward.PointsRequired
	result, err := s.db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
		bson.M{"_id": userID, "points": bson.M{"$gte": cost}},
		bson.M{"$inc": bson.M{"points": -cost}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deduct points from user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		count, countErr := s.db.Collection(models.RoleUser.Collection()).CountDocuments(ctx, bson.M{"_id": userID})
		if countErr == nil && count == 0 {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: reward costs %d points", ErrInsufficientPoints, cost)
	}

	refundPoints := func() {
		if _, refundErr := s.db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$inc": bson.M{"points": cost}},
		); refundErr != nil {
			log.Printf("CRITICAL: failed to refund %d points to user %s after aborted redemption: %v", cost, userID.String(), refundErr)
		}
	}

	if reward.StockAvailable != nil {
		stockResult, stockErr := s.db.Collection(rewardsCollection).UpdateOne(ctx,
			bson.M{"_id": rewardID, "stock_available": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"stock_available": -1, "redeemed": 1}, "$set": bson.M{"updated_at": now}},
		)
		if stockErr != nil {
			refundPoints()
			return nil, fmt.Errorf("failed to decrement stock for reward %s: %w", rewardID.String(), stockErr)
		}
		if stockResult.MatchedCount == 0 {
			refundPoints()
			return nil, fmt.Errorf("%w: reward is out of stock", ErrConflict)
		}
	} else {
		if _, incErr := s.db.Collection(rewardsCollection).UpdateOne(ctx,
			bson.M{"_id": rewardID},
			bson.M{"$inc": bson.M{"redeemed": 1}, "$set": bson.M{"updated_at": now}},
		); incErr != nil {
			refundPoints()
			return nil, fmt.Errorf("failed to bump redeemed counter for reward %s: %w", rewardID.String(), incErr)
		}
	}

	var redemption *models.RewardRedemption
	insertOp := func() error {
		code := GenerateRedemptionCode()
		redemption = &models.RewardRedemption{
			Base:           models.NewBase(),
			UserID:         userID,
			RewardID:       rewardID,
			VendorID:       reward.VendorID,
			PointsUsed:     cost,
			RedemptionCode: code,
			QR: models.QRPayload{
				Code:     code,
				UserID:   userID,
				RewardID: rewardID,
				VendorID: reward.VendorID,
				Nonce:    uuid.NewString(),
			},
			Status:    models.RedemptionActive,
			ExpiresAt: reward.ValidUntil,
			CreatedAt: now,
		}
		_, insertErr := s.db.Collection(redemptionsCollection).InsertOne(ctx, redemption)
		return insertErr
	}
	if err := db.Try(insertOp); err != nil {
		refundPoints()
		return nil, fmt.Errorf("failed to insert redemption for user %s after retries: %w", userID.String(), err)
	}

	ref := models.LedgerRef{Collection: redemptionsCollection, ID: redemption.ID}
	if err := s.ledger.Append(ctx, models.RoleUser, userID, models.LedgerPoints, -float64(cost), "", ref, "reward redemption"); err != nil {
		return nil, err
	}

	if _, err := s.db.Collection(models.RoleVendor.Collection()).UpdateOne(ctx,
		bson.M{"_id": reward.VendorID},
		bson.M{"$inc": bson.M{"total_redemptions": 1}, "$set": bson.M{"updated_at": now}},
	); err != nil {
		return nil, fmt.Errorf("failed to bump vendor %s redemption counter: %w", reward.VendorID.String(), err)
	}

	s.invalidateRewardCache(ctx)
	return redemption, nil
}

// VerifyRedemption consumes a redemption code presented to its vendor.
// Expiry is checked lazily here; the background sweep only tidies records
// that were never presented.
func (s *rewardService) VerifyRedemption(ctx context.Context, vendorID utils.SixID, code string) (*models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	err := s.db.Collection(redemptionsCollection).FindOne(ctx, bson.M{"redemption_code": code}).Decode(&redemption)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: redemption code", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up redemption code: %w", err)
	}

	if redemption.VendorID != vendorID {
		return nil, fmt.Errorf("%w: redemption belongs to another vendor", ErrForbidden)
	}
	if redemption.Status == models.RedemptionUsed {
		return nil, fmt.Errorf("%w: redemption code already used", ErrConflict)
	}

	now := time.Now().UTC()
	if redemption.Status == models.RedemptionExpired || now.After(redemption.ExpiresAt) {
		if redemption.Status == models.RedemptionActive {
			if _, markErr := s.db.Collection(redemptionsCollection).UpdateOne(ctx,
				bson.M{"_id": redemption.ID, "status": models.RedemptionActive},
				bson.M{"$set": bson.M{"status": models.RedemptionExpired}},
			); markErr != nil {
				log.Printf("WARN: failed to lazily expire redemption %s: %v", redemption.ID.String(), markErr)
			}
		}
		return nil, fmt.Errorf("%w: redemption code has expired", ErrConflict)
	}

	var updated models.RewardRedemption
	err = s.db.Collection(redemptionsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": redemption.ID, "status": models.RedemptionActive},
		bson.M{"$set": bson.M{"status": models.RedemptionUsed, "used_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: redemption code already consumed", ErrConflict)
		}
		return nil, fmt.Errorf("failed to consume redemption %s: %w", redemption.ID.String(), err)
	}
	return &updated, nil
}

func (s *rewardService) ListRedemptionsForUser(ctx context.Context, userID utils.SixID) ([]models.RewardRedemption, error) {
	cursor, err := s.db.Collection(redemptionsCollection).Find(ctx,
		bson.M{"user_id": userID},
		optionsFindSortLimit("created_at", -1, 0),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var redemptions []models.RewardRedemption
	if err := cursor.All(ctx, &redemptions); err != nil {
		return nil, err
	}
	return redemptions, nil
}
