package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

const badgesCollection = "badges"

// IBadgeService manages achievement badges and evaluates eligibility.
type IBadgeService interface {
	CreateBadge(ctx context.Context, badge models.Badge) (*models.Badge, error)
	ListBadges(ctx context.Context, activeOnly bool) ([]models.Badge, error)
	DeactivateBadge(ctx context.Context, badgeID utils.SixID) error
	// CheckEligibility returns the active badges a user newly qualifies for,
	// excluding any already held.
	CheckEligibility(ctx context.Context, user *models.User) ([]models.Badge, error)
}

type badgeService struct {
	db *mongo.Database
}

// NewBadgeService creates a new BadgeService.
func NewBadgeService(db *mongo.Database) IBadgeService {
	return &badgeService{db: db}
}

func (s *badgeService) CreateBadge(ctx context.Context, badge models.Badge) (*models.Badge, error) {
	if badge.Name == "" {
		return nil, fmt.Errorf("%w: badge name is required", ErrValidation)
	}
	switch badge.Criteria.Type {
	case models.CriteriaWasteQuantity, models.CriteriaTransactionsCount:
	default:
		return nil, fmt.Errorf("%w: unknown badge criteria type %q", ErrValidation, badge.Criteria.Type)
	}
	if badge.Criteria.Threshold <= 0 {
		return nil, fmt.Errorf("%w: badge threshold must be positive", ErrValidation)
	}

	badge.GenIDIfEmpty()
	badge.Active = true
	badge.CreatedAt = time.Now().UTC()
	if _, err := s.db.Collection(badgesCollection).InsertOne(ctx, badge); err != nil {
		return nil, fmt.Errorf("failed to insert badge %q: %w", badge.Name, err)
	}
	return &badge, nil
}

func (s *badgeService) ListBadges(ctx context.Context, activeOnly bool) ([]models.Badge, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := s.db.Collection(badgesCollection).Find(ctx, filter, optionsFindSortLimit("created_at", 1, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var badges []models.Badge
	if err := cursor.All(ctx, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func (s *badgeService) DeactivateBadge(ctx context.Context, badgeID utils.SixID) error {
	result, err := s.db.Collection(badgesCollection).UpdateOne(ctx,
		bson.M{"_id": badgeID, "active": true},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate badge %s: %w", badgeID.String(), err)
	}
	if result.MatchedCount == 0 {
		var badge models.Badge
		checkErr := s.db.Collection(badgesCollection).FindOne(ctx, bson.M{"_id": badgeID}).Decode(&badge)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: badge", ErrNotFound)
		}
		return fmt.Errorf("%w: badge is already inactive", ErrConflict)
	}
	return nil
}

// CheckEligibility evaluates every active badge the user does not yet hold
// against the matching counter. thresholds use >= so a counter landing
// exactly on the threshold earns the badge.
func (s *badgeService) CheckEligibility(ctx context.Context, user *models.User) ([]models.Badge, error) {
	badges, err := s.ListBadges(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges for eligibility check: %w", err)
	}

	held := make(map[utils.SixID]bool, len(user.Badges))
	for _, id := range user.Badges {
		held[id] = true
	}

	var earned []models.Badge
	for _, badge := range badges {
		if held[badge.ID] {
			continue
		}
		var qualifies bool
		switch badge.Criteria.Type {
		case models.CriteriaWasteQuantity:
			qualifies = user.TotalWasteDisposed >= badge.Criteria.Threshold
		case models.CriteriaTransactionsCount:
			qualifies = float64(user.TotalTransactions) >= badge.Criteria.Threshold
		}
		if qualifies {
			earned = append(earned, badge)
		}
	}
	return earned, nil
}
