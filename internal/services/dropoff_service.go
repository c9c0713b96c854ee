package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

const transactionsCollection = "waste_transactions"

// VerifyDropoffInput carries a collector's scan of a user drop-off.
type VerifyDropoffInput struct {
	UserID     utils.SixID
	WasteType  string
	Quantity   float64
	RewardType models.RewardType
	CashAmount float64
	QRScanned  bool
	Notes      string
}

// IDropoffService records verified drop-offs and applies their rewards.
type IDropoffService interface {
	VerifyDropoff(ctx context.Context, collectorID utils.SixID, in VerifyDropoffInput) (*models.WasteTransaction, []models.Badge, error)
	ListTransactionsForUser(ctx context.Context, userID utils.SixID) ([]models.WasteTransaction, error)
	ListTransactionsForCollector(ctx context.Context, collectorID utils.SixID) ([]models.WasteTransaction, error)
}

type dropoffService struct {
	db       *mongo.Database
	accounts IAccountService
	badges   IBadgeService
	ledger   ILedgerService
}

// NewDropoffService creates a new DropoffService.
func NewDropoffService(db *mongo.Database, accounts IAccountService, badges IBadgeService, ledger ILedgerService) IDropoffService {
	return &dropoffService{db: db, accounts: accounts, badges: badges, ledger: ledger}
}

// VerifyDropoff creates the transaction record in verified state, credits the
// user (points or cash), evaluates badges and bumps the collector's counters.
// Returns any badges newly earned by this drop-off.
func (s *dropoffService) VerifyDropoff(ctx context.Context, collectorID utils.SixID, in VerifyDropoffInput) (*models.WasteTransaction, []models.Badge, error) {
	if in.Quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.WasteType == "" {
		return nil, nil, fmt.Errorf("%w: waste type is required", ErrValidation)
	}
	if in.RewardType == "" {
		in.RewardType = models.RewardTypePoints
	}

	collector, err := s.accounts.FindCollector(ctx, collectorID)
	if err != nil {
		return nil, nil, err
	}
	accepted := false
	normalized := NormalizeWasteType(in.WasteType)
	for _, t := range collector.AcceptedWasteTypes {
		if NormalizeWasteType(t) == normalized {
			accepted = true
			break
		}
	}
	if !accepted {
		return nil, nil, fmt.Errorf("%w: collector does not accept %s", ErrValidation, in.WasteType)
	}

	user, err := s.accounts.FindUser(ctx, in.UserID)
	if err != nil {
		return nil, nil, err
	}

	points := PointsForDropoff(in.WasteType, in.Quantity)

	now := time.Now().UTC()
	tx := &models.WasteTransaction{
		Base:         models.NewBase(),
		UserID:       in.UserID,
		CollectorID:  collectorID,
		WasteType:    in.WasteType,
		Quantity:     in.Quantity,
		PointsEarned: points,
		Status:       models.TransactionVerified,
		RewardType:   in.RewardType,
		CashAmount:   in.CashAmount,
		QRScanned:    in.QRScanned,
		Notes:        in.Notes,
		CreatedAt:    now,
	}
	if _, err := s.db.Collection(transactionsCollection).InsertOne(ctx, tx); err != nil {
		return nil, nil, fmt.Errorf("failed to insert drop-off transaction: %w", err)
	}

	ref := models.LedgerRef{Collection: transactionsCollection, ID: tx.ID}
	userInc := bson.M{
		"total_waste_disposed": in.Quantity,
		"total_transactions":   1,
	}
	switch in.RewardType {
	case models.RewardTypeCash:
		if err := s.ledger.Append(ctx, models.RoleUser, in.UserID, models.LedgerCash, in.CashAmount, "", ref, "drop-off cash reward"); err != nil {
			return nil, nil, err
		}
		userInc["cash_earned"] = in.CashAmount
	default:
		if err := s.ledger.Append(ctx, models.RoleUser, in.UserID, models.LedgerPoints, float64(points), "", ref, "drop-off points"); err != nil {
			return nil, nil, err
		}
		userInc["points"] = points
	}

	_, err = s.db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
		bson.M{"_id": in.UserID},
		bson.M{"$inc": userInc, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to credit user %s for drop-off: %w", in.UserID.String(), err)
	}

	// Badge check runs against the post-credit counters.
	user.TotalWasteDisposed += in.Quantity
	user.TotalTransactions++
	earned, err := s.badges.CheckEligibility(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	if len(earned) > 0 {
		badgeIDs := make([]utils.SixID, 0, len(earned))
		bonus := 0
		for _, b := range earned {
			badgeIDs = append(badgeIDs, b.ID)
			bonus += b.BonusPoints
		}
		if bonus > 0 {
			if err := s.ledger.Append(ctx, models.RoleUser, in.UserID, models.LedgerPoints, float64(bonus), "", ref, "badge bonus"); err != nil {
				return nil, nil, err
			}
		}
		_, err = s.db.Collection(models.RoleUser.Collection()).UpdateOne(ctx,
			bson.M{"_id": in.UserID},
			bson.M{
				"$addToSet": bson.M{"badges": bson.M{"$each": badgeIDs}},
				"$inc":      bson.M{"points": bonus},
				"$set":      bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to award badges to user %s: %w", in.UserID.String(), err)
		}
	}

	if err := s.ledger.Append(ctx, models.RoleCollector, collectorID, models.LedgerInventory, in.Quantity, normalized, ref, "drop-off received"); err != nil {
		return nil, nil, err
	}
	_, err = s.db.Collection(models.RoleCollector.Collection()).UpdateOne(ctx,
		bson.M{"_id": collectorID},
		bson.M{"$inc": bson.M{
			"inventory." + normalized: in.Quantity,
			"total_waste_collected":   in.Quantity,
			"total_transactions":      1,
		}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update collector %s for drop-off: %w", collectorID.String(), err)
	}

	return tx, earned, nil
}

func (s *dropoffService) ListTransactionsForUser(ctx context.Context, userID utils.SixID) ([]models.WasteTransaction, error) {
	return s.listTransactions(ctx, bson.M{"user_id": userID})
}

func (s *dropoffService) ListTransactionsForCollector(ctx context.Context, collectorID utils.SixID) ([]models.WasteTransaction, error) {
	return s.listTransactions(ctx, bson.M{"collector_id": collectorID})
}

func (s *dropoffService) listTransactions(ctx context.Context, filter bson.M) ([]models.WasteTransaction, error) {
	cursor, err := s.db.Collection(transactionsCollection).Find(ctx, filter, optionsFindSortLimit("created_at", -1, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var txs []models.WasteTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
