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

// ILedgerService appends balance mutations to the audit ledger and recomputes
// balances from it.
type ILedgerService interface {
	Append(ctx context.Context, role models.Role, accountID utils.SixID, kind models.LedgerKind, delta float64, wasteType string, ref models.LedgerRef, note string) error
	BalanceFromLedger(ctx context.Context, role models.Role, accountID utils.SixID, kind models.LedgerKind) (float64, error)
	EntriesForAccount(ctx context.Context, role models.Role, accountID utils.SixID, limit int) ([]models.LedgerEntry, error)
}

const ledgerCollection = "ledger_entries"

type ledgerService struct {
	db *mongo.Database
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(db *mongo.Database) ILedgerService {
	return &ledgerService{db: db}
}

// Append writes one immutable ledger entry. Entries are written before the
// counter mutation they mirror so a partial failure is visible in the audit
// trail rather than silently lost.
func (s *ledgerService) Append(ctx context.Context, role models.Role, accountID utils.SixID, kind models.LedgerKind, delta float64, wasteType string, ref models.LedgerRef, note string) error {
	entry := models.LedgerEntry{
		Base:      models.NewBase(),
		Role:      role,
		AccountID: accountID,
		Kind:      kind,
		Delta:     delta,
		WasteType: wasteType,
		Reference: ref,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Collection(ledgerCollection).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger entry for %s %s: %w", role, accountID.String(), err)
	}
	return nil
}

// BalanceFromLedger sums all deltas of one kind for an account.
func (s *ledgerService) BalanceFromLedger(ctx context.Context, role models.Role, accountID utils.SixID, kind models.LedgerKind) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"role": role, "account_id": accountID, "kind": kind}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$delta"}}}},
	}
	cursor, err := s.db.Collection(ledgerCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate ledger for %s %s: %w", role, accountID.String(), err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// EntriesForAccount returns the most recent ledger entries for an account.
func (s *ledgerService) EntriesForAccount(ctx context.Context, role models.Role, accountID utils.SixID, limit int) ([]models.LedgerEntry, error) {
	opts := optionsFindSortLimit("created_at", -1, limit)
	cursor, err := s.db.Collection(ledgerCollection).Find(ctx, bson.M{"role": role, "account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var entries []models.LedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
