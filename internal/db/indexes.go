package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on. Safe to call
// on every startup; existing indexes are left untouched.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	// One unique email index per account collection.
	for _, coll := range []string{"users", "collectors", "vendors", "admins"} {
		if _, err := db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: unique,
		}); err != nil {
			return fmt.Errorf("failed to create email index on %s: %w", coll, err)
		}
	}

	// Redemption codes are globally unique; single-use consumption depends on it.
	if _, err := db.Collection("reward_redemptions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "redemption_code", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create redemption code index: %w", err)
	}

	// Geo index for radius queries over user offers.
	if _, err := db.Collection("user_waste_offers").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location.coordinates", Value: "2dsphere"}},
	}); err != nil {
		return fmt.Errorf("failed to create user offer geo index: %w", err)
	}

	// Browse paths filter by status + waste type.
	for _, coll := range []string{"user_waste_offers", "waste_offers"} {
		if _, err := db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "waste_type", Value: 1}},
		}); err != nil {
			return fmt.Errorf("failed to create status index on %s: %w", coll, err)
		}
	}

	// Request lookups by offer for the revert-to-available checks.
	if _, err := db.Collection("collector_purchase_requests").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_offer_id", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create purchase request index: %w", err)
	}

	// Ledger audit scans by account.
	if _, err := db.Collection("ledger_entries").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "role", Value: 1}, {Key: "account_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create ledger index: %w", err)
	}

	return nil
}
