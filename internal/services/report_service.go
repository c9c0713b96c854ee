package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// WasteBreakdownLine is one waste type's aggregated contribution.
type WasteBreakdownLine struct {
	WasteType string  `bson:"_id" json:"waste_type"`
	Quantity  float64 `bson:"quantity" json:"quantity"`
	Points    int     `bson:"points" json:"points,omitempty"`
}

// UserDashboard is the summary a user sees on their home screen.
type UserDashboard struct {
	Points             int                  `json:"points"`
	CashEarned         float64              `json:"cash_earned"`
	TotalWasteDisposed float64              `json:"total_waste_disposed"`
	TotalTransactions  int                  `json:"total_transactions"`
	BadgeCount         int                  `json:"badge_count"`
	ActiveRedemptions  int64                `json:"active_redemptions"`
	WasteBreakdown     []WasteBreakdownLine `json:"waste_breakdown"`
}

// CollectorDashboard summarises a collection point's activity.
type CollectorDashboard struct {
	TotalWasteCollected float64              `json:"total_waste_collected"`
	TotalTransactions   int                  `json:"total_transactions"`
	Inventory           map[string]float64   `json:"inventory"`
	PendingRequests     int64                `json:"pending_requests"`
	OpenVendorPurchases int64                `json:"open_vendor_purchases"`
	ActiveOffers        int64                `json:"active_offers"`
	VerifiedDropoffs    []WasteBreakdownLine `json:"verified_dropoffs"`
}

// VendorDashboard summarises a vendor's rewards and purchases.
type VendorDashboard struct {
	TotalRewards     int             `json:"total_rewards"`
	TotalRedemptions int             `json:"total_redemptions"`
	TotalPurchases   int             `json:"total_purchases"`
	ActiveRewards    int64           `json:"active_rewards"`
	PointsRedeemed   int             `json:"points_redeemed"`
	PendingPurchases int64           `json:"pending_purchases"`
	Inventory        []InventoryLine `json:"inventory"`
}

// AdminOverview aggregates platform-wide activity for the back office.
type AdminOverview struct {
	TotalUsers         int64                `json:"total_users"`
	TotalCollectors    int64                `json:"total_collectors"`
	TotalVendors       int64                `json:"total_vendors"`
	TotalWasteDisposed float64              `json:"total_waste_disposed"`
	TotalPointsIssued  int                  `json:"total_points_issued"`
	TotalTransactions  int64                `json:"total_transactions"`
	WasteBreakdown     []WasteBreakdownLine `json:"waste_breakdown"`
}

// IReportService produces per-role dashboards from the transactional
// collections. All figures are read-only aggregations.
type IReportService interface {
	UserDashboard(ctx context.Context, userID utils.SixID) (*UserDashboard, error)
	CollectorDashboard(ctx context.Context, collectorID utils.SixID) (*CollectorDashboard, error)
	VendorDashboard(ctx context.Context, vendorID utils.SixID) (*VendorDashboard, error)
	AdminOverview(ctx context.Context) (*AdminOverview, error)
}

type reportService struct {
	db       *mongo.Database
	accounts IAccountService
	vendors  IVendorPurchaseService
}

// NewReportService creates a new ReportService.
func NewReportService(db *mongo.Database, accounts IAccountService, vendors IVendorPurchaseService) IReportService {
	return &reportService{db: db, accounts: accounts, vendors: vendors}
}

func (s *reportService) wasteBreakdown(ctx context.Context, match bson.M) ([]WasteBreakdownLine, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$waste_type",
			"quantity": bson.M{"$sum": "$quantity"},
			"points":   bson.M{"$sum": "$points_earned"},
		}}},
		{{Key: "$sort", Value: bson.M{"quantity": -1}}},
	}
	cursor, err := s.db.Collection(transactionsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate waste breakdown: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []WasteBreakdownLine
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *reportService) UserDashboard(ctx context.Context, userID utils.SixID) (*UserDashboard, error) {
	user, err := s.accounts.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.wasteBreakdown(ctx, bson.M{
		"user_id": userID,
		"status":  models.TransactionVerified,
	})
	if err != nil {
		return nil, err
	}

	activeRedemptions, err := s.db.Collection(redemptionsCollection).CountDocuments(ctx, bson.M{
		"user_id": userID,
		"status":  models.RedemptionActive,
	})
	if err != nil {
		return nil, err
	}

	return &UserDashboard{
		Points:             user.Points,
		CashEarned:         user.CashEarned,
		TotalWasteDisposed: user.TotalWasteDisposed,
		TotalTransactions:  user.TotalTransactions,
		BadgeCount:         len(user.Badges),
		ActiveRedemptions:  activeRedemptions,
		WasteBreakdown:     breakdown,
	}, nil
}

func (s *reportService) CollectorDashboard(ctx context.Context, collectorID utils.SixID) (*CollectorDashboard, error) {
	collector, err := s.accounts.FindCollector(ctx, collectorID)
	if err != nil {
		return nil, err
	}

	pendingRequests, err := s.db.Collection(collectorRequestsCollection).CountDocuments(ctx, bson.M{
		"collector_id": collectorID,
		"status":       models.RequestPending,
	})
	if err != nil {
		return nil, err
	}

	openPurchases, err := s.db.Collection(purchasesCollection).CountDocuments(ctx, bson.M{
		"collector_id": collectorID,
		"status":       models.PurchasePending,
	})
	if err != nil {
		return nil, err
	}

	activeOffers, err := s.db.Collection(collectorOffersCollection).CountDocuments(ctx, bson.M{
		"collector_id": collectorID,
		"status":       bson.M{"$in": bson.A{models.CollectorOfferAvailable, models.CollectorOfferReserved}},
	})
	if err != nil {
		return nil, err
	}

	dropoffs, err := s.wasteBreakdown(ctx, bson.M{
		"collector_id": collectorID,
		"status":       models.TransactionVerified,
	})
	if err != nil {
		return nil, err
	}

	inventory := collector.Inventory
	if inventory == nil {
		inventory = map[string]float64{}
	}

	return &CollectorDashboard{
		TotalWasteCollected: collector.TotalWasteCollected,
		TotalTransactions:   collector.TotalTransactions,
		Inventory:           inventory,
		PendingRequests:     pendingRequests,
		OpenVendorPurchases: openPurchases,
		ActiveOffers:        activeOffers,
		VerifiedDropoffs:    dropoffs,
	}, nil
}

func (s *reportService) VendorDashboard(ctx context.Context, vendorID utils.SixID) (*VendorDashboard, error) {
	vendor, err := s.accounts.FindVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	activeRewards, err := s.db.Collection(rewardsCollection).CountDocuments(ctx, bson.M{
		"vendor_id": vendorID,
		"active":    true,
	})
	if err != nil {
		return nil, err
	}

	pointsRedeemed, err := s.sumPointsRedeemed(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	pendingPurchases, err := s.db.Collection(purchasesCollection).CountDocuments(ctx, bson.M{
		"vendor_id": vendorID,
		"status":    models.PurchasePending,
	})
	if err != nil {
		return nil, err
	}

	inventory, err := s.vendors.VendorInventory(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	return &VendorDashboard{
		TotalRewards:     vendor.TotalRewards,
		TotalRedemptions: vendor.TotalRedemptions,
		TotalPurchases:   vendor.TotalPurchases,
		ActiveRewards:    activeRewards,
		PointsRedeemed:   pointsRedeemed,
		PendingPurchases: pendingPurchases,
		Inventory:        inventory,
	}, nil
}

func (s *reportService) sumPointsRedeemed(ctx context.Context, vendorID utils.SixID) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"vendor_id": vendorID,
			"status":    bson.M{"$in": bson.A{models.RedemptionActive, models.RedemptionUsed}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$points_used"}}}},
	}
	cursor, err := s.db.Collection(redemptionsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum redeemed points for vendor %s: %w", vendorID.String(), err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *reportService) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	overview := &AdminOverview{}

	var err error
	if overview.TotalUsers, err = s.db.Collection(models.RoleUser.Collection()).CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if overview.TotalCollectors, err = s.db.Collection(models.RoleCollector.Collection()).CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if overview.TotalVendors, err = s.db.Collection(models.RoleVendor.Collection()).CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if overview.TotalTransactions, err = s.db.Collection(transactionsCollection).CountDocuments(ctx, bson.M{
		"status": models.TransactionVerified,
	}); err != nil {
		return nil, err
	}

	breakdown, err := s.wasteBreakdown(ctx, bson.M{"status": models.TransactionVerified})
	if err != nil {
		return nil, err
	}
	overview.WasteBreakdown = breakdown
	for _, line := range breakdown {
		overview.TotalWasteDisposed += line.Quantity
		overview.TotalPointsIssued += line.Points
	}
	return overview, nil
}
