package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/api/middleware"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// VendorHandler serves the vendor-facing routes: browsing collector offers,
// bulk purchases, sponsored rewards and redemption verification.
type VendorHandler struct {
	accounts  services.IAccountService
	purchases services.IVendorPurchaseService
	rewards   services.IRewardService
	reports   services.IReportService
}

// NewVendorHandler creates a new VendorHandler.
func NewVendorHandler(
	accounts services.IAccountService,
	purchases services.IVendorPurchaseService,
	rewards services.IRewardService,
	reports services.IReportService,
) *VendorHandler {
	return &VendorHandler{
		accounts:  accounts,
		purchases: purchases,
		rewards:   rewards,
		reports:   reports,
	}
}

// BrowseOffers handles GET /api/vendors/offers.
func (h *VendorHandler) BrowseOffers(c *gin.Context) {
	filters := services.CollectorOfferFilters{
		WasteType: c.Query("waste_type"),
	}
	if v := c.Query("min_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid min_price")
			return
		}
		filters.MinPrice = &price
	}
	if v := c.Query("max_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid max_price")
			return
		}
		filters.MaxPrice = &price
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		filters.Limit = limit
	}

	offers, err := h.purchases.BrowseOffers(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, offers, len(offers))
}

type createPurchaseRequest struct {
	CollectorID  string     `json:"collector_id" binding:"required"`
	OfferID      *string    `json:"offer_id"`
	WasteType    string     `json:"waste_type" binding:"required"`
	Quantity     float64    `json:"quantity" binding:"required"`
	PricePerUnit float64    `json:"price_per_unit" binding:"required"`
	PickupDate   *time.Time `json:"pickup_date"`
}

// CreatePurchase handles POST /api/vendors/purchase. Naming an offer_id
// reserves that offer for this purchase.
func (h *VendorHandler) CreatePurchase(c *gin.Context) {
	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	collectorID, err := utils.ParseSixID(req.CollectorID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid collector ID")
		return
	}

	in := services.CreatePurchaseInput{
		CollectorID:  collectorID,
		WasteType:    req.WasteType,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		PickupDate:   req.PickupDate,
	}
	if req.OfferID != nil {
		offerID, err := utils.ParseSixID(*req.OfferID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid offer ID")
			return
		}
		in.OfferID = &offerID
	}

	purchase, err := h.purchases.CreatePurchase(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, purchase)
}

// ListPurchases handles GET /api/vendors/purchases.
func (h *VendorHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.purchases.ListPurchasesByVendor(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, purchases, len(purchases))
}

// CompletePurchase handles PUT /api/vendors/purchases/:id/complete.
func (h *VendorHandler) CompletePurchase(c *gin.Context) {
	purchaseID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid purchase ID")
		return
	}
	purchase, err := h.purchases.CompletePurchase(c.Request.Context(), middleware.AccountID(c), purchaseID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, purchase)
}

// CancelPurchase handles PUT /api/vendors/purchases/:id/cancel.
func (h *VendorHandler) CancelPurchase(c *gin.Context) {
	purchaseID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid purchase ID")
		return
	}
	if err := h.purchases.CancelPurchase(c.Request.Context(), middleware.AccountID(c), purchaseID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Purchase cancelled")
}

// Inventory handles GET /api/vendors/inventory.
func (h *VendorHandler) Inventory(c *gin.Context) {
	inventory, err := h.purchases.VendorInventory(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, inventory, len(inventory))
}

type createRewardRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	PointsRequired int        `json:"points_required" binding:"required"`
	StockAvailable *int       `json:"stock_available"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     time.Time  `json:"valid_until" binding:"required"`
}

// CreateReward handles POST /api/vendors/rewards.
func (h *VendorHandler) CreateReward(c *gin.Context) {
	var req createRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := services.CreateRewardInput{
		Title:          req.Title,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		StockAvailable: req.StockAvailable,
		ValidUntil:     req.ValidUntil,
	}
	if req.ValidFrom != nil {
		in.ValidFrom = *req.ValidFrom
	}

	reward, err := h.rewards.CreateReward(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, reward)
}

// ListRewards handles GET /api/vendors/rewards.
func (h *VendorHandler) ListRewards(c *gin.Context) {
	rewards, err := h.rewards.ListRewardsByVendor(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, rewards, len(rewards))
}

// VerifyRedemption handles POST /api/vendors/redemptions/:code/verify.
func (h *VendorHandler) VerifyRedemption(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		respondError(c, http.StatusBadRequest, "Redemption code required")
		return
	}
	redemption, err := h.rewards.VerifyRedemption(c.Request.Context(), middleware.AccountID(c), code)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, redemption)
}

// Dashboard handles GET /api/vendors/dashboard.
func (h *VendorHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.reports.VendorDashboard(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, dashboard)
}
