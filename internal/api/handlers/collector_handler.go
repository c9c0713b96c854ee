package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/api/middleware"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// CollectorHandler serves the collector-facing routes: browsing user offers,
// bidding on them, verifying drop-offs, and selling bulk inventory onwards.
type CollectorHandler struct {
	accounts  services.IAccountService
	offers    services.IUserOfferService
	purchases services.IVendorPurchaseService
	dropoffs  services.IDropoffService
	reports   services.IReportService
}

// NewCollectorHandler creates a new CollectorHandler.
func NewCollectorHandler(
	accounts services.IAccountService,
	offers services.IUserOfferService,
	purchases services.IVendorPurchaseService,
	dropoffs services.IDropoffService,
	reports services.IReportService,
) *CollectorHandler {
	return &CollectorHandler{
		accounts:  accounts,
		offers:    offers,
		purchases: purchases,
		dropoffs:  dropoffs,
		reports:   reports,
	}
}

// GetProfile handles GET /api/collectors/me.
func (h *CollectorHandler) GetProfile(c *gin.Context) {
	collector, err := h.accounts.FindCollector(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, collector)
}

type updateCollectorProfileRequest struct {
	Name               *string   `json:"name"`
	Phone              *string   `json:"phone"`
	Address            *string   `json:"address"`
	AcceptedWasteTypes *[]string `json:"accepted_waste_types"`
}

// UpdateProfile handles PUT /api/collectors/me.
func (h *CollectorHandler) UpdateProfile(c *gin.Context) {
	var req updateCollectorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.AcceptedWasteTypes != nil {
		updates["accepted_waste_types"] = *req.AcceptedWasteTypes
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), models.RoleCollector, middleware.AccountID(c), updates); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Profile updated")
}

// BrowseUserOffers handles GET /api/collectors/user-offers. Query parameters
// narrow the result: waste_type, city, min_price, max_price, lat/lon with
// max_dist_km, and limit.
func (h *CollectorHandler) BrowseUserOffers(c *gin.Context) {
	filters := services.UserOfferFilters{
		WasteType: c.Query("waste_type"),
		City:      c.Query("city"),
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
	if latStr, lonStr := c.Query("lat"), c.Query("lon"); latStr != "" && lonStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr != nil || lonErr != nil {
			respondError(c, http.StatusBadRequest, "Invalid coordinates")
			return
		}
		filters.Near = &models.GeoJSON{Type: "Point", Coordinates: []float64{lon, lat}}
		if distStr := c.Query("max_dist_km"); distStr != "" {
			dist, err := strconv.Atoi(distStr)
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid max_dist_km")
				return
			}
			filters.MaxDistKM = &dist
		}
	}

	offers, err := h.offers.BrowseOffers(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, offers, len(offers))
}

type createRequestRequest struct {
	OfferedPrice float64    `json:"offered_price" binding:"required"`
	PickupTime   *time.Time `json:"pickup_time"`
	Message      string     `json:"message"`
}

// CreateRequest handles POST /api/collectors/user-offers/:offerId/request.
func (h *CollectorHandler) CreateRequest(c *gin.Context) {
	offerID, err := utils.ParseSixID(c.Param("offerId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid offer ID")
		return
	}

	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.offers.CreateRequest(c.Request.Context(), middleware.AccountID(c), offerID, req.OfferedPrice, req.PickupTime, req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, request)
}

// ListRequests handles GET /api/collectors/user-purchase-requests.
func (h *CollectorHandler) ListRequests(c *gin.Context) {
	requests, err := h.offers.ListRequestsForCollector(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, requests, len(requests))
}

type completeRequestRequest struct {
	FinalPayment *float64 `json:"final_payment"`
}

// CompleteRequest handles PUT /api/collectors/user-purchase-requests/:requestId/complete.
func (h *CollectorHandler) CompleteRequest(c *gin.Context) {
	requestID, err := utils.ParseSixID(c.Param("requestId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID")
		return
	}

	// Body is optional; without one the agreed price stands.
	var req completeRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	request, err := h.offers.CompleteRequest(c.Request.Context(), middleware.AccountID(c), requestID, req.FinalPayment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, request)
}

// CancelRequest handles DELETE /api/collectors/user-purchase-requests/:requestId.
func (h *CollectorHandler) CancelRequest(c *gin.Context) {
	requestID, err := utils.ParseSixID(c.Param("requestId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID")
		return
	}
	if err := h.offers.CancelRequest(c.Request.Context(), middleware.AccountID(c), requestID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Request cancelled")
}

type createCollectorOfferRequest struct {
	WasteType     string               `json:"waste_type" binding:"required"`
	Quantity      models.Quantity      `json:"quantity" binding:"required"`
	MinPricePerKg float64              `json:"min_price_per_kg"`
	ExpiresAt     *time.Time           `json:"expires_at"`
	Location      models.OfferLocation `json:"location"`
}

// CreateOffer handles POST /api/collectors/offers.
func (h *CollectorHandler) CreateOffer(c *gin.Context) {
	var req createCollectorOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := services.CreateCollectorOfferInput{
		WasteType:     req.WasteType,
		Quantity:      req.Quantity,
		MinPricePerKg: req.MinPricePerKg,
		Location:      req.Location,
	}
	if req.ExpiresAt != nil {
		in.ExpiresAt = *req.ExpiresAt
	}

	offer, err := h.purchases.CreateOffer(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, offer)
}

// ListOffers handles GET /api/collectors/offers.
func (h *CollectorHandler) ListOffers(c *gin.Context) {
	offers, err := h.purchases.ListOffersByCollector(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, offers, len(offers))
}

// CancelOffer handles DELETE /api/collectors/offers/:id.
func (h *CollectorHandler) CancelOffer(c *gin.Context) {
	offerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid offer ID")
		return
	}
	if err := h.purchases.CancelOffer(c.Request.Context(), middleware.AccountID(c), offerID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Offer cancelled")
}

// ListPurchases handles GET /api/collectors/purchases.
func (h *CollectorHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.purchases.ListPurchasesForCollector(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, purchases, len(purchases))
}

type respondToPurchaseRequest struct {
	Action  string `json:"action" binding:"required,oneof=accept reject"`
	Message string `json:"message"`
}

// RespondToPurchase handles PUT /api/collectors/purchases/:id/respond.
func (h *CollectorHandler) RespondToPurchase(c *gin.Context) {
	purchaseID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid purchase ID")
		return
	}

	var req respondToPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	purchase, err := h.purchases.RespondToPurchase(c.Request.Context(), middleware.AccountID(c), purchaseID, req.Action == "accept", req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, purchase)
}

type verifyDropoffRequest struct {
	UserID     string  `json:"user_id" binding:"required"`
	WasteType  string  `json:"waste_type" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required"`
	RewardType string  `json:"reward_type"`
	CashAmount float64 `json:"cash_amount"`
	QRScanned  bool    `json:"qr_scanned"`
	Notes      string  `json:"notes"`
}

// VerifyDropoff handles POST /api/collectors/dropoffs. The response carries
// the recorded transaction plus any badges the drop-off newly earned.
func (h *CollectorHandler) VerifyDropoff(c *gin.Context) {
	var req verifyDropoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := utils.ParseSixID(req.UserID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	transaction, newBadges, err := h.dropoffs.VerifyDropoff(c.Request.Context(), middleware.AccountID(c), services.VerifyDropoffInput{
		UserID:     userID,
		WasteType:  req.WasteType,
		Quantity:   req.Quantity,
		RewardType: models.RewardType(req.RewardType),
		CashAmount: req.CashAmount,
		QRScanned:  req.QRScanned,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"transaction": transaction, "new_badges": newBadges})
}

// ListTransactions handles GET /api/collectors/transactions.
func (h *CollectorHandler) ListTransactions(c *gin.Context) {
	transactions, err := h.dropoffs.ListTransactionsForCollector(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, transactions, len(transactions))
}

// Dashboard handles GET /api/collectors/dashboard.
func (h *CollectorHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.reports.CollectorDashboard(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, dashboard)
}
