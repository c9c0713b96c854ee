package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/api/middleware"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// UserHandler serves the user-facing routes: profile, waste offers, purchase
// request responses, rewards and the dashboard.
type UserHandler struct {
	accounts services.IAccountService
	offers   services.IUserOfferService
	rewards  services.IRewardService
	dropoffs services.IDropoffService
	ledger   services.ILedgerService
	reports  services.IReportService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(
	accounts services.IAccountService,
	offers services.IUserOfferService,
	rewards services.IRewardService,
	dropoffs services.IDropoffService,
	ledger services.ILedgerService,
	reports services.IReportService,
) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		offers:   offers,
		rewards:  rewards,
		dropoffs: dropoffs,
		ledger:   ledger,
		reports:  reports,
	}
}

// GetProfile handles GET /api/users/me.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.accounts.FindUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

type updateProfileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// UpdateProfile handles PUT /api/users/me.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
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

	if err := h.accounts.UpdateProfile(c.Request.Context(), models.RoleUser, middleware.AccountID(c), updates); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Profile updated")
}

type createOfferRequest struct {
	WasteType        string               `json:"waste_type" binding:"required"`
	Quantity         models.Quantity      `json:"quantity" binding:"required"`
	ExpectedPrice    float64              `json:"expected_price"`
	Location         models.OfferLocation `json:"location"`
	AvailableFrom    *time.Time           `json:"available_from"`
	AvailableUntil   *time.Time           `json:"available_until"`
	PickupPreference string               `json:"pickup_preference"`
}

// CreateOffer handles POST /api/users/offers.
func (h *UserHandler) CreateOffer(c *gin.Context) {
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := services.CreateUserOfferInput{
		WasteType:        req.WasteType,
		Quantity:         req.Quantity,
		ExpectedPrice:    req.ExpectedPrice,
		Location:         req.Location,
		PickupPreference: req.PickupPreference,
	}
	if req.AvailableFrom != nil {
		in.AvailableFrom = *req.AvailableFrom
	}
	if req.AvailableUntil != nil {
		in.AvailableUntil = *req.AvailableUntil
	}

	offer, err := h.offers.CreateOffer(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, offer)
}

// ListOffers handles GET /api/users/offers.
func (h *UserHandler) ListOffers(c *gin.Context) {
	offers, err := h.offers.ListOffersByUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, offers, len(offers))
}

// CancelOffer handles DELETE /api/users/offers/:id.
func (h *UserHandler) CancelOffer(c *gin.Context) {
	offerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid offer ID")
		return
	}
	if err := h.offers.CancelOffer(c.Request.Context(), middleware.AccountID(c), offerID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Offer cancelled")
}

// ListPurchaseRequests handles GET /api/users/purchase-requests.
func (h *UserHandler) ListPurchaseRequests(c *gin.Context) {
	requests, err := h.offers.ListRequestsForUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, requests, len(requests))
}

type respondToRequestRequest struct {
	Action  string `json:"action" binding:"required,oneof=accept reject"`
	Message string `json:"message"`
}

// RespondToRequest handles PUT /api/users/purchase-requests/:id/respond.
// Accepting one request automatically rejects all other pending requests on
// the same offer.
func (h *UserHandler) RespondToRequest(c *gin.Context) {
	requestID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var req respondToRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.offers.RespondToRequest(c.Request.Context(), middleware.AccountID(c), requestID, req.Action == "accept", req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, request)
}

// ListRewards handles GET /api/users/rewards.
func (h *UserHandler) ListRewards(c *gin.Context) {
	rewards, err := h.rewards.ListActiveRewards(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, rewards, len(rewards))
}

// RedeemReward handles POST /api/users/rewards/:rewardId/redeem.
func (h *UserHandler) RedeemReward(c *gin.Context) {
	rewardID, err := utils.ParseSixID(c.Param("rewardId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reward ID")
		return
	}
	redemption, err := h.rewards.Redeem(c.Request.Context(), middleware.AccountID(c), rewardID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, redemption)
}

// ListRedemptions handles GET /api/users/redemptions.
func (h *UserHandler) ListRedemptions(c *gin.Context) {
	redemptions, err := h.rewards.ListRedemptionsForUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, redemptions, len(redemptions))
}

// ListTransactions handles GET /api/users/transactions.
func (h *UserHandler) ListTransactions(c *gin.Context) {
	transactions, err := h.dropoffs.ListTransactionsForUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, transactions, len(transactions))
}

// ListLedger handles GET /api/users/ledger.
func (h *UserHandler) ListLedger(c *gin.Context) {
	entries, err := h.ledger.EntriesForAccount(c.Request.Context(), models.RoleUser, middleware.AccountID(c), 100)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, entries, len(entries))
}

// Dashboard handles GET /api/users/dashboard.
func (h *UserHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.reports.UserDashboard(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, dashboard)
}
