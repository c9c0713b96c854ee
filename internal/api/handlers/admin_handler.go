package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// AdminHandler serves the back-office routes.
type AdminHandler struct {
	accounts services.IAccountService
	badges   services.IBadgeService
	ledger   services.ILedgerService
	reports  services.IReportService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	accounts services.IAccountService,
	badges services.IBadgeService,
	ledger services.ILedgerService,
	reports services.IReportService,
) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		badges:   badges,
		ledger:   ledger,
		reports:  reports,
	}
}

// Overview handles GET /api/admin/overview.
func (h *AdminHandler) Overview(c *gin.Context) {
	overview, err := h.reports.AdminOverview(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, overview)
}

type createBadgeRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Icon        string               `json:"icon"`
	Criteria    models.BadgeCriteria `json:"criteria" binding:"required"`
	BonusPoints int                  `json:"bonus_points"`
}

// CreateBadge handles POST /api/admin/badges.
func (h *AdminHandler) CreateBadge(c *gin.Context) {
	var req createBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	badge, err := h.badges.CreateBadge(c.Request.Context(), models.Badge{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Criteria:    req.Criteria,
		BonusPoints: req.BonusPoints,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, badge)
}

// ListBadges handles GET /api/admin/badges.
func (h *AdminHandler) ListBadges(c *gin.Context) {
	badges, err := h.badges.ListBadges(c.Request.Context(), false)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, badges, len(badges))
}

// DeactivateBadge handles DELETE /api/admin/badges/:id.
func (h *AdminHandler) DeactivateBadge(c *gin.Context) {
	badgeID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid badge ID")
		return
	}
	if err := h.badges.DeactivateBadge(c.Request.Context(), badgeID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Badge deactivated")
}

// DeactivateAccount handles PUT /api/admin/accounts/:role/:id/deactivate.
func (h *AdminHandler) DeactivateAccount(c *gin.Context) {
	role := models.Role(c.Param("role"))
	if !role.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown role")
		return
	}
	accountID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid account ID")
		return
	}
	if err := h.accounts.Deactivate(c.Request.Context(), role, accountID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Account deactivated")
}

// AccountLedger handles GET /api/admin/accounts/:role/:id/ledger.
func (h *AdminHandler) AccountLedger(c *gin.Context) {
	role := models.Role(c.Param("role"))
	if !role.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown role")
		return
	}
	accountID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid account ID")
		return
	}
	entries, err := h.ledger.EntriesForAccount(c.Request.Context(), role, accountID, 200)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, entries, len(entries))
}
