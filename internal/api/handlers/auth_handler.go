package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/auth"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
)

// AuthHandler handles registration and login for all four roles.
type AuthHandler struct {
	accounts services.IAccountService
	cfg      *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts services.IAccountService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{accounts: accounts, cfg: cfg}
}

type registerRequest struct {
	Role               models.Role `json:"role" binding:"required"`
	Name               string      `json:"name" binding:"required"`
	Email              string      `json:"email" binding:"required,email"`
	Password           string      `json:"password" binding:"required"`
	Phone              string      `json:"phone"`
	Address            string      `json:"address"`
	AcceptedWasteTypes []string    `json:"accepted_waste_types"`
}

type loginRequest struct {
	Role     models.Role `json:"role" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required"`
}

type authResponse struct {
	ID    string      `json:"id"`
	Role  models.Role `json:"role"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Token string      `json:"token"`
}

// Register handles POST /api/auth/register. Admin accounts cannot be created
// through the public API.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role == models.RoleAdmin {
		respondError(c, http.StatusForbidden, "Cannot self-register as admin")
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
		Role:               req.Role,
		Name:               req.Name,
		Email:              req.Email,
		Password:           req.Password,
		Phone:              req.Phone,
		Address:            req.Address,
		AcceptedWasteTypes: req.AcceptedWasteTypes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := auth.GenerateJWT(result.ID, result.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, authResponse{
		ID:    result.ID.String(),
		Role:  result.Role,
		Name:  result.Name,
		Email: result.Email,
		Token: token,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Role.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown role")
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Role, req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, err := auth.GenerateJWT(result.ID, result.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, authResponse{
		ID:    result.ID.String(),
		Role:  result.Role,
		Name:  result.Name,
		Email: result.Email,
		Token: token,
	})
}
