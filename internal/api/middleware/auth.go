package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/auth"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

const (
	// ContextKeyAccountID holds the authenticated account's SixID in Gin context.
	ContextKeyAccountID = "accountID"
	// ContextKeyRole holds the authenticated account's role in Gin context.
	ContextKeyRole = "role"
)

// AuthMiddleware validates the bearer token and resolves the account it names.
// A token for a deactivated account is rejected even before its expiry, so
// deactivation takes effect on the next request rather than at token expiry.
func AuthMiddleware(jwtSecret string, accounts services.IAccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		accountID, err := utils.ParseSixID(claims.AccountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		account, err := accounts.Resolve(c.Request.Context(), claims.Role, accountID)
		if err != nil || !account.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Account not found or deactivated"})
			return
		}

		c.Set(ContextKeyAccountID, accountID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole restricts a route group to one role. Assumes AuthMiddleware
// runs first.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, exists := c.Get(ContextKeyRole)
		if !exists || got.(models.Role) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Insufficient privileges"})
			return
		}
		c.Next()
	}
}

// AccountID returns the authenticated account's ID from the Gin context.
func AccountID(c *gin.Context) utils.SixID {
	return c.MustGet(ContextKeyAccountID).(utils.SixID)
}
