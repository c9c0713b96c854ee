package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/api/handlers"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/api/middleware"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client) *gin.Engine {
	// Initialize services needed by API handlers
	accountService := services.NewAccountService(db)
	ledgerService := services.NewLedgerService(db)
	badgeService := services.NewBadgeService(db)
	userOfferService := services.NewUserOfferService(db, cfg, ledgerService)
	vendorPurchaseService := services.NewVendorPurchaseService(db, cfg, ledgerService)
	rewardService := services.NewRewardService(db, cfg, rdb, ledgerService)
	dropoffService := services.NewDropoffService(db, accountService, badgeService, ledgerService)
	reportService := services.NewReportService(db, accountService, vendorPurchaseService)

	r := gin.Default()

	// Global middleware (order matters)
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(accountService, cfg)
	userHandler := handlers.NewUserHandler(accountService, userOfferService, rewardService, dropoffService, ledgerService, reportService)
	collectorHandler := handlers.NewCollectorHandler(accountService, userOfferService, vendorPurchaseService, dropoffService, reportService)
	vendorHandler := handlers.NewVendorHandler(accountService, vendorPurchaseService, rewardService, reportService)
	adminHandler := handlers.NewAdminHandler(accountService, badgeService, ledgerService, reportService)

	authRequired := middleware.AuthMiddleware(cfg.JwtSecret, accountService)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		apiGroup.POST("/auth/register", authHandler.Register)
		apiGroup.POST("/auth/login", authHandler.Login)

		users := apiGroup.Group("/users", authRequired, middleware.RequireRole(models.RoleUser))
		{
			users.GET("/me", userHandler.GetProfile)
			users.PUT("/me", userHandler.UpdateProfile)
			users.GET("/offers", userHandler.ListOffers)
			users.POST("/offers", userHandler.CreateOffer)
			users.DELETE("/offers/:id", userHandler.CancelOffer)
			users.GET("/purchase-requests", userHandler.ListPurchaseRequests)
			users.PUT("/purchase-requests/:id/respond", userHandler.RespondToRequest)
			users.GET("/rewards", userHandler.ListRewards)
			users.POST("/rewards/:rewardId/redeem", userHandler.RedeemReward)
			users.GET("/redemptions", userHandler.ListRedemptions)
			users.GET("/transactions", userHandler.ListTransactions)
			users.GET("/ledger", userHandler.ListLedger)
			users.GET("/dashboard", userHandler.Dashboard)
		}

		collectors := apiGroup.Group("/collectors", authRequired, middleware.RequireRole(models.RoleCollector))
		{
			collectors.GET("/me", collectorHandler.GetProfile)
			collectors.PUT("/me", collectorHandler.UpdateProfile)
			collectors.GET("/user-offers", collectorHandler.BrowseUserOffers)
			collectors.POST("/user-offers/:offerId/request", collectorHandler.CreateRequest)
			collectors.GET("/user-purchase-requests", collectorHandler.ListRequests)
			collectors.PUT("/user-purchase-requests/:requestId/complete", collectorHandler.CompleteRequest)
			collectors.DELETE("/user-purchase-requests/:requestId", collectorHandler.CancelRequest)
			collectors.POST("/offers", collectorHandler.CreateOffer)
			collectors.GET("/offers", collectorHandler.ListOffers)
			collectors.DELETE("/offers/:id", collectorHandler.CancelOffer)
			collectors.GET("/purchases", collectorHandler.ListPurchases)
			collectors.PUT("/purchases/:id/respond", collectorHandler.RespondToPurchase)
			collectors.POST("/dropoffs", collectorHandler.VerifyDropoff)
			collectors.GET("/transactions", collectorHandler.ListTransactions)
			collectors.GET("/dashboard", collectorHandler.Dashboard)
		}

		vendors := apiGroup.Group("/vendors", authRequired, middleware.RequireRole(models.RoleVendor))
		{
			vendors.GET("/offers", vendorHandler.BrowseOffers)
			vendors.POST("/purchase", vendorHandler.CreatePurchase)
			vendors.GET("/purchases", vendorHandler.ListPurchases)
			vendors.PUT("/purchases/:id/complete", vendorHandler.CompletePurchase)
			vendors.PUT("/purchases/:id/cancel", vendorHandler.CancelPurchase)
			vendors.GET("/inventory", vendorHandler.Inventory)
			vendors.POST("/rewards", vendorHandler.CreateReward)
			vendors.GET("/rewards", vendorHandler.ListRewards)
			vendors.POST("/redemptions/:code/verify", vendorHandler.VerifyRedemption)
			vendors.GET("/dashboard", vendorHandler.Dashboard)
		}

		admin := apiGroup.Group("/admin", authRequired, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/overview", adminHandler.Overview)
			admin.POST("/badges", adminHandler.CreateBadge)
			admin.GET("/badges", adminHandler.ListBadges)
			admin.DELETE("/badges/:id", adminHandler.DeactivateBadge)
			admin.PUT("/accounts/:role/:id/deactivate", adminHandler.DeactivateAccount)
			admin.GET("/accounts/:role/:id/ledger", adminHandler.AccountLedger)
		}
	}

	return r
}
