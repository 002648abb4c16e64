package router

import (
	"github.com/gin-gonic/gin"

	"github.com/helvetio/marketplace-backend/internal/config"
	"github.com/helvetio/marketplace-backend/internal/http/handlers"
	"github.com/helvetio/marketplace-backend/internal/http/middleware"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	listingHandler *handlers.ListingHandler,
	bookingHandler *handlers.BookingHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Public routes.
	api.GET("/ws", wsHandler.Handle)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Get)
	api.GET("/listings/:id/availability", middleware.UUIDValidator("id"), listingHandler.CheckAvailability)

	// Authenticated routes.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		vendor := protected.Group("/")
		vendor.Use(middleware.RequireRole(models.RoleVendor, models.RoleAdmin))
		{
			vendor.POST("/listings", listingHandler.Create)
			vendor.GET("/listings", listingHandler.ListMine)
			vendor.PUT("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Update)
			vendor.DELETE("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Archive)
			vendor.POST("/listings/:id/blocks", middleware.UUIDValidator("id"), listingHandler.AddBlock)
			vendor.DELETE("/listings/:id/blocks/:blockId",
				middleware.UUIDValidator("id"), middleware.UUIDValidator("blockId"), listingHandler.RemoveBlock)

			vendor.POST("/bookings/:id/confirm", middleware.UUIDValidator("id"), bookingHandler.Confirm)
			vendor.POST("/bookings/:id/decline", middleware.UUIDValidator("id"), bookingHandler.Decline)
			vendor.POST("/bookings/:id/complete", middleware.UUIDValidator("id"), bookingHandler.Complete)
		}

		protected.POST("/bookings/preview", bookingHandler.Preview)
		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/bookings", bookingHandler.List)
		protected.GET("/bookings/:id", middleware.UUIDValidator("id"), bookingHandler.Get)
		protected.POST("/bookings/:id/cancel", middleware.UUIDValidator("id"), bookingHandler.Cancel)
		protected.GET("/bookings/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.GetForBooking)

		protected.POST("/escrow/:id/release", middleware.UUIDValidator("id"), escrowHandler.Release)

		protected.POST("/bookings/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.Raise)
		protected.GET("/disputes", disputeHandler.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/settlements", middleware.UUIDValidator("id"), disputeHandler.ProposeSettlement)
		protected.GET("/disputes/:id/settlements", middleware.UUIDValidator("id"), disputeHandler.ListSettlements)
		protected.POST("/disputes/:id/settlements/:offerId/accept",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("offerId"), disputeHandler.AcceptSettlement)
		protected.POST("/disputes/:id/settlements/:offerId/reject",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("offerId"), disputeHandler.RejectSettlement)
		protected.POST("/disputes/:id/escalate", middleware.UUIDValidator("id"), disputeHandler.Escalate)
		protected.GET("/disputes/:id/mediation", middleware.UUIDValidator("id"), disputeHandler.MediationProposal)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.UploadEvidence)
		protected.GET("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.ListEvidence)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllRead)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)

		admin := protected.Group("/")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/escrow/:id/capture", middleware.UUIDValidator("id"), escrowHandler.Capture)
			admin.POST("/escrow/:id/refund", middleware.UUIDValidator("id"), escrowHandler.Refund)
			admin.POST("/disputes/:id/review", middleware.UUIDValidator("id"), disputeHandler.Review)
			admin.POST("/disputes/:id/external-resolution", middleware.UUIDValidator("id"), disputeHandler.ResolveExternal)
		}
	}

	return r
}
