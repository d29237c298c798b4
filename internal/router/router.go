package router

import (
	"time"

	"adwall/config"
	"adwall/internal/handler"
	"adwall/internal/middleware"
	"adwall/internal/repository"
	"adwall/internal/service"
	"adwall/internal/ws"
	"adwall/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewSlidingWindowLimiter(300, time.Minute)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	adRepo := repository.NewAdRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	schemaRepo := repository.NewSchemaRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	wallHub := ws.NewWallHub()

	// Services
	billingSvc := service.NewBillingService(db, &cfg.Billing)
	authSvc := service.NewAuthService(cfg, db, userRepo, billingSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, billingSvc, userRepo, ledgerRepo, auditRepo)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, auditRepo)
	adHandler := handler.NewAdHandler(adRepo, billingSvc, cloud, wallHub, &cfg.Billing)
	uploadHandler := handler.NewUploadHandler(cloud)
	schemaHandler := handler.NewFormSchemaHandler(schemaRepo)
	adminHandler := handler.NewAdminHandler(userRepo, ledgerRepo, auditRepo, billingSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalMw := middleware.OptionalAuth(&cfg.JWT)
	adminMw := middleware.AdminRequired()

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", googleOAuthHandler.Token)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", authHandler.Me)
			me.PATCH("/profile", authHandler.UpdateProfile)
			me.POST("/topup", authHandler.TopUp)
			me.GET("/transactions", authHandler.Transactions)
		}

		// The gallery is public; OptionalAuth lets admins see through
		// anonymous authors and owners scope with mine=true.
		ads := api.Group("/ads")
		ads.Use(optionalMw)
		{
			ads.GET("", adHandler.List)
			ads.GET("/stats", adHandler.Stats)
			ads.GET("/:id", adHandler.Get)
			ads.POST("/:id/clicks", adHandler.Click)
			ads.POST("/:id/like", adHandler.Like)
		}
		adsAuth := api.Group("/ads")
		adsAuth.Use(authMw)
		{
			adsAuth.POST("", adHandler.Create)
			adsAuth.PUT("/:id", adHandler.Update)
			adsAuth.DELETE("/:id", adHandler.Delete)
			adsAuth.POST("/:id/activation", adHandler.Activation)
		}

		api.POST("/uploads", authMw, uploadHandler.Upload)

		api.GET("/form-schemas", schemaHandler.List)
		api.GET("/form-schemas/:id", schemaHandler.Get)

		admin := api.Group("/admin")
		admin.Use(authMw, adminMw)
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users/:id/credit", adminHandler.Credit)
			admin.GET("/users/:id/ledger", adminHandler.Ledger)
			admin.GET("/authors", adminHandler.Authors)
			admin.GET("/audit-logs", adminHandler.AuditLogs)
		}
	}

	r.GET("/ws/wall", ws.UpgradeWallWS(&cfg.JWT, wallHub))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "ws_clients": wallHub.ClientCount()})
	})

	return r
}
