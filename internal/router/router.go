package router

import (
	"context"
	"time"

	"osgb/internal/handlers"
	"osgb/internal/middleware"
	"osgb/internal/services"
	"osgb/pkg/cache"
	"osgb/pkg/config"
	"osgb/pkg/jwt"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the HTTP surface is built from. Cache
// and Bus may be nil; caching and the websocket stream are then disabled.
type Dependencies struct {
	DB            *gorm.DB
	Cache         *cache.RedisCache
	Bus           *services.RedisEventBus
	JWT           *jwt.JWTManager
	MinuteCeiling int
	CORS          config.CORSConfig
}

// SetupRouter builds the engine with every route registered.
func SetupRouter(deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.CORS))

	registerRoutes(router, deps)
	return router
}

func registerRoutes(router *gin.Engine, deps Dependencies) {
	var publisher services.EventPublisher = services.NopEventPublisher{}
	if deps.Bus != nil {
		publisher = deps.Bus
	}

	userService := services.NewUserService(deps.DB)
	tenantService := services.NewTenantService(deps.DB)
	personnelService := services.NewPersonnelService(deps.DB, deps.MinuteCeiling)
	ledger := services.NewQuotaLedger(deps.DB)
	workplaceService := services.NewWorkplaceService(deps.DB, ledger)
	visitService := services.NewVisitService(deps.DB, publisher)

	auth := middleware.NewAuthMiddleware(userService, deps.JWT)

	api := router.Group("/api/v1")
	{
		api.GET("/health", healthCheck(deps))
		api.GET("/ping", ping)

		authHandler := handlers.NewAuthHandler(userService, deps.JWT)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		tenantHandler := handlers.NewTenantHandler(tenantService)
		userHandler := handlers.NewUserHandler(userService)
		tenants := api.Group("/tenants", auth.RequireLogin(), auth.RequirePlatformAdmin())
		{
			tenants.POST("", tenantHandler.Create)
			tenants.GET("", tenantHandler.List)
			tenants.GET("/stats", tenantHandler.Stats)
			tenants.GET("/:id", tenantHandler.GetByID)
			tenants.PUT("/:id", tenantHandler.Update)
			tenants.DELETE("/:id", tenantHandler.Delete)
			tenants.POST("/:id/users", userHandler.Create)
		}

		users := api.Group("/users", auth.RequireLogin())
		{
			users.POST("", auth.RequireAdmin(), userHandler.Create)
			users.GET("/:id", userHandler.GetByID)
		}

		personnelHandler := handlers.NewPersonnelHandler(personnelService, ledger, deps.Cache)
		personnel := api.Group("/personnel", auth.RequireLogin())
		{
			personnel.POST("/:role", auth.RequireAdmin(), personnelHandler.Create)
			personnel.GET("/:role", personnelHandler.List)
			personnel.GET("/:role/:id", personnelHandler.GetByID)
			personnel.PUT("/:role/:id", auth.RequireAdmin(), personnelHandler.Update)
			personnel.DELETE("/:role/:id", auth.RequireAdmin(), personnelHandler.Delete)
			personnel.GET("/:role/:id/ledger", personnelHandler.Ledger)
			personnel.GET("/:role/:id/can-downgrade", personnelHandler.CanDowngrade)
		}
		api.GET("/quota/overcommitted", auth.RequireLogin(), personnelHandler.Overcommitted)

		workplaceHandler := handlers.NewWorkplaceHandler(workplaceService, deps.Cache)
		workplaces := api.Group("/workplaces", auth.RequireLogin())
		{
			workplaces.POST("", workplaceHandler.Create)
			workplaces.GET("", workplaceHandler.List)
			workplaces.GET("/:id", workplaceHandler.GetByID)
			workplaces.PUT("/:id", workplaceHandler.Update)
			workplaces.DELETE("/:id", auth.RequireAdmin(), workplaceHandler.Delete)
		}

		visitHandler := handlers.NewVisitHandler(visitService)
		visits := api.Group("/visits", auth.RequireLogin())
		{
			visits.POST("", visitHandler.Record)
			visits.GET("", visitHandler.List)
			visits.DELETE("/:id", visitHandler.Delete)
			visits.GET("/summary/:expert_id", visitHandler.Summary)
		}

		if deps.Bus != nil {
			wsHandler := handlers.NewWebSocketHandler(deps.Bus, deps.JWT, userService, deps.CORS.AllowOrigins)
			api.GET("/ws/visits", wsHandler.VisitEvents)
		}
	}
}

func healthCheck(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		checks := map[string]string{"database": "ok"}
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = "degraded"
		}
		if deps.Cache != nil {
			checks["redis"] = "ok"
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				status = "degraded"
			}
		}

		response.Success(c, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now(),
			"service":   "OSGB",
			"version":   "1.0.0",
		})
	}
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
