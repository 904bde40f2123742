package handlers

import (
	"time"

	"restaurant_ordering/internal/logger"
	"restaurant_ordering/internal/metrics"
	"restaurant_ordering/internal/middleware"
	"restaurant_ordering/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Orders  *OrderHandler
	Auth    *AuthHandler
	Catalog *CatalogHandler
	Branch  *BranchHandler
	Health  *HealthHandler

	Tokens      middleware.TokenParser
	OrderLimit  *middleware.IPRateLimiter
	CORSOrigins []string
	UploadDir   string
	Log         logrus.FieldLogger
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(d.Log), middleware.Instrument())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Static("/uploads", d.UploadDir)
	router.GET("/health", d.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireAuth := middleware.RequireAuth(d.Tokens)
	optionalAuth := middleware.OptionalAuth(d.Tokens)
	staff := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", d.Auth.Register)
		authGroup.GET("/verify", d.Auth.Verify)
		authGroup.POST("/login", d.Auth.Login)
	}

	orders := router.Group("/orders")
	{
		orders.POST("/create", d.OrderLimit.Middleware(), optionalAuth, d.Orders.Create)

		staffOrders := orders.Group("", requireAuth, staff)
		staffOrders.GET("/active", d.Orders.ListActive)
		staffOrders.GET("/completed", d.Orders.ListCompleted)
		staffOrders.GET("/completed/export", d.Orders.ExportCompleted)
		staffOrders.PUT("/complete", d.Orders.Complete)
		staffOrders.PUT("/:id/status", d.Orders.SetStatus)
	}

	router.GET("/stats", requireAuth, staff, d.Branch.Stats)

	menu := router.Group("/menu")
	{
		menu.GET("", optionalAuth, d.Catalog.ListMenu)
		menu.GET("/category/:id", optionalAuth, d.Catalog.ListMenuByCategory)
		menu.POST("", requireAuth, admin, d.Catalog.SaveMenuItem)
		menu.POST("/:id/photo", requireAuth, admin, d.Catalog.UploadPhoto)
		menu.DELETE("/:id", requireAuth, admin, d.Catalog.DeleteMenuItem)
	}

	categories := router.Group("/categories", requireAuth, admin)
	{
		categories.GET("", d.Catalog.ListCategories)
		categories.GET("/uncategorized-count", d.Catalog.UncategorizedCount)
		categories.POST("/reorder", d.Catalog.ReorderCategories)
		categories.POST("", d.Catalog.SaveCategory)
		categories.DELETE("/:id", d.Catalog.DeleteCategory)
	}

	branches := router.Group("/branches")
	{
		branches.GET("", d.Branch.List)
		branches.GET("/:id/settings", d.Branch.Settings)
		branches.POST("", requireAuth, admin, d.Branch.Create)
		branches.POST("/:id/settings", requireAuth, admin, d.Branch.UpdateSettings)
	}

	return router
}
