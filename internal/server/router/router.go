package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/server/handlers"
	"github.com/mamadbah2/vaccine-orders/internal/server/middleware"
)

// Deps groups what the router needs to mount every API route.
type Deps struct {
	Catalog   *handlers.CatalogHandler
	Orders    *handlers.OrderHandler
	Auth      *handlers.AuthHandler
	WebSocket *handlers.WebSocketHandler

	Authenticator middleware.Authenticator
	CSRF          middleware.CSRFVerifier

	AllowedOrigins []string
	// MediaDir is served under MediaURL when images are stored locally.
	MediaDir string
	MediaURL string
}

// New wires the Gin engine with required routes and middlewares.
func New(d Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.MediaDir != "" && strings.HasPrefix(d.MediaURL, "/") {
		r.Static(d.MediaURL, d.MediaDir)
	}

	api := r.Group("/api")
	api.GET("/ws/", d.WebSocket.ServeWs)

	api.Use(middleware.Authenticate(d.Authenticator, logger))

	auth := api.Group("/auth")
	{
		auth.GET("/user/", d.Auth.CurrentUser)
		auth.GET("/csrf/", d.Auth.CSRF)
		auth.POST("/login/", middleware.CSRF(d.CSRF), d.Auth.Login)
		auth.POST("/register/", middleware.CSRF(d.CSRF), d.Auth.Register)
		auth.POST("/logout/", d.Auth.Logout)
	}

	products := api.Group("/products", middleware.StaffWrites())
	{
		products.GET("/", d.Catalog.ListProducts)
		products.POST("/", d.Catalog.CreateProduct)
		products.GET("/:id/", d.Catalog.GetProduct)
		products.PUT("/:id/", d.Catalog.UpdateProduct)
		products.PATCH("/:id/", d.Catalog.UpdateProduct)
		products.DELETE("/:id/", d.Catalog.DeleteProduct)
	}

	dosePacks := api.Group("/dosepacks", middleware.StaffWrites())
	{
		dosePacks.GET("/", d.Catalog.ListDosePacks)
		dosePacks.POST("/", d.Catalog.CreateDosePack)
		dosePacks.GET("/:id/", d.Catalog.GetDosePack)
		dosePacks.PUT("/:id/", d.Catalog.UpdateDosePack)
		dosePacks.PATCH("/:id/", d.Catalog.UpdateDosePack)
		dosePacks.DELETE("/:id/", d.Catalog.DeleteDosePack)
	}

	batches := api.Group("/batches", middleware.RequireAuth())
	{
		staff := middleware.RequireStaff()
		batches.GET("/", d.Catalog.ListBatches)
		batches.GET("/low_stock/", staff, d.Catalog.LowStock)
		batches.POST("/bulk_update_stock/", staff, d.Catalog.BulkUpdateStock)
		batches.POST("/", staff, d.Catalog.CreateBatch)
		batches.GET("/:id/", d.Catalog.GetBatch)
		batches.PUT("/:id/", staff, d.Catalog.UpdateBatch)
		batches.PATCH("/:id/", staff, d.Catalog.UpdateBatch)
		batches.DELETE("/:id/", staff, d.Catalog.DeleteBatch)
	}

	logs := api.Group("/inventory-logs", middleware.RequireStaff())
	{
		logs.GET("/", d.Catalog.ListLogs)
		logs.GET("/:id/", d.Catalog.GetLog)
	}

	orders := api.Group("/orders", middleware.RequireAuth())
	{
		orders.GET("/", d.Orders.List)
		orders.POST("/", d.Orders.Create)
		orders.GET("/:id/", d.Orders.Get)
		orders.POST("/:id/set_status/", d.Orders.SetStatus)
		orders.POST("/:id/add_internal_note/", d.Orders.AddInternalNote)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}
