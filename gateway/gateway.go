package gateway

import (
	"net/http"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Publisher receives domain events after a successful write.
type Publisher interface {
	Publish(ev events.Event)
}

type Deps struct {
	Store    repository.Store
	Audit    repository.AuditStore
	Events   Publisher
	Hub      *events.Hub
	Sessions *auth.Sessions
	Provider *auth.Provider
}

type Gateway struct {
	config   *config.Config
	store    repository.Store
	audit    repository.AuditStore
	events   Publisher
	hub      *events.Hub
	sessions *auth.Sessions
	provider *auth.Provider
	logger   *zap.Logger
	router   *gin.Engine
}

func NewGateway(cfg *config.Config, logger *zap.Logger, deps Deps) *Gateway {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	return &Gateway{
		config:   cfg,
		store:    deps.Store,
		audit:    deps.Audit,
		events:   deps.Events,
		hub:      deps.Hub,
		sessions: deps.Sessions,
		provider: deps.Provider,
		logger:   logger,
		router:   router,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := g.router.Group("/api")
	api.Use(auth.Authenticate(g.sessions, g.store))

	requireUser := auth.RequireUser()
	requireAdmin := auth.RequireAdmin()

	// Login flow
	api.GET("/login", g.provider.Login)
	api.GET("/callback", g.provider.Callback)
	api.GET("/logout", g.provider.Logout)
	api.GET("/auth/user", requireUser, g.getAuthUser)

	categories := api.Group("/categories")
	{
		categories.GET("", g.listCategories)
		categories.POST("", requireAdmin, g.createCategory)
	}

	products := api.Group("/products")
	{
		products.GET("", g.listProducts)
		products.GET("/featured", g.featuredProducts)
		products.GET("/export", requireAdmin, g.exportProducts)
		products.GET("/:id", g.getProduct)
		products.POST("", requireAdmin, g.createProduct)
		products.PUT("/:id", requireAdmin, g.updateProduct)
		products.DELETE("/:id", requireAdmin, g.deleteProduct)
		products.GET("/:id/reviews", g.listReviews)
		products.POST("/:id/reviews", requireUser, g.createReview)
	}

	cart := api.Group("/cart", requireUser)
	{
		cart.GET("", g.getCart)
		cart.POST("", g.addToCart)
		cart.DELETE("", g.clearCart)
		cart.PUT("/:id", g.updateCartItem)
		cart.DELETE("/:id", g.removeFromCart)
	}

	wishlist := api.Group("/wishlist", requireUser)
	{
		wishlist.GET("", g.getWishlist)
		wishlist.POST("", g.addToWishlist)
		wishlist.DELETE("/:id", g.removeFromWishlist)
	}

	orders := api.Group("/orders")
	{
		orders.GET("", requireUser, g.listOrders)
		orders.POST("", requireUser, g.createOrder)
		orders.GET("/feed", requireAdmin, g.orderFeed)
		orders.GET("/:id", requireUser, g.getOrder)
		orders.PUT("/:id/status", requireAdmin, g.updateOrderStatus)
	}

	admin := api.Group("/admin", requireAdmin)
	{
		admin.GET("/stats", g.stats)
		admin.GET("/audit/:entityId", g.auditTrail)
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// fail renders err in the shared envelope. Internal errors are logged and
// their detail withheld.
func (g *Gateway) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	auth.Abort(c, err)
}

func badRequest(err error) error {
	return apperr.Newf(apperr.Validation, "invalid request: %v", err)
}

func (g *Gateway) publish(c *gin.Context, action, entityID string, data map[string]interface{}) {
	if g.events == nil {
		return
	}
	ev := events.Event{Action: action, EntityID: entityID, Data: data}
	if user, ok := auth.CurrentUser(c); ok {
		ev.ActorID = user.ID
	}
	g.events.Publish(ev)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := c.GetString(auth.ContextUserID); id != "" {
			fields = append(fields, zap.String("user_id", id))
		}
		logger.Info("HTTP request", fields...)
	}
}
