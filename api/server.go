// Package api exposes the storefront over HTTP: catalog and cart reads,
// cart mutations, checkout, the payment provider integration, and the
// websocket channel that keeps every tab of a session's cart in sync.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/northwear/storefront/internal/cart"
	"github.com/northwear/storefront/internal/cartsync"
	"github.com/northwear/storefront/internal/catalog"
	"github.com/northwear/storefront/internal/orders"
	"github.com/northwear/storefront/internal/payment"
)

// Server is the HTTP front of the storefront core.
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	carts    *cart.Service
	catalog  *catalog.Service
	orders   *orders.Service
	payments *payment.Service
	hub      *cartsync.Hub
}

// NewServer wires middleware and routes around the injected services.
func NewServer(
	logger *zap.Logger,
	allowedOrigin string,
	carts *cart.Service,
	catalogSvc *catalog.Service,
	ordersSvc *orders.Service,
	payments *payment.Service,
	hub *cartsync.Hub,
) *Server {
	server := &Server{
		logger:   logger.Named("api"),
		carts:    carts,
		catalog:  catalogSvc,
		orders:   ordersSvc,
		payments: payments,
		hub:      hub,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{allowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start runs the HTTP server.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	apiGroup := s.router.Group("/api")
	apiGroup.Use(s.sessionMiddleware())
	{
		apiGroup.GET("/health", s.healthCheck)
		apiGroup.GET("/metrics", gin.WrapH(promhttp.Handler()))

		apiGroup.GET("/products", s.listProducts)
		apiGroup.GET("/products/:id", s.getProduct)

		apiGroup.GET("/cart", s.getCart)
		apiGroup.POST("/cart/add", s.addToCart)
		apiGroup.POST("/cart/remove", s.removeFromCart)
		apiGroup.POST("/cart/clear", s.clearCart)

		apiGroup.GET("/ws/cart", s.serveCartWS)

		apiGroup.POST("/orders", s.createOrder)
		apiGroup.GET("/orders", s.listOrders)

		apiGroup.POST("/payment/create", s.createPayment)
		apiGroup.POST("/payment/webhook", s.paymentWebhook)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// serveCartWS upgrades the connection and hands it to the hub. The
// session must already exist: a connection without a cookie has no cart
// to follow, so it is refused before the upgrade.
func (s *Server) serveCartWS(c *gin.Context) {
	sid, err := c.Cookie(sessionCookieName)
	if err != nil || sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "session not found"})
		return
	}
	s.hub.ServeWS(c.Writer, c.Request, sid)
}
