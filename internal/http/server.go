package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"marketplace/internal/service"
)

// Services зависимости HTTP-слоя
type Services struct {
	Products  *service.ProductService
	Carts     *service.CartService
	Addresses *service.AddressService
	Orders    *service.OrderService
}

// Options настройки сервера
type Options struct {
	JWTSecret   string
	AdminAPIKey string
	CORSOrigins []string
	Logger      *slog.Logger
	// OrderFeed websocket-лента заказов для админки; nil отключает маршрут
	OrderFeed http.Handler
}

type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	carts     *service.CartService
	addresses *service.AddressService
	orders    *service.OrderService
	feed      http.Handler
	opts      Options
	log       *slog.Logger
}

func NewServer(svc Services, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	registerValidators()

	r := gin.New()
	r.Use(requestLogger(log), gin.Recovery(), cors.New(corsConfig(opts.CORSOrigins)))
	s := &Server{
		engine:    r,
		products:  svc.Products,
		carts:     svc.Carts,
		addresses: svc.Addresses,
		orders:    svc.Orders,
		feed:      opts.OrderFeed,
		opts:      opts,
		log:       log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := s.engine.Group("/api")
	user := requireUser(s.opts.JWTSecret)
	admin := requireAdminKey(s.opts.AdminAPIKey)
	{
		products := api.Group("/products")
		products.GET("", s.listProducts)
		products.GET(":id", s.getProduct)
		products.POST("", admin, s.createProduct)
		products.PUT(":id", admin, s.updateProduct)
		products.DELETE(":id", admin, s.deleteProduct)

		cart := api.Group("/cart", user)
		cart.GET("", s.listCart)
		cart.POST("", s.addToCart)
		cart.DELETE(":id", s.removeFromCart)

		addresses := api.Group("/addresses", user)
		addresses.GET("", s.listAddresses)
		addresses.POST("", s.createAddress)

		orders := api.Group("/orders")
		orders.POST("", user, s.createOrder)
		orders.GET("", user, s.listUserOrders)
		orders.GET(":orderId", user, s.getUserOrder)
		orders.PATCH(":orderId", admin, s.updateOrderStatus)

		adm := orders.Group("/admin", admin)
		adm.GET("", s.listAllOrders)
		adm.GET("/stats", s.orderStats)
		adm.GET("/export", s.exportOrders)
		adm.PATCH("/:id", s.adminUpdateOrderStatus)
		adm.PATCH("/:id/payment", s.updatePaymentStatus)
		adm.DELETE("/:id", s.deleteOrder)
		if s.feed != nil {
			adm.GET("/ws", gin.WrapH(s.feed))
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
