package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/service"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the business services exposed over HTTP
type Services struct {
	Users    *service.UserService
	Access   *service.AccessControl
	RBAC     *service.RBACService
	Clients  *service.ClientService
	Products *service.ProductService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Carts    *service.CartService
}

// CookieSettings controls the session cookie
type CookieSettings struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	cookie CookieSettings
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cookie CookieSettings, checks map[string]Pinger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "auth_token"
	}
	return &Handler{
		svc:    svc,
		cookie: cookie,
		checks: checks,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/logout", h.logout)
		auth.GET("/validate-token", h.RequireSession(), h.validateToken)
		auth.GET("/me/access", h.RequireSession(), h.myAccess)
	}

	session := v1.Group("", h.RequireSession())

	roles := session.Group("/roles")
	{
		roles.GET("", h.RequirePermission(models.PermRoleView), h.listRoles)
		roles.POST("", h.RequirePermission(models.PermRoleCreate), h.createRole)
		roles.GET("/:id", h.RequirePermission(models.PermRoleView), h.getRole)
		roles.PUT("/:id", h.RequirePermission(models.PermRoleUpdate), h.updateRole)
		roles.PUT("/:id/permissions", h.RequirePermission(models.PermRoleUpdate), h.assignRolePermissions)
		roles.PATCH("/:id/soft-delete", h.RequirePermission(models.PermRoleDelete), h.softDeleteRole)
		roles.PATCH("/:id/activate", h.RequirePermission(models.PermRoleUpdate), h.activateRole)
		roles.DELETE("/:id", h.RequirePermission(models.PermRoleDelete), h.deleteRole)
	}

	perms := session.Group("/permissions")
	{
		perms.GET("", h.RequirePermission(models.PermPermissionView), h.listPermissions)
		perms.POST("", h.RequirePermission(models.PermPermissionCreate), h.createPermission)
		perms.GET("/:id", h.RequirePermission(models.PermPermissionView), h.getPermission)
		perms.PUT("/:id", h.RequirePermission(models.PermPermissionUpdate), h.updatePermission)
		perms.PATCH("/:id/soft-delete", h.RequirePermission(models.PermPermissionDelete), h.softDeletePermission)
		perms.PATCH("/:id/activate", h.RequirePermission(models.PermPermissionUpdate), h.activatePermission)
		perms.DELETE("/:id", h.RequirePermission(models.PermPermissionDelete), h.deletePermission)
	}

	users := session.Group("/users")
	{
		users.GET("", h.RequirePermission(models.PermUserView), h.listUsers)
		users.POST("", h.RequirePermission(models.PermUserCreate), h.createUser)
		users.GET("/:id", h.RequirePermission(models.PermUserView), h.getUser)
		users.PUT("/:id", h.RequirePermission(models.PermUserUpdate), h.updateUser)
		users.GET("/:id/roles", h.RequirePermission(models.PermUserView), h.userRoles)
		users.PUT("/:id/roles", h.RequirePermission(models.PermUserUpdate), h.assignUserRoles)
		users.PUT("/:id/client", h.RequirePermission(models.PermUserUpdate), h.linkUserClient)
		users.PATCH("/:id/soft-delete", h.RequirePermission(models.PermUserDelete), h.softDeleteUser)
		users.PATCH("/:id/activate", h.RequirePermission(models.PermUserUpdate), h.activateUser)
		users.DELETE("/:id", h.RequirePermission(models.PermUserDelete), h.deleteUser)
	}

	clients := session.Group("/clients")
	{
		clients.GET("", h.RequirePermission(models.PermClientView), h.listClients)
		clients.POST("", h.RequirePermission(models.PermClientCreate), h.createClient)
		clients.GET("/:id", h.RequirePermission(models.PermClientView), h.getClient)
		clients.PUT("/:id", h.RequirePermission(models.PermClientUpdate), h.updateClient)
		clients.PATCH("/:id/soft-delete", h.RequirePermission(models.PermClientDelete), h.softDeleteClient)
		clients.PATCH("/:id/activate", h.RequirePermission(models.PermClientUpdate), h.activateClient)
		clients.DELETE("/:id", h.RequirePermission(models.PermClientDelete), h.deleteClient)
	}

	products := session.Group("/products")
	{
		products.GET("", h.RequirePermission(models.PermProductView), h.listProducts)
		products.POST("", h.RequirePermission(models.PermProductCreate), h.createProduct)
		products.GET("/:id", h.RequirePermission(models.PermProductView), h.getProduct)
		products.PUT("/:id", h.RequirePermission(models.PermProductUpdate), h.updateProduct)
		products.PATCH("/:id/soft-delete", h.RequirePermission(models.PermProductDelete), h.softDeleteProduct)
		products.PATCH("/:id/activate", h.RequirePermission(models.PermProductUpdate), h.activateProduct)
		products.DELETE("/:id", h.RequirePermission(models.PermProductDelete), h.deleteProduct)
	}
	v1.GET("/storefront/:clientId/products", h.storefront)

	v1.POST("/orders/pending", h.OptionalSession(), h.createPendingOrder)
	orders := session.Group("/orders")
	{
		orders.POST("", h.RequirePermission(models.PermOrderUpdate), h.createOrder)
		orders.GET("", h.RequirePermission(models.PermOrderView), h.listOrders)
		orders.GET("/mine", h.listMyOrders)
		orders.GET("/:id", h.getOrder)
		orders.POST("/:id/verify-payment", h.RequirePermission(models.PermOrderUpdate), h.verifyPayment)
		orders.PATCH("/:id/status", h.RequirePermission(models.PermOrderUpdate), h.updateOrderStatus)
	}

	carts := v1.Group("/carts/:clientId", h.OptionalSession())
	{
		carts.GET("", h.getCart)
		carts.POST("/items", h.addCartItem)
		carts.PATCH("/items", h.updateCartItem)
		carts.DELETE("/items/:productId", h.removeCartItem)
		carts.DELETE("", h.clearCart)
		carts.POST("/merge", h.RequireSession(), h.mergeCart)
	}

	payment := v1.Group("/payment")
	{
		payment.POST("/start", h.startPayment)
		payment.POST("/notify", h.notifyPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.checks {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
