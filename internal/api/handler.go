package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pterodactyl-service/internal/panel"
	"pterodactyl-service/internal/service"
	"pterodactyl-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderLocker serializes lifecycle operations per order
type OrderLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Handler contains HTTP handlers
type Handler struct {
	lifecycle *service.LifecycleService
	locker    OrderLocker
}

// NewHandler creates a new HTTP handler. locker may be nil; lifecycle
// operations then rely on the database guards alone.
func NewHandler(lifecycle *service.LifecycleService, locker OrderLocker) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		locker:    locker,
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

	router.GET("/pterodactyl/:id/login-to-panel", h.loginToPanel)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/packages/:id/checkout-config", h.checkoutConfig)

		orders := v1.Group("/orders/:id")
		orders.Use(h.orderLock())
		{
			orders.POST("/provision", h.provision)
			orders.POST("/renew", h.renew)
			orders.POST("/cancel", h.cancel)
			orders.POST("/cancel-undo", h.undoCancel)
			orders.POST("/upgrade", h.upgrade)
			orders.POST("/suspend", h.suspend)
			orders.POST("/unsuspend", h.unsuspend)
			orders.POST("/terminate", h.terminate)
			orders.POST("/password", h.changePassword)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkoutConfig returns the checkout form schema for a package
func (h *Handler) checkoutConfig(c *gin.Context) {
	packageID, ok := pathID(c)
	if !ok {
		return
	}

	fields, err := h.lifecycle.CheckoutConfig(c.Request.Context(), packageID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

type provisionRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// provision creates the remote server for an order
func (h *Handler) provision(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	// User details are only needed on first contact, so the body is optional.
	var req provisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	server, err := h.lifecycle.Provision(c.Request.Context(), orderID, service.UserInfo{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"server": server})
}

type renewRequest struct {
	Frequency int `json:"frequency" binding:"required"`
}

// renew generates a renewal invoice for an order
func (h *Handler) renew(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment, err := h.lifecycle.Renew(c.Request.Context(), orderID, req.Frequency)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

type cancelRequest struct {
	CancelledAt  time.Time `json:"cancelled_at" binding:"required"`
	CancelReason string    `json:"cancel_reason" binding:"max=255"`
}

// cancel cancels an order, or generates the cancellation-fee invoice when
// the package defines one
func (h *Handler) cancel(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.lifecycle.Cancel(c.Request.Context(), orderID, req.CancelledAt, req.CancelReason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// undoCancel reverts a cancelled order to active
func (h *Handler) undoCancel(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.UndoCancel(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

type upgradeRequest struct {
	PackageID int64 `json:"package_id" binding:"required"`
}

// upgrade rebuilds the server's resources to match a new package
func (h *Handler) upgrade(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.lifecycle.Upgrade(c.Request.Context(), orderID, req.PackageID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "upgraded"})
}

func (h *Handler) suspend(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Suspend(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

func (h *Handler) unsuspend(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Unsuspend(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

func (h *Handler) terminate(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Terminate(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "terminated"})
}

type changePasswordRequest struct {
	Password  string `json:"password" binding:"required,min=8"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// changePassword pushes new panel credentials for the order's owner
func (h *Handler) changePassword(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	info := service.UserInfo{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := h.lifecycle.ChangePassword(c.Request.Context(), orderID, info, req.Password); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

// loginToPanel redirects the caller into the panel via SSO
func (h *Handler) loginToPanel(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	url, err := h.lifecycle.LoginURL(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// writeError maps typed service errors to HTTP responses. Panel failures
// surface the remote-supplied message instead of an unhandled fault.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.StateConflictError
		notFoundErr   *service.NotFoundError
		apiErr        *panel.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// orderLock holds a short Redis lock keyed by order for the duration of a
// lifecycle call, so concurrent requests for the same order cannot
// interleave panel calls. A second request gets 409 instead of queueing.
func (h *Handler) orderLock() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.locker == nil {
			c.Next()
			return
		}

		key := "order:" + c.Param("id")
		acquired, err := h.locker.AcquireLock(c.Request.Context(), key, 30*time.Second)
		if err != nil {
			// Lock service unavailable; the database guards still hold.
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "another operation is in progress for this order",
			})
			return
		}
		defer func() {
			if err := h.locker.ReleaseLock(c.Request.Context(), key); err != nil {
				util.GetLogger().Warn("Failed to release order lock",
					zap.String("key", key),
					zap.Error(err))
			}
		}()

		c.Next()
	}
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
