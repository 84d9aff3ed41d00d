package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/config"
	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/orderapi"
	"github.com/example/bookadmin/pkg/orderview"
	"github.com/example/bookadmin/pkg/repository"
	"github.com/example/bookadmin/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	actorHeader     = "X-Admin-User"
	defaultActor    = "admin"
)

// OrderDesk is the order service as the gateway uses it.
type OrderDesk interface {
	GetOrderView(ctx context.Context, id string) (*models.OrderView, error)
	UpdateStatus(ctx context.Context, id, status, actor string) (*models.OrderView, error)
	Invoice(ctx context.Context, id string) (*service.InvoiceResult, error)
	InvoiceHTML(ctx context.Context, id string) (string, error)
	InvoicePDF(ctx context.Context, id string) ([]byte, error)
	History(ctx context.Context, id string, limit int64) ([]*repository.AuditLog, error)
}

type Gateway struct {
	config  *config.GatewayConfig
	desk    OrderDesk
	metrics http.Handler
	logger  *zap.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewGateway builds the router. metricsHandler may be nil.
func NewGateway(cfg *config.GatewayConfig, desk OrderDesk, metricsHandler http.Handler, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(credentialMiddleware())

	g := &Gateway{
		config:  cfg,
		desk:    desk,
		metrics: metricsHandler,
		logger:  logger,
		router:  router,
	}
	g.server = &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: router}
	g.SetupRoutes()
	return g
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.metrics != nil {
		g.router.GET("/metrics", gin.WrapH(g.metrics))
	}

	v1 := g.router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/status", g.updateOrderStatus)
			orders.GET("/:id/invoice", g.getInvoice)
			orders.GET("/:id/invoice.html", g.getInvoiceHTML)
			orders.GET("/:id/invoice.pdf", g.getInvoicePDF)
			orders.GET("/:id/history", g.getHistory)
		}
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func (g *Gateway) getOrder(c *gin.Context) {
	view, err := g.desk.GetOrderView(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"status\": \"...\"}"})
		return
	}

	actor := c.GetHeader(actorHeader)
	if actor == "" {
		actor = defaultActor
	}

	view, err := g.desk.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actor)
	if err != nil {
		g.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) getInvoice(c *gin.Context) {
	result, err := g.desk.Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) getInvoiceHTML(c *gin.Context) {
	html, err := g.desk.InvoiceHTML(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.abort(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (g *Gateway) getInvoicePDF(c *gin.Context) {
	id := c.Param("id")
	pdf, err := g.desk.InvoicePDF(c.Request.Context(), id)
	if err != nil {
		g.abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "invoice-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (g *Gateway) getHistory(c *gin.Context) {
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	logs, err := g.desk.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		g.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}

// abort writes the error body the admin UI shows inline.
func (g *Gateway) abort(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, orderview.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, orderapi.ErrUpstreamWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, orderapi.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPDFUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, orderapi.ErrUpstreamReadFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// credentialMiddleware forwards the caller's bearer token to outbound calls.
func credentialMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.BearerFromHeader(c.GetHeader("Authorization")); token != "" {
			c.Request = c.Request.WithContext(auth.WithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
