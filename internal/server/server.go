// Package server exposes the booking engine over HTTP for the
// dispatcher dashboard and integration tooling.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourtanker/orderflow/internal/cache"
	"github.com/yourtanker/orderflow/internal/loyalty"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/store"
)

// Server wires the order store and loyalty engine into a gin router.
type Server struct {
	store   *store.Store
	loyalty *loyalty.Engine
	cache   *cache.Cache
	log     *slog.Logger
	router  *gin.Engine
}

// New builds the router. cache may be nil when promo persistence is
// not wanted (tests).
func New(s *store.Store, l *loyalty.Engine, c *cache.Cache, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{store: s, loyalty: l, cache: c, log: log}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), srv.logRequests)

	api := r.Group("/api")
	api.POST("/orders", srv.createOrder)
	api.GET("/orders", srv.listOrders)
	api.POST("/orders/:id/advance", srv.advanceOrder)
	api.GET("/loyalty", srv.loyaltyStatus)
	api.POST("/promo/claim", srv.claimPromo)
	api.POST("/promo/apply", srv.applyPromo)

	srv.router = r
	return srv
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error { return s.router.Run(addr) }

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

type createOrderRequest struct {
	order.Draft
	// PromoCode, when present, is validated against the active code
	// and redeemed on success, making this booking free.
	PromoCode string `json:"promoCode"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The free flag is derived from promo redemption, never taken from
	// the client.
	req.IsFree = false
	if req.CustomerKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerKey is required"})
		return
	}
	if _, err := order.ParseDeliveryType(string(req.DeliveryType)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := order.ParseQuantity(string(req.Quantity)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PromoCode != "" {
		if outcome := s.loyalty.Validate(req.PromoCode); outcome != loyalty.OutcomeValid {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "promo code rejected",
				"outcome": outcome.String(),
			})
			return
		}
		s.loyalty.Redeem()
		s.persistActiveCode(c)
		req.IsFree = true
	}

	rec, err := s.store.Create(c.Request.Context(), req.Draft)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) listOrders(c *gin.Context) {
	recs := s.store.List(c.Query("customer"))
	active, completed := order.Partition(recs)
	c.JSON(http.StatusOK, gin.H{
		"orders":    recs,
		"active":    len(active),
		"completed": len(completed),
	})
}

func (s *Server) advanceOrder(c *gin.Context) {
	rec, err := s.store.Advance(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrTransitionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case order.IsIllegalTransition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// customerKey extracts the required customer query parameter. Loyalty
// state is per customer; an empty key would count every customer's
// orders toward one meter.
func customerKey(c *gin.Context) (string, bool) {
	key := c.Query("customer")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer is required"})
		return "", false
	}
	return key, true
}

func (s *Server) loyaltyStatus(c *gin.Context) {
	key, ok := customerKey(c)
	if !ok {
		return
	}
	count := len(s.store.List(key))
	c.JSON(http.StatusOK, gin.H{
		"orders":    count,
		"progress":  s.loyalty.Progress(count),
		"claimable": s.loyalty.MilestoneReached(count),
		"hasActive": s.loyalty.ActiveCode() != "",
	})
}

func (s *Server) claimPromo(c *gin.Context) {
	key, ok := customerKey(c)
	if !ok {
		return
	}
	count := len(s.store.List(key))
	code, err := s.loyalty.Claim(count)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.persistActiveCode(c)
	c.JSON(http.StatusOK, gin.H{"code": code})
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

func (s *Server) applyPromo(c *gin.Context) {
	var req applyPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome := s.loyalty.Validate(req.Code)
	c.JSON(http.StatusOK, gin.H{
		"outcome": outcome.String(),
		"valid":   outcome == loyalty.OutcomeValid,
	})
}

// persistActiveCode mirrors the engine's active code to the cache so a
// restart does not forget an issued or redeemed reward.
func (s *Server) persistActiveCode(c *gin.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetActiveCode(c.Request.Context(), s.loyalty.ActiveCode()); err != nil {
		s.log.Warn("persisting active promo code failed", "err", err)
	}
}
