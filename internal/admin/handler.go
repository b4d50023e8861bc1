// Package admin serves the administrator console: user listing, winning draw
// management, round resolution and the security log tail.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/lottery"
	"github.com/elskow/lottery-web/internal/securitylog"
)

const (
	MessageDrawPublished = "New winning draw added."
	MessageNoWinningDraw = "No winning draw exists. Please add winning draw."
	MessageNoWinners     = "No winners."
	MessageNoEntries     = "No user draws entered."
	MessageRoundExpired  = "Current winning draw expired. Add new winning draw for next round."
)

type Handler struct {
	users      *auth.Service
	store      *lottery.Store
	engine     *lottery.Engine
	metrics    *lottery.MetricsCollector
	security   *securitylog.Log
	middleware *auth.AuthMiddleware
	log        *zap.Logger
	tailSize   int
}

func NewHandler(
	users *auth.Service,
	store *lottery.Store,
	engine *lottery.Engine,
	metrics *lottery.MetricsCollector,
	security *securitylog.Log,
	middleware *auth.AuthMiddleware,
	log *zap.Logger,
	tailSize int,
) *Handler {
	if tailSize <= 0 {
		tailSize = 10
	}
	return &Handler{
		users:      users,
		store:      store,
		engine:     engine,
		metrics:    metrics,
		security:   security,
		middleware: middleware,
		log:        log,
		tailSize:   tailSize,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/admin", h.middleware.RequireRole(auth.RoleAdmin))
	g.GET("", h.Index)
	g.GET("/users", h.ViewAllUsers)
	g.POST("/winning-draw", h.CreateWinningDraw)
	g.GET("/winning-draw", h.ViewWinningDraw)
	g.POST("/run-lottery", h.RunLottery)
	g.GET("/logs", h.Logs)
	g.GET("/metrics", h.RoundMetrics)
}

func principal(c *gin.Context) *auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

func (h *Handler) fail(c *gin.Context, err error) {
	var invalid *lottery.ValidationError
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Error(), "position": invalid.Position})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
	default:
		h.log.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": principal(c).FirstName}})
}

func (h *Handler) ViewAllUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	views := make([]auth.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].View())
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (h *Handler) CreateWinningDraw(c *gin.Context) {
	var form lottery.DrawForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.security.HTTPError("Bad request", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bad request", "error": err.Error()})
		return
	}

	draw, err := h.store.PublishWinningDraw(c.Request.Context(), principal(c), form.Numbers())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": MessageDrawPublished, "data": draw})
}

func (h *Handler) ViewWinningDraw(c *gin.Context) {
	draw, err := h.store.WinningDraw(c.Request.Context(), principal(c))
	if errors.Is(err, lottery.ErrDrawNotFound) {
		c.JSON(http.StatusOK, gin.H{"message": MessageNoWinningDraw, "data": nil})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draw})
}

func (h *Handler) RunLottery(c *gin.Context) {
	report, err := h.engine.RunRound(c.Request.Context(), principal(c))
	switch {
	case errors.Is(err, lottery.ErrNoActiveRound):
		c.JSON(http.StatusOK, gin.H{"message": MessageRoundExpired, "data": nil})
		return
	case errors.Is(err, lottery.ErrNoEntries):
		c.JSON(http.StatusOK, gin.H{"message": MessageNoEntries, "data": nil})
		return
	case err != nil:
		h.fail(c, err)
		return
	}

	if len(report.Winners) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": MessageNoWinners, "data": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (h *Handler) Logs(c *gin.Context) {
	lines, err := h.security.Tail(h.tailSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lines})
}

func (h *Handler) RoundMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.metrics.All()})
}
