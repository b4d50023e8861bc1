package lottery

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/securitylog"
)

const (
	MessageNoPlayable   = "No playable draws."
	MessageNoResults    = "Next round of lottery yet to play. Check you have playable draws."
	MessagePlayedPurged = "All played draws deleted."
)

// DrawForm is the six positional number fields of a draw. Pointers keep 0 a
// valid, present value.
type DrawForm struct {
	No1 *int `json:"no1" binding:"required"`
	No2 *int `json:"no2" binding:"required"`
	No3 *int `json:"no3" binding:"required"`
	No4 *int `json:"no4" binding:"required"`
	No5 *int `json:"no5" binding:"required"`
	No6 *int `json:"no6" binding:"required"`
}

func (f *DrawForm) Numbers() []int {
	return []int{*f.No1, *f.No2, *f.No3, *f.No4, *f.No5, *f.No6}
}

type Handler struct {
	store      *Store
	middleware *auth.AuthMiddleware
	security   *securitylog.Log
	log        *zap.Logger
}

func NewHandler(
	store *Store,
	middleware *auth.AuthMiddleware,
	security *securitylog.Log,
	log *zap.Logger,
) *Handler {
	return &Handler{
		store:      store,
		middleware: middleware,
		security:   security,
		log:        log,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/lottery", h.middleware.RequireRole(auth.RoleUser))
	g.GET("", h.Index)
	g.POST("/draws", h.AddDraw)
	g.GET("/draws", h.ViewDraws)
	g.GET("/results", h.CheckDraws)
	g.POST("/play-again", h.PlayAgain)
}

func principal(c *gin.Context) *auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

func (h *Handler) fail(c *gin.Context, err error) {
	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Error(), "position": invalid.Position})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
	default:
		h.log.Error("lottery request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": principal(c).FirstName}})
}

func (h *Handler) AddDraw(c *gin.Context) {
	var form DrawForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.security.HTTPError("Bad request", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bad request", "error": err.Error()})
		return
	}

	draw, err := h.store.SubmitDraw(c.Request.Context(), principal(c), form.Numbers())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Draw %s submitted.", draw.Draw),
		"data":    draw,
	})
}

func (h *Handler) ViewDraws(c *gin.Context) {
	draws, err := h.store.ListUnplayed(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(draws) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": MessageNoPlayable, "data": draws})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draws})
}

func (h *Handler) CheckDraws(c *gin.Context) {
	draws, err := h.store.ListPlayed(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(draws) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": MessageNoResults, "data": draws})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draws})
}

func (h *Handler) PlayAgain(c *gin.Context) {
	n, err := h.store.PurgePlayed(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": MessagePlayedPurged, "data": gin.H{"deleted": n}})
}
