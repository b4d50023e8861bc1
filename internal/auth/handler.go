package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/securitylog"
)

type Handler struct {
	service    *Service
	middleware *AuthMiddleware
	security   *securitylog.Log
	log        *zap.Logger
}

type registerRequest struct {
	Email           string `json:"email" binding:"required,email,max=100"`
	FirstName       string `json:"firstname" binding:"required"`
	LastName        string `json:"lastname" binding:"required"`
	Phone           string `json:"phone" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	PinKey          string `json:"pin_key"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,max=128"`
	Pin      string `json:"pin" binding:"required,max=10"`
	// Recaptcha is checked by the fronting proxy, if at all.
	Recaptcha string `json:"recaptcha"`
}

func NewHandler(
	service *Service,
	middleware *AuthMiddleware,
	security *securitylog.Log,
	log *zap.Logger,
) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		security:   security,
		log:        log,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/register", h.Register)
	r.GET("/login", h.LoginState)
	r.POST("/login", h.Login)

	authed := r.Group("/", h.middleware.LoginRequired())
	authed.GET("/logout", h.Logout)
	authed.GET("/profile", h.Profile)
	authed.GET("/account", h.Account)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.security.HTTPError("Bad request", c.ClientIP())
	c.JSON(http.StatusBadRequest, gin.H{"message": "Bad request", "error": err.Error()})
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	enrollment, err := h.service.Register(c.Request.Context(), Registration{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		PinKey:          req.PinKey,
	}, c.ClientIP())
	switch {
	case errors.Is(err, ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"message": "Email address already exists"})
		return
	case errors.Is(err, ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Passwords do not match"})
		return
	case errors.Is(err, ErrInvalidPinKey):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	case err != nil:
		h.log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		return
	}

	data := gin.H{"user": enrollment.User.View()}
	if enrollment.PinKey != "" {
		data["pin_key"] = enrollment.PinKey
		data["provisioning_url"] = enrollment.ProvisioningURL
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "data": data})
}

// LoginState reports the attempt counter of the caller's session.
func (h *Handler) LoginState(c *gin.Context) {
	state, err := h.service.LoginState(c.Request.Context(), SessionID(c))
	if err != nil {
		h.log.Error("failed to read login state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	if state.Locked {
		c.JSON(http.StatusForbidden, gin.H{"message": MessageAttemptsExceeded, "data": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	sid := SessionID(c)
	user, err := h.service.Login(c.Request.Context(), sid, Credentials{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Pin,
	}, c.ClientIP())

	var failure *LoginFailure
	switch {
	case errors.Is(err, ErrLockedOut):
		c.JSON(http.StatusForbidden, gin.H{"message": MessageAttemptsExceeded})
		return
	case errors.As(err, &failure):
		status := http.StatusUnauthorized
		if failure.Remaining == 0 {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"message": failure.Error()})
		return
	case err != nil:
		h.log.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	principal := PrincipalFor(user, sid)
	token, err := h.service.GenerateToken(principal)
	if err != nil {
		h.log.Error("failed to issue token", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	h.middleware.SetToken(c, token)

	redirect := "/profile"
	if user.Role == RoleAdmin {
		redirect = "/admin"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data": gin.H{
			"user":     user.View(),
			"token":    token,
			"redirect": redirect,
		},
	})
}

func (h *Handler) Logout(c *gin.Context) {
	p, _ := PrincipalFrom(c)
	h.service.Logout(p, c.ClientIP())
	h.middleware.ClearToken(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) Profile(c *gin.Context) {
	p, _ := PrincipalFrom(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": p.FirstName}})
}

func (h *Handler) Account(c *gin.Context) {
	p, _ := PrincipalFrom(c)
	user, err := h.service.GetUser(c.Request.Context(), p.UserID)
	if err != nil {
		h.log.Error("failed to load account", zap.Uint("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"acc_no":    user.ID,
		"email":     user.Email,
		"firstname": user.FirstName,
		"lastname":  user.LastName,
		"phone":     user.Phone,
	}})
}
