package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/securitylog"
)

const (
	sessionContextKey   = "auth.session_id"
	principalContextKey = "auth.principal"
)

type AuthMiddleware struct {
	config   *config.AuthConfig
	service  *Service
	security *securitylog.Log
	log      *zap.Logger
}

func NewAuthMiddleware(
	config *config.AuthConfig,
	service *Service,
	security *securitylog.Log,
	log *zap.Logger,
) *AuthMiddleware {
	return &AuthMiddleware{
		config:   config,
		service:  service,
		security: security,
		log:      log,
	}
}

func (m *AuthMiddleware) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", m.config.SecureCookies, true)
}

// Session makes sure every request carries a session id cookie. The id scopes
// the login attempt counter and is bound into issued tokens.
func (m *AuthMiddleware) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(m.config.SessionCookie)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			m.setCookie(c, m.config.SessionCookie, sid, int(m.config.SessionTTL.Seconds()))
		}
		c.Set(sessionContextKey, sid)
		c.Next()
	}
}

// Authenticate resolves the token cookie (or bearer header) into a Principal.
// Requests without a valid token continue anonymously.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.tokenFrom(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.service.ValidateToken(token)
		if err != nil {
			m.log.Debug("rejected token", zap.Error(err))
			c.Next()
			return
		}
		if claims.SessionID != SessionID(c) {
			m.log.Debug("token bound to another session", zap.Uint("user_id", claims.UserID))
			c.Next()
			return
		}

		user, err := m.service.GetUser(c.Request.Context(), claims.UserID)
		if errors.Is(err, ErrUserNotFound) {
			c.Next()
			return
		}
		if err != nil {
			m.log.Error("failed to load authenticated user", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		c.Set(principalContextKey, PrincipalFor(user, claims.SessionID))
		c.Next()
	}
}

func (m *AuthMiddleware) tokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(m.config.TokenCookie); err == nil && token != "" {
		return token
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// LoginRequired rejects anonymous callers with 401.
func (m *AuthMiddleware) LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			m.security.AnonymousAccess(c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Please log in to access this page."})
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous callers with 401 and callers holding another
// role with 403.
func (m *AuthMiddleware) RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			m.security.AnonymousAccess(c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Please log in to access this page."})
			return
		}
		if d := Authorize(p, role); !d.Allowed {
			m.security.UnauthorizedAccess(p.Actor(), c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) SetToken(c *gin.Context, token string) {
	m.setCookie(c, m.config.TokenCookie, token, int(m.config.TokenExpiration.Seconds()))
}

func (m *AuthMiddleware) ClearToken(c *gin.Context) {
	m.setCookie(c, m.config.TokenCookie, "", -1)
}

func SessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}

func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}
