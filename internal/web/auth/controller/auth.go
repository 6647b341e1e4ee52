// Package controller exposes login, sessions and user management over gin.
package controller

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/internal/web/auth/service"
	"github.com/Laisky/agency-site/library"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/log"
)

const (
	// TokenCookie carries the session token for browser clients
	TokenCookie = "token"

	ctxKeySessionID = "agency_session_id"
	ctxKeyRole      = "agency_role"
)

// Verifier checks a captcha token for the current request
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Auth handlers
type Auth struct {
	svc     *service.Auth
	captcha Verifier
}

// New create auth controller, captcha may be nil to skip verification
func New(svc *service.Auth, captcha Verifier) *Auth {
	return &Auth{svc: svc, captcha: captcha}
}

// RegisterAuth mounts login and session routes
func (a *Auth) RegisterAuth(g *gin.RouterGroup) {
	g.POST("/login", a.Login)
	g.POST("/login/verify", a.VerifyLogin)

	authed := g.Group("", a.Middleware())
	authed.POST("/logout", a.Logout)
	authed.GET("/me", a.Me)
	authed.POST("/password", a.ChangePassword)
}

// RegisterAdmin mounts user management, g must already run Middleware
func (a *Auth) RegisterAdmin(g *gin.RouterGroup) {
	users := g.Group("/users", RequireRole(model.RoleAdmin))
	users.GET("", a.ListUsers)
	users.POST("", a.CreateUser)
	users.PUT("/:id", a.UpdateUser)
	users.DELETE("/:id", a.DeleteUser)
}

func requestToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return library.StripBearerPrefix(h)
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}

	return ""
}

// Middleware authenticates the bearer header or token cookie and stores
// the actor on the request
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			webutil.AbortWithError(c, apperr.Unauthorized("login required"))
			return
		}

		user, claims, err := a.svc.Authenticate(c, token)
		if err != nil {
			webutil.AbortWithError(c, err)
			return
		}

		webutil.SetActor(c, service.Actor(user))
		c.Set(ctxKeySessionID, claims.SessionID)
		c.Set(ctxKeyRole, user.Role)
		c.Next()
	}
}

// RequireRole rejects users whose role is not in roles
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ctxKeyRole)
		role, _ := v.(model.Role)
		if !slices.Contains(roles, role) {
			webutil.AbortWithError(c, apperr.Forbidden("role `%s` is not allowed", role))
			return
		}

		c.Next()
	}
}

// CanWrite admins and editors may change content
func CanWrite() gin.HandlerFunc {
	return RequireRole(model.RoleAdmin, model.RoleEditor)
}

func setTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := -1
	if token != "" {
		maxAge = int(time.Until(expiresAt).Seconds())
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(TokenCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

// Login POST /login, mails a login code
func (a *Auth) Login(c *gin.Context) {
	in := new(dto.LoginInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	if a.captcha != nil {
		if err := a.captcha.Verify(c, in.TurnstileToken); err != nil {
			webutil.AbortWithError(c, apperr.Forbidden("captcha rejected: %v", err))
			return
		}
	}

	challenge, err := a.svc.Login(c, in)
	if err != nil {
		a.abortLogin(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (a *Auth) abortLogin(c *gin.Context, err error) {
	masked := maskLoginError(err)
	if masked != err {
		webutil.RequestLogger(c, log.Logger).Warn("login failed", zap.Error(err))
	}

	webutil.AbortWithError(c, masked)
}

// VerifyLogin POST /login/verify, opens the session
func (a *Auth) VerifyLogin(c *gin.Context) {
	in := new(dto.VerifyInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	res, err := a.svc.VerifyLogin(c, in)
	if err != nil {
		a.abortLogin(c, err)
		return
	}

	setTokenCookie(c, res.Token, res.ExpiresAt)
	c.JSON(http.StatusOK, res)
}

func sessionID(c *gin.Context) string {
	return c.GetString(ctxKeySessionID)
}

func (a *Auth) Logout(c *gin.Context) {
	actor, _ := webutil.GetActor(c)
	if err := a.svc.Logout(c, actor, sessionID(c)); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	setTokenCookie(c, "", time.Time{})
	c.Status(http.StatusNoContent)
}

func (a *Auth) Me(c *gin.Context) {
	actor, _ := webutil.GetActor(c)
	user, err := a.svc.Me(c, actor.ID)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword POST /password, other sessions are logged out
func (a *Auth) ChangePassword(c *gin.Context) {
	in := new(dto.PasswordInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	if err := a.svc.ChangePassword(c, actor, sessionID(c), in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *Auth) ListUsers(c *gin.Context) {
	users, err := a.svc.ListUsers(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (a *Auth) CreateUser(c *gin.Context) {
	in := new(dto.UserInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	user, err := a.svc.CreateUser(c, actor, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (a *Auth) UpdateUser(c *gin.Context) {
	in := new(dto.UserUpdate)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	user, err := a.svc.UpdateUser(c, actor, c.Param("id"), in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (a *Auth) DeleteUser(c *gin.Context) {
	actor, _ := webutil.GetActor(c)
	if err := a.svc.DeleteUser(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
