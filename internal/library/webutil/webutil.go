// Package webutil request helpers shared by the gin controllers.
package webutil

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/metrics"
)

const (
	ctxKeyActor = "agency_actor"

	// VisitorCookie anonymous visitor id used for likes
	VisitorCookie = "visitor_id"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SetActor stores the authenticated user on the request
func SetActor(c *gin.Context, actor events.Actor) {
	c.Set(ctxKeyActor, actor)
}

// GetActor returns the authenticated user, ok is false for anonymous requests
func GetActor(c *gin.Context) (events.Actor, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return events.Actor{}, false
	}

	actor, ok := v.(events.Actor)
	return actor, ok
}

// Lang negotiates the response language from `?lang=` and Accept-Language
func Lang(c *gin.Context) i18n.Lang {
	return i18n.Negotiate(c.Query("lang"), c.GetHeader("Accept-Language"))
}

// Paging parses `page` (from 0) and `size`
func Paging(c *gin.Context) (page, size int, err error) {
	if raw := c.Query("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 0 {
			return 0, 0, apperr.Validation("invalid page `%s`", raw)
		}
	}

	size = DefaultPageSize
	if raw := c.Query("size"); raw != "" {
		if size, err = strconv.Atoi(raw); err != nil || size <= 0 {
			return 0, 0, apperr.Validation("invalid size `%s`", raw)
		}
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size, nil
}

// BindJSON decodes the body into dst, decode failures are validation errors
func BindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.Wrap(apperr.ErrValidation, "invalid request body: "+err.Error())
	}

	return nil
}

// VisitorID returns the anonymous visitor id, issuing a cookie on first use
func VisitorID(c *gin.Context) string {
	if id, err := c.Cookie(VisitorCookie); err == nil && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}

	id := gutils.UUID7()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(VisitorCookie, id, 365*24*3600, "/", "", c.Request.TLS != nil, true)
	return id
}

// RequestLogger returns the per-request logger, or fallback outside gin requests
func RequestLogger(ctx context.Context, fallback logSDK.Logger) logSDK.Logger {
	if ctx != nil {
		if l := gmw.GetLogger(ctx); l != nil {
			return l
		}
	}

	return fallback
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
}

// AbortWithError classifies err, logs it, and writes the error response
func AbortWithError(c *gin.Context, err error) {
	cls := apperr.Log(RequestLogger(c, log.Logger), err,
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()))
	metrics.RequestErrors.WithLabelValues(string(cls.Category), string(cls.Severity)).Inc()

	body := ErrorBody{
		Category: string(cls.Category),
		Message:  apperr.Message(cls.Category, Lang(c)),
	}
	if cls.Category == apperr.CategoryValidation {
		body.Detail = err.Error()
	}

	c.AbortWithStatusJSON(apperr.HTTPStatus(cls.Category), gin.H{"error": body})
}
