// Package controller exposes the admin dashboard feeds over gin.
package controller

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/dashboard/service"
	"github.com/Laisky/agency-site/library/apperr"
)

const heartbeatInterval = 25 * time.Second

// Dashboard handlers
type Dashboard struct {
	svc       *service.Dashboard
	heartbeat time.Duration
}

// New create dashboard controller
func New(svc *service.Dashboard) *Dashboard {
	return &Dashboard{svc: svc, heartbeat: heartbeatInterval}
}

// RegisterAdmin mounts the dashboard routes, every role may read and
// acknowledge notifications
func (d *Dashboard) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/stats", d.Stats)
	g.GET("/activities", d.Activities)
	g.GET("/notifications", d.Notifications)
	g.GET("/notifications/unread", d.UnreadCount)
	g.GET("/notifications/stream", d.Stream)
	g.POST("/notifications/read", d.MarkAllRead)
	g.POST("/notifications/:id/read", d.MarkRead)
}

func limit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("invalid limit `%s`", raw)
	}

	return n, nil
}

func (d *Dashboard) Stats(c *gin.Context) {
	stats, err := d.svc.Stats(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Activities GET /activities?limit=
func (d *Dashboard) Activities(c *gin.Context) {
	n, err := limit(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	items, err := d.svc.Activities(c, n)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Notifications GET /notifications?unread=true&limit=
func (d *Dashboard) Notifications(c *gin.Context) {
	n, err := limit(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	var unread bool
	if raw := c.Query("unread"); raw != "" {
		if unread, err = strconv.ParseBool(raw); err != nil {
			webutil.AbortWithError(c, apperr.Validation("invalid unread `%s`", raw))
			return
		}
	}

	items, err := d.svc.Notifications(c, unread, n)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (d *Dashboard) UnreadCount(c *gin.Context) {
	n, err := d.svc.UnreadCount(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (d *Dashboard) MarkRead(c *gin.Context) {
	if err := d.svc.MarkRead(c, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (d *Dashboard) MarkAllRead(c *gin.Context) {
	n, err := d.svc.MarkAllRead(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Stream GET /notifications/stream, server-sent events until the client leaves
func (d *Dashboard) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	notifications, err := d.svc.Watch(ctx)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(d.heartbeat)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{})
	c.Writer.Flush()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", gin.H{})
			return true
		case n, ok := <-notifications:
			if !ok {
				return false
			}

			c.SSEvent("notification", n)
			return true
		}
	})
}
