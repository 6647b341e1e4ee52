// Package controller exposes the lead forms and their dashboard over gin.
package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/leads/dto"
	"github.com/Laisky/agency-site/internal/web/leads/model"
	"github.com/Laisky/agency-site/internal/web/leads/service"
	"github.com/Laisky/agency-site/library/apperr"
)

// Verifier checks a captcha token for the current request
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Leads handlers
type Leads struct {
	svc     *service.Leads
	captcha Verifier
}

// New create leads controller, captcha may be nil to skip verification
func New(svc *service.Leads, captcha Verifier) *Leads {
	return &Leads{svc: svc, captcha: captcha}
}

// RegisterPublic mounts the form routes
func (l *Leads) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/contact", l.submit(model.KindContact))
	g.POST("/quote", l.submit(model.KindQuote))
}

// RegisterAdmin mounts the dashboard routes, write guards mutations
func (l *Leads) RegisterAdmin(g *gin.RouterGroup, write gin.HandlerFunc) {
	g.GET("/leads", l.List)
	g.GET("/leads/:id", l.Get)
	g.PUT("/leads/:id/status", write, l.UpdateStatus)
	g.DELETE("/leads/:id", write, l.Delete)
}

func (l *Leads) submit(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		in := new(dto.LeadInput)
		if err := webutil.BindJSON(c, in); err != nil {
			webutil.AbortWithError(c, err)
			return
		}

		if l.captcha != nil {
			if err := l.captcha.Verify(c, in.TurnstileToken); err != nil {
				webutil.AbortWithError(c, apperr.Forbidden("captcha rejected: %v", err))
				return
			}
		}

		lead, err := l.svc.Submit(c, kind, in, dto.Client{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Lang:      webutil.Lang(c),
		})
		if err != nil {
			webutil.AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, service.Receipt(lead))
	}
}

// List GET /leads?status=&kind=&page=&size=
func (l *Leads) List(c *gin.Context) {
	page, size, err := webutil.Paging(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	list, err := l.svc.List(c, &dto.LeadCfg{
		Status: model.Status(c.Query("status")),
		Kind:   model.Kind(c.Query("kind")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (l *Leads) Get(c *gin.Context) {
	lead, err := l.svc.Get(c, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (l *Leads) UpdateStatus(c *gin.Context) {
	in := new(dto.StatusInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	lead, err := l.svc.UpdateStatus(c, actor, c.Param("id"), in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (l *Leads) Delete(c *gin.Context) {
	actor, _ := webutil.GetActor(c)
	if err := l.svc.Delete(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
