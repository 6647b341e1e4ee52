// Package controller exposes the portfolio over gin.
package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/portfolio/dto"
	"github.com/Laisky/agency-site/internal/web/portfolio/service"
	"github.com/Laisky/agency-site/library/apperr"
)

// Portfolio handlers
type Portfolio struct {
	svc *service.Portfolio
}

// New create portfolio controller
func New(svc *service.Portfolio) *Portfolio {
	return &Portfolio{svc: svc}
}

// RegisterPublic mounts the published project routes
func (p *Portfolio) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/projects", p.List)
	g.GET("/projects/:slug", p.Get)
}

// RegisterAdmin mounts project management, write guards mutations
func (p *Portfolio) RegisterAdmin(g *gin.RouterGroup, write gin.HandlerFunc) {
	g.GET("/projects", p.AdminList)
	g.GET("/projects/:id", p.AdminGet)
	g.POST("/projects", write, p.Create)
	g.PUT("/projects/:id", write, p.Update)
	g.DELETE("/projects/:id", write, p.Delete)
}

// List GET /projects?featured=true&service=
func (p *Portfolio) List(c *gin.Context) {
	cfg := &dto.ProjectCfg{
		Service:  c.Query("service"),
		Language: webutil.Lang(c),
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			webutil.AbortWithError(c, apperr.Validation("invalid featured `%s`", raw))
			return
		}
		cfg.FeaturedOnly = featured
	}

	items, err := p.svc.List(c, cfg)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (p *Portfolio) Get(c *gin.Context) {
	prj, err := p.svc.GetBySlug(c, c.Param("slug"), &dto.ProjectCfg{Language: webutil.Lang(c)})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, prj)
}

func (p *Portfolio) AdminList(c *gin.Context) {
	items, err := p.svc.AdminList(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (p *Portfolio) AdminGet(c *gin.Context) {
	prj, err := p.svc.AdminGet(c, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, prj)
}

func (p *Portfolio) Create(c *gin.Context) {
	in := new(dto.ProjectInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	prj, err := p.svc.Create(c, actor, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, prj)
}

func (p *Portfolio) Update(c *gin.Context) {
	in := new(dto.ProjectInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	actor, _ := webutil.GetActor(c)
	prj, err := p.svc.Update(c, actor, c.Param("id"), in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, prj)
}

func (p *Portfolio) Delete(c *gin.Context) {
	actor, _ := webutil.GetActor(c)
	if err := p.svc.Delete(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
