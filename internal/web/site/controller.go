package site

import (
	"net/http"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
)

// Controller serves the public site endpoints
type Controller struct {
	sites   configSet
	catalog *Catalog
}

// NewController load site settings from configuration
func NewController(logger logSDK.Logger, catalog *Catalog) *Controller {
	if logger == nil {
		logger = log.Logger.Named("site")
	}

	return &Controller{
		sites:   loadConfigSet(logger),
		catalog: catalog,
	}
}

// RegisterPublic mounts the site routes
func (s *Controller) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/site", s.Site)
	g.GET("/services", s.Services)
	g.GET("/pricing", s.Pricing)
}

type siteResponse struct {
	Config
	Language  i18n.Lang   `json:"language"`
	Languages []i18n.Lang `json:"languages"`
}

// Site GET /site, branding of the requesting host
func (s *Controller) Site(c *gin.Context) {
	cfg := s.sites.resolve(c.Request)
	cfg.Hosts = nil
	c.JSON(http.StatusOK, siteResponse{
		Config:    cfg,
		Language:  webutil.Lang(c),
		Languages: []i18n.Lang{i18n.EN, i18n.AR},
	})
}

// Services GET /services?lang=
func (s *Controller) Services(c *gin.Context) {
	lang := webutil.Lang(c)
	c.JSON(http.StatusOK, gin.H{"language": lang, "items": s.catalog.Services(lang)})
}

// Pricing GET /pricing?lang=
func (s *Controller) Pricing(c *gin.Context) {
	lang := webutil.Lang(c)
	c.JSON(http.StatusOK, gin.H{"language": lang, "items": s.catalog.Plans(lang)})
}
