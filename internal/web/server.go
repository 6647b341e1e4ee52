// Package web gin server
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/global"
	authCtl "github.com/Laisky/agency-site/internal/web/auth/controller"
	blogCtl "github.com/Laisky/agency-site/internal/web/blog/controller"
	dashboardCtl "github.com/Laisky/agency-site/internal/web/dashboard/controller"
	leadsCtl "github.com/Laisky/agency-site/internal/web/leads/controller"
	portfolioCtl "github.com/Laisky/agency-site/internal/web/portfolio/controller"
	"github.com/Laisky/agency-site/internal/web/query"
	"github.com/Laisky/agency-site/internal/web/site"
	"github.com/Laisky/agency-site/library/log"
)

const shutdownTimeout = 10 * time.Second

// NewServer builds the gin engine with every route group mounted
func NewServer(svcs *global.Services) (*gin.Engine, error) {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	server := gin.New()
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(log.Logger.Level().String()),
			gmw.WithLogger(log.Logger.Named("gin")),
		),
		allowCORS(gconfig.Shared.GetStringSlice("settings.web.cors.allowed_domains")),
	)

	if err := gmw.EnableMetric(server); err != nil {
		return nil, errors.Wrap(err, "enable metric server")
	}

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	mountAPI(server.Group("/api"), svcs)
	return server, nil
}

func mountAPI(api *gin.RouterGroup, svcs *global.Services) {
	var (
		auth      = authCtl.New(svcs.Auth, svcs.Captcha)
		blog      = blogCtl.New(svcs.Blog, svcs.Captcha)
		leads     = leadsCtl.New(svcs.Leads, svcs.Captcha)
		portfolio = portfolioCtl.New(svcs.Portfolio)
		dashboard = dashboardCtl.New(svcs.Dashboard)
	)

	public := api.Group("/public")
	site.NewController(log.Logger.Named("site"), svcs.Catalog).RegisterPublic(public)
	blog.RegisterPublic(public)
	leads.RegisterPublic(public)
	portfolio.RegisterPublic(public)
	query.New(query.NewResolver(svcs.Blog, svcs.Portfolio, svcs.Catalog)).RegisterPublic(public)

	auth.RegisterAuth(api.Group("/auth"))

	// every signed in role reads the dashboard, content changes need CanWrite
	admin := api.Group("/admin", auth.Middleware())
	write := authCtl.CanWrite()
	blog.RegisterAdmin(admin, write)
	leads.RegisterAdmin(admin, write)
	portfolio.RegisterAdmin(admin, write)
	dashboard.RegisterAdmin(admin)
	auth.RegisterAdmin(admin)
}

// RunServer serves until ctx is done, then shuts down gracefully
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info("listening on http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}

	log.Logger.Info("http server stopped")
	return nil
}

// allowedOrigin reports whether the origin host is one of domains or a
// subdomain of one
func allowedOrigin(origin string, domains []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
		if domain != "" && (host == domain || strings.HasSuffix(host, "."+domain)) {
			return true
		}
	}

	return false
}

func allowCORS(domains []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin != "" && allowedOrigin(origin, domains) {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Accept-Language, Origin, X-Requested-With")
			ctx.Header("Access-Control-Max-Age", "86400") // 24 hours
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			// preflight from a disallowed origin
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
