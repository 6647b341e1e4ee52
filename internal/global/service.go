package global

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	authDao "github.com/Laisky/agency-site/internal/web/auth/dao"
	authSvc "github.com/Laisky/agency-site/internal/web/auth/service"
	blogDao "github.com/Laisky/agency-site/internal/web/blog/dao"
	blogSvc "github.com/Laisky/agency-site/internal/web/blog/service"
	dashboardSvc "github.com/Laisky/agency-site/internal/web/dashboard/service"
	leadsSvc "github.com/Laisky/agency-site/internal/web/leads/service"
	portfolioSvc "github.com/Laisky/agency-site/internal/web/portfolio/service"
	"github.com/Laisky/agency-site/internal/web/site"
	"github.com/Laisky/agency-site/library/captcha"
	"github.com/Laisky/agency-site/library/jwt"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/throttle"
)

const jwtIssuer = "agency-site"

// Limiter counts hits of a key inside a window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Services every domain service of the site
type Services struct {
	Auth      *authSvc.Auth
	Blog      *blogSvc.Blog
	Leads     *leadsSvc.Leads
	Portfolio *portfolioSvc.Portfolio
	Dashboard *dashboardSvc.Dashboard
	Catalog   *site.Catalog
	Captcha   *captcha.Verifier
}

// SetupServices builds the services on top of b. ctx bounds the
// in-process limiter cleanup when redis is not configured.
func SetupServices(ctx context.Context, b *Backends) (*Services, error) {
	secret := gconfig.Shared.GetString("settings.secret")
	signer, err := jwt.New([]byte(secret), jwtIssuer)
	if err != nil {
		return nil, errors.Wrap(err, "new jwt signer")
	}

	sender, err := mail.NewFromConfig(log.Logger.Named("mail"))
	if err != nil {
		return nil, errors.Wrap(err, "new mail sender")
	}
	tpl := mail.NewTemplatesFromConfig()

	verifier, err := captcha.NewFromConfig()
	if err != nil {
		return nil, errors.Wrap(err, "new turnstile verifier")
	}
	if !verifier.Enabled() {
		log.Logger.Warn("turnstile secret not configured, captcha checks are skipped")
	}

	var limiter Limiter = throttle.New(ctx)
	authOpts := []authSvc.Option{authSvc.WithSettings(authSvc.SettingsFromConfig(log.Logger.Named("auth_settings")))}
	var leadOpts []leadsSvc.Option
	if b.Redis != nil {
		limiter = b.Redis
		authOpts = append(authOpts, authSvc.WithSessions(b.Redis))
		leadOpts = append(leadOpts, leadsSvc.WithOutbox(b.Redis))
	}

	s := &Services{
		Dashboard: dashboardSvc.New(log.Logger.Named("dashboard_service"), b.Store),
		Catalog:   site.CatalogFromConfig(),
		Captcha:   verifier,
	}

	s.Auth = authSvc.New(log.Logger.Named("auth_service"), authDao.New(log.Logger.Named("auth_dao"), b.Store), signer,
		append(authOpts,
			authSvc.WithLimiter(limiter),
			authSvc.WithMailer(sender, tpl),
			authSvc.WithFeed(s.Dashboard),
		)...)
	s.Blog = blogSvc.New(log.Logger.Named("blog_service"), blogDao.New(log.Logger.Named("blog_dao"), b.Store),
		blogSvc.WithMailer(sender, tpl),
		blogSvc.WithFeed(s.Dashboard),
	)
	s.Leads = leadsSvc.New(log.Logger.Named("leads_service"), b.Store, s.Catalog,
		append(leadOpts,
			leadsSvc.WithLimiter(limiter, leadsSvc.PerHourFromConfig()),
			leadsSvc.WithMailer(sender, tpl, mail.AdminRecipients()),
			leadsSvc.WithFeed(s.Dashboard),
		)...)
	s.Portfolio = portfolioSvc.New(log.Logger.Named("portfolio_service"), b.Store, s.Catalog,
		portfolioSvc.WithFeed(s.Dashboard),
	)

	log.Logger.Info("services ready",
		zap.Bool("redis", b.Redis != nil),
		zap.Bool("captcha", verifier.Enabled()))
	return s, nil
}
