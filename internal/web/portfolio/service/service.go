// Package service manages the portfolio projects.
package service

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/portfolio/dto"
	"github.com/Laisky/agency-site/internal/web/portfolio/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/slugify"
)

const (
	maxTitleLen   = 200
	maxSummaryLen = 2000
	maxClientLen  = 100
	maxURLLen     = 2048
	maxListItems  = 20
	maxTagLen     = 64
)

// Catalog knows the services a project may be filed under
type Catalog interface {
	HasService(id string) bool
}

// Portfolio service
type Portfolio struct {
	logger  logSDK.Logger
	db      docstore.Store
	catalog Catalog
	feed    events.Feed
	clock   func() time.Time
}

// Option configures Portfolio
type Option func(*Portfolio)

// WithFeed records project changes
func WithFeed(feed events.Feed) Option {
	return func(p *Portfolio) { p.feed = feed }
}

// WithClock override time source
func WithClock(clock func() time.Time) Option {
	return func(p *Portfolio) { p.clock = clock }
}

// New create portfolio service, catalog may be nil to accept any service id
func New(logger logSDK.Logger, db docstore.Store, catalog Catalog, opts ...Option) *Portfolio {
	if logger == nil {
		logger = log.Logger.Named("portfolio_service")
	}

	p := &Portfolio{
		logger:  logger,
		db:      db,
		catalog: catalog,
		feed:    events.Nop{},
		clock:   gutils.Clock.GetUTCNow,
	}
	for _, f := range opts {
		f(p)
	}

	return p
}

func text(input string, maxLen int, field string, required bool) (string, error) {
	v := strings.TrimSpace(input)
	switch {
	case v == "" && required:
		return "", apperr.Validation("%s is required", field)
	case strings.ContainsRune(v, '\x00'):
		return "", apperr.Validation("%s contains invalid null byte", field)
	case utf8.RuneCountInString(v) > maxLen:
		return "", apperr.Validation("%s too long, max %d characters", field, maxLen)
	}

	return v, nil
}

func absURL(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) > maxURLLen {
		return "", apperr.Validation("%s too long", field)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation("%s must be an absolute http(s) url", field)
	}

	return u.String(), nil
}

// build validates in into a project without id or timestamps
func (p *Portfolio) build(in *dto.ProjectInput) (*model.Project, error) {
	prj := &model.Project{
		Featured:  in.Featured,
		Published: in.Published,
		Order:     in.Order,
		Services:  []string{},
		Tags:      []string{},
	}

	var err error
	if prj.Title, err = text(in.Title, maxTitleLen, "title", true); err != nil {
		return nil, err
	}
	if prj.TitleAr, err = text(in.TitleAr, maxTitleLen, "arabic title", false); err != nil {
		return nil, err
	}
	if prj.Summary, err = text(in.Summary, maxSummaryLen, "summary", false); err != nil {
		return nil, err
	}
	if prj.SummaryAr, err = text(in.SummaryAr, maxSummaryLen, "arabic summary", false); err != nil {
		return nil, err
	}
	if prj.Client, err = text(in.Client, maxClientLen, "client", false); err != nil {
		return nil, err
	}
	if prj.URL, err = absURL(in.URL, "url"); err != nil {
		return nil, err
	}
	if prj.CoverURL, err = absURL(in.CoverURL, "cover_url"); err != nil {
		return nil, err
	}

	slug, err := text(in.Slug, slugify.MaxLength, "slug", false)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		slug = prj.Title
	}
	prj.Slug = slugify.Make(slug)

	if len(in.Services) > maxListItems || len(in.Tags) > maxListItems {
		return nil, apperr.Validation("at most %d services and %d tags", maxListItems, maxListItems)
	}
	for _, id := range in.Services {
		id = strings.ToLower(strings.TrimSpace(id))
		if p.catalog != nil && !p.catalog.HasService(id) {
			return nil, apperr.Validation("unknown service `%s`", id)
		}
		if id != "" && !slices.Contains(prj.Services, id) {
			prj.Services = append(prj.Services, id)
		}
	}
	for _, name := range in.Tags {
		if utf8.RuneCountInString(name) > maxTagLen {
			return nil, apperr.Validation("tag too long, max %d characters", maxTagLen)
		}
		if tag := slugify.Readable(name); tag != "" && !slices.Contains(prj.Tags, tag) {
			prj.Tags = append(prj.Tags, tag)
		}
	}

	return prj, nil
}

func slugFree(tx docstore.Tx, slug, selfID string) error {
	var found []*model.Project
	if err := tx.Find(docstore.NewQuery(model.CollProjects).
		Where("slug", docstore.OpEq, slug).
		WithLimit(2), &found); err != nil {
		return errors.Wrap(err, "check project slug")
	}
	for _, prj := range found {
		if prj.ID != selfID {
			return errors.Wrapf(model.ErrSlugTaken, "slug `%s`", slug)
		}
	}

	return nil
}

// Create store a new project, the slug must be unused
func (p *Portfolio) Create(ctx context.Context, actor events.Actor, in *dto.ProjectInput) (*model.Project, error) {
	prj, err := p.build(in)
	if err != nil {
		return nil, err
	}

	now := p.clock()
	prj.ID = gutils.UUID7()
	prj.CreatedAt = now
	prj.UpdatedAt = now
	if err = p.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := slugFree(tx, prj.Slug, ""); err != nil {
			return err
		}
		return tx.Create(model.CollProjects, prj.ID, prj)
	}); err != nil {
		return nil, errors.Wrap(err, "create project")
	}

	webutil.RequestLogger(ctx, p.logger).Info("project created", zap.String("project", prj.ID))
	p.feed.Record(ctx, actor, "project.create", "project", prj.ID)
	return prj, nil
}

// Update replace every editable field of project id
func (p *Portfolio) Update(ctx context.Context, actor events.Actor, id string, in *dto.ProjectInput) (*model.Project, error) {
	next, err := p.build(in)
	if err != nil {
		return nil, err
	}

	if err = p.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		old := new(model.Project)
		if err := tx.Get(model.CollProjects, id, old); err != nil {
			return errors.Wrapf(err, "get project `%s`", id)
		}
		if old.Slug != next.Slug {
			if err := slugFree(tx, next.Slug, id); err != nil {
				return err
			}
		}

		next.ID = old.ID
		next.CreatedAt = old.CreatedAt
		next.UpdatedAt = p.clock()
		return tx.Set(model.CollProjects, id, next)
	}); err != nil {
		return nil, errors.Wrap(err, "update project")
	}

	p.feed.Record(ctx, actor, "project.update", "project", id)
	return next, nil
}

// Delete remove project id
func (p *Portfolio) Delete(ctx context.Context, actor events.Actor, id string) error {
	if _, err := p.AdminGet(ctx, id); err != nil {
		return err
	}
	if err := p.db.Delete(ctx, model.CollProjects, id); err != nil {
		return errors.Wrapf(err, "delete project `%s`", id)
	}

	p.feed.Record(ctx, actor, "project.delete", "project", id)
	return nil
}

// AdminGet load any project by id
func (p *Portfolio) AdminGet(ctx context.Context, id string) (*model.Project, error) {
	prj := new(model.Project)
	if err := p.db.Get(ctx, model.CollProjects, id, prj); err != nil {
		return nil, errors.Wrapf(err, "get project `%s`", id)
	}

	return prj, nil
}

// AdminList every project in page order
func (p *Portfolio) AdminList(ctx context.Context) ([]*model.Project, error) {
	prjs := []*model.Project{}
	if err := p.db.Find(ctx, docstore.NewQuery(model.CollProjects).
		OrderBy("order", docstore.Asc), &prjs); err != nil {
		return nil, errors.Wrap(err, "list projects")
	}

	return prjs, nil
}

// List published projects in page order
func (p *Portfolio) List(ctx context.Context, cfg *dto.ProjectCfg) ([]*dto.ProjectView, error) {
	q := docstore.NewQuery(model.CollProjects).Where("published", docstore.OpEq, true)
	if cfg.FeaturedOnly {
		q = q.Where("featured", docstore.OpEq, true)
	}
	if cfg.Service != "" {
		q = q.Where("services", docstore.OpArrayContains, strings.ToLower(cfg.Service))
	}

	var prjs []*model.Project
	if err := p.db.Find(ctx, q.OrderBy("order", docstore.Asc), &prjs); err != nil {
		return nil, errors.Wrap(err, "find projects")
	}

	views := make([]*dto.ProjectView, 0, len(prjs))
	for _, prj := range prjs {
		views = append(views, dto.NewProjectView(prj, cfg.Language))
	}

	return views, nil
}

// GetBySlug load a published project
func (p *Portfolio) GetBySlug(ctx context.Context, slug string, cfg *dto.ProjectCfg) (*dto.ProjectView, error) {
	var prjs []*model.Project
	if err := p.db.Find(ctx, docstore.NewQuery(model.CollProjects).
		Where("slug", docstore.OpEq, slug).
		WithLimit(1), &prjs); err != nil {
		return nil, errors.Wrap(err, "find project")
	}
	if len(prjs) == 0 || !prjs[0].Published {
		return nil, errors.Wrapf(docstore.ErrNotFound, "project `%s`", slug)
	}

	return dto.NewProjectView(prjs[0], cfg.Language), nil
}
