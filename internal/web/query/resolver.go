package query

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Laisky/errors/v2"

	blogDto "github.com/Laisky/agency-site/internal/web/blog/dto"
	blogModel "github.com/Laisky/agency-site/internal/web/blog/model"
	portfolioDto "github.com/Laisky/agency-site/internal/web/portfolio/dto"
	"github.com/Laisky/agency-site/internal/web/site"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/i18n"
)

// BlogReader public blog reads
type BlogReader interface {
	ListPublishedPosts(ctx context.Context, cfg *blogDto.PostCfg) (*blogDto.PostList, error)
	GetPublishedPost(ctx context.Context, slug string, cfg *blogDto.PostCfg) (*blogDto.PostView, error)
	ListPostComments(ctx context.Context, postID string) ([]*blogDto.CommentView, error)
	ListCategories(ctx context.Context) ([]*blogModel.Category, error)
	ListTags(ctx context.Context) ([]*blogModel.Tag, error)
}

// PortfolioReader public portfolio reads
type PortfolioReader interface {
	List(ctx context.Context, cfg *portfolioDto.ProjectCfg) ([]*portfolioDto.ProjectView, error)
	GetBySlug(ctx context.Context, slug string, cfg *portfolioDto.ProjectCfg) (*portfolioDto.ProjectView, error)
}

// CatalogReader localized services and pricing
type CatalogReader interface {
	Services(lang i18n.Lang) []site.Service
	Plans(lang i18n.Lang) []site.Plan
}

// Resolver resolves the root fields of Query
type Resolver struct {
	blog      BlogReader
	portfolio PortfolioReader
	catalog   CatalogReader
}

// NewResolver new resolver
func NewResolver(blog BlogReader, portfolio PortfolioReader, catalog CatalogReader) *Resolver {
	return &Resolver{blog: blog, portfolio: portfolio, catalog: catalog}
}

// fieldFunc resolves one root field, lang is the negotiated language
type fieldFunc func(ctx context.Context, args arguments, lang i18n.Lang) (any, error)

func (r *Resolver) fields() map[string]fieldFunc {
	return map[string]fieldFunc{
		"posts":      r.posts,
		"post":       r.post,
		"comments":   r.comments,
		"categories": r.categories,
		"tags":       r.tags,
		"projects":   r.projects,
		"project":    r.project,
		"services":   r.services,
		"pricing":    r.pricing,
	}
}

func (r *Resolver) posts(ctx context.Context, args arguments, lang i18n.Lang) (any, error) {
	page, err := args.Int("page")
	if err != nil {
		return nil, err
	}
	size, err := args.Int("size")
	if err != nil {
		return nil, err
	}

	return r.blog.ListPublishedPosts(ctx, &blogDto.PostCfg{
		CategorySlug: args.String("category"),
		Tag:          args.String("tag"),
		Page:         page,
		Size:         size,
		Language:     lang,
	})
}

func (r *Resolver) post(ctx context.Context, args arguments, lang i18n.Lang) (any, error) {
	post, err := r.blog.GetPublishedPost(ctx, args.String("slug"), &blogDto.PostCfg{Language: lang})
	if docstore.IsNotFound(err) {
		return nil, nil
	}

	return post, err
}

func (r *Resolver) comments(ctx context.Context, args arguments, _ i18n.Lang) (any, error) {
	return r.blog.ListPostComments(ctx, args.String("postId"))
}

func (r *Resolver) categories(ctx context.Context, _ arguments, _ i18n.Lang) (any, error) {
	return r.blog.ListCategories(ctx)
}

func (r *Resolver) tags(ctx context.Context, _ arguments, _ i18n.Lang) (any, error) {
	return r.blog.ListTags(ctx)
}

func (r *Resolver) projects(ctx context.Context, args arguments, lang i18n.Lang) (any, error) {
	return r.portfolio.List(ctx, &portfolioDto.ProjectCfg{
		FeaturedOnly: args.Bool("featured"),
		Service:      args.String("service"),
		Language:     lang,
	})
}

func (r *Resolver) project(ctx context.Context, args arguments, lang i18n.Lang) (any, error) {
	prj, err := r.portfolio.GetBySlug(ctx, args.String("slug"), &portfolioDto.ProjectCfg{Language: lang})
	if docstore.IsNotFound(err) {
		return nil, nil
	}

	return prj, err
}

func (r *Resolver) services(_ context.Context, _ arguments, lang i18n.Lang) (any, error) {
	return r.catalog.Services(lang), nil
}

func (r *Resolver) pricing(_ context.Context, _ arguments, lang i18n.Lang) (any, error) {
	return r.catalog.Plans(lang), nil
}

// arguments of a field after variables and defaults are applied
type arguments map[string]any

func (a arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Int accepts every number shape the transports decode variables into
func (a arguments) Int(name string) (int, error) {
	switch v := a[name].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, apperr.Validation("argument %s must be an integer", name)
		}
		return n, nil
	default:
		return 0, errors.Wrapf(apperr.ErrValidation, "argument %s has type %T", name, v)
	}
}
