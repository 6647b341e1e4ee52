package service

import (
	"context"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/portfolio/dto"
	"github.com/Laisky/agency-site/internal/web/portfolio/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
)

type catalog map[string]bool

func (c catalog) HasService(id string) bool { return c[id] }

type recorder struct {
	events.Nop
	actions []string
}

func (r *recorder) Record(_ context.Context, _ events.Actor, action, _, _ string) {
	r.actions = append(r.actions, action)
}

func newService(t *testing.T) (*Portfolio, *recorder) {
	t.Helper()
	feed := new(recorder)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(log.Logger, docstore.NewMemory(), catalog{"web": true, "seo": true},
		WithFeed(feed),
		WithClock(func() time.Time { return now }),
	), feed
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	actor := events.Actor{ID: "u1", Name: "Admin"}

	for name, in := range map[string]*dto.ProjectInput{
		"no title":        {},
		"relative url":    {Title: "Shop", URL: "/shop"},
		"ftp cover":       {Title: "Shop", CoverURL: "ftp://cdn.example.com/a.png"},
		"unknown service": {Title: "Shop", Services: []string{"mining"}},
	} {
		_, err := svc.Create(ctx, actor, in)
		require.ErrorIs(t, err, apperr.ErrValidation, name)
	}

	prj, err := svc.Create(ctx, actor, &dto.ProjectInput{
		Title:    "  Coffee Shop Redesign ",
		Services: []string{"WEB", "web"},
		Tags:     []string{"E Commerce", "e-commerce", "Branding"},
		URL:      "https://coffee.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "coffee-shop-redesign", prj.Slug)
	require.Equal(t, "Coffee Shop Redesign", prj.Title)
	require.Equal(t, []string{"web"}, prj.Services)
	require.Len(t, prj.Tags, 2)

	_, err = svc.Create(ctx, actor, &dto.ProjectInput{Title: "Coffee shop redesign"})
	require.ErrorIs(t, err, model.ErrSlugTaken)
}

func TestUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, feed := newService(t)
	actor := events.Actor{ID: "u1"}

	a, err := svc.Create(ctx, actor, &dto.ProjectInput{Title: "Alpha"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, actor, &dto.ProjectInput{Title: "Beta"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, actor, b.ID, &dto.ProjectInput{Title: "Beta", Slug: "alpha"})
	require.ErrorIs(t, err, model.ErrSlugTaken)

	updated, err := svc.Update(ctx, actor, a.ID, &dto.ProjectInput{Title: "Alpha v2", Slug: "alpha", Published: true})
	require.NoError(t, err)
	require.Equal(t, a.CreatedAt, updated.CreatedAt)
	require.Equal(t, "alpha", updated.Slug)
	require.True(t, updated.Published)

	_, err = svc.Update(ctx, actor, "missing", &dto.ProjectInput{Title: "x"})
	require.True(t, docstore.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, actor, b.ID))
	require.True(t, docstore.IsNotFound(svc.Delete(ctx, actor, b.ID)))
	require.Equal(t, []string{"project.create", "project.create", "project.update", "project.delete"}, feed.actions)
}

func TestPublicListing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	actor := events.Actor{ID: "u1"}

	for _, in := range []*dto.ProjectInput{
		{Title: "Third", Order: 3, Published: true, Services: []string{"seo"}},
		{Title: "First", TitleAr: "الأول", Order: 1, Published: true, Featured: true, Services: []string{"web"}},
		{Title: "Draft", Order: 0},
		{Title: "Second", Order: 2, Published: true, Services: []string{"web", "seo"}},
	} {
		_, err := svc.Create(ctx, actor, in)
		require.NoError(t, err)
	}

	views, err := svc.List(ctx, &dto.ProjectCfg{Language: i18n.EN})
	require.NoError(t, err)
	require.Len(t, views, 3)
	require.Equal(t, "First", views[0].Title)
	require.Equal(t, "Third", views[2].Title)

	views, err = svc.List(ctx, &dto.ProjectCfg{Service: "seo"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "Second", views[0].Title)

	views, err = svc.List(ctx, &dto.ProjectCfg{FeaturedOnly: true, Language: i18n.AR})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "الأول", views[0].Title)

	all, err := svc.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "Draft", all[0].Title)

	_, err = svc.GetBySlug(ctx, "draft", &dto.ProjectCfg{})
	require.True(t, errors.Is(err, docstore.ErrNotFound))

	view, err := svc.GetBySlug(ctx, "second", &dto.ProjectCfg{})
	require.NoError(t, err)
	require.Equal(t, i18n.EN, view.Language)
}
