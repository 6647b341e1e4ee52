package service

import (
	"context"

	"github.com/Laisky/errors/v2"
	"golang.org/x/sync/errgroup"

	authModel "github.com/Laisky/agency-site/internal/web/auth/model"
	blogModel "github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/internal/web/dashboard/model"
	leadsModel "github.com/Laisky/agency-site/internal/web/leads/model"
	portfolioModel "github.com/Laisky/agency-site/internal/web/portfolio/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

var postStatuses = []blogModel.PostStatus{
	blogModel.PostDraft,
	blogModel.PostPublished,
	blogModel.PostArchived,
}

// Stats gathers the dashboard counters concurrently
func (d *Dashboard) Stats(ctx context.Context) (*model.Stats, error) {
	var (
		posts = make([]int, len(postStatuses))
		stats = new(model.Stats)
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, name string, q docstore.Query) {
		g.Go(func() error {
			n, err := d.db.Count(gctx, q)
			if err != nil {
				return errors.Wrapf(err, "count %s", name)
			}

			*dst = n
			return nil
		})
	}

	for i, status := range postStatuses {
		count(&posts[i], string(status)+" posts", docstore.NewQuery(blogModel.CollPosts).
			Where("status", docstore.OpEq, status))
	}
	count(&stats.PendingComments, "pending comments", docstore.NewQuery(blogModel.CollComments).
		Where("is_approved", docstore.OpEq, false))
	count(&stats.NewLeads, "new leads", docstore.NewQuery(leadsModel.CollLeads).
		Where("status", docstore.OpEq, leadsModel.StatusNew))
	count(&stats.Projects, "projects", docstore.NewQuery(portfolioModel.CollProjects))
	count(&stats.Users, "users", docstore.NewQuery(authModel.CollUsers))
	count(&stats.UnreadNotifications, "unread notifications", docstore.NewQuery(model.CollNotifications).
		Where("read", docstore.OpEq, false))

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "gather stats")
	}

	stats.Posts = make(map[string]int, len(postStatuses))
	for i, status := range postStatuses {
		stats.Posts[string(status)] = posts[i]
	}

	return stats, nil
}
