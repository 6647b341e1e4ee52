package service

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

// ReindexReport counters changed by Reindex
type ReindexReport struct {
	Posts      int `json:"posts"`
	Categories int `json:"categories"`
	Tags       int `json:"tags"`
}

// Reindex recompute post comment counters and category / tag post counts
// from the documents. Only counters that differ are written.
func (s *Blog) Reindex(ctx context.Context) (*ReindexReport, error) {
	report := new(ReindexReport)
	posts, err := s.dao.FindPosts(ctx, s.dao.PostsQuery())
	if err != nil {
		return nil, err
	}

	cats := map[string]int64{}
	tags := map[string]int64{}
	for _, p := range posts {
		contribute(p, 1, cats, tags)

		n, err := s.dao.DB().Count(ctx, s.dao.CommentsQuery().
			Where("post_id", docstore.OpEq, p.ID).
			Where("is_approved", docstore.OpEq, true))
		if err != nil {
			return nil, errors.Wrapf(err, "count comments of `%s`", p.ID)
		}
		if int64(n) == p.CommentsCount {
			continue
		}

		s.logger.Info("fix post comments count",
			zap.String("post", p.ID), zap.Int64("from", p.CommentsCount), zap.Int("to", n))
		if err = s.dao.DB().Update(ctx, model.CollPosts, p.ID, docstore.Set("comments_count", int64(n))); err != nil {
			return nil, errors.Wrapf(err, "update post `%s`", p.ID)
		}
		report.Posts++
	}

	allCats, err := s.dao.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range allCats {
		if cats[c.ID] == c.PostCount {
			continue
		}

		if err = s.dao.DB().Update(ctx, model.CollCategories, c.ID, docstore.Set("post_count", cats[c.ID])); err != nil {
			return nil, errors.Wrapf(err, "update category `%s`", c.ID)
		}
		report.Categories++
	}

	allTags, err := s.dao.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range allTags {
		if tags[t.ID] == t.PostCount {
			continue
		}

		if err = s.dao.DB().Update(ctx, model.CollTags, t.ID, docstore.Set("post_count", tags[t.ID])); err != nil {
			return nil, errors.Wrapf(err, "update tag `%s`", t.ID)
		}
		report.Tags++
	}

	return report, nil
}
