package service

import (
	"context"
	"slices"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/blog/dto"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/slugify"
)

// postDraft is a validated and rendered PostInput
type postDraft struct {
	post     *model.Post
	tagNames map[string]string
}

// buildPost validates in and renders its markdown. Status is left empty
// when the input does not carry one.
func buildPost(in *dto.PostInput) (*postDraft, error) {
	if in == nil {
		return nil, apperr.Validation("post is empty")
	}

	title, err := sanitizeRequiredText(in.Title, maxPostTitleLength, "title")
	if err != nil {
		return nil, err
	}
	content, err := sanitizeOptionalText(in.Content, maxPostContentLength, "content")
	if err != nil {
		return nil, err
	}
	titleAr, err := sanitizeOptionalText(in.TitleAr, maxPostTitleLength, "arabic title")
	if err != nil {
		return nil, err
	}
	contentAr, err := sanitizeOptionalText(in.ContentAr, maxPostContentLength, "arabic content")
	if err != nil {
		return nil, err
	}
	if titleAr == "" && contentAr != "" {
		return nil, apperr.Validation("arabic title is required with arabic content")
	}
	slug, err := sanitizeSlug(in.Slug, title)
	if err != nil {
		return nil, err
	}
	cover, err := sanitizeURL(in.CoverURL, "cover url")
	if err != nil {
		return nil, err
	}
	tags, names, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperr.Validation("unknown status `%s`", in.Status)
	}

	post := &model.Post{
		Slug:       slug,
		Status:     in.Status,
		Title:      title,
		Content:    content,
		CoverURL:   cover,
		CategoryID: in.CategoryID,
		Tags:       tags,
	}
	post.HTML = ParseMarkdown2HTML([]byte(content))
	post.Menu = ExtractMenu(post.HTML)
	post.Excerpt = Excerpt(post.HTML)
	if titleAr != "" {
		ar := model.PostTranslation{Title: titleAr, Content: contentAr}
		ar.HTML = ParseMarkdown2HTML([]byte(contentAr))
		ar.Menu = ExtractMenu(ar.HTML)
		ar.Excerpt = Excerpt(ar.HTML)
		post.I18N.Ar = ar
	}

	return &postDraft{post: post, tagNames: names}, nil
}

// checkSlugFree fails with ErrSlugTaken when a post other than selfID uses slug
func checkSlugFree(tx docstore.Tx, slug, selfID string) error {
	var posts []*model.Post
	if err := tx.Find(docstore.NewQuery(model.CollPosts).
		Where("slug", docstore.OpEq, slug).
		WithLimit(2), &posts); err != nil {
		return errors.Wrap(err, "check slug")
	}

	for _, p := range posts {
		if p.ID != selfID {
			return errors.Wrapf(model.ErrSlugTaken, "post slug `%s`", slug)
		}
	}

	return nil
}

func checkCategory(tx docstore.Tx, id string) error {
	if id == "" {
		return nil
	}

	if err := tx.Get(model.CollCategories, id, new(model.Category)); err != nil {
		if docstore.IsNotFound(err) {
			return apperr.Validation("unknown category `%s`", id)
		}
		return errors.Wrap(err, "load category")
	}

	return nil
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	cp.LikedBy = slices.Clone(p.LikedBy)
	return &cp
}

// CreatePost create a post, draft unless the input says otherwise
func (s *Blog) CreatePost(ctx context.Context, actor events.Actor, in *dto.PostInput) (*model.Post, error) {
	draft, err := buildPost(in)
	if err != nil {
		return nil, err
	}

	post := draft.post
	if post.Status == "" {
		post.Status = model.PostDraft
	}

	now := s.clock()
	post.ID = gutils.UUID7()
	post.AuthorID = actor.ID
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.IsPublished() {
		post.PublishedAt = &now
	}

	if err = s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := checkSlugFree(tx, post.Slug, ""); err != nil {
			return err
		}
		if err := checkCategory(tx, post.CategoryID); err != nil {
			return err
		}

		plan, err := loadCounters(tx, nil, post)
		if err != nil {
			return err
		}

		if err = tx.Create(model.CollPosts, post.ID, post); err != nil {
			return errors.Wrap(err, "create post")
		}

		return plan.apply(tx, draft.tagNames, now)
	}); err != nil {
		return nil, errors.Wrap(err, "create post")
	}

	s.logger.Info("post created", zap.String("id", post.ID), zap.String("slug", post.Slug))
	s.feed.Record(ctx, actor, "post.create", "post", post.ID)
	return post, nil
}

// mutatePost loads post id in a transaction, lets mutate change a copy and
// stores it with its counters moved accordingly. mutate may read but never write.
func (s *Blog) mutatePost(ctx context.Context, id string, tagNames map[string]string,
	mutate func(tx docstore.Tx, old, p *model.Post) error) (*model.Post, error) {
	var result *model.Post
	err := s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		old := new(model.Post)
		if err := tx.Get(model.CollPosts, id, old); err != nil {
			return errors.Wrapf(err, "load post `%s`", id)
		}

		p := clonePost(old)
		if err := mutate(tx, old, p); err != nil {
			return err
		}

		now := s.clock()
		p.UpdatedAt = now
		if p.IsPublished() && p.PublishedAt == nil {
			p.PublishedAt = &now
		}

		plan, err := loadCounters(tx, old, p)
		if err != nil {
			return err
		}

		if err = tx.Set(model.CollPosts, id, p); err != nil {
			return errors.Wrap(err, "save post")
		}
		if err = plan.apply(tx, tagNames, now); err != nil {
			return err
		}

		result = p
		return nil
	})

	return result, err
}

// UpdatePost replace the editable fields of a post
func (s *Blog) UpdatePost(ctx context.Context, actor events.Actor, id string, in *dto.PostInput) (*model.Post, error) {
	draft, err := buildPost(in)
	if err != nil {
		return nil, err
	}

	next := draft.post
	post, err := s.mutatePost(ctx, id, draft.tagNames, func(tx docstore.Tx, old, p *model.Post) error {
		if next.Slug != old.Slug {
			if err := checkSlugFree(tx, next.Slug, old.ID); err != nil {
				return err
			}
		}
		if next.CategoryID != old.CategoryID {
			if err := checkCategory(tx, next.CategoryID); err != nil {
				return err
			}
		}

		p.Slug = next.Slug
		p.Title = next.Title
		p.Content = next.Content
		p.HTML = next.HTML
		p.Menu = next.Menu
		p.Excerpt = next.Excerpt
		p.CoverURL = next.CoverURL
		p.CategoryID = next.CategoryID
		p.Tags = next.Tags
		p.I18N = next.I18N
		if next.Status != "" {
			p.Status = next.Status
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update post")
	}

	s.feed.Record(ctx, actor, "post.update", "post", id)
	return post, nil
}

// SetPostStatus move a post between draft, published and archived
func (s *Blog) SetPostStatus(ctx context.Context, actor events.Actor, id string, status model.PostStatus) (*model.Post, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown status `%s`", status)
	}

	post, err := s.mutatePost(ctx, id, nil, func(_ docstore.Tx, _, p *model.Post) error {
		p.Status = status
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "set post status")
	}

	s.feed.Record(ctx, actor, "post."+string(status), "post", id)
	return post, nil
}

// DeletePost delete a post and its comments
func (s *Blog) DeletePost(ctx context.Context, actor events.Actor, id string) error {
	if err := s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		old := new(model.Post)
		if err := tx.Get(model.CollPosts, id, old); err != nil {
			return errors.Wrapf(err, "load post `%s`", id)
		}

		plan, err := loadCounters(tx, old, nil)
		if err != nil {
			return err
		}

		if err = tx.Delete(model.CollPosts, id); err != nil {
			return errors.Wrap(err, "delete post")
		}

		return plan.apply(tx, nil, s.clock())
	}); err != nil {
		return errors.Wrap(err, "delete post")
	}

	cmts, err := s.dao.FindComments(ctx, s.dao.CommentsQuery().Where("post_id", docstore.OpEq, id))
	if err != nil {
		s.logger.Error("load comments of deleted post", zap.String("post", id), zap.Error(err))
	}
	for _, c := range cmts {
		if err := s.dao.DB().Delete(ctx, model.CollComments, c.ID); err != nil {
			s.logger.Error("delete comment of deleted post",
				zap.String("post", id), zap.String("comment", c.ID), zap.Error(err))
		}
	}

	s.logger.Info("post deleted", zap.String("id", id), zap.Int("comments", len(cmts)))
	s.feed.Record(ctx, actor, "post.delete", "post", id)
	return nil
}

// ListPublishedPosts newest published posts first
func (s *Blog) ListPublishedPosts(ctx context.Context, cfg *dto.PostCfg) (*dto.PostList, error) {
	page, size, err := sanitizePagination(cfg.Page, cfg.Size)
	if err != nil {
		return nil, err
	}

	result := &dto.PostList{Items: []*dto.PostView{}, Page: page, Size: size}
	q := s.dao.PostsQuery().Where("status", docstore.OpEq, string(model.PostPublished))
	if cfg.CategorySlug != "" {
		cat, err := s.dao.GetCategoryBySlug(ctx, cfg.CategorySlug)
		if err != nil {
			if docstore.IsNotFound(err) {
				return result, nil
			}
			return nil, err
		}

		q = q.Where("category_id", docstore.OpEq, cat.ID)
	}
	if cfg.Tag != "" {
		q = q.Where("tags", docstore.OpArrayContains, slugify.Readable(cfg.Tag))
	}

	if result.Total, err = s.dao.DB().Count(ctx, q); err != nil {
		return nil, errors.Wrap(err, "count posts")
	}

	posts, err := s.dao.FindPosts(ctx, q.OrderBy("published_at", docstore.Desc).Page(page, size))
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		result.Items = append(result.Items, dto.NewPostView(p, cfg.Language, false))
	}

	return result, nil
}

// GetPublishedPost load a published post by slug and count the view
func (s *Blog) GetPublishedPost(ctx context.Context, slug string, cfg *dto.PostCfg) (*dto.PostView, error) {
	post, err := s.dao.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, errors.Wrapf(model.ErrNotPublished, "post `%s`", slug)
	}

	logger := webutil.RequestLogger(ctx, s.logger)
	if err = s.dao.DB().Update(ctx, model.CollPosts, post.ID, docstore.Increment("views", 1)); err != nil {
		logger.Warn("count post view", zap.String("post", post.ID), zap.Error(err))
	} else {
		post.Views++
	}

	return dto.NewPostView(post, cfg.Language, true), nil
}

// TogglePostLike like or unlike a published post for visitor
func (s *Blog) TogglePostLike(ctx context.Context, postID, visitorID string) (*dto.LikeResult, error) {
	if visitorID == "" {
		return nil, apperr.Validation("visitor id is required")
	}

	result := new(dto.LikeResult)
	if err := s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		post := new(model.Post)
		if err := tx.Get(model.CollPosts, postID, post); err != nil {
			return errors.Wrapf(err, "load post `%s`", postID)
		}
		if !post.IsPublished() {
			return errors.Wrapf(model.ErrNotPublished, "post `%s`", postID)
		}

		result.Liked, result.Likes = toggleLike(post.LikedBy, post.Likes, visitorID)
		return tx.Update(model.CollPosts, postID, likeUpdates(result.Liked, visitorID)...)
	}); err != nil {
		return nil, errors.Wrap(err, "toggle post like")
	}

	return result, nil
}

// toggleLike returns the like state and counter after toggling visitor
func toggleLike(likedBy []string, likes int64, visitorID string) (bool, int64) {
	if slices.Contains(likedBy, visitorID) {
		return false, max(likes-1, 0)
	}

	return true, likes + 1
}

func likeUpdates(liked bool, visitorID string) []docstore.Update {
	if liked {
		return []docstore.Update{
			docstore.ArrayUnion("liked_by", visitorID),
			docstore.Increment("likes", 1),
		}
	}

	return []docstore.Update{
		docstore.ArrayRemove("liked_by", visitorID),
		docstore.Increment("likes", -1),
	}
}

// AdminListPosts posts of any status, recently updated first
func (s *Blog) AdminListPosts(ctx context.Context, cfg *dto.AdminPostCfg) (*dto.AdminPostList, error) {
	page, size, err := sanitizePagination(cfg.Page, cfg.Size)
	if err != nil {
		return nil, err
	}

	q := s.dao.PostsQuery()
	if cfg.Status != "" {
		if !cfg.Status.Valid() {
			return nil, apperr.Validation("unknown status `%s`", cfg.Status)
		}
		q = q.Where("status", docstore.OpEq, string(cfg.Status))
	}

	result := &dto.AdminPostList{Page: page, Size: size}
	if result.Total, err = s.dao.DB().Count(ctx, q); err != nil {
		return nil, errors.Wrap(err, "count posts")
	}
	if result.Items, err = s.dao.FindPosts(ctx, q.OrderBy("updated_at", docstore.Desc).Page(page, size)); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []*model.Post{}
	}

	return result, nil
}

// AdminGetPost load any post by id
func (s *Blog) AdminGetPost(ctx context.Context, id string) (*model.Post, error) {
	return s.dao.GetPost(ctx, id)
}

// counterPlan category and tag counter changes of one post write
type counterPlan struct {
	catDelta map[string]int64
	tagDelta map[string]int64
	// tagExists tags of the new post version and whether they are stored
	tagExists map[string]bool
	catExists map[string]bool
	newTags   []string
}

// contribute published posts count once for their category and each tag
func contribute(p *model.Post, sign int64, cats, tags map[string]int64) {
	if !p.IsPublished() {
		return
	}

	if p.CategoryID != "" {
		cats[p.CategoryID] += sign
	}
	for _, t := range p.Tags {
		tags[t] += sign
	}
}

// loadCounters reads the counter documents touched by replacing before
// with after, either may be nil.
func loadCounters(tx docstore.Tx, before, after *model.Post) (*counterPlan, error) {
	plan := &counterPlan{
		catDelta:  map[string]int64{},
		tagDelta:  map[string]int64{},
		tagExists: map[string]bool{},
		catExists: map[string]bool{},
	}
	if before != nil {
		contribute(before, -1, plan.catDelta, plan.tagDelta)
	}
	if after != nil {
		contribute(after, 1, plan.catDelta, plan.tagDelta)
		plan.newTags = after.Tags
	}

	tagIDs := map[string]struct{}{}
	for _, t := range plan.newTags {
		tagIDs[t] = struct{}{}
	}
	for t, d := range plan.tagDelta {
		if d != 0 {
			tagIDs[t] = struct{}{}
		}
	}

	for t := range tagIDs {
		exists, err := docExists(tx, model.CollTags, t, new(model.Tag))
		if err != nil {
			return nil, err
		}
		plan.tagExists[t] = exists
	}
	for c, d := range plan.catDelta {
		if d == 0 {
			continue
		}

		exists, err := docExists(tx, model.CollCategories, c, new(model.Category))
		if err != nil {
			return nil, err
		}
		plan.catExists[c] = exists
	}

	return plan, nil
}

func docExists(tx docstore.Tx, coll, id string, dst any) (bool, error) {
	err := tx.Get(coll, id, dst)
	switch {
	case err == nil:
		return true, nil
	case docstore.IsNotFound(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "load %s/%s", coll, id)
	}
}

// apply writes the planned counter changes, tags referenced for the first
// time are created.
func (p *counterPlan) apply(tx docstore.Tx, tagNames map[string]string, now time.Time) error {
	for _, t := range p.newTags {
		if p.tagExists[t] {
			continue
		}

		name := tagNames[t]
		if name == "" {
			name = t
		}
		if err := tx.Create(model.CollTags, t, &model.Tag{
			ID:        t,
			Name:      name,
			PostCount: max(p.tagDelta[t], 0),
			CreatedAt: now,
		}); err != nil {
			return errors.Wrapf(err, "create tag `%s`", t)
		}
		p.tagExists[t] = true
		delete(p.tagDelta, t)
	}

	for t, d := range p.tagDelta {
		if d == 0 || !p.tagExists[t] {
			continue
		}
		if err := tx.Update(model.CollTags, t, docstore.Increment("post_count", d)); err != nil {
			return errors.Wrapf(err, "count tag `%s`", t)
		}
	}

	for c, d := range p.catDelta {
		if d == 0 || !p.catExists[c] {
			continue
		}
		if err := tx.Update(model.CollCategories, c, docstore.Increment("post_count", d)); err != nil {
			return errors.Wrapf(err, "count category `%s`", c)
		}
	}

	return nil
}
