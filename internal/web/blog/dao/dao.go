// Package dao contains the data access object of the blog.
package dao

import (
	"context"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"

	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

// Blog dao type
type Blog struct {
	logger logSDK.Logger
	db     docstore.Store
}

// New create new dao
func New(logger logSDK.Logger, db docstore.Store) *Blog {
	return &Blog{
		logger: logger,
		db:     db,
	}
}

// DB returns the underlying store
func (d *Blog) DB() docstore.Store {
	return d.db
}

// GetPost load post by id
func (d *Blog) GetPost(ctx context.Context, id string) (*model.Post, error) {
	post := new(model.Post)
	if err := d.db.Get(ctx, model.CollPosts, id, post); err != nil {
		return nil, errors.Wrapf(err, "get post `%s`", id)
	}

	return post, nil
}

// FindPosts run a posts query
func (d *Blog) FindPosts(ctx context.Context, q docstore.Query) ([]*model.Post, error) {
	var posts []*model.Post
	if err := d.db.Find(ctx, q, &posts); err != nil {
		return nil, errors.Wrap(err, "find posts")
	}

	return posts, nil
}

// PostsQuery query on the posts collection
func (d *Blog) PostsQuery() docstore.Query {
	return docstore.NewQuery(model.CollPosts)
}

// GetPostBySlug load post by slug
func (d *Blog) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	posts, err := d.FindPosts(ctx, d.PostsQuery().
		Where("slug", docstore.OpEq, slug).
		WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, errors.Wrapf(docstore.ErrNotFound, "post slug `%s`", slug)
	}

	return posts[0], nil
}

// GetCategory load category by id
func (d *Blog) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	cat := new(model.Category)
	if err := d.db.Get(ctx, model.CollCategories, id, cat); err != nil {
		return nil, errors.Wrapf(err, "get category `%s`", id)
	}

	return cat, nil
}

// GetCategoryBySlug load category by slug
func (d *Blog) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var cats []*model.Category
	if err := d.db.Find(ctx, docstore.NewQuery(model.CollCategories).
		Where("slug", docstore.OpEq, slug).
		WithLimit(1), &cats); err != nil {
		return nil, errors.Wrap(err, "find category")
	}
	if len(cats) == 0 {
		return nil, errors.Wrapf(docstore.ErrNotFound, "category slug `%s`", slug)
	}

	return cats[0], nil
}

// ListCategories all categories by name
func (d *Blog) ListCategories(ctx context.Context) ([]*model.Category, error) {
	var cats []*model.Category
	if err := d.db.Find(ctx, docstore.NewQuery(model.CollCategories).
		OrderBy("name", docstore.Asc), &cats); err != nil {
		return nil, errors.Wrap(err, "list categories")
	}

	return cats, nil
}

// ListTags all tags by name
func (d *Blog) ListTags(ctx context.Context) ([]*model.Tag, error) {
	var tags []*model.Tag
	if err := d.db.Find(ctx, docstore.NewQuery(model.CollTags).
		OrderBy("name", docstore.Asc), &tags); err != nil {
		return nil, errors.Wrap(err, "list tags")
	}

	return tags, nil
}

// GetComment load comment by id
func (d *Blog) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	cmt := new(model.Comment)
	if err := d.db.Get(ctx, model.CollComments, id, cmt); err != nil {
		return nil, errors.Wrapf(err, "get comment `%s`", id)
	}

	return cmt, nil
}

// CommentsQuery query on the comments collection
func (d *Blog) CommentsQuery() docstore.Query {
	return docstore.NewQuery(model.CollComments)
}

// FindComments run a comments query
func (d *Blog) FindComments(ctx context.Context, q docstore.Query) ([]*model.Comment, error) {
	var cmts []*model.Comment
	if err := d.db.Find(ctx, q, &cmts); err != nil {
		return nil, errors.Wrap(err, "find comments")
	}

	return cmts, nil
}

// ChildComments replies whose parent is one of parentIDs, oldest first
func (d *Blog) ChildComments(ctx context.Context, parentIDs []string) ([]*model.Comment, error) {
	return d.FindComments(ctx, d.CommentsQuery().
		Where("parent_id", docstore.OpIn, parentIDs).
		OrderBy("created_at", docstore.Asc))
}
