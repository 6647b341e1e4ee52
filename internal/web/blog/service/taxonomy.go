package service

import (
	"context"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/blog/dto"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/slugify"
)

// ListCategories all categories
func (s *Blog) ListCategories(ctx context.Context) ([]*model.Category, error) {
	cats, err := s.dao.ListCategories(ctx)
	if cats == nil && err == nil {
		cats = []*model.Category{}
	}

	return cats, err
}

// CreateCategory create a category with an unique slug
func (s *Blog) CreateCategory(ctx context.Context, actor events.Actor, in *dto.CategoryInput) (*model.Category, error) {
	name, err := sanitizeRequiredText(in.Name, maxCategoryNameLength, "category name")
	if err != nil {
		return nil, err
	}
	nameAr, err := sanitizeOptionalText(in.NameAr, maxCategoryNameLength, "arabic category name")
	if err != nil {
		return nil, err
	}
	slug, err := sanitizeOptionalText(in.Slug, slugify.MaxLength, "slug")
	if err != nil {
		return nil, err
	}
	if slug == "" {
		slug = name
	}

	cat := &model.Category{
		ID:        gutils.UUID7(),
		Slug:      slugify.Readable(slug),
		Name:      name,
		NameAr:    nameAr,
		CreatedAt: s.clock(),
	}
	if err = s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var existing []*model.Category
		if err := tx.Find(docstore.NewQuery(model.CollCategories).
			Where("slug", docstore.OpEq, cat.Slug).
			WithLimit(1), &existing); err != nil {
			return errors.Wrap(err, "check category slug")
		}
		if len(existing) > 0 {
			return errors.Wrapf(model.ErrSlugTaken, "category slug `%s`", cat.Slug)
		}

		return tx.Create(model.CollCategories, cat.ID, cat)
	}); err != nil {
		return nil, errors.Wrap(err, "create category")
	}

	s.feed.Record(ctx, actor, "category.create", "category", cat.ID)
	return cat, nil
}

// DeleteCategory delete a category no post refers to
func (s *Blog) DeleteCategory(ctx context.Context, actor events.Actor, id string) error {
	if _, err := s.dao.GetCategory(ctx, id); err != nil {
		return err
	}

	n, err := s.dao.DB().Count(ctx, s.dao.PostsQuery().Where("category_id", docstore.OpEq, id))
	if err != nil {
		return errors.Wrap(err, "count category posts")
	}
	if n > 0 {
		return errors.Wrapf(model.ErrInUse, "category `%s` has %d posts", id, n)
	}

	if err = s.dao.DB().Delete(ctx, model.CollCategories, id); err != nil {
		return errors.Wrap(err, "delete category")
	}

	s.feed.Record(ctx, actor, "category.delete", "category", id)
	return nil
}

// ListTags all tags
func (s *Blog) ListTags(ctx context.Context) ([]*model.Tag, error) {
	tags, err := s.dao.ListTags(ctx)
	if tags == nil && err == nil {
		tags = []*model.Tag{}
	}

	return tags, err
}

// CreateTag create a tag, its slug is the document id
func (s *Blog) CreateTag(ctx context.Context, actor events.Actor, in *dto.TagInput) (*model.Tag, error) {
	name, err := sanitizeRequiredText(in.Name, maxTagLength, "tag name")
	if err != nil {
		return nil, err
	}
	slug, err := sanitizeOptionalText(in.Slug, slugify.MaxLength, "slug")
	if err != nil {
		return nil, err
	}
	if slug == "" {
		slug = name
	}

	tag := &model.Tag{
		ID:        slugify.Readable(slug),
		Name:      name,
		CreatedAt: s.clock(),
	}
	if tag.ID == "" {
		return nil, apperr.Validation("invalid tag slug `%s`", slug)
	}

	if err = s.dao.DB().Create(ctx, model.CollTags, tag.ID, tag); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return nil, errors.Wrapf(model.ErrSlugTaken, "tag `%s`", tag.ID)
		}
		return nil, errors.Wrap(err, "create tag")
	}

	s.feed.Record(ctx, actor, "tag.create", "tag", tag.ID)
	return tag, nil
}

// DeleteTag delete a tag no post carries
func (s *Blog) DeleteTag(ctx context.Context, actor events.Actor, id string) error {
	n, err := s.dao.DB().Count(ctx, s.dao.PostsQuery().Where("tags", docstore.OpArrayContains, id))
	if err != nil {
		return errors.Wrap(err, "count tag posts")
	}
	if n > 0 {
		return errors.Wrapf(model.ErrInUse, "tag `%s` has %d posts", id, n)
	}

	if err = s.dao.DB().Delete(ctx, model.CollTags, id); err != nil {
		return errors.Wrap(err, "delete tag")
	}

	s.feed.Record(ctx, actor, "tag.delete", "tag", id)
	return nil
}
