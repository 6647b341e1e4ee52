package model

import (
	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
)

var (
	// ErrSlugTaken another post or category already uses the slug
	ErrSlugTaken = errors.Wrap(apperr.ErrValidation, "slug already in use")
	// ErrInUse the category or tag is still referenced by posts
	ErrInUse = errors.Wrap(apperr.ErrValidation, "still referenced by posts")
	// ErrParentMismatch the parent comment belongs to another post
	ErrParentMismatch = errors.Wrap(apperr.ErrValidation, "parent comment belongs to another post")
	// ErrNotPublished the post is not visible to visitors
	ErrNotPublished = errors.Wrap(docstore.ErrNotFound, "post is not published")
)
