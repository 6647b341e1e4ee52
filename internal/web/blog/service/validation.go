package service

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/slugify"
)

const (
	maxPageSize = 100
	// maxPostTitleLength caps the length of post titles.
	maxPostTitleLength = 200
	// maxPostContentLength caps the markdown source of a post.
	maxPostContentLength = 200000
	maxPostTags          = 20
	maxTagLength         = 64
	maxURLLength         = 2048
	// maxCategoryNameLength caps the length of category names.
	maxCategoryNameLength = 100
	// maxCommentContentLength caps the length of comment content.
	maxCommentContentLength = 5000
	// maxCommentAuthorNameLen caps the length of comment author names.
	maxCommentAuthorNameLen = 100
	// maxCommentAuthorEmailLen caps the length of comment author emails.
	maxCommentAuthorEmailLen = 254
)

// sanitizeOptionalText trims input, checks for null bytes, enforces maxLen runes, and returns the sanitized value.
func sanitizeOptionalText(input string, maxLen int, field string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", nil
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", apperr.Validation("%s contains invalid null byte", field)
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", apperr.Validation("%s too long, max %d characters", field, maxLen)
	}
	return trimmed, nil
}

// sanitizeRequiredText is sanitizeOptionalText that rejects empty input.
func sanitizeRequiredText(input string, maxLen int, field string) (string, error) {
	trimmed, err := sanitizeOptionalText(input, maxLen, field)
	if err != nil {
		return "", err
	}
	if trimmed == "" {
		return "", apperr.Validation("%s is required", field)
	}
	return trimmed, nil
}

// sanitizePagination validates page and size bounds, size 0 means the default
func sanitizePagination(page, size int) (int, int, error) {
	if page < 0 {
		return 0, 0, apperr.Validation("page must be non-negative")
	}
	switch {
	case size < 0 || size > maxPageSize:
		return 0, 0, apperr.Validation("size must be within [1~%d]", maxPageSize)
	case size == 0:
		size = 20
	}
	return page, size, nil
}

// sanitizeEmail validates and normalizes an email address
func sanitizeEmail(email string) (string, error) {
	trimmed, err := sanitizeRequiredText(email, maxCommentAuthorEmailLen, "email")
	if err != nil {
		return "", err
	}

	normalized, err := mail.ValidAddress(trimmed)
	if err != nil {
		return "", apperr.Validation("invalid email `%s`", trimmed)
	}
	return normalized, nil
}

// sanitizeURL accepts empty or absolute http(s) urls
func sanitizeURL(raw, field string) (string, error) {
	trimmed, err := sanitizeOptionalText(raw, maxURLLength, field)
	if err != nil || trimmed == "" {
		return "", err
	}

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation("invalid %s `%s`", field, trimmed)
	}
	return u.String(), nil
}

// normalizeTags slugify and dedupe tags, order preserved. names maps each
// slug to the first spelling seen.
func normalizeTags(tags []string) (slugs []string, names map[string]string, err error) {
	if len(tags) > maxPostTags {
		return nil, nil, apperr.Validation("too many tags, max %d", maxPostTags)
	}

	names = make(map[string]string, len(tags))
	slugs = make([]string, 0, len(tags))
	for _, raw := range tags {
		name, err := sanitizeOptionalText(raw, maxTagLength, "tag")
		if err != nil {
			return nil, nil, err
		}
		if name == "" {
			continue
		}

		slug := slugify.Readable(name)
		if _, ok := names[slug]; ok || slug == "" {
			continue
		}
		names[slug] = name
		slugs = append(slugs, slug)
	}

	return slugs, names, nil
}

// sanitizeSlug normalizes a user supplied slug, falling back to the title
func sanitizeSlug(slug, title string) (string, error) {
	slug, err := sanitizeOptionalText(slug, slugify.MaxLength, "slug")
	if err != nil {
		return "", err
	}
	if slug == "" {
		return slugify.Make(title), nil
	}

	return slugify.Make(slug), nil
}
