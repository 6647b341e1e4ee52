// Package model contains the blog documents.
package model

import (
	"time"
)

const (
	// CollPosts posts collection
	CollPosts = "posts"
	// CollCategories categories collection
	CollCategories = "categories"
	// CollTags tags collection
	CollTags = "tags"
	// CollComments comments collection
	CollComments = "comments"
)

// PostStatus lifecycle of a post
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

// Valid reports whether s is a known status
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	default:
		return false
	}
}

// Post blog posts
type Post struct {
	// ID unique identifier for the post
	ID string `firestore:"id" bson:"id" json:"id"`
	// Slug url name of the post, unique among all posts
	Slug string `firestore:"slug" bson:"slug" json:"slug"`
	// Status draft, published or archived
	Status PostStatus `firestore:"status" bson:"status" json:"status"`
	// Title title of the post
	Title string `firestore:"title" bson:"title" json:"title"`
	// Content markdown source of the post
	Content string `firestore:"content" bson:"content" json:"content"`
	// HTML sanitized html rendered from Content
	HTML string `firestore:"html" bson:"html" json:"html"`
	// Menu navigation built from the h2/h3 headers of HTML
	Menu string `firestore:"menu" bson:"menu" json:"menu"`
	// Excerpt plain text summary
	Excerpt  string `firestore:"excerpt" bson:"excerpt" json:"excerpt"`
	CoverURL string `firestore:"cover_url" bson:"cover_url" json:"cover_url"`
	// CategoryID optional category, empty for none
	CategoryID string `firestore:"category_id" bson:"category_id" json:"category_id"`
	// Tags tag slugs
	Tags     []string `firestore:"tags" bson:"tags" json:"tags"`
	AuthorID string   `firestore:"author_id" bson:"author_id" json:"author_id"`
	// I18N translations of the post
	I18N PostI18N `firestore:"i18n" bson:"i18n" json:"i18n"`

	Views         int64    `firestore:"views" bson:"views" json:"views"`
	Likes         int64    `firestore:"likes" bson:"likes" json:"likes"`
	LikedBy       []string `firestore:"liked_by" bson:"liked_by" json:"-"`
	CommentsCount int64    `firestore:"comments_count" bson:"comments_count" json:"comments_count"`

	// PublishedAt set when the post is published for the first time
	PublishedAt *time.Time `firestore:"published_at" bson:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `firestore:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `firestore:"updated_at" bson:"updated_at" json:"updated_at"`
}

// IsPublished reports whether visitors can see the post
func (p *Post) IsPublished() bool {
	return p != nil && p.Status == PostPublished
}

// PostI18N blog post internationalization
type PostI18N struct {
	// Ar arabic version
	Ar PostTranslation `firestore:"ar" bson:"ar" json:"ar"`
}

// PostTranslation one language version of a post
type PostTranslation struct {
	Title   string `firestore:"title" bson:"title" json:"title"`
	Content string `firestore:"content" bson:"content" json:"content"`
	HTML    string `firestore:"html" bson:"html" json:"html"`
	Menu    string `firestore:"menu" bson:"menu" json:"menu"`
	Excerpt string `firestore:"excerpt" bson:"excerpt" json:"excerpt"`
}

// Category groups posts
type Category struct {
	ID     string `firestore:"id" bson:"id" json:"id"`
	Slug   string `firestore:"slug" bson:"slug" json:"slug"`
	Name   string `firestore:"name" bson:"name" json:"name"`
	NameAr string `firestore:"name_ar" bson:"name_ar" json:"name_ar"`
	// PostCount number of published posts in the category
	PostCount int64     `firestore:"post_count" bson:"post_count" json:"post_count"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}

// Tag of posts, the document id is the slug
type Tag struct {
	ID   string `firestore:"id" bson:"id" json:"id"`
	Name string `firestore:"name" bson:"name" json:"name"`
	// PostCount number of published posts carrying the tag
	PostCount int64     `firestore:"post_count" bson:"post_count" json:"post_count"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}
