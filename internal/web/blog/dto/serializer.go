// Package dto request and response shapes of the blog API
package dto

import (
	"time"

	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/i18n"
)

// PostInput create or update a post
type PostInput struct {
	Title      string           `json:"title"`
	Slug       string           `json:"slug"`
	Content    string           `json:"content"`
	CoverURL   string           `json:"cover_url"`
	CategoryID string           `json:"category_id"`
	Tags       []string         `json:"tags"`
	Status     model.PostStatus `json:"status"`
	TitleAr    string           `json:"title_ar"`
	ContentAr  string           `json:"content_ar"`
}

// PostCfg public post listing
type PostCfg struct {
	CategorySlug string
	Tag          string
	Page, Size   int
	Language     i18n.Lang
}

// AdminPostCfg dashboard post listing
type AdminPostCfg struct {
	// Status empty for any
	Status     model.PostStatus
	Page, Size int
}

// PostView a post as shown to visitors in one language
type PostView struct {
	ID            string     `json:"id"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	HTML          string     `json:"html,omitempty"`
	Menu          string     `json:"menu,omitempty"`
	Excerpt       string     `json:"excerpt"`
	CoverURL      string     `json:"cover_url,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	Tags          []string   `json:"tags"`
	Views         int64      `json:"views"`
	Likes         int64      `json:"likes"`
	CommentsCount int64      `json:"comments_count"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Language      i18n.Lang  `json:"language"`
}

// NewPostView localize post, withBody includes the rendered html
func NewPostView(p *model.Post, lang i18n.Lang, withBody bool) *PostView {
	v := &PostView{
		ID:            p.ID,
		Slug:          p.Slug,
		Title:         p.Title,
		Excerpt:       p.Excerpt,
		CoverURL:      p.CoverURL,
		CategoryID:    p.CategoryID,
		Tags:          p.Tags,
		Views:         p.Views,
		Likes:         p.Likes,
		CommentsCount: p.CommentsCount,
		PublishedAt:   p.PublishedAt,
		Language:      i18n.EN,
	}
	if withBody {
		v.HTML = p.HTML
		v.Menu = p.Menu
	}

	if ar := p.I18N.Ar; lang == i18n.AR && ar.Title != "" {
		v.Language = i18n.AR
		v.Title = ar.Title
		v.Excerpt = ar.Excerpt
		if withBody {
			v.HTML = ar.HTML
			v.Menu = ar.Menu
		}
	}

	if v.Tags == nil {
		v.Tags = []string{}
	}
	return v
}

// PostList one page of posts
type PostList struct {
	Items []*PostView `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// AdminPostList one page of posts for the dashboard
type AdminPostList struct {
	Items []*model.Post `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

// CategoryInput create a category
type CategoryInput struct {
	Name   string `json:"name"`
	NameAr string `json:"name_ar"`
	Slug   string `json:"slug"`
}

// TagInput create a tag
type TagInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CommentInput visitor comment
type CommentInput struct {
	PostID         string `json:"post_id"`
	ParentID       string `json:"parent_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Website        string `json:"website"`
	Content        string `json:"content"`
	TurnstileToken string `json:"turnstile_token"`
}

// CommentView a comment as shown to visitors
type CommentView struct {
	ID            string         `json:"id"`
	PostID        string         `json:"post_id"`
	ParentID      *string        `json:"parent_id,omitempty"`
	AuthorName    string         `json:"author_name"`
	AuthorWebsite string         `json:"author_website,omitempty"`
	Content       string         `json:"content"`
	IsAdminReply  bool           `json:"is_admin_reply"`
	Likes         int64          `json:"likes"`
	CreatedAt     time.Time      `json:"created_at"`
	Replies       []*CommentView `json:"replies,omitempty"`
}

// NewCommentView hides the author email
func NewCommentView(c *model.Comment) *CommentView {
	return &CommentView{
		ID:            c.ID,
		PostID:        c.PostID,
		ParentID:      c.ParentID,
		AuthorName:    c.Author.Name,
		AuthorWebsite: c.Author.Website,
		Content:       c.Content,
		IsAdminReply:  c.IsAdminReply,
		Likes:         c.Likes,
		CreatedAt:     c.CreatedAt,
	}
}

// AdminCommentCfg dashboard comment listing
type AdminCommentCfg struct {
	PostID      string
	PendingOnly bool
	Page, Size  int
}

// CommentList one page of comments for the dashboard
type CommentList struct {
	Items []*model.Comment `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// LikeResult state after toggling a like
type LikeResult struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}
