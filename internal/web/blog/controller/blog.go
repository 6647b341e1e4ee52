// Package controller exposes the blog over gin REST handlers.
package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/blog/dto"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/internal/web/blog/service"
	"github.com/Laisky/agency-site/library/apperr"
)

// Verifier checks a captcha token for the current request
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Blog handlers
type Blog struct {
	svc     *service.Blog
	captcha Verifier
}

// New create blog controller, captcha may be nil to skip verification
func New(svc *service.Blog, captcha Verifier) *Blog {
	return &Blog{svc: svc, captcha: captcha}
}

// RegisterPublic mounts the visitor routes
func (b *Blog) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/posts", b.ListPosts)
	g.GET("/posts/:slug", b.GetPost)
	g.POST("/posts/:slug/like", b.LikePost)
	g.GET("/posts/:slug/comments", b.ListPostComments)
	g.POST("/comments", b.CreateComment)
	g.POST("/comments/:id/like", b.LikeComment)
	g.GET("/categories", b.ListCategories)
	g.GET("/tags", b.ListTags)
}

// RegisterAdmin mounts the dashboard routes. write guards every mutating route.
func (b *Blog) RegisterAdmin(g *gin.RouterGroup, write gin.HandlerFunc) {
	g.GET("/posts", b.AdminListPosts)
	g.GET("/posts/:id", b.AdminGetPost)
	g.POST("/posts", write, b.CreatePost)
	g.PUT("/posts/:id", write, b.UpdatePost)
	g.PUT("/posts/:id/status", write, b.SetPostStatus)
	g.DELETE("/posts/:id", write, b.DeletePost)

	g.POST("/categories", write, b.CreateCategory)
	g.DELETE("/categories/:id", write, b.DeleteCategory)
	g.POST("/tags", write, b.CreateTag)
	g.DELETE("/tags/:id", write, b.DeleteTag)

	g.GET("/comments", b.AdminListComments)
	g.GET("/comments/:id/thread", b.Thread)
	g.POST("/comments/:id/approve", write, b.ApproveComment)
	g.POST("/comments/:id/reply", write, b.ReplyComment)
	g.DELETE("/comments/:id", write, b.DeleteComment)
}

func (b *Blog) actor(c *gin.Context) (events.Actor, bool) {
	actor, ok := webutil.GetActor(c)
	if !ok {
		webutil.AbortWithError(c, apperr.Unauthorized("login required"))
	}

	return actor, ok
}

// ListPosts GET /posts?category=&tag=&page=&size=&lang=
func (b *Blog) ListPosts(c *gin.Context) {
	page, size, err := webutil.Paging(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	list, err := b.svc.ListPublishedPosts(c, &dto.PostCfg{
		CategorySlug: c.Query("category"),
		Tag:          c.Query("tag"),
		Page:         page,
		Size:         size,
		Language:     webutil.Lang(c),
	})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetPost GET /posts/:slug
func (b *Blog) GetPost(c *gin.Context) {
	post, err := b.svc.GetPublishedPost(c, c.Param("slug"), &dto.PostCfg{Language: webutil.Lang(c)})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// LikePost POST /posts/:slug/like, the path carries the post id
func (b *Blog) LikePost(c *gin.Context) {
	res, err := b.svc.TogglePostLike(c, c.Param("slug"), webutil.VisitorID(c))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// ListPostComments GET /posts/:slug/comments, the path carries the post id
func (b *Blog) ListPostComments(c *gin.Context) {
	cmts, err := b.svc.ListPostComments(c, c.Param("slug"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": cmts})
}

// CreateComment POST /comments
func (b *Blog) CreateComment(c *gin.Context) {
	in := new(dto.CommentInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	if b.captcha != nil {
		if err := b.captcha.Verify(c, in.TurnstileToken); err != nil {
			webutil.AbortWithError(c, apperr.Forbidden("captcha rejected: %v", err))
			return
		}
	}

	cmt, err := b.svc.CreateComment(c, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewCommentView(cmt))
}

// LikeComment POST /comments/:id/like
func (b *Blog) LikeComment(c *gin.Context) {
	res, err := b.svc.ToggleCommentLike(c, c.Param("id"), webutil.VisitorID(c))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// ListCategories GET /categories
func (b *Blog) ListCategories(c *gin.Context) {
	cats, err := b.svc.ListCategories(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": cats})
}

// ListTags GET /tags
func (b *Blog) ListTags(c *gin.Context) {
	tags, err := b.svc.ListTags(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": tags})
}

// AdminListPosts GET /posts?status=
func (b *Blog) AdminListPosts(c *gin.Context) {
	page, size, err := webutil.Paging(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	list, err := b.svc.AdminListPosts(c, &dto.AdminPostCfg{
		Status: model.PostStatus(c.Query("status")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (b *Blog) AdminGetPost(c *gin.Context) {
	post, err := b.svc.AdminGetPost(c, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (b *Blog) CreatePost(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	in := new(dto.PostInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	post, err := b.svc.CreatePost(c, actor, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (b *Blog) UpdatePost(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	in := new(dto.PostInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	post, err := b.svc.UpdatePost(c, actor, c.Param("id"), in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

type statusRequest struct {
	Status model.PostStatus `json:"status"`
}

// SetPostStatus PUT /posts/:id/status {"status": "published"}
func (b *Blog) SetPostStatus(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	req := new(statusRequest)
	if err := webutil.BindJSON(c, req); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	post, err := b.svc.SetPostStatus(c, actor, c.Param("id"), req.Status)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (b *Blog) DeletePost(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	if err := b.svc.DeletePost(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (b *Blog) CreateCategory(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	in := new(dto.CategoryInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	cat, err := b.svc.CreateCategory(c, actor, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cat)
}

func (b *Blog) DeleteCategory(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	if err := b.svc.DeleteCategory(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (b *Blog) CreateTag(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	in := new(dto.TagInput)
	if err := webutil.BindJSON(c, in); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	tag, err := b.svc.CreateTag(c, actor, in)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tag)
}

func (b *Blog) DeleteTag(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	if err := b.svc.DeleteTag(c, actor, c.Param("id")); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AdminListComments GET /comments?post_id=&pending=true
func (b *Blog) AdminListComments(c *gin.Context) {
	page, size, err := webutil.Paging(c)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	pending, _ := strconv.ParseBool(c.Query("pending"))
	list, err := b.svc.AdminListComments(c, &dto.AdminCommentCfg{
		PostID:      c.Query("post_id"),
		PendingOnly: pending,
		Page:        page,
		Size:        size,
	})
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

type threadItem struct {
	*model.Comment
	Depth int `json:"depth"`
}

// Thread GET /comments/:id/thread, flattened depth first
func (b *Blog) Thread(c *gin.Context) {
	entries, err := b.svc.Thread(c, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	items := make([]threadItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, threadItem{Comment: e.Comment, Depth: e.Depth})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (b *Blog) ApproveComment(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	cmt, err := b.svc.ApproveComment(c, actor, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cmt)
}

type replyRequest struct {
	Content string `json:"content"`
}

func (b *Blog) ReplyComment(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	req := new(replyRequest)
	if err := webutil.BindJSON(c, req); err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	cmt, err := b.svc.AdminReply(c, actor, c.Param("id"), req.Content)
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cmt)
}

func (b *Blog) DeleteComment(c *gin.Context) {
	actor, ok := b.actor(c)
	if !ok {
		return
	}

	n, err := b.svc.DeleteComment(c, actor, c.Param("id"))
	if err != nil {
		webutil.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
