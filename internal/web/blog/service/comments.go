package service

// -------------------------------------
// Comments replace a hosted comment widget: visitors post, the team moderates
// -------------------------------------

import (
	"context"
	"fmt"
	"slices"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/blog/dto"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/metrics"
)

// inQueryLimit max values of one `in` filter
const inQueryLimit = 30

// sanitizeCommentText strips all markup from comment content
func sanitizeCommentText(content string) (string, error) {
	content, err := sanitizeRequiredText(content, maxCommentContentLength, "content")
	if err != nil {
		return "", err
	}

	return sanitizeRequiredText(StripTags(content), maxCommentContentLength, "content")
}

// CreateComment store a visitor comment for moderation
func (s *Blog) CreateComment(ctx context.Context, in *dto.CommentInput) (*model.Comment, error) {
	name, err := sanitizeRequiredText(in.Name, maxCommentAuthorNameLen, "name")
	if err != nil {
		return nil, err
	}
	email, err := sanitizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	website, err := sanitizeURL(in.Website, "website")
	if err != nil {
		return nil, err
	}
	content, err := sanitizeCommentText(in.Content)
	if err != nil {
		return nil, err
	}
	if in.PostID == "" {
		return nil, apperr.Validation("post_id is required")
	}

	post, err := s.dao.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, errors.Wrapf(model.ErrNotPublished, "post `%s`", in.PostID)
	}

	now := s.clock()
	cmt := &model.Comment{
		ID:     gutils.UUID7(),
		PostID: post.ID,
		Author: model.CommentAuthor{
			Name:    StripTags(name),
			Email:   email,
			Website: website,
		},
		Content:   content,
		LikedBy:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.ParentID != "" {
		parent, err := s.dao.GetComment(ctx, in.ParentID)
		if err != nil {
			if docstore.IsNotFound(err) {
				return nil, apperr.Validation("unknown parent comment `%s`", in.ParentID)
			}
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, errors.Wrapf(model.ErrParentMismatch, "comment `%s`", parent.ID)
		}

		cmt.ParentID = library.Ptr(parent.ID)
	}

	if err = s.dao.DB().Create(ctx, model.CollComments, cmt.ID, cmt); err != nil {
		return nil, errors.Wrap(err, "create comment")
	}

	metrics.CommentsSubmitted.Inc()
	webutil.RequestLogger(ctx, s.logger).Info("comment submitted",
		zap.String("comment", cmt.ID), zap.String("post", post.ID))
	s.feed.Notify(ctx, "comment",
		fmt.Sprintf("New comment on \"%s\"", post.Title),
		library.Truncate(content, 140),
		"/admin/comments?pending=true&post_id="+post.ID)
	s.feed.Record(ctx, events.Actor{Name: cmt.Author.Name}, "comment.create", "comment", cmt.ID)
	return cmt, nil
}

// ApproveComment publish a comment, approving twice changes nothing
func (s *Blog) ApproveComment(ctx context.Context, actor events.Actor, id string) (*model.Comment, error) {
	cmt := new(model.Comment)
	if err := s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Get(model.CollComments, id, cmt); err != nil {
			return errors.Wrapf(err, "load comment `%s`", id)
		}
		if cmt.IsApproved {
			return nil
		}

		postExists, err := docExists(tx, model.CollPosts, cmt.PostID, new(model.Post))
		if err != nil {
			return err
		}

		cmt.IsApproved = true
		cmt.UpdatedAt = s.clock()
		if err = tx.Update(model.CollComments, id,
			docstore.Set("is_approved", true),
			docstore.Set("updated_at", cmt.UpdatedAt),
		); err != nil {
			return errors.Wrap(err, "approve comment")
		}

		if !postExists {
			return nil
		}
		return tx.Update(model.CollPosts, cmt.PostID, docstore.Increment("comments_count", 1))
	}); err != nil {
		return nil, errors.Wrap(err, "approve comment")
	}

	s.feed.Record(ctx, actor, "comment.approve", "comment", id)
	return cmt, nil
}

// AdminReply answer a comment as the team. The reply is published at once
// and the original author is mailed.
func (s *Blog) AdminReply(ctx context.Context, actor events.Actor, parentID, content string) (*model.Comment, error) {
	content, err := sanitizeCommentText(content)
	if err != nil {
		return nil, err
	}

	var (
		now    = s.clock()
		parent = new(model.Comment)
		post   = new(model.Post)
		reply  = &model.Comment{
			ID:       gutils.UUID7(),
			ParentID: library.Ptr(parentID),
			Author: model.CommentAuthor{
				Name:   actor.Name,
				UserID: actor.ID,
			},
			Content:      content,
			IsApproved:   true,
			IsAdminReply: true,
			LikedBy:      []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	)

	if err = s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Get(model.CollComments, parentID, parent); err != nil {
			return errors.Wrapf(err, "load comment `%s`", parentID)
		}
		if err := tx.Get(model.CollPosts, parent.PostID, post); err != nil {
			return errors.Wrapf(err, "load post `%s`", parent.PostID)
		}

		reply.PostID = parent.PostID
		if err := tx.Create(model.CollComments, reply.ID, reply); err != nil {
			return errors.Wrap(err, "create reply")
		}

		return tx.Update(model.CollPosts, post.ID, docstore.Increment("comments_count", 1))
	}); err != nil {
		return nil, errors.Wrap(err, "admin reply")
	}

	s.feed.Record(ctx, actor, "comment.reply", "comment", reply.ID)
	if !parent.IsAdminReply {
		s.mailReplyNotice(ctx, parent, post, reply)
	}

	return reply, nil
}

func (s *Blog) mailReplyNotice(ctx context.Context, parent *model.Comment, post *model.Post, reply *model.Comment) {
	if s.mailer == nil || s.tpl == nil || parent.Author.Email == "" {
		return
	}

	logger := webutil.RequestLogger(ctx, s.logger).With(zap.String("comment", parent.ID))
	msg, err := s.tpl.CommentReply(
		mail.Address{Name: parent.Author.Name, Email: parent.Author.Email},
		post.Title, post.Slug, reply.Content)
	if err != nil {
		logger.Error("render reply notice", zap.Error(err))
		return
	}

	err = s.mailer.Send(ctx, msg)
	metrics.RecordMail(msg.Tag, err)
	if err != nil {
		logger.Warn("send reply notice", zap.Error(err))
	}
}

// DeleteComment delete a comment with all its replies
func (s *Blog) DeleteComment(ctx context.Context, actor events.Actor, id string) (deleted int, err error) {
	thread, err := s.thread(ctx, id, 0)
	if err != nil {
		return 0, err
	}

	if err = s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		deleted = 0
		var (
			approved int64
			ids      []string
		)
		for _, entry := range thread {
			cmt := new(model.Comment)
			exists, err := docExists(tx, model.CollComments, entry.Comment.ID, cmt)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}

			ids = append(ids, cmt.ID)
			if cmt.IsApproved {
				approved++
			}
		}

		postID := thread[0].Comment.PostID
		postExists, err := docExists(tx, model.CollPosts, postID, new(model.Post))
		if err != nil {
			return err
		}

		for _, cid := range ids {
			if err := tx.Delete(model.CollComments, cid); err != nil {
				return errors.Wrapf(err, "delete comment `%s`", cid)
			}
		}
		deleted = len(ids)

		if approved == 0 || !postExists {
			return nil
		}
		return tx.Update(model.CollPosts, postID, docstore.Increment("comments_count", -approved))
	}); err != nil {
		return 0, errors.Wrap(err, "delete comment")
	}

	s.feed.Record(ctx, actor, "comment.delete", "comment", id)
	return deleted, nil
}

// ToggleCommentLike like or unlike an approved comment for visitor
func (s *Blog) ToggleCommentLike(ctx context.Context, commentID, visitorID string) (*dto.LikeResult, error) {
	if visitorID == "" {
		return nil, apperr.Validation("visitor id is required")
	}

	result := new(dto.LikeResult)
	if err := s.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		cmt := new(model.Comment)
		if err := tx.Get(model.CollComments, commentID, cmt); err != nil {
			return errors.Wrapf(err, "load comment `%s`", commentID)
		}
		if !cmt.IsApproved {
			return errors.Wrapf(docstore.ErrNotFound, "comment `%s` is not approved", commentID)
		}

		result.Liked, result.Likes = toggleLike(cmt.LikedBy, cmt.Likes, visitorID)
		return tx.Update(model.CollComments, commentID, likeUpdates(result.Liked, visitorID)...)
	}); err != nil {
		return nil, errors.Wrap(err, "toggle comment like")
	}

	return result, nil
}

// ListPostComments approved comments of a published post as a tree
func (s *Blog) ListPostComments(ctx context.Context, postID string) ([]*dto.CommentView, error) {
	post, err := s.dao.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, errors.Wrapf(model.ErrNotPublished, "post `%s`", postID)
	}

	cmts, err := s.dao.FindComments(ctx, s.dao.CommentsQuery().
		Where("post_id", docstore.OpEq, postID).
		Where("is_approved", docstore.OpEq, true).
		OrderBy("created_at", docstore.Asc))
	if err != nil {
		return nil, err
	}

	return buildCommentTree(cmts), nil
}

// buildCommentTree organizes comments into a tree structure. Replies whose
// parent is not in cmts are dropped.
func buildCommentTree(cmts []*model.Comment) []*dto.CommentView {
	views := make(map[string]*dto.CommentView, len(cmts))
	for _, c := range cmts {
		views[c.ID] = dto.NewCommentView(c)
	}

	roots := []*dto.CommentView{}
	for _, c := range cmts {
		view := views[c.ID]
		if !c.IsReply() {
			roots = append(roots, view)
			continue
		}

		if parent, ok := views[*c.ParentID]; ok && parent != view {
			parent.Replies = append(parent.Replies, view)
		}
	}

	return roots
}

// AdminListComments all comments, newest first
func (s *Blog) AdminListComments(ctx context.Context, cfg *dto.AdminCommentCfg) (*dto.CommentList, error) {
	page, size, err := sanitizePagination(cfg.Page, cfg.Size)
	if err != nil {
		return nil, err
	}

	q := s.dao.CommentsQuery()
	if cfg.PostID != "" {
		q = q.Where("post_id", docstore.OpEq, cfg.PostID)
	}
	if cfg.PendingOnly {
		q = q.Where("is_approved", docstore.OpEq, false)
	}

	result := &dto.CommentList{Page: page, Size: size}
	if result.Total, err = s.dao.DB().Count(ctx, q); err != nil {
		return nil, errors.Wrap(err, "count comments")
	}
	if result.Items, err = s.dao.FindComments(ctx, q.OrderBy("created_at", docstore.Desc).Page(page, size)); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []*model.Comment{}
	}

	return result, nil
}

// Thread flattens the comment rootID and all its replies depth first,
// siblings oldest first. Children are fetched one query per tree level.
// Replies deeper than the configured max depth are left out, and a
// comment is never visited twice even if parent links form a cycle.
func (s *Blog) Thread(ctx context.Context, rootID string) ([]model.ThreadEntry, error) {
	return s.thread(ctx, rootID, s.maxThreadDepth)
}

// thread walks the replies of rootID down to maxDepth levels,
// maxDepth <= 0 walks until no replies are left.
func (s *Blog) thread(ctx context.Context, rootID string, maxDepth int) ([]model.ThreadEntry, error) {
	root, err := s.dao.GetComment(ctx, rootID)
	if err != nil {
		return nil, err
	}

	logger := webutil.RequestLogger(ctx, s.logger).With(zap.String("root", rootID))
	var (
		visited  = map[string]struct{}{root.ID: {}}
		children = map[string][]*model.Comment{}
		level    = []string{root.ID}
	)
	for depth := 1; len(level) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			logger.Warn("comment thread exceeds max depth", zap.Int("max_depth", maxDepth))
			break
		}

		var next []string
		for chunk := range slices.Chunk(level, inQueryLimit) {
			cmts, err := s.dao.ChildComments(ctx, chunk)
			if err != nil {
				return nil, errors.Wrapf(err, "load replies at depth %d", depth)
			}

			for _, c := range cmts {
				if _, ok := visited[c.ID]; ok {
					logger.Warn("comment visited twice", zap.String("comment", c.ID))
					continue
				}

				visited[c.ID] = struct{}{}
				children[*c.ParentID] = append(children[*c.ParentID], c)
				next = append(next, c.ID)
			}
		}

		level = next
	}

	entries := make([]model.ThreadEntry, 0, len(visited))
	var walk func(c *model.Comment, depth int)
	walk = func(c *model.Comment, depth int) {
		entries = append(entries, model.ThreadEntry{Comment: c, Depth: depth})
		kids := children[c.ID]
		slices.SortStableFunc(kids, func(a, b *model.Comment) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		for _, kid := range kids {
			walk(kid, depth+1)
		}
	}
	walk(root, 0)

	return entries, nil
}
