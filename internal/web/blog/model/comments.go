package model

import (
	"time"
)

// Comment represents a comment in the blog
type Comment struct {
	// ID is the unique identifier for the comment
	ID string `firestore:"id" bson:"id" json:"id"`
	// PostID is the identifier of the blog post this comment belongs to
	PostID string `firestore:"post_id" bson:"post_id" json:"post_id"`
	// ParentID references the parent comment's ID if this is a reply, null for top-level comments
	ParentID *string `firestore:"parent_id" bson:"parent_id" json:"parent_id"`
	// Author contains information about the comment author
	Author CommentAuthor `firestore:"author" bson:"author" json:"author"`
	// Content sanitized plain text
	Content string `firestore:"content" bson:"content" json:"content"`
	// IsApproved indicates whether the comment has been approved by a moderator
	IsApproved bool `firestore:"is_approved" bson:"is_approved" json:"is_approved"`
	// IsAdminReply written by the team from the dashboard
	IsAdminReply bool     `firestore:"is_admin_reply" bson:"is_admin_reply" json:"is_admin_reply"`
	Likes        int64    `firestore:"likes" bson:"likes" json:"likes"`
	LikedBy      []string `firestore:"liked_by" bson:"liked_by" json:"-"`
	// CreatedAt records when the comment was first submitted
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at" bson:"updated_at" json:"updated_at"`
}

// IsReply reports whether the comment answers another comment
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// CommentAuthor contains information about a comment author
type CommentAuthor struct {
	// Name is the display name of the comment author
	Name string `firestore:"name" bson:"name" json:"name"`
	// Email is the email address of the commenter (only visible to admins)
	Email   string `firestore:"email" bson:"email" json:"email"`
	Website string `firestore:"website" bson:"website" json:"website,omitempty"`
	// UserID set for replies written by a dashboard user
	UserID string `firestore:"user_id" bson:"user_id" json:"user_id,omitempty"`
}

// ThreadEntry one comment of a flattened thread
type ThreadEntry struct {
	Comment *Comment `json:"comment"`
	// Depth 0 for the thread root
	Depth int `json:"depth"`
}
