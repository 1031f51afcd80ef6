package board

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("board: not found")
	ErrInvalidParent = errors.New("board: parent comment does not belong to the post")
)

// Post is a board posting. Views and likes are not stored here: they are
// the engagement ledger's counters, joined in when a view is rendered.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Images    []string  `json:"images,omitempty"`
	Author    string    `json:"author"`
	LoginID   string    `json:"loginId"`
	StudentID string    `json:"studentId"`
	AvatarURL string    `json:"profileImage"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is one node of a post's comment tree. Reply is true iff
// ParentID is set; list views rely on this flag, not on structural
// position, to separate top-level comments from nested replies.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	ParentID  string    `json:"parentId,omitempty"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	LoginID   string    `json:"loginId"`
	StudentID string    `json:"studentId"`
	AvatarURL string    `json:"profileImage"`
	Reply     bool      `json:"reply"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentView is a comment annotated for one viewer. LikedByMe is
// recomputed per request from the engagement ledger, never stored.
type CommentView struct {
	Comment
	Likes     int           `json:"likes"`
	LikedByMe bool          `json:"likedByMe"`
	Replies   []CommentView `json:"replies"`
}

// PostView is a post annotated for one viewer.
type PostView struct {
	Post
	Views     int           `json:"views"`
	Likes     int           `json:"likes"`
	LikedByMe bool          `json:"likedByMe"`
	Comments  []CommentView `json:"comments"`
}
