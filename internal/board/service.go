package board

import (
	"context"
	"strings"

	"devsign.org/internal/audit"
	"devsign.org/internal/engagement"
	"devsign.org/internal/member"
)

// MemberLookup resolves the author profile attached to posts and comments.
type MemberLookup interface {
	Get(ctx context.Context, loginID string) (*member.Member, error)
}

// Service implements board operations: post CRUD, per-member view and
// like tracking through the engagement ledger, and the comment tree.
type Service struct {
	store   Store
	ledger  engagement.Ledger
	members MemberLookup
	access  audit.AccessLog
}

// NewService wires a board Service.
func NewService(store Store, ledger engagement.Ledger, members MemberLookup, access audit.AccessLog) *Service {
	return &Service{store: store, ledger: ledger, members: members, access: access}
}

// CreatePostRequest enumerates the fields accepted when creating or
// updating a post.
type CreatePostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Images   []string `json:"images"`
}

// AddCommentRequest enumerates the fields accepted when commenting.
type AddCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

// ListPosts returns all posts, newest first, with current counters and
// the viewer's like state.
func (s *Service) ListPosts(ctx context.Context, viewer string) ([]PostView, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		view := PostView{Post: *p}
		counts, err := s.ledger.CountsFor(ctx, engagement.KindPost, p.ID)
		if err != nil {
			return nil, err
		}
		view.Views = counts.Views
		view.Likes = counts.Likes
		if viewer != "" {
			liked, err := s.ledger.Liked(ctx, viewer, engagement.KindPost, p.ID)
			if err != nil {
				return nil, err
			}
			view.LikedByMe = liked
		}
		out = append(out, view)
	}
	return out, nil
}

// CreatePost creates a post authored by the given member.
func (s *Service) CreatePost(ctx context.Context, req CreatePostRequest, loginID, ip string) (*Post, error) {
	author, err := s.members.Get(ctx, loginID)
	if err != nil {
		return nil, err
	}
	p := &Post{
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		Images:    req.Images,
		Author:    author.Name,
		LoginID:   author.LoginID,
		StudentID: author.StudentID,
		AvatarURL: author.AvatarURL,
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	s.logAccess(ctx, loginID, "POST_CREATE", ip)
	return p, nil
}

// GetPost returns the enriched post view. For an authenticated viewer the
// view is counted at most once per (viewer, post).
func (s *Service) GetPost(ctx context.Context, id, viewer string) (*PostView, error) {
	p, err := s.store.FindPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != "" {
		if _, err := s.members.Get(ctx, viewer); err == nil {
			if _, err := s.ledger.RecordView(ctx, viewer, engagement.KindPost, id); err != nil {
				return nil, err
			}
		}
	}
	return s.renderPost(ctx, p, viewer)
}

// UpdatePost replaces the editable fields of a post.
func (s *Service) UpdatePost(ctx context.Context, id string, req CreatePostRequest, loginID, ip string) (*Post, error) {
	p, err := s.store.FindPost(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Title = req.Title
	p.Content = req.Content
	p.Category = req.Category
	p.Images = req.Images
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, err
	}
	s.logAccess(ctx, loginID, "POST_UPDATE", ip)
	return p, nil
}

// DeletePost removes the post, its whole comment tree and every
// engagement record pointing at the post or any removed comment.
func (s *Service) DeletePost(ctx context.Context, id, loginID, ip string) error {
	removed, err := s.store.DeletePost(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ledger.DeleteResources(ctx, engagement.KindComment, removed...); err != nil {
		return err
	}
	if err := s.ledger.DeleteResources(ctx, engagement.KindPost, id); err != nil {
		return err
	}
	s.logAccess(ctx, loginID, "POST_DELETE", ip)
	return nil
}

// ToggleLike flips the viewer's like on a post.
func (s *Service) ToggleLike(ctx context.Context, id, viewer, ip string) (*PostView, error) {
	p, err := s.store.FindPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.members.Get(ctx, viewer); err != nil {
		return nil, err
	}
	res, err := s.ledger.ToggleLike(ctx, viewer, engagement.KindPost, id)
	if err != nil {
		return nil, err
	}
	if res.Liked {
		s.logAccess(ctx, viewer, "LIKE", ip)
	}
	return s.renderPost(ctx, p, viewer)
}

// AddComment appends a node to the post's comment tree. A parent id must
// reference a comment of the same post.
func (s *Service) AddComment(ctx context.Context, postID string, req AddCommentRequest, loginID, ip string) (*PostView, error) {
	author, err := s.members.Get(ctx, loginID)
	if err != nil {
		return nil, err
	}
	c := &Comment{
		PostID:    postID,
		ParentID:  strings.TrimSpace(req.ParentID),
		Content:   req.Content,
		Author:    author.Name,
		LoginID:   author.LoginID,
		StudentID: author.StudentID,
		AvatarURL: author.AvatarURL,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.logAccess(ctx, loginID, "COMMENT_CREATE", ip)
	p, err := s.store.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.renderPost(ctx, p, loginID)
}

// DeleteComment removes the comment, its reply subtree and every like
// record on any removed node.
func (s *Service) DeleteComment(ctx context.Context, postID, commentID, loginID, ip string) (*PostView, error) {
	c, err := s.store.FindComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.PostID != postID {
		return nil, ErrNotFound
	}
	removed, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.DeleteResources(ctx, engagement.KindComment, removed...); err != nil {
		return nil, err
	}
	s.logAccess(ctx, loginID, "COMMENT_DELETE", ip)
	p, err := s.store.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.renderPost(ctx, p, loginID)
}

// ToggleCommentLike flips the viewer's like on a comment.
func (s *Service) ToggleCommentLike(ctx context.Context, postID, commentID, viewer string) (*PostView, error) {
	c, err := s.store.FindComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.PostID != postID {
		return nil, ErrNotFound
	}
	if _, err := s.members.Get(ctx, viewer); err != nil {
		return nil, err
	}
	if _, err := s.ledger.ToggleLike(ctx, viewer, engagement.KindComment, commentID); err != nil {
		return nil, err
	}
	p, err := s.store.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.renderPost(ctx, p, viewer)
}

// renderPost joins the post with its counters and comment tree, annotated
// for the viewer. Top-level comments and replies both keep creation order.
func (s *Service) renderPost(ctx context.Context, p *Post, viewer string) (*PostView, error) {
	view := &PostView{Post: *p}

	counts, err := s.ledger.CountsFor(ctx, engagement.KindPost, p.ID)
	if err != nil {
		return nil, err
	}
	view.Views = counts.Views
	view.Likes = counts.Likes

	comments, err := s.store.CommentsForPost(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	commentIDs := make([]string, len(comments))
	for i, c := range comments {
		commentIDs[i] = c.ID
	}
	likedSet := map[string]bool{}
	if viewer != "" {
		liked, err := s.ledger.Liked(ctx, viewer, engagement.KindPost, p.ID)
		if err != nil {
			return nil, err
		}
		view.LikedByMe = liked
		likedSet, err = s.ledger.LikedSet(ctx, viewer, engagement.KindComment, commentIDs)
		if err != nil {
			return nil, err
		}
	}

	nodes := make(map[string]*CommentView, len(comments))
	order := make([]string, 0, len(comments))
	for _, c := range comments {
		counts, err := s.ledger.CountsFor(ctx, engagement.KindComment, c.ID)
		if err != nil {
			return nil, err
		}
		nodes[c.ID] = &CommentView{
			Comment:   *c,
			Likes:     counts.Likes,
			LikedByMe: likedSet[c.ID],
			Replies:   []CommentView{},
		}
		order = append(order, c.ID)
	}
	// comments arrive parent-before-child, so attaching in reverse keeps
	// completed subtrees
	for i := len(order) - 1; i >= 0; i-- {
		node := nodes[order[i]]
		if node.ParentID == "" {
			continue
		}
		parent := nodes[node.ParentID]
		parent.Replies = append([]CommentView{*node}, parent.Replies...)
	}
	view.Comments = []CommentView{}
	for _, id := range order {
		node := nodes[id]
		if node.ParentID == "" {
			view.Comments = append(view.Comments, *node)
		}
	}
	return view, nil
}

func (s *Service) logAccess(ctx context.Context, loginID, action, ip string) {
	m, err := s.members.Get(ctx, loginID)
	if err != nil {
		return
	}
	_ = s.access.Append(ctx, audit.AccessEntry{
		Name:      m.Name,
		StudentID: m.StudentID,
		Action:    action,
		IP:        ip,
	})
}
