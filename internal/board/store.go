package board

import (
	"context"
	"sort"
	"sync"
	"time"

	"devsign.org/internal/ids"
)

// Store describes persistence for posts and their comment trees.
// DeletePost and DeleteComment remove whole subtrees as one atomic unit
// and report every removed comment id so the caller can purge the
// engagement ledger.
type Store interface {
	CreatePost(ctx context.Context, p *Post) error
	FindPost(ctx context.Context, id string) (*Post, error)
	ListPosts(ctx context.Context) ([]*Post, error)
	UpdatePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, id string) (removedComments []string, err error)

	CreateComment(ctx context.Context, c *Comment) error
	FindComment(ctx context.Context, id string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) (removed []string, err error)
	// CommentsForPost returns every comment of the post in creation order.
	CommentsForPost(ctx context.Context, postID string) ([]*Comment, error)
}

// MemStore keeps posts and comments in an arena keyed by id with an
// adjacency index from parent id to ordered child ids. Cascading delete
// walks the adjacency index depth-first under the store lock.
type MemStore struct {
	mu       sync.RWMutex
	posts    map[string]*Post
	comments map[string]*Comment
	children map[string][]string // parent comment id -> ordered child ids
	roots    map[string][]string // post id -> ordered top-level comment ids
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		posts:    make(map[string]*Post),
		comments: make(map[string]*Comment),
		children: make(map[string][]string),
		roots:    make(map[string][]string),
	}
}

func (s *MemStore) CreatePost(ctx context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.posts[p.ID] = &cp
	return nil
}

func (s *MemStore) FindPost(ctx context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) ListPosts(ctx context.Context) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Post, 0, len(s.posts))
	for _, p := range s.posts {
		cp := *p
		out = append(out, &cp)
	}
	// newest first, as the board index lists them
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemStore) UpdatePost(ctx context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	s.posts[p.ID] = &cp
	return nil
}

func (s *MemStore) DeletePost(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return nil, ErrNotFound
	}
	var removed []string
	for _, rootID := range s.roots[id] {
		removed = append(removed, s.collectSubtreeLocked(rootID)...)
	}
	for _, cid := range removed {
		delete(s.comments, cid)
		delete(s.children, cid)
	}
	delete(s.roots, id)
	delete(s.posts, id)
	return removed, nil
}

func (s *MemStore) CreateComment(ctx context.Context, c *Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[c.PostID]; !ok {
		return ErrNotFound
	}
	if c.ParentID != "" {
		parent, ok := s.comments[c.ParentID]
		if !ok || parent.PostID != c.PostID {
			return ErrInvalidParent
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Reply = c.ParentID != ""
	cp := *c
	s.comments[c.ID] = &cp
	if c.ParentID == "" {
		s.roots[c.PostID] = append(s.roots[c.PostID], c.ID)
	} else {
		s.children[c.ParentID] = append(s.children[c.ParentID], c.ID)
	}
	return nil
}

func (s *MemStore) FindComment(ctx context.Context, id string) (*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) DeleteComment(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	removed := s.collectSubtreeLocked(id)
	for _, cid := range removed {
		delete(s.comments, cid)
		delete(s.children, cid)
	}
	if c.ParentID == "" {
		s.roots[c.PostID] = remove(s.roots[c.PostID], id)
	} else {
		s.children[c.ParentID] = remove(s.children[c.ParentID], id)
	}
	return removed, nil
}

func (s *MemStore) CommentsForPost(ctx context.Context, postID string) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, ErrNotFound
	}
	var out []*Comment
	var walk func(id string)
	walk = func(id string) {
		c := s.comments[id]
		cp := *c
		out = append(out, &cp)
		for _, child := range s.children[id] {
			walk(child)
		}
	}
	for _, rootID := range s.roots[postID] {
		walk(rootID)
	}
	return out, nil
}

// collectSubtreeLocked returns id and every descendant, depth-first.
func (s *MemStore) collectSubtreeLocked(id string) []string {
	out := []string{id}
	for _, child := range s.children[id] {
		out = append(out, s.collectSubtreeLocked(child)...)
	}
	return out
}

func remove(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
