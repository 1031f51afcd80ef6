// Package notice manages club notices: CRUD, per-member view counting and
// a pin toggle capped at three pinned notices.
package notice

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"devsign.org/internal/audit"
	"devsign.org/internal/engagement"
	"devsign.org/internal/ids"
)

var (
	ErrNotFound    = errors.New("notice: not found")
	ErrPinnedLimit = errors.New("notice: at most 3 notices can be pinned")
)

const maxPinned = 3

// Notice is an announcement.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tag       string    `json:"tag"`
	Images    []string  `json:"images,omitempty"`
	Important bool      `json:"important"`
	Pinned    bool      `json:"pinned"`
	Author    string    `json:"author"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is a notice annotated with its view counter.
type View struct {
	Notice
	Views int `json:"views"`
}

// Store persists notices.
type Store interface {
	Create(ctx context.Context, n *Notice) error
	Find(ctx context.Context, id string) (*Notice, error)
	// List returns pinned notices first, then newest first within each group.
	List(ctx context.Context) ([]*Notice, error)
	Update(ctx context.Context, n *Notice) error
	Delete(ctx context.Context, id string) error
	CountPinned(ctx context.Context) (int, error)
}

// MemStore is the in-memory Store.
type MemStore struct {
	mu      sync.RWMutex
	notices map[string]*Notice
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{notices: make(map[string]*Notice)}
}

func (s *MemStore) Create(ctx context.Context, n *Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = ids.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.notices[n.ID] = &cp
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *MemStore) List(ctx context.Context) ([]*Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Notice, 0, len(s.notices))
	for _, n := range s.notices {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemStore) Update(ctx context.Context, n *Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notices[n.ID]; !ok {
		return ErrNotFound
	}
	cp := *n
	s.notices[n.ID] = &cp
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notices[id]; !ok {
		return ErrNotFound
	}
	delete(s.notices, id)
	return nil
}

func (s *MemStore) CountPinned(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notices {
		if n.Pinned {
			count++
		}
	}
	return count, nil
}

// Request enumerates the editable notice fields.
type Request struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Images    []string `json:"images"`
	Important bool     `json:"important"`
}

// Service implements notice operations.
type Service struct {
	store  Store
	ledger engagement.Ledger
	access audit.AccessLog
}

func NewService(store Store, ledger engagement.Ledger, access audit.AccessLog) *Service {
	return &Service{store: store, ledger: ledger, access: access}
}

func (s *Service) List(ctx context.Context) ([]View, error) {
	notices, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(notices))
	for _, n := range notices {
		counts, err := s.ledger.CountsFor(ctx, engagement.KindNotice, n.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, View{Notice: *n, Views: counts.Views})
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, req Request, authorName, ip string) (*Notice, error) {
	if authorName == "" {
		authorName = "admin"
	}
	n := &Notice{
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		Tag:       req.Category,
		Images:    req.Images,
		Important: req.Important,
		Author:    authorName,
		Date:      time.Now().Format("2006.01.02"),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	s.log(ctx, authorName, "NOTICE_CREATE", ip)
	return n, nil
}

func (s *Service) Update(ctx context.Context, id string, req Request, actorName, ip string) (*Notice, error) {
	n, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Title = req.Title
	n.Content = req.Content
	n.Category = req.Category
	n.Tag = req.Category
	n.Images = req.Images
	n.Important = req.Important
	if err := s.store.Update(ctx, n); err != nil {
		return nil, err
	}
	s.log(ctx, actorName, "NOTICE_UPDATE", ip)
	return n, nil
}

// Get returns the notice view; an authenticated viewer is counted at
// most once.
func (s *Service) Get(ctx context.Context, id, viewer string) (*View, error) {
	n, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != "" {
		if _, err := s.ledger.RecordView(ctx, viewer, engagement.KindNotice, id); err != nil {
			return nil, err
		}
	}
	counts, err := s.ledger.CountsFor(ctx, engagement.KindNotice, id)
	if err != nil {
		return nil, err
	}
	return &View{Notice: *n, Views: counts.Views}, nil
}

// TogglePin flips the pinned flag, refusing to pin past the cap.
func (s *Service) TogglePin(ctx context.Context, id, actorName, ip string) (bool, error) {
	n, err := s.store.Find(ctx, id)
	if err != nil {
		return false, err
	}
	if !n.Pinned {
		pinned, err := s.store.CountPinned(ctx)
		if err != nil {
			return false, err
		}
		if pinned >= maxPinned {
			return false, ErrPinnedLimit
		}
		n.Pinned = true
		s.log(ctx, actorName, "NOTICE_PIN", ip)
	} else {
		n.Pinned = false
		s.log(ctx, actorName, "NOTICE_UNPIN", ip)
	}
	if err := s.store.Update(ctx, n); err != nil {
		return false, err
	}
	return n.Pinned, nil
}

// Delete removes a notice and its view records.
func (s *Service) Delete(ctx context.Context, id, actorName, ip string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.ledger.DeleteResources(ctx, engagement.KindNotice, id); err != nil {
		return err
	}
	s.log(ctx, actorName, "NOTICE_DELETE", ip)
	return nil
}

func (s *Service) log(ctx context.Context, name, action, ip string) {
	if name == "" {
		return
	}
	_ = s.access.Append(ctx, audit.AccessEntry{Name: name, Action: action, IP: ip})
}
