// Package event manages club events: CRUD plus per-member view and like
// tracking through the engagement ledger.
package event

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

var ErrNotFound = errors.New("event: not found")

// Event is a club event posting.
type Event struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Location  string    `json:"location"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is an event annotated with counters and the viewer's like state.
type View struct {
	Event
	Views     int  `json:"views"`
	Likes     int  `json:"likes"`
	LikedByMe bool `json:"isLiked"`
}

// Store persists events.
type Store interface {
	Create(ctx context.Context, e *Event) error
	Find(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
}

// MemStore is the in-memory Store.
type MemStore struct {
	mu     sync.RWMutex
	events map[string]*Event
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string]*Event)}
}

func (s *MemStore) Create(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemStore) List(ctx context.Context) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, 0, len(s.events))
	for _, e := range s.events {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Update(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// Request enumerates the editable event fields.
type Request struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Content  string `json:"content"`
	Image    string `json:"image"`
}

// Service implements event operations.
type Service struct {
	store  Store
	ledger engagement.Ledger
	access audit.AccessLog
}

func NewService(store Store, ledger engagement.Ledger, access audit.AccessLog) *Service {
	return &Service{store: store, ledger: ledger, access: access}
}

func (s *Service) List(ctx context.Context) ([]*Event, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, req Request, actorName, actorStudentID, ip string) (*Event, error) {
	e := &Event{
		Category: req.Category,
		Title:    req.Title,
		Date:     req.Date,
		Location: req.Location,
		Content:  req.Content,
		Image:    req.Image,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.log(ctx, actorName, actorStudentID, "EVENT_CREATE", ip)
	return e, nil
}

func (s *Service) Update(ctx context.Context, id string, req Request, actorName, actorStudentID, ip string) (*Event, error) {
	e, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Category = req.Category
	e.Title = req.Title
	e.Date = req.Date
	e.Location = req.Location
	e.Content = req.Content
	e.Image = req.Image
	if err := s.store.Update(ctx, e); err != nil {
		return nil, err
	}
	s.log(ctx, actorName, actorStudentID, "EVENT_UPDATE", ip)
	return e, nil
}

// Get returns the event view for a viewer; an authenticated viewer's view
// is counted at most once.
func (s *Service) Get(ctx context.Context, id, viewer string) (*View, error) {
	e, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &View{Event: *e}
	if viewer != "" {
		if _, err := s.ledger.RecordView(ctx, viewer, engagement.KindEvent, id); err != nil {
			return nil, err
		}
		liked, err := s.ledger.Liked(ctx, viewer, engagement.KindEvent, id)
		if err != nil {
			return nil, err
		}
		view.LikedByMe = liked
	}
	counts, err := s.ledger.CountsFor(ctx, engagement.KindEvent, id)
	if err != nil {
		return nil, err
	}
	view.Views = counts.Views
	view.Likes = counts.Likes
	return view, nil
}

// ToggleLike flips the viewer's like on an event.
func (s *Service) ToggleLike(ctx context.Context, id, viewer string) (engagement.LikeResult, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return engagement.LikeResult{}, err
	}
	return s.ledger.ToggleLike(ctx, viewer, engagement.KindEvent, id)
}

// Delete removes an event and its engagement records.
func (s *Service) Delete(ctx context.Context, id, actorName, actorStudentID, ip string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.ledger.DeleteResources(ctx, engagement.KindEvent, id); err != nil {
		return err
	}
	s.log(ctx, actorName, actorStudentID, "EVENT_DELETE", ip)
	return nil
}

func (s *Service) log(ctx context.Context, name, studentID, action, ip string) {
	if name == "" {
		return
	}
	_ = s.access.Append(ctx, audit.AccessEntry{
		Name:      name,
		StudentID: studentID,
		Action:    action,
		IP:        ip,
	})
}
