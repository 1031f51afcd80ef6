package member

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"devsign.org/internal/ids"
)

// MemStore implements Store in memory. It is the default wiring for
// tests and local development; the Postgres store carries the same
// semantics.
type MemStore struct {
	mu            sync.RWMutex
	byID          map[string]*Member
	verifications map[string][]Verification
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:          make(map[string]*Member),
		verifications: make(map[string][]Verification),
	}
}

func (s *MemStore) Create(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.LoginID == m.LoginID {
			return ErrAlreadyExists
		}
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemStore) FindByID(ctx context.Context, id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) FindByLogin(ctx context.Context, loginID string) (*Member, error) {
	return s.findBy(func(m *Member) bool { return m.LoginID == loginID })
}

func (s *MemStore) FindByTag(ctx context.Context, tag string) (*Member, error) {
	return s.findBy(func(m *Member) bool { return m.Tag == tag })
}

func (s *MemStore) FindByNameAndStudentID(ctx context.Context, name, studentID string) (*Member, error) {
	return s.findBy(func(m *Member) bool { return m.Name == name && m.StudentID == studentID })
}

func (s *MemStore) findBy(match func(*Member) bool) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.byID {
		if match(m) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) Update(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Member, 0, len(s.byID))
	for _, m := range s.byID {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].StudentID, out[j].StudentID) > 0
	})
	return out, nil
}

func (s *MemStore) PutVerification(ctx context.Context, v Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[v.Tag] = append(s.verifications[v.Tag], v)
	return nil
}

func (s *MemStore) LatestVerification(ctx context.Context, tag string) (*Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.verifications[tag]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	latest := list[0]
	for _, v := range list[1:] {
		if v.ExpiresAt.After(latest.ExpiresAt) {
			latest = v
		}
	}
	return &latest, nil
}

func (s *MemStore) DeleteVerification(ctx context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifications, tag)
	return nil
}
