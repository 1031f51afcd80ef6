package assembly

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"devsign.org/internal/ids"
)

// MemStore implements Store in memory.
type MemStore struct {
	mu       sync.RWMutex
	periods  map[string]*Period
	reports  map[string]*Report
	projects map[string]*Project // key loginID|year|semester
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		periods:  make(map[string]*Period),
		reports:  make(map[string]*Report),
		projects: make(map[string]*Project),
	}
}

func (s *MemStore) PeriodsByYear(ctx context.Context, year int) ([]*Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Period
	for _, p := range s.periods {
		if p.Year == year {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *MemStore) SavePeriod(ctx context.Context, p *Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *MemStore) ReportsByOwner(ctx context.Context, loginID string, year, semester int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Report
	for _, r := range s.reports {
		if r.LoginID == loginID && r.Year == year && r.Semester == semester {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *MemStore) SaveReport(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = ids.New()
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *MemStore) SubmittedReports(ctx context.Context, year, semester, month int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Report
	for _, r := range s.reports {
		if r.Year == year && r.Semester == semester && r.Month == month && r.Status == StatusSubmitted {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemStore) CountSubmitted(ctx context.Context, year, semester, month int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.reports {
		if r.Year == year && r.Semester == semester && r.Month == month && r.Status == StatusSubmitted {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) FindProject(ctx context.Context, loginID string, year, semester int) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectKey(loginID, year, semester)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) SaveProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[projectKey(p.LoginID, p.Year, p.Semester)] = &cp
	return nil
}

func projectKey(loginID string, year, semester int) string {
	return fmt.Sprintf("%s|%d|%d", loginID, year, semester)
}
