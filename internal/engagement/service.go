package engagement

import (
	"context"
	"sync"

	"devsign.org/internal/obs"
)

// Ledger records view and like actions at most once per
// (subject, resource, action) and keeps the per-resource counters equal
// to ledger membership. Implementations must make each operation an
// atomic check-and-act per key: two racing callers must never both
// observe "absent" and double-increment.
type Ledger interface {
	// RecordView creates a view record if absent and increments the view
	// counter in the same unit of work. Calling it again for the same
	// subject and resource is a no-op.
	RecordView(ctx context.Context, subject string, kind Kind, resource string) (ViewResult, error)

	// ToggleLike flips the like state for the subject and adjusts the
	// counter. Two consecutive calls restore the original state and count.
	ToggleLike(ctx context.Context, subject string, kind Kind, resource string) (LikeResult, error)

	// Liked reports whether the subject has a like record for the resource.
	Liked(ctx context.Context, subject string, kind Kind, resource string) (bool, error)

	// LikedSet resolves Liked for many resources of one kind at once.
	LikedSet(ctx context.Context, subject string, kind Kind, resources []string) (map[string]bool, error)

	// CountsFor returns the current counters for a resource.
	CountsFor(ctx context.Context, kind Kind, resource string) (Counts, error)

	// DeleteResources removes every record referencing the given
	// resources, counters included. Used by cascading deletes.
	DeleteResources(ctx context.Context, kind Kind, resources ...string) error
}

// InMemory implements Ledger with in-process concurrency safety. A single
// mutex serializes the check-and-act sequence for all keys; record
// mutation and counter mutation happen under the same critical section.
type InMemory struct {
	mu       sync.Mutex
	records  map[Key]struct{}
	counters map[counterKey]*Counts
}

type counterKey struct {
	kind     Kind
	resource string
}

// NewInMemory creates an empty ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		records:  make(map[Key]struct{}),
		counters: make(map[counterKey]*Counts),
	}
}

func (l *InMemory) RecordView(ctx context.Context, subject string, kind Kind, resource string) (ViewResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := l.countsLocked(kind, resource)
	key := Key{Subject: subject, Kind: kind, Resource: resource, Action: ActionView}
	if _, seen := l.records[key]; seen {
		obs.CountEngagement("view", "duplicate")
		return ViewResult{Counted: false, Views: counts.Views}, nil
	}
	l.records[key] = struct{}{}
	counts.Views++
	obs.CountEngagement("view", "counted")
	return ViewResult{Counted: true, Views: counts.Views}, nil
}

func (l *InMemory) ToggleLike(ctx context.Context, subject string, kind Kind, resource string) (LikeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := l.countsLocked(kind, resource)
	key := Key{Subject: subject, Kind: kind, Resource: resource, Action: ActionLike}
	if _, liked := l.records[key]; liked {
		delete(l.records, key)
		if counts.Likes > 0 {
			counts.Likes--
		}
		obs.CountEngagement("like", "off")
		return LikeResult{Liked: false, Likes: counts.Likes}, nil
	}
	l.records[key] = struct{}{}
	counts.Likes++
	obs.CountEngagement("like", "on")
	return LikeResult{Liked: true, Likes: counts.Likes}, nil
}

func (l *InMemory) Liked(ctx context.Context, subject string, kind Kind, resource string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, liked := l.records[Key{Subject: subject, Kind: kind, Resource: resource, Action: ActionLike}]
	return liked, nil
}

func (l *InMemory) LikedSet(ctx context.Context, subject string, kind Kind, resources []string) (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]bool, len(resources))
	for _, res := range resources {
		_, liked := l.records[Key{Subject: subject, Kind: kind, Resource: res, Action: ActionLike}]
		out[res] = liked
	}
	return out, nil
}

func (l *InMemory) CountsFor(ctx context.Context, kind Kind, resource string) (Counts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.countsLocked(kind, resource), nil
}

func (l *InMemory) DeleteResources(ctx context.Context, kind Kind, resources ...string) error {
	if len(resources) == 0 {
		return nil
	}
	doomed := make(map[string]struct{}, len(resources))
	for _, res := range resources {
		doomed[res] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.records {
		if key.Kind != kind {
			continue
		}
		if _, ok := doomed[key.Resource]; ok {
			delete(l.records, key)
		}
	}
	for res := range doomed {
		delete(l.counters, counterKey{kind: kind, resource: res})
	}
	return nil
}

func (l *InMemory) countsLocked(kind Kind, resource string) *Counts {
	key := counterKey{kind: kind, resource: resource}
	counts, ok := l.counters[key]
	if !ok {
		counts = &Counts{}
		l.counters[key] = counts
	}
	return counts
}
