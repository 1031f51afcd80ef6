package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"devsign.org/internal/ids"
)

// AccessEntry is one persisted access-log record. Entries are append-only.
type AccessEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StudentID string    `json:"studentId"`
	Action    string    `json:"type"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}

// AccessLog appends and lists access entries.
type AccessLog interface {
	Append(ctx context.Context, entry AccessEntry) error
	List(ctx context.Context) ([]AccessEntry, error)
}

// MemAccessLog keeps access entries in memory, newest first on List.
type MemAccessLog struct {
	mu      sync.Mutex
	entries []AccessEntry
}

// NewMemAccessLog creates an empty access log.
func NewMemAccessLog() *MemAccessLog {
	return &MemAccessLog{}
}

func (l *MemAccessLog) Append(ctx context.Context, entry AccessEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemAccessLog) List(ctx context.Context) ([]AccessEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AccessEntry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
