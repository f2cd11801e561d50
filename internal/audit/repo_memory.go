package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	users   map[int64]Actor
	err     error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{users: map[int64]Actor{}} }

// AddUser registers a user so List can join actor details.
func (r *MemoryRepo) AddUser(a Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[a.ID] = a
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (r *MemoryRepo) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryRepo) Append(ctx context.Context, e Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Entry{}, r.err
	}
	if _, err := json.Marshal(e.Metadata); err != nil {
		return Entry{}, invalidArgf("metadata is not serializable: %v", err)
	}
	r.nextID++
	e.ID = r.nextID
	e.Actor = nil
	e.Metadata = copyMetadata(e.Metadata)
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}

	matched := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return newerFirst(matched[i], matched[j]) })

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []Entry{}, total, nil
	}
	end := len(matched)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}

	out := make([]Entry, 0, end-f.Offset)
	for _, e := range matched[f.Offset:end] {
		e.Metadata = copyMetadata(e.Metadata)
		if e.ActorID != nil {
			if u, ok := r.users[*e.ActorID]; ok {
				u := u
				e.Actor = &u
			}
		}
		out = append(out, e)
	}
	return out, total, nil
}

func (r *MemoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	kept := r.entries[:0]
	var n int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

// ActionCounts groups entries by action and counts those created at or after since.
func (r *MemoryRepo) ActionCounts(ctx context.Context, since time.Time) (map[Action]int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	counts := map[Action]int64{}
	var recent int64
	for _, e := range r.entries {
		counts[e.Action]++
		if !e.CreatedAt.Before(since) {
			recent++
		}
	}
	return counts, recent, nil
}

// Entries returns a snapshot of everything stored, in insertion order.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func newerFirst(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
