package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hotel-directory/internal/audit"
)

// RecentWindow is the rolling window behind Stats.Recent7Days.
const RecentWindow = 7 * 24 * time.Hour

var ErrStoreUnavailable = audit.ErrStoreUnavailable

// Source abstracts the activity store for aggregation.
//
// IMPORTANT:
// - Both values must come from one consistent read of the store.
// - counts holds only actions that have at least one entry.
type Source interface {
	ActionCounts(ctx context.Context, since time.Time) (counts map[audit.Action]int64, recent int64, err error)
}

type Service struct {
	src   Source
	clock func() time.Time
}

func NewService(src Source) *Service { return &Service{src: src, clock: time.Now} }

// Stats computes totals per action and the count of entries in the last seven days.
// Nothing is cached; every call reads the store.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.src == nil {
		return Stats{}, errors.New("reporting: source not configured")
	}

	since := s.clock().UTC().Add(-RecentWindow)
	counts, recent, err := s.src.ActionCounts(ctx, since)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return Stats{}, err
		}
		return Stats{}, fmt.Errorf("%w: stats: %w", ErrStoreUnavailable, err)
	}

	out := Stats{ByType: make([]ActionCount, 0, len(counts))}
	for action, n := range counts {
		if n <= 0 {
			continue
		}
		out.ByType = append(out.ByType, ActionCount{Action: string(action), Count: n})
		out.Total += n
	}
	sort.Slice(out.ByType, func(i, j int) bool {
		a, b := out.ByType[i], out.ByType[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Action < b.Action
	})

	out.Recent7Days = recent
	if out.Recent7Days > out.Total {
		out.Recent7Days = out.Total
	}
	return out, nil
}
