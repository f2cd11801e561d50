package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotel-directory/internal/audit"
)

var now = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *audit.MemoryRepo, action audit.Action, age time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.Append(context.Background(), audit.Entry{
			Action:      action,
			Description: string(action),
			CreatedAt:   now.Add(-age),
		})
		require.NoError(t, err)
	}
}

func newTestService(src Source) *Service {
	svc := NewService(src)
	svc.clock = func() time.Time { return now }
	return svc
}

func TestStats_EmptyStore(t *testing.T) {
	st, err := newTestService(audit.NewMemoryRepo()).Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), st.Total)
	require.NotNil(t, st.ByType)
	require.Empty(t, st.ByType)
	require.Equal(t, int64(0), st.Recent7Days)
}

func TestStats_GroupsAndCountsRecent(t *testing.T) {
	repo := audit.NewMemoryRepo()
	day := 24 * time.Hour
	seed(t, repo, audit.ActionLogin, time.Hour, 4)
	seed(t, repo, audit.ActionLogin, 30*day, 1)
	seed(t, repo, audit.ActionHotelCreated, 2*day, 2)
	seed(t, repo, audit.ActionUserDeleted, 8*day, 2)
	seed(t, repo, audit.ActionReviewCreated, 7*day, 1)

	st, err := newTestService(repo).Stats(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(10), st.Total)
	require.Equal(t, []ActionCount{
		{Action: "login", Count: 5},
		{Action: "hotel_created", Count: 2},
		{Action: "user_deleted", Count: 2},
		{Action: "review_created", Count: 1},
	}, st.ByType)
	// the entry exactly seven days old is inside the window
	require.Equal(t, int64(7), st.Recent7Days)

	var sum int64
	for _, bt := range st.ByType {
		sum += bt.Count
	}
	require.Equal(t, st.Total, sum)
	require.LessOrEqual(t, st.Recent7Days, st.Total)
}

type brokenSource struct{ err error }

func (b brokenSource) ActionCounts(context.Context, time.Time) (map[audit.Action]int64, int64, error) {
	return nil, 0, b.err
}

func TestStats_SurfacesStoreFailure(t *testing.T) {
	_, err := newTestService(brokenSource{err: errors.New("conn reset")}).Stats(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = newTestService(brokenSource{err: audit.ErrStoreUnavailable}).Stats(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
