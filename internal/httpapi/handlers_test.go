package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hotel-directory/internal/audit"
	"hotel-directory/internal/auth"
	"hotel-directory/internal/config"
	"hotel-directory/internal/rbac"
	"hotel-directory/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubLock struct{ held bool }

type stubLease struct{}

func (l *stubLock) TryAcquire(context.Context) (audit.PurgeLease, bool, error) {
	if l.held {
		return nil, false, nil
	}
	return stubLease{}, true, nil
}

func (stubLease) Release(context.Context) error { return nil }

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	router *gin.Engine
	repo   *audit.MemoryRepo
	lock   *stubLock
	admin  string
	user   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	admin, err := m.Issue(time.Now(), 1, rbac.RoleAdmin)
	require.NoError(t, err)
	user, err := m.Issue(time.Now(), 7, rbac.RoleUser)
	require.NoError(t, err)

	repo := audit.NewMemoryRepo()
	repo.AddUser(audit.Actor{ID: 7, Username: "bob", Email: "bob@example.com"})
	lock := &stubLock{}

	h := Handlers{
		Activity:        audit.NewService(repo, audit.Options{}),
		Stats:           reporting.NewService(repo),
		Sweeper:         audit.NewSweeper(repo, lock),
		DefaultPageSize: 20,
		RetentionDays:   90,
	}
	r := gin.New()
	Register(r, h, auth.RequireAccessToken(m))

	return &testEnv{router: r, repo: repo, lock: lock, admin: admin, user: user}
}

func (e *testEnv) seed(t *testing.T, action audit.Action, actor *int64, age time.Duration) {
	t.Helper()
	_, err := e.repo.Append(context.Background(), audit.Entry{
		Action:      action,
		Description: string(action),
		ActorID:     actor,
		Metadata:    map[string]any{},
		CreatedAt:   time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)
}

func (e *testEnv) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestActivityRoutes_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/activity-logs"},
		{http.MethodGet, "/activity-logs/stats"},
		{http.MethodGet, "/activity-logs/by-action/login"},
		{http.MethodGet, "/activity-logs/by-user/7"},
		{http.MethodDelete, "/activity-logs/cleanup"},
	}
	for _, p := range paths {
		require.Equal(t, http.StatusUnauthorized, env.do(p.method, p.path, "").Code, p.path)
		require.Equal(t, http.StatusForbidden, env.do(p.method, p.path, env.user).Code, p.path)
	}
}

func TestListActivity(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.seed(t, audit.ActionLogin, nil, time.Duration(3-i)*time.Minute)
	}

	w := env.do(http.MethodGet, "/activity-logs?page=1&limit=2", env.admin)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[audit.Page](t, w)
	require.Len(t, body.Data, 2)
	require.Equal(t, int64(3), body.Data[0].ID)
	require.Equal(t, audit.Pagination{Total: 3, Page: 1, Limit: 2, TotalPages: 2}, body.Pagination)

	w = env.do(http.MethodGet, "/activity-logs", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 20, decode[audit.Page](t, w).Pagination.Limit)
}

func TestListActivity_EmptyDataIsArray(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/activity-logs/by-user/99", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":[],"pagination":{"total":0,"page":1,"limit":20,"totalPages":0}}`, w.Body.String())
}

func TestListActivity_BadInput(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/activity-logs?page=abc",
		"/activity-logs?page=0",
		"/activity-logs?limit=0",
		"/activity-logs?limit=101",
		"/activity-logs/by-action/invalid_action",
		"/activity-logs/by-user/abc",
		"/activity-logs/by-user/0",
	} {
		w := env.do(http.MethodGet, path, env.admin)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
		body := decode[errorBody](t, w)
		require.NotEmpty(t, body.Message, path)
		require.Equal(t, audit.ErrInvalidArgument.Error(), body.Error, path)
	}
}

func TestListActivityByActionAndUser(t *testing.T) {
	env := newTestEnv(t)
	bob := int64(7)
	env.seed(t, audit.ActionLogin, &bob, 2*time.Minute)
	env.seed(t, audit.ActionHotelCreated, nil, time.Minute)

	w := env.do(http.MethodGet, "/activity-logs/by-action/hotel_created", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[audit.Page](t, w)
	require.Len(t, page.Data, 1)
	require.Equal(t, audit.ActionHotelCreated, page.Data[0].Action)

	w = env.do(http.MethodGet, "/activity-logs/by-user/7", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[audit.Page](t, w)
	require.Len(t, page.Data, 1)
	require.NotNil(t, page.Data[0].Actor)
	require.Equal(t, "bob", page.Data[0].Actor.Username)
}

func TestActivityStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, audit.ActionLogin, nil, time.Hour)
	env.seed(t, audit.ActionLogin, nil, 10*24*time.Hour)
	env.seed(t, audit.ActionReviewCreated, nil, time.Hour)

	w := env.do(http.MethodGet, "/activity-logs/stats", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"total": 3,
		"byType": [{"action":"login","count":2},{"action":"review_created","count":1}],
		"recent7Days": 2
	}`, w.Body.String())
}

func TestCleanupActivity(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, audit.ActionLogin, nil, 100*24*time.Hour)
	env.seed(t, audit.ActionLogin, nil, 91*24*time.Hour)
	env.seed(t, audit.ActionLogin, nil, time.Hour)

	w := env.do(http.MethodDelete, "/activity-logs/cleanup", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"Deleted 2 activity logs older than 90 days","deletedCount":2}`, w.Body.String())
	require.Len(t, env.repo.Entries(), 1)

	w = env.do(http.MethodDelete, "/activity-logs/cleanup", env.admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), decode[map[string]any](t, w)["deletedCount"])
}

func TestCleanupActivity_Conflict(t *testing.T) {
	env := newTestEnv(t)
	env.lock.held = true

	w := env.do(http.MethodDelete, "/activity-logs/cleanup", env.admin)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, audit.ErrPurgeInProgress.Error(), decode[errorBody](t, w).Error)
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	env := newTestEnv(t)
	env.repo.Fail(errors.New("pq: password authentication failed for user secret"))

	for _, p := range []struct{ method, path string }{
		{http.MethodGet, "/activity-logs"},
		{http.MethodGet, "/activity-logs/stats"},
		{http.MethodDelete, "/activity-logs/cleanup"},
	} {
		w := env.do(p.method, p.path, env.admin)
		require.Equal(t, http.StatusInternalServerError, w.Code, p.path)
		require.NotContains(t, w.Body.String(), "password", p.path)
		body := decode[errorBody](t, w)
		require.NotEmpty(t, body.Message)
		require.Empty(t, body.Error)
	}
}

func TestLogoutRecordsEntry(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+env.user)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries := env.repo.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionLogout, entries[0].Action)
	require.Equal(t, int64(7), *entries[0].ActorID)
	require.Equal(t, "10.1.2.3", entries[0].IPAddress)
	require.Equal(t, "test-agent", entries[0].Metadata["userAgent"])
}

func TestLogoutSucceedsWhenStoreIsDown(t *testing.T) {
	env := newTestEnv(t)
	env.repo.Fail(errors.New("db down"))

	w := env.do(http.MethodPost, "/auth/logout", env.user)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tc := range []struct {
		name string
		db   Pinger
		code int
	}{
		{"no db", nil, http.StatusOK},
		{"db ok", stubPinger{}, http.StatusOK},
		{"db down", stubPinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", Handlers{DB: tc.db}.Healthz)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tc.code, w.Code)
		})
	}
}
