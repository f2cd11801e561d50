package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hotel-directory/internal/audit"
	"hotel-directory/internal/auth"
	"hotel-directory/internal/reporting"
	"hotel-directory/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Activity *audit.Service
	Stats    *reporting.Service
	Sweeper  *audit.Sweeper
	DB       Pinger

	DefaultPageSize int
	RetentionDays   int
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// writeError maps service errors onto the HTTP error envelope.
// Store details are logged, never returned.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, audit.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: err.Error(), Error: audit.ErrInvalidArgument.Error()})
	case errors.Is(err, audit.ErrPurgeInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Message: "another cleanup is already running", Error: audit.ErrPurgeInProgress.Error()})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error(fallback, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Message: fallback})
	}
}

func (h Handlers) parsePaging(c *gin.Context) (page, limit int, err error) {
	page, limit = 1, h.DefaultPageSize
	if limit <= 0 {
		limit = 20
	}
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: page must be an integer", audit.ErrInvalidArgument)
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: limit must be an integer", audit.ErrInvalidArgument)
		}
	}
	return page, limit, nil
}

// --- Activity logs ---

// ListActivity serves GET /activity-logs.
func (h Handlers) ListActivity(c *gin.Context) {
	page, limit, err := h.parsePaging(c)
	if err != nil {
		writeError(c, err, "")
		return
	}
	out, err := h.Activity.ListAll(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err, "failed to fetch activity logs")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ListActivityByAction serves GET /activity-logs/by-action/:action.
func (h Handlers) ListActivityByAction(c *gin.Context) {
	page, limit, err := h.parsePaging(c)
	if err != nil {
		writeError(c, err, "")
		return
	}
	action, err := audit.ParseAction(c.Param("action"))
	if err != nil {
		writeError(c, err, "")
		return
	}
	out, err := h.Activity.ListByAction(c.Request.Context(), action, page, limit)
	if err != nil {
		writeError(c, err, "failed to fetch activity logs")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ListActivityByUser serves GET /activity-logs/by-user/:userId.
func (h Handlers) ListActivityByUser(c *gin.Context) {
	page, limit, err := h.parsePaging(c)
	if err != nil {
		writeError(c, err, "")
		return
	}
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: userId must be an integer", audit.ErrInvalidArgument), "")
		return
	}
	out, err := h.Activity.ListByActor(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err, "failed to fetch user activity logs")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ActivityStats serves GET /activity-logs/stats.
func (h Handlers) ActivityStats(c *gin.Context) {
	st, err := h.Stats.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch activity stats")
		return
	}
	c.JSON(http.StatusOK, st)
}

// CleanupActivity serves DELETE /activity-logs/cleanup.
// The UI asks the administrator to confirm before calling it.
func (h Handlers) CleanupActivity(c *gin.Context) {
	days := h.RetentionDays
	if days <= 0 {
		days = audit.DefaultHorizonDays
	}
	n, err := h.Sweeper.PurgeOlderThan(c.Request.Context(), days)
	if err != nil {
		writeError(c, err, "failed to clean up activity logs")
		return
	}

	actorID, _ := auth.UserID(c.Request.Context())
	logger.FromGin(c).Info("activity cleanup", "deleted", n, "horizon_days", days, "admin_id", actorID)

	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Deleted %d activity logs older than %d days", n, days),
		"deletedCount": n,
	})
}

// --- Auth ---

// Logout records the caller's logout. Tokens are stateless, so there is
// nothing to revoke server-side.
func (h Handlers) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Message: "user_id required"})
		return
	}

	in := audit.RecordInput{
		Action:      audit.ActionLogout,
		Description: "User logged out",
		ActorID:     &userID,
		TargetID:    &userID,
		TargetType:  "user",
		IPAddress:   c.ClientIP(),
	}
	if ua := c.GetHeader("User-Agent"); ua != "" {
		in.Metadata = map[string]any{"userAgent": ua}
	}
	// best-effort; the recorder never fails on store errors
	if err := h.Activity.Record(ctx, in); err != nil {
		logger.FromGin(c).Warn("logout not recorded", "err", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			logger.FromGin(c).Error("health check failed", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
