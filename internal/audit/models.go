package audit

import "time"

// Entry is an immutable, append-only activity log record.
//
// Invariants:
// - Entries are never updated. They are removed only in bulk by the retention sweep.
// - Action must be one of Actions().
// - ActorID nil means the event was system-initiated.
//
// Storage: table activity_logs (see migrations/0001_activity_logs.up.sql).
// JSON names follow the admin UI contract.
type Entry struct {
	ID     int64  `json:"id" db:"id"`
	Action Action `json:"action" db:"action"`

	// Description is a short human-readable summary, required.
	Description string `json:"description" db:"description"`

	ActorID *int64 `json:"userId" db:"user_id"`

	// Target identifies the affected entity, e.g. (42, "user").
	TargetID   *int64 `json:"targetId" db:"target_id"`
	TargetType string `json:"targetType,omitempty" db:"target_type"`

	// Metadata is event-specific and has no fixed schema.
	// Consumers must tolerate missing keys.
	Metadata map[string]any `json:"metadata" db:"metadata"`

	IPAddress string `json:"ipAddress,omitempty" db:"ip_address"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Actor is joined from users at query time. Not stored.
	Actor *Actor `json:"user"`
}

// Actor is the denormalized view of the user who performed an action.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Action is the closed set of event kinds.
//
// The same list is declared as the Postgres enum activity_action. Adding a kind
// needs a new migration that extends the enum AND a new constant here.
type Action string

const (
	ActionUserCreated         Action = "user_created"
	ActionUserUpdated         Action = "user_updated"
	ActionUserDeleted         Action = "user_deleted"
	ActionPasswordChanged     Action = "password_changed"
	ActionRoleChanged         Action = "role_changed"
	ActionHotelCreated        Action = "hotel_created"
	ActionHotelUpdated        Action = "hotel_updated"
	ActionHotelDeleted        Action = "hotel_deleted"
	ActionReviewCreated       Action = "review_created"
	ActionReviewDeleted       Action = "review_deleted"
	ActionAnnouncementCreated Action = "announcement_created"
	ActionAnnouncementUpdated Action = "announcement_updated"
	ActionAnnouncementDeleted Action = "announcement_deleted"
	ActionLogin               Action = "login"
	ActionLogout              Action = "logout"
)

var allActions = []Action{
	ActionUserCreated,
	ActionUserUpdated,
	ActionUserDeleted,
	ActionPasswordChanged,
	ActionRoleChanged,
	ActionHotelCreated,
	ActionHotelUpdated,
	ActionHotelDeleted,
	ActionReviewCreated,
	ActionReviewDeleted,
	ActionAnnouncementCreated,
	ActionAnnouncementUpdated,
	ActionAnnouncementDeleted,
	ActionLogin,
	ActionLogout,
}

// Actions returns every known action kind in declaration order.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction validates a raw action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", invalidArgf("unknown action %q", s)
	}
	return a, nil
}

// Pagination describes one page of a collection query.
// TotalPages is 0 when Total is 0.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

type Page struct {
	Data       []Entry    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func newPagination(total int64, page, limit int) Pagination {
	p := Pagination{Total: total, Page: page, Limit: limit}
	if total > 0 && limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}
