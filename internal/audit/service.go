package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"hotel-directory/pkg/logger"
)

// Repository is the persistence contract for activity entries.
//
// There is no Update and no per-entry Delete. DeleteBefore is the only
// removal path and is used exclusively by the Sweeper.
type Repository interface {
	// Append stores e and returns it with its assigned ID.
	Append(ctx context.Context, e Entry) (Entry, error)
	// List returns one page matching f, newest first, plus the total match count.
	List(ctx context.Context, f Filter) ([]Entry, int64, error)
	// DeleteBefore removes every entry with CreatedAt < cutoff in one statement.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Filter narrows a List call. Zero values mean "no filter".
type Filter struct {
	Action  Action
	ActorID *int64

	Limit  int
	Offset int
}

// Publisher fans recorded entries out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

const (
	DefaultMaxPageSize = 100
	publishTimeout     = 2 * time.Second
)

type Options struct {
	// Publisher is optional. Publish failures are logged and dropped.
	Publisher Publisher
	// MaxPageSize bounds the limit accepted by list queries.
	MaxPageSize int
}

// Service is the activity recorder and query service.
//
// Writes through Record are best-effort: a store failure is logged and
// swallowed so the business operation that triggered it is never affected.
// Reads always surface failures.
type Service struct {
	repo      Repository
	publisher Publisher
	maxLimit  int
	clock     func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	maxLimit := opts.MaxPageSize
	if maxLimit <= 0 {
		maxLimit = DefaultMaxPageSize
	}
	return &Service{repo: repo, publisher: opts.Publisher, maxLimit: maxLimit, clock: time.Now}
}

// RecordInput carries one event. Everything except Action and Description is optional.
type RecordInput struct {
	Action      Action
	Description string
	ActorID     *int64
	TargetID    *int64
	TargetType  string
	Metadata    map[string]any
	IPAddress   string
}

// Record appends one entry, best-effort.
//
// It returns ErrInvalidArgument for a malformed input (nothing is persisted).
// Store failures are logged and nil is returned.
func (s *Service) Record(ctx context.Context, in RecordInput) error {
	e, err := s.build(in)
	if err != nil {
		return err
	}
	if s.repo == nil {
		logger.From(ctx).Error("activity log not configured", "action", in.Action)
		return nil
	}

	stored, err := s.repo.Append(ctx, e)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return err
		}
		logger.From(ctx).Error("activity log write failed",
			"action", e.Action,
			"actor_id", actorAttr(e.ActorID),
			"err", err,
		)
		return nil
	}
	s.publish(ctx, stored)
	return nil
}

// Append is the strict variant of Record: store failures are returned.
func (s *Service) Append(ctx context.Context, in RecordInput) (Entry, error) {
	e, err := s.build(in)
	if err != nil {
		return Entry{}, err
	}
	if s.repo == nil {
		return Entry{}, errors.New("audit: repository not configured")
	}
	stored, err := s.repo.Append(ctx, e)
	if err != nil {
		return Entry{}, storeErr("append", err)
	}
	s.publish(ctx, stored)
	return stored, nil
}

func (s *Service) build(in RecordInput) (Entry, error) {
	if !in.Action.Valid() {
		return Entry{}, invalidArgf("unknown action %q", in.Action)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return Entry{}, invalidArgf("description is required")
	}

	md := make(map[string]any, len(in.Metadata))
	for k, v := range in.Metadata {
		md[k] = v
	}
	// Stored as jsonb; reject here so every repository behaves the same.
	if _, err := json.Marshal(md); err != nil {
		return Entry{}, invalidArgf("metadata is not serializable: %v", err)
	}

	return Entry{
		Action:      in.Action,
		Description: desc,
		ActorID:     in.ActorID,
		TargetID:    in.TargetID,
		TargetType:  strings.TrimSpace(in.TargetType),
		Metadata:    md,
		IPAddress:   strings.TrimSpace(in.IPAddress),
		CreatedAt:   s.clock().UTC(),
	}, nil
}

func (s *Service) publish(ctx context.Context, e Entry) {
	if s.publisher == nil {
		return
	}
	// Detach from the request so a client disconnect does not drop the fan-out.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, string(e.Action), e); err != nil {
		logger.From(ctx).Warn("activity publish failed", "id", e.ID, "action", e.Action, "err", err)
	}
}

// --- Queries ---

// ListAll returns every entry, newest first.
func (s *Service) ListAll(ctx context.Context, page, limit int) (Page, error) {
	return s.list(ctx, Filter{}, page, limit)
}

// ListByAction returns entries of a single action kind.
func (s *Service) ListByAction(ctx context.Context, action Action, page, limit int) (Page, error) {
	if !action.Valid() {
		return Page{}, invalidArgf("unknown action %q", action)
	}
	return s.list(ctx, Filter{Action: action}, page, limit)
}

// ListByActor returns entries performed by one user.
func (s *Service) ListByActor(ctx context.Context, actorID int64, page, limit int) (Page, error) {
	if actorID < 1 {
		return Page{}, invalidArgf("user id must be positive")
	}
	return s.list(ctx, Filter{ActorID: &actorID}, page, limit)
}

func (s *Service) list(ctx context.Context, f Filter, page, limit int) (Page, error) {
	if err := s.checkPaging(page, limit); err != nil {
		return Page{}, err
	}
	if s.repo == nil {
		return Page{}, errors.New("audit: repository not configured")
	}

	f.Limit = limit
	f.Offset = (page - 1) * limit

	rows, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, storeErr("list", err)
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Page{Data: rows, Pagination: newPagination(total, page, limit)}, nil
}

func (s *Service) checkPaging(page, limit int) error {
	if page < 1 {
		return invalidArgf("page must be >= 1")
	}
	if limit < 1 || limit > s.maxLimit {
		return invalidArgf("limit must be between 1 and %d", s.maxLimit)
	}
	if int64(page-1)*int64(limit) > math.MaxInt32 {
		return invalidArgf("page out of range")
	}
	return nil
}

func actorAttr(id *int64) string {
	if id == nil {
		return "system"
	}
	return strconv.FormatInt(*id, 10)
}
