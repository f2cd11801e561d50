package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"hotel-directory/pkg/utils"
)

// pgInvalidTextRepresentation is raised when a value does not fit the
// activity_action enum.
const pgInvalidTextRepresentation = "22P02"

// PostgresRepo stores entries in activity_logs.
//
// Assumes migrations/0001_activity_logs.up.sql has been applied.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) (Entry, error) {
	md, err := json.Marshal(copyMetadata(e.Metadata))
	if err != nil {
		return Entry{}, invalidArgf("metadata is not serializable: %v", err)
	}

	const q = `
INSERT INTO activity_logs (
  action, description, user_id, target_id, target_type, metadata, ip_address, created_at
) VALUES (
  $1, $2, $3, $4, NULLIF($5, ''), $6::jsonb, NULLIF($7, ''), $8
)
RETURNING id
`
	if err := r.db.QueryRowContext(ctx, q,
		string(e.Action),
		e.Description,
		nullInt(e.ActorID),
		nullInt(e.TargetID),
		e.TargetType,
		string(md),
		e.IPAddress,
		e.CreatedAt,
	).Scan(&e.ID); err != nil {
		return Entry{}, classify(err)
	}
	e.Actor = nil
	return e, nil
}

// List reads the page and the total count from one snapshot so both agree.
func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	where, args := buildWhere(f)

	var (
		rows  []Entry
		total int64
	)
	err := utils.WithTx(ctx, r.db, utils.SnapshotTxOptions(), func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs al"+where, args...).Scan(&total); err != nil {
			return err
		}

		q := `
SELECT al.id, al.action, al.description, al.user_id, al.target_id,
       COALESCE(al.target_type, ''), al.metadata, COALESCE(al.ip_address, ''), al.created_at,
       u.id, u.username, u.email
FROM activity_logs al
LEFT JOIN users u ON u.id = al.user_id` + where + fmt.Sprintf(`
ORDER BY al.created_at DESC, al.id DESC
LIMIT $%d OFFSET $%d
`, len(args)+1, len(args)+2)

		res, err := tx.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return err
		}
		defer res.Close()

		for res.Next() {
			e, err := scanEntry(res)
			if err != nil {
				return err
			}
			rows = append(rows, e)
		}
		return res.Err()
	})
	if err != nil {
		return nil, 0, classify(err)
	}
	if rows == nil {
		rows = []Entry{}
	}
	return rows, total, nil
}

func (r *PostgresRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM activity_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ActionCounts returns per-action totals and the number of entries created
// at or after since, read from one snapshot.
func (r *PostgresRepo) ActionCounts(ctx context.Context, since time.Time) (map[Action]int64, int64, error) {
	counts := map[Action]int64{}
	var recent int64

	err := utils.WithTx(ctx, r.db, utils.SnapshotTxOptions(), func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.QueryContext(ctx, `
SELECT action, COUNT(*)
FROM activity_logs
GROUP BY action
`)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var (
				a string
				n int64
			)
			if err := res.Scan(&a, &n); err != nil {
				return err
			}
			counts[Action(a)] = n
		}
		if err := res.Err(); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM activity_logs WHERE created_at >= $1`, since,
		).Scan(&recent)
	})
	if err != nil {
		return nil, 0, classify(err)
	}
	return counts, recent, nil
}

func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Action != "" {
		args = append(args, string(f.Action))
		conds = append(conds, fmt.Sprintf("al.action = $%d", len(args)))
	}
	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		conds = append(conds, fmt.Sprintf("al.user_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (Entry, error) {
	var (
		e        Entry
		action   string
		actorID  sql.NullInt64
		targetID sql.NullInt64
		md       []byte
		uID      sql.NullInt64
		uName    sql.NullString
		uEmail   sql.NullString
	)
	if err := s.Scan(
		&e.ID,
		&action,
		&e.Description,
		&actorID,
		&targetID,
		&e.TargetType,
		&md,
		&e.IPAddress,
		&e.CreatedAt,
		&uID,
		&uName,
		&uEmail,
	); err != nil {
		return Entry{}, err
	}

	e.Action = Action(action)
	if actorID.Valid {
		id := actorID.Int64
		e.ActorID = &id
	}
	if targetID.Valid {
		id := targetID.Int64
		e.TargetID = &id
	}
	e.Metadata = map[string]any{}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &e.Metadata); err != nil {
			return Entry{}, fmt.Errorf("decode metadata for entry %d: %w", e.ID, err)
		}
	}
	if uID.Valid {
		e.Actor = &Actor{ID: uID.Int64, Username: uName.String, Email: uEmail.String}
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, pgErr.Message)
	}
	return err
}
