package utils

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestSnapshotTxOptions(t *testing.T) {
	o := SnapshotTxOptions()
	if o.Isolation != sql.LevelRepeatableRead || !o.ReadOnly {
		t.Fatalf("unexpected options: %+v", o)
	}
}

func TestPoolConfigDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 25 || c.PingTimeout <= 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	c = PostgresPoolConfig{MaxOpenConns: 3}.withDefaults()
	if c.MaxOpenConns != 3 {
		t.Fatalf("explicit value overridden: %+v", c)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, "pgx", dsn, PostgresPoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	// temp tables are per-connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS tx_probe (n INT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tx_probe (n) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tx_probe`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}
