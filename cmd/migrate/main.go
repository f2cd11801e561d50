package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"hotel-directory/internal/config"
	"hotel-directory/migrations"
	"hotel-directory/pkg/logger"
	"hotel-directory/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down or version")
	steps := flag.Int("steps", 1, "number of migrations to revert in down mode")
	flag.Parse()

	// DATABASE_URL lets CI migrate without the full API environment.
	dsn := os.Getenv("DATABASE_URL")
	appEnv := os.Getenv("APP_ENV")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("config load failed", "err", err)
			os.Exit(1)
		}
		dsn, appEnv = cfg.PostgresDSN(), cfg.App.Env
	}
	log := logger.New(appEnv)
	ctx := logger.With(context.Background(), log)

	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	// The runner owns db from here on.
	runner, err := migrations.New(ctx, db)
	if err != nil {
		log.Error("migration init failed", "err", err)
		os.Exit(1)
	}

	var version uint
	switch strings.ToLower(*mode) {
	case "up":
		version, err = runner.Up()
	case "down":
		version, err = runner.Down(*steps)
	case "version":
		version, err = runner.Version()
	default:
		log.Error("unknown mode", "mode", *mode)
		_ = runner.Close()
		os.Exit(2)
	}
	if cerr := runner.Close(); cerr != nil {
		log.Warn("migration close failed", "err", cerr)
	}
	if err != nil {
		log.Error("migration failed", "mode", *mode, "version", version, "err", err)
		os.Exit(1)
	}
	log.Info("migration completed", "mode", *mode, "version", version)
}
