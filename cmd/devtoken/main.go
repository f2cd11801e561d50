// Command devtoken prints a signed access token for local testing of the
// admin endpoints. It refuses to run outside local and dev.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hotel-directory/internal/auth"
	"hotel-directory/internal/config"
	"hotel-directory/internal/rbac"
)

func main() {
	userID := flag.Int64("user", 1, "user id to embed")
	role := flag.String("role", rbac.RoleAdmin, "role to embed (admin or user)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if cfg.App.Env != "local" && cfg.App.Env != "dev" {
		slog.Error("devtoken only runs in local or dev", "env", cfg.App.Env)
		os.Exit(1)
	}

	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		slog.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	tok, err := m.Issue(time.Now(), *userID, *role)
	if err != nil {
		slog.Error("issue failed", "err", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
