// evlogd is an embedded, append-only event store with a line-oriented TCP
// protocol for publish/subscribe access, one log file per named collection.
//
// Usage:
//
//	export EVLOGD_LOGS_PATH=/var/lib/evlogd
//	export EVLOGD_ADDR=:38580
//	export EVLOGD_AUTH_TOKEN=<shared secret>
//	./evlogd
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/klppl/evlogd/internal/audit"
	"github.com/klppl/evlogd/internal/config"
	"github.com/klppl/evlogd/internal/server"
	"github.com/klppl/evlogd/internal/store"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logs := server.NewLogBroadcaster(os.Stdout)
	slog.SetDefault(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("starting evlogd")

	// ─── Configuration ────────────────────────────────────────────────────────
	cfg := config.Load()
	slog.Info("config loaded",
		"logs_path", cfg.LogsPath,
		"addr", cfg.Server.Addr,
		"routing_strategy", cfg.RoutingStrategy,
	)

	// ─── Collection store ─────────────────────────────────────────────────────
	st, err := store.Open(cfg.LogsPath, cfg.CollectionConfig)
	if err != nil {
		slog.Error("failed to open collection store", "error", err, "path", cfg.LogsPath)
		os.Exit(1)
	}
	defer st.Close()

	// ─── Audit log ────────────────────────────────────────────────────────────
	auditLog, err := audit.Open(cfg.AuditDatabaseURL)
	if err != nil {
		slog.Error("failed to open audit log", "error", err, "url", cfg.AuditDatabaseURL)
		os.Exit(1)
	}
	defer auditLog.Close()

	// ─── Graceful shutdown ────────────────────────────────────────────────────
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ─── TCP + admin HTTP servers ─────────────────────────────────────────────
	srv := server.New(cfg.Server, st, auditLog, logs)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(ctx) }()
	go func() { errCh <- srv.RunAdmin(ctx, cfg.Server.AdminAddr) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			slog.Error("server exited with error", "error", err)
		}
	}

	slog.Info("evlogd stopped")
}
