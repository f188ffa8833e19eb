package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platfe/economy/internal/ledger"
	"github.com/platfe/economy/internal/metrics"
	"github.com/platfe/economy/internal/settlement"
	"github.com/platfe/economy/internal/storage/sqlite"
	"github.com/platfe/economy/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/economy.db")
	interval := getEnv("SETTLEMENT_INTERVAL", "30s")
	metricsAddr := getEnv("METRICS_ADDR", ":9090")

	if _, err := time.ParseDuration(interval); err != nil {
		slog.Error("Invalid SETTLEMENT_INTERVAL", "value", interval, "error", err)
		os.Exit(1)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	accounts := ledger.NewAccounts(store)
	engine := settlement.NewEngine(store, accounts)

	// Settlement passes run at a fixed cadence; SkipIfStillRunning keeps
	// a slow pass from overlapping the next one, so no entity is ever
	// checked by two passes at once.
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	_, err = scheduler.AddFunc("@every "+interval, func() {
		if _, err := engine.CheckAll(context.Background()); err != nil {
			slog.Error("Settlement pass failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("Failed to schedule settlement pass", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Settlement scheduler started", "interval", interval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	slog.Info("Metrics server starting", "address", metricsAddr)
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		slog.Error("Metrics server failed", "error", err)
		os.Exit(1)
	}
}
