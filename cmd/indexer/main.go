// Package main runs the standalone indexer: it tails a durable event log
// and mirrors it into the query stores, independently of the serving
// process.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"patridefi/internal/eventlog"
	"patridefi/internal/indexer"
	"patridefi/internal/observability"
	"patridefi/internal/storage"
	chstore "patridefi/internal/storage/clickhouse"
	"patridefi/internal/storage/memory"
	"patridefi/internal/storage/migrations"
	pgstore "patridefi/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	eventLogPath := flag.String("event-log-path", os.Getenv("EVENT_LOG_PATH"), "SQLite event log path (required)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for mirror stores")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for price observations")
	useMemory := flag.Bool("use-memory", false, "Use in-memory mirror stores (testing only)")
	consumer := flag.String("consumer", "mirror", "Progress-store consumer name")
	pollInterval := flag.Duration("poll-interval", 500*time.Millisecond, "Event log poll interval")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address")
	once := flag.Bool("once", false, "Catch up to the log tail and exit")

	flag.Parse()

	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile)

	if *eventLogPath == "" {
		logger.Fatal("--event-log-path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventLog, err := eventlog.OpenSQLiteLog(ctx, *eventLogPath)
	if err != nil {
		logger.Fatalf("Failed to open event log: %v", err)
	}
	defer eventLog.Close()

	var (
		customers storage.CustomerMirrorStore
		tokens    storage.TokenMirrorStore
		progress  storage.IndexerProgressStore
	)
	if *useMemory || *postgresDSN == "" {
		customers = memory.NewCustomerMirrorStore()
		tokens = memory.NewTokenMirrorStore()
		progress = memory.NewIndexerProgressStore()
		logger.Println("Mirror stores: in-memory")
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run PostgreSQL migrations: %v", err)
		}
		customers = pgstore.NewCustomerMirrorStore(pool)
		tokens = pgstore.NewTokenMirrorStore(pool)
		progress = pgstore.NewIndexerProgressStore(pool)
		logger.Println("Mirror stores: PostgreSQL")
	}

	var observations storage.PriceObservationStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to run ClickHouse migrations: %v", err)
		}
		defer conn.Close()
		observations = chstore.NewPriceObservationStore(conn)
		logger.Println("Price observations: ClickHouse")
	}

	metrics := observability.NewMetrics("patridefi", nil)

	runner := indexer.NewRunner(indexer.RunnerOptions{
		Log:          eventLog,
		Customers:    customers,
		Tokens:       tokens,
		Progress:     progress,
		Observations: observations,
		Consumer:     *consumer,
		PollInterval: *pollInterval,
		Logger:       logger,
		Metrics:      metrics,
	})

	if *once {
		if err := runner.Sync(ctx); err != nil {
			logger.Fatalf("Sync failed: %v", err)
		}
		logger.Println("Caught up, exiting")
		return
	}

	go serveMetrics(*metricsAddr, logger)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Indexer stopped: %v", err)
	}
	logger.Println("Stopped")
}

// serveMetrics exposes /metrics and /health.
func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("Metrics server error: %v", err)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
