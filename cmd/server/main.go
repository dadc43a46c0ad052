// Package main runs the unified PatriDeFi service:
// - Coordinator + ledger core with a durable event log
// - HTTP API for minting, customer records, and token metadata
// - In-process indexer mirroring the log into query stores
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

	"patridefi/internal/api"
	"patridefi/internal/coordinator"
	"patridefi/internal/domain"
	"patridefi/internal/eventlog"
	"patridefi/internal/indexer"
	"patridefi/internal/ledger"
	"patridefi/internal/observability"
	"patridefi/internal/oracle"
	"patridefi/internal/replay"
	"patridefi/internal/storage"
	chstore "patridefi/internal/storage/clickhouse"
	"patridefi/internal/storage/memory"
	"patridefi/internal/storage/migrations"
	pgstore "patridefi/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	ownerFlag := flag.String("owner", os.Getenv("OWNER_ADDRESS"), "Owner wallet address (required)")
	custodyFlag := flag.String("custody", os.Getenv("CUSTODY_ADDRESS"), "Custody wallet address (defaults to owner)")
	coordFlag := flag.String("coordinator-address", envOr("COORDINATOR_ADDRESS", "0x0000000000000000000000000000000000000c00"), "Coordinator's own address, installed as ledger minter")
	baseURI := flag.String("base-uri", envOr("BASE_URI", "https://patridefi.com/api/metadata/"), "Token metadata base URI")
	eventLogPath := flag.String("event-log-path", os.Getenv("EVENT_LOG_PATH"), "SQLite event log path (empty = in-memory)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for mirror stores")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for price observations")
	useMemory := flag.Bool("use-memory", false, "Use in-memory mirror stores instead of PostgreSQL")
	goldFeedWS := flag.String("gold-feed-ws", os.Getenv("GOLD_FEED_WS"), "WebSocket gold price feed endpoint (empty = static price)")
	goldPrice := flag.Int64("gold-price", 200_000_000_000, "Static gold price per troy ounce, 8 decimals (used without -gold-feed-ws)")
	priceMaxAge := flag.Duration("price-max-age", 0, "Reject oracle prices older than this (0 = no staleness check)")
	indexerPoll := flag.Duration("indexer-poll", 500*time.Millisecond, "Indexer poll interval")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *ownerFlag == "" {
		logger.Fatal("--owner is required")
	}
	owner, err := domain.ParseAddress(*ownerFlag)
	if err != nil {
		logger.Fatalf("Invalid --owner: %v", err)
	}
	self, err := domain.ParseAddress(*coordFlag)
	if err != nil {
		logger.Fatalf("Invalid --coordinator-address: %v", err)
	}
	custody := owner
	if *custodyFlag != "" {
		custody, err = domain.ParseAddress(*custodyFlag)
		if err != nil {
			logger.Fatalf("Invalid --custody: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event log: durable SQLite or ephemeral memory
	var eventLog eventlog.Log
	if *eventLogPath != "" {
		sqliteLog, err := eventlog.OpenSQLiteLog(ctx, *eventLogPath)
		if err != nil {
			logger.Fatalf("Failed to open event log: %v", err)
		}
		defer sqliteLog.Close()
		eventLog = sqliteLog
		logger.Printf("Event log: sqlite at %s", *eventLogPath)
	} else {
		eventLog = eventlog.NewMemoryLog()
		logger.Println("Event log: in-memory (state is lost on restart)")
	}

	// Oracle feed
	var feed oracle.PriceFeed
	if *goldFeedWS != "" {
		wsFeed, err := oracle.NewWSFeed(ctx, *goldFeedWS, nil, logger)
		if err != nil {
			logger.Fatalf("Failed to connect gold price feed: %v", err)
		}
		defer wsFeed.Close()
		feed = wsFeed
		logger.Printf("Gold price feed: websocket %s", *goldFeedWS)
	} else {
		feed = oracle.NewStaticFeed(*goldPrice)
		logger.Printf("Gold price feed: static %d", *goldPrice)
	}
	var adapterOpts []oracle.Option
	if *priceMaxAge > 0 {
		adapterOpts = append(adapterOpts, oracle.WithMaxAge(*priceMaxAge))
	}
	priceAdapter := oracle.NewAdapter(feed, adapterOpts...)

	// Core: ledger + coordinator, rebuilt from the event log
	led := ledger.New(owner, *baseURI, eventLog)
	coord := coordinator.New(coordinator.Options{
		Self:    self,
		Owner:   owner,
		Custody: custody,
		Ledger:  led,
		Oracle:  priceAdapter,
		Log:     eventLog,
	})
	if err := led.SetMinter(owner, self); err != nil {
		logger.Fatalf("Failed to install minter: %v", err)
	}

	applied, err := replay.Restore(ctx, eventLog, coord, led)
	if err != nil {
		logger.Fatalf("Failed to replay event log: %v", err)
	}
	if applied > 0 {
		logger.Printf("Replayed %d events, next token id %d", applied, led.NextTokenID())
	}

	// Mirror stores
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

	// Indexer
	runner := indexer.NewRunner(indexer.RunnerOptions{
		Log:          eventLog,
		Customers:    customers,
		Tokens:       tokens,
		Progress:     progress,
		Observations: observations,
		PollInterval: *indexerPoll,
		Logger:       log.New(os.Stdout, "[indexer] ", log.LstdFlags),
		Metrics:      metrics,
	})
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Indexer stopped: %v", err)
			stop()
		}
	}()

	// HTTP API
	apiServer := api.NewServer(api.Options{
		Coordinator: coord,
		Ledger:      led,
		Customers:   customers,
		Tokens:      tokens,
		Logger:      logger,
		Metrics:     metrics,
	})
	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: apiServer.Routes(),
	}
	go func() {
		logger.Printf("Starting HTTP server on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}
	logger.Println("Stopped")
}

// envOr returns the env var value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
