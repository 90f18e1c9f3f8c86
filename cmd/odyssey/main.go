package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/migrations"
)

const usage = `usage: odyssey [command]

commands:
  serve                       run the HTTP API (default)
  migrate                     apply embedded schema migrations
  integrity-scan [-json]      verify ledger and stock invariants now
  jobs trigger <task> [-by]   enqueue a worker task
  jobs stats                  print default queue depth`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		migrator, merr := db.NewMigrator(migrations.Files, cfg.PGDSN, logger)
		if merr != nil {
			logger.Error("init migrator", slog.Any("error", merr))
			os.Exit(1)
		}
		os.Exit(cli.MigrateCommand(migrator, os.Stdout, os.Stderr))
	case "integrity-scan":
		os.Exit(integrityScan(ctx, cfg, logger, args))
	case "jobs":
		os.Exit(jobsCommand(ctx, cfg, args))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("odyssey", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	mapping, _ := mappings.Lookup(cfg.ChartVersion)
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	postingOpts := posting.Options{Audit: auditLogger, Metrics: metrics, Logger: logger}
	var redisClient *redis.Client
	if cfg.DocumentLockEnabled {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		postingOpts.Locker = cache.NewLocker(redisClient, cfg.DocumentLockTTL)
	}

	ledger := journals.NewEngine(logger)
	fifo := inventory.NewEngine(logger, metrics)
	resolver := mappings.NewResolver(mapping)

	postingService := posting.NewService(posting.NewPgStore(pool, cfg.LedgerLockTimeout), resolver, ledger, fifo, postingOpts)
	periodService := periods.NewService(periods.NewPgStore(pool), auditLogger, logger)
	journalService := journals.NewService(journals.NewPgStore(pool, cfg.LedgerLockTimeout), ledger, auditLogger, logger)
	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo, accounts.NewGuard(accountRepo, mapping.ProtectedCodes()))

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		PostingHandler: posting.NewHandler(logger, postingService),
		PeriodsHandler: periods.NewHandler(logger, periodService),
		JournalHandler: journals.NewHandler(logger, journalService),
		AccountHandler: accounts.NewHandler(logger, accountService),
		JobHandler:     jobHandler,
		Database:       pool,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("chart_version", mapping.Version),
			slog.Bool("document_lock", cfg.DocumentLockEnabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func integrityScan(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("integrity-scan", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 2
	}
	defer pool.Close()
	scanner := integrity.NewScanner(integrity.NewRepository(pool), logger)
	return cli.IntegrityCommand(ctx, scanner, cli.IntegrityOptions{JSONOutput: *jsonOut})
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	helper := cli.NewJobsCLI(cfg.RedisAddr)
	defer helper.Close()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		by := fs.String("by", os.Getenv("USER"), "operator recorded on the task")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		info, err := helper.Trigger(ctx, fs.Arg(0), *by)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := helper.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stats: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}
