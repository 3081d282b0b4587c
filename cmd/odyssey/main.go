package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-assets/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-assets/internal/app"
	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/masterdata"
	"github.com/odyssey-erp/odyssey-assets/internal/notifications"
	"github.com/odyssey-erp/odyssey-assets/internal/observability"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-assets/internal/platform/db"
	"github.com/odyssey-erp/odyssey-assets/internal/procurement"
	"github.com/odyssey-erp/odyssey-assets/internal/rbac"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
	"github.com/odyssey-erp/odyssey-assets/internal/valuation"
	"github.com/odyssey-erp/odyssey-assets/jobs"
	"github.com/odyssey-erp/odyssey-assets/report"
)

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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCLI(ctx, cfg, logger, os.Args[2:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewTaskNotifier(queue)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	refs := masterdata.NewRepository(dbpool)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), redisClient, cfg.RBACCacheTTL, logger)
	rbacMiddleware := rbac.Middleware{Authorizer: rbacService, Logger: logger}

	budgetService := budget.NewService(budget.NewRepository(dbpool), refs, rbacService, auditLogger, logger)
	budgetService.WithMetrics(metrics)
	budgetService.WithRenderer(report.BudgetWorkbook{})

	procurementService := procurement.NewService(procurement.NewRepository(dbpool), refs, rbacService, notifier, auditLogger, logger)
	procurementService.WithMetrics(metrics)

	assetService := assets.NewService(assets.NewRepository(dbpool), rbacService)

	valuationService := valuation.NewService(valuation.NewRepository(dbpool), rbacService, auditLogger, logger)
	valuationService.WithMetrics(metrics)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		BudgetHandler:      budget.NewHandler(logger, budgetService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		AssetsHandler:      assets.NewHandler(logger, assetService),
		ValuationHandler:   valuation.NewHandler(logger, valuationService),
		MasterDataHandler:  masterdata.NewHandler(logger, refs),
		InboxHandler:       notifications.NewHandler(logger, notifications.NewRepository(dbpool)),
		PermissionsHandler: rbac.NewHandler(logger, rbacService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCLI(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	if err := jobsCLI.Run(ctx, args, os.Stdout); err != nil {
		logger.Error("jobs cli", slog.Any("error", err))
		return 1
	}
	return 0
}
