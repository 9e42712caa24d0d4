// The engine binary runs the whole automation stack in one process: the
// marketplace event dispatcher, the asynq worker, the background loops and
// the operator HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpilot/internal/engine"
	"marketpilot/internal/flows"
	"marketpilot/internal/httpapi"
	"marketpilot/internal/marketplace"
	"marketpilot/internal/notify"
	"marketpilot/internal/orders"
	"marketpilot/internal/scheduler"
	"marketpilot/internal/settings"
	"marketpilot/internal/stats"
	"marketpilot/internal/support"
	"marketpilot/platform/config"
	"marketpilot/platform/db"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("engine stopped", "error", err)
		os.Exit(1)
	}
	log.Info("engine shut down")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pool, err := connectWithRetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg); err != nil {
		return err
	}
	log.Info("migrations applied")

	// Shared infrastructure.
	bus := events.NewInMemoryBus(log)
	market := marketplace.NewClient(cfg, log)
	registry := flows.DefaultRegistry()

	orderRepo := orders.New(pool)
	bindingRepo := flows.NewRepository(pool)
	settingsRepo := settings.New(pool)
	statsRepo := stats.New(pool)

	// Operator alerting hangs off the event bus.
	email, err := notify.NewEmail(cfg)
	if err != nil {
		return err
	}
	var emailNotifier notify.Notifier
	if email != nil {
		emailNotifier = email
	}
	var telegramNotifier notify.Notifier
	if tg := notify.NewTelegram(cfg); tg != nil {
		telegramNotifier = tg
	}
	notifier := notify.NewMulti(log, telegramNotifier, emailNotifier)
	notify.NewSubscriber(notifier, log).Register(bus)

	supportClient, err := support.NewClient(cfg, log)
	if err != nil {
		return err
	}

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		return err
	}
	defer taskClient.Close()

	dispatcher := engine.New(
		market, orderRepo, bindingRepo, registry,
		taskClient, settingsRepo, bus,
		cfg.MarketplaceBaseURL, log,
	)
	reconciler := engine.NewReconciler(market, orderRepo, bindingRepo, registry, log)

	reminderHandler := scheduler.NewReminderHandler(orderRepo, market, settingsRepo, log)
	worker, err := scheduler.NewWorker(cfg, reminderHandler, log)
	if err != nil {
		return err
	}

	background := scheduler.NewBackground(market, orderRepo, statsRepo, supportClient, settingsRepo, bus, log)

	// Establish the marketplace session and catch up on what happened while
	// the engine was down before any live events are processed.
	if err := market.Refresh(ctx); err != nil {
		return err
	}
	log.Info("marketplace session established", "seller", market.Account().Username)
	if _, err := reconciler.Run(ctx); err != nil {
		log.Error("startup reconciliation failed", "error", err)
		bus.Publish(ctx, engine.AutomationFailure{
			BaseEvent: events.NewBaseEvent(),
			Task:      "reconciliation",
			Reason:    err.Error(),
		})
	}

	// Operator API.
	orderSvc := httpapi.NewOrderService(orderRepo, market, bindingRepo, log)
	api := httpapi.NewModule(cfg, orderSvc, bindingRepo, settingsRepo, statsRepo, reconciler, registry, log)
	router := httpapi.NewRouter(cfg.Env, cfg, log)
	api.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("dispatcher started", "poll_delay", cfg.EventPollDelay)
		return dispatcher.Run(ctx, market.Listen(ctx))
	})

	g.Go(func() error {
		log.Info("task worker started", "queue", cfg.AsynqQueueName)
		return worker.Run(ctx)
	})

	g.Go(func() error {
		log.Info("background loops started")
		return background.Run(ctx)
	})

	g.Go(func() error {
		log.Info("http server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// connectWithRetry keeps trying the database for a while. Container
// orchestration regularly starts the engine before Postgres is ready.
func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	const (
		maxAttempts = 10
		retryDelay  = 3 * time.Second
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := db.NewPool(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		log.Warn("database not ready", "attempt", attempt, "error", err)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
