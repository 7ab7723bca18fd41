package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"marketplace/internal/cleanup"
	"marketplace/internal/config"
	httpapi "marketplace/internal/http"
	"marketplace/internal/logging"
	"marketplace/internal/notify"
	"marketplace/internal/pricing"
	"marketplace/internal/service"
	"marketplace/internal/telemetry"

	_ "marketplace/docs"
)

// @title Marketplace Order API
// @version 1.0
// @description Cart checkout, order tracking and order administration.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY
func main() {
	app := &cli.App{
		Name:  "marketplace",
		Usage: "order assembly service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Action: serve},
			{Name: "migrate", Usage: "create tables or indexes for the configured store", Action: migrate},
			{Name: "sweep-carts", Usage: "retry pending cart cleanups once and exit", Action: sweepCarts},
			{
				Name:   "token",
				Usage:  "issue a user JWT for local testing",
				Action: issueToken,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "user id for the user_id claim"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	shutdownTracing, err := telemetry.Setup(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("tracing shutdown", "error", err)
		}
	}()

	store, err := openStorage(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(context.Background()); err != nil {
			log.Error("close storage", "error", err)
		}
	}()
	if err := store.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	queue, closeQueue, err := openQueue(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	hub := notify.NewHub(log, cfg.CORS.Origins)
	orders := service.NewOrderService(service.Repositories{
		Products:  store.products,
		Carts:     store.carts,
		Addresses: store.addresses,
		Orders:    store.orders,
	}, store.tx,
		service.WithPricing(pricing.NewPolicy(cfg.Orders.FreeShippingOver, cfg.Orders.FlatShipping)),
		service.WithReserveStock(cfg.Orders.ReserveStock),
		service.WithAddressOwnership(cfg.Orders.VerifyAddressOwnership),
		service.WithCleanupQueue(queue),
		service.WithEvents(hub),
		service.WithLogger(log),
	)

	sweeper := cleanup.NewSweeper(queue, store.carts, log, cfg.Cleanup.SweepInterval)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweeper.Run(sweepCtx)

	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.NewServer(httpapi.Services{
		Products:  service.NewProductService(store.products),
		Carts:     service.NewCartService(store.carts, store.products),
		Addresses: service.NewAddressService(store.addresses),
		Orders:    orders,
	}, httpapi.Options{
		JWTSecret:   cfg.Auth.JWTSecret,
		AdminAPIKey: cfg.Auth.AdminAPIKey,
		CORSOrigins: cfg.CORS.Origins,
		Logger:      log,
		OrderFeed:   hub,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           telemetry.Handler(srv.Engine(), "marketplace"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	store, err := openStorage(c.Context, cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.close(context.Background())
	if err := store.migrate(c.Context); err != nil {
		return err
	}
	log.Info("migration complete", "driver", cfg.Store.Driver)
	return nil
}

func sweepCarts(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	if cfg.Redis.URL == "" {
		return errors.New("sweep-carts needs REDIS_URL: the in-memory queue lives only inside the server")
	}
	store, err := openStorage(c.Context, cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.close(context.Background())
	queue, closeQueue, err := openQueue(c.Context, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	res, err := cleanup.NewSweeper(queue, store.carts, log, cfg.Cleanup.SweepInterval).Drain(c.Context)
	if err != nil {
		return err
	}
	log.Info("sweep finished", "cleared", res.Cleared, "requeued", res.Requeued, "lines", res.Lines)
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	tok, err := httpapi.IssueToken(cfg.Auth.JWTSecret, c.String("user"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tok)
	return nil
}
