package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nitesh/readme_service/internal/api"
	"github.com/nitesh/readme_service/internal/cache"
	"github.com/nitesh/readme_service/internal/config"
	"github.com/nitesh/readme_service/internal/logger"
	"github.com/nitesh/readme_service/internal/service"
	"github.com/nitesh/readme_service/internal/store"
	"github.com/nitesh/readme_service/internal/tracing"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config and PORT)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and intake form",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
	})
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	repo, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer repo.Close()
	log.Info("intake store ready", "driver", cfg.Store.Driver)

	opts := []service.Option{service.WithLogger(log)}
	if cfg.Cache.RedisAddr != "" {
		c, err := cache.NewArticleCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, log)
		if err != nil {
			log.Warn("article cache disabled", "error", err)
		} else {
			defer c.Close()
			opts = append(opts, service.WithCache(c))
		}
	}

	svc := service.NewService(newFigshareClient(cfg, log), repo, opts...)
	handler := api.NewHandler(svc, log, versionInfo())

	gin.SetMode(cfg.Server.GinMode)
	router := api.NewRouter(api.RouterConfig{
		Handler:     handler,
		Logger:      log,
		CORSOrigins: cfg.Server.CORSOrigins,
		ServiceName: cfg.Tracing.ServiceName,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
