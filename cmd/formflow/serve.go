package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/pkg/cache"
	"github.com/goliatone/go-formflow/pkg/captcha"
	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/metrics"
	"github.com/goliatone/go-formflow/pkg/storage"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the form API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := newLogger()

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}

	options := []formflow.Option{
		formflow.WithLogger(logger),
		formflow.WithMetrics(metrics.New()),
		formflow.WithCallTimeout(cfg.CallTimeout),
		formflow.WithFileStore(storage.NewDisk(cfg.MediaDir, cfg.MediaBaseURL)),
	}

	if cfg.RedisAddr != "" {
		redisCache, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			cache.WithRedisTTL(cfg.CacheTTL), cache.WithRedisLogger(logger))
		if err != nil {
			return err
		}
		defer redisCache.Close()
		options = append(options, formflow.WithCache(redisCache))
	} else {
		options = append(options, formflow.WithCache(cache.NewMemory(cfg.CacheTTL)))
	}

	if cfg.CaptchaVerifyURL != "" {
		options = append(options, formflow.WithCaptchaVerifier(&captcha.HTTPVerifier{
			VerifyURL: cfg.CaptchaVerifyURL,
			Secret:    cfg.CaptchaSecret,
		}))
	}

	engine := formflow.New(repo, options...)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("formflow: listening", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
