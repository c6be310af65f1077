package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/askweb/internal/config"
	"github.com/kitbuilder587/askweb/internal/httpapi"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/ratelimit"
	"github.com/kitbuilder587/askweb/internal/telegram"
	"github.com/kitbuilder587/askweb/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "askweb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{Exporter: cfg.Tracing.Exporter})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	answers, err := buildAnswerService(cfg, logger, m)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		CleanupInterval:   5 * time.Minute,
	})
	defer limiter.Close()

	server := httpapi.New(httpapi.Deps{
		Answers:  answers,
		Limiter:  limiter,
		Logger:   logger.Named("http"),
		Metrics:  m,
		Gatherer: reg,
		Config: httpapi.Config{
			Addr:           cfg.HTTP.Addr(),
			RequestTimeout: cfg.HTTP.RequestTimeout,
			TrustedProxies: cfg.HTTP.TrustedProxies,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})

	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(telegram.BotConfig{
			Token:             cfg.Telegram.Token,
			Debug:             cfg.Telegram.Debug,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			RequestTimeout:    cfg.HTTP.RequestTimeout,
		}, answers, logger.Named("telegram"), m)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("create telegram bot: %w", err)
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN is not set, bot disabled")
	}

	logger.Info("askweb started",
		zap.String("addr", cfg.HTTP.Addr()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("extract_engine", cfg.Extract.Engine),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("askweb stopped")
	return nil
}
