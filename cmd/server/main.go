package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/reshetovitsme/tg-forwarder/internal/di"
	dispatchService "github.com/reshetovitsme/tg-forwarder/internal/modules/dispatch/service"
	forwardingService "github.com/reshetovitsme/tg-forwarder/internal/modules/forwarding/service"
	ruleService "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/service"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/config"
	httpServer "github.com/reshetovitsme/tg-forwarder/internal/transport/http"
	"github.com/reshetovitsme/tg-forwarder/internal/transport/telegram"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging with multiple handlers using slog-multi
	level := slog.LevelInfo
	if cfg.IsDebug() {
		level = slog.LevelDebug
	}
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	// Use Fanout to send logs to both handlers
	logger := slog.New(slogmulti.Fanout(textHandler, jsonHandler))
	slog.SetDefault(logger)

	injector := di.SetupWithConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, injector); err != nil {
		slog.Error("Application stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, injector do.Injector) error {
	// Get services from DI container
	rules := do.MustInvoke[*ruleService.Service](injector)
	dispatcher := do.MustInvoke[*dispatchService.Dispatcher](injector)
	forwarder := do.MustInvoke[*forwardingService.Forwarder](injector)
	server := do.MustInvoke[*httpServer.Server](injector)
	handler := do.MustInvoke[*telegram.Handler](injector)
	b := do.MustInvoke[*bot.Bot](injector)

	if err := rules.Start(ctx); err != nil {
		return err
	}
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	if err := forwarder.Start(ctx); err != nil {
		return err
	}

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := handler.PublishCommands(ctx, b); err != nil {
		slog.Warn("Failed to publish bot commands", "error", err)
	}

	// Start long polling; it returns once pollCtx is cancelled
	pollCtx, cancelPolling := context.WithCancel(ctx)
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		b.Start(pollCtx)
	}()

	slog.Info("Application started",
		"port", cfg.HTTPPort,
		"rules", len(rules.Snapshot().Rules),
		"source_channels", rules.Snapshot().SourceChannels(),
	)
	slog.Info("Press Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		slog.Error("HTTP server failed", "error", runErr)
	}

	slog.Info("Shutting down...")
	cancelPolling()
	<-polling

	if err := di.Shutdown(injector, cancelPolling, cfg.ShutdownTimeout()); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	return runErr
}
