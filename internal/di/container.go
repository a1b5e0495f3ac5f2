package di

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dispatchService "github.com/reshetovitsme/tg-forwarder/internal/modules/dispatch/service"
	feedService "github.com/reshetovitsme/tg-forwarder/internal/modules/feed/service"
	"github.com/reshetovitsme/tg-forwarder/internal/modules/forwarding/edit"
	"github.com/reshetovitsme/tg-forwarder/internal/modules/forwarding/filter"
	forwardingService "github.com/reshetovitsme/tg-forwarder/internal/modules/forwarding/service"
	messageRepo "github.com/reshetovitsme/tg-forwarder/internal/modules/message/repository"
	messageService "github.com/reshetovitsme/tg-forwarder/internal/modules/message/service"
	ruleRepo "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/repository"
	ruleService "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/service"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/config"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/regexcache"
	httpServer "github.com/reshetovitsme/tg-forwarder/internal/transport/http"
	"github.com/reshetovitsme/tg-forwarder/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, oops.With("context", "failed to load config").Wrap(err)
	}
	return SetupWithConfig(cfg), nil
}

// SetupWithConfig registers every component against an already loaded config
func SetupWithConfig(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	// Register Metrics Registry
	do.Provide(injector, func(i do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg, nil
	})

	// Register Regex Cache
	do.Provide(injector, func(i do.Injector) (*regexcache.Cache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		cache, err := regexcache.New(regexcache.Options{
			Size:         cfg.RegexCacheSize,
			MatchTimeout: cfg.RegexTimeout(),
			Logger:       slog.Default(),
		})
		if err != nil {
			return nil, oops.With("context", "failed to create regex cache").Wrap(err)
		}
		return cache, nil
	})

	// Register Filter Evaluator
	do.Provide(injector, func(i do.Injector) (*filter.Evaluator, error) {
		return filter.New(do.MustInvoke[*regexcache.Cache](i), slog.Default()), nil
	})

	// Register Edit Pipeline
	do.Provide(injector, func(i do.Injector) (*edit.Pipeline, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return edit.New(do.MustInvoke[*regexcache.Cache](i), edit.Limits{
			MaxTextLength:    cfg.MaxTextLength,
			MaxCaptionLength: cfg.MaxCaptionLength,
		}, slog.Default()), nil
	})

	// Register Rule Repository
	do.Provide(injector, func(i do.Injector) (ruleRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := ruleRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize rule repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Rule Service, seeded with the rules from the config file
	do.Provide(injector, func(i do.Injector) (*ruleService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[ruleRepo.Repository](i)
		service := ruleService.New(repo, cfg.ReloadInterval(), slog.Default())
		if err := service.Seed(cfg.Rules); err != nil {
			return nil, oops.With("context", "failed to seed rules").Wrap(err)
		}
		return service, nil
	})

	// Register Message Repository
	do.Provide(injector, func(i do.Injector) (messageRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := messageRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize message repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Message Service
	do.Provide(injector, func(i do.Injector) (*messageService.Service, error) {
		repo := do.MustInvoke[messageRepo.Repository](i)
		return messageService.New(repo), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		return feedService.New(do.MustInvoke[*messageService.Service](i)), nil
	})

	// Register Bot. Updates reach the handler through a lookup so that the
	// handler's own dependencies (which include this bot) can be built later.
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
				do.MustInvoke[*telegram.Handler](i).HandleUpdate(ctx, b, update)
			}),
			bot.WithAllowedUpdates(bot.AllowedUpdates{
				"message",
				"edited_message",
				"channel_post",
				"edited_channel_post",
			}),
			bot.WithErrorsHandler(func(err error) {
				slog.Error("Telegram polling error", "error", err)
			}),
		}
		if cfg.TelegramAPIURL != "" {
			opts = append(opts, bot.WithServerURL(cfg.TelegramAPIURL))
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}
		return b, nil
	})

	// Register Telegram Sender
	do.Provide(injector, func(i do.Injector) (*telegram.Sender, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return telegram.NewSender(do.MustInvoke[*bot.Bot](i), telegram.Limits{
			MaxTextLength:    cfg.MaxTextLength,
			MaxCaptionLength: cfg.MaxCaptionLength,
		}, slog.Default()), nil
	})

	// Register Dispatcher
	do.Provide(injector, func(i do.Injector) (*dispatchService.Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return dispatchService.New(
			do.MustInvoke[*telegram.Sender](i),
			do.MustInvoke[*messageService.Service](i),
			dispatchService.Options{
				Workers:     cfg.DispatchWorkers,
				QueueSize:   cfg.DispatchQueueSize,
				MaxAttempts: cfg.DispatchMaxAttempts,
				SendTimeout: cfg.SendTimeout(),
				Registerer:  do.MustInvoke[*prometheus.Registry](i),
			},
			slog.Default(),
		), nil
	})

	// Register Rule Engine
	do.Provide(injector, func(i do.Injector) (*forwardingService.Engine, error) {
		return forwardingService.NewEngine(
			do.MustInvoke[*ruleService.Service](i),
			do.MustInvoke[*filter.Evaluator](i),
			do.MustInvoke[*edit.Pipeline](i),
			do.MustInvoke[*prometheus.Registry](i),
			slog.Default(),
		), nil
	})

	// Register Forwarder
	do.Provide(injector, func(i do.Injector) (*forwardingService.Forwarder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return forwardingService.NewForwarder(
			do.MustInvoke[*forwardingService.Engine](i),
			do.MustInvoke[*dispatchService.Dispatcher](i),
			forwardingService.ForwarderOptions{
				Workers:    cfg.IntakeWorkers,
				QueueSize:  cfg.IntakeQueueSize,
				Registerer: do.MustInvoke[*prometheus.Registry](i),
			},
			slog.Default(),
		), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegram.Handler, error) {
		handler := telegram.New(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*forwardingService.Forwarder](i),
			do.MustInvoke[*ruleService.Service](i),
			do.MustInvoke[*dispatchService.Dispatcher](i),
			slog.Default(),
		)
		handler.RegisterCommands(do.MustInvoke[*bot.Bot](i))
		return handler, nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		server := httpServer.New(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*feedService.Service](i),
			do.MustInvoke[*ruleService.Service](i),
			do.MustInvoke[*prometheus.Registry](i),
		)
		server.SetLogger(slog.Default())
		return server, nil
	})

	return injector
}

// Shutdown stops the components in dependency order: intake first, then the
// queues are drained, then the rule store and HTTP server go down.
// cancelPolling must stop the bot's long polling loop.
func Shutdown(injector do.Injector, cancelPolling context.CancelFunc, timeout time.Duration) error {
	if cancelPolling != nil {
		cancelPolling()
	}

	var errs []error

	if forwarder, err := do.Invoke[*forwardingService.Forwarder](injector); err == nil {
		if err := forwarder.Stop(timeout); err != nil {
			errs = append(errs, oops.With("component", "forwarder").Wrap(err))
		}
	}

	if dispatcher, err := do.Invoke[*dispatchService.Dispatcher](injector); err == nil {
		if err := dispatcher.Stop(timeout); err != nil {
			errs = append(errs, oops.With("component", "dispatcher").Wrap(err))
		}
	}

	if rules, err := do.Invoke[*ruleService.Service](injector); err == nil {
		rules.Stop()
	}

	if server, err := do.Invoke[*httpServer.Server](injector); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, oops.With("component", "http-server").Wrap(err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
