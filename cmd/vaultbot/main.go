package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/backend"
	"vaultbot/internal/bot"
	"vaultbot/internal/cache"
	"vaultbot/internal/cli"
	"vaultbot/internal/config"
	"vaultbot/internal/core"
	"vaultbot/internal/currency"
	apphttp "vaultbot/internal/http"
	applog "vaultbot/internal/log"
	"vaultbot/internal/poll"
	"vaultbot/internal/services"
	"vaultbot/internal/telegram"
)

// Updates of one chat share a lane and are handled in order.
const (
	updateLanes     = 8
	updateLaneDepth = 32
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)
	cfg = cli.LoadAndValidateConfig(logger.Logger, true)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	conv, rates, err := newConverter(cfg)
	if err != nil {
		logger.Error("Invalid currency converter settings", "error", err)
		os.Exit(1)
	}

	// Values were checked by ValidateBot.
	equivalence, _ := core.NormalizeCurrency(cfg.EquivalenceCurrency)
	mode, _ := aggregate.ParseMode(cfg.DiffMode)
	startMode, _ := services.ParseStartMode(cfg.PollStartMode)

	engine := aggregate.NewEngine(res.Store, res.Store, conv, cfg.ParallelConversion)
	reports := services.NewReportService(res.Store, engine, poll.NewRegistry(cfg.SessionTTL), services.ReportConfig{
		Equivalence:     equivalence,
		Mode:            mode,
		PeriodKeyLayout: cfg.PeriodKeyLayout,
		StartMode:       startMode,
	})

	tg, err := telegram.New(cfg.TelegramBotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	dispatcher := bot.NewDispatcher(tg, reports, res.Store, cfg.SessionTTL)
	members, _ := cfg.Members()
	dispatcher.SetMembers(members)
	if len(members) == 0 {
		logger.Warn("HOUSEHOLD_MEMBERS is empty, every chat is served")
	}
	updates := bot.NewQueue(updateLanes, updateLaneDepth, dispatcher.Handle)

	deps := apphttp.Deps{
		Reports:     reports,
		Notifier:    dispatcher,
		Recipients:  res.Store,
		Pinger:      res.Pinger,
		NotifyToken: cfg.NotifyToken,
		Logger:      logger,
	}
	if cfg.TelegramWebhookURL != "" {
		deps.Webhook = telegram.WebhookHandler(updates.Push)
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		updates.Close()
	})

	janitor := cache.NewJanitor()
	if rates != nil {
		janitor.Register("rates", rates)
	}
	janitor.Register("poll_runs", cache.CleanerFunc(func() int { return reports.EvictStale(time.Now()) }))
	janitor.Register("dialogs", cache.CleanerFunc(func() int { return dispatcher.EvictSessions(time.Now()) }))
	go janitor.Run(runCtx, time.Minute)

	if err := startReminder(runCtx, cfg, res, dispatcher); err != nil {
		logger.Error("Failed to start reminder", "error", err)
		os.Exit(1)
	}

	if cfg.TelegramWebhookURL != "" {
		if err := tg.SetWebhook(cfg.TelegramWebhookURL); err != nil {
			logger.Error("Failed to register webhook", "error", err)
			os.Exit(1)
		}
		logger.Info("Receiving updates through webhook", "url", cfg.TelegramWebhookURL)
	} else {
		if err := tg.SetWebhook(""); err != nil {
			logger.Warn("Failed to clear webhook", "error", err)
		}
		logger.Info("Receiving updates through long polling")
		go tg.Poll(runCtx, updates.Push)
	}

	go func() {
		logger.Info("Starting vaultbot", "port", cfg.Port, "backend", cfg.DataBackend, "equivalence", equivalence)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}

// newConverter prefers FIXED_RATES; otherwise it queries the rates API and
// returns its cache for the janitor.
func newConverter(cfg *config.Config) (aggregate.Converter, cache.Cleaner, error) {
	if cfg.FixedRates != "" {
		static, err := currency.ParseStatic(cfg.FixedRates)
		if err != nil {
			return nil, nil, err
		}
		return static, nil, nil
	}
	client := currency.NewClient(cfg.RatesAPIURL, cfg.RatesCacheTTL)
	return client, client.Cache(), nil
}

func startReminder(ctx context.Context, cfg *config.Config, res *backend.BackendResult, notifier services.Notifier) error {
	freq, err := services.ParseFrequency(cfg.ReminderFrequency)
	if err != nil {
		return err
	}
	if freq == services.FrequencyOff {
		return nil
	}
	reminder, err := services.NewReminder(res.Store, notifier, freq, cfg.ReminderDay)
	if err != nil {
		return err
	}
	go reminder.Run(ctx, cfg.ReminderCheckInterval)
	return nil
}
