package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-scanner-bot/config"
	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/api"
	"market-scanner-bot/internal/cache"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/confidence"
	"market-scanner-bot/internal/database"
	"market-scanner-bot/internal/events"
	"market-scanner-bot/internal/marketdata"
	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/notification"
	"market-scanner-bot/internal/pipeline"
	"market-scanner-bot/internal/ratelimit"
	"market-scanner-bot/internal/risk"
	"market-scanner-bot/internal/scanner"
	"market-scanner-bot/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.LoggingConfig)
	store := config.NewStore(cfg)

	logger.Info().Msg("Starting market scanner")

	bus := events.NewBus(logger)

	// Persistence is optional; risk controls degrade to log-only.
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Migrations failed")
		}
		cancel()
		repo = database.NewRepository(db)
	} else {
		logger.Warn().Msg("Database disabled, risk-control state will not be persisted")
	}

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
	}
	cooldownStore := cache.NewCooldownStore(redisClient, logger)

	// Risk controls
	breaker := circuit.NewBreaker(cfg.CircuitBreakerConfig.SLLimit, activationStore(repo), bus, logger)
	manager := adaptive.NewManager(adaptive.Config{
		ReduceAfter:     cfg.AdaptiveConfig.ReduceAfter,
		PauseAfter:      cfg.AdaptiveConfig.PauseAfter,
		ReducedMinStars: cfg.AdaptiveConfig.ReducedMinStars,
	}, adaptationLog(repo), logger)

	bus.Subscribe(events.EventStopLossHit, func(e events.Event) {
		hit, ok := e.(events.StopLossHitEvent)
		if !ok {
			return
		}
		breaker.OnSLHit(context.Background(), hit.Symbol, hit.Strategy, hit.PnL)
	})
	bus.Subscribe(events.EventTradeExited, func(e events.Event) {
		exit, ok := e.(events.TradeExitedEvent)
		if !ok {
			return
		}
		manager.OnTradeExit(context.Background(), exit.Strategy, exit.PnL)
		if repo != nil {
			day := exit.ExitedAt.Truncate(24 * time.Hour)
			if err := repo.RecordTradeResult(context.Background(), day, exit.Strategy, exit.PnL); err != nil {
				logger.Error().Err(err).Msg("Failed to record trade result")
			}
		}
	})

	// Outbound notifications
	notifier := notification.NewManager()
	if cfg.NotificationConfig.Enabled {
		notifier.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  cfg.NotificationConfig.Telegram.Enabled,
		}))
		notifier.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    cfg.NotificationConfig.Discord.Enabled,
		}))
		notification.NewSubscriber(notifier, logger).Register(bus)
	}

	// Market data behind the vendor rate limit
	limiter := ratelimit.New(cfg.MarketDataConfig.RequestsPerSec, cfg.MarketDataConfig.RequestsPerMin)
	dataClient := marketdata.NewClient(cfg.MarketDataConfig.BaseURL, limiter, logger)

	// Strategies share one cooldown tracker so VWAP state survives
	// restarts via the cooldown store.
	cooldown := strategy.NewCooldownTracker()
	strategies := []strategy.Strategy{
		strategy.NewORBStrategy(strategy.DefaultORBConfig()),
		strategy.NewVWAPReversionStrategy(strategy.DefaultVWAPConfig(), cooldown),
		strategy.NewMomentumStrategy(strategy.DefaultMomentumConfig()),
	}

	detector := confidence.NewDetector(
		time.Duration(cfg.ConfidenceConfig.WindowMinutes)*time.Minute,
		signalHistory(repo), logger)

	p := pipeline.New(logger)
	p.AddStage(pipeline.NewGateStage(breaker, logger))
	p.AddStage(pipeline.NewRegimeStage(nil, logger))
	p.AddStage(pipeline.NewStrategyStage(strategies, dataClient, manager,
		func() []string { return store.Snapshot().ScannerConfig.Watchlist }, logger))
	p.AddStage(pipeline.NewConfidenceStage(detector))
	p.AddStage(pipeline.NewScoringStage(pipeline.NewCompositeScorer()))
	p.AddStage(pipeline.NewDedupStage(duplicateChecker(repo), logger))
	p.AddStage(pipeline.NewRankingStage())
	p.AddStage(pipeline.NewExitMonitorStage(nil, dataClient, bus, logger))
	p.AddStage(pipeline.NewDiagnosticsStage(logger))

	server := api.NewServer(store, bus, breaker, manager, nil, signalReader(repo), logger)

	publisher := &signalPublisher{
		repo:     repo,
		store:    store,
		notifier: notifier,
		hub:      server.Hub(),
		logger:   logger.With().Str("component", "SignalPublisher").Logger(),
	}
	sched := scanner.NewScheduler(store, p, breaker, manager,
		publisher, resumeLogger(repo), cooldown, cooldownStore, logger)
	server.SetScheduler(sched)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ScannerConfig.Enabled {
		go sched.Run(ctx)
	} else {
		logger.Warn().Msg("Scanner disabled by config, API only")
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API shutdown failed")
	}
}

// newLogger builds the root zerolog logger from config
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.JSONFormat {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
}

// signalPublisher persists, notifies and broadcasts ranked signals
type signalPublisher struct {
	repo     *database.Repository
	store    *config.Store
	notifier *notification.Manager
	hub      *api.WSHub
	logger   zerolog.Logger
}

func (p *signalPublisher) PublishSignals(ctx context.Context, cycleID string, ranked []models.RankedSignal, confirmations map[string]models.ConfirmationResult) error {
	cfg := p.store.Snapshot()

	for _, sig := range ranked {
		conf := confirmations[sig.Symbol]

		size, err := risk.CalculatePositionSize(
			sig.EntryPrice,
			cfg.TradingConfig.TotalCapital,
			cfg.TradingConfig.MaxPositions,
			conf.SizeMultiplier,
		)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", sig.Symbol).Msg("Position sizing failed")
		}

		if p.repo != nil {
			if err := p.repo.InsertSignal(ctx, cycleID, sig, conf); err != nil {
				p.logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("Failed to persist signal")
			}
		}

		if p.hub != nil {
			p.hub.BroadcastJSON("signal", map[string]interface{}{
				"signal":       sig,
				"confirmation": conf,
				"sizing":       size,
			})
		}

		// Only the top-ranked signal goes out as a push notification
		if sig.Rank == 1 && p.notifier != nil {
			if err := p.notifier.SendSignal(sig.Symbol, string(sig.Direction), sig.Strategy,
				sig.Reason, sig.EntryPrice, sig.StopLoss, sig.Target, sig.StarRating); err != nil {
				p.logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("Failed to notify signal")
			}
		}
	}
	return nil
}

// The repository satisfies several collaborator interfaces; a nil
// repository must become a nil interface, not a typed nil.

func activationStore(repo *database.Repository) circuit.ActivationStore {
	if repo == nil {
		return nil
	}
	return repo
}

func adaptationLog(repo *database.Repository) adaptive.AdaptationLog {
	if repo == nil {
		return nil
	}
	return repo
}

func signalHistory(repo *database.Repository) confidence.SignalHistory {
	if repo == nil {
		return nil
	}
	return repo
}

func duplicateChecker(repo *database.Repository) pipeline.DuplicateChecker {
	if repo == nil {
		return nil
	}
	return repo
}

func resumeLogger(repo *database.Repository) scanner.ResumeLogger {
	if repo == nil {
		return nil
	}
	return repo
}

func signalReader(repo *database.Repository) api.SignalReader {
	if repo == nil {
		return nil
	}
	return repo
}
