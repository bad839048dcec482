package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"SmartphoneRanker/internal/cache"
	"SmartphoneRanker/internal/config"
	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/infrastructure/ml"
	"SmartphoneRanker/internal/infrastructure/parser"
	"SmartphoneRanker/internal/infrastructure/scheduler"
	"SmartphoneRanker/internal/infrastructure/storage"
	"SmartphoneRanker/internal/infrastructure/telegram"
	"SmartphoneRanker/internal/logging"
	"SmartphoneRanker/internal/ports"
	"SmartphoneRanker/internal/sentiment"
	"SmartphoneRanker/internal/transport/httpapi"
	"SmartphoneRanker/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	service   *usecase.RankingService
	scheduler *usecase.Scheduler
	history   *storage.Repository
}

// New builds a runnable application instance from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	chain, err := parser.DefaultRegistry(cfg.Source.BaseURL).Chain(cfg.Source.Strategies)
	if err != nil {
		return nil, fmt.Errorf("listing strategies: %w", err)
	}

	fetcher := parser.NewFetcher(&http.Client{Timeout: cfg.Source.Timeout}, cfg.Source.UserAgent)
	listings := parser.NewListingSource(fetcher, chain, cfg.Source.BestsellerURL, baseLogger.With("component", "listing"))
	reviews := parser.NewReviewSource(fetcher, cfg.Source.ReviewsURLTemplate, baseLogger.With("component", "reviews"))

	classifier := ml.NewClient(cfg.Classifier.Endpoint, cfg.Classifier.APIKey, cfg.Classifier.Timeout)
	var scorerBackend ports.Classifier
	if classifier.Configured() {
		scorerBackend = classifier
	} else {
		baseLogger.Warn("classifier endpoint not configured, sentiment will be neutral")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Listings:      listings,
		Reviews:       reviews,
		Scorer:        sentiment.NewScorer(scorerBackend, baseLogger),
		Logger:        baseLogger,
		ListingLimit:  cfg.Source.ListingLimit,
		MaxReviews:    cfg.Source.MaxReviews,
		CourtesyDelay: cfg.Source.CourtesyDelay,
	})

	a := &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline}

	var history ports.RankingRepository
	if cfg.History.Enabled() {
		repo, err := storage.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		a.history = repo
		history = repo
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, cfg.Notifications.Telegram.APIBase)
	if tg.Enabled() {
		notifier = tg
	}

	a.service = usecase.NewRankingService(usecase.ServiceDeps{
		Pipeline:             pipeline,
		Cache:                cache.New(cfg.Cache.Dir, baseLogger, cache.WithTTLs(cfg.Cache.MemoryTTL, cfg.Cache.DiskTTL)),
		History:              history,
		Notifier:             notifier,
		Logger:               baseLogger,
		ClassifierConfigured: classifier.Configured(),
	})

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.RunOnStart)
		a.scheduler = usecase.NewScheduler(driver, a.service, baseLogger)
	}

	return a, nil
}

// Serve runs the HTTP API and the refresh scheduler until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      httpapi.NewServer(a.service, a.cfg.HTTP.AllowedOrigins, a.logger).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler shutdown", "error", err)
		}
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// RankOnce runs the pipeline directly, bypassing every cache tier.
func (a *Application) RankOnce(ctx context.Context) ([]domain.RankedProduct, error) {
	return a.pipeline.Run(ctx)
}

// History returns the most recent recorded runs.
func (a *Application) History(ctx context.Context, limit int) ([]domain.RankingRun, error) {
	return a.service.History(ctx, limit)
}

// Close releases the history store.
func (a *Application) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
