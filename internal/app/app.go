package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
	"github.com/ternarybob/tubefetch/internal/handlers"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/browser"
	"github.com/ternarybob/tubefetch/internal/services/cookies"
	"github.com/ternarybob/tubefetch/internal/services/downloads"
	"github.com/ternarybob/tubefetch/internal/services/events"
	"github.com/ternarybob/tubefetch/internal/services/extraction"
	"github.com/ternarybob/tubefetch/internal/services/progress"
	"github.com/ternarybob/tubefetch/internal/services/reaper"
	"github.com/ternarybob/tubefetch/internal/services/ytdlp"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Event-driven services
	EventService interfaces.EventService

	// Core services
	CookieStore *cookies.Store
	Tracker     *progress.Tracker
	Engine      *ytdlp.Engine
	Warmer      *browser.Warmer // nil when the browser strategy is disabled
	Downloads   *downloads.Service
	Reaper      *reaper.Reaper

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DownloadHandler *handlers.DownloadHandler
	CookieHandler   *handlers.CookieHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToLifecycleEvents(app.EventService, app.Logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe lifecycle logger: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.Reaper.Start(); err != nil {
		return nil, fmt.Errorf("failed to start reaper: %w", err)
	}

	if !app.Engine.Available() {
		logger.Warn().
			Str("binary", cfg.Extractor.Binary).
			Msg("yt-dlp not found - downloads will fail until it is installed")
	}

	logger.Info().
		Str("output_dir", cfg.Downloads.OutputDir).
		Str("cookie_dir", app.CookieStore.Dir()).
		Bool("browser_enabled", app.Warmer != nil).
		Bool("proxy", cfg.Extractor.Proxy != "").
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initServices() error {
	cfg := a.Config

	store, err := cookies.NewStore(cfg.Cookies.Dir, int64(cfg.Cookies.MaxSizeKB)*1024, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create cookie store: %w", err)
	}
	a.CookieStore = store

	if cfg.Cookies.Inline != "" {
		id, err := store.Seed(cfg.Cookies.Inline)
		if err != nil {
			// A bad inline value should not keep the service down; uploads still work
			a.Logger.Warn().Err(err).Msg("Failed to seed inline cookies")
		} else {
			a.Logger.Info().Str("cookie_id", id).Msg("Inline cookies seeded")
		}
	}

	// Every stored snapshot is pushed in order to progress subscribers (the WebSocket handler)
	a.Tracker = progress.NewTracker(a.Logger)
	a.Tracker.SetListener(func(snapshot models.ProgressSnapshot) {
		a.forwardProgress(snapshot)
	})

	a.Engine = ytdlp.NewEngine(cfg.Extractor.Binary, a.Logger)

	// A nil interface, not a typed nil, disables the browser strategy
	var warmer interfaces.BrowserWarmer
	if cfg.Browser.Enabled {
		a.Warmer = browser.NewWarmer(browser.WarmerConfig{
			Headless:    cfg.Browser.Headless,
			UserAgent:   cfg.Browser.UserAgent,
			Proxy:       cfg.Extractor.Proxy,
			WaitTime:    common.MustDuration(cfg.Browser.WaitTime, 3*time.Second),
			FallbackURL: cfg.Browser.WarmURL,
		}, a.Logger)
		warmer = a.Warmer
	}

	a.Downloads, err = downloads.NewService(downloads.Config{
		OutputDir:      cfg.Downloads.OutputDir,
		AttemptTimeout: common.MustDuration(cfg.Downloads.AttemptTimeout, 2*time.Hour),
		WarmUpTimeout:  common.MustDuration(cfg.Browser.Timeout, 45*time.Second),
		EventBuffer:    cfg.Downloads.EventBuffer,
		Proxy:          cfg.Extractor.Proxy,
		Profile:        extraction.DefaultProfile(cfg.Extractor.PlayerClients, cfg.Extractor.UserAgent),
		Tuning: models.TransferTuning{
			FragmentConcurrency: cfg.Extractor.FragmentConcurrency,
			Retries:             cfg.Extractor.Retries,
			FragmentRetries:     cfg.Extractor.FragmentRetries,
			ChunkSize:           cfg.Extractor.ChunkSize,
			BufferSize:          cfg.Extractor.BufferSize,
			SocketTimeout:       cfg.Extractor.SocketTimeout,
		},
		BrowserEnabled: cfg.Browser.Enabled,
	}, a.Engine, store, a.Tracker, warmer, a.EventService, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create download service: %w", err)
	}

	a.Reaper = reaper.NewReaper(reaper.Config{
		OutputDir:       cfg.Downloads.OutputDir,
		OutputSchedule:  cfg.Reaper.OutputSchedule,
		OutputRetention: common.MustDuration(cfg.Reaper.OutputRetention, time.Hour),
		CookieSchedule:  cfg.Reaper.CookieSchedule,
		CookieTTL:       common.MustDuration(cfg.Cookies.TTL, 30*time.Minute),
		RunOnStart:      cfg.Reaper.RunOnStart,
	}, store, a.EventService, a.Logger)

	return nil
}

// forwardProgress publishes a stored snapshot to progress subscribers, in order.
// Subscriber failures are logged and returned; they never affect the download.
func (a *App) forwardProgress(snapshot models.ProgressSnapshot) error {
	err := a.EventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadProgress,
		Payload: snapshot,
	})
	if err != nil {
		a.Logger.Debug().
			Err(err).
			Str("download_id", snapshot.DownloadID).
			Str("status", string(snapshot.Status)).
			Msg("Progress subscriber failed")
	}
	return err
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger, a.Engine, a.Reaper)
	a.DownloadHandler = handlers.NewDownloadHandler(a.Downloads, a.Tracker, a.Logger)
	a.CookieHandler = handlers.NewCookieHandler(a.CookieStore, a.EventService, int64(a.Config.Cookies.MaxSizeKB)*1024, a.Logger)

	if a.Config.WebSocket.Enabled {
		a.WSHandler = handlers.NewWebSocketHandler(
			a.EventService,
			a.Logger,
			common.MustDuration(a.Config.WebSocket.ProgressThrottle, 500*time.Millisecond),
		)
	}
}

// Close stops background work. In-flight downloads are cancelled and record an error.
func (a *App) Close() error {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}

	if a.Downloads != nil {
		if err := a.Downloads.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close download service")
		} else {
			a.Logger.Info().Msg("Download service stopped")
		}
	}

	if a.WSHandler != nil {
		if err := a.WSHandler.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close WebSocket handler")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	return nil
}
