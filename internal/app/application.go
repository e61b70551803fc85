package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"streamcast/internal/api"
	"streamcast/internal/config"
	"streamcast/internal/ratelimit"
	"streamcast/internal/registry"
	"streamcast/internal/websocket"
)

// Application wires every component and owns their lifecycle.
type Application struct {
	config     *config.Config
	log        zerolog.Logger
	limiter    *ratelimit.Limiter
	registry   *registry.Registry
	apiServer  *api.Server
	cron       *cron.Cron
	httpServer *http.Server
}

// NewApplication builds the full component graph. Initialization order:
// logger, shared limiter, registry, transports, HTTP server, cron jobs.
// A nil cfg loads configuration from the environment.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	// One limiter instance backs every namespace, so a single janitor
	// sweep covers the whole window table.
	limiter := ratelimit.New()

	reg := registry.New(limiter, logger, registry.Options{
		MaxViewers:    cfg.MaxViewers,
		StreamTimeout: cfg.StreamTimeout,
		Location:      loc,
		SendRule:      cfg.SendRule(),
		CreateRule:    cfg.CreateRule(),
		ChatRule:      cfg.ChatRule(),
	})

	apiServer := api.NewServer(reg, api.BearerAuthorizer(cfg.AdminToken), cfg.Debug, logger)
	wsHandler := websocket.NewHandler(reg, limiter, cfg.ConnectRule(), cfg.QueueSize, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	app := &Application{
		config:     cfg,
		log:        logger.With().Str("component", "app").Logger(),
		limiter:    limiter,
		registry:   reg,
		apiServer:  apiServer,
		httpServer: httpServer,
	}

	if err := app.scheduleJobs(logger); err != nil {
		return nil, fmt.Errorf("schedule jobs: %w", err)
	}

	return app, nil
}

// newLogger builds the root logger: human-readable console output in
// debug mode, JSON otherwise.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	var out io.Writer = os.Stdout
	if cfg.Debug {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// scheduleJobs registers the periodic maintenance work: the inactivity
// sweep, the limiter janitor and the daily stats reset check. Jobs that
// overrun their interval are skipped, not stacked.
func (app *Application) scheduleJobs(logger zerolog.Logger) error {
	cl := cronLogger{log: logger.With().Str("component", "cron").Logger()}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))

	if _, err := c.AddFunc("@every 1m", func() {
		app.registry.TimeoutSweep()
	}); err != nil {
		return err
	}

	if _, err := c.AddFunc("@every 5m", func() {
		if removed := app.limiter.Prune(); removed > 0 {
			app.log.Debug().Int("removed", removed).Msg("pruned expired rate windows")
		}
	}); err != nil {
		return err
	}

	if _, err := c.AddFunc("@every 1m", func() {
		app.registry.MaybeDailyReset()
	}); err != nil {
		return err
	}

	app.cron = c
	return nil
}

// Start launches the cron jobs and the HTTP server, returning once the
// server is accepting connections.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info().Str("addr", app.httpServer.Addr).Msg("starting streamcast")

	app.cron.Start()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.cron.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.log.Info().Msg("streamcast started")
		return nil
	case <-ctx.Done():
		app.cron.Stop()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse order: drain HTTP, stop
// the cron jobs, then kick every subscriber.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info().Msg("shutting down streamcast")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cronCtx := app.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		app.log.Warn().Msg("timed out waiting for running jobs")
	}

	app.registry.CloseAll()

	app.log.Info().Msg("streamcast shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
