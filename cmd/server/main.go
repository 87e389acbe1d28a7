package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/api"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/auth"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/config"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/desktop"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/directory"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/event"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/frame"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/storage"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/ticker"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/widget"
	"github.com/dennisdiepolder/monti/wrapupbridge/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// handlers groups everything the router serves
type handlers struct {
	frame   http.Handler
	widget  *api.WidgetHandler
	wrapups *api.WrapupHandler
	events  *event.Receiver
	metrics http.HandlerFunc
}

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("desktop_url", cfg.DesktopURL).
		Str("agent_id", cfg.AgentID).
		Msg("starting wrap-up bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wrap-up audit trail
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Desktop platform connection
	dir := directory.NewCache()
	desktopClient := desktop.NewClient(desktop.Options{
		URL:            cfg.DesktopURL,
		AgentID:        cfg.AgentID,
		RequestTimeout: cfg.RequestTimeout,
	}, dir, log.Logger)

	// Widget and frame bridge
	w := widget.New(desktopClient, widget.Options{
		AgentID:          cfg.AgentID,
		IdleCodesTimeout: cfg.IdleCodesTimeout,
	}, log.Logger)
	w.SetStore(store)

	hub := frame.NewHub(log.Logger)
	frameHandler := frame.NewHandler(hub, w, cfg, log.Logger)
	w.OnDetach(hub.CloseAll)

	r := newRouter(cfg, handlers{
		frame:   frameHandler,
		widget:  api.NewWidgetHandler(w, cfg.FrameURL, cfg.WidgetAttributes, log.Logger),
		wrapups: api.NewWrapupHandler(store, log.Logger),
		events:  event.NewReceiver(desktopClient, log.Logger),
		metrics: metrics.Get().Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		ticker.NewTicker(hub, frameHandler, cfg.StatusInterval, log.Logger).Start(gctx)
		return nil
	})

	g.Go(func() error {
		if err := desktopClient.Run(gctx); err != nil && !errors.Is(err, desktop.ErrClosed) {
			return fmt.Errorf("desktop client: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// A failed initialization leaves the widget rejecting commands; the
		// server keeps running so the failure stays visible in /api/widget/status
		if err := w.Initialize(gctx); err != nil {
			return nil
		}
		frameHandler.BroadcastStatus()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		w.Detach()
		desktopClient.Close()

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}

	log.Info().Msg("server stopped")
}

// newRouter wires the HTTP surface
func newRouter(cfg *config.Config, h handlers) http.Handler {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", h.metrics)

	// Internal routes (no auth - for the desktop platform webhook)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/interaction-event", h.events.HandleEvent)
		r.Get("/event/stats", h.events.GetStats)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/ws/frame", h.frame.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/widget/status", h.widget.GetStatus)
			r.Post("/widget/commands", h.widget.PostCommand)
			r.Get("/widget/frame-url", h.widget.GetFrameURL)

			r.Get("/wrapups/{date}", h.wrapups.GetByDate)
			r.With(auth.RequireRole("admin")).Delete("/wrapups", h.wrapups.Truncate)
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"wrapupbridge"}`)
}
