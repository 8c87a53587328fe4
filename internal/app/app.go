package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficanalyzer/internal/analysis"
	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/repository/sqlite"
	"trafficanalyzer/internal/route"
	"trafficanalyzer/internal/service/history"
	"trafficanalyzer/internal/service/websocket"
	"trafficanalyzer/internal/session"
	"trafficanalyzer/internal/tracing"
	"trafficanalyzer/internal/web"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	history  *history.Service
	hub      *websocket.HubService
	client   *analysis.Client
	sessions *session.Store
	pages    *web.Pages
}

func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	client, err := analysis.NewClient(cfg, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	pages, err := web.ParsePages()
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	hist := history.NewService(sqlite.NewReportRepository(db), log)
	hub := websocket.NewHubService(log)

	sessions := session.NewStore(func(id string) *lifecycle.Controller {
		return lifecycle.NewController(lifecycle.Options{
			Analyzer: client,
			Notifier: hub.Notifier(id),
			Recorder: hist,
			Logger:   log,
			Timeout:  cfg.AnalysisTimeout,
		})
	}, cfg.SessionTTL, log)

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		history:  hist,
		hub:      hub,
		client:   client,
		sessions: sessions,
		pages:    pages,
	}, nil
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(route.Dependencies{
		Config:   a.config,
		Logger:   a.logger,
		Pages:    a.pages,
		Sessions: a.sessions,
		Hub:      a.hub,
		Reports:  a.history,
		Videos:   a.client,
		Endpoint: a.client.Endpoint(),
	})
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	if a.config.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, a.config.OTLPEndpoint)
		if err != nil {
			a.logger.Warning("Tracing disabled: %v", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// Start background services
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)
	go a.sessions.Run(ctx, a.config.SweepInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚦 Traffic Analyzer\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🎯 Analysis service: %s\n", a.client.Endpoint())
	fmt.Printf("🗄️  Reports: %s\n", a.config.DatabasePath)
	if a.config.AuthEnabled() {
		fmt.Printf("🔑 Login required\n")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		a.sessions.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		a.logger.Warning("Exiting with analyses still in flight")
	}
	return nil
}

func (a *App) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	a.logger.Close()
}
