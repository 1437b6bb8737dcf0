package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"malariascope/internal/config"
	"malariascope/internal/logger"
	"malariascope/internal/repository/sqlite"
	"malariascope/internal/route"
	"malariascope/internal/service/ai"
	"malariascope/internal/service/pipeline"
	"malariascope/internal/service/storage"
	"malariascope/internal/service/websocket"
	"malariascope/internal/session"
)

// ShutdownTimeout bounds how long in-flight requests may finish on exit.
const ShutdownTimeout = 5 * time.Second

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	models    *ai.Provider
	sessions  *session.Store
	hub       *websocket.HubService
	artifacts *storage.ArtifactStore
	handler   http.Handler
}

// New wires every service. The model is loaded here so a missing or broken
// artifact stops the server before it accepts requests.
func New(cfg *config.Config, loader ai.Loader) (*App, error) {
	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	models := ai.NewProvider(cfg.ModelPath, loader, log)
	if _, err := models.Get(); err != nil {
		log.Close()
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		models.Close()
		log.Close()
		return nil, err
	}
	runRepo := sqlite.NewRunRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	artifacts := storage.NewArtifactStore(cfg.ResultsDirectory, log)
	hub := websocket.NewHubService(log)
	sessions := session.NewStore()

	a := &App{
		config:    cfg,
		logger:    log,
		db:        db,
		models:    models,
		sessions:  sessions,
		hub:       hub,
		artifacts: artifacts,
	}
	runs := pipeline.New(models, artifacts, runRepo, detectionRepo, hub, log)
	runs.SetMaxPixels(cfg.MaxUploadPixels)

	a.handler = route.SetupRoutes(&route.Services{
		Config:        cfg,
		Logger:        log,
		Sessions:      sessions,
		Pipeline:      runs,
		Artifacts:     artifacts,
		Hub:           hub,
		RunRepo:       runRepo,
		DetectionRepo: detectionRepo,
	})

	return a, nil
}

// Handler returns the routed and authenticated HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run()
	defer a.hub.Stop()

	go a.expireSessions(ctx)

	addr := fmt.Sprintf(":%d", a.config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Malaria detection server listening on http://localhost%s", addr)
		a.logger.Info("Model: %s (%s), results: %s", a.config.ModelPath, a.config.ModelBackend, a.config.ResultsDirectory)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown failed: %v", err)
			return err
		}
		a.logger.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

func (a *App) expireSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.Expire(a.config.SessionTTL); n > 0 {
				a.logger.Info("Expired %d idle sessions", n)
			}
		}
	}
}

// Close releases the model, the database and the log files.
func (a *App) Close() error {
	var firstErr error
	if err := a.models.Close(); err != nil {
		firstErr = err
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
