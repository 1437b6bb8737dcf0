package route

import (
	"net/http"

	"malariascope/internal/config"
	"malariascope/internal/handler"
	"malariascope/internal/logger"
	"malariascope/internal/middleware"
	"malariascope/internal/repository"
	"malariascope/internal/service/pipeline"
	"malariascope/internal/service/storage"
	"malariascope/internal/service/websocket"
	"malariascope/internal/session"
)

// Services bundles what the handlers need.
type Services struct {
	Config        *config.Config
	Logger        *logger.Logger
	Sessions      *session.Store
	Pipeline      *pipeline.Pipeline
	Artifacts     *storage.ArtifactStore
	Hub           *websocket.HubService
	RunRepo       repository.RunRepository
	DetectionRepo repository.DetectionRepository
}

// SetupRoutes registers pages, API endpoints and log views, and wraps the mux
// with the session and authentication middleware.
func SetupRoutes(s *Services) http.Handler {
	cfg, logger := s.Config, s.Logger
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("/", handler.IndexHandler(cfg, logger))
	mux.HandleFunc("/login", handler.LoginPageHandler(cfg, logger))
	mux.HandleFunc("/theme", handler.ThemeHandler(s.Sessions, logger))
	mux.HandleFunc("/detect", handler.DetectHandler(cfg, s.Pipeline, logger))
	mux.HandleFunc("/healthcheck", handler.HealthcheckHandler)

	// API endpoints
	mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(s.Hub, logger))
	mux.HandleFunc("/api/runs", handler.GetRunsHandler(s.Artifacts, logger, s.RunRepo, s.DetectionRepo))
	mux.HandleFunc("/api/runs/view", handler.ViewRunHandler(s.RunRepo, logger))
	mux.HandleFunc("/api/runs/delete", handler.DeleteRunHandler(s.Artifacts, s.RunRepo, logger))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, s.Sessions, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler(s.Sessions, logger))

	// Apply middleware
	return middleware.SessionMiddleware(s.Sessions)(middleware.AuthMiddleware(mux))
}
