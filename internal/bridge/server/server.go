// Package server assembles the HTTP surface of the bridge: the chat
// endpoint, the session channels, and the component export endpoints,
// with logging and panic recovery middleware.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/chat"
	"github.com/chartbridge/chartbridge/internal/bridge/config"
	"github.com/chartbridge/chartbridge/internal/bridge/export"
	"github.com/chartbridge/chartbridge/internal/bridge/generator"
	"github.com/chartbridge/chartbridge/internal/bridge/session"
	"github.com/chartbridge/chartbridge/internal/common/httpx"
	"github.com/chartbridge/chartbridge/internal/common/logtrace"
	"github.com/chartbridge/chartbridge/internal/common/middleware"
)

// BridgeServer is the main HTTP server for the bridge service.
type BridgeServer struct {
	Router *chi.Mux

	registry    *session.Registry
	coordinator *chat.Coordinator
	exporter    *export.Exporter
}

// CreateNewServer creates a BridgeServer wired to the loaded
// configuration. The chart generator is injected so callers control
// how completions are produced.
func CreateNewServer(gen generator.ChartGenerator) (*BridgeServer, error) {
	cfg := config.Config()

	idleEviction, err := cfg.Sessions.GetIdleEviction()
	if err != nil {
		return nil, err
	}
	evictionInterval, err := cfg.Sessions.GetEvictionInterval()
	if err != nil {
		return nil, err
	}
	reg := session.NewRegistry(session.Options{
		IdleEviction:     idleEviction,
		EvictionInterval: evictionInterval,
		SendBuffer:       cfg.Sessions.SendBuffer,
	})

	s := &BridgeServer{
		Router:      chi.NewRouter(),
		registry:    reg,
		coordinator: chat.NewCoordinator(gen, reg, cfg.Sessions.GetSampleTimeoutOrDefault()),
	}

	if cfg.Export.Enabled {
		s.exporter, err = export.NewExporter(&cfg.Export)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MountHandlers sets up all HTTP routes and middleware for the server.
func (s *BridgeServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in bridge router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// Shutdown releases server resources, closing every live channel.
func (s *BridgeServer) Shutdown() {
	s.registry.Shutdown()
}

func (s *BridgeServer) mountResourceHandlers(r chi.Router) {
	cfg := config.Config()

	// The channel route is exempt from request timeouts; a WebSocket
	// outlives any sane deadline.
	r.Route("/sessions", func(r chi.Router) {
		session.Router(r, s.registry)
	})
	r.Route("/chat", func(r chi.Router) {
		r.Use(middleware.SetTimeout(chatDeadline(cfg)))
		chat.Router(r, s.coordinator)
	})
	if s.exporter != nil {
		r.Route("/export", func(r chi.Router) {
			r.Use(middleware.SetTimeout(exportDeadline(cfg)))
			export.Router(r, s.exporter)
		})
		r.Route("/download", func(r chi.Router) {
			export.DownloadRouter(r, s.exporter)
		})
	}
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

// chatDeadline bounds one chat turn: the sample wait, the generator
// call with retries, and slack for everything else.
func chatDeadline(cfg *config.ConfigParam) time.Duration {
	deadline := cfg.Sessions.GetSampleTimeoutOrDefault()
	if callTimeout, err := cfg.Generator.GetCallTimeout(); err == nil {
		attempts := time.Duration(cfg.Generator.MaxAttempts)
		if attempts < 1 {
			attempts = 1
		}
		deadline += attempts * callTimeout
	}
	return deadline + 10*time.Second
}

// exportDeadline bounds one export: the scaffold and build steps plus
// slack for codegen and publishing.
func exportDeadline(cfg *config.ConfigParam) time.Duration {
	deadline := 10 * time.Second
	if stepTimeout, err := cfg.Export.GetStepTimeout(); err == nil {
		deadline += 2 * stepTimeout
	}
	return deadline
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *BridgeServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Chartbridge Server: " + Version,
		ApiVersion:    ApiVersion,
	}
	httpx.SendJSONRsp(r.Context(), w, http.StatusOK, rsp)
}

// GetReadinessRsp reports service readiness and live session counts.
type GetReadinessRsp struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *BridgeServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJSONRsp(r.Context(), w, http.StatusOK, &GetReadinessRsp{
		Status:   "ready",
		Sessions: s.registry.SessionCount(),
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *BridgeServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, //TODO: Change this to specific origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Link", "Location", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
