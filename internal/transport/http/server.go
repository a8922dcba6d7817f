package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/config"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/core"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/store"
)

// Deps are the relay components exposed over the admin API.
type Deps struct {
	Registry  *core.Registry
	Queue     *core.Queue
	Stats     *core.Stats
	Observers *core.Observers
	Sessions  store.SessionStore // nil disables /api/sessions
}

// NewServer builds the admin HTTP server.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if gin.Mode() != gin.TestMode {
		if strings.EqualFold(cfg.LogLevel, "debug") || strings.EqualFold(cfg.LogLevel, "trace") {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	admin := NewAdminHandlers(deps, logger)
	router.GET("/health", healthHandler)

	api := router.Group("/api")
	{
		api.GET("/clients", admin.ListClients)
		api.GET("/stats", admin.GetStats)
		api.GET("/sessions", admin.ListSessions)
	}

	// The websocket stays off the gin router: gin's writer refuses the hijack.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws/observe", NewObserveHandler(deps.Registry, deps.Observers, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
