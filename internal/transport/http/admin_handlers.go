package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 1000
)

// AdminHandlers serves the read-only relay inspection endpoints.
type AdminHandlers struct {
	deps Deps
	log  *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(deps Deps, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{deps: deps, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListClients returns the registry snapshot ordered by identity.
// GET /api/clients
func (h *AdminHandlers) ListClients(c *gin.Context) {
	snap := h.deps.Registry.Snapshot()

	response := make([]ClientResponse, 0, len(snap))
	for _, rec := range snap {
		response = append(response, clientResponse(rec))
	}
	c.JSON(http.StatusOK, response)
}

// GetStats returns registry, queue and relay counters.
// GET /api/stats
func (h *AdminHandlers) GetStats(c *gin.Context) {
	snap := h.deps.Registry.Snapshot()
	active := 0
	for _, rec := range snap {
		if rec.Active() {
			active++
		}
	}

	resp := StatsResponse{
		Clients:       len(snap),
		ActiveClients: active,
	}
	if h.deps.Queue != nil {
		resp.QueueLength = h.deps.Queue.Len()
	}
	if h.deps.Observers != nil {
		resp.Observers = h.deps.Observers.Len()
	}
	if h.deps.Stats != nil {
		resp.StatsSnapshot = h.deps.Stats.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// ListSessions returns the most recent client sessions.
// GET /api/sessions?limit=N
func (h *AdminHandlers) ListSessions(c *gin.Context) {
	if h.deps.Sessions == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session log disabled"})
		return
	}

	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := h.deps.Sessions.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, sessionResponse(s))
	}
	c.JSON(http.StatusOK, response)
}
