package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/providers"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams session-change events to signed-in clients
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	clients map[string]int // user ID -> open streams
}

// NewSSEHandler creates a new SSE handler. A non-positive heartbeat uses
// the default of 30s.
func NewSSEHandler(eventBus providers.EventBus, heartbeat time.Duration, logger zerolog.Logger) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: heartbeat,
		logger:    logger.With().Str("handler", "sse").Logger(),
		clients:   make(map[string]int),
	}
}

// StreamSession handles GET /api/dashboard/stream. It forwards the
// identity's session events and closes once the stream's own session ends.
func (h *SSEHandler) StreamSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	identity := ws.Session.Identity()
	if identity == nil {
		respondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}
	sessionID := ws.Session.SessionID()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.eventBus.Subscribe(ctx, providers.EventChannelSessions)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to subscribe to session events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.registerClient(identity.ID)
	defer h.unregisterClient(identity.ID)

	h.sendEvent(w, "connected", map[string]interface{}{
		"user_id":   identity.ID,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil || event.UserID != identity.ID {
				continue
			}
			h.sendEvent(w, string(event.Kind), event)
			flusher.Flush()
			if event.Ends() && event.SessionID == sessionID {
				return
			}
		}
	}
}

func (h *SSEHandler) registerClient(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID]++
	h.logger.Debug().Str("user_id", userID).Int("streams", h.clients[userID]).Msg("client connected")
}

func (h *SSEHandler) unregisterClient(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID]--
	if h.clients[userID] <= 0 {
		delete(h.clients, userID)
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of open streams
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
