package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the hub channels
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleChannel returns the upgrade handler for one channel
func (h *WebSocketHandler) HandleChannel(channel Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade the connection
		if err := h.connectionManager.UpgradeConnection(w, r, channel); err != nil {
			// the upgrader has already written an HTTP error
			log.Error().
				Err(err).
				Str("channel", string(channel)).
				Str("remote_addr", r.RemoteAddr).
				Msg("failed to upgrade WebSocket connection")
			return
		}

		// Connection is now handled by the connection manager
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	for _, channel := range []Channel{ChannelDataInput, ChannelUISignals, ChannelDebug} {
		mux.HandleFunc(string(channel), h.HandleChannel(channel))
	}
}
