package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/punch"
	"github.com/mcdev12/punchdeck/go/internal/synccounter"
)

// StateHandler serves the hub state over plain HTTP
type StateHandler struct {
	store     *punch.Store
	counter   *synccounter.Counter
	imagesDir string
}

// NewStateHandler creates a new state handler
func NewStateHandler(store *punch.Store, counter *synccounter.Counter, imagesDir string) *StateHandler {
	return &StateHandler{
		store:     store,
		counter:   counter,
		imagesDir: imagesDir,
	}
}

// ConfigDocument is the body of GET /api/config
type ConfigDocument struct {
	Punch punch.Config `json:"punch"`
}

// ConfigUpdateResponse is the body of POST /api/config
type ConfigUpdateResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Config  *ConfigDocument `json:"config,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SyncCounterResponse is the body of GET /api/sync-counter
type SyncCounterResponse struct {
	SyncCounter int64 `json:"syncCounter"`
}

// HandleConfig handles GET and POST /api/config
func (h *StateHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.document())

	case http.MethodPost:
		var doc punch.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			log.Warn().Err(err).Msg("rejected configuration update")
			writeJSON(w, http.StatusBadRequest, ConfigUpdateResponse{
				Success: false,
				Message: "Failed to update configuration",
				Error:   err.Error(),
			})
			return
		}

		if doc.Punch != nil {
			h.store.Update(*doc.Punch)
		}

		current := h.document()
		writeJSON(w, http.StatusOK, ConfigUpdateResponse{
			Success: true,
			Message: "Configuration updated",
			Config:  &current,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSyncCounter handles GET /api/sync-counter
func (h *StateHandler) HandleSyncCounter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, SyncCounterResponse{SyncCounter: h.counter.Current()})
}

// HandleImages handles GET /api/images
func (h *StateHandler) HandleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	images, err := ListImages(h.imagesDir)
	if err != nil {
		log.Error().Err(err).Str("dir", h.imagesDir).Msg("failed to list images")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to read archive directory",
		})
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// RegisterStateRoutes registers the HTTP API routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", h.HandleConfig)
	mux.HandleFunc("/api/sync-counter", h.HandleSyncCounter)
	mux.HandleFunc("/api/images", h.HandleImages)
	mux.Handle("/archive/", http.StripPrefix("/archive/", http.FileServer(http.Dir(h.imagesDir))))
}

func (h *StateHandler) document() ConfigDocument {
	return ConfigDocument{Punch: h.store.Snapshot()}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
