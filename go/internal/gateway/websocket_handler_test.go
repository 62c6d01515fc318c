package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestFailedUpgradeLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	cm := NewConnectionManager("plain", DefaultConnectionConfig(), nil, nil)
	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/debug", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, strings.Count(buf.String(), "failed to upgrade WebSocket connection"))
	assert.Equal(t, 0, cm.GetConnectionStats().TotalConnections)
}
