package serverconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "HTTPS_PORT", "LOG_LEVEL", "NATS_URL", "REDIRECT_HTTP_TO_HTTPS"} {
		t.Setenv(key, "")
	}

	cfg := NewConfigFromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, ":3000", cfg.HTTPSAddr())
	assert.Empty(t, cfg.NATSURL)
	assert.False(t, cfg.RedirectHTTPToHTTPS)
	assert.Equal(t, "punchdeck/sensors/#", cfg.MQTTTopic)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTPS_PORT", "not-a-port")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIRECT_HTTP_TO_HTTPS", "true")

	cfg := NewConfigFromEnv()
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 3000, cfg.HTTPSPort)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.True(t, cfg.RedirectHTTPToHTTPS)
}

func TestTLSEnabledNeedsBothFiles(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "hub.crt")
	key := filepath.Join(dir, "hub.key")

	cfg := Config{TLSCertFile: cert, TLSKeyFile: key}
	assert.False(t, cfg.TLSEnabled())

	assert.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	assert.False(t, cfg.TLSEnabled())

	assert.NoError(t, os.WriteFile(key, []byte("key"), 0o600))
	assert.True(t, cfg.TLSEnabled())
}

func TestUnknownLogLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Config{LogLevel: "loud"}.Level())
}
