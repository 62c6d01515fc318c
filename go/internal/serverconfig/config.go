package serverconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds the hub listener and integration settings.
type Config struct {
	HTTPPort            int
	HTTPSPort           int
	TLSCertFile         string
	TLSKeyFile          string
	RedirectHTTPToHTTPS bool

	ImagesDir       string
	StaticDir       string
	PunchConfigFile string

	NATSURL           string
	NATSSubjectPrefix string

	MQTTBroker string
	MQTTTopic  string

	LogLevel string
}

// NewConfigFromEnv reads the hub environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		HTTPSPort:           getEnvInt("HTTPS_PORT", 3000),
		TLSCertFile:         getEnv("TLS_CERT_FILE", "certs/hub-selfsigned.crt"),
		TLSKeyFile:          getEnv("TLS_KEY_FILE", "private/hub-selfsigned.key"),
		RedirectHTTPToHTTPS: getEnv("REDIRECT_HTTP_TO_HTTPS", "false") == "true",
		ImagesDir:           getEnv("IMAGES_DIR", "public/archive"),
		StaticDir:           getEnv("STATIC_DIR", ""),
		PunchConfigFile:     getEnv("PUNCH_CONFIG_FILE", ""),
		NATSURL:             getEnv("NATS_URL", ""),
		NATSSubjectPrefix:   getEnv("NATS_SUBJECT_PREFIX", "punchdeck"),
		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTTopic:           getEnv("MQTT_TOPIC", "punchdeck/sensors/#"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
}

// HTTPAddr is the plain listener address.
func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// HTTPSAddr is the TLS listener address.
func (c Config) HTTPSAddr() string {
	return fmt.Sprintf(":%d", c.HTTPSPort)
}

// TLSEnabled reports whether both the certificate and key exist on disk.
func (c Config) TLSEnabled() bool {
	return fileExists(c.TLSCertFile) && fileExists(c.TLSKeyFile)
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
