package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/gateway"
	"github.com/mcdev12/punchdeck/go/internal/serverconfig"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := serverconfig.NewConfigFromEnv()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	hubConfig := gateway.DefaultConfig()
	hubConfig.ImagesDir = cfg.ImagesDir
	hubConfig.StaticDir = cfg.StaticDir
	hubConfig.PunchConfigPath = cfg.PunchConfigFile

	if cfg.NATSURL != "" {
		natsConfig := gateway.DefaultNATSMirrorConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.SubjectPrefix = cfg.NATSSubjectPrefix
		hubConfig.NATS = &natsConfig
	}

	if cfg.MQTTBroker != "" {
		mqttConfig := gateway.DefaultMQTTSourceConfig()
		mqttConfig.Broker = cfg.MQTTBroker
		mqttConfig.Topic = cfg.MQTTTopic
		hubConfig.MQTT = &mqttConfig
	}

	svc, err := gateway.NewService(hubConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create punch hub")
	}

	log.Info().
		Str("http_addr", cfg.HTTPAddr()).
		Bool("tls", cfg.TLSEnabled()).
		Str("images_dir", cfg.ImagesDir).
		Bool("nats", hubConfig.NATS != nil).
		Bool("mqtt", hubConfig.MQTT != nil).
		Int64("sync_counter", svc.Counter().Current()).
		Msg("starting punch hub")

	servers := []*http.Server{}

	if cfg.TLSEnabled() {
		secure := setupServer(svc, "https", cfg.HTTPSAddr(), cfg, true)
		servers = append(servers, secure)
		go func() {
			log.Info().Str("addr", secure.Addr).Msg("HTTPS server starting")
			if err := secure.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("HTTPS server failed")
			}
		}()
	} else {
		log.Warn().
			Str("cert", cfg.TLSCertFile).
			Str("key", cfg.TLSKeyFile).
			Msg("TLS certificate not found, phones will not get motion sensor access")
	}

	plain := setupServer(svc, "http", cfg.HTTPAddr(), cfg, false)
	servers = append(servers, plain)
	go func() {
		log.Info().Str("addr", plain.Addr).Msg("HTTP server starting")
		if err := plain.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("punch hub failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", server.Addr).Msg("server shutdown failed")
		}
	}

	// Cancel service context to close WebSocket clients and sources
	cancel()
	<-done

	log.Info().Msg("punch hub shutdown complete")
}
