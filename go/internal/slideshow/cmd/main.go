package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/slideshow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg := slideshow.DefaultClientConfig()
	cfg.HubURL = getEnv("HUB_URL", cfg.HubURL)
	cfg.ClientID = os.Getenv("CLIENT_ID")
	if seed, err := strconv.ParseInt(os.Getenv("SLIDESHOW_SEED"), 10, 64); err == nil {
		cfg.Reconciler.Seed = seed
	}

	client := slideshow.NewClient(cfg, nil)
	client.OnChange = func(state slideshow.State) {
		image, ok := client.Reconciler().Current()
		if !ok {
			return
		}
		log.Info().
			Int("index", state.SelectedIndex).
			Int("total", len(state.Order)).
			Int64("seed", state.Seed).
			Str("image", image.Filename).
			Msg("showing slide")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("hub_url", cfg.HubURL).Msg("starting slideshow display")

	if err := client.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("slideshow display failed")
	}

	log.Info().Msg("slideshow display stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
