package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluewell/internal/auth"
	"bluewell/internal/config"
	"bluewell/internal/database"
	"bluewell/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish the requests it is currently handling.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("APP_ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	cfg := config.Load()

	dbService, err := database.NewService(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer dbService.Close()

	if err := auth.InitAuthPackage(dbService.Queries(), auth.Options{
		SessionSecret: cfg.SessionSecret,
		DevAuthBypass: cfg.DevAuthBypass,
		DevUserID:     cfg.DevUserID,
	}); err != nil {
		log.Fatal().Err(err).Msg("could not initialize authentication")
	}

	apiServer := server.NewServer(cfg, dbService)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	log.Info().Str("addr", apiServer.Addr).Msg("BlueWell API listening")
	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server error")
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
