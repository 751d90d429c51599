package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avask/callline/internal/adapter/driven/gateway/ws"
	store "github.com/avask/callline/internal/adapter/driven/store/memory"
	handler "github.com/avask/callline/internal/adapter/driving/http"
	"github.com/avask/callline/internal/config"
	"github.com/avask/callline/internal/core/service"
	"github.com/rs/zerolog"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	// Keep messages around twice the polling window so a slow poller
	// still catches them.
	signalStore := store.NewSignalStore(2 * cfg.PollWindow)
	hub := ws.NewHub()

	relay := service.NewRelay(signalStore, hub)
	h := handler.NewHandler(relay, hub)

	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.ServerAddr).Msg("Starting relay server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
}
