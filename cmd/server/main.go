package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"x402-backend/internal/clients"
	"x402-backend/internal/config"
	"x402-backend/internal/handlers"
	"x402-backend/internal/logging"
	"x402-backend/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := logging.Init("resource-server")
	log.Info("starting x402 resource server")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Server.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.WithField("facilitator_url", cfg.Server.FacilitatorURL).Info("configuration loaded")

	facilitator := clients.NewFacilitatorClient(cfg.Server.FacilitatorURL, log)
	handler := handlers.NewResourceHandler(
		cfg.Server.Network,
		cfg.Server.FacilitatorURL,
		cfg.Server.DefaultPrice,
		cfg.Server.ReceiverWalletAddress,
		facilitator,
		log,
	)
	engine := router.NewResourceRouter(handler)

	server := &http.Server{
		Addr:    cfg.Server.BindAddress(),
		Handler: engine,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("resource server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}
	log.Info("resource server stopped")
}
