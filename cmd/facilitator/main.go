package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"x402-backend/internal/config"
	"x402-backend/internal/handlers"
	"x402-backend/internal/logging"
	"x402-backend/internal/polkadot"
	"x402-backend/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := logging.Init("facilitator")
	log.Info("starting x402 Polkadot facilitator")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Facilitator.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.WithField("network", cfg.Facilitator.Network).Info("configuration loaded")

	gateway, err := polkadot.NewGateway(
		cfg.Facilitator.Network,
		time.Duration(cfg.Facilitator.ProbeTimeoutMs)*time.Millisecond,
		log,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize Polkadot gateway")
	}
	if err := gateway.Connect(context.Background()); err != nil {
		log.WithError(err).Fatal("failed to connect to Polkadot network")
	}

	handler := handlers.NewFacilitatorHandler(cfg.Facilitator.Network, gateway, log)
	engine := router.NewFacilitatorRouter(handler)

	server := &http.Server{
		Addr:    cfg.Facilitator.BindAddress(),
		Handler: engine,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("facilitator listening")
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
	log.Info("facilitator stopped")
}
