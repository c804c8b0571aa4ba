package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"modscout/internal/app"
	"modscout/internal/dashboard"
	"modscout/logger"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", app.DefaultConfigPath, "Path to configuration file")
	aliasesPath := flag.String("aliases", "", "Optional location alias file overriding the configured aliases")
	address := flag.String("addr", "", "Listen address, overrides web.address")

	flag.Parse()

	a, err := app.Load(*configPath, *aliasesPath)
	if err != nil {
		log.WithError(err).Error("Failed to start")
		os.Exit(1)
	}

	// This binary exists to serve the web front end.
	a.Config.Web.Enabled = true
	if *address != "" {
		a.Config.Web.Address = *address
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.StartTelemetry(ctx)

	server, err := dashboard.NewServer(a.Config, a.Pipeline, a.Log)
	if err != nil {
		log.WithError(err).Error("Failed to create web server")
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("Web server stopped with error")
		os.Exit(1)
	}

	log.WithComponent("main").Info("modscout web stopped")
}
