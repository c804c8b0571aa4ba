package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"modscout/internal/app"
	"modscout/logger"
	"modscout/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", app.DefaultConfigPath, "Path to configuration file")
	aliasesPath := flag.String("aliases", "", "Optional location alias file overriding the configured aliases")
	locations := flag.String("locations", "", "Location name(s) or number(s), e.g. '1 3 Hydron'; prompts when empty")

	flag.Parse()

	a, err := app.Load(*configPath, *aliasesPath)
	if err != nil {
		log.WithError(err).Error("Failed to start")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.StartTelemetry(ctx)

	console := writer.NewConsole(os.Stdout, a.Config.Source.Market)

	query := *locations
	if strings.TrimSpace(query) == "" {
		if err := console.WriteMenu(a.Config.Aliases); err != nil {
			os.Exit(1)
		}
		query, err = prompt("Enter location name(s) or number(s) (e.g., '1 3 Hydron'): ")
		if err != nil {
			log.WithError(err).Error("Failed to read input")
			os.Exit(1)
		}
	}

	result, err := a.Pipeline.SearchQuery(ctx, query)
	if err != nil {
		if werr := console.WriteError(err); werr != nil {
			log.WithError(werr).Error("Search failed")
			os.Exit(1)
		}
		os.Exit(2)
	}

	if err := console.WriteResult(result); err != nil {
		os.Exit(1)
	}
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
