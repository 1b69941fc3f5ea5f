package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"TradeGate/internal/di"
	"TradeGate/internal/domain/models"
	"TradeGate/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		var cerr *models.ConfigurationError
		if errors.As(err, &cerr) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", cerr)
		} else {
			fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		}
		os.Exit(2)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "app initialization failed: %v\n", err)
		os.Exit(1)
	}

	runErr := app.Run()
	cleanup()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "app error: %v\n", runErr)
		os.Exit(1)
	}
}
